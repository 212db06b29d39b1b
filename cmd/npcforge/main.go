// Command npcforge is the NPC entity editor: an HTTP service for authoring
// entity records, plus offline tools for checking zone files and exporting
// the variant catalog.
//
// Usage:
//
//	npcforge serve    [-config npcforge.yaml]
//	npcforge validate [-warnings] [-jobs N] zone.yaml...
//	npcforge catalog  [-format yaml|json]
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches to a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "serve":
		return runServe(args[1:], stderr)
	case "validate":
		return runValidate(args[1:], stdout, stderr)
	case "catalog":
		return runCatalog(args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	}
	fmt.Fprintf(stderr, "npcforge: unknown command %q\n", args[0])
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: npcforge <command> [flags]

commands:
  serve     run the editor HTTP service
  validate  check the entities of one or more zone files
  catalog   print the variant catalog`)
}

// newLogger returns a text logger on stderr whose level follows lvl.
func newLogger(w io.Writer, lvl *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
