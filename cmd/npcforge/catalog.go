package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/MrWong99/npcforge/internal/schema"
)

func runCatalog(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	reg := schema.Builtin()
	switch *format {
	case "yaml":
		if err := schema.WriteCatalogYAML(stdout, reg); err != nil {
			fmt.Fprintf(stderr, "npcforge: %v\n", err)
			return 1
		}
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(schema.Catalog(reg)); err != nil {
			fmt.Fprintf(stderr, "npcforge: encode catalog: %v\n", err)
			return 1
		}
	default:
		fmt.Fprintf(stderr, "npcforge catalog: unknown format %q\n", *format)
		return 2
	}
	return 0
}
