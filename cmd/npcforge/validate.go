package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/npcforge/internal/npcstore"
	"github.com/MrWong99/npcforge/internal/schema"
	"github.com/MrWong99/npcforge/internal/validate"
)

// zoneReport holds the findings of one zone file.
type zoneReport struct {
	path     string
	scope    string
	entities int
	findings []entityFinding
	err      error
}

type entityFinding struct {
	entity string
	validate.Finding
}

func (z zoneReport) errorCount() int {
	n := 0
	for _, f := range z.findings {
		if f.Severity == validate.SeverityError {
			n++
		}
	}
	return n
}

// runValidate checks every entity of the given zone files. It exits 1 when
// any entity has errors and 2 when a file cannot be read.
func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	warnings := fs.Bool("warnings", false, "also print warnings and suggestions")
	jobs := fs.Int("jobs", runtime.GOMAXPROCS(0), "number of files checked concurrently")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "npcforge validate: no zone files given")
		return 2
	}

	v := validate.New(schema.Builtin())
	paths := fs.Args()
	reports := make([]zoneReport, len(paths))

	var g errgroup.Group
	g.SetLimit(max(*jobs, 1))
	for i, p := range paths {
		g.Go(func() error {
			reports[i] = checkZone(v, p, *warnings)
			return nil
		})
	}
	_ = g.Wait()

	code := 0
	for _, rep := range reports {
		if rep.err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", rep.path, rep.err)
			code = 2
			continue
		}
		for _, f := range rep.findings {
			fmt.Fprintf(stdout, "%s: %s: %s %s: %s\n", rep.path, f.entity, f.Severity, f.Field, f.Message)
		}
		errs := rep.errorCount()
		fmt.Fprintf(stdout, "%s: scope %q, %d entities, %d errors\n", rep.path, rep.scope, rep.entities, errs)
		if errs > 0 && code == 0 {
			code = 1
		}
	}
	return code
}

func checkZone(v *validate.Validator, path string, warnings bool) zoneReport {
	rep := zoneReport{path: path}
	f, err := os.Open(path)
	if err != nil {
		rep.err = err
		return rep
	}
	defer f.Close()

	z, err := npcstore.ReadZone(f)
	if err != nil {
		rep.err = err
		return rep
	}
	rep.scope = z.Scope
	rep.entities = len(z.Entities)

	seen := make(map[string]int, len(z.Entities))
	for i, rec := range z.Entities {
		name := rec.ID()
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if id := rec.ID(); id != "" {
			if first, dup := seen[id]; dup {
				rep.findings = append(rep.findings, entityFinding{entity: name, Finding: validate.Finding{
					Field:    "id",
					Message:  fmt.Sprintf("duplicate id, first used by entity #%d", first),
					Severity: validate.SeverityError,
					Code:     validate.CodeBusinessRule,
				}})
			} else {
				seen[id] = i
			}
		}

		res := v.Validate(rec)
		found := res.Errors
		if warnings {
			found = res.All()
		}
		for _, fd := range found {
			rep.findings = append(rep.findings, entityFinding{entity: name, Finding: fd})
		}
	}
	return rep
}
