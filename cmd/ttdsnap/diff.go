package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/chazu/ttdsnap/ttd"
)

func runDiff(e *env, args []string) error {
	fs := e.flags("diff", "[-lax] [-yaml] a.snap b.snap")
	lax := fs.Bool("lax", false, "Only report objects cross-site in a but not in b")
	asYAML := fs.Bool("yaml", false, "Print the report as YAML (default when stdout is not a terminal)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("diff takes two files")
	}
	a, err := e.readSnapshot(fs.Arg(0))
	if err != nil {
		return err
	}
	b, err := e.readSnapshot(fs.Arg(1))
	if err != nil {
		return err
	}

	opts := e.cfg.CompareOptions()
	if *lax {
		opts.StrictCrossSite = false
	}
	rep, err := ttd.Compare(a, b, opts)
	if err != nil {
		return err
	}
	return e.report(rep, *asYAML || !stdoutIsTerminal(e))
}

func stdoutIsTerminal(e *env) bool {
	f, ok := e.stdout.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// yamlReport is the machine-readable form of a compare report.
type yamlReport struct {
	Pass       bool            `yaml:"pass"`
	Compared   int             `yaml:"compared"`
	Assertions []yamlAssertion `yaml:"assertions,omitempty"`
}

type yamlAssertion struct {
	Path    string `yaml:"path"`
	A       uint64 `yaml:"a"`
	B       uint64 `yaml:"b"`
	Message string `yaml:"message"`
}

// report prints rep and returns errDiverged if it did not pass.
func (e *env) report(rep *ttd.Report, asYAML bool) error {
	if asYAML {
		out := yamlReport{Pass: rep.Pass(), Compared: rep.Compared}
		for _, a := range rep.Assertions {
			out.Assertions = append(out.Assertions, yamlAssertion{
				Path: a.Path, A: uint64(a.A), B: uint64(a.B), Message: a.Message,
			})
		}
		enc := yaml.NewEncoder(e.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	} else {
		for _, a := range rep.Assertions {
			fmt.Fprintln(e.stdout, a)
		}
		if rep.Pass() {
			fmt.Fprintf(e.stdout, "equivalent (%d records compared)\n", rep.Compared)
		} else {
			fmt.Fprintf(e.stdout, "%d divergences (%d records compared)\n", len(rep.Assertions), rep.Compared)
		}
	}
	if !rep.Pass() {
		return errDiverged
	}
	return nil
}
