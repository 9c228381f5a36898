// ttdsnap CLI - records, inspects, replays and compares heap snapshots
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/ttdsnap/manifest"
)

// errDiverged is returned by commands that found a difference between two
// snapshots. It maps to exit status 1; other errors exit with 2.
var errDiverged = errors.New("snapshots diverge")

// command is one subcommand. run gets the arguments after the subcommand
// name.
type command struct {
	name    string
	summary string
	run     func(env *env, args []string) error
}

var commands = []command{
	{"sample", "Record the built-in sample heap to a snapshot file", runSample},
	{"inspect", "Print the records of a snapshot file", runInspect},
	{"diff", "Compare two snapshot files", runDiff},
	{"replay", "Inflate a snapshot into a fresh heap and check it re-extracts the same", runReplay},
	{"archive", "Store snapshots in the local archive (put, ls, get, rm)", runArchive},
}

// env is the state shared by every subcommand.
type env struct {
	cfg     *manifest.Manifest
	stdout  io.Writer
	stderr  io.Writer
	verbose bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ttdsnap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Verbose output")
	configDir := fs.String("C", ".", "Directory to search upward from for ttdsnap.toml")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: ttdsnap [options] <command> [args...]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nCommands:\n")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %-8s %s\n", c.name, c.summary)
		}
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  ttdsnap sample -o a.snap              # Record the sample heap\n")
		fmt.Fprintf(stderr, "  ttdsnap replay a.snap                 # Inflate and re-extract\n")
		fmt.Fprintf(stderr, "  ttdsnap diff a.snap b.snap            # Report divergences\n")
		fmt.Fprintf(stderr, "  ttdsnap archive put -name boot a.snap # Archive a snapshot\n")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading manifest: %v\n", err)
		return 2
	}
	if cfg == nil {
		cfg = manifest.Default()
	}

	verbosity := cfg.Log.Verbosity
	if *verbose && verbosity < 2 {
		verbosity = 2
	}
	commonlog.Configure(verbosity, cfg.LogFile())

	e := &env{cfg: cfg, stdout: stdout, stderr: stderr, verbose: *verbose}
	name, rest := fs.Arg(0), fs.Args()[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(e, rest)
		switch {
		case err == nil:
			return 0
		case errors.Is(err, errDiverged):
			return 1
		case errors.Is(err, flag.ErrHelp):
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	fmt.Fprintf(stderr, "Error: unknown command %q\n", name)
	fs.Usage()
	return 2
}

// flags returns a flag set for a subcommand that reports errors instead of
// exiting.
func (e *env) flags(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "Usage: ttdsnap %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

func (e *env) logf(format string, args ...any) {
	if e.verbose {
		fmt.Fprintf(e.stderr, format+"\n", args...)
	}
}
