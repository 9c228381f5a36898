package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/chazu/ttdsnap/store"
)

// runArchive processes the `ttdsnap archive` subcommands.
// Usage:
//
//	ttdsnap archive put [-name n] file
//	ttdsnap archive ls
//	ttdsnap archive get [-o file] id|name
//	ttdsnap archive rm id|name
func runArchive(e *env, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("archive needs a subcommand: put, ls, get, rm")
	}
	a, err := store.Open(e.cfg.StorePath())
	if err != nil {
		return err
	}
	defer a.Close()
	e.logf("archive %s", e.cfg.StorePath())

	ctx := context.Background()
	switch sub, rest := args[0], args[1:]; sub {
	case "put":
		return archivePut(ctx, e, a, rest)
	case "ls":
		return archiveList(ctx, e, a)
	case "get":
		return archiveGet(ctx, e, a, rest)
	case "rm":
		return archiveRemove(ctx, e, a, rest)
	default:
		return fmt.Errorf("unknown archive subcommand %q", sub)
	}
}

func archivePut(ctx context.Context, e *env, a *store.Archive, args []string) error {
	fs := e.flags("archive put", "[-name n] file")
	name := fs.String("name", "", "Archive name (default: the file name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("archive put takes one file")
	}
	path := fs.Arg(0)
	if *name == "" {
		*name = path
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	snap, err := e.decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	entry, err := a.Put(ctx, *name, data, len(snap.Objects))
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, entry.ID)
	return nil
}

func archiveList(ctx context.Context, e *env, a *store.Archive) error {
	entries, err := a.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tFORMAT\tOBJECTS\tSIZE")
	for _, en := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			en.ID, en.Name, en.Created.Format(time.RFC3339), describe(en.Format, en.Compressed), en.Objects, en.Size)
	}
	return tw.Flush()
}

func archiveGet(ctx context.Context, e *env, a *store.Archive, args []string) error {
	fs := e.flags("archive get", "[-o file] id|name")
	out := fs.String("o", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("archive get takes one id or name")
	}
	entry, data, err := a.Get(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	e.logf("%s %s: %d bytes", entry.ID, entry.Name, len(data))
	if *out == "" {
		_, err = e.stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}

func archiveRemove(ctx context.Context, e *env, a *store.Archive, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("archive rm takes one id or name")
	}
	return a.Delete(ctx, args[0])
}
