package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/chazu/ttdsnap/ttd"
	"github.com/chazu/ttdsnap/vm"
	"github.com/chazu/ttdsnap/wire"
)

// ---------------------------------------------------------------------------
// Snapshot files
// ---------------------------------------------------------------------------

// encode serializes snap with the given options.
func encode(snap *ttd.Snapshot, opts wire.Options) ([]byte, error) {
	var buf bytes.Buffer
	w, err := wire.NewWriter(&buf, opts)
	if err != nil {
		return nil, err
	}
	if err := ttd.Emit(w, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode parses a serialized snapshot into a slab sized from the manifest.
func (e *env) decode(data []byte) (*ttd.Snapshot, error) {
	r, err := wire.NewReaderBytes(data)
	if err != nil {
		return nil, err
	}
	return ttd.Parse(r, ttd.NewSlab(e.cfg.Extract.SlabChunk))
}

func (e *env) readSnapshot(path string) (*ttd.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	snap, err := e.decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// extract snapshots a heap from the given roots.
func (e *env) extract(h ttd.Heap, roots []ttd.LiveRoot) (*ttd.Snapshot, error) {
	ex, err := ttd.NewExtractor(h, ttd.NewSlab(e.cfg.Extract.SlabChunk), e.cfg.Extract.WellKnownCache)
	if err != nil {
		return nil, err
	}
	return ex.ExtractAll(roots)
}

// wireOptions applies -format and -compress flags over the manifest.
func (e *env) wireOptions(format string, compress bool) (wire.Options, error) {
	opts := e.cfg.WireOptions()
	if format != "" {
		f, err := wire.ParseFormat(format)
		if err != nil {
			return opts, err
		}
		opts.Format = f
	}
	opts.Compress = opts.Compress || compress
	return opts, nil
}

// ---------------------------------------------------------------------------
// sample
// ---------------------------------------------------------------------------

func runSample(e *env, args []string) error {
	fs := e.flags("sample", "[-o file] [-format binary|cbor] [-compress]")
	out := fs.String("o", "sample.snap", "Output file")
	format := fs.String("format", "", "Encoding (default from ttdsnap.toml)")
	compress := fs.Bool("compress", false, "Compress with zstd")
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts, err := e.wireOptions(*format, *compress)
	if err != nil {
		return err
	}

	h := vm.NewHeap()
	snap, err := e.extract(h, vm.Sample(h))
	if err != nil {
		return err
	}
	data, err := encode(snap, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %d objects, %d types (%d bytes, %s) to %s\n",
		len(snap.Objects), len(snap.Types), len(data), describe(opts.Format, opts.Compress), *out)
	return nil
}

func describe(f wire.Format, compressed bool) string {
	if compressed {
		return string(f) + "+zstd"
	}
	return string(f)
}

// ---------------------------------------------------------------------------
// inspect
// ---------------------------------------------------------------------------

func runInspect(e *env, args []string) error {
	fs := e.flags("inspect", "[-types] [-kind name] file")
	showTypes := fs.Bool("types", false, "Also print type records")
	kindFilter := fs.String("kind", "", "Only print records of this kind")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("inspect takes one file")
	}
	path := fs.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	format, compressed, err := wire.Sniff(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	snap, err := e.decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	w := e.stdout
	fmt.Fprintf(w, "%s: %s, %d objects, %d types, %d roots\n",
		path, describe(format, compressed), len(snap.Objects), len(snap.Types), len(snap.Roots))
	for _, r := range snap.Roots {
		fmt.Fprintf(w, "root %s = %s\n", r.Name, r.Value)
	}
	for _, id := range snap.PendingAsyncBuffers {
		fmt.Fprintf(w, "pending %s\n", id)
	}
	if *showTypes {
		for _, t := range snap.Types {
			fmt.Fprintf(w, "type %d %s proto=%s extensible=%t no-enumerable=%t\n",
				t.ID, t.Name, t.Prototype, t.Extensible, t.HasNoEnumerableProperties)
		}
	}

	counts := make(map[ttd.Kind]int)
	for _, rec := range snap.Objects {
		counts[rec.Kind]++
		if *kindFilter != "" && rec.Kind.String() != *kindFilter {
			continue
		}
		printRecord(e, rec)
	}
	if e.verbose {
		kinds := make([]ttd.Kind, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		for _, k := range kinds {
			fmt.Fprintf(w, "%-32s %d\n", k, counts[k])
		}
	}
	return nil
}

func printRecord(e *env, rec *ttd.Record) {
	w := e.stdout
	fmt.Fprintf(w, "%s type=%d", rec, rec.Type)
	if rec.CrossSite {
		fmt.Fprint(w, " cross-site")
	}
	if rec.Indexed != ttd.InvalidID {
		fmt.Fprintf(w, " indexed=%s", rec.Indexed)
	}
	if len(rec.DependsOn) > 0 {
		fmt.Fprintf(w, " depends-on=%v", rec.DependsOn)
	}
	fmt.Fprintln(w)
	for _, p := range rec.Properties {
		if p.Kind == ttd.SlotData || p.Kind == ttd.SlotGetter || p.Kind == ttd.SlotSetter {
			fmt.Fprintf(w, "  %-16s %-13s %s %s\n", p.Name, p.Kind, p.Attrs, p.Value)
		} else {
			fmt.Fprintf(w, "  %-16s %-13s %s\n", p.Name, p.Kind, p.Attrs)
		}
	}
	if e.verbose {
		fmt.Fprintf(w, "  payload %+v\n", rec.Payload)
	}
}

// ---------------------------------------------------------------------------
// replay
// ---------------------------------------------------------------------------

func runReplay(e *env, args []string) error {
	fs := e.flags("replay", "[-passes n] file")
	passes := fs.Int("passes", 1, "Inflate this many times into the same heap")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *passes < 1 {
		fs.Usage()
		return fmt.Errorf("replay takes one file and at least one pass")
	}
	snap, err := e.readSnapshot(fs.Arg(0))
	if err != nil {
		return err
	}

	h := vm.NewHeap()
	vm.RegisterSampleBodies(h)
	m, err := ttd.NewInflateMap(h, e.cfg.Extract.WellKnownCache)
	if err != nil {
		return err
	}

	for pass := 1; pass <= *passes; pass++ {
		if pass > 1 {
			m.PrepForReInflate()
		}
		if err := m.Inflate(snap); err != nil {
			return fmt.Errorf("pass %d: %w", pass, err)
		}
		st := m.Stats()
		e.logf("pass %d: fresh %d, reused %d, well-known %d", pass, st.Fresh, st.Reused, st.WellKnown)
		if reset := m.ResetProperties(); len(reset) > 0 {
			e.logf("pass %d: reset properties %v", pass, reset)
		}
	}
	roots := make([]ttd.LiveRoot, len(snap.Roots))
	for i, r := range snap.Roots {
		v, err := m.InflateValue(r.Value)
		if err != nil {
			return fmt.Errorf("root %s: %w", r.Name, err)
		}
		roots[i] = ttd.LiveRoot{Name: r.Name, Value: v}
	}

	again, err := e.extract(h, roots)
	if err != nil {
		return fmt.Errorf("re-extract: %w", err)
	}
	rep, err := ttd.Compare(snap, again, e.cfg.CompareOptions())
	if err != nil {
		return err
	}
	return e.report(rep, false)
}
