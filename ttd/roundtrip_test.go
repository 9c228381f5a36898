package ttd_test

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/ttdsnap/ttd"
	"github.com/chazu/ttdsnap/vm"
	"github.com/chazu/ttdsnap/wire"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func extract(t *testing.T, h *vm.Heap, roots []ttd.LiveRoot) *ttd.Snapshot {
	t.Helper()
	ex, err := ttd.NewExtractor(h, ttd.NewSlab(0), 0)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	s, err := ex.ExtractAll(roots)
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	return s
}

func transcode(t *testing.T, s *ttd.Snapshot, opts wire.Options) *ttd.Snapshot {
	t.Helper()
	var buf bytes.Buffer
	w, err := wire.NewWriter(&buf, opts)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := ttd.Emit(w, s); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	r, err := wire.NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	out, err := ttd.Parse(r, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return out
}

// targetHeap returns a fresh heap that knows the sample's function bodies.
func targetHeap() *vm.Heap {
	h := vm.NewHeap()
	vm.RegisterSampleBodies(h)
	return h
}

func inflate(t *testing.T, m *ttd.InflateMap, s *ttd.Snapshot) []ttd.LiveRoot {
	t.Helper()
	if err := m.Inflate(s); err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	roots := make([]ttd.LiveRoot, len(s.Roots))
	for i, r := range s.Roots {
		v, err := m.InflateValue(r.Value)
		if err != nil {
			t.Fatalf("root %s: %v", r.Name, err)
		}
		roots[i] = ttd.LiveRoot{Name: r.Name, Value: v}
	}
	return roots
}

func assertSame(t *testing.T, a, b *ttd.Snapshot) {
	t.Helper()
	rep, err := ttd.Compare(a, b, ttd.DefaultCompareOptions())
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	for _, as := range rep.Assertions {
		t.Errorf("divergence: %s", as)
	}
	if rep.Compared == 0 {
		t.Error("Compare visited no records")
	}
}

func rootObject(t *testing.T, roots []ttd.LiveRoot, name string) ttd.Object {
	t.Helper()
	for _, r := range roots {
		if r.Name == name {
			if r.Value.Obj == nil {
				t.Fatalf("root %s is not an object", name)
			}
			return r.Value.Obj
		}
	}
	t.Fatalf("no root %s", name)
	return nil
}

func prop(t *testing.T, h *vm.Heap, o ttd.Object, name string) ttd.Object {
	t.Helper()
	p, ok := h.LookupOwn(o, name)
	if !ok || p.Value.Obj == nil {
		t.Fatalf("property %s missing or not an object", name)
	}
	return p.Value.Obj
}

func element(t *testing.T, h *vm.Heap, arr ttd.Object, i uint32) ttd.Object {
	t.Helper()
	for _, it := range h.ArrayElements(arr).Items {
		if it.Index == i {
			return it.Value.Obj
		}
	}
	t.Fatalf("no element %d", i)
	return nil
}

// ---------------------------------------------------------------------------
// Round trips
// ---------------------------------------------------------------------------

func TestRoundTripSample(t *testing.T) {
	tests := []struct {
		name string
		opts *wire.Options
	}{
		{"in memory", nil},
		{"binary", &wire.Options{Format: wire.FormatBinary}},
		{"binary zstd", &wire.Options{Format: wire.FormatBinary, Compress: true}},
		{"cbor", &wire.Options{Format: wire.FormatCBOR}},
		{"cbor zstd", &wire.Options{Format: wire.FormatCBOR, Compress: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := vm.NewHeap()
			a := extract(t, src, vm.Sample(src))
			in := a
			if tt.opts != nil {
				in = transcode(t, a, *tt.opts)
			}

			dst := targetHeap()
			m, err := ttd.NewInflateMap(dst, 0)
			if err != nil {
				t.Fatal(err)
			}
			b := extract(t, dst, inflate(t, m, in))
			assertSame(t, a, b)

			st := m.Stats()
			if st.Fresh == 0 || st.WellKnown == 0 || st.Reused != 0 {
				t.Errorf("stats = %+v, want fresh and well-known objects only", st)
			}
		})
	}
}

func TestSampleCoversEveryKind(t *testing.T) {
	h := vm.NewHeap()
	s := extract(t, h, vm.Sample(h))
	seen := make(map[ttd.Kind]bool)
	for _, rec := range s.Objects {
		seen[rec.Kind] = true
	}
	for _, k := range ttd.AllKinds() {
		if k != ttd.KindUnhandled && !seen[k] {
			t.Errorf("snapshot has no %s record", k)
		}
	}
	if len(s.PendingAsyncBuffers) != 1 {
		t.Errorf("got %d pending buffers, want 1", len(s.PendingAsyncBuffers))
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	h := vm.NewHeap()
	roots := vm.Sample(h)
	a := extract(t, h, roots)
	b := extract(t, h, roots)
	if len(a.Objects) != len(b.Objects) {
		t.Fatalf("got %d and %d records", len(a.Objects), len(b.Objects))
	}
	for i := range a.Objects {
		if a.Objects[i].ID != b.Objects[i].ID {
			t.Fatalf("record %d: id %s vs %s", i, a.Objects[i].ID, b.Objects[i].ID)
		}
	}
	assertSame(t, a, b)
}

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

func TestInflatePreservesSharing(t *testing.T) {
	src := vm.NewHeap()
	a := extract(t, src, vm.Sample(src))
	dst := targetHeap()
	m, _ := ttd.NewInflateMap(dst, 0)
	roots := inflate(t, m, a)
	sample := rootObject(t, roots, "sample")

	t.Run("cycle", func(t *testing.T) {
		x := prop(t, dst, sample, "cycle")
		y := prop(t, dst, x, "y")
		if prop(t, dst, y, "x") != x || prop(t, dst, x, "self") != x {
			t.Error("cycle was not rebuilt with shared identity")
		}
	})

	t.Run("bound functions", func(t *testing.T) {
		bf1 := prop(t, dst, sample, "bound1")
		bf2 := prop(t, dst, sample, "bound2")
		s1, s2 := dst.BoundFunction(bf1), dst.BoundFunction(bf2)
		if s1.Args[0].Obj != bf2 || s2.Args[0].Obj != bf1 {
			t.Error("mutually bound functions do not reference each other")
		}
		if s1.Target != prop(t, dst, sample, "counter") {
			t.Error("bound target is not the counter closure")
		}
	})

	t.Run("resolve cell", func(t *testing.T) {
		promises := prop(t, dst, sample, "promises")
		pending := element(t, dst, promises, 0)
		ps := dst.Promise(pending)
		if len(ps.ResolveReactions) != 1 || len(ps.RejectReactions) != 1 {
			t.Fatalf("got %d/%d reactions", len(ps.ResolveReactions), len(ps.RejectReactions))
		}
		c := ps.ResolveReactions[0].Capability
		res, rej := dst.ResolveFunction(c.Resolve), dst.ResolveFunction(c.Reject)
		if res.AlreadyResolved == nil || res.AlreadyResolved != rej.AlreadyResolved {
			t.Error("resolve and reject do not share their already-resolved flag")
		}
		if !rej.IsReject || res.IsReject {
			t.Error("resolve/reject roles swapped")
		}
	})

	t.Run("remaining cell", func(t *testing.T) {
		elems := prop(t, dst, sample, "allElements")
		var cells []*uint32
		for i := uint32(0); i < 3; i++ {
			cells = append(cells, dst.AllResolveElement(element(t, dst, elems, i)).Remaining)
		}
		if cells[0] != cells[1] || cells[1] != cells[2] {
			t.Error("Promise.all elements do not share their counter")
		}
		if *cells[0] != 2 {
			t.Errorf("remaining = %d, want 2", *cells[0])
		}
	})

	t.Run("well-known", func(t *testing.T) {
		if prop(t, dst, sample, "math") != ttd.Object(dst.Intrinsic("Math")) {
			t.Error("Math was reallocated instead of resolved")
		}
		if rootObject(t, roots, "global") != ttd.Object(dst.Global()) {
			t.Error("global root is not the target's global object")
		}
	})
}

// ---------------------------------------------------------------------------
// Re-inflation
// ---------------------------------------------------------------------------

func TestReInflateReusesObjects(t *testing.T) {
	src := vm.NewHeap()
	a := extract(t, src, vm.Sample(src))
	dst := targetHeap()
	m, _ := ttd.NewInflateMap(dst, 0)

	first := inflate(t, m, a)
	sample := rootObject(t, first, "sample")
	plain := prop(t, dst, sample, "plain")

	// Drift away from the snapshot before going back to it.
	dst.SetData(plain, "junk", ttd.PrimVar(ttd.Int(1)))
	dst.SetData(plain, "s", ttd.PrimVar(ttd.String("changed")))
	dst.SetData(dst.Global(), "leaked", ttd.PrimVar(ttd.Bool(true)))

	m.PrepForReInflate()
	second := inflate(t, m, a)
	if got := rootObject(t, second, "sample"); got != sample {
		t.Error("sample root was reallocated")
	}
	if prop(t, dst, sample, "plain") != plain {
		t.Error("plain object was reallocated")
	}
	if _, ok := dst.LookupOwn(plain, "junk"); ok {
		t.Error("extra property survived re-inflation")
	}
	if st := m.Stats(); st.Reused == 0 {
		t.Errorf("stats = %+v, want reused objects", st)
	}
	if got := m.ResetProperties(); len(got) != 1 || got[0] != "leaked" {
		t.Errorf("ResetProperties() = %v, want [leaked]", got)
	}

	assertSame(t, a, extract(t, dst, second))
}

func TestReInflateIsIdempotent(t *testing.T) {
	src := vm.NewHeap()
	a := extract(t, src, vm.Sample(src))
	dst := targetHeap()
	m, _ := ttd.NewInflateMap(dst, 0)

	b1 := extract(t, dst, inflate(t, m, a))
	m.PrepForReInflate()
	b2 := extract(t, dst, inflate(t, m, a))
	assertSame(t, b1, b2)
}

func TestBlockedContextReuse(t *testing.T) {
	src := vm.NewHeap()
	a := extract(t, src, vm.Sample(src))

	dst := targetHeap()
	getter := dst.New(ttd.KindDynamicObject, "Object")
	dst.Global().DefineAccessor("trap", getter, nil, ttd.AttrEnumerable)

	m, _ := ttd.NewInflateMap(dst, 0)
	err := m.Inflate(a)
	if !errors.Is(err, ttd.ErrContextReuseBlocked) {
		t.Fatalf("got %v, want ErrContextReuseBlocked", err)
	}
	var blocked *ttd.ReuseBlockedError
	if !errors.As(err, &blocked) || len(blocked.IDs) != 1 {
		t.Fatalf("got %v, want one blocking id", err)
	}
	if _, ok := dst.LookupOwn(dst.Global(), "trap"); !ok {
		t.Error("blocked inflation mutated the heap")
	}
}

func TestMissingBody(t *testing.T) {
	src := vm.NewHeap()
	a := extract(t, src, vm.Sample(src))

	m, _ := ttd.NewInflateMap(vm.NewHeap(), 0)
	err := m.Inflate(a)
	if !errors.Is(err, ttd.ErrUnknownBody) {
		t.Errorf("got %v, want ErrUnknownBody", err)
	}
}

// ---------------------------------------------------------------------------
// Divergence
// ---------------------------------------------------------------------------

func TestCompareFindsDrift(t *testing.T) {
	src := vm.NewHeap()
	a := extract(t, src, vm.Sample(src))
	dst := targetHeap()
	m, _ := ttd.NewInflateMap(dst, 0)
	roots := inflate(t, m, a)

	plain := prop(t, dst, rootObject(t, roots, "sample"), "plain")
	dst.SetData(plain, "s", ttd.PrimVar(ttd.String("drifted")))
	dst.SetAttributes(plain, "a", ttd.AttrAll)

	rep, err := ttd.Compare(a, extract(t, dst, roots), ttd.DefaultCompareOptions())
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"root(sample).plain.s": false, "root(sample).plain.a": false}
	for _, as := range rep.Assertions {
		if _, ok := want[as.Path]; ok {
			want[as.Path] = true
		}
	}
	for path, found := range want {
		if !found {
			t.Errorf("no assertion at %s; got %v", path, rep.Assertions)
		}
	}
}

// slotShape is a slot minus its value; object values only mean something
// within one heap.
type slotShape struct {
	Name  string
	Kind  ttd.SlotKind
	Attrs ttd.Attributes
}

func shapes(slots []ttd.Slot) []slotShape {
	var out []slotShape
	for _, s := range slots {
		if s.Kind != ttd.SlotClear {
			out = append(out, slotShape{s.Name, s.Kind, s.Attrs})
		}
	}
	return out
}

func TestAttributeFidelity(t *testing.T) {
	src := vm.NewHeap()
	get := src.New(ttd.KindDynamicObject, "Object")
	set := src.New(ttd.KindDynamicObject, "Object")
	obj := src.New(ttd.KindDynamicObject, "Object")
	for a := ttd.Attributes(0); a <= ttd.AttrAll; a++ {
		obj.Define("data_"+a.String(), src.Str(a.String()), a)
		obj.DefineAccessor("getter_"+a.String(), get, nil, a)
		obj.DefineAccessor("setter_"+a.String(), nil, set, a)
		obj.DefineAccessor("both_"+a.String(), get, set, a)
		obj.DeclareUninitialized("uninit_"+a.String(), a)
	}
	obj.ClearSlot("cleared")
	roots := []ttd.LiveRoot{{Name: "obj", Value: ttd.ObjVar(obj)}}
	want := shapes(src.Slots(obj))

	if n := len(want); n != 6*int(ttd.AttrAll+1) {
		t.Fatalf("source has %d live slots, want %d", n, 6*int(ttd.AttrAll+1))
	}

	for _, tt := range []struct {
		name string
		opts wire.Options
	}{
		{"binary", wire.Options{Format: wire.FormatBinary}},
		{"cbor", wire.Options{Format: wire.FormatCBOR}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			a := extract(t, src, roots)
			b := transcode(t, a, tt.opts)
			dst := targetHeap()
			m, _ := ttd.NewInflateMap(dst, 0)
			live := inflate(t, m, b)

			got := shapes(dst.Slots(rootObject(t, live, "obj")))
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("restored slots mismatch (-want +got):\n%s", diff)
			}
			if _, ok := dst.LookupOwn(rootObject(t, live, "obj"), "cleared"); ok {
				t.Error("cleared slot was restored as a live property")
			}
			assertSame(t, a, extract(t, dst, live))
		})
	}
}

func TestInflateAnyOrder(t *testing.T) {
	src := vm.NewHeap()
	a := extract(t, src, vm.Sample(src))

	for seed := int64(0); seed < 20; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			shuffled := *a
			shuffled.Objects = append([]*ttd.Record(nil), a.Objects...)
			rng := rand.New(rand.NewSource(seed))
			rng.Shuffle(len(shuffled.Objects), func(i, j int) {
				shuffled.Objects[i], shuffled.Objects[j] = shuffled.Objects[j], shuffled.Objects[i]
			})

			dst := targetHeap()
			m, _ := ttd.NewInflateMap(dst, 0)
			live := inflate(t, m, &shuffled)
			assertSame(t, a, extract(t, dst, live))
		})
	}
}

// DependsOn holds only what must exist before a shell can be created;
// property references are resolved in the populate phase.
func TestDependsOnListsShellPrerequisites(t *testing.T) {
	src := vm.NewHeap()
	a := extract(t, src, vm.Sample(src))

	withDeps := 0
	for _, rec := range a.Objects {
		if len(rec.DependsOn) > 0 {
			withDeps++
		}
		if rec.Kind == ttd.KindDynamicObject && len(rec.DependsOn) > 0 {
			t.Errorf("%s has property references in DependsOn: %v", rec, rec.DependsOn)
		}
	}
	if withDeps == 0 {
		t.Error("no record has shell prerequisites")
	}
}
