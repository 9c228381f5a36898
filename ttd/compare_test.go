package ttd

import (
	"strings"
	"testing"
)

// snap builds a snapshot from records of a single "Object" type.
func snap(roots []Root, recs ...*Record) *Snapshot {
	for _, r := range recs {
		if r.Type == 0 {
			r.Type = 1
		}
		if r.Payload == nil {
			r.Payload = &PlainInfo{}
		}
	}
	return &Snapshot{
		Types:   []*TypeRecord{{ID: 1, Name: "Object", Prototype: Null(), Extensible: true}},
		Objects: recs,
		Roots:   roots,
	}
}

func obj(id ObjectID, props ...PropertyEntry) *Record {
	return &Record{ID: id, Kind: KindDynamicObject, Properties: props}
}

func data(name string, v Value) PropertyEntry {
	return PropertyEntry{Name: name, Kind: SlotData, Attrs: AttrAll, Value: v}
}

func mustCompare(t *testing.T, a, b *Snapshot, opts CompareOptions) *Report {
	t.Helper()
	rep, err := Compare(a, b, opts)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	return rep
}

func hasAssertion(rep *Report, path string) bool {
	for _, a := range rep.Assertions {
		if a.Path == path {
			return true
		}
	}
	return false
}

func TestCompareIgnoresIDs(t *testing.T) {
	a := snap([]Root{{"r", Ref(1)}}, obj(1, data("x", Ref(2))), obj(2, data("back", Ref(1))))
	b := snap([]Root{{"r", Ref(70)}}, obj(70, data("x", Ref(90))), obj(90, data("back", Ref(70))))
	rep := mustCompare(t, a, b, DefaultCompareOptions())
	if !rep.Pass() {
		t.Errorf("got %v, want no assertions", rep.Assertions)
	}
	if rep.Compared != 2 {
		t.Errorf("Compared = %d, want 2", rep.Compared)
	}
}

func TestCompareReportsPaths(t *testing.T) {
	tests := []struct {
		name string
		b    *Record
		path string
	}{
		{"value", obj(5, data("x", Int(2))), "root(r).x"},
		{"missing", obj(5), "root(r).x"},
		{"extra", obj(5, data("x", Int(1)), data("y", Int(1))), "root(r).y"},
		{"attributes", obj(5, PropertyEntry{Name: "x", Kind: SlotData, Attrs: AttrWritable, Value: Int(1)}), "root(r).x"},
		{"kind", &Record{ID: 5, Kind: KindError}, "root(r)"},
	}
	a := snap([]Root{{"r", Ref(1)}}, obj(1, data("x", Int(1))))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := mustCompare(t, a, snap([]Root{{"r", Ref(5)}}, tt.b), DefaultCompareOptions())
			if !hasAssertion(rep, tt.path) {
				t.Errorf("got %v, want an assertion at %s", rep.Assertions, tt.path)
			}
		})
	}
}

func TestCompareEnforcesConsistentMapping(t *testing.T) {
	// A reaches one object twice; B reaches two identical objects.
	a := snap([]Root{{"p", Ref(1)}, {"q", Ref(1)}}, obj(1))
	b := snap([]Root{{"p", Ref(1)}, {"q", Ref(2)}}, obj(1), obj(2))
	rep := mustCompare(t, a, b, DefaultCompareOptions())
	if rep.Pass() {
		t.Fatal("aliasing difference went unnoticed")
	}
	if !strings.Contains(rep.Assertions[0].Message, "already matched") {
		t.Errorf("message = %q", rep.Assertions[0].Message)
	}
}

func TestCompareRoots(t *testing.T) {
	a := snap([]Root{{"only-a", Int(1)}, {"both", String("s")}})
	b := snap([]Root{{"both", String("s")}, {"only-b", Int(1)}})
	rep := mustCompare(t, a, b, DefaultCompareOptions())
	if len(rep.Assertions) != 2 {
		t.Errorf("got %v, want two missing-root assertions", rep.Assertions)
	}
}

func TestCompareSymbolsByDescription(t *testing.T) {
	a := snap([]Root{{"s", Symbol(1, "tag")}})
	b := snap([]Root{{"s", Symbol(44, "tag")}})
	if rep := mustCompare(t, a, b, DefaultCompareOptions()); !rep.Pass() {
		t.Errorf("got %v", rep.Assertions)
	}
	c := snap([]Root{{"s", Symbol(1, "other")}})
	if rep := mustCompare(t, a, c, DefaultCompareOptions()); rep.Pass() {
		t.Error("different descriptions compared equal")
	}
}

func TestCompareSkipsWeakContents(t *testing.T) {
	weak := func(id ObjectID, vals ...Value) *Record {
		return &Record{ID: id, Kind: KindWeakSet, Payload: &SetInfo{Values: vals}}
	}
	a := snap([]Root{{"w", Ref(1)}}, weak(1, Int(1), Int(2)))
	b := snap([]Root{{"w", Ref(1)}}, weak(1))
	if rep := mustCompare(t, a, b, DefaultCompareOptions()); !rep.Pass() {
		t.Errorf("weak set contents compared: %v", rep.Assertions)
	}

	strong := func(id ObjectID, vals ...Value) *Record {
		return &Record{ID: id, Kind: KindSet, Payload: &SetInfo{Values: vals}}
	}
	a = snap([]Root{{"s", Ref(1)}}, strong(1, Int(1)))
	b = snap([]Root{{"s", Ref(1)}}, strong(1, Int(2)))
	if rep := mustCompare(t, a, b, DefaultCompareOptions()); rep.Pass() {
		t.Error("set contents were not compared")
	}
}

func TestCompareSkipsPendingBufferBytes(t *testing.T) {
	buf := func(b ...byte) *Record {
		return &Record{ID: 1, Kind: KindArrayBuffer, Payload: &ArrayBufferInfo{Bytes: b}}
	}
	a := snap([]Root{{"b", Ref(1)}}, buf(1, 2))
	b := snap([]Root{{"b", Ref(1)}}, buf(3, 4))
	if rep := mustCompare(t, a, b, DefaultCompareOptions()); rep.Pass() {
		t.Error("differing buffers compared equal")
	}

	a.PendingAsyncBuffers = []ObjectID{1}
	if rep := mustCompare(t, a, b, DefaultCompareOptions()); rep.Pass() {
		t.Error("buffer pending on one side only was skipped")
	}
	b.PendingAsyncBuffers = []ObjectID{1}
	if rep := mustCompare(t, a, b, DefaultCompareOptions()); !rep.Pass() {
		t.Errorf("buffer pending on both sides was compared: %v", rep.Assertions)
	}
}

func TestCompareCrossSite(t *testing.T) {
	site := func(cross bool) *Snapshot {
		r := obj(1)
		r.CrossSite = cross
		return snap([]Root{{"o", Ref(1)}}, r)
	}
	lenient := CompareOptions{StrictCrossSite: false}
	tests := []struct {
		name     string
		a, b     bool
		opts     CompareOptions
		wantPass bool
	}{
		{"strict same", true, true, DefaultCompareOptions(), true},
		{"strict A only", true, false, DefaultCompareOptions(), false},
		{"strict B only", false, true, DefaultCompareOptions(), false},
		{"lenient A only", true, false, lenient, false},
		{"lenient B only", false, true, lenient, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := mustCompare(t, site(tt.a), site(tt.b), tt.opts)
			if rep.Pass() != tt.wantPass {
				t.Errorf("Pass() = %v, want %v (%v)", rep.Pass(), tt.wantPass, rep.Assertions)
			}
		})
	}
}

func TestCompareDuplicateID(t *testing.T) {
	a := snap(nil, obj(1), obj(1))
	if _, err := Compare(a, snap(nil), DefaultCompareOptions()); err == nil {
		t.Error("Compare accepted a snapshot with a duplicate id")
	}
}
