package ttd

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/ttdsnap/wire"
)

// tinySnapshot is a two-object snapshot with a cycle and a type.
func tinySnapshot() *Snapshot {
	a := &Record{
		ID:   1,
		Kind: KindDynamicObject,
		Type: 10,
		Properties: []PropertyEntry{
			{Name: "b", Kind: SlotData, Attrs: AttrAll, Value: Ref(2)},
			{Name: "n", Kind: SlotData, Attrs: AttrWritable, Value: Float(math.Copysign(0, -1))},
			{Name: "gone", Kind: SlotClear},
		},
		Payload: &PlainInfo{},
	}
	b := &Record{
		ID:         2,
		Kind:       KindDate,
		Type:       11,
		Properties: []PropertyEntry{{Name: "back", Kind: SlotData, Attrs: AttrAll, Value: Ref(1)}},
		Payload:    &DateInfo{Time: math.NaN()},
	}
	return &Snapshot{
		Types: []*TypeRecord{
			{ID: 10, Name: "Object", Prototype: Null(), Extensible: true},
			{ID: 11, Name: "Date", Prototype: Null(), Extensible: true},
		},
		Objects: []*Record{a, b},
		Roots:   []Root{{Name: "a", Value: Ref(1)}, {Name: "sym", Value: Symbol(3, "s")}},
	}
}

func emitBytes(t *testing.T, s *Snapshot, opts wire.Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := wire.NewWriter(&buf, opts)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := Emit(w, s); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	return buf.Bytes()
}

func parseBytes(data []byte) (*Snapshot, error) {
	r, err := wire.NewReaderBytes(data)
	if err != nil {
		return nil, err
	}
	return Parse(r, nil)
}

func TestEmitParse(t *testing.T) {
	formats := []wire.Options{
		{Format: wire.FormatBinary},
		{Format: wire.FormatBinary, Compress: true},
		{Format: wire.FormatCBOR},
		{Format: wire.FormatCBOR, Compress: true},
	}
	for _, opts := range formats {
		got, err := parseBytes(emitBytes(t, tinySnapshot(), opts))
		if err != nil {
			t.Fatalf("%+v: parse: %v", opts, err)
		}
		if len(got.Objects) != 2 || len(got.Types) != 2 || len(got.Roots) != 2 {
			t.Fatalf("%+v: got %d objects, %d types, %d roots", opts, len(got.Objects), len(got.Types), len(got.Roots))
		}

		want := tinySnapshot()
		if diff := cmp.Diff(want.Types, got.Types); diff != "" {
			t.Errorf("%+v: types (-want +got):\n%s", opts, diff)
		}
		if diff := cmp.Diff(want.Roots, got.Roots); diff != "" {
			t.Errorf("%+v: roots (-want +got):\n%s", opts, diff)
		}

		n := got.Objects[0].Properties[1].Value
		if !n.Equal(Float(math.Copysign(0, -1))) {
			t.Errorf("%+v: negative zero came back as %v (bits %x)", opts, n, n.Bits)
		}
		d, ok := got.Objects[1].Payload.(*DateInfo)
		if !ok || !math.IsNaN(d.Time) {
			t.Errorf("%+v: date payload = %#v", opts, got.Objects[1].Payload)
		}
		if got.Objects[0].Properties[2].Kind != SlotClear {
			t.Errorf("%+v: cleared slot came back as %v", opts, got.Objects[0].Properties[2].Kind)
		}

		rep, err := Compare(tinySnapshot(), got, DefaultCompareOptions())
		if err != nil {
			t.Fatalf("Compare: %v", err)
		}
		if !rep.Pass() {
			t.Errorf("%+v: round trip differs: %v", opts, rep.Assertions)
		}
	}
}

func TestParseUnknownKind(t *testing.T) {
	s := tinySnapshot()
	s.Objects[0].Kind = Kind(200)
	_, err := parseBytes(emitBytes(t, s, wire.Options{}))
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("got %v, want ErrUnknownKind", err)
	}

	s = tinySnapshot()
	s.Objects[0].Kind = KindInvalid
	_, err = parseBytes(emitBytes(t, s, wire.Options{Format: wire.FormatCBOR}))
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("KindInvalid: got %v, want ErrUnknownKind", err)
	}
}

func TestParseBadSlotKind(t *testing.T) {
	s := tinySnapshot()
	s.Objects[0].Properties[0].Kind = SlotKind(40)
	_, err := parseBytes(emitBytes(t, s, wire.Options{}))
	if !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("got %v, want ErrCorruptRecord", err)
	}
}

func TestParseTruncated(t *testing.T) {
	data := emitBytes(t, tinySnapshot(), wire.Options{})
	for _, n := range []int{len(data) / 2, len(data) - 1} {
		if _, err := parseBytes(data[:n]); err == nil {
			t.Errorf("parse of %d/%d bytes succeeded", n, len(data))
		}
	}
}

func TestParseOversizedObjectCount(t *testing.T) {
	for _, f := range []wire.Format{wire.FormatBinary, wire.FormatCBOR} {
		var buf bytes.Buffer
		w, err := wire.NewWriter(&buf, wire.Options{Format: f})
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}
		w.RecordStart()
		w.SequenceStart(wire.KeyTypes, 0)
		w.SequenceEnd()
		w.SequenceStart(wire.KeyObjects, 1<<26)
		w.SequenceEnd()
		w.RecordEnd()
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		s, err := parseBytes(buf.Bytes())
		if !errors.Is(err, wire.ErrLengthMismatch) {
			t.Errorf("%s: got %v, want ErrLengthMismatch", f, err)
		}
		if s != nil {
			t.Errorf("%s: parse returned a snapshot", f)
		}
	}
}

func TestEveryKindHasPayload(t *testing.T) {
	for _, k := range AllKinds() {
		p, err := newPayload(k)
		if err != nil || p == nil {
			t.Errorf("newPayload(%s) = %v, %v", k, p, err)
		}
		if k.String() == "" {
			t.Errorf("kind %d has no name", uint8(k))
		}
	}
	if _, err := newPayload(kindLimit); err == nil {
		t.Error("newPayload accepted a kind outside the set")
	}
}

func TestDependsOnSurvivesParse(t *testing.T) {
	s := tinySnapshot()
	s.Objects[1].DependsOn = []ObjectID{1}
	got, err := parseBytes(emitBytes(t, s, wire.Options{}))
	if err != nil {
		t.Fatal(err)
	}
	deps := got.Objects[1].DependsOn
	if len(deps) != 1 || deps[0] != 1 {
		t.Errorf("DependsOn = %v, want [1]", deps)
	}
}
