package ttd

import (
	"bytes"
	"testing"

	"github.com/chazu/ttdsnap/wire"
)

func TestSlabAllocatesFromChunks(t *testing.T) {
	s := NewSlab(8)
	a := s.Values(3)
	b := s.Values(3)
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("got lengths %d and %d, want 3", len(a), len(b))
	}
	if got := s.Chunks(); got != 1 {
		t.Errorf("Chunks() = %d, want 1", got)
	}

	// Capacity is clipped, so appending to one slice cannot clobber the next.
	a = append(a, Int(9))
	if b[0].Tag != TagAbsent {
		t.Errorf("append through a wrote into b: %v", b[0])
	}

	s.Values(3)
	if got := s.Chunks(); got != 2 {
		t.Errorf("Chunks() after overflow = %d, want 2", got)
	}
}

func TestSlabLargeRequest(t *testing.T) {
	s := NewSlab(8)
	big := s.IDs(100)
	if len(big) != 100 {
		t.Fatalf("len = %d, want 100", len(big))
	}
	small := s.IDs(2)
	if len(small) != 2 {
		t.Fatalf("len = %d, want 2", len(small))
	}
}

func TestSlabZeroAndReset(t *testing.T) {
	s := NewSlab(8)
	if got := s.Properties(0); got != nil {
		t.Errorf("Properties(0) = %v, want nil", got)
	}

	vs := s.Values(2)
	vs[0] = String("x")
	s.Reset()
	again := s.Values(2)
	if again[0].Tag != TagAbsent || again[0].Str != "" {
		t.Errorf("slab reuse returned dirty memory: %v", again[0])
	}
	if got := s.Chunks(); got != 1 {
		t.Errorf("Chunks() = %d, want the chunk to be reused", got)
	}
}

func TestSlabBytesCopies(t *testing.T) {
	s := NewSlab(8)
	src := []byte{1, 2, 3}
	got := s.Bytes(src)
	src[0] = 99
	if got[0] != 1 {
		t.Error("Bytes aliased its input")
	}
}

func TestSlabRecordIsZeroed(t *testing.T) {
	s := NewSlab(8)
	r := s.Record()
	r.ID = 5
	s.Reset()
	if r2 := s.Record(); r2.ID != 0 {
		t.Errorf("record after reset has ID %d", r2.ID)
	}
}

// reparse emits p inside a record and parses it back into out using s.
func reparse(t *testing.T, p, out Payload, s *Slab) {
	t.Helper()
	var buf bytes.Buffer
	w := wire.NewBinaryWriter(&buf)
	w.RecordStart()
	p.emit(w)
	w.RecordEnd()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	r, err := wire.NewReaderBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderBytes: %v", err)
	}
	r.RecordStart()
	out.parse(r, s)
	r.RecordEnd()
	if err := r.Err(); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

func TestPayloadSlicesComeFromSlab(t *testing.T) {
	s := NewSlab(64)

	ints := &IntArrayInfo{arrayData[int32]{Length: 5, Runs: []ArrayRun[int32]{{Start: 1, Items: []int32{7, 8, 9}}}}}
	var gotInts IntArrayInfo
	before := s.Chunks()
	reparse(t, ints, &gotInts, s)
	if got := s.Chunks() - before; got != 2 {
		t.Errorf("int array parse took %d chunks, want 2 (runs and items)", got)
	}
	if len(gotInts.Runs) != 1 || len(gotInts.Runs[0].Items) != 3 || gotInts.Runs[0].Items[2] != 9 {
		t.Errorf("got runs %+v", gotInts.Runs)
	}

	m := &MapInfo{Entries: []MapEntry{{Key: String("k"), Value: Int(1)}}}
	var gotMap MapInfo
	before = s.Chunks()
	reparse(t, m, &gotMap, s)
	if got := s.Chunks() - before; got != 1 {
		t.Errorf("map parse took %d chunks, want 1", got)
	}
	if len(gotMap.Entries) != 1 || gotMap.Entries[0].Key.Str != "k" {
		t.Errorf("got entries %+v", gotMap.Entries)
	}
}
