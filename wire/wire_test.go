package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

// writeSample writes a small document exercising every item type.
func writeSample(w Writer) {
	w.RecordStart()
	w.Addr(KeyObjectID, 1<<62+5)
	w.Tag(KeyKind, 7)
	w.Uint32(KeyLength, math.MaxUint32)
	w.Int32(KeyFirstIndex, math.MinInt32)
	w.Bool(KeyCrossSite, true)
	w.Double(KeyTime, math.Copysign(0, -1))
	w.Double(KeyValue, math.NaN())
	w.String(KeyName, "héllo")
	w.Bytes(KeyBytes, []byte{0, 1, 2})
	w.SequenceStart(KeyItems, 2)
	w.Addr(KeyValue, 10)
	w.Addr(KeyValue, 11)
	w.SequenceEnd()
	w.RecordEnd()
}

func readSample(t *testing.T, r Reader) {
	t.Helper()
	r.RecordStart()
	if got := r.Addr(KeyObjectID); got != 1<<62+5 {
		t.Errorf("Addr = %d", got)
	}
	if got := r.Tag(KeyKind); got != 7 {
		t.Errorf("Tag = %d", got)
	}
	if got := r.Uint32(KeyLength); got != math.MaxUint32 {
		t.Errorf("Uint32 = %d", got)
	}
	if got := r.Int32(KeyFirstIndex); got != math.MinInt32 {
		t.Errorf("Int32 = %d", got)
	}
	if !r.Bool(KeyCrossSite) {
		t.Error("Bool = false")
	}
	if got := r.Double(KeyTime); got != 0 || !math.Signbit(got) {
		t.Errorf("Double(-0) = %v", got)
	}
	if got := r.Double(KeyValue); math.Float64bits(got) != math.Float64bits(math.NaN()) {
		t.Errorf("Double(NaN) bits = %x", math.Float64bits(got))
	}
	if got := r.String(KeyName); got != "héllo" {
		t.Errorf("String = %q", got)
	}
	if got := r.Bytes(KeyBytes); !bytes.Equal(got, []byte{0, 1, 2}) {
		t.Errorf("Bytes = %v", got)
	}
	if n := r.SequenceStart(KeyItems); n != 2 {
		t.Errorf("SequenceStart = %d", n)
	}
	r.Addr(KeyValue)
	r.Addr(KeyValue)
	r.SequenceEnd()
	r.RecordEnd()
	if err := r.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
}

var allOptions = []Options{
	{Format: FormatBinary},
	{Format: FormatBinary, Compress: true},
	{Format: FormatCBOR},
	{Format: FormatCBOR, Compress: true},
}

func TestWriteRead(t *testing.T) {
	for _, opts := range allOptions {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, opts)
		if err != nil {
			t.Fatal(err)
		}
		writeSample(w)
		if err := w.Close(); err != nil {
			t.Fatalf("%+v: Close: %v", opts, err)
		}

		f, compressed, err := Sniff(buf.Bytes())
		if err != nil || f != opts.Format || compressed != opts.Compress {
			t.Errorf("Sniff = %s, %v, %v; want %s, %v", f, compressed, err, opts.Format, opts.Compress)
		}

		r, err := NewReaderBytes(buf.Bytes())
		if err != nil {
			t.Fatalf("%+v: NewReader: %v", opts, err)
		}
		readSample(t, r)
	}
}

func TestKeyMismatch(t *testing.T) {
	for _, opts := range allOptions[:3:3] {
		var buf bytes.Buffer
		w, _ := NewWriter(&buf, opts)
		w.RecordStart()
		w.Addr(KeyObjectID, 1)
		w.RecordEnd()
		w.Close()

		r, err := NewReaderBytes(buf.Bytes())
		if err != nil {
			t.Fatal(err)
		}
		r.RecordStart()
		r.Addr(KeyTypeID)
		if !errors.Is(r.Err(), ErrKeyMismatch) {
			t.Errorf("%s: got %v, want ErrKeyMismatch", opts.Format, r.Err())
		}
	}
}

func TestLengthMismatch(t *testing.T) {
	for _, f := range []Format{FormatBinary, FormatCBOR} {
		var buf bytes.Buffer
		w, _ := NewWriter(&buf, Options{Format: f})
		w.RecordStart()
		w.SequenceStart(KeyItems, 1)
		w.Addr(KeyValue, 1)
		w.Addr(KeyValue, 2)
		w.SequenceEnd()
		w.RecordEnd()
		w.Close()

		r, _ := NewReaderBytes(buf.Bytes())
		r.RecordStart()
		n := r.SequenceStart(KeyItems)
		for i := 0; i < n; i++ {
			r.Addr(KeyValue)
		}
		r.SequenceEnd()
		if !errors.Is(r.Err(), ErrLengthMismatch) {
			t.Errorf("%s: got %v, want ErrLengthMismatch", f, r.Err())
		}
	}
}

// binaryStream returns a binary header followed by one length-prefixed item.
func binaryStream(item byte, k Key, n uint64) []byte {
	data := []byte(BinaryMagic)
	data = binary.LittleEndian.AppendUint32(data, BinaryVersion)
	data = append(data, item, byte(k))
	return binary.AppendUvarint(data, n)
}

func TestDeclaredLengthExceedsInput(t *testing.T) {
	huge, err := cbor.Marshal([]any{uint64(KeyItems), []any{uint64(1 << 26)}})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		data []byte
		read func(Reader)
	}{
		{"binary sequence", binaryStream(itemSeqStart, KeyItems, 1<<26), func(r Reader) { r.SequenceStart(KeyItems) }},
		{"binary string", binaryStream(itemString, KeyName, 1<<20), func(r Reader) { r.String(KeyName) }},
		{"binary bytes", binaryStream(itemBytes, KeyBytes, 100), func(r Reader) { r.Bytes(KeyBytes) }},
		{"cbor sequence", append([]byte(CBORMagic), huge...), func(r Reader) { r.SequenceStart(KeyItems) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReaderBytes(tt.data)
			if err != nil {
				t.Fatalf("NewReaderBytes: %v", err)
			}
			tt.read(r)
			if !errors.Is(r.Err(), ErrLengthMismatch) {
				t.Errorf("got %v, want ErrLengthMismatch", r.Err())
			}
		})
	}
}

func TestErrorsAreSticky(t *testing.T) {
	var buf bytes.Buffer
	w := NewBinaryWriter(&buf)
	w.RecordStart()
	w.Bool(KeyValid, true)
	w.RecordEnd()
	w.Close()

	r, _ := NewReaderBytes(buf.Bytes())
	r.RecordStart()
	r.String(KeyName)
	first := r.Err()
	r.Bool(KeyValid)
	r.RecordEnd()
	if first == nil || r.Err() != first {
		t.Errorf("first error %v replaced by %v", first, r.Err())
	}
}

func TestUnbalancedWriter(t *testing.T) {
	for _, f := range []Format{FormatBinary, FormatCBOR} {
		var buf bytes.Buffer
		w, _ := NewWriter(&buf, Options{Format: f})
		w.RecordStart()
		w.RecordStart()
		w.RecordEnd()
		if err := w.Close(); !errors.Is(err, ErrUnbalanced) {
			t.Errorf("%s: got %v, want ErrUnbalanced", f, err)
		}
	}
}

func TestBadHeader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidMagic},
		{"garbage", []byte("not a snapshot"), ErrInvalidMagic},
		{"version", append([]byte(BinaryMagic), 9, 0, 0, 0), ErrVersionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewReaderBytes(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatBinary, "binary": FormatBinary, "cbor": FormatCBOR} {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("json"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("got %v, want ErrUnknownFormat", err)
	}
}
