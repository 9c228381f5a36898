package wire

import (
	"fmt"
	"io"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// CBOR encoding
// ---------------------------------------------------------------------------

// A CBOR snapshot is the magic "TTDC" followed by a single CBOR array. Records
// are nested arrays. A sequence is a nested array whose first element is its
// declared length. Each keyed scalar is two consecutive elements: the key as
// an unsigned integer and the value.

const CBORMagic = "TTDC"

var cborEncMode cbor.EncMode

func init() {
	// Doubles keep their exact bits: NaN payloads and -0 survive a round trip.
	opts := cbor.CanonicalEncOptions()
	opts.ShortestFloat = cbor.ShortestFloatNone
	opts.NaNConvert = cbor.NaNConvertNone
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// CBORWriter accumulates the document tree and encodes it on Close.
type CBORWriter struct {
	stickyErr
	out   io.Writer
	stack [][]any
}

// NewCBORWriter returns a writer that emits to out when closed.
func NewCBORWriter(out io.Writer) *CBORWriter {
	return &CBORWriter{out: out, stack: [][]any{{}}}
}

func (cw *CBORWriter) push(items ...any) {
	top := len(cw.stack) - 1
	cw.stack[top] = append(cw.stack[top], items...)
}

func (cw *CBORWriter) open(first ...any) {
	cw.stack = append(cw.stack, append([]any{}, first...))
}

func (cw *CBORWriter) close() {
	if len(cw.stack) < 2 {
		cw.failf(ErrUnbalanced, "close without open")
		return
	}
	top := cw.stack[len(cw.stack)-1]
	cw.stack = cw.stack[:len(cw.stack)-1]
	cw.push(top)
}

func (cw *CBORWriter) RecordStart() { cw.open() }

func (cw *CBORWriter) RecordEnd() { cw.close() }

func (cw *CBORWriter) SequenceStart(k Key, n int) {
	cw.push(uint64(k))
	cw.open(uint64(n))
}

func (cw *CBORWriter) SequenceEnd() { cw.close() }

func (cw *CBORWriter) Addr(k Key, v uint64) { cw.push(uint64(k), v) }
func (cw *CBORWriter) Tag(k Key, v uint32) { cw.push(uint64(k), uint64(v)) }
func (cw *CBORWriter) Uint32(k Key, v uint32) { cw.push(uint64(k), uint64(v)) }
func (cw *CBORWriter) Int32(k Key, v int32) { cw.push(uint64(k), int64(v)) }
func (cw *CBORWriter) Bool(k Key, v bool) { cw.push(uint64(k), v) }
func (cw *CBORWriter) Double(k Key, v float64) { cw.push(uint64(k), v) }
func (cw *CBORWriter) String(k Key, v string) { cw.push(uint64(k), v) }

func (cw *CBORWriter) Bytes(k Key, v []byte) {
	if v == nil {
		v = []byte{}
	}
	cw.push(uint64(k), v)
}

func (cw *CBORWriter) Close() error {
	if cw.err != nil {
		return cw.err
	}
	if len(cw.stack) != 1 {
		cw.failf(ErrUnbalanced, "depth %d at close", len(cw.stack)-1)
		return cw.err
	}
	data, err := cborEncMode.Marshal(cw.stack[0])
	if err != nil {
		cw.Fail(fmt.Errorf("wire: marshal snapshot: %w", err))
		return cw.err
	}
	if _, err := io.WriteString(cw.out, CBORMagic); err != nil {
		cw.Fail(err)
		return cw.err
	}
	if _, err := cw.out.Write(data); err != nil {
		cw.Fail(err)
	}
	return cw.err
}

// ---------------------------------------------------------------------------
// CBORReader
// ---------------------------------------------------------------------------

type cborFrame struct {
	items []any
	pos   int
}

// CBORReader walks a decoded CBOR document.
type CBORReader struct {
	stickyErr
	stack []*cborFrame
}

// NewCBORReader decodes the whole document from data.
func NewCBORReader(data []byte) (*CBORReader, error) {
	if len(data) < len(CBORMagic) || string(data[:len(CBORMagic)]) != CBORMagic {
		return nil, ErrInvalidMagic
	}
	var root []any
	if err := cbor.Unmarshal(data[len(CBORMagic):], &root); err != nil {
		return nil, fmt.Errorf("wire: unmarshal snapshot: %w", err)
	}
	return &CBORReader{stack: []*cborFrame{{items: root}}}, nil
}

func (cr *CBORReader) next(what string) (any, bool) {
	if cr.err != nil {
		return nil, false
	}
	f := cr.stack[len(cr.stack)-1]
	if f.pos >= len(f.items) {
		cr.failf(ErrUnexpectedEOF, "reading %s", what)
		return nil, false
	}
	v := f.items[f.pos]
	f.pos++
	return v, true
}

func (cr *CBORReader) key(k Key) bool {
	v, ok := cr.next(k.String())
	if !ok {
		return false
	}
	got, ok := asUint(v)
	if !ok {
		cr.failf(ErrTypeMismatch, "expected key %s, got %T", k, v)
		return false
	}
	if Key(got) != k {
		cr.failf(ErrKeyMismatch, "got %s, want %s", Key(got), k)
		return false
	}
	return true
}

func (cr *CBORReader) value(k Key) (any, bool) {
	if !cr.key(k) {
		return nil, false
	}
	return cr.next(k.String())
}

func (cr *CBORReader) enter(what string) *cborFrame {
	v, ok := cr.next(what)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		cr.failf(ErrTypeMismatch, "expected %s, got %T", what, v)
		return nil
	}
	f := &cborFrame{items: items}
	cr.stack = append(cr.stack, f)
	return f
}

func (cr *CBORReader) leave(base error) {
	if cr.err != nil {
		return
	}
	if len(cr.stack) < 2 {
		cr.failf(ErrUnbalanced, "leave at top level")
		return
	}
	f := cr.stack[len(cr.stack)-1]
	if f.pos != len(f.items) {
		cr.failf(base, "%d unread items", len(f.items)-f.pos)
		return
	}
	cr.stack = cr.stack[:len(cr.stack)-1]
}

func (cr *CBORReader) RecordStart() { cr.enter("record") }

func (cr *CBORReader) RecordEnd() { cr.leave(ErrCorruptData) }

func (cr *CBORReader) SequenceStart(k Key) int {
	if !cr.key(k) {
		return 0
	}
	if cr.enter(k.String()) == nil {
		return 0
	}
	f := cr.stack[len(cr.stack)-1]
	v, ok := cr.next("sequence length")
	if !ok {
		return 0
	}
	n, ok := asUint(v)
	if !ok || n > maxLength {
		cr.failf(ErrCorruptData, "bad length for %s", k)
		return 0
	}
	if left := uint64(len(f.items) - f.pos); n > left {
		cr.failf(ErrLengthMismatch, "length %d for %s, %d items left", n, k, left)
		return 0
	}
	return int(n)
}

func (cr *CBORReader) SequenceEnd() { cr.leave(ErrLengthMismatch) }

func (cr *CBORReader) Addr(k Key) uint64 {
	v, ok := cr.value(k)
	if !ok {
		return 0
	}
	n, ok := asUint(v)
	if !ok {
		cr.failf(ErrTypeMismatch, "%s: got %T", k, v)
	}
	return n
}

func (cr *CBORReader) small(k Key) uint32 {
	n := cr.Addr(k)
	if n > math.MaxUint32 {
		cr.failf(ErrCorruptData, "%s out of range: %d", k, n)
		return 0
	}
	return uint32(n)
}

func (cr *CBORReader) Tag(k Key) uint32 { return cr.small(k) }
func (cr *CBORReader) Uint32(k Key) uint32 { return cr.small(k) }

func (cr *CBORReader) Int32(k Key) int32 {
	v, ok := cr.value(k)
	if !ok {
		return 0
	}
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case uint64:
		if x > math.MaxInt32 {
			cr.failf(ErrCorruptData, "%s out of range: %d", k, x)
			return 0
		}
		n = int64(x)
	default:
		cr.failf(ErrTypeMismatch, "%s: got %T", k, v)
		return 0
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		cr.failf(ErrCorruptData, "%s out of range: %d", k, n)
		return 0
	}
	return int32(n)
}

func (cr *CBORReader) Bool(k Key) bool {
	v, ok := cr.value(k)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		cr.failf(ErrTypeMismatch, "%s: got %T", k, v)
	}
	return b
}

func (cr *CBORReader) Double(k Key) float64 {
	v, ok := cr.value(k)
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	default:
		cr.failf(ErrTypeMismatch, "%s: got %T", k, v)
		return 0
	}
}

func (cr *CBORReader) String(k Key) string {
	v, ok := cr.value(k)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		cr.failf(ErrTypeMismatch, "%s: got %T", k, v)
	}
	return s
}

func (cr *CBORReader) Bytes(k Key) []byte {
	v, ok := cr.value(k)
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case []byte:
		return x
	case nil:
		return []byte{}
	default:
		cr.failf(ErrTypeMismatch, "%s: got %T", k, v)
		return nil
	}
}

func asUint(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int64:
		if x >= 0 {
			return uint64(x), true
		}
	}
	return 0, false
}
