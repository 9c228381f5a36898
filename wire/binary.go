package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// ---------------------------------------------------------------------------
// Binary encoding
// ---------------------------------------------------------------------------

// Stream layout:
//
//	magic "TTDS" | version uint32 LE | item*
//
// Every item starts with an item-type byte. Keyed items follow it with the key
// byte, then the payload: uvarint for addresses, tags and lengths, zig-zag
// varint for int32, 8 bytes LE for doubles, uvarint length + bytes for strings
// and byte blobs.

const (
	BinaryMagic   = "TTDS"
	BinaryVersion = uint32(1)
)

const (
	itemRecordStart byte = 0x1
	itemRecordEnd   byte = 0x2
	itemSeqStart    byte = 0x3
	itemSeqEnd      byte = 0x4
	itemAddr        byte = 0x5
	itemTag         byte = 0x6
	itemUint32      byte = 0x7
	itemInt32       byte = 0x8
	itemBool        byte = 0x9
	itemDouble      byte = 0xA
	itemString      byte = 0xB
	itemBytes       byte = 0xC
)

// BinaryWriter writes the binary encoding to an io.Writer.
type BinaryWriter struct {
	stickyErr
	w     *bufio.Writer
	depth int
	buf   [binary.MaxVarintLen64]byte
}

// NewBinaryWriter writes the stream header and returns a writer positioned
// for the first item.
func NewBinaryWriter(out io.Writer) *BinaryWriter {
	bw := &BinaryWriter{w: bufio.NewWriter(out)}
	bw.raw([]byte(BinaryMagic))
	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], BinaryVersion)
	bw.raw(v[:])
	return bw
}

func (bw *BinaryWriter) raw(p []byte) {
	if bw.err != nil {
		return
	}
	if _, err := bw.w.Write(p); err != nil {
		bw.Fail(err)
	}
}

func (bw *BinaryWriter) byte1(b byte) {
	if bw.err != nil {
		return
	}
	if err := bw.w.WriteByte(b); err != nil {
		bw.Fail(err)
	}
}

func (bw *BinaryWriter) uvarint(v uint64) {
	n := binary.PutUvarint(bw.buf[:], v)
	bw.raw(bw.buf[:n])
}

func (bw *BinaryWriter) head(item byte, k Key) {
	bw.byte1(item)
	bw.byte1(byte(k))
}

func (bw *BinaryWriter) RecordStart() {
	bw.depth++
	bw.byte1(itemRecordStart)
}

func (bw *BinaryWriter) RecordEnd() {
	bw.depth--
	bw.byte1(itemRecordEnd)
}

func (bw *BinaryWriter) SequenceStart(k Key, n int) {
	bw.depth++
	bw.head(itemSeqStart, k)
	bw.uvarint(uint64(n))
}

func (bw *BinaryWriter) SequenceEnd() {
	bw.depth--
	bw.byte1(itemSeqEnd)
}

func (bw *BinaryWriter) Addr(k Key, v uint64) {
	bw.head(itemAddr, k)
	bw.uvarint(v)
}

func (bw *BinaryWriter) Tag(k Key, v uint32) {
	bw.head(itemTag, k)
	bw.uvarint(uint64(v))
}

func (bw *BinaryWriter) Uint32(k Key, v uint32) {
	bw.head(itemUint32, k)
	bw.uvarint(uint64(v))
}

func (bw *BinaryWriter) Int32(k Key, v int32) {
	bw.head(itemInt32, k)
	n := binary.PutVarint(bw.buf[:], int64(v))
	bw.raw(bw.buf[:n])
}

func (bw *BinaryWriter) Bool(k Key, v bool) {
	bw.head(itemBool, k)
	if v {
		bw.byte1(1)
	} else {
		bw.byte1(0)
	}
}

func (bw *BinaryWriter) Double(k Key, v float64) {
	bw.head(itemDouble, k)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	bw.raw(b[:])
}

func (bw *BinaryWriter) String(k Key, v string) {
	bw.head(itemString, k)
	bw.uvarint(uint64(len(v)))
	if bw.err == nil {
		if _, err := bw.w.WriteString(v); err != nil {
			bw.Fail(err)
		}
	}
}

func (bw *BinaryWriter) Bytes(k Key, v []byte) {
	bw.head(itemBytes, k)
	bw.uvarint(uint64(len(v)))
	bw.raw(v)
}

func (bw *BinaryWriter) Close() error {
	if bw.err == nil && bw.depth != 0 {
		bw.failf(ErrUnbalanced, "depth %d at close", bw.depth)
	}
	if bw.err != nil {
		return bw.err
	}
	if err := bw.w.Flush(); err != nil {
		bw.Fail(err)
	}
	return bw.err
}

// ---------------------------------------------------------------------------
// BinaryReader
// ---------------------------------------------------------------------------

// BinaryReader parses the binary encoding. The whole stream is held in
// memory so declared lengths can be checked against the bytes left.
type BinaryReader struct {
	stickyErr
	r *bytes.Reader
}

// NewBinaryReader validates the stream header and returns a reader positioned
// at the first item.
func NewBinaryReader(in io.Reader) (*BinaryReader, error) {
	r, ok := in.(*bytes.Reader)
	if !ok {
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, ErrUnexpectedEOF
		}
		r = bytes.NewReader(data)
	}
	br := &BinaryReader{r: r}
	var hdr [8]byte
	if _, err := io.ReadFull(br.r, hdr[:]); err != nil {
		return nil, ErrUnexpectedEOF
	}
	if string(hdr[:4]) != BinaryMagic {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(hdr[4:]); v != BinaryVersion {
		return nil, fmtVersion(v, BinaryVersion)
	}
	return br, nil
}

func (br *BinaryReader) readByte() byte {
	if br.err != nil {
		return 0
	}
	b, err := br.r.ReadByte()
	if err != nil {
		br.Fail(ErrUnexpectedEOF)
		return 0
	}
	return b
}

func (br *BinaryReader) uvarint() uint64 {
	if br.err != nil {
		return 0
	}
	v, err := binary.ReadUvarint(br.r)
	if err != nil {
		br.Fail(ErrUnexpectedEOF)
		return 0
	}
	return v
}

func (br *BinaryReader) expect(item byte, k Key, keyed bool) bool {
	got := br.readByte()
	if br.err != nil {
		return false
	}
	if got != item {
		br.failf(ErrTypeMismatch, "reading %s: got item 0x%x, want 0x%x", k, got, item)
		return false
	}
	if !keyed {
		return true
	}
	if gk := Key(br.readByte()); br.err == nil && gk != k {
		br.failf(ErrKeyMismatch, "got %s, want %s", gk, k)
		return false
	}
	return br.err == nil
}

// length reads a length prefix for items that each take at least minSize
// bytes, and rejects it if the rest of the stream cannot hold them.
func (br *BinaryReader) length(k Key, minSize int) int {
	n := br.uvarint()
	if br.err != nil {
		return 0
	}
	if n > maxLength {
		br.failf(ErrCorruptData, "length %d for %s", n, k)
		return 0
	}
	if left := uint64(br.r.Len()); n*uint64(minSize) > left {
		br.failf(ErrLengthMismatch, "length %d for %s, %d bytes left", n, k, left)
		return 0
	}
	return int(n)
}

func (br *BinaryReader) RecordStart() { br.expect(itemRecordStart, KeyNone, false) }

func (br *BinaryReader) RecordEnd() { br.expect(itemRecordEnd, KeyNone, false) }

func (br *BinaryReader) SequenceStart(k Key) int {
	if !br.expect(itemSeqStart, k, true) {
		return 0
	}
	// Every sequence item is at least two bytes: a record start and end,
	// or an item byte and a key byte.
	return br.length(k, 2)
}

func (br *BinaryReader) SequenceEnd() {
	got := br.readByte()
	if br.err == nil && got != itemSeqEnd {
		br.failf(ErrLengthMismatch, "expected end of sequence, got item 0x%x", got)
	}
}

func (br *BinaryReader) Addr(k Key) uint64 {
	if !br.expect(itemAddr, k, true) {
		return 0
	}
	return br.uvarint()
}

func (br *BinaryReader) small(item byte, k Key) uint32 {
	if !br.expect(item, k, true) {
		return 0
	}
	v := br.uvarint()
	if v > math.MaxUint32 {
		br.failf(ErrCorruptData, "%s out of range: %d", k, v)
		return 0
	}
	return uint32(v)
}

func (br *BinaryReader) Tag(k Key) uint32 { return br.small(itemTag, k) }

func (br *BinaryReader) Uint32(k Key) uint32 { return br.small(itemUint32, k) }

func (br *BinaryReader) Int32(k Key) int32 {
	if !br.expect(itemInt32, k, true) {
		return 0
	}
	v, err := binary.ReadVarint(br.r)
	if err != nil {
		br.Fail(ErrUnexpectedEOF)
		return 0
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		br.failf(ErrCorruptData, "%s out of range: %d", k, v)
		return 0
	}
	return int32(v)
}

func (br *BinaryReader) Bool(k Key) bool {
	if !br.expect(itemBool, k, true) {
		return false
	}
	switch br.readByte() {
	case 0:
		return false
	case 1:
		return true
	default:
		br.failf(ErrCorruptData, "bad bool for %s", k)
		return false
	}
}

func (br *BinaryReader) Double(k Key) float64 {
	if !br.expect(itemDouble, k, true) {
		return 0
	}
	var b [8]byte
	if _, err := io.ReadFull(br.r, b[:]); err != nil {
		br.Fail(ErrUnexpectedEOF)
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:]))
}

func (br *BinaryReader) blob(item byte, k Key) []byte {
	if !br.expect(item, k, true) {
		return nil
	}
	n := br.length(k, 1)
	if br.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(br.r, b); err != nil {
		br.Fail(ErrUnexpectedEOF)
		return nil
	}
	return b
}

func (br *BinaryReader) String(k Key) string { return string(br.blob(itemString, k)) }

func (br *BinaryReader) Bytes(k Key) []byte { return br.blob(itemBytes, k) }
