package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Format selects an encoding.
type Format string

const (
	FormatBinary Format = "binary"
	FormatCBOR   Format = "cbor"
)

// ParseFormat maps a config or flag string to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatBinary, "":
		return FormatBinary, nil
	case FormatCBOR:
		return FormatCBOR, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Options configures NewWriter.
type Options struct {
	Format   Format
	Compress bool
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// zstd decoder is reusable and safe for concurrent DecodeAll calls.
var zstdDecoder, _ = zstd.NewReader(nil)

func fmtVersion(got, want uint32) error {
	return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, got, want)
}

// NewWriter returns a Writer for the requested encoding. When compression is
// on, the encoded stream is wrapped in a zstd frame and Close finishes it.
func NewWriter(out io.Writer, opts Options) (Writer, error) {
	if !opts.Compress {
		return newFormatWriter(out, opts.Format)
	}
	enc, err := zstd.NewWriter(out)
	if err != nil {
		return nil, fmt.Errorf("wire: zstd writer: %w", err)
	}
	inner, err := newFormatWriter(enc, opts.Format)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &compressedWriter{Writer: inner, enc: enc}, nil
}

func newFormatWriter(out io.Writer, f Format) (Writer, error) {
	switch f {
	case FormatBinary, "":
		return NewBinaryWriter(out), nil
	case FormatCBOR:
		return NewCBORWriter(out), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

type compressedWriter struct {
	Writer
	enc *zstd.Encoder
}

func (c *compressedWriter) Close() error {
	err := c.Writer.Close()
	if cerr := c.enc.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("wire: zstd close: %w", cerr)
	}
	return err
}

// NewReader reads all of in and returns a Reader for whatever encoding it
// finds, decompressing first if the data is a zstd frame.
func NewReader(in io.Reader) (Reader, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("wire: read snapshot: %w", err)
	}
	return NewReaderBytes(data)
}

// NewReaderBytes is NewReader over an in-memory buffer.
func NewReaderBytes(data []byte) (Reader, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		plain, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("wire: zstd decode: %w", err)
		}
		data = plain
	}
	switch {
	case bytes.HasPrefix(data, []byte(BinaryMagic)):
		return NewBinaryReader(bytes.NewReader(data))
	case bytes.HasPrefix(data, []byte(CBORMagic)):
		return NewCBORReader(data)
	}
	return nil, ErrInvalidMagic
}

// Sniff reports the encoding and compression of a persisted snapshot without
// decoding it.
func Sniff(data []byte) (f Format, compressed bool, err error) {
	if bytes.HasPrefix(data, zstdMagic) {
		compressed = true
		if data, err = zstdDecoder.DecodeAll(data, nil); err != nil {
			return "", true, fmt.Errorf("wire: zstd decode: %w", err)
		}
	}
	switch {
	case bytes.HasPrefix(data, []byte(BinaryMagic)):
		return FormatBinary, compressed, nil
	case bytes.HasPrefix(data, []byte(CBORMagic)):
		return FormatCBOR, compressed, nil
	}
	return "", compressed, ErrInvalidMagic
}
