// Package wire implements the record-oriented grammar snapshots are persisted
// with. A snapshot is written as nested records and length-prefixed sequences
// of keyed scalars; the grammar says nothing about bytes, and two encodings
// (a compact binary stream and a CBOR document) implement it.
package wire

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidMagic    = errors.New("wire: invalid magic number")
	ErrVersionMismatch = errors.New("wire: version mismatch")
	ErrUnexpectedEOF   = errors.New("wire: unexpected end of data")
	ErrKeyMismatch     = errors.New("wire: key mismatch")
	ErrTypeMismatch    = errors.New("wire: item type mismatch")
	ErrLengthMismatch  = errors.New("wire: sequence length mismatch")
	ErrCorruptData     = errors.New("wire: corrupt data")
	ErrUnbalanced      = errors.New("wire: unbalanced record or sequence")
	ErrUnknownFormat   = errors.New("wire: unknown format")
)

// maxLength bounds any length prefix read from input.
const maxLength = 1 << 28

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

// Key names a scalar or sequence within a record. Readers check that the key
// they expect is the key that was written.
type Key uint8

const (
	KeyNone Key = iota
	KeyObjectID
	KeyKind
	KeyIsWellKnown
	KeyWellKnownToken
	KeyTypeID
	KeyCrossSite
	KeyDependsOn
	KeyProperties
	KeyName
	KeySlotKind
	KeyAttributes
	KeyValueTag
	KeyValue
	KeyIndexed
	KeyTypes
	KeyTypeName
	KeyPrototype
	KeyExtensible
	KeyNoEnumerable
	KeyObjects
	KeyRoots
	KeyPendingAsync
	KeyLength
	KeyBody
	KeyScope
	KeyCachedScope
	KeyHomeObject
	KeyComputedName
	KeyHasSuper
	KeyTarget
	KeyBoundThis
	KeyArgs
	KeyFrame
	KeyNumArgs
	KeyFormalCount
	KeyDeleted
	KeyTime
	KeyPattern
	KeyFlags
	KeyLastIndexOrFlag
	KeyLastIndex
	KeyBlocks
	KeyFirstIndex
	KeyItems
	KeyValid
	KeyAccessors
	KeyIndex
	KeyGetter
	KeySetter
	KeyLengthWritable
	KeyBytes
	KeyByteOffset
	KeyBuffer
	KeyEntries
	KeyEntryKey
	KeyHandler
	KeyProxy
	KeyPromise
	KeyStatus
	KeyResult
	KeyResolveReactions
	KeyRejectReactions
	KeyCapability
	KeyResolve
	KeyReject
	KeyIsReject
	KeyCell
	KeyAlreadyResolved
	KeyArgument
	KeyReaction
	KeyRemaining
	KeyValues
	KeyAlreadyCalled
	KeyCount
	keyLimit
)

var keyNames = [keyLimit]string{
	"none", "objectId", "kind", "isWellKnown", "wellKnownToken", "typeId", "crossSite",
	"dependsOn", "properties", "name", "slotKind", "attributes", "valueTag", "value",
	"indexed", "types", "typeName", "prototype", "extensible", "noEnumerable", "objects",
	"roots", "pendingAsync", "length", "body", "scope", "cachedScope", "homeObject",
	"computedName", "hasSuper", "target", "boundThis", "args", "frame", "numArgs",
	"formalCount", "deleted", "time", "pattern", "flags", "lastIndexOrFlag", "lastIndex",
	"blocks", "firstIndex", "items", "valid", "accessors", "index", "getter", "setter",
	"lengthWritable", "bytes", "byteOffset", "buffer", "entries", "entryKey", "handler",
	"proxy", "promise", "status", "result", "resolveReactions", "rejectReactions",
	"capability", "resolve", "reject", "isReject", "cell", "alreadyResolved", "argument",
	"reaction", "remaining", "values", "alreadyCalled", "count",
}

func (k Key) String() string {
	if k < keyLimit {
		return keyNames[k]
	}
	return fmt.Sprintf("key(%d)", uint8(k))
}

// ---------------------------------------------------------------------------
// Grammar
// ---------------------------------------------------------------------------

// Writer is the emit side of the grammar. Errors are sticky: after the first
// failure every call is a no-op and Err reports the failure.
type Writer interface {
	RecordStart()
	RecordEnd()
	SequenceStart(k Key, n int)
	SequenceEnd()

	Addr(k Key, v uint64)
	Tag(k Key, v uint32)
	Uint32(k Key, v uint32)
	Int32(k Key, v int32)
	Bool(k Key, v bool)
	Double(k Key, v float64)
	String(k Key, v string)
	Bytes(k Key, v []byte)

	Err() error
	// Close flushes buffered output. It reports the sticky error if one was
	// recorded.
	Close() error
}

// Reader is the parse side of the grammar. Like Writer its errors are
// sticky; reads after a failure return zero values.
type Reader interface {
	RecordStart()
	RecordEnd()
	// SequenceStart returns the declared element count.
	SequenceStart(k Key) int
	SequenceEnd()

	Addr(k Key) uint64
	Tag(k Key) uint32
	Uint32(k Key) uint32
	Int32(k Key) int32
	Bool(k Key) bool
	Double(k Key) float64
	String(k Key) string
	Bytes(k Key) []byte

	Err() error
	// Fail records err as the reader's error unless one is already set.
	// Codecs use it to report format errors found above the grammar level.
	Fail(err error)
}

// stickyErr is embedded by both encodings.
type stickyErr struct {
	err error
}

func (s *stickyErr) Err() error { return s.err }

func (s *stickyErr) Fail(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

func (s *stickyErr) failf(base error, format string, args ...any) {
	s.Fail(fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...)))
}
