package ttd

import (
	"fmt"

	"github.com/chazu/ttdsnap/wire"
)

// ---------------------------------------------------------------------------
// Boxed primitives, dates, regexes
// ---------------------------------------------------------------------------

// BoxedValueInfo is the primitive wrapped by a Boolean/Number/String/Symbol
// object.
type BoxedValueInfo struct {
	Value Value
}

func (p *BoxedValueInfo) emit(w wire.Writer) { emitValue(w, wire.KeyValueTag, p.Value) }
func (p *BoxedValueInfo) parse(r wire.Reader, _ *Slab) { p.Value = parseValue(r, wire.KeyValueTag) }
func (p *BoxedValueInfo) dependsOn(func(ObjectID))      {}
func (p *BoxedValueInfo) references(add func(ObjectID)) { addValue(add, p.Value) }

func (m *InflateMap) populateBoxedValue(o Object, p *BoxedValueInfo) error {
	v, err := m.value(p.Value)
	if err != nil {
		return err
	}
	m.heap.SetBoxedValue(o, v)
	return nil
}

// DateInfo is a date's time value in milliseconds since the epoch. NaN is an
// invalid date.
type DateInfo struct {
	Time float64
}

func (p *DateInfo) emit(w wire.Writer) { w.Double(wire.KeyTime, p.Time) }
func (p *DateInfo) parse(r wire.Reader, _ *Slab) { p.Time = r.Double(wire.KeyTime) }
func (p *DateInfo) dependsOn(func(ObjectID))     {}
func (p *DateInfo) references(func(ObjectID))    {}

// RegexInfo holds a regex's source and flags plus its lastIndex. When the
// lastIndex property holds a non-integer value LastIndex carries it and
// LastIndexOrFlag is zero.
type RegexInfo struct {
	Pattern         string
	Flags           string
	LastIndexOrFlag uint32
	LastIndex       Value
}

func (p *RegexInfo) emit(w wire.Writer) {
	w.String(wire.KeyPattern, p.Pattern)
	w.String(wire.KeyFlags, p.Flags)
	w.Uint32(wire.KeyLastIndexOrFlag, p.LastIndexOrFlag)
	emitValue(w, wire.KeyLastIndex, p.LastIndex)
}

func (p *RegexInfo) parse(r wire.Reader, _ *Slab) {
	p.Pattern = r.String(wire.KeyPattern)
	p.Flags = r.String(wire.KeyFlags)
	p.LastIndexOrFlag = r.Uint32(wire.KeyLastIndexOrFlag)
	p.LastIndex = parseValue(r, wire.KeyLastIndex)
}

func (p *RegexInfo) dependsOn(func(ObjectID))      {}
func (p *RegexInfo) references(add func(ObjectID)) { addValue(add, p.LastIndex) }

func (e *Extractor) extractRegex(o Object) *RegexInfo {
	st := e.heap.Regex(o)
	return &RegexInfo{
		Pattern:         st.Pattern,
		Flags:           st.Flags,
		LastIndexOrFlag: st.LastIndexOrFlag,
		LastIndex:       e.value(st.LastIndex),
	}
}

func (m *InflateMap) populateRegex(o Object, p *RegexInfo) error {
	v, err := m.value(p.LastIndex)
	if err != nil {
		return err
	}
	m.heap.SetRegexLastIndex(o, p.LastIndexOrFlag, v)
	return nil
}

// ---------------------------------------------------------------------------
// Proxies
// ---------------------------------------------------------------------------

// ProxyInfo holds a proxy's handler and target. Both are invalid for a
// revoked proxy.
type ProxyInfo struct {
	Handler ObjectID
	Target  ObjectID
}

func (p *ProxyInfo) emit(w wire.Writer) {
	w.Addr(wire.KeyHandler, uint64(p.Handler))
	w.Addr(wire.KeyTarget, uint64(p.Target))
}

func (p *ProxyInfo) parse(r wire.Reader, _ *Slab) {
	p.Handler = ObjectID(r.Addr(wire.KeyHandler))
	p.Target = ObjectID(r.Addr(wire.KeyTarget))
}

func (p *ProxyInfo) dependsOn(add func(ObjectID)) {
	addID(add, p.Handler)
	addID(add, p.Target)
}

func (p *ProxyInfo) references(add func(ObjectID)) { p.dependsOn(add) }

func (m *InflateMap) createProxy(rec *Record, p *ProxyInfo) (Object, error) {
	handler, err := m.object(p.Handler)
	if err != nil {
		return nil, err
	}
	target, err := m.object(p.Target)
	if err != nil {
		return nil, err
	}
	return m.heap.CreateProxy(m.typeName(rec), handler, target), nil
}

// ---------------------------------------------------------------------------
// Array buffers and typed arrays
// ---------------------------------------------------------------------------

type ArrayBufferInfo struct {
	Bytes []byte
}

func (p *ArrayBufferInfo) emit(w wire.Writer) { w.Bytes(wire.KeyBytes, p.Bytes) }
func (p *ArrayBufferInfo) parse(r wire.Reader, s *Slab) { p.Bytes = s.Bytes(r.Bytes(wire.KeyBytes)) }
func (p *ArrayBufferInfo) dependsOn(func(ObjectID))     {}
func (p *ArrayBufferInfo) references(func(ObjectID))    {}

// TypedArrayInfo is a view over a buffer. The element type comes from the
// record's type name.
type TypedArrayInfo struct {
	Buffer     ObjectID
	ByteOffset uint32
	Length     uint32
}

func (p *TypedArrayInfo) emit(w wire.Writer) {
	w.Addr(wire.KeyBuffer, uint64(p.Buffer))
	w.Uint32(wire.KeyByteOffset, p.ByteOffset)
	w.Uint32(wire.KeyLength, p.Length)
}

func (p *TypedArrayInfo) parse(r wire.Reader, _ *Slab) {
	p.Buffer = ObjectID(r.Addr(wire.KeyBuffer))
	p.ByteOffset = r.Uint32(wire.KeyByteOffset)
	p.Length = r.Uint32(wire.KeyLength)
	if p.Buffer == InvalidID && r.Err() == nil {
		r.Fail(fmt.Errorf("%w: typed array without buffer", ErrCorruptRecord))
	}
}

func (p *TypedArrayInfo) dependsOn(add func(ObjectID)) { addID(add, p.Buffer) }
func (p *TypedArrayInfo) references(add func(ObjectID)) { addID(add, p.Buffer) }

func (m *InflateMap) createTypedArray(rec *Record, p *TypedArrayInfo) (Object, error) {
	buf, err := m.object(p.Buffer)
	if err != nil {
		return nil, err
	}
	st := TypedArrayState{Buffer: buf, ByteOffset: p.ByteOffset, Length: p.Length}
	return m.heap.CreateTypedArray(m.typeName(rec), st), nil
}
