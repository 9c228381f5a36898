package ttd

import (
	"fmt"

	"github.com/chazu/ttdsnap/wire"
)

// ---------------------------------------------------------------------------
// Payload: kind-specific additional info
// ---------------------------------------------------------------------------

// Payload is the kind-specific part of a record. The set of implementations
// is closed; every kind maps to exactly one payload type via newPayload.
type Payload interface {
	emit(w wire.Writer)
	parse(r wire.Reader, s *Slab)
	// dependsOn reports objects that must have shells before this one is
	// created.
	dependsOn(add func(ObjectID))
	// references reports every object this payload points at.
	references(add func(ObjectID))
}

// newPayload returns an empty payload for k, ready to be parsed into.
func newPayload(k Kind) (Payload, error) {
	switch k {
	case KindUnhandled, KindDynamicObject, KindExternalObject, KindRuntimeFunction,
		KindActivation, KindBlockActivation, KindPseudoActivation,
		KindConsoleScopeActivation, KindActivationEx, KindError, KindWellKnownObject:
		return &PlainInfo{}, nil
	case KindScriptFunction:
		return &ScriptFunctionInfo{}, nil
	case KindExternalFunction:
		return &ExternalFunctionInfo{}, nil
	case KindRevokerFunction:
		return &RevokerInfo{}, nil
	case KindBoundFunction:
		return &BoundFunctionInfo{}, nil
	case KindHeapArguments, KindES5HeapArguments:
		return &ArgumentsInfo{}, nil
	case KindBoxedValue:
		return &BoxedValueInfo{}, nil
	case KindDate:
		return &DateInfo{}, nil
	case KindRegex:
		return &RegexInfo{}, nil
	case KindArray:
		return &VarArrayInfo{}, nil
	case KindNativeIntArray:
		return &IntArrayInfo{}, nil
	case KindNativeFloatArray:
		return &FloatArrayInfo{}, nil
	case KindES5Array:
		return &ES5ArrayInfo{}, nil
	case KindArrayBuffer:
		return &ArrayBufferInfo{}, nil
	case KindTypedArray:
		return &TypedArrayInfo{}, nil
	case KindSet, KindWeakSet:
		return &SetInfo{}, nil
	case KindMap, KindWeakMap:
		return &MapInfo{}, nil
	case KindProxy:
		return &ProxyInfo{}, nil
	case KindPromise:
		return &PromiseInfo{}, nil
	case KindPromiseResolveOrRejectFunction:
		return &ResolveFunctionInfo{}, nil
	case KindPromiseReactionTaskFunction:
		return &ReactionTaskInfo{}, nil
	case KindPromiseAllResolveElementFunction:
		return &AllResolveElementInfo{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
}

// PlainInfo is the payload of kinds whose whole state is in the common
// property table.
type PlainInfo struct{}

func (*PlainInfo) emit(wire.Writer)              {}
func (*PlainInfo) parse(wire.Reader, *Slab)      {}
func (*PlainInfo) dependsOn(func(ObjectID))      {}
func (*PlainInfo) references(func(ObjectID))     {}

// ---------------------------------------------------------------------------
// Shared field codecs
// ---------------------------------------------------------------------------

func emitValue(w wire.Writer, k wire.Key, v Value) {
	w.Tag(k, uint32(v.Tag))
	switch v.Tag {
	case TagBool:
		w.Bool(wire.KeyValue, v.AsBool())
	case TagInt:
		w.Int32(wire.KeyValue, v.AsInt())
	case TagFloat:
		w.Double(wire.KeyValue, v.AsFloat())
	case TagString:
		w.String(wire.KeyValue, v.Str)
	case TagSymbol:
		w.Addr(wire.KeyValue, v.Bits)
		w.String(wire.KeyName, v.Str)
	case TagObject:
		w.Addr(wire.KeyValue, v.Bits)
	}
}

func parseValue(r wire.Reader, k wire.Key) Value {
	tag := ValueTag(r.Tag(k))
	if r.Err() != nil {
		return Value{}
	}
	switch tag {
	case TagAbsent, TagNull, TagUndefined:
		return Value{Tag: tag}
	case TagBool:
		return Bool(r.Bool(wire.KeyValue))
	case TagInt:
		return Int(r.Int32(wire.KeyValue))
	case TagFloat:
		return Float(r.Double(wire.KeyValue))
	case TagString:
		return String(r.String(wire.KeyValue))
	case TagSymbol:
		id := r.Addr(wire.KeyValue)
		return Symbol(id, r.String(wire.KeyName))
	case TagObject:
		id := ObjectID(r.Addr(wire.KeyValue))
		if id == InvalidID {
			r.Fail(fmt.Errorf("%w: reference to invalid id", ErrCorruptRecord))
		}
		return Ref(id)
	}
	r.Fail(fmt.Errorf("%w: %d", ErrUnknownTag, uint8(tag)))
	return Value{}
}

func emitValues(w wire.Writer, k wire.Key, vs []Value) {
	w.SequenceStart(k, len(vs))
	for _, v := range vs {
		emitValue(w, wire.KeyValueTag, v)
	}
	w.SequenceEnd()
}

func parseValues(r wire.Reader, k wire.Key, s *Slab) []Value {
	n := r.SequenceStart(k)
	vs := s.Values(n)
	for i := 0; i < n && r.Err() == nil; i++ {
		vs[i] = parseValue(r, wire.KeyValueTag)
	}
	r.SequenceEnd()
	return vs
}

func emitIDs(w wire.Writer, k wire.Key, ids []ObjectID) {
	w.SequenceStart(k, len(ids))
	for _, id := range ids {
		w.Addr(wire.KeyObjectID, uint64(id))
	}
	w.SequenceEnd()
}

func parseIDs(r wire.Reader, k wire.Key, s *Slab) []ObjectID {
	n := r.SequenceStart(k)
	ids := s.IDs(n)
	for i := 0; i < n && r.Err() == nil; i++ {
		ids[i] = ObjectID(r.Addr(wire.KeyObjectID))
	}
	r.SequenceEnd()
	return ids
}

func emitBools(w wire.Writer, k wire.Key, bs []bool) {
	w.SequenceStart(k, len(bs))
	for _, b := range bs {
		w.Bool(wire.KeyValue, b)
	}
	w.SequenceEnd()
}

func parseBools(r wire.Reader, k wire.Key, s *Slab) []bool {
	n := r.SequenceStart(k)
	bs := s.Bools(n)
	for i := 0; i < n && r.Err() == nil; i++ {
		bs[i] = r.Bool(wire.KeyValue)
	}
	r.SequenceEnd()
	return bs
}

// addValue reports v's reference, if it has one.
func addValue(add func(ObjectID), v Value) {
	if v.IsRef() {
		add(v.ID())
	}
}

func addID(add func(ObjectID), id ObjectID) {
	if id != InvalidID && !id.IsCell() {
		add(id)
	}
}
