package vm

import (
	"math"

	"github.com/chazu/ttdsnap/ttd"
)

// Heap is a reference host object model. It implements ttd.Heap, so the
// snapshot engine can extract from it and inflate into it.
//
// A Heap is not safe for concurrent mutation; the registries it embeds lock
// only their own tables.
type Heap struct {
	*Registry

	wellKnown map[ttd.WellKnownToken]*Object
	pending   []*Object
}

var _ ttd.Heap = (*Heap)(nil)

// NewHeap creates a heap with its intrinsics installed.
func NewHeap() *Heap {
	h := &Heap{
		Registry:  NewRegistry(),
		wellKnown: make(map[ttd.WellKnownToken]*Object),
	}
	h.installIntrinsics()
	return h
}

// New allocates an object of kind k. Its prototype is the intrinsic
// prototype for typeName, if there is one.
func (h *Heap) New(k ttd.Kind, typeName string) *Object {
	return h.alloc(k, typeName, h.wellKnown[ttd.WellKnownToken(typeName+".prototype")])
}

func (h *Heap) alloc(k ttd.Kind, typeName string, proto *Object) *Object {
	obj := &Object{kind: k, internal: newInternal(k)}
	obj.typ = h.internType(Type{Name: typeName, Prototype: proto, Extensible: true})
	h.RegisterObject(obj)
	return obj
}

// Global returns the global object.
func (h *Heap) Global() *Object { return h.wellKnown["global"] }

// Intrinsic returns a well-known object by token, or nil.
func (h *Heap) Intrinsic(tok ttd.WellKnownToken) *Object { return h.wellKnown[tok] }

// ObjectOf returns the object v refers to, or nil.
func (h *Heap) ObjectOf(v Value) *Object {
	if !v.IsObject() {
		return nil
	}
	return h.LookupObject(v.Handle())
}

// MarkPendingAsync records that buf has an asynchronous mutation in flight.
func (h *Heap) MarkPendingAsync(buf *Object) { h.pending = append(h.pending, buf) }

// ---------------------------------------------------------------------------
// Value conversion
// ---------------------------------------------------------------------------

// ToVar converts a heap value to the engine's live value form.
func (h *Heap) ToVar(v Value) ttd.Var {
	switch {
	case v.IsFloat():
		return ttd.PrimVar(ttd.Float(v.Float64()))
	case v.IsSmallInt():
		n := v.SmallInt()
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return ttd.PrimVar(ttd.Int(int32(n)))
		}
		return ttd.PrimVar(ttd.Float(float64(n)))
	case v.IsObject():
		return ttd.ObjVar(ref(h.LookupObject(v.Handle())))
	case v.IsString():
		return ttd.PrimVar(ttd.String(h.StringOf(v)))
	case v.IsSymbol():
		return ttd.PrimVar(ttd.Symbol(uint64(v.Handle()), h.SymbolDescription(v)))
	}
	switch v {
	case Null:
		return ttd.PrimVar(ttd.Null())
	case True, False:
		return ttd.PrimVar(ttd.Bool(v.Bool()))
	case Hole:
		return ttd.PrimVar(ttd.Absent())
	}
	return ttd.PrimVar(ttd.Undefined())
}

// FromVar converts an engine live value back to a heap value.
func (h *Heap) FromVar(v ttd.Var) Value {
	if o := deref(v.Obj); o != nil {
		return o.ToValue()
	}
	switch p := v.Prim; p.Tag {
	case ttd.TagNull:
		return Null
	case ttd.TagBool:
		return FromBool(p.AsBool())
	case ttd.TagInt:
		return FromSmallInt(int64(p.AsInt()))
	case ttd.TagFloat:
		return FromFloat64(p.AsFloat())
	case ttd.TagString:
		return h.Str(p.Str)
	case ttd.TagSymbol:
		return h.importSymbol(p.Bits, p.Str)
	case ttd.TagAbsent:
		return Hole
	}
	return Undefined
}

// ref converts a possibly nil object to an engine object without producing a
// non-nil interface around a nil pointer.
func ref(o *Object) ttd.Object {
	if o == nil {
		return nil
	}
	return o
}

func deref(o ttd.Object) *Object {
	obj, _ := o.(*Object)
	return obj
}

// ---------------------------------------------------------------------------
// ttd.ObjectModel
// ---------------------------------------------------------------------------

func (h *Heap) Address(o ttd.Object) ttd.ObjectID { return ttd.ObjectID(deref(o).handle) }

func (h *Heap) KindOf(o ttd.Object) ttd.Kind { return deref(o).kind }

func (h *Heap) TypeOf(o ttd.Object) ttd.TypeInfo {
	t := deref(o).typ
	return ttd.TypeInfo{
		ID:                        t.ID,
		Name:                      t.Name,
		Prototype:                 ref(t.Prototype),
		Extensible:                t.Extensible,
		HasNoEnumerableProperties: t.HasNoEnumerableProperties,
	}
}

// Slots reports accessor properties as a getter slot followed by a setter
// slot; an absent half is omitted unless both are absent.
func (h *Heap) Slots(o ttd.Object) []ttd.Slot {
	obj := deref(o)
	slots := make([]ttd.Slot, 0, len(obj.props))
	for _, p := range obj.props {
		s := ttd.Slot{Name: p.Name, Attrs: p.Attrs}
		switch p.state {
		case propCleared:
			s.Kind = ttd.SlotClear
		case propUninitialized:
			s.Kind = ttd.SlotUninitialized
		case propData:
			s.Kind = ttd.SlotData
			s.Value = h.ToVar(p.Value)
		case propAccessor:
			if p.Getter != nil || p.Setter == nil {
				slots = append(slots, ttd.Slot{Name: p.Name, Kind: ttd.SlotGetter, Attrs: p.Attrs, Value: ttd.ObjVar(ref(p.Getter))})
			}
			if p.Setter != nil {
				slots = append(slots, ttd.Slot{Name: p.Name, Kind: ttd.SlotSetter, Attrs: p.Attrs, Value: ttd.ObjVar(ref(p.Setter))})
			}
			continue
		}
		slots = append(slots, s)
	}
	return slots
}

func (h *Heap) LookupOwn(o ttd.Object, name string) (ttd.Property, bool) {
	p, ok := deref(o).lookup(name)
	if !ok {
		return ttd.Property{}, false
	}
	return ttd.Property{
		Attrs:         p.Attrs,
		Accessor:      p.state == propAccessor,
		Uninitialized: p.state == propUninitialized,
		Value:         h.ToVar(p.Value),
		Getter:        ref(p.Getter),
		Setter:        ref(p.Setter),
	}, true
}

func (h *Heap) OwnNames(o ttd.Object) []string {
	obj := deref(o)
	names := make([]string, 0, len(obj.props))
	for _, p := range obj.props {
		if p.state != propCleared {
			names = append(names, p.Name)
		}
	}
	return names
}

func (h *Heap) SetData(o ttd.Object, name string, v ttd.Var) {
	p := deref(o).define(name)
	p.state = propData
	p.Value = h.FromVar(v)
	p.Getter, p.Setter = nil, nil
}

func (h *Heap) DefineUninitialized(o ttd.Object, name string) {
	p := deref(o).define(name)
	p.state = propUninitialized
	p.Value = Undefined
	p.Getter, p.Setter = nil, nil
}

func (h *Heap) SetAccessors(o ttd.Object, name string, getter, setter ttd.Object) {
	p := deref(o).define(name)
	p.state = propAccessor
	p.Value = Undefined
	p.Getter, p.Setter = deref(getter), deref(setter)
}

func (h *Heap) SetAttributes(o ttd.Object, name string, a ttd.Attributes) {
	if p, ok := deref(o).lookup(name); ok {
		p.Attrs = a
	}
}

func (h *Heap) DeleteOwn(o ttd.Object, name string) bool { return deref(o).Delete(name) }

// CanResetTypeHandler refuses objects whose layout is frozen and too small
// for the incoming property count.
func (h *Heap) CanResetTypeHandler(o ttd.Object, propertyCount int) bool {
	obj := deref(o)
	return obj.typ.Extensible || propertyCount <= len(obj.props)
}

func (h *Heap) retype(obj *Object, change func(*Type)) {
	t := *obj.typ
	change(&t)
	obj.typ = h.internType(t)
}

func (h *Heap) SetPrototype(o ttd.Object, proto ttd.Object) {
	h.retype(deref(o), func(t *Type) { t.Prototype = deref(proto) })
}

func (h *Heap) SetExtensible(o ttd.Object, extensible bool) {
	h.retype(deref(o), func(t *Type) { t.Extensible = extensible })
}

func (h *Heap) SetHasNoEnumerableProperties(o ttd.Object, v bool) {
	h.retype(deref(o), func(t *Type) { t.HasNoEnumerableProperties = v })
}

func (h *Heap) IndexedElements(o ttd.Object) ttd.Object { return ref(deref(o).elements) }

func (h *Heap) SetIndexedElements(o ttd.Object, elems ttd.Object) {
	deref(o).elements = deref(elems)
}

func (h *Heap) IsCrossSite(o ttd.Object) bool { return deref(o).crossSite }

func (h *Heap) MarkCrossSite(o ttd.Object) { deref(o).crossSite = true }

func (h *Heap) WellKnownToken(o ttd.Object) ttd.WellKnownToken { return deref(o).wellKnown }

func (h *Heap) ResolveWellKnown(tok ttd.WellKnownToken) (ttd.Object, bool) {
	obj, ok := h.wellKnown[tok]
	return ref(obj), ok
}
