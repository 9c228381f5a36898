package vm

import (
	"github.com/chazu/ttdsnap/ttd"
)

// Object is a heap-allocated object in the reference heap.
//
// Own properties are kept in insertion order, which is also the slot order
// reported to the snapshot engine. A property that was deleted leaves a
// cleared slot behind until the layout is reset, the way a type handler keeps
// its slot assignment.
type Object struct {
	handle uint32
	kind   ttd.Kind
	typ    *Type

	props []Property
	slot  map[string]int

	// elements is the optional indexed-elements array attached to this
	// object (an Array-kind object in this heap).
	elements *Object

	crossSite bool
	wellKnown ttd.WellKnownToken

	// internal holds the per-kind state, one of the *...State types in
	// internals.go, or nil for plain kinds.
	internal any
}

// Handle returns the object's registry handle. It doubles as the object's
// address for snapshot purposes.
func (obj *Object) Handle() uint32 { return obj.handle }

// Kind returns the object's snapshot kind.
func (obj *Object) Kind() ttd.Kind { return obj.kind }

// TypeName returns the name of the object's type, or "?" if untyped.
func (obj *Object) TypeName() string {
	if obj.typ == nil {
		return "?"
	}
	return obj.typ.Name
}

// ToValue converts an object to a NaN-boxed Value.
func (obj *Object) ToValue() Value { return fromObjectHandle(obj.handle) }

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

type propState uint8

const (
	propCleared propState = iota
	propUninitialized
	propData
	propAccessor
)

// Property is one own property slot.
type Property struct {
	Name   string
	Attrs  ttd.Attributes
	state  propState
	Value  Value
	Getter *Object
	Setter *Object
}

func (obj *Object) lookup(name string) (*Property, bool) {
	i, ok := obj.slot[name]
	if !ok || obj.props[i].state == propCleared {
		return nil, false
	}
	return &obj.props[i], true
}

// define returns the slot for name, reviving a cleared slot or appending a
// new one. New slots start configurable, enumerable and writable.
func (obj *Object) define(name string) *Property {
	if i, ok := obj.slot[name]; ok {
		p := &obj.props[i]
		if p.state == propCleared {
			p.Attrs = ttd.AttrAll
		}
		return p
	}
	if obj.slot == nil {
		obj.slot = make(map[string]int)
	}
	obj.slot[name] = len(obj.props)
	obj.props = append(obj.props, Property{Name: name, Attrs: ttd.AttrAll, Value: Undefined})
	return &obj.props[len(obj.props)-1]
}

// Set stores a data property, creating it if needed. It ignores attributes;
// use Define for non-default attributes.
func (obj *Object) Set(name string, v Value) {
	p := obj.define(name)
	p.state = propData
	p.Value = v
	p.Getter, p.Setter = nil, nil
}

// Define stores a data property with the given attributes.
func (obj *Object) Define(name string, v Value, attrs ttd.Attributes) {
	obj.Set(name, v)
	obj.props[obj.slot[name]].Attrs = attrs
}

// DefineAccessor installs a getter/setter pair. Either may be nil.
func (obj *Object) DefineAccessor(name string, getter, setter *Object, attrs ttd.Attributes) {
	p := obj.define(name)
	p.state = propAccessor
	p.Value = Undefined
	p.Getter, p.Setter = getter, setter
	p.Attrs = attrs &^ ttd.AttrWritable
}

// DeclareUninitialized creates a declared-but-unassigned binding.
func (obj *Object) DeclareUninitialized(name string, attrs ttd.Attributes) {
	p := obj.define(name)
	p.state = propUninitialized
	p.Value = Undefined
	p.Getter, p.Setter = nil, nil
	p.Attrs = attrs
}

// Get returns a data property's value. Accessors and missing properties
// yield Undefined.
func (obj *Object) Get(name string) Value {
	if p, ok := obj.lookup(name); ok && p.state == propData {
		return p.Value
	}
	return Undefined
}

// Delete removes a configurable property, leaving a cleared slot.
func (obj *Object) Delete(name string) bool {
	p, ok := obj.lookup(name)
	if !ok {
		return true
	}
	if !p.Attrs.Configurable() {
		return false
	}
	*p = Property{Name: name, state: propCleared}
	return true
}

// ClearSlot reserves a slot for name without ever storing a value in it.
func (obj *Object) ClearSlot(name string) {
	if _, ok := obj.slot[name]; ok {
		return
	}
	obj.define(name).state = propCleared
	obj.props[obj.slot[name]].Attrs = 0
}

// Properties returns the object's slots, cleared ones included.
func (obj *Object) Properties() []Property { return obj.props }

// ---------------------------------------------------------------------------
// Type descriptors
// ---------------------------------------------------------------------------

// Type is an interned type descriptor. Objects with the same name, prototype
// and flags share one Type; changing any of them moves the object to another
// descriptor.
type Type struct {
	ID                        ttd.TypeID
	Name                      string
	Prototype                 *Object
	Extensible                bool
	HasNoEnumerableProperties bool
}

type typeKey struct {
	name   string
	proto  uint32
	ext    bool
	noEnum bool
}

func (t *Type) key() typeKey {
	k := typeKey{name: t.Name, ext: t.Extensible, noEnum: t.HasNoEnumerableProperties}
	if t.Prototype != nil {
		k.proto = t.Prototype.handle
	}
	return k
}
