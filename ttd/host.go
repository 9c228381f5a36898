package ttd

// ---------------------------------------------------------------------------
// Live object model
// ---------------------------------------------------------------------------

// Object is a live heap object owned by the host. The engine only stores it,
// hands it back to the host, and compares it for identity, so host
// implementations must use comparable handles such as pointers.
type Object interface{}

// Var is a live value: a primitive, or a live object when Obj is non-nil.
type Var struct {
	Prim Value
	Obj  Object
}

// ObjVar wraps a live object; a nil object becomes null.
func ObjVar(o Object) Var {
	if o == nil {
		return Var{Prim: Null()}
	}
	return Var{Obj: o}
}

// PrimVar wraps a primitive.
func PrimVar(v Value) Var { return Var{Prim: v} }

func (v Var) IsObject() bool { return v.Obj != nil }

// SameVar reports whether two live values are identical: the same object, or
// equal primitives.
func SameVar(a, b Var) bool {
	if a.Obj != nil || b.Obj != nil {
		return a.Obj == b.Obj
	}
	return a.Prim.Equal(b.Prim)
}

// Slot is one entry of a live object's property layout. For getter and setter
// slots Value.Obj is the accessor function.
type Slot struct {
	Name  string
	Kind  SlotKind
	Attrs Attributes
	Value Var
}

// Property is the current state of one own property.
type Property struct {
	Attrs         Attributes
	Accessor      bool
	Uninitialized bool
	Value         Var
	Getter        Object
	Setter        Object
}

// TypeInfo is the host's type descriptor for an object.
type TypeInfo struct {
	ID                        TypeID
	Name                      string
	Prototype                 Object
	Extensible                bool
	HasNoEnumerableProperties bool
}

// ObjectModel is the generic part of the live object model: identity, type
// descriptors, ordered properties and their attributes.
type ObjectModel interface {
	// Address is the object's transient identity for this extraction pass.
	Address(o Object) ObjectID
	KindOf(o Object) Kind
	TypeOf(o Object) TypeInfo

	// Slots reports every property slot in the type's slot order.
	Slots(o Object) []Slot
	LookupOwn(o Object, name string) (Property, bool)
	OwnNames(o Object) []string

	// The setters below are engine-internal and bypass attribute checks.
	SetData(o Object, name string, v Var)
	DefineUninitialized(o Object, name string)
	SetAccessors(o Object, name string, getter, setter Object)
	SetAttributes(o Object, name string, a Attributes)
	// DeleteOwn removes a property. It fails for non-configurable properties.
	DeleteOwn(o Object, name string) bool
	// CanResetTypeHandler reports whether o's property storage can be reset
	// in place to hold propertyCount properties.
	CanResetTypeHandler(o Object, propertyCount int) bool

	SetPrototype(o Object, proto Object)
	SetExtensible(o Object, extensible bool)
	SetHasNoEnumerableProperties(o Object, v bool)

	IndexedElements(o Object) Object
	SetIndexedElements(o Object, elems Object)

	IsCrossSite(o Object) bool
	MarkCrossSite(o Object)

	WellKnownToken(o Object) WellKnownToken
	ResolveWellKnown(tok WellKnownToken) (Object, bool)
}

// ---------------------------------------------------------------------------
// Kind-specific state, in live terms
// ---------------------------------------------------------------------------

type ScriptFunctionState struct {
	Name              string
	Body              ObjectID
	Scope             []Object
	CachedScope       Object
	HomeObject        Object
	ComputedName      Var
	HasSuperReference bool
}

type BoundFunctionState struct {
	Target Object
	This   Var
	Args   []Var
}

type ArgumentsState struct {
	Frame       Object
	NumArgs     uint32
	FormalCount uint32
	Deleted     []bool
}

type RegexState struct {
	Pattern         string
	Flags           string
	LastIndexOrFlag uint32
	LastIndex       Var
}

type ArrayItem struct {
	Index uint32
	Value Var
}

// ArrayState is an array's length and its present items in index order.
type ArrayState struct {
	Length uint32
	Items  []ArrayItem
}

type IndexAccessor struct {
	Index  uint32
	Getter Object
	Setter Object
	Attrs  Attributes
}

type ES5ArrayState struct {
	ArrayState
	Accessors      []IndexAccessor
	LengthWritable bool
}

type TypedArrayState struct {
	Buffer     Object
	ByteOffset uint32
	Length     uint32
}

type MapEntryVar struct {
	Key   Var
	Value Var
}

// PromiseStatus is a promise's settlement state.
type PromiseStatus uint8

const (
	PromisePending PromiseStatus = iota
	PromiseResolved
	PromiseRejected
)

type Capability struct {
	Promise Var
	Resolve Object
	Reject  Object
}

type Reaction struct {
	Capability Capability
	Handler    Object
}

type PromiseState struct {
	Status           PromiseStatus
	Result           Var
	ResolveReactions []Reaction
	RejectReactions  []Reaction
}

// ResolveFunctionState describes a promise resolve or reject function. The
// two functions of a pair share one AlreadyResolved cell.
type ResolveFunctionState struct {
	Promise         Object
	IsReject        bool
	AlreadyResolved *bool
}

type ReactionTaskState struct {
	Argument Var
	Reaction Reaction
}

// AllResolveElementState describes a Promise.all element function. All
// element functions of one call share the Remaining cell.
type AllResolveElementState struct {
	Capability    Capability
	Index         uint32
	Remaining     *uint32
	Values        Object
	AlreadyCalled bool
}

// Internals reads kind-specific state during extraction.
type Internals interface {
	ScriptFunction(o Object) ScriptFunctionState
	ExternalFunctionName(o Object) string
	RevokerProxy(o Object) Object
	BoundFunction(o Object) BoundFunctionState
	Arguments(o Object) ArgumentsState
	BoxedValue(o Object) Var
	DateValue(o Object) float64
	Regex(o Object) RegexState
	ArrayElements(o Object) ArrayState
	ES5Array(o Object) ES5ArrayState
	ArrayBufferBytes(o Object) []byte
	TypedArray(o Object) TypedArrayState
	CollectionValues(o Object) []Var
	MapEntries(o Object) []MapEntryVar
	Proxy(o Object) (handler, target Object)
	Promise(o Object) PromiseState
	ResolveFunction(o Object) ResolveFunctionState
	ReactionTask(o Object) ReactionTaskState
	AllResolveElement(o Object) AllResolveElementState

	// PendingAsyncBuffers lists array buffers with an in-flight async
	// mutation.
	PendingAsyncBuffers() []Object
}

// Library allocates shells during phase one and installs kind-specific
// state during phase two.
type Library interface {
	// NewShell allocates an empty object of a kind that needs nothing at
	// construction time.
	NewShell(kind Kind, typeName string) Object
	CreateScriptFunction(typeName string, body ObjectID, name string) (Object, error)
	CreateExternalFunction(typeName string, name string) Object
	CreateRevoker(typeName string, proxy Object) Object
	CreateBoundFunction(typeName string, target Object) Object
	CreateArguments(kind Kind, typeName string, st ArgumentsState) Object
	CreateDate(typeName string, t float64) Object
	CreateRegex(typeName string, pattern, flags string) Object
	CreateArrayBuffer(typeName string, b []byte) Object
	CreateTypedArray(typeName string, st TypedArrayState) Object
	CreateProxy(typeName string, handler, target Object) Object
	CreateResolveFunction(typeName string, st ResolveFunctionState) Object
	CreateAllResolveElement(typeName string, index uint32, remaining *uint32, alreadyCalled bool) Object

	SetScriptFunctionLinks(fn Object, st ScriptFunctionState)
	SetBoundFunctionArgs(fn Object, this Var, args []Var)
	SetBoxedValue(o Object, v Var)
	SetRegexLastIndex(o Object, lastIndexOrFlag uint32, lastIndex Var)
	SetArrayElements(o Object, st ArrayState)
	SetArrayAccessors(o Object, acc []IndexAccessor, lengthWritable bool)
	SetCollectionValues(o Object, values []Var)
	SetMapEntries(o Object, entries []MapEntryVar)
	SetPromiseState(o Object, st PromiseState)
	SetReactionTask(o Object, st ReactionTaskState)
	SetAllResolveElementLinks(o Object, capability Capability, values Object)
}

// Heap is everything the engine needs from the host.
type Heap interface {
	ObjectModel
	Internals
	Library
}
