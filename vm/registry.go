package vm

import (
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"

	"github.com/chazu/ttdsnap/ttd"
)

// ---------------------------------------------------------------------------
// Registry: handle tables behind NaN-boxed values
// ---------------------------------------------------------------------------

// Registry owns every table a Value handle can point into: objects, interned
// strings, symbols, type descriptors and function bodies. Handles start at 1
// so the zero handle is never valid.
type Registry struct {
	objects   map[uint32]*Object
	objectsMu sync.RWMutex
	objectID  atomic.Uint32

	strings   []string
	stringIDs map[string]uint32
	stringsMu sync.RWMutex

	// symbols maps a symbol handle to its description. imported remembers
	// symbols created for foreign symbol ids so one id maps to one symbol.
	symbols   map[uint32]string
	imported  map[uint64]uint32
	symbolsMu sync.RWMutex
	symbolID  atomic.Uint32

	types   map[typeKey]*Type
	typesMu sync.Mutex
	typeID  atomic.Uint64

	bodies   map[ttd.ObjectID]*FunctionBody
	bodiesMu sync.RWMutex
}

// NewRegistry creates a Registry with all maps initialized.
func NewRegistry() *Registry {
	return &Registry{
		objects:   make(map[uint32]*Object),
		stringIDs: make(map[string]uint32),
		symbols:   make(map[uint32]string),
		imported:  make(map[uint64]uint32),
		types:     make(map[typeKey]*Type),
		bodies:    make(map[ttd.ObjectID]*FunctionBody),
	}
}

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// RegisterObject assigns obj a fresh handle.
func (r *Registry) RegisterObject(obj *Object) uint32 {
	id := r.objectID.Add(1)
	obj.handle = id

	r.objectsMu.Lock()
	r.objects[id] = obj
	r.objectsMu.Unlock()
	return id
}

// LookupObject returns the object for a handle, or nil.
func (r *Registry) LookupObject(id uint32) *Object {
	r.objectsMu.RLock()
	defer r.objectsMu.RUnlock()
	return r.objects[id]
}

// ObjectCount returns the number of live objects.
func (r *Registry) ObjectCount() int {
	r.objectsMu.RLock()
	defer r.objectsMu.RUnlock()
	return len(r.objects)
}

// ---------------------------------------------------------------------------
// Strings
// ---------------------------------------------------------------------------

// Str interns s and returns it as a Value.
func (r *Registry) Str(s string) Value {
	r.stringsMu.RLock()
	id, ok := r.stringIDs[s]
	r.stringsMu.RUnlock()
	if ok {
		return fromStringHandle(id)
	}

	r.stringsMu.Lock()
	defer r.stringsMu.Unlock()
	if id, ok := r.stringIDs[s]; ok {
		return fromStringHandle(id)
	}
	r.strings = append(r.strings, s)
	id = uint32(len(r.strings))
	r.stringIDs[s] = id
	return fromStringHandle(id)
}

// StringOf returns the contents of a string value.
func (r *Registry) StringOf(v Value) string {
	r.stringsMu.RLock()
	defer r.stringsMu.RUnlock()
	h := int(v.Handle())
	if h < 1 || h > len(r.strings) {
		return ""
	}
	return r.strings[h-1]
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// NewSymbol creates a fresh symbol with the given description.
func (r *Registry) NewSymbol(description string) Value {
	id := r.symbolID.Add(1)

	r.symbolsMu.Lock()
	r.symbols[id] = description
	r.symbolsMu.Unlock()
	return fromSymbolHandle(id)
}

// SymbolDescription returns a symbol's description.
func (r *Registry) SymbolDescription(v Value) string {
	r.symbolsMu.RLock()
	defer r.symbolsMu.RUnlock()
	return r.symbols[v.Handle()]
}

// importSymbol maps a symbol id from another heap to a local symbol,
// creating it on first sight. A local symbol with the same handle and
// description is taken to be the same symbol; heaps built the same way
// allocate their intrinsic symbols identically.
func (r *Registry) importSymbol(foreign uint64, description string) Value {
	r.symbolsMu.RLock()
	id, ok := r.imported[foreign]
	if !ok && foreign <= math.MaxUint32 {
		if desc, local := r.symbols[uint32(foreign)]; local && desc == description {
			id, ok = uint32(foreign), true
		}
	}
	r.symbolsMu.RUnlock()
	if ok {
		return fromSymbolHandle(id)
	}
	v := r.NewSymbol(description)

	r.symbolsMu.Lock()
	r.imported[foreign] = v.Handle()
	r.symbolsMu.Unlock()
	return v
}

// ---------------------------------------------------------------------------
// Type descriptors
// ---------------------------------------------------------------------------

// internType returns the shared descriptor equal to t, registering t if it
// is new.
func (r *Registry) internType(t Type) *Type {
	r.typesMu.Lock()
	defer r.typesMu.Unlock()
	k := t.key()
	if existing, ok := r.types[k]; ok {
		return existing
	}
	t.ID = ttd.TypeID(r.typeID.Add(1))
	nt := &t
	r.types[k] = nt
	return nt
}

// ---------------------------------------------------------------------------
// Function bodies
// ---------------------------------------------------------------------------

// FunctionBody is compiled script code shared by every closure over it. Its
// ID is derived from the name and source, so the same script registers the
// same ID in every run.
type FunctionBody struct {
	ID     ttd.ObjectID
	Name   string
	Source string
}

// bodyIDMask keeps body ids below the engine's reserved cell range.
const bodyIDMask = 1<<62 - 1

// RegisterBody registers a function body and returns it. Registering the same
// name and source twice returns the first registration.
func (r *Registry) RegisterBody(name, source string) *FunctionBody {
	hash := fnv.New64a()
	hash.Write([]byte(name))
	hash.Write([]byte{0})
	hash.Write([]byte(source))
	id := ttd.ObjectID(hash.Sum64()&bodyIDMask | 1)

	r.bodiesMu.Lock()
	defer r.bodiesMu.Unlock()
	if b, ok := r.bodies[id]; ok {
		return b
	}
	b := &FunctionBody{ID: id, Name: name, Source: source}
	r.bodies[id] = b
	return b
}

// LookupBody returns a registered body, or nil.
func (r *Registry) LookupBody(id ttd.ObjectID) *FunctionBody {
	r.bodiesMu.RLock()
	defer r.bodiesMu.RUnlock()
	return r.bodies[id]
}
