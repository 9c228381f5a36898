package ttd

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultWellKnownCache is the default size of the address -> well-known
// token cache.
const DefaultWellKnownCache = 256

// LiveRoot is a named entry point into the live heap.
type LiveRoot struct {
	Name  string
	Value Var
}

// ---------------------------------------------------------------------------
// Extractor
// ---------------------------------------------------------------------------

// Extractor turns live objects into records. All slices it builds come from
// its slab. An Extractor is single-threaded; the caller must keep the heap
// from mutating while it runs.
type Extractor struct {
	heap Heap
	slab *Slab

	types     map[TypeID]*TypeRecord
	typeOrder []*TypeRecord

	// live remembers every object seen by id so reachability walks can go
	// from a reference back to the object.
	live map[ObjectID]Object

	cells    map[any]ObjectID
	nextCell ObjectID

	// wellKnown caches address -> token. It is kept across Reset since
	// singletons never move.
	wellKnown *lru.Cache
}

// NewExtractor returns an extractor over h that allocates from slab.
// cacheSize bounds the well-known token cache; zero means the default.
func NewExtractor(h Heap, slab *Slab, cacheSize int) (*Extractor, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultWellKnownCache
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("ttd: well-known cache: %w", err)
	}
	if slab == nil {
		slab = NewSlab(0)
	}
	e := &Extractor{heap: h, slab: slab, wellKnown: cache}
	e.Reset()
	return e, nil
}

// Reset prepares for a new pass. The slab is reset too, so records from the
// previous pass become invalid.
func (e *Extractor) Reset() {
	e.slab.Reset()
	e.types = make(map[TypeID]*TypeRecord)
	e.typeOrder = nil
	e.live = make(map[ObjectID]Object)
	e.cells = make(map[any]ObjectID)
	e.nextCell = cellBase
}

// PurgeWellKnown drops the well-known cache. Hosts that recycle addresses
// must call it between passes.
func (e *Extractor) PurgeWellKnown() { e.wellKnown.Purge() }

func (e *Extractor) id(o Object) ObjectID {
	if o == nil {
		return InvalidID
	}
	addr := e.heap.Address(o)
	e.live[addr] = o
	return addr
}

func (e *Extractor) value(v Var) Value {
	if v.Obj != nil {
		return Ref(e.id(v.Obj))
	}
	return v.Prim
}

func (e *Extractor) values(vs []Var) []Value {
	out := e.slab.Values(len(vs))
	for i, v := range vs {
		out[i] = e.value(v)
	}
	return out
}

// cell maps a shared host cell to a stable token. ptr must be a pointer.
func (e *Extractor) cell(ptr any) ObjectID {
	if id, ok := e.cells[ptr]; ok {
		return id
	}
	e.nextCell++
	e.cells[ptr] = e.nextCell
	return e.nextCell
}

func (e *Extractor) wellKnownToken(o Object, addr ObjectID) WellKnownToken {
	if v, ok := e.wellKnown.Get(addr); ok {
		return v.(WellKnownToken)
	}
	tok := e.heap.WellKnownToken(o)
	e.wellKnown.Add(addr, tok)
	return tok
}

func (e *Extractor) registerType(ti TypeInfo) {
	if _, ok := e.types[ti.ID]; ok {
		return
	}
	tr := &TypeRecord{
		ID:                        ti.ID,
		Name:                      ti.Name,
		Prototype:                 RefOrNull(e.id(ti.Prototype)),
		Extensible:                ti.Extensible,
		HasNoEnumerableProperties: ti.HasNoEnumerableProperties,
	}
	e.types[ti.ID] = tr
	e.typeOrder = append(e.typeOrder, tr)
}

// Types returns the type records registered so far, in first-seen order.
func (e *Extractor) Types() []*TypeRecord { return e.typeOrder }

// Extract builds the record for one live object. It does not require o to be
// reachable from anything else already extracted.
func (e *Extractor) Extract(o Object) (*Record, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: extract nil object", ErrUnresolvedRef)
	}
	rec := e.slab.Record()
	rec.ID = e.id(o)
	rec.Kind = e.heap.KindOf(o)
	if !rec.Kind.Valid() {
		return nil, fmt.Errorf("%w: %s reports kind %d", ErrUnknownKind, rec.ID, uint8(rec.Kind))
	}
	rec.WellKnown = e.wellKnownToken(o, rec.ID)

	e.extractCommon(o, rec)

	p, err := e.extractPayload(o, rec.Kind)
	if err != nil {
		return nil, err
	}
	rec.Payload = p

	var deps []ObjectID
	seen := make(map[ObjectID]bool)
	p.dependsOn(func(id ObjectID) {
		if !seen[id] {
			seen[id] = true
			deps = append(deps, id)
		}
	})
	rec.DependsOn = e.slab.IDs(len(deps))
	copy(rec.DependsOn, deps)
	return rec, nil
}

// extractCommon fills the identity-independent common part: type, cross-site
// flag, property table and indexed elements.
func (e *Extractor) extractCommon(o Object, rec *Record) {
	ti := e.heap.TypeOf(o)
	e.registerType(ti)
	rec.Type = ti.ID
	rec.CrossSite = e.heap.IsCrossSite(o)

	slots := e.heap.Slots(o)
	rec.Properties = e.slab.Properties(len(slots))
	for i, s := range slots {
		pe := PropertyEntry{Name: s.Name, Kind: s.Kind, Attrs: s.Attrs & AttrAll}
		switch s.Kind {
		case SlotData:
			pe.Value = e.value(s.Value)
		case SlotGetter, SlotSetter:
			pe.Value = RefOrNull(e.id(s.Value.Obj))
		}
		rec.Properties[i] = pe
	}
	rec.Indexed = e.id(e.heap.IndexedElements(o))
}

func (e *Extractor) extractPayload(o Object, k Kind) (Payload, error) {
	switch k {
	case KindUnhandled, KindDynamicObject, KindExternalObject, KindRuntimeFunction,
		KindActivation, KindBlockActivation, KindPseudoActivation,
		KindConsoleScopeActivation, KindActivationEx, KindError, KindWellKnownObject:
		return &PlainInfo{}, nil
	case KindScriptFunction:
		return e.extractScriptFunction(o), nil
	case KindExternalFunction:
		return &ExternalFunctionInfo{Name: e.heap.ExternalFunctionName(o)}, nil
	case KindRevokerFunction:
		return &RevokerInfo{Proxy: e.id(e.heap.RevokerProxy(o))}, nil
	case KindBoundFunction:
		return e.extractBoundFunction(o), nil
	case KindHeapArguments, KindES5HeapArguments:
		return e.extractArguments(o), nil
	case KindBoxedValue:
		return &BoxedValueInfo{Value: e.value(e.heap.BoxedValue(o))}, nil
	case KindDate:
		return &DateInfo{Time: e.heap.DateValue(o)}, nil
	case KindRegex:
		return e.extractRegex(o), nil
	case KindArray:
		return e.extractVarArray(o), nil
	case KindNativeIntArray:
		return e.extractIntArray(o), nil
	case KindNativeFloatArray:
		return e.extractFloatArray(o), nil
	case KindES5Array:
		return e.extractES5Array(o), nil
	case KindArrayBuffer:
		return &ArrayBufferInfo{Bytes: e.slab.Bytes(e.heap.ArrayBufferBytes(o))}, nil
	case KindTypedArray:
		st := e.heap.TypedArray(o)
		return &TypedArrayInfo{Buffer: e.id(st.Buffer), ByteOffset: st.ByteOffset, Length: st.Length}, nil
	case KindSet, KindWeakSet:
		return e.extractSet(o), nil
	case KindMap, KindWeakMap:
		return e.extractMap(o), nil
	case KindProxy:
		handler, target := e.heap.Proxy(o)
		return &ProxyInfo{Handler: e.id(handler), Target: e.id(target)}, nil
	case KindPromise:
		return e.extractPromise(o), nil
	case KindPromiseResolveOrRejectFunction:
		return e.extractResolveFunction(o), nil
	case KindPromiseReactionTaskFunction:
		return e.extractReactionTask(o), nil
	case KindPromiseAllResolveElementFunction:
		return e.extractAllResolveElement(o), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
}

// ExtractAll extracts every object reachable from roots, breadth first, plus
// the host's pending async buffers.
func (e *Extractor) ExtractAll(roots []LiveRoot) (*Snapshot, error) {
	snap := &Snapshot{}
	seen := make(map[ObjectID]bool)
	var queue []ObjectID
	push := func(id ObjectID) {
		if id == InvalidID || id.IsCell() || seen[id] {
			return
		}
		seen[id] = true
		queue = append(queue, id)
	}

	for _, r := range roots {
		v := e.value(r.Value)
		snap.Roots = append(snap.Roots, Root{Name: r.Name, Value: v})
		addValue(push, v)
	}
	for _, b := range e.heap.PendingAsyncBuffers() {
		id := e.id(b)
		snap.PendingAsyncBuffers = append(snap.PendingAsyncBuffers, id)
		push(id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		rec, err := e.Extract(e.live[id])
		if err != nil {
			return nil, err
		}
		snap.Objects = append(snap.Objects, rec)
		e.recordRefs(rec, push)
	}
	snap.Types = e.typeOrder

	extractLog.Debugf("extracted %d objects, %d types, %d slab chunks",
		len(snap.Objects), len(snap.Types), e.slab.Chunks())
	return snap, nil
}

func (e *Extractor) recordRefs(rec *Record, add func(ObjectID)) {
	if t := e.types[rec.Type]; t != nil {
		addValue(add, t.Prototype)
	}
	recordRefs(rec, add)
}

// recordRefs reports every object a record points at, excluding its type's
// prototype.
func recordRefs(rec *Record, add func(ObjectID)) {
	for _, p := range rec.Properties {
		addValue(add, p.Value)
	}
	addID(add, rec.Indexed)
	if rec.Payload != nil {
		rec.Payload.references(add)
	}
}
