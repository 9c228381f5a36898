package ttd

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru"
)

type inflateState uint8

const (
	stateUnseen inflateState = iota
	stateInflating
	stateShell
	statePopulated
)

// InflateStats counts how shells were obtained in the last pass.
type InflateStats struct {
	Fresh     int
	Reused    int
	WellKnown int
}

// ---------------------------------------------------------------------------
// InflateMap: per-pass identity -> live object table
// ---------------------------------------------------------------------------

// InflateMap owns all state for one inflation pass. It is not safe for
// concurrent use. After a pass, PrepForReInflate keeps the pass's objects
// around so the next pass can reset them in place.
type InflateMap struct {
	heap  Heap
	index *Index

	objects map[ObjectID]Object
	old     map[ObjectID]Object
	state   map[ObjectID]inflateState

	resolved  map[ObjectID]*bool
	remaining map[ObjectID]*uint32

	propertyReset map[string]struct{}

	// wellKnown caches token -> object. Singletons keep their identity, so
	// the cache lives across passes.
	wellKnown *lru.Cache

	stats InflateStats
}

// NewInflateMap returns a map that inflates into h. cacheSize bounds the
// well-known lookup cache; zero means the default.
func NewInflateMap(h Heap, cacheSize int) (*InflateMap, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultWellKnownCache
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("ttd: well-known cache: %w", err)
	}
	m := &InflateMap{heap: h, wellKnown: cache}
	m.resetPass()
	return m, nil
}

func (m *InflateMap) resetPass() {
	m.objects = make(map[ObjectID]Object)
	m.state = make(map[ObjectID]inflateState)
	m.resolved = make(map[ObjectID]*bool)
	m.remaining = make(map[ObjectID]*uint32)
	m.propertyReset = make(map[string]struct{})
	m.stats = InflateStats{}
}

// PrepForReInflate moves the last pass's objects into the reuse table. The
// next Inflate resets them in place where it can.
func (m *InflateMap) PrepForReInflate() {
	m.old = m.objects
	m.objects = make(map[ObjectID]Object)
}

// Stats reports counts for the last pass.
func (m *InflateMap) Stats() InflateStats { return m.stats }

// ResetProperties lists, sorted, the names of properties removed or
// overwritten while resetting well-known objects in the last pass.
func (m *InflateMap) ResetProperties() []string {
	names := make([]string, 0, len(m.propertyReset))
	for n := range m.propertyReset {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Inflate rebuilds snap into the live heap. Every record first gets a shell,
// registered under its id; then every shell is populated. On error the heap
// is left in an unspecified state and the pass must be restarted.
func (m *InflateMap) Inflate(snap *Snapshot) error {
	ix, err := NewIndex(snap)
	if err != nil {
		return err
	}
	m.index = ix
	m.resetPass()

	if blocked := m.blockingWellKnown(snap); len(blocked) > 0 {
		return &ReuseBlockedError{IDs: blocked}
	}

	for _, rec := range snap.Objects {
		if _, err := m.shell(rec); err != nil {
			return err
		}
	}
	for _, rec := range snap.Objects {
		if err := m.populate(rec); err != nil {
			return err
		}
	}
	m.old = nil

	inflateLog.Infof("inflated %d objects (fresh %d, reused %d, well-known %d)",
		len(snap.Objects), m.stats.Fresh, m.stats.Reused, m.stats.WellKnown)
	return nil
}

// blockingWellKnown checks every well-known record before anything is
// mutated.
func (m *InflateMap) blockingWellKnown(snap *Snapshot) []ObjectID {
	var blocked []ObjectID
	for _, rec := range snap.Objects {
		if rec.WellKnown == "" {
			continue
		}
		obj, ok := m.resolveWellKnown(rec.WellKnown)
		if ok && m.BlocksContextReuse(rec, obj) {
			blocked = append(blocked, rec.ID)
		}
	}
	return blocked
}

// LookupObject returns the live object for id, creating its shell on demand
// if it has not been reached yet.
func (m *InflateMap) LookupObject(id ObjectID) (Object, error) {
	if obj, ok := m.objects[id]; ok {
		return obj, nil
	}
	if m.index == nil {
		return nil, fmt.Errorf("%w: %s (no pass in progress)", ErrUnresolvedRef, id)
	}
	rec := m.index.Record(id)
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedRef, id)
	}
	return m.shell(rec)
}

// object is LookupObject that maps the invalid id to nil.
func (m *InflateMap) object(id ObjectID) (Object, error) {
	if id == InvalidID {
		return nil, nil
	}
	return m.LookupObject(id)
}

// InflateValue resolves a tagged value to a live value.
func (m *InflateMap) InflateValue(v Value) (Var, error) { return m.value(v) }

func (m *InflateMap) value(v Value) (Var, error) {
	if !v.IsRef() {
		return PrimVar(v), nil
	}
	o, err := m.LookupObject(v.ID())
	if err != nil {
		return Var{}, err
	}
	return ObjVar(o), nil
}

func (m *InflateMap) values(vs []Value) ([]Var, error) {
	out := make([]Var, len(vs))
	for i, v := range vs {
		var err error
		if out[i], err = m.value(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *InflateMap) typeName(rec *Record) string {
	if t := m.index.Type(rec.Type); t != nil {
		return t.Name
	}
	return ""
}

func (m *InflateMap) resolveWellKnown(tok WellKnownToken) (Object, bool) {
	if v, ok := m.wellKnown.Get(tok); ok {
		return v, true
	}
	obj, ok := m.heap.ResolveWellKnown(tok)
	if ok {
		m.wellKnown.Add(tok, obj)
	}
	return obj, ok
}

// resolvedCell returns the shared already-resolved flag named id, creating
// it with init on first use.
func (m *InflateMap) resolvedCell(id ObjectID, init bool) *bool {
	if id == InvalidID {
		return &init
	}
	if c, ok := m.resolved[id]; ok {
		return c
	}
	c := &init
	m.resolved[id] = c
	return c
}

func (m *InflateMap) remainingCell(id ObjectID, init uint32) *uint32 {
	if id == InvalidID {
		return &init
	}
	if c, ok := m.remaining[id]; ok {
		return c
	}
	c := &init
	m.remaining[id] = c
	return c
}

// ---------------------------------------------------------------------------
// Phase one: Unseen -> Shell
// ---------------------------------------------------------------------------

func (m *InflateMap) shell(rec *Record) (Object, error) {
	switch m.state[rec.ID] {
	case stateShell, statePopulated:
		return m.objects[rec.ID], nil
	case stateInflating:
		return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, rec)
	}
	m.state[rec.ID] = stateInflating

	if m.index.Type(rec.Type) == nil {
		return nil, fmt.Errorf("%w: %s type %d", ErrUnknownType, rec, rec.Type)
	}
	for _, dep := range rec.DependsOn {
		if _, err := m.LookupObject(dep); err != nil {
			return nil, fmt.Errorf("shell for %s: %w", rec, err)
		}
	}

	obj, err := m.allocate(rec)
	if err != nil {
		return nil, err
	}
	m.objects[rec.ID] = obj
	m.state[rec.ID] = stateShell
	return obj, nil
}

func (m *InflateMap) allocate(rec *Record) (Object, error) {
	if rec.WellKnown != "" {
		obj, ok := m.resolveWellKnown(rec.WellKnown)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownWellKnown, rec)
		}
		m.ObjectPropertyResetWellKnown(rec, obj)
		m.stats.WellKnown++
		return obj, nil
	}

	if old, ok := m.old[rec.ID]; ok && m.canReuse(rec, old) && m.ObjectPropertyResetGeneral(rec, old) {
		inflateLog.Debugf("reusing %s", rec)
		m.stats.Reused++
		return old, nil
	}

	obj, err := m.create(rec)
	if err != nil {
		return nil, err
	}
	m.stats.Fresh++
	return obj, nil
}

// canReuse checks kind, cross-site flag and type before an in-place reset is
// attempted.
func (m *InflateMap) canReuse(rec *Record, old Object) bool {
	if !rec.Kind.Reusable() {
		return false
	}
	if m.heap.KindOf(old) != rec.Kind || m.heap.IsCrossSite(old) != rec.CrossSite {
		return false
	}
	if m.heap.TypeOf(old).Name != m.typeName(rec) {
		return false
	}
	if p, ok := rec.Payload.(*ScriptFunctionInfo); ok {
		return m.heap.ScriptFunction(old).Body == p.Body
	}
	return true
}

func payloadAs[T Payload](rec *Record) (T, error) {
	p, ok := rec.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s has %T", ErrPayloadMismatch, rec, rec.Payload)
	}
	return p, nil
}

// create allocates a fresh shell for rec.
func (m *InflateMap) create(rec *Record) (Object, error) {
	name := m.typeName(rec)
	switch rec.Kind {
	case KindDynamicObject, KindExternalObject, KindActivation, KindBlockActivation,
		KindPseudoActivation, KindConsoleScopeActivation, KindActivationEx, KindError,
		KindBoxedValue, KindArray, KindNativeIntArray, KindNativeFloatArray, KindES5Array,
		KindSet, KindWeakSet, KindMap, KindWeakMap, KindPromise, KindPromiseReactionTaskFunction:
		return m.heap.NewShell(rec.Kind, name), nil

	case KindScriptFunction:
		p, err := payloadAs[*ScriptFunctionInfo](rec)
		if err != nil {
			return nil, err
		}
		return m.createScriptFunction(rec, p)
	case KindExternalFunction:
		p, err := payloadAs[*ExternalFunctionInfo](rec)
		if err != nil {
			return nil, err
		}
		return m.heap.CreateExternalFunction(name, p.Name), nil
	case KindRevokerFunction:
		p, err := payloadAs[*RevokerInfo](rec)
		if err != nil {
			return nil, err
		}
		return m.createRevoker(rec, p)
	case KindBoundFunction:
		p, err := payloadAs[*BoundFunctionInfo](rec)
		if err != nil {
			return nil, err
		}
		return m.createBoundFunction(rec, p)
	case KindHeapArguments, KindES5HeapArguments:
		p, err := payloadAs[*ArgumentsInfo](rec)
		if err != nil {
			return nil, err
		}
		return m.createArguments(rec, p)
	case KindDate:
		p, err := payloadAs[*DateInfo](rec)
		if err != nil {
			return nil, err
		}
		return m.heap.CreateDate(name, p.Time), nil
	case KindRegex:
		p, err := payloadAs[*RegexInfo](rec)
		if err != nil {
			return nil, err
		}
		return m.heap.CreateRegex(name, p.Pattern, p.Flags), nil
	case KindArrayBuffer:
		p, err := payloadAs[*ArrayBufferInfo](rec)
		if err != nil {
			return nil, err
		}
		return m.heap.CreateArrayBuffer(name, append([]byte(nil), p.Bytes...)), nil
	case KindTypedArray:
		p, err := payloadAs[*TypedArrayInfo](rec)
		if err != nil {
			return nil, err
		}
		return m.createTypedArray(rec, p)
	case KindProxy:
		p, err := payloadAs[*ProxyInfo](rec)
		if err != nil {
			return nil, err
		}
		return m.createProxy(rec, p)
	case KindPromiseResolveOrRejectFunction:
		p, err := payloadAs[*ResolveFunctionInfo](rec)
		if err != nil {
			return nil, err
		}
		return m.createResolveFunction(rec, p)
	case KindPromiseAllResolveElementFunction:
		p, err := payloadAs[*AllResolveElementInfo](rec)
		if err != nil {
			return nil, err
		}
		return m.createAllResolveElement(rec, p), nil

	case KindRuntimeFunction, KindWellKnownObject:
		return nil, fmt.Errorf("%w: %s has no well-known token", ErrNotInflatable, rec)
	case KindUnhandled, KindInvalid:
		return nil, fmt.Errorf("%w: %s", ErrNotInflatable, rec)
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(rec.Kind))
}

// ---------------------------------------------------------------------------
// Phase two: Shell -> Populated
// ---------------------------------------------------------------------------

func (m *InflateMap) populate(rec *Record) error {
	switch m.state[rec.ID] {
	case statePopulated:
		return nil
	case stateShell:
	default:
		return fmt.Errorf("%w: %s has no shell", ErrNotPopulated, rec)
	}
	obj := m.objects[rec.ID]
	if err := m.StdPropertyRestore(rec, obj); err != nil {
		return fmt.Errorf("restore %s: %w", rec, err)
	}
	if err := m.populateAddtl(rec, obj); err != nil {
		return fmt.Errorf("populate %s: %w", rec, err)
	}
	m.state[rec.ID] = statePopulated
	return nil
}

// populateAddtl installs kind-specific state the property restorer does not
// know about.
func (m *InflateMap) populateAddtl(rec *Record, obj Object) error {
	switch p := rec.Payload.(type) {
	case *PlainInfo, *ExternalFunctionInfo, *RevokerInfo, *ArgumentsInfo, *DateInfo,
		*ProxyInfo, *ArrayBufferInfo, *TypedArrayInfo, *ResolveFunctionInfo:
		return nil
	case *ScriptFunctionInfo:
		return m.populateScriptFunction(obj, p)
	case *BoundFunctionInfo:
		return m.populateBoundFunction(obj, p)
	case *BoxedValueInfo:
		return m.populateBoxedValue(obj, p)
	case *RegexInfo:
		return m.populateRegex(obj, p)
	case *VarArrayInfo:
		return m.populateVarArray(obj, p)
	case *IntArrayInfo:
		return m.populateIntArray(obj, p)
	case *FloatArrayInfo:
		return m.populateFloatArray(obj, p)
	case *ES5ArrayInfo:
		return m.populateES5Array(obj, p)
	case *SetInfo:
		return m.populateSet(obj, p)
	case *MapInfo:
		return m.populateMap(obj, p)
	case *PromiseInfo:
		return m.populatePromise(obj, p)
	case *ReactionTaskInfo:
		return m.populateReactionTask(obj, p)
	case *AllResolveElementInfo:
		return m.populateAllResolveElement(obj, p)
	}
	return fmt.Errorf("%w: %s has %T", ErrPayloadMismatch, rec, rec.Payload)
}
