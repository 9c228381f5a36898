package ttd

import (
	"fmt"

	"github.com/chazu/ttdsnap/wire"
)

// ---------------------------------------------------------------------------
// Script functions
// ---------------------------------------------------------------------------

// ScriptFunctionInfo holds a script function's body reference and the
// environment it closes over. Scope is the frame display, innermost first.
type ScriptFunctionInfo struct {
	Name              string
	Body              ObjectID
	Scope             []ObjectID
	CachedScope       ObjectID
	HomeObject        ObjectID
	ComputedName      Value
	HasSuperReference bool
}

func (p *ScriptFunctionInfo) emit(w wire.Writer) {
	w.String(wire.KeyName, p.Name)
	w.Addr(wire.KeyBody, uint64(p.Body))
	emitIDs(w, wire.KeyScope, p.Scope)
	w.Addr(wire.KeyCachedScope, uint64(p.CachedScope))
	w.Addr(wire.KeyHomeObject, uint64(p.HomeObject))
	emitValue(w, wire.KeyComputedName, p.ComputedName)
	w.Bool(wire.KeyHasSuper, p.HasSuperReference)
}

func (p *ScriptFunctionInfo) parse(r wire.Reader, s *Slab) {
	p.Name = r.String(wire.KeyName)
	p.Body = ObjectID(r.Addr(wire.KeyBody))
	p.Scope = parseIDs(r, wire.KeyScope, s)
	p.CachedScope = ObjectID(r.Addr(wire.KeyCachedScope))
	p.HomeObject = ObjectID(r.Addr(wire.KeyHomeObject))
	p.ComputedName = parseValue(r, wire.KeyComputedName)
	p.HasSuperReference = r.Bool(wire.KeyHasSuper)
}

func (p *ScriptFunctionInfo) dependsOn(func(ObjectID)) {}

func (p *ScriptFunctionInfo) references(add func(ObjectID)) {
	for _, id := range p.Scope {
		addID(add, id)
	}
	addID(add, p.CachedScope)
	addID(add, p.HomeObject)
	addValue(add, p.ComputedName)
}

func (e *Extractor) extractScriptFunction(o Object) *ScriptFunctionInfo {
	st := e.heap.ScriptFunction(o)
	p := &ScriptFunctionInfo{
		Name:              st.Name,
		Body:              st.Body,
		Scope:             e.slab.IDs(len(st.Scope)),
		CachedScope:       e.id(st.CachedScope),
		HomeObject:        e.id(st.HomeObject),
		ComputedName:      e.value(st.ComputedName),
		HasSuperReference: st.HasSuperReference,
	}
	for i, s := range st.Scope {
		p.Scope[i] = e.id(s)
	}
	return p
}

func (m *InflateMap) createScriptFunction(rec *Record, p *ScriptFunctionInfo) (Object, error) {
	fn, err := m.heap.CreateScriptFunction(m.typeName(rec), p.Body, p.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s body %s: %v", ErrUnknownBody, rec.ID, p.Body, err)
	}
	return fn, nil
}

func (m *InflateMap) populateScriptFunction(fn Object, p *ScriptFunctionInfo) error {
	st := ScriptFunctionState{
		Name:              p.Name,
		Body:              p.Body,
		Scope:             make([]Object, len(p.Scope)),
		HasSuperReference: p.HasSuperReference,
	}
	var err error
	for i, id := range p.Scope {
		if st.Scope[i], err = m.object(id); err != nil {
			return err
		}
	}
	if st.CachedScope, err = m.object(p.CachedScope); err != nil {
		return err
	}
	if st.HomeObject, err = m.object(p.HomeObject); err != nil {
		return err
	}
	if st.ComputedName, err = m.value(p.ComputedName); err != nil {
		return err
	}
	m.heap.SetScriptFunctionLinks(fn, st)
	return nil
}

// ---------------------------------------------------------------------------
// External functions and proxy revokers
// ---------------------------------------------------------------------------

type ExternalFunctionInfo struct {
	Name string
}

func (p *ExternalFunctionInfo) emit(w wire.Writer) { w.String(wire.KeyName, p.Name) }
func (p *ExternalFunctionInfo) parse(r wire.Reader, _ *Slab) { p.Name = r.String(wire.KeyName) }
func (p *ExternalFunctionInfo) dependsOn(func(ObjectID))      {}
func (p *ExternalFunctionInfo) references(func(ObjectID))     {}

// RevokerInfo points at the proxy a revoke function will revoke. Proxy is
// invalid once the proxy has been revoked.
type RevokerInfo struct {
	Proxy ObjectID
}

func (p *RevokerInfo) emit(w wire.Writer) { w.Addr(wire.KeyProxy, uint64(p.Proxy)) }
func (p *RevokerInfo) parse(r wire.Reader, _ *Slab) { p.Proxy = ObjectID(r.Addr(wire.KeyProxy)) }
func (p *RevokerInfo) dependsOn(add func(ObjectID)) { addID(add, p.Proxy) }
func (p *RevokerInfo) references(add func(ObjectID)) { addID(add, p.Proxy) }

func (m *InflateMap) createRevoker(rec *Record, p *RevokerInfo) (Object, error) {
	proxy, err := m.object(p.Proxy)
	if err != nil {
		return nil, err
	}
	return m.heap.CreateRevoker(m.typeName(rec), proxy), nil
}

// ---------------------------------------------------------------------------
// Bound functions
// ---------------------------------------------------------------------------

// BoundFunctionInfo holds the bound target, receiver and leading arguments.
// Only the target is needed to create the shell; the receiver and arguments
// are linked in phase two so argument cycles resolve.
type BoundFunctionInfo struct {
	Target ObjectID
	This   Value
	Args   []Value
}

func (p *BoundFunctionInfo) emit(w wire.Writer) {
	w.Addr(wire.KeyTarget, uint64(p.Target))
	emitValue(w, wire.KeyBoundThis, p.This)
	emitValues(w, wire.KeyArgs, p.Args)
}

func (p *BoundFunctionInfo) parse(r wire.Reader, s *Slab) {
	p.Target = ObjectID(r.Addr(wire.KeyTarget))
	p.This = parseValue(r, wire.KeyBoundThis)
	p.Args = parseValues(r, wire.KeyArgs, s)
}

func (p *BoundFunctionInfo) dependsOn(add func(ObjectID)) { addID(add, p.Target) }

func (p *BoundFunctionInfo) references(add func(ObjectID)) {
	addID(add, p.Target)
	addValue(add, p.This)
	for _, v := range p.Args {
		addValue(add, v)
	}
}

func (e *Extractor) extractBoundFunction(o Object) *BoundFunctionInfo {
	st := e.heap.BoundFunction(o)
	return &BoundFunctionInfo{
		Target: e.id(st.Target),
		This:   e.value(st.This),
		Args:   e.values(st.Args),
	}
}

func (m *InflateMap) createBoundFunction(rec *Record, p *BoundFunctionInfo) (Object, error) {
	target, err := m.object(p.Target)
	if err != nil {
		return nil, err
	}
	return m.heap.CreateBoundFunction(m.typeName(rec), target), nil
}

func (m *InflateMap) populateBoundFunction(fn Object, p *BoundFunctionInfo) error {
	this, err := m.value(p.This)
	if err != nil {
		return err
	}
	args, err := m.values(p.Args)
	if err != nil {
		return err
	}
	m.heap.SetBoundFunctionArgs(fn, this, args)
	return nil
}

// ---------------------------------------------------------------------------
// Heap arguments objects
// ---------------------------------------------------------------------------

// ArgumentsInfo describes an arguments object. Frame is the activation the
// formals alias, or invalid when the frame is gone.
type ArgumentsInfo struct {
	Frame       ObjectID
	NumArgs     uint32
	FormalCount uint32
	Deleted     []bool
}

func (p *ArgumentsInfo) emit(w wire.Writer) {
	w.Addr(wire.KeyFrame, uint64(p.Frame))
	w.Uint32(wire.KeyNumArgs, p.NumArgs)
	w.Uint32(wire.KeyFormalCount, p.FormalCount)
	emitBools(w, wire.KeyDeleted, p.Deleted)
}

func (p *ArgumentsInfo) parse(r wire.Reader, s *Slab) {
	p.Frame = ObjectID(r.Addr(wire.KeyFrame))
	p.NumArgs = r.Uint32(wire.KeyNumArgs)
	p.FormalCount = r.Uint32(wire.KeyFormalCount)
	p.Deleted = parseBools(r, wire.KeyDeleted, s)
}

func (p *ArgumentsInfo) dependsOn(add func(ObjectID)) { addID(add, p.Frame) }
func (p *ArgumentsInfo) references(add func(ObjectID)) { addID(add, p.Frame) }

func (e *Extractor) extractArguments(o Object) *ArgumentsInfo {
	st := e.heap.Arguments(o)
	p := &ArgumentsInfo{
		Frame:       e.id(st.Frame),
		NumArgs:     st.NumArgs,
		FormalCount: st.FormalCount,
		Deleted:     e.slab.Bools(len(st.Deleted)),
	}
	copy(p.Deleted, st.Deleted)
	return p
}

func (m *InflateMap) createArguments(rec *Record, p *ArgumentsInfo) (Object, error) {
	frame, err := m.object(p.Frame)
	if err != nil {
		return nil, err
	}
	st := ArgumentsState{
		Frame:       frame,
		NumArgs:     p.NumArgs,
		FormalCount: p.FormalCount,
		Deleted:     append([]bool(nil), p.Deleted...),
	}
	return m.heap.CreateArguments(rec.Kind, m.typeName(rec), st), nil
}
