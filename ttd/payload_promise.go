package ttd

import (
	"fmt"

	"github.com/chazu/ttdsnap/wire"
)

// ---------------------------------------------------------------------------
// Promise capability and reaction records
// ---------------------------------------------------------------------------

type CapabilityInfo struct {
	Promise Value
	Resolve ObjectID
	Reject  ObjectID
}

type ReactionInfo struct {
	Capability CapabilityInfo
	Handler    ObjectID
}

func emitCapability(w wire.Writer, c CapabilityInfo) {
	w.RecordStart()
	emitValue(w, wire.KeyPromise, c.Promise)
	w.Addr(wire.KeyResolve, uint64(c.Resolve))
	w.Addr(wire.KeyReject, uint64(c.Reject))
	w.RecordEnd()
}

func parseCapability(r wire.Reader) CapabilityInfo {
	r.RecordStart()
	c := CapabilityInfo{
		Promise: parseValue(r, wire.KeyPromise),
		Resolve: ObjectID(r.Addr(wire.KeyResolve)),
		Reject:  ObjectID(r.Addr(wire.KeyReject)),
	}
	r.RecordEnd()
	return c
}

func emitReaction(w wire.Writer, re ReactionInfo) {
	w.RecordStart()
	emitCapability(w, re.Capability)
	w.Addr(wire.KeyHandler, uint64(re.Handler))
	w.RecordEnd()
}

func parseReaction(r wire.Reader) ReactionInfo {
	r.RecordStart()
	re := ReactionInfo{Capability: parseCapability(r)}
	re.Handler = ObjectID(r.Addr(wire.KeyHandler))
	r.RecordEnd()
	return re
}

func emitReactions(w wire.Writer, k wire.Key, rs []ReactionInfo) {
	w.SequenceStart(k, len(rs))
	for _, re := range rs {
		emitReaction(w, re)
	}
	w.SequenceEnd()
}

func parseReactions(r wire.Reader, k wire.Key, s *Slab) []ReactionInfo {
	n := r.SequenceStart(k)
	rs := s.Reactions(n)
	for i := 0; i < n && r.Err() == nil; i++ {
		rs[i] = parseReaction(r)
	}
	r.SequenceEnd()
	return rs
}

func (c CapabilityInfo) references(add func(ObjectID)) {
	addValue(add, c.Promise)
	addID(add, c.Resolve)
	addID(add, c.Reject)
}

func (re ReactionInfo) references(add func(ObjectID)) {
	re.Capability.references(add)
	addID(add, re.Handler)
}

func (e *Extractor) capability(c Capability) CapabilityInfo {
	return CapabilityInfo{Promise: e.value(c.Promise), Resolve: e.id(c.Resolve), Reject: e.id(c.Reject)}
}

func (e *Extractor) reaction(re Reaction) ReactionInfo {
	return ReactionInfo{Capability: e.capability(re.Capability), Handler: e.id(re.Handler)}
}

func (e *Extractor) reactions(rs []Reaction) []ReactionInfo {
	out := e.slab.Reactions(len(rs))
	for i, re := range rs {
		out[i] = e.reaction(re)
	}
	return out
}

func (m *InflateMap) capability(c CapabilityInfo) (Capability, error) {
	var out Capability
	var err error
	if out.Promise, err = m.value(c.Promise); err != nil {
		return out, err
	}
	if out.Resolve, err = m.object(c.Resolve); err != nil {
		return out, err
	}
	out.Reject, err = m.object(c.Reject)
	return out, err
}

func (m *InflateMap) reaction(re ReactionInfo) (Reaction, error) {
	c, err := m.capability(re.Capability)
	if err != nil {
		return Reaction{}, err
	}
	h, err := m.object(re.Handler)
	return Reaction{Capability: c, Handler: h}, err
}

func (m *InflateMap) reactions(rs []ReactionInfo) ([]Reaction, error) {
	out := make([]Reaction, len(rs))
	for i, re := range rs {
		var err error
		if out[i], err = m.reaction(re); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Promises
// ---------------------------------------------------------------------------

type PromiseInfo struct {
	Status           PromiseStatus
	Result           Value
	ResolveReactions []ReactionInfo
	RejectReactions  []ReactionInfo
}

func (p *PromiseInfo) emit(w wire.Writer) {
	w.Tag(wire.KeyStatus, uint32(p.Status))
	emitValue(w, wire.KeyResult, p.Result)
	emitReactions(w, wire.KeyResolveReactions, p.ResolveReactions)
	emitReactions(w, wire.KeyRejectReactions, p.RejectReactions)
}

func (p *PromiseInfo) parse(r wire.Reader, s *Slab) {
	p.Status = PromiseStatus(r.Tag(wire.KeyStatus))
	if p.Status > PromiseRejected && r.Err() == nil {
		r.Fail(fmt.Errorf("%w: promise status %d", ErrCorruptRecord, p.Status))
	}
	p.Result = parseValue(r, wire.KeyResult)
	p.ResolveReactions = parseReactions(r, wire.KeyResolveReactions, s)
	p.RejectReactions = parseReactions(r, wire.KeyRejectReactions, s)
}

func (p *PromiseInfo) dependsOn(func(ObjectID)) {}

func (p *PromiseInfo) references(add func(ObjectID)) {
	addValue(add, p.Result)
	for _, re := range p.ResolveReactions {
		re.references(add)
	}
	for _, re := range p.RejectReactions {
		re.references(add)
	}
}

func (e *Extractor) extractPromise(o Object) *PromiseInfo {
	st := e.heap.Promise(o)
	return &PromiseInfo{
		Status:           st.Status,
		Result:           e.value(st.Result),
		ResolveReactions: e.reactions(st.ResolveReactions),
		RejectReactions:  e.reactions(st.RejectReactions),
	}
}

func (m *InflateMap) populatePromise(o Object, p *PromiseInfo) error {
	st := PromiseState{Status: p.Status}
	var err error
	if st.Result, err = m.value(p.Result); err != nil {
		return err
	}
	if st.ResolveReactions, err = m.reactions(p.ResolveReactions); err != nil {
		return err
	}
	if st.RejectReactions, err = m.reactions(p.RejectReactions); err != nil {
		return err
	}
	m.heap.SetPromiseState(o, st)
	return nil
}

// ---------------------------------------------------------------------------
// Promise resolve/reject functions
// ---------------------------------------------------------------------------

// ResolveFunctionInfo describes one function of a resolve/reject pair. Cell
// names the already-resolved flag the pair shares.
type ResolveFunctionInfo struct {
	Promise         ObjectID
	IsReject        bool
	Cell            ObjectID
	AlreadyResolved bool
}

func (p *ResolveFunctionInfo) emit(w wire.Writer) {
	w.Addr(wire.KeyPromise, uint64(p.Promise))
	w.Bool(wire.KeyIsReject, p.IsReject)
	w.Addr(wire.KeyCell, uint64(p.Cell))
	w.Bool(wire.KeyAlreadyResolved, p.AlreadyResolved)
}

func (p *ResolveFunctionInfo) parse(r wire.Reader, _ *Slab) {
	p.Promise = ObjectID(r.Addr(wire.KeyPromise))
	p.IsReject = r.Bool(wire.KeyIsReject)
	p.Cell = ObjectID(r.Addr(wire.KeyCell))
	p.AlreadyResolved = r.Bool(wire.KeyAlreadyResolved)
}

func (p *ResolveFunctionInfo) dependsOn(add func(ObjectID)) { addID(add, p.Promise) }
func (p *ResolveFunctionInfo) references(add func(ObjectID)) { addID(add, p.Promise) }

func (e *Extractor) extractResolveFunction(o Object) *ResolveFunctionInfo {
	st := e.heap.ResolveFunction(o)
	p := &ResolveFunctionInfo{Promise: e.id(st.Promise), IsReject: st.IsReject}
	if st.AlreadyResolved != nil {
		p.Cell = e.cell(st.AlreadyResolved)
		p.AlreadyResolved = *st.AlreadyResolved
	}
	return p
}

func (m *InflateMap) createResolveFunction(rec *Record, p *ResolveFunctionInfo) (Object, error) {
	promise, err := m.object(p.Promise)
	if err != nil {
		return nil, err
	}
	st := ResolveFunctionState{
		Promise:         promise,
		IsReject:        p.IsReject,
		AlreadyResolved: m.resolvedCell(p.Cell, p.AlreadyResolved),
	}
	return m.heap.CreateResolveFunction(m.typeName(rec), st), nil
}

// ---------------------------------------------------------------------------
// Promise reaction task functions
// ---------------------------------------------------------------------------

type ReactionTaskInfo struct {
	Argument Value
	Reaction ReactionInfo
}

func (p *ReactionTaskInfo) emit(w wire.Writer) {
	emitValue(w, wire.KeyArgument, p.Argument)
	emitReaction(w, p.Reaction)
}

func (p *ReactionTaskInfo) parse(r wire.Reader, _ *Slab) {
	p.Argument = parseValue(r, wire.KeyArgument)
	p.Reaction = parseReaction(r)
}

func (p *ReactionTaskInfo) dependsOn(func(ObjectID)) {}

func (p *ReactionTaskInfo) references(add func(ObjectID)) {
	addValue(add, p.Argument)
	p.Reaction.references(add)
}

func (e *Extractor) extractReactionTask(o Object) *ReactionTaskInfo {
	st := e.heap.ReactionTask(o)
	return &ReactionTaskInfo{Argument: e.value(st.Argument), Reaction: e.reaction(st.Reaction)}
}

func (m *InflateMap) populateReactionTask(o Object, p *ReactionTaskInfo) error {
	arg, err := m.value(p.Argument)
	if err != nil {
		return err
	}
	re, err := m.reaction(p.Reaction)
	if err != nil {
		return err
	}
	m.heap.SetReactionTask(o, ReactionTaskState{Argument: arg, Reaction: re})
	return nil
}

// ---------------------------------------------------------------------------
// Promise.all resolve element functions
// ---------------------------------------------------------------------------

// AllResolveElementInfo describes one Promise.all element function. Cell
// names the remaining-elements counter shared by every element of one call.
type AllResolveElementInfo struct {
	Capability    CapabilityInfo
	Index         uint32
	Cell          ObjectID
	Remaining     uint32
	Values        ObjectID
	AlreadyCalled bool
}

func (p *AllResolveElementInfo) emit(w wire.Writer) {
	emitCapability(w, p.Capability)
	w.Uint32(wire.KeyIndex, p.Index)
	w.Addr(wire.KeyCell, uint64(p.Cell))
	w.Uint32(wire.KeyRemaining, p.Remaining)
	w.Addr(wire.KeyValues, uint64(p.Values))
	w.Bool(wire.KeyAlreadyCalled, p.AlreadyCalled)
}

func (p *AllResolveElementInfo) parse(r wire.Reader, _ *Slab) {
	p.Capability = parseCapability(r)
	p.Index = r.Uint32(wire.KeyIndex)
	p.Cell = ObjectID(r.Addr(wire.KeyCell))
	p.Remaining = r.Uint32(wire.KeyRemaining)
	p.Values = ObjectID(r.Addr(wire.KeyValues))
	p.AlreadyCalled = r.Bool(wire.KeyAlreadyCalled)
}

func (p *AllResolveElementInfo) dependsOn(func(ObjectID)) {}

func (p *AllResolveElementInfo) references(add func(ObjectID)) {
	p.Capability.references(add)
	addID(add, p.Values)
}

func (e *Extractor) extractAllResolveElement(o Object) *AllResolveElementInfo {
	st := e.heap.AllResolveElement(o)
	p := &AllResolveElementInfo{
		Capability:    e.capability(st.Capability),
		Index:         st.Index,
		Values:        e.id(st.Values),
		AlreadyCalled: st.AlreadyCalled,
	}
	if st.Remaining != nil {
		p.Cell = e.cell(st.Remaining)
		p.Remaining = *st.Remaining
	}
	return p
}

func (m *InflateMap) createAllResolveElement(rec *Record, p *AllResolveElementInfo) Object {
	remaining := m.remainingCell(p.Cell, p.Remaining)
	return m.heap.CreateAllResolveElement(m.typeName(rec), p.Index, remaining, p.AlreadyCalled)
}

func (m *InflateMap) populateAllResolveElement(o Object, p *AllResolveElementInfo) error {
	c, err := m.capability(p.Capability)
	if err != nil {
		return err
	}
	values, err := m.object(p.Values)
	if err != nil {
		return err
	}
	m.heap.SetAllResolveElementLinks(o, c, values)
	return nil
}
