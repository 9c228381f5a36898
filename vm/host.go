package vm

import (
	"fmt"

	"github.com/chazu/ttdsnap/ttd"
)

// ---------------------------------------------------------------------------
// ttd.Internals: reading per-kind state
// ---------------------------------------------------------------------------

func (h *Heap) vars(vs []Value) []ttd.Var {
	out := make([]ttd.Var, len(vs))
	for i, v := range vs {
		out[i] = h.ToVar(v)
	}
	return out
}

func (h *Heap) values(vs []ttd.Var) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = h.FromVar(v)
	}
	return out
}

func objects(os []*Object) []ttd.Object {
	out := make([]ttd.Object, len(os))
	for i, o := range os {
		out[i] = ref(o)
	}
	return out
}

func (h *Heap) ScriptFunction(o ttd.Object) ttd.ScriptFunctionState {
	st := state[scriptFunction](o)
	fs := ttd.ScriptFunctionState{
		Name:              st.name,
		Scope:             objects(st.scope),
		CachedScope:       ref(st.cachedScope),
		HomeObject:        ref(st.homeObject),
		ComputedName:      h.ToVar(st.computedName),
		HasSuperReference: st.hasSuper,
	}
	if st.body != nil {
		fs.Body = st.body.ID
	}
	return fs
}

func (h *Heap) ExternalFunctionName(o ttd.Object) string { return state[externalFunction](o).name }

func (h *Heap) RevokerProxy(o ttd.Object) ttd.Object { return ref(state[revoker](o).proxy) }

func (h *Heap) BoundFunction(o ttd.Object) ttd.BoundFunctionState {
	st := state[boundFunction](o)
	return ttd.BoundFunctionState{Target: ref(st.target), This: h.ToVar(st.this), Args: h.vars(st.args)}
}

func (h *Heap) Arguments(o ttd.Object) ttd.ArgumentsState {
	st := state[arguments](o)
	return ttd.ArgumentsState{
		Frame:       ref(st.frame),
		NumArgs:     st.numArgs,
		FormalCount: st.formalCount,
		Deleted:     append([]bool(nil), st.deleted...),
	}
}

func (h *Heap) BoxedValue(o ttd.Object) ttd.Var { return h.ToVar(state[boxed](o).value) }

func (h *Heap) DateValue(o ttd.Object) float64 { return state[date](o).time }

func (h *Heap) Regex(o ttd.Object) ttd.RegexState {
	st := state[regex](o)
	return ttd.RegexState{
		Pattern:         st.pattern,
		Flags:           st.flags,
		LastIndexOrFlag: st.lastIndexOrFlag,
		LastIndex:       h.ToVar(st.lastIndex),
	}
}

func (h *Heap) arrayState(a *array) ttd.ArrayState {
	st := ttd.ArrayState{Length: a.length}
	for _, i := range a.indices() {
		st.Items = append(st.Items, ttd.ArrayItem{Index: i, Value: h.ToVar(a.items[i])})
	}
	return st
}

func (h *Heap) ArrayElements(o ttd.Object) ttd.ArrayState { return h.arrayState(arrayOf(o)) }

func (h *Heap) ES5Array(o ttd.Object) ttd.ES5ArrayState {
	st := state[es5Array](o)
	out := ttd.ES5ArrayState{ArrayState: h.arrayState(&st.array), LengthWritable: st.lengthWritable}
	idx := make([]uint32, 0, len(st.accessors))
	for i := range st.accessors {
		idx = append(idx, i)
	}
	sortUint32(idx)
	for _, i := range idx {
		a := st.accessors[i]
		out.Accessors = append(out.Accessors, ttd.IndexAccessor{Index: i, Getter: ref(a.getter), Setter: ref(a.setter), Attrs: a.attrs})
	}
	return out
}

func (h *Heap) ArrayBufferBytes(o ttd.Object) []byte { return state[arrayBuffer](o).data }

func (h *Heap) TypedArray(o ttd.Object) ttd.TypedArrayState {
	st := state[typedArray](o)
	return ttd.TypedArrayState{Buffer: ref(st.buffer), ByteOffset: st.byteOffset, Length: st.length}
}

func (h *Heap) CollectionValues(o ttd.Object) []ttd.Var { return h.vars(state[collection](o).values) }

func (h *Heap) MapEntries(o ttd.Object) []ttd.MapEntryVar {
	st := state[mapEntries](o)
	out := make([]ttd.MapEntryVar, len(st.keys))
	for i := range st.keys {
		out[i] = ttd.MapEntryVar{Key: h.ToVar(st.keys[i]), Value: h.ToVar(st.values[i])}
	}
	return out
}

func (h *Heap) Proxy(o ttd.Object) (handler, target ttd.Object) {
	st := state[proxyState](o)
	return ref(st.handler), ref(st.target)
}

func (h *Heap) capability(c capability) ttd.Capability {
	return ttd.Capability{Promise: h.ToVar(c.promise), Resolve: ref(c.resolve), Reject: ref(c.reject)}
}

func (h *Heap) reaction(r reaction) ttd.Reaction {
	return ttd.Reaction{Capability: h.capability(r.capability), Handler: ref(r.handler)}
}

func (h *Heap) reactions(rs []reaction) []ttd.Reaction {
	out := make([]ttd.Reaction, len(rs))
	for i, r := range rs {
		out[i] = h.reaction(r)
	}
	return out
}

func (h *Heap) Promise(o ttd.Object) ttd.PromiseState {
	st := state[promise](o)
	return ttd.PromiseState{
		Status:           st.status,
		Result:           h.ToVar(st.result),
		ResolveReactions: h.reactions(st.resolveReactions),
		RejectReactions:  h.reactions(st.rejectReactions),
	}
}

func (h *Heap) ResolveFunction(o ttd.Object) ttd.ResolveFunctionState {
	st := state[resolveFunction](o)
	return ttd.ResolveFunctionState{Promise: ref(st.promise), IsReject: st.isReject, AlreadyResolved: st.alreadyResolved}
}

func (h *Heap) ReactionTask(o ttd.Object) ttd.ReactionTaskState {
	st := state[reactionTask](o)
	return ttd.ReactionTaskState{Argument: h.ToVar(st.argument), Reaction: h.reaction(st.reaction)}
}

func (h *Heap) AllResolveElement(o ttd.Object) ttd.AllResolveElementState {
	st := state[allResolveElement](o)
	return ttd.AllResolveElementState{
		Capability:    h.capability(st.capability),
		Index:         st.index,
		Remaining:     st.remaining,
		Values:        ref(st.values),
		AlreadyCalled: st.alreadyCalled,
	}
}

func (h *Heap) PendingAsyncBuffers() []ttd.Object { return objects(h.pending) }

// ---------------------------------------------------------------------------
// ttd.Library: allocation and linking during inflation
// ---------------------------------------------------------------------------

// shell allocates an object with an untyped prototype; the restorer sets the
// real prototype from the type record.
func (h *Heap) shell(k ttd.Kind, typeName string) *Object {
	return h.alloc(k, typeName, nil)
}

func (h *Heap) NewShell(kind ttd.Kind, typeName string) ttd.Object { return h.shell(kind, typeName) }

func (h *Heap) CreateScriptFunction(typeName string, body ttd.ObjectID, name string) (ttd.Object, error) {
	b := h.LookupBody(body)
	if b == nil {
		return nil, fmt.Errorf("vm: no function body %s", body)
	}
	fn := h.shell(ttd.KindScriptFunction, typeName)
	st := state[scriptFunction](fn)
	st.body, st.name = b, name
	return fn, nil
}

func (h *Heap) CreateExternalFunction(typeName string, name string) ttd.Object {
	fn := h.shell(ttd.KindExternalFunction, typeName)
	state[externalFunction](fn).name = name
	return fn
}

func (h *Heap) CreateRevoker(typeName string, proxy ttd.Object) ttd.Object {
	fn := h.shell(ttd.KindRevokerFunction, typeName)
	state[revoker](fn).proxy = deref(proxy)
	return fn
}

func (h *Heap) CreateBoundFunction(typeName string, target ttd.Object) ttd.Object {
	fn := h.shell(ttd.KindBoundFunction, typeName)
	state[boundFunction](fn).target = deref(target)
	return fn
}

func (h *Heap) CreateArguments(kind ttd.Kind, typeName string, st ttd.ArgumentsState) ttd.Object {
	obj := h.shell(kind, typeName)
	*state[arguments](obj) = arguments{
		frame:       deref(st.Frame),
		numArgs:     st.NumArgs,
		formalCount: st.FormalCount,
		deleted:     append([]bool(nil), st.Deleted...),
	}
	return obj
}

func (h *Heap) CreateDate(typeName string, t float64) ttd.Object {
	obj := h.shell(ttd.KindDate, typeName)
	state[date](obj).time = t
	return obj
}

func (h *Heap) CreateRegex(typeName string, pattern, flags string) ttd.Object {
	obj := h.shell(ttd.KindRegex, typeName)
	st := state[regex](obj)
	st.pattern, st.flags = pattern, flags
	return obj
}

func (h *Heap) CreateArrayBuffer(typeName string, b []byte) ttd.Object {
	obj := h.shell(ttd.KindArrayBuffer, typeName)
	state[arrayBuffer](obj).data = b
	return obj
}

func (h *Heap) CreateTypedArray(typeName string, st ttd.TypedArrayState) ttd.Object {
	obj := h.shell(ttd.KindTypedArray, typeName)
	*state[typedArray](obj) = typedArray{buffer: deref(st.Buffer), byteOffset: st.ByteOffset, length: st.Length}
	return obj
}

func (h *Heap) CreateProxy(typeName string, handler, target ttd.Object) ttd.Object {
	obj := h.shell(ttd.KindProxy, typeName)
	*state[proxyState](obj) = proxyState{handler: deref(handler), target: deref(target)}
	return obj
}

func (h *Heap) CreateResolveFunction(typeName string, st ttd.ResolveFunctionState) ttd.Object {
	fn := h.shell(ttd.KindPromiseResolveOrRejectFunction, typeName)
	*state[resolveFunction](fn) = resolveFunction{
		promise:         deref(st.Promise),
		isReject:        st.IsReject,
		alreadyResolved: st.AlreadyResolved,
	}
	return fn
}

func (h *Heap) CreateAllResolveElement(typeName string, index uint32, remaining *uint32, alreadyCalled bool) ttd.Object {
	fn := h.shell(ttd.KindPromiseAllResolveElementFunction, typeName)
	st := state[allResolveElement](fn)
	st.index, st.remaining, st.alreadyCalled = index, remaining, alreadyCalled
	return fn
}

func (h *Heap) SetScriptFunctionLinks(fn ttd.Object, fs ttd.ScriptFunctionState) {
	st := state[scriptFunction](fn)
	st.scope = make([]*Object, len(fs.Scope))
	for i, s := range fs.Scope {
		st.scope[i] = deref(s)
	}
	st.cachedScope = deref(fs.CachedScope)
	st.homeObject = deref(fs.HomeObject)
	st.computedName = h.FromVar(fs.ComputedName)
	st.hasSuper = fs.HasSuperReference
}

func (h *Heap) SetBoundFunctionArgs(fn ttd.Object, this ttd.Var, args []ttd.Var) {
	st := state[boundFunction](fn)
	st.this = h.FromVar(this)
	st.args = h.values(args)
}

func (h *Heap) SetBoxedValue(o ttd.Object, v ttd.Var) { state[boxed](o).value = h.FromVar(v) }

func (h *Heap) SetRegexLastIndex(o ttd.Object, lastIndexOrFlag uint32, lastIndex ttd.Var) {
	st := state[regex](o)
	st.lastIndexOrFlag = lastIndexOrFlag
	st.lastIndex = h.FromVar(lastIndex)
}

func (h *Heap) SetArrayElements(o ttd.Object, as ttd.ArrayState) {
	a := arrayOf(o)
	a.items = make(map[uint32]Value, len(as.Items))
	for _, it := range as.Items {
		a.items[it.Index] = h.FromVar(it.Value)
	}
	a.length = as.Length
}

func (h *Heap) SetArrayAccessors(o ttd.Object, acc []ttd.IndexAccessor, lengthWritable bool) {
	st := state[es5Array](o)
	st.accessors = make(map[uint32]indexAccessor, len(acc))
	for _, a := range acc {
		st.accessors[a.Index] = indexAccessor{getter: deref(a.Getter), setter: deref(a.Setter), attrs: a.Attrs}
	}
	st.lengthWritable = lengthWritable
}

func (h *Heap) SetCollectionValues(o ttd.Object, values []ttd.Var) {
	state[collection](o).values = h.values(values)
}

func (h *Heap) SetMapEntries(o ttd.Object, entries []ttd.MapEntryVar) {
	st := state[mapEntries](o)
	st.keys = make([]Value, len(entries))
	st.values = make([]Value, len(entries))
	for i, e := range entries {
		st.keys[i] = h.FromVar(e.Key)
		st.values[i] = h.FromVar(e.Value)
	}
}

func (h *Heap) fromCapability(c ttd.Capability) capability {
	return capability{promise: h.FromVar(c.Promise), resolve: deref(c.Resolve), reject: deref(c.Reject)}
}

func (h *Heap) fromReaction(r ttd.Reaction) reaction {
	return reaction{capability: h.fromCapability(r.Capability), handler: deref(r.Handler)}
}

func (h *Heap) fromReactions(rs []ttd.Reaction) []reaction {
	out := make([]reaction, len(rs))
	for i, r := range rs {
		out[i] = h.fromReaction(r)
	}
	return out
}

func (h *Heap) SetPromiseState(o ttd.Object, ps ttd.PromiseState) {
	*state[promise](o) = promise{
		status:           ps.Status,
		result:           h.FromVar(ps.Result),
		resolveReactions: h.fromReactions(ps.ResolveReactions),
		rejectReactions:  h.fromReactions(ps.RejectReactions),
	}
}

func (h *Heap) SetReactionTask(o ttd.Object, rs ttd.ReactionTaskState) {
	*state[reactionTask](o) = reactionTask{argument: h.FromVar(rs.Argument), reaction: h.fromReaction(rs.Reaction)}
}

func (h *Heap) SetAllResolveElementLinks(o ttd.Object, c ttd.Capability, values ttd.Object) {
	st := state[allResolveElement](o)
	st.capability = h.fromCapability(c)
	st.values = deref(values)
}
