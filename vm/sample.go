package vm

import (
	"math"

	"github.com/chazu/ttdsnap/ttd"
)

// Sample scripts. Their bodies are registered under ids derived from name and
// source, so every heap that calls RegisterSampleBodies agrees on them.
var sampleBodies = []struct{ name, source string }{
	{"counter", "function counter() { return ++count; }"},
	{"greet", "function greet(who) { return prefix + who; }"},
	{"onResolve", "v => log.push(v)"},
	{"onReject", "e => log.push(e)"},
	{"getB", "get b() { return this.a + 1; }"},
	{"setB", "set b(v) { this.a = v - 1; }"},
	{"method", "m() { return super.m(); }"},
}

// RegisterSampleBodies registers the function bodies Sample uses. A heap
// that will receive an inflated sample must call it first.
func RegisterSampleBodies(h *Heap) map[string]*FunctionBody {
	out := make(map[string]*FunctionBody, len(sampleBodies))
	for _, b := range sampleBodies {
		out[b.name] = h.RegisterBody(b.name, b.source)
	}
	return out
}

// sampleBuilder keeps the bits of Sample that every section needs.
type sampleBuilder struct {
	h      *Heap
	bodies map[string]*FunctionBody
	root   *Object

	outer, block *Object
}

func (s *sampleBuilder) function(body string, scope ...*Object) *Object {
	fn := s.h.New(ttd.KindScriptFunction, "Function")
	st := state[scriptFunction](fn)
	st.body = s.bodies[body]
	st.name = body
	st.scope = scope
	fn.Define("name", s.h.Str(body), ttd.AttrConfigurable)
	fn.Define("length", FromSmallInt(0), ttd.AttrConfigurable)
	return fn
}

func (s *sampleBuilder) put(name string, v Value) { s.root.Set(name, v) }

// Sample populates h with a graph that contains at least one object of every
// inflatable kind, plus cycles, shared cells, accessor properties,
// uninitialized bindings, cleared slots and a pending async buffer. It
// returns the roots to extract from.
func Sample(h *Heap) []ttd.LiveRoot {
	s := &sampleBuilder{h: h, bodies: RegisterSampleBodies(h)}
	s.root = h.New(ttd.KindDynamicObject, "Object")

	s.plainObjects()
	s.scopes()
	s.functions()
	s.values()
	s.arrays()
	s.buffers()
	s.collections()
	s.promises()

	return []ttd.LiveRoot{
		{Name: "global", Value: h.ToVar(h.Global().ToValue())},
		{Name: "sample", Value: h.ToVar(s.root.ToValue())},
		{Name: "answer", Value: ttd.PrimVar(ttd.Int(42))},
	}
}

func (s *sampleBuilder) plainObjects() {
	h := s.h

	// {a: 1, get b(){}} with a non-configurable
	obj := h.New(ttd.KindDynamicObject, "Object")
	obj.Define("a", FromSmallInt(1), ttd.AttrWritable|ttd.AttrEnumerable)
	obj.DefineAccessor("b", s.function("getB"), nil, ttd.AttrEnumerable|ttd.AttrConfigurable)
	obj.DefineAccessor("c", s.function("getB"), s.function("setB"), ttd.AttrConfigurable)
	obj.DefineAccessor("d", nil, s.function("setB"), ttd.AttrEnumerable)
	obj.ClearSlot("never")
	obj.Set("s", h.Str("text"))
	obj.Set("negzero", FromFloat64(math.Copysign(0, -1)))
	obj.Set("nan", FromFloat64(math.NaN()))
	obj.Set("big", FromSmallInt(1<<40))
	obj.Set("nil", Null)
	obj.Set("undef", Undefined)
	obj.Set("yes", True)
	obj.Set("sym", h.NewSymbol("tag"))
	s.put("plain", obj.ToValue())

	// Mutual references
	x := h.New(ttd.KindDynamicObject, "Object")
	y := h.New(ttd.KindDynamicObject, "Object")
	x.Set("y", y.ToValue())
	y.Set("x", x.ToValue())
	x.Set("self", x.ToValue())
	s.put("cycle", x.ToValue())

	// Null prototype, not extensible, no enumerable properties
	bare := h.alloc(ttd.KindDynamicObject, "Object", nil)
	bare.Define("hidden", FromSmallInt(7), ttd.AttrWritable)
	h.SetExtensible(bare, false)
	h.SetHasNoEnumerableProperties(bare, true)
	s.put("bare", bare.ToValue())

	// Object backed by an indexed-elements array
	withElems := h.New(ttd.KindDynamicObject, "Object")
	elems := h.New(ttd.KindArray, "Array")
	state[array](elems).set(0, h.Str("zero"))
	state[array](elems).set(2, h.Str("two"))
	withElems.elements = elems
	s.put("indexed", withElems.ToValue())

	ext := h.New(ttd.KindExternalObject, "HostWidget")
	ext.Set("id", FromSmallInt(99))
	ext.crossSite = true
	s.put("external", ext.ToValue())

	errObj := h.New(ttd.KindError, "Error")
	errObj.Define("message", h.Str("boom"), ttd.AttrWritable|ttd.AttrConfigurable)
	errObj.Define("stack", h.Str("at sample:1"), ttd.AttrWritable|ttd.AttrConfigurable)
	s.put("error", errObj.ToValue())

	s.put("math", h.Intrinsic("Math").ToValue())
	s.put("max", h.Intrinsic("Math.max").ToValue())
}

func (s *sampleBuilder) scopes() {
	h := s.h

	outer := h.New(ttd.KindActivation, "Scope")
	outer.Set("count", FromSmallInt(3))
	outer.Set("prefix", h.Str("hello "))
	outer.DeclareUninitialized("later", ttd.AttrWritable|ttd.AttrEnumerable)

	block := h.New(ttd.KindBlockActivation, "BlockScope")
	block.Set("i", FromSmallInt(0))
	block.Set("parent", outer.ToValue())

	pseudo := h.New(ttd.KindPseudoActivation, "CatchScope")
	pseudo.Set("e", h.Str("caught"))

	console := h.New(ttd.KindConsoleScopeActivation, "ConsoleScope")
	console.Set("$0", outer.ToValue())

	ex := h.New(ttd.KindActivationEx, "Scope")
	ex.Set("cached", True)

	s.put("scopes", s.list(outer, block, pseudo, console, ex).ToValue())
	s.outer, s.block = outer, block

	args := h.New(ttd.KindHeapArguments, "Arguments")
	*state[arguments](args) = arguments{frame: outer, numArgs: 2, formalCount: 1}
	args.Define("length", FromSmallInt(2), ttd.AttrWritable|ttd.AttrConfigurable)
	args.Set("0", h.Str("first"))
	args.Set("1", h.Str("second"))
	s.put("arguments", args.ToValue())

	es5Args := h.New(ttd.KindES5HeapArguments, "Arguments")
	*state[arguments](es5Args) = arguments{frame: block, numArgs: 3, formalCount: 3, deleted: []bool{false, true, false}}
	es5Args.Define("0", FromSmallInt(10), ttd.AttrEnumerable)
	es5Args.ClearSlot("1")
	es5Args.Set("2", FromSmallInt(30))
	s.put("es5arguments", es5Args.ToValue())
}

// list stores objects in a plain array.
func (s *sampleBuilder) list(objs ...*Object) *Object {
	arr := s.h.New(ttd.KindArray, "Array")
	for i, o := range objs {
		state[array](arr).set(uint32(i), o.ToValue())
	}
	return arr
}

func (s *sampleBuilder) functions() {
	h := s.h
	outer, block := s.outer, s.block

	counter := s.function("counter", block, outer)
	st := state[scriptFunction](counter)
	st.cachedScope = outer
	s.put("counter", counter.ToValue())

	home := h.New(ttd.KindDynamicObject, "Object")
	method := s.function("method", outer)
	ms := state[scriptFunction](method)
	ms.homeObject = home
	ms.hasSuper = true
	ms.computedName = h.NewSymbol("computed")
	home.Set("m", method.ToValue())
	s.put("home", home.ToValue())

	ext := h.New(ttd.KindExternalFunction, "Function")
	state[externalFunction](ext).name = "nativeSleep"
	s.put("native", ext.ToValue())

	// Bound functions whose bound arguments reference each other and each
	// other's targets.
	greet := s.function("greet", outer)
	bf1 := h.New(ttd.KindBoundFunction, "Function")
	bf2 := h.New(ttd.KindBoundFunction, "Function")
	*state[boundFunction](bf1) = boundFunction{target: counter, this: Undefined, args: []Value{bf2.ToValue(), greet.ToValue()}}
	*state[boundFunction](bf2) = boundFunction{target: greet, this: home.ToValue(), args: []Value{bf1.ToValue(), counter.ToValue(), h.Str("x")}}
	s.put("bound1", bf1.ToValue())
	s.put("bound2", bf2.ToValue())

	target := h.New(ttd.KindDynamicObject, "Object")
	handler := h.New(ttd.KindDynamicObject, "Object")
	handler.Set("get", greet.ToValue())
	px := h.New(ttd.KindProxy, "Proxy")
	*state[proxyState](px) = proxyState{handler: handler, target: target}
	rev := h.New(ttd.KindRevokerFunction, "Function")
	state[revoker](rev).proxy = px
	s.put("proxy", px.ToValue())
	s.put("revoke", rev.ToValue())

	// A revoked proxy and a revoker that already fired.
	dead := h.New(ttd.KindProxy, "Proxy")
	spent := h.New(ttd.KindRevokerFunction, "Function")
	s.put("revoked", dead.ToValue())
	s.put("spent", spent.ToValue())
}

func (s *sampleBuilder) values() {
	h := s.h

	num := h.New(ttd.KindBoxedValue, "Number")
	state[boxed](num).value = FromFloat64(2.5)
	str := h.New(ttd.KindBoxedValue, "String")
	state[boxed](str).value = h.Str("boxed")
	str.Define("length", FromSmallInt(5), attrFrozen)
	sym := h.New(ttd.KindBoxedValue, "Symbol")
	state[boxed](sym).value = h.NewSymbol("boxed symbol")
	s.put("boxed", s.list(num, str, sym).ToValue())

	d := h.New(ttd.KindDate, "Date")
	state[date](d).time = 1.7e12
	bad := h.New(ttd.KindDate, "Date")
	state[date](bad).time = math.NaN()
	s.put("dates", s.list(d, bad).ToValue())

	re := h.New(ttd.KindRegex, "RegExp")
	*state[regex](re) = regex{pattern: `a+b*`, flags: "gi", lastIndexOrFlag: 4, lastIndex: Undefined}
	odd := h.New(ttd.KindRegex, "RegExp")
	*state[regex](odd) = regex{pattern: `x`, flags: "y", lastIndex: h.Str("not a number")}
	s.put("regexes", s.list(re, odd).ToValue())
}

func (s *sampleBuilder) arrays() {
	h := s.h

	holes := h.New(ttd.KindArray, "Array")
	a := state[array](holes)
	a.set(0, FromSmallInt(1))
	a.set(1, h.Str("two"))
	a.set(5, holes.ToValue())
	a.set(6, Null)
	a.length = 10
	s.put("holes", holes.ToValue())

	ints := h.New(ttd.KindNativeIntArray, "Array")
	for i := uint32(0); i < 4; i++ {
		state[array](ints).set(i, FromSmallInt(int64(i*i)-3))
	}
	state[array](ints).set(9, FromSmallInt(math.MaxInt32))
	s.put("ints", ints.ToValue())

	floats := h.New(ttd.KindNativeFloatArray, "Array")
	state[array](floats).set(0, FromFloat64(0.5))
	state[array](floats).set(1, FromFloat64(math.Inf(-1)))
	state[array](floats).set(3, FromFloat64(math.NaN()))
	s.put("floats", floats.ToValue())

	es5 := h.New(ttd.KindES5Array, "Array")
	st := state[es5Array](es5)
	st.set(0, h.Str("plain"))
	st.accessors = map[uint32]indexAccessor{
		1: {getter: s.function("getB"), attrs: ttd.AttrEnumerable},
		4: {getter: s.function("getB"), setter: s.function("setB"), attrs: ttd.AttrEnumerable | ttd.AttrConfigurable},
	}
	st.length = 5
	st.lengthWritable = false
	s.put("es5array", es5.ToValue())
}

func (s *sampleBuilder) buffers() {
	h := s.h

	buf := h.New(ttd.KindArrayBuffer, "ArrayBuffer")
	state[arrayBuffer](buf).data = []byte{0, 1, 2, 3, 4, 5, 6, 7, 0xff, 0xfe, 0, 0, 0, 0, 0xf0, 0x3f}
	u8 := h.New(ttd.KindTypedArray, "Uint8Array")
	*state[typedArray](u8) = typedArray{buffer: buf, byteOffset: 2, length: 6}
	f64 := h.New(ttd.KindTypedArray, "Float64Array")
	*state[typedArray](f64) = typedArray{buffer: buf, byteOffset: 8, length: 1}

	inflight := h.New(ttd.KindArrayBuffer, "ArrayBuffer")
	state[arrayBuffer](inflight).data = []byte("partially written")
	h.MarkPendingAsync(inflight)

	empty := h.New(ttd.KindArrayBuffer, "ArrayBuffer")
	s.put("buffers", s.list(buf, u8, f64, inflight, empty).ToValue())
}

func (s *sampleBuilder) collections() {
	h := s.h
	k1 := h.New(ttd.KindDynamicObject, "Object")
	k2 := h.New(ttd.KindDynamicObject, "Object")

	set := h.New(ttd.KindSet, "Set")
	state[collection](set).values = []Value{FromSmallInt(1), h.Str("a"), k1.ToValue(), set.ToValue()}
	wset := h.New(ttd.KindWeakSet, "WeakSet")
	state[collection](wset).values = []Value{k1.ToValue(), k2.ToValue()}

	m := h.New(ttd.KindMap, "Map")
	*state[mapEntries](m) = mapEntries{
		keys:   []Value{h.Str("k"), k1.ToValue(), FromFloat64(math.NaN())},
		values: []Value{k2.ToValue(), m.ToValue(), True},
	}
	wm := h.New(ttd.KindWeakMap, "WeakMap")
	*state[mapEntries](wm) = mapEntries{keys: []Value{k2.ToValue()}, values: []Value{h.Str("private")}}

	s.put("collections", s.list(set, wset, m, wm).ToValue())
}

func (s *sampleBuilder) promises() {
	h := s.h

	pending := h.New(ttd.KindPromise, "Promise")
	derived := h.New(ttd.KindPromise, "Promise")

	// The resolve/reject pair for derived shares one already-resolved cell.
	resolved := false
	resolve := h.New(ttd.KindPromiseResolveOrRejectFunction, "Function")
	*state[resolveFunction](resolve) = resolveFunction{promise: derived, alreadyResolved: &resolved}
	reject := h.New(ttd.KindPromiseResolveOrRejectFunction, "Function")
	*state[resolveFunction](reject) = resolveFunction{promise: derived, isReject: true, alreadyResolved: &resolved}

	capab := capability{promise: derived.ToValue(), resolve: resolve, reject: reject}
	onResolve := s.function("onResolve")
	onReject := s.function("onReject")
	*state[promise](pending) = promise{
		status:           ttd.PromisePending,
		result:           Undefined,
		resolveReactions: []reaction{{capability: capab, handler: onResolve}},
		rejectReactions:  []reaction{{capability: capab, handler: onReject}},
	}

	fulfilled := h.New(ttd.KindPromise, "Promise")
	*state[promise](fulfilled) = promise{status: ttd.PromiseResolved, result: FromSmallInt(5)}
	rejected := h.New(ttd.KindPromise, "Promise")
	*state[promise](rejected) = promise{status: ttd.PromiseRejected, result: h.Str("nope")}

	task := h.New(ttd.KindPromiseReactionTaskFunction, "Function")
	*state[reactionTask](task) = reactionTask{argument: FromSmallInt(5), reaction: reaction{capability: capab, handler: onResolve}}

	// Promise.all over three inputs; the element functions share the
	// remaining counter.
	all := h.New(ttd.KindPromise, "Promise")
	values := h.New(ttd.KindArray, "Array")
	state[array](values).length = 3
	state[array](values).set(1, h.Str("second"))
	allResolve := h.New(ttd.KindPromiseResolveOrRejectFunction, "Function")
	allReject := h.New(ttd.KindPromiseResolveOrRejectFunction, "Function")
	allDone := false
	*state[resolveFunction](allResolve) = resolveFunction{promise: all, alreadyResolved: &allDone}
	*state[resolveFunction](allReject) = resolveFunction{promise: all, isReject: true, alreadyResolved: &allDone}
	allCap := capability{promise: all.ToValue(), resolve: allResolve, reject: allReject}
	remaining := uint32(2)
	var elems []*Object
	for i := uint32(0); i < 3; i++ {
		el := h.New(ttd.KindPromiseAllResolveElementFunction, "Function")
		*state[allResolveElement](el) = allResolveElement{
			capability:    allCap,
			index:         i,
			remaining:     &remaining,
			values:        values,
			alreadyCalled: i == 1,
		}
		elems = append(elems, el)
	}

	s.put("promises", s.list(pending, fulfilled, rejected, task, all).ToValue())
	s.put("allElements", s.list(elems...).ToValue())
}
