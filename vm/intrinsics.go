package vm

import (
	"math"

	"github.com/chazu/ttdsnap/ttd"
)

// ---------------------------------------------------------------------------
// Intrinsics: runtime singletons with well-known tokens
// ---------------------------------------------------------------------------

// Attribute sets used by builtins.
const (
	attrHidden = ttd.AttrWritable | ttd.AttrConfigurable
	attrFrozen = ttd.Attributes(0)
)

// builtinConstructors lists the constructors installed on the global object.
// Each gets a "Name.prototype" intrinsic whose kind is given here.
var builtinConstructors = []struct {
	name      string
	protoKind ttd.Kind
}{
	{"Object", ttd.KindDynamicObject},
	{"Function", ttd.KindRuntimeFunction},
	{"Array", ttd.KindWellKnownObject},
	{"Error", ttd.KindWellKnownObject},
	{"Boolean", ttd.KindWellKnownObject},
	{"Number", ttd.KindWellKnownObject},
	{"String", ttd.KindWellKnownObject},
	{"Symbol", ttd.KindWellKnownObject},
	{"Date", ttd.KindWellKnownObject},
	{"RegExp", ttd.KindWellKnownObject},
	{"Map", ttd.KindWellKnownObject},
	{"Set", ttd.KindWellKnownObject},
	{"WeakMap", ttd.KindWellKnownObject},
	{"WeakSet", ttd.KindWellKnownObject},
	{"ArrayBuffer", ttd.KindWellKnownObject},
	{"Uint8Array", ttd.KindWellKnownObject},
	{"Float64Array", ttd.KindWellKnownObject},
	{"Promise", ttd.KindWellKnownObject},
	{"Proxy", ttd.KindWellKnownObject},
}

func (h *Heap) register(obj *Object, tok ttd.WellKnownToken) *Object {
	obj.wellKnown = tok
	h.wellKnown[tok] = obj
	return obj
}

// installIntrinsics builds the global object, the builtin constructors and
// their prototypes, and the Math namespace. Every object created here has a
// well-known token, so inflation resolves it instead of allocating.
func (h *Heap) installIntrinsics() {
	objectProto := h.register(h.alloc(ttd.KindDynamicObject, "Object", nil), "Object.prototype")
	functionProto := h.register(h.alloc(ttd.KindRuntimeFunction, "Function", objectProto), "Function.prototype")

	global := h.register(h.alloc(ttd.KindDynamicObject, "global", objectProto), "global")
	global.Define("globalThis", global.ToValue(), attrHidden)
	global.Define("undefined", Undefined, attrFrozen)
	global.Define("NaN", FromFloat64(math.NaN()), attrFrozen)

	for _, c := range builtinConstructors {
		proto := h.wellKnown[ttd.WellKnownToken(c.name+".prototype")]
		if proto == nil {
			proto = h.register(h.alloc(c.protoKind, c.name, objectProto), ttd.WellKnownToken(c.name+".prototype"))
		}
		ctor := h.register(h.alloc(ttd.KindRuntimeFunction, "Function", functionProto), ttd.WellKnownToken(c.name))
		ctor.Define("name", h.Str(c.name), ttd.AttrConfigurable)
		ctor.Define("prototype", proto.ToValue(), attrFrozen)
		proto.Define("constructor", ctor.ToValue(), attrHidden)
		global.Define(c.name, ctor.ToValue(), attrHidden)
	}

	mathObj := h.register(h.alloc(ttd.KindWellKnownObject, "Math", objectProto), "Math")
	mathObj.Define("PI", FromFloat64(math.Pi), attrFrozen)
	mathObj.Define("E", FromFloat64(math.E), attrFrozen)
	for _, name := range []string{"max", "min", "floor"} {
		fn := h.register(h.alloc(ttd.KindRuntimeFunction, "Function", functionProto), ttd.WellKnownToken("Math."+name))
		fn.Define("name", h.Str(name), ttd.AttrConfigurable)
		mathObj.Define(name, fn.ToValue(), attrHidden)
	}
	global.Define("Math", mathObj.ToValue(), attrHidden)

	iterator := h.NewSymbol("Symbol.iterator")
	h.wellKnown["Symbol"].Define("iterator", iterator, attrFrozen)
}
