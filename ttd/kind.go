package ttd

import "fmt"

// Kind is the object-kind tag stored in every record. The set is closed:
// parsing any value outside it is a format error.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUnhandled
	KindDynamicObject
	KindExternalObject
	KindScriptFunction
	KindRuntimeFunction
	KindExternalFunction
	KindRevokerFunction
	KindBoundFunction
	KindActivation
	KindBlockActivation
	KindPseudoActivation
	KindConsoleScopeActivation
	KindActivationEx
	KindHeapArguments
	KindES5HeapArguments
	KindBoxedValue
	KindDate
	KindRegex
	KindError
	KindArray
	KindNativeIntArray
	KindNativeFloatArray
	KindES5Array
	KindArrayBuffer
	KindTypedArray
	KindSet
	KindWeakSet
	KindMap
	KindWeakMap
	KindProxy
	KindPromise
	KindPromiseResolveOrRejectFunction
	KindPromiseReactionTaskFunction
	KindPromiseAllResolveElementFunction
	KindWellKnownObject
	kindLimit
)

var kindNames = [kindLimit]string{
	"Invalid",
	"Unhandled",
	"DynamicObject",
	"ExternalObject",
	"ScriptFunction",
	"RuntimeFunction",
	"ExternalFunction",
	"RevokerFunction",
	"BoundFunction",
	"Activation",
	"BlockActivation",
	"PseudoActivation",
	"ConsoleScopeActivation",
	"ActivationEx",
	"HeapArguments",
	"ES5HeapArguments",
	"BoxedValue",
	"Date",
	"Regex",
	"Error",
	"Array",
	"NativeIntArray",
	"NativeFloatArray",
	"ES5Array",
	"ArrayBuffer",
	"TypedArray",
	"Set",
	"WeakSet",
	"Map",
	"WeakMap",
	"Proxy",
	"Promise",
	"PromiseResolveOrRejectFunction",
	"PromiseReactionTaskFunction",
	"PromiseAllResolveElementFunction",
	"WellKnownObject",
}

func (k Kind) String() string {
	if k < kindLimit {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is a member of the closed set, excluding
// KindInvalid.
func (k Kind) Valid() bool { return k > KindInvalid && k < kindLimit }

// AllKinds lists every valid kind in tag order.
func AllKinds() []Kind {
	ks := make([]Kind, 0, kindLimit-1)
	for k := KindInvalid + 1; k < kindLimit; k++ {
		ks = append(ks, k)
	}
	return ks
}

// IsActivation reports whether k is one of the scope/activation kinds.
func (k Kind) IsActivation() bool {
	switch k {
	case KindActivation, KindBlockActivation, KindPseudoActivation,
		KindConsoleScopeActivation, KindActivationEx:
		return true
	}
	return false
}

// Reusable reports whether a live object of kind k from a previous pass may be
// reset in place instead of reallocated.
func (k Kind) Reusable() bool {
	switch k {
	case KindDynamicObject, KindExternalObject, KindScriptFunction, KindArray:
		return true
	}
	return k.IsActivation()
}

// IsWeakCollection reports whether k holds its contents weakly. Such contents
// are not compared.
func (k Kind) IsWeakCollection() bool { return k == KindWeakSet || k == KindWeakMap }
