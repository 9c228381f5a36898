package vm

import (
	"fmt"
	"sort"

	"github.com/chazu/ttdsnap/ttd"
)

// ---------------------------------------------------------------------------
// Per-kind object state
// ---------------------------------------------------------------------------

type scriptFunction struct {
	name         string
	body         *FunctionBody
	scope        []*Object
	cachedScope  *Object
	homeObject   *Object
	computedName Value
	hasSuper     bool
}

type externalFunction struct {
	name string
}

type revoker struct {
	proxy *Object
}

type boundFunction struct {
	target *Object
	this   Value
	args   []Value
}

type arguments struct {
	frame       *Object
	numArgs     uint32
	formalCount uint32
	deleted     []bool
}

type boxed struct {
	value Value
}

type date struct {
	time float64
}

type regex struct {
	pattern         string
	flags           string
	lastIndexOrFlag uint32
	lastIndex       Value
}

// array is a sparse element store. Native int and float arrays use it too,
// holding only SmallInt or float values.
type array struct {
	length uint32
	items  map[uint32]Value
}

func (a *array) set(i uint32, v Value) {
	if a.items == nil {
		a.items = make(map[uint32]Value)
	}
	a.items[i] = v
	if i >= a.length {
		a.length = i + 1
	}
}

func (a *array) indices() []uint32 {
	idx := make([]uint32, 0, len(a.items))
	for i := range a.items {
		idx = append(idx, i)
	}
	sortUint32(idx)
	return idx
}

func sortUint32(s []uint32) { sort.Slice(s, func(i, j int) bool { return s[i] < s[j] }) }

type indexAccessor struct {
	getter *Object
	setter *Object
	attrs  ttd.Attributes
}

type es5Array struct {
	array
	accessors      map[uint32]indexAccessor
	lengthWritable bool
}

type arrayBuffer struct {
	data []byte
}

type typedArray struct {
	buffer     *Object
	byteOffset uint32
	length     uint32
}

type collection struct {
	values []Value
}

type mapEntries struct {
	keys   []Value
	values []Value
}

type proxyState struct {
	handler *Object
	target  *Object
}

type capability struct {
	promise Value
	resolve *Object
	reject  *Object
}

type reaction struct {
	capability capability
	handler    *Object
}

type promise struct {
	status           ttd.PromiseStatus
	result           Value
	resolveReactions []reaction
	rejectReactions  []reaction
}

type resolveFunction struct {
	promise         *Object
	isReject        bool
	alreadyResolved *bool
}

type reactionTask struct {
	argument Value
	reaction reaction
}

type allResolveElement struct {
	capability    capability
	index         uint32
	remaining     *uint32
	values        *Object
	alreadyCalled bool
}

// newInternal returns the empty state a fresh object of kind k starts with.
func newInternal(k ttd.Kind) any {
	switch k {
	case ttd.KindScriptFunction:
		return &scriptFunction{computedName: Undefined}
	case ttd.KindExternalFunction:
		return &externalFunction{}
	case ttd.KindRevokerFunction:
		return &revoker{}
	case ttd.KindBoundFunction:
		return &boundFunction{this: Undefined}
	case ttd.KindHeapArguments, ttd.KindES5HeapArguments:
		return &arguments{}
	case ttd.KindBoxedValue:
		return &boxed{value: Undefined}
	case ttd.KindDate:
		return &date{}
	case ttd.KindRegex:
		return &regex{lastIndex: Undefined}
	case ttd.KindArray, ttd.KindNativeIntArray, ttd.KindNativeFloatArray:
		return &array{}
	case ttd.KindES5Array:
		return &es5Array{lengthWritable: true}
	case ttd.KindArrayBuffer:
		return &arrayBuffer{}
	case ttd.KindTypedArray:
		return &typedArray{}
	case ttd.KindSet, ttd.KindWeakSet:
		return &collection{}
	case ttd.KindMap, ttd.KindWeakMap:
		return &mapEntries{}
	case ttd.KindProxy:
		return &proxyState{}
	case ttd.KindPromise:
		return &promise{result: Undefined}
	case ttd.KindPromiseResolveOrRejectFunction:
		return &resolveFunction{}
	case ttd.KindPromiseReactionTaskFunction:
		return &reactionTask{argument: Undefined, reaction: reaction{capability: capability{promise: Undefined}}}
	case ttd.KindPromiseAllResolveElementFunction:
		return &allResolveElement{capability: capability{promise: Undefined}}
	}
	return nil
}

// state returns obj's internal state as T. Kinds are fixed at allocation, so
// a mismatch is a programming error.
func state[T any](o ttd.Object) *T {
	obj := o.(*Object)
	st, ok := obj.internal.(*T)
	if !ok {
		panic(fmt.Sprintf("vm: %s object has no %T state", obj.kind, (*T)(nil)))
	}
	return st
}

// arrayOf returns the element store of any array kind, including ES5 arrays.
func arrayOf(o ttd.Object) *array {
	switch st := o.(*Object).internal.(type) {
	case *array:
		return st
	case *es5Array:
		return &st.array
	}
	panic("vm: " + o.(*Object).kind.String() + " object has no elements")
}
