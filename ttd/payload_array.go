package ttd

import (
	"fmt"

	"github.com/chazu/ttdsnap/wire"
)

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

// ArrayRun is a run of present elements at consecutive indices. Holes
// between runs are absent elements.
type ArrayRun[T any] struct {
	Start uint32
	Items []T
}

// arrayData is the shared shape of the three array payloads.
type arrayData[T any] struct {
	Length uint32
	Runs   []ArrayRun[T]
}

func (a *arrayData[T]) emit(w wire.Writer, put func(T)) {
	w.Uint32(wire.KeyLength, a.Length)
	w.SequenceStart(wire.KeyBlocks, len(a.Runs))
	for _, run := range a.Runs {
		w.RecordStart()
		w.Uint32(wire.KeyFirstIndex, run.Start)
		w.SequenceStart(wire.KeyItems, len(run.Items))
		for _, it := range run.Items {
			put(it)
		}
		w.SequenceEnd()
		w.RecordEnd()
	}
	w.SequenceEnd()
}

func (a *arrayData[T]) parse(r wire.Reader, allocRuns func(int) []ArrayRun[T], alloc func(int) []T, get func() T) {
	a.Length = r.Uint32(wire.KeyLength)
	n := r.SequenceStart(wire.KeyBlocks)
	a.Runs = allocRuns(n)
	var next uint64
	for i := 0; i < n && r.Err() == nil; i++ {
		r.RecordStart()
		run := &a.Runs[i]
		run.Start = r.Uint32(wire.KeyFirstIndex)
		count := r.SequenceStart(wire.KeyItems)
		run.Items = alloc(count)
		for j := 0; j < count && r.Err() == nil; j++ {
			run.Items[j] = get()
		}
		r.SequenceEnd()
		r.RecordEnd()
		end := uint64(run.Start) + uint64(count)
		if uint64(run.Start) < next || end > uint64(a.Length) || count == 0 {
			r.Fail(fmt.Errorf("%w: array run [%d,%d) out of order or past length %d",
				ErrCorruptRecord, run.Start, end, a.Length))
		}
		next = end
	}
	r.SequenceEnd()
}

// runsFrom groups index-ordered items into runs allocated from the given
// arenas.
func runsFrom[T any](items []ArrayItem, allocRuns func(int) []ArrayRun[T], alloc func(int) []T, conv func(Var) T) []ArrayRun[T] {
	n := 0
	for i := range items {
		if i == 0 || items[i].Index != items[i-1].Index+1 {
			n++
		}
	}
	runs := allocRuns(n)
	r := 0
	for i := 0; i < len(items); {
		j := i + 1
		for j < len(items) && items[j].Index == items[j-1].Index+1 {
			j++
		}
		run := ArrayRun[T]{Start: items[i].Index, Items: alloc(j - i)}
		for k := i; k < j; k++ {
			run.Items[k-i] = conv(items[k].Value)
		}
		runs[r] = run
		r++
		i = j
	}
	return runs
}

// stateFrom expands runs back to live items.
func stateFrom[T any](a *arrayData[T], conv func(T) (Var, error)) (ArrayState, error) {
	st := ArrayState{Length: a.Length}
	for _, run := range a.Runs {
		for i, it := range run.Items {
			v, err := conv(it)
			if err != nil {
				return ArrayState{}, err
			}
			st.Items = append(st.Items, ArrayItem{Index: run.Start + uint32(i), Value: v})
		}
	}
	return st, nil
}

// VarArrayInfo is a generic array whose elements are tagged values.
type VarArrayInfo struct {
	arrayData[Value]
}

func (p *VarArrayInfo) emit(w wire.Writer) {
	p.arrayData.emit(w, func(v Value) { emitValue(w, wire.KeyValueTag, v) })
}

func (p *VarArrayInfo) parse(r wire.Reader, s *Slab) {
	p.arrayData.parse(r, s.ValueRuns, s.Values, func() Value { return parseValue(r, wire.KeyValueTag) })
}

func (p *VarArrayInfo) dependsOn(func(ObjectID)) {}

func (p *VarArrayInfo) references(add func(ObjectID)) {
	for _, run := range p.Runs {
		for _, v := range run.Items {
			addValue(add, v)
		}
	}
}

// IntArrayInfo is a native int32 array.
type IntArrayInfo struct {
	arrayData[int32]
}

func (p *IntArrayInfo) emit(w wire.Writer) {
	p.arrayData.emit(w, func(v int32) { w.Int32(wire.KeyValue, v) })
}

func (p *IntArrayInfo) parse(r wire.Reader, s *Slab) {
	p.arrayData.parse(r, s.IntRuns, s.Int32s, func() int32 { return r.Int32(wire.KeyValue) })
}

func (p *IntArrayInfo) dependsOn(func(ObjectID))  {}
func (p *IntArrayInfo) references(func(ObjectID)) {}

// FloatArrayInfo is a native float64 array.
type FloatArrayInfo struct {
	arrayData[float64]
}

func (p *FloatArrayInfo) emit(w wire.Writer) {
	p.arrayData.emit(w, func(v float64) { w.Double(wire.KeyValue, v) })
}

func (p *FloatArrayInfo) parse(r wire.Reader, s *Slab) {
	p.arrayData.parse(r, s.FloatRuns, s.Float64s, func() float64 { return r.Double(wire.KeyValue) })
}

func (p *FloatArrayInfo) dependsOn(func(ObjectID))  {}
func (p *FloatArrayInfo) references(func(ObjectID)) {}

func (e *Extractor) extractVarArray(o Object) *VarArrayInfo {
	st := e.heap.ArrayElements(o)
	return &VarArrayInfo{arrayData[Value]{Length: st.Length, Runs: runsFrom(st.Items, e.slab.ValueRuns, e.slab.Values, e.value)}}
}

func (e *Extractor) extractIntArray(o Object) *IntArrayInfo {
	st := e.heap.ArrayElements(o)
	return &IntArrayInfo{arrayData[int32]{Length: st.Length, Runs: runsFrom(st.Items, e.slab.IntRuns, e.slab.Int32s, func(v Var) int32 {
		if v.Prim.Tag == TagFloat {
			return int32(v.Prim.AsFloat())
		}
		return v.Prim.AsInt()
	})}}
}

func (e *Extractor) extractFloatArray(o Object) *FloatArrayInfo {
	st := e.heap.ArrayElements(o)
	return &FloatArrayInfo{arrayData[float64]{Length: st.Length, Runs: runsFrom(st.Items, e.slab.FloatRuns, e.slab.Float64s, func(v Var) float64 {
		if v.Prim.Tag == TagInt {
			return float64(v.Prim.AsInt())
		}
		return v.Prim.AsFloat()
	})}}
}

func (m *InflateMap) populateVarArray(o Object, p *VarArrayInfo) error {
	st, err := stateFrom(&p.arrayData, m.value)
	if err != nil {
		return err
	}
	m.heap.SetArrayElements(o, st)
	return nil
}

func (m *InflateMap) populateIntArray(o Object, p *IntArrayInfo) error {
	st, _ := stateFrom(&p.arrayData, func(v int32) (Var, error) { return PrimVar(Int(v)), nil })
	m.heap.SetArrayElements(o, st)
	return nil
}

func (m *InflateMap) populateFloatArray(o Object, p *FloatArrayInfo) error {
	st, _ := stateFrom(&p.arrayData, func(v float64) (Var, error) { return PrimVar(Float(v)), nil })
	m.heap.SetArrayElements(o, st)
	return nil
}

// ---------------------------------------------------------------------------
// ES5 arrays: arrays with accessor elements or a non-writable length
// ---------------------------------------------------------------------------

// AccessorInfo is one accessor element of an ES5 array.
type AccessorInfo struct {
	Index  uint32
	Getter ObjectID
	Setter ObjectID
	Attrs  Attributes
}

type ES5ArrayInfo struct {
	VarArrayInfo
	Accessors      []AccessorInfo
	LengthWritable bool
}

func (p *ES5ArrayInfo) emit(w wire.Writer) {
	p.VarArrayInfo.emit(w)
	w.SequenceStart(wire.KeyAccessors, len(p.Accessors))
	for _, a := range p.Accessors {
		w.RecordStart()
		w.Uint32(wire.KeyIndex, a.Index)
		w.Addr(wire.KeyGetter, uint64(a.Getter))
		w.Addr(wire.KeySetter, uint64(a.Setter))
		w.Tag(wire.KeyAttributes, uint32(a.Attrs))
		w.RecordEnd()
	}
	w.SequenceEnd()
	w.Bool(wire.KeyLengthWritable, p.LengthWritable)
}

func (p *ES5ArrayInfo) parse(r wire.Reader, s *Slab) {
	p.VarArrayInfo.parse(r, s)
	n := r.SequenceStart(wire.KeyAccessors)
	p.Accessors = s.Accessors(n)
	for i := 0; i < n && r.Err() == nil; i++ {
		r.RecordStart()
		p.Accessors[i] = AccessorInfo{
			Index:  r.Uint32(wire.KeyIndex),
			Getter: ObjectID(r.Addr(wire.KeyGetter)),
			Setter: ObjectID(r.Addr(wire.KeySetter)),
			Attrs:  Attributes(r.Tag(wire.KeyAttributes)) & AttrAll,
		}
		r.RecordEnd()
	}
	r.SequenceEnd()
	p.LengthWritable = r.Bool(wire.KeyLengthWritable)
}

func (p *ES5ArrayInfo) references(add func(ObjectID)) {
	p.VarArrayInfo.references(add)
	for _, a := range p.Accessors {
		addID(add, a.Getter)
		addID(add, a.Setter)
	}
}

func (e *Extractor) extractES5Array(o Object) *ES5ArrayInfo {
	st := e.heap.ES5Array(o)
	p := &ES5ArrayInfo{
		VarArrayInfo:   VarArrayInfo{arrayData[Value]{Length: st.Length, Runs: runsFrom(st.Items, e.slab.ValueRuns, e.slab.Values, e.value)}},
		LengthWritable: st.LengthWritable,
		Accessors:      e.slab.Accessors(len(st.Accessors)),
	}
	for i, a := range st.Accessors {
		p.Accessors[i] = AccessorInfo{Index: a.Index, Getter: e.id(a.Getter), Setter: e.id(a.Setter), Attrs: a.Attrs & AttrAll}
	}
	return p
}

func (m *InflateMap) populateES5Array(o Object, p *ES5ArrayInfo) error {
	if err := m.populateVarArray(o, &p.VarArrayInfo); err != nil {
		return err
	}
	acc := make([]IndexAccessor, len(p.Accessors))
	for i, a := range p.Accessors {
		g, err := m.object(a.Getter)
		if err != nil {
			return err
		}
		s, err := m.object(a.Setter)
		if err != nil {
			return err
		}
		acc[i] = IndexAccessor{Index: a.Index, Getter: g, Setter: s, Attrs: a.Attrs}
	}
	m.heap.SetArrayAccessors(o, acc, p.LengthWritable)
	return nil
}
