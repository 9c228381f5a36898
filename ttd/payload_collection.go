package ttd

import "github.com/chazu/ttdsnap/wire"

// ---------------------------------------------------------------------------
// Sets and maps (strong and weak)
// ---------------------------------------------------------------------------

// SetInfo holds a Set or WeakSet's members in insertion order.
type SetInfo struct {
	Values []Value
}

func (p *SetInfo) emit(w wire.Writer) { emitValues(w, wire.KeyValues, p.Values) }
func (p *SetInfo) parse(r wire.Reader, s *Slab) { p.Values = parseValues(r, wire.KeyValues, s) }
func (p *SetInfo) dependsOn(func(ObjectID))     {}

func (p *SetInfo) references(add func(ObjectID)) {
	for _, v := range p.Values {
		addValue(add, v)
	}
}

func (e *Extractor) extractSet(o Object) *SetInfo {
	return &SetInfo{Values: e.values(e.heap.CollectionValues(o))}
}

func (m *InflateMap) populateSet(o Object, p *SetInfo) error {
	vs, err := m.values(p.Values)
	if err != nil {
		return err
	}
	m.heap.SetCollectionValues(o, vs)
	return nil
}

// MapEntry is one key/value pair of a Map or WeakMap.
type MapEntry struct {
	Key   Value
	Value Value
}

// MapInfo holds a Map or WeakMap's entries in insertion order.
type MapInfo struct {
	Entries []MapEntry
}

func (p *MapInfo) emit(w wire.Writer) {
	w.SequenceStart(wire.KeyEntries, len(p.Entries))
	for _, e := range p.Entries {
		emitValue(w, wire.KeyEntryKey, e.Key)
		emitValue(w, wire.KeyValueTag, e.Value)
	}
	w.SequenceEnd()
}

func (p *MapInfo) parse(r wire.Reader, s *Slab) {
	n := r.SequenceStart(wire.KeyEntries)
	p.Entries = s.MapEntries(n)
	for i := 0; i < n && r.Err() == nil; i++ {
		p.Entries[i].Key = parseValue(r, wire.KeyEntryKey)
		p.Entries[i].Value = parseValue(r, wire.KeyValueTag)
	}
	r.SequenceEnd()
}

func (p *MapInfo) dependsOn(func(ObjectID)) {}

func (p *MapInfo) references(add func(ObjectID)) {
	for _, e := range p.Entries {
		addValue(add, e.Key)
		addValue(add, e.Value)
	}
}

func (e *Extractor) extractMap(o Object) *MapInfo {
	entries := e.heap.MapEntries(o)
	p := &MapInfo{Entries: e.slab.MapEntries(len(entries))}
	for i, en := range entries {
		p.Entries[i] = MapEntry{Key: e.value(en.Key), Value: e.value(en.Value)}
	}
	return p
}

func (m *InflateMap) populateMap(o Object, p *MapInfo) error {
	entries := make([]MapEntryVar, len(p.Entries))
	for i, en := range p.Entries {
		k, err := m.value(en.Key)
		if err != nil {
			return err
		}
		v, err := m.value(en.Value)
		if err != nil {
			return err
		}
		entries[i] = MapEntryVar{Key: k, Value: v}
	}
	m.heap.SetMapEntries(o, entries)
	return nil
}
