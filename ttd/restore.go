package ttd

import "fmt"

// ---------------------------------------------------------------------------
// Common property restore
// ---------------------------------------------------------------------------

type accessorPair struct {
	getter, setter Object
}

// StdPropertyRestore replays rec's property table onto obj in order, then
// restores the type-level flags, indexed elements and cross-site mark. Writes
// are skipped when the live state already matches, so restoring twice is a
// no-op.
func (m *InflateMap) StdPropertyRestore(rec *Record, obj Object) error {
	var pairs map[string]*accessorPair
	for _, pe := range rec.Properties {
		if pe.Kind != SlotGetter && pe.Kind != SlotSetter {
			continue
		}
		if pairs == nil {
			pairs = make(map[string]*accessorPair)
		}
		p := pairs[pe.Name]
		if p == nil {
			p = &accessorPair{}
			pairs[pe.Name] = p
		}
		fn, err := m.object(pe.Value.ID())
		if err != nil {
			return err
		}
		if pe.Kind == SlotGetter {
			p.getter = fn
		} else {
			p.setter = fn
		}
	}

	for _, pe := range rec.Properties {
		cur, has := m.heap.LookupOwn(obj, pe.Name)
		switch pe.Kind {
		case SlotClear:
			continue
		case SlotUninitialized:
			if !has || !cur.Uninitialized {
				m.heap.DefineUninitialized(obj, pe.Name)
			}
		case SlotData:
			v, err := m.value(pe.Value)
			if err != nil {
				return err
			}
			if !has || cur.Accessor || cur.Uninitialized || !SameVar(cur.Value, v) {
				m.heap.SetData(obj, pe.Name, v)
			}
		case SlotGetter, SlotSetter:
			p := pairs[pe.Name]
			if !has || !cur.Accessor || cur.Getter != p.getter || cur.Setter != p.setter {
				m.heap.SetAccessors(obj, pe.Name, p.getter, p.setter)
			}
		default:
			return fmt.Errorf("%w: %s slot %q has kind %s", ErrCorruptRecord, rec, pe.Name, pe.Kind)
		}
		if cur, has = m.heap.LookupOwn(obj, pe.Name); !has || cur.Attrs != pe.Attrs {
			m.heap.SetAttributes(obj, pe.Name, pe.Attrs)
		}
	}

	t := m.index.Type(rec.Type)
	if t == nil {
		return fmt.Errorf("%w: %s type %d", ErrUnknownType, rec, rec.Type)
	}
	proto, err := m.value(t.Prototype)
	if err != nil {
		return err
	}
	ti := m.heap.TypeOf(obj)
	if ti.Prototype != proto.Obj {
		m.heap.SetPrototype(obj, proto.Obj)
	}
	if ti.Extensible != t.Extensible {
		m.heap.SetExtensible(obj, t.Extensible)
	}
	if ti.HasNoEnumerableProperties != t.HasNoEnumerableProperties {
		m.heap.SetHasNoEnumerableProperties(obj, t.HasNoEnumerableProperties)
	}

	elems, err := m.object(rec.Indexed)
	if err != nil {
		return err
	}
	if m.heap.IndexedElements(obj) != elems {
		m.heap.SetIndexedElements(obj, elems)
	}

	if rec.CrossSite && !m.heap.IsCrossSite(obj) {
		m.heap.MarkCrossSite(obj)
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-place reset of objects from a previous pass
// ---------------------------------------------------------------------------

func declaredNames(rec *Record) map[string]bool {
	names := make(map[string]bool, len(rec.Properties))
	for _, pe := range rec.Properties {
		if pe.Kind != SlotClear {
			names[pe.Name] = true
		}
	}
	return names
}

// ObjectPropertyResetWellKnown removes every own property of a singleton that
// rec does not declare. Properties that refuse deletion are overwritten with
// undefined instead. Declared properties are left for phase two.
func (m *InflateMap) ObjectPropertyResetWellKnown(rec *Record, obj Object) {
	declared := declaredNames(rec)
	for _, name := range m.heap.OwnNames(obj) {
		if declared[name] {
			continue
		}
		if !m.heap.DeleteOwn(obj, name) {
			m.heap.SetData(obj, name, PrimVar(Undefined()))
		}
		m.propertyReset[name] = struct{}{}
	}
}

// ObjectPropertyResetGeneral prepares obj from a previous pass for reuse as
// rec. It reports false, leaving obj untouched, when obj's property storage
// cannot be reset or an extra property cannot be deleted; the caller then
// allocates a fresh shell.
func (m *InflateMap) ObjectPropertyResetGeneral(rec *Record, obj Object) bool {
	if !m.heap.CanResetTypeHandler(obj, len(rec.Properties)) {
		return false
	}
	declared := declaredNames(rec)
	var extra []string
	for _, name := range m.heap.OwnNames(obj) {
		if declared[name] {
			continue
		}
		if p, ok := m.heap.LookupOwn(obj, name); ok && !p.Attrs.Configurable() {
			return false
		}
		extra = append(extra, name)
	}
	for _, name := range extra {
		if !m.heap.DeleteOwn(obj, name) {
			return false
		}
	}
	return true
}

// BlocksContextReuse reports whether a well-known object holds state a reset
// cannot undo: an extra non-configurable property that is an accessor or
// read-only, or a declared property whose live non-configurable form
// conflicts with the record.
func (m *InflateMap) BlocksContextReuse(rec *Record, obj Object) bool {
	declared := make(map[string]*PropertyEntry, len(rec.Properties))
	for i := range rec.Properties {
		if rec.Properties[i].Kind != SlotClear {
			declared[rec.Properties[i].Name] = &rec.Properties[i]
		}
	}
	for _, name := range m.heap.OwnNames(obj) {
		cur, ok := m.heap.LookupOwn(obj, name)
		if !ok || cur.Attrs.Configurable() {
			continue
		}
		pe := declared[name]
		if pe == nil {
			if cur.Accessor || !cur.Attrs.Writable() {
				return true
			}
			continue
		}
		if pe.Attrs.Configurable() {
			return true
		}
		wantAccessor := pe.Kind == SlotGetter || pe.Kind == SlotSetter
		if cur.Accessor != wantAccessor {
			return true
		}
		if cur.Attrs.Enumerable() != pe.Attrs.Enumerable() {
			return true
		}
		if wantAccessor {
			continue
		}
		if cur.Attrs.Writable() != pe.Attrs.Writable() {
			return true
		}
		if !cur.Attrs.Writable() && pe.Kind == SlotData && !pe.Value.IsRef() &&
			!cur.Value.IsObject() && !cur.Value.Prim.Equal(pe.Value) {
			return true
		}
	}
	return false
}
