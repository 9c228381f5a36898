package ttd

import (
	"fmt"

	"github.com/chazu/ttdsnap/wire"
)

// ---------------------------------------------------------------------------
// Snapshot emission and parsing
// ---------------------------------------------------------------------------

// Emit writes s to w and closes w. Field order is fixed; Parse reads in the
// same order.
func Emit(w wire.Writer, s *Snapshot) error {
	w.RecordStart()

	w.SequenceStart(wire.KeyTypes, len(s.Types))
	for _, t := range s.Types {
		w.RecordStart()
		w.Addr(wire.KeyTypeID, uint64(t.ID))
		w.String(wire.KeyTypeName, t.Name)
		emitValue(w, wire.KeyPrototype, t.Prototype)
		w.Bool(wire.KeyExtensible, t.Extensible)
		w.Bool(wire.KeyNoEnumerable, t.HasNoEnumerableProperties)
		w.RecordEnd()
	}
	w.SequenceEnd()

	w.SequenceStart(wire.KeyObjects, len(s.Objects))
	for _, rec := range s.Objects {
		emitRecord(w, rec)
	}
	w.SequenceEnd()

	w.SequenceStart(wire.KeyRoots, len(s.Roots))
	for _, r := range s.Roots {
		w.RecordStart()
		w.String(wire.KeyName, r.Name)
		emitValue(w, wire.KeyValueTag, r.Value)
		w.RecordEnd()
	}
	w.SequenceEnd()

	emitIDs(w, wire.KeyPendingAsync, s.PendingAsyncBuffers)
	w.RecordEnd()

	if err := w.Close(); err != nil {
		return fmt.Errorf("emit snapshot: %w", err)
	}
	return nil
}

func emitRecord(w wire.Writer, rec *Record) {
	w.RecordStart()
	w.Addr(wire.KeyObjectID, uint64(rec.ID))
	w.Tag(wire.KeyKind, uint32(rec.Kind))
	w.Bool(wire.KeyIsWellKnown, rec.WellKnown != "")
	if rec.WellKnown != "" {
		w.String(wire.KeyWellKnownToken, string(rec.WellKnown))
	}
	w.Addr(wire.KeyTypeID, uint64(rec.Type))
	w.Bool(wire.KeyCrossSite, rec.CrossSite)
	emitIDs(w, wire.KeyDependsOn, rec.DependsOn)

	w.SequenceStart(wire.KeyProperties, len(rec.Properties))
	for _, pe := range rec.Properties {
		w.RecordStart()
		w.String(wire.KeyName, pe.Name)
		w.Tag(wire.KeySlotKind, uint32(pe.Kind))
		w.Tag(wire.KeyAttributes, uint32(pe.Attrs))
		emitValue(w, wire.KeyValueTag, pe.Value)
		w.RecordEnd()
	}
	w.SequenceEnd()
	w.Addr(wire.KeyIndexed, uint64(rec.Indexed))

	rec.Payload.emit(w)
	w.RecordEnd()
}

// Parse reads a snapshot written by Emit. Records and their slices are
// allocated from slab; a nil slab gets a fresh one. Any format error aborts
// the parse.
func Parse(r wire.Reader, slab *Slab) (*Snapshot, error) {
	if slab == nil {
		slab = NewSlab(0)
	}
	s := &Snapshot{}
	r.RecordStart()

	n := r.SequenceStart(wire.KeyTypes)
	for i := 0; i < n && r.Err() == nil; i++ {
		r.RecordStart()
		t := &TypeRecord{
			ID:   TypeID(r.Addr(wire.KeyTypeID)),
			Name: r.String(wire.KeyTypeName),
		}
		t.Prototype = parseValue(r, wire.KeyPrototype)
		t.Extensible = r.Bool(wire.KeyExtensible)
		t.HasNoEnumerableProperties = r.Bool(wire.KeyNoEnumerable)
		r.RecordEnd()
		s.Types = append(s.Types, t)
	}
	r.SequenceEnd()

	n = r.SequenceStart(wire.KeyObjects)
	if n > 0 && r.Err() == nil {
		s.Objects = make([]*Record, 0, n)
	}
	for i := 0; i < n && r.Err() == nil; i++ {
		if rec := parseRecord(r, slab); rec != nil {
			s.Objects = append(s.Objects, rec)
		}
	}
	r.SequenceEnd()

	n = r.SequenceStart(wire.KeyRoots)
	for i := 0; i < n && r.Err() == nil; i++ {
		r.RecordStart()
		root := Root{Name: r.String(wire.KeyName)}
		root.Value = parseValue(r, wire.KeyValueTag)
		r.RecordEnd()
		s.Roots = append(s.Roots, root)
	}
	r.SequenceEnd()

	s.PendingAsyncBuffers = parseIDs(r, wire.KeyPendingAsync, slab)
	r.RecordEnd()

	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return s, nil
}

func parseRecord(r wire.Reader, s *Slab) *Record {
	r.RecordStart()
	rec := s.Record()
	rec.ID = ObjectID(r.Addr(wire.KeyObjectID))
	rec.Kind = Kind(r.Tag(wire.KeyKind))
	if r.Err() != nil {
		return nil
	}
	p, err := newPayload(rec.Kind)
	if err != nil || !rec.Kind.Valid() {
		r.Fail(fmt.Errorf("%w: %d in record %s", ErrUnknownKind, uint8(rec.Kind), rec.ID))
		return nil
	}
	if r.Bool(wire.KeyIsWellKnown) {
		rec.WellKnown = WellKnownToken(r.String(wire.KeyWellKnownToken))
	}
	rec.Type = TypeID(r.Addr(wire.KeyTypeID))
	rec.CrossSite = r.Bool(wire.KeyCrossSite)
	rec.DependsOn = parseIDs(r, wire.KeyDependsOn, s)

	n := r.SequenceStart(wire.KeyProperties)
	rec.Properties = s.Properties(n)
	for i := 0; i < n && r.Err() == nil; i++ {
		r.RecordStart()
		pe := &rec.Properties[i]
		pe.Name = r.String(wire.KeyName)
		pe.Kind = SlotKind(r.Tag(wire.KeySlotKind))
		if pe.Kind >= slotKindLimit && r.Err() == nil {
			r.Fail(fmt.Errorf("%w: slot kind %d in record %s", ErrCorruptRecord, uint8(pe.Kind), rec.ID))
		}
		pe.Attrs = Attributes(r.Tag(wire.KeyAttributes)) & AttrAll
		pe.Value = parseValue(r, wire.KeyValueTag)
		r.RecordEnd()
	}
	r.SequenceEnd()
	rec.Indexed = ObjectID(r.Addr(wire.KeyIndexed))

	p.parse(r, s)
	rec.Payload = p
	r.RecordEnd()
	return rec
}
