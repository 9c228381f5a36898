package ttd

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Property table
// ---------------------------------------------------------------------------

// SlotKind says what a property slot holds.
type SlotKind uint8

const (
	// SlotClear is a slot that never had a value stored. Restore skips it.
	SlotClear SlotKind = iota
	// SlotUninitialized is declared but not yet assigned, like a lexical
	// binding before its declaration runs. Restore recreates it empty.
	SlotUninitialized
	SlotData
	SlotGetter
	SlotSetter
	slotKindLimit
)

var slotKindNames = [slotKindLimit]string{"clear", "uninitialized", "data", "getter", "setter"}

func (k SlotKind) String() string {
	if k < slotKindLimit {
		return slotKindNames[k]
	}
	return fmt.Sprintf("slot(%d)", uint8(k))
}

// Attributes are the property attribute bits.
type Attributes uint8

const (
	AttrWritable Attributes = 1 << iota
	AttrEnumerable
	AttrConfigurable

	AttrAll = AttrWritable | AttrEnumerable | AttrConfigurable
)

func (a Attributes) Writable() bool { return a&AttrWritable != 0 }
func (a Attributes) Enumerable() bool { return a&AttrEnumerable != 0 }
func (a Attributes) Configurable() bool { return a&AttrConfigurable != 0 }

func (a Attributes) String() string {
	var b strings.Builder
	for _, f := range []struct {
		bit Attributes
		c   byte
	}{{AttrWritable, 'w'}, {AttrEnumerable, 'e'}, {AttrConfigurable, 'c'}} {
		if a&f.bit != 0 {
			b.WriteByte(f.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// PropertyEntry is one slot of a record's property table. Value holds the
// data value for SlotData and a reference to the accessor function for
// SlotGetter and SlotSetter; it is absent otherwise.
type PropertyEntry struct {
	Name  string
	Kind  SlotKind
	Attrs Attributes
	Value Value
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

// Record is the serialized description of one live object.
type Record struct {
	ID        ObjectID
	Kind      Kind
	WellKnown WellKnownToken
	Type      TypeID
	CrossSite bool

	// Properties is in the type's own slot order, inline slots first.
	Properties []PropertyEntry
	Indexed    ObjectID

	// DependsOn lists objects whose shells must exist before this record's
	// shell can be created.
	DependsOn []ObjectID

	Payload Payload
}

func (r *Record) String() string {
	if r.WellKnown != "" {
		return fmt.Sprintf("%s %s<%s>", r.ID, r.Kind, r.WellKnown)
	}
	return fmt.Sprintf("%s %s", r.ID, r.Kind)
}

// TypeRecord describes a type descriptor: the host type name and the
// per-type state that restore applies after properties.
type TypeRecord struct {
	ID                        TypeID
	Name                      string
	Prototype                 Value
	Extensible                bool
	HasNoEnumerableProperties bool
}

// Root is a named entry point into the heap. Compare pairs roots by name.
type Root struct {
	Name  string
	Value Value
}

// Snapshot is a full record set for one heap.
type Snapshot struct {
	Types   []*TypeRecord
	Objects []*Record
	Roots   []Root

	// PendingAsyncBuffers are array buffers with an asynchronous mutation in
	// flight when the snapshot was taken.
	PendingAsyncBuffers []ObjectID
}

// Index provides lookup by id over a snapshot.
type Index struct {
	objects map[ObjectID]*Record
	types   map[TypeID]*TypeRecord
	pending map[ObjectID]bool
}

// NewIndex builds an Index. Duplicate ids are reported as ErrDuplicateID.
func NewIndex(s *Snapshot) (*Index, error) {
	ix := &Index{
		objects: make(map[ObjectID]*Record, len(s.Objects)),
		types:   make(map[TypeID]*TypeRecord, len(s.Types)),
		pending: make(map[ObjectID]bool, len(s.PendingAsyncBuffers)),
	}
	for _, t := range s.Types {
		if _, dup := ix.types[t.ID]; dup {
			return nil, fmt.Errorf("%w: type %d", ErrDuplicateID, t.ID)
		}
		ix.types[t.ID] = t
	}
	for _, r := range s.Objects {
		if r.ID == InvalidID {
			return nil, fmt.Errorf("%w: record with invalid id", ErrCorruptRecord)
		}
		if _, dup := ix.objects[r.ID]; dup {
			return nil, fmt.Errorf("%w: object %s", ErrDuplicateID, r.ID)
		}
		ix.objects[r.ID] = r
	}
	for _, id := range s.PendingAsyncBuffers {
		ix.pending[id] = true
	}
	return ix, nil
}

func (ix *Index) Record(id ObjectID) *Record { return ix.objects[id] }
func (ix *Index) Type(id TypeID) *TypeRecord { return ix.types[id] }
func (ix *Index) Pending(id ObjectID) bool { return ix.pending[id] }
func (ix *Index) Len() int { return len(ix.objects) }
