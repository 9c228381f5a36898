package ttd

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Equivalence checking across two runs
// ---------------------------------------------------------------------------

// CompareOptions tunes Compare.
type CompareOptions struct {
	// StrictCrossSite requires cross-site flags to match exactly. Otherwise
	// only a cross-site object in A that is not cross-site in B is reported:
	// replay may mark more objects than record did, never fewer.
	StrictCrossSite bool
}

// DefaultCompareOptions returns the strict policy.
func DefaultCompareOptions() CompareOptions {
	return CompareOptions{StrictCrossSite: true}
}

// Assertion is one divergence between two snapshots. Path names how the
// objects were reached, e.g. root(global).items[3].get.
type Assertion struct {
	Path    string
	A       ObjectID
	B       ObjectID
	Message string
}

func (a Assertion) String() string {
	return fmt.Sprintf("%s (%s / %s): %s", a.Path, a.A, a.B, a.Message)
}

// Report is the outcome of Compare.
type Report struct {
	Assertions []Assertion
	// Compared counts the record pairs visited.
	Compared int
}

// Pass reports whether no assertion fired.
func (r *Report) Pass() bool { return len(r.Assertions) == 0 }

type comparePair struct {
	a, b ObjectID
	path string
}

type comparer struct {
	opts   CompareOptions
	ia, ib *Index

	ab, ba         map[ObjectID]ObjectID
	cellAB, cellBA map[ObjectID]ObjectID

	queue  []comparePair
	report *Report
}

// Compare walks a and b in parallel from their roots. Ids in a may differ
// from ids in b, but once a pair is matched every later reference must
// respect that pairing. Divergences are returned as data; the error is only
// for snapshots that cannot be indexed.
func Compare(a, b *Snapshot, opts CompareOptions) (*Report, error) {
	ia, err := NewIndex(a)
	if err != nil {
		return nil, fmt.Errorf("snapshot A: %w", err)
	}
	ib, err := NewIndex(b)
	if err != nil {
		return nil, fmt.Errorf("snapshot B: %w", err)
	}
	c := &comparer{
		opts:   opts,
		ia:     ia,
		ib:     ib,
		ab:     make(map[ObjectID]ObjectID),
		ba:     make(map[ObjectID]ObjectID),
		cellAB: make(map[ObjectID]ObjectID),
		cellBA: make(map[ObjectID]ObjectID),
		report: &Report{},
	}

	rootsB := make(map[string]Value, len(b.Roots))
	for _, r := range b.Roots {
		rootsB[r.Name] = r.Value
	}
	seen := make(map[string]bool, len(a.Roots))
	for _, r := range a.Roots {
		seen[r.Name] = true
		path := "root(" + r.Name + ")"
		vb, ok := rootsB[r.Name]
		if !ok {
			c.fail(path, r.Value.ID(), InvalidID, "root missing in B")
			continue
		}
		c.value(path, r.Value, vb)
	}
	for _, r := range b.Roots {
		if !seen[r.Name] {
			c.fail("root("+r.Name+")", InvalidID, r.Value.ID(), "root missing in A")
		}
	}

	for len(c.queue) > 0 {
		p := c.queue[0]
		c.queue = c.queue[1:]
		c.record(p)
	}

	compareLog.Debugf("compared %d record pairs, %d assertions", c.report.Compared, len(c.report.Assertions))
	return c.report, nil
}

func (c *comparer) fail(path string, a, b ObjectID, format string, args ...any) {
	c.report.Assertions = append(c.report.Assertions, Assertion{
		Path:    path,
		A:       a,
		B:       b,
		Message: fmt.Sprintf(format, args...),
	})
}

func check[T comparable](c *comparer, path string, a, b ObjectID, field string, va, vb T) {
	if va != vb {
		c.fail(path, a, b, "%s: %v != %v", field, va, vb)
	}
}

// id matches a reference in A with one in B.
func (c *comparer) id(path string, a, b ObjectID) {
	switch {
	case a == InvalidID && b == InvalidID:
		return
	case a == InvalidID || b == InvalidID:
		c.fail(path, a, b, "reference present in only one snapshot")
		return
	case a.IsCell() != b.IsCell():
		c.fail(path, a, b, "cell matched with object")
		return
	case a.IsCell():
		c.mapPair(path, a, b, c.cellAB, c.cellBA)
		return
	}
	if c.mapPair(path, a, b, c.ab, c.ba) {
		c.queue = append(c.queue, comparePair{a: a, b: b, path: path})
	}
}

// mapPair records a <-> b and reports whether the pair is new.
func (c *comparer) mapPair(path string, a, b ObjectID, ab, ba map[ObjectID]ObjectID) bool {
	prevB, okA := ab[a]
	prevA, okB := ba[b]
	if okA && prevB != b {
		c.fail(path, a, b, "A %s already matched with B %s", a, prevB)
		return false
	}
	if okB && prevA != a {
		c.fail(path, a, b, "B %s already matched with A %s", b, prevA)
		return false
	}
	if okA {
		return false
	}
	ab[a] = b
	ba[b] = a
	return true
}

func (c *comparer) value(path string, va, vb Value) {
	if va.Tag != vb.Tag {
		c.fail(path, va.ID(), vb.ID(), "value %s != %s", va, vb)
		return
	}
	switch va.Tag {
	case TagObject:
		c.id(path, va.ID(), vb.ID())
	case TagSymbol:
		// Symbol ids are per run; descriptions are the stable part.
		if va.Str != vb.Str {
			c.fail(path, InvalidID, InvalidID, "symbol %s != %s", va, vb)
		}
	default:
		if !va.Equal(vb) {
			c.fail(path, InvalidID, InvalidID, "value %s != %s", va, vb)
		}
	}
}

func (c *comparer) record(p comparePair) {
	ra, rb := c.ia.Record(p.a), c.ib.Record(p.b)
	if ra == nil || rb == nil {
		c.fail(p.path, p.a, p.b, "record missing (A %t, B %t)", ra != nil, rb != nil)
		return
	}
	c.report.Compared++

	if ra.Kind != rb.Kind {
		c.fail(p.path, p.a, p.b, "kind %s != %s", ra.Kind, rb.Kind)
		return
	}
	check(c, p.path, p.a, p.b, "well-known", ra.WellKnown, rb.WellKnown)
	c.typeRecord(p.path, ra, rb)

	if c.opts.StrictCrossSite {
		check(c, p.path, p.a, p.b, "cross-site", ra.CrossSite, rb.CrossSite)
	} else if ra.CrossSite && !rb.CrossSite {
		c.fail(p.path, p.a, p.b, "cross-site in A but not in B")
	}

	c.properties(p.path, ra, rb)
	c.id(p.path+".indexed", ra.Indexed, rb.Indexed)
	c.payload(p.path, ra, rb)
}

func (c *comparer) typeRecord(path string, ra, rb *Record) {
	ta, tb := c.ia.Type(ra.Type), c.ib.Type(rb.Type)
	if ta == nil || tb == nil {
		c.fail(path, ra.ID, rb.ID, "type record missing (A %t, B %t)", ta != nil, tb != nil)
		return
	}
	check(c, path, ra.ID, rb.ID, "type name", ta.Name, tb.Name)
	check(c, path, ra.ID, rb.ID, "extensible", ta.Extensible, tb.Extensible)
	check(c, path, ra.ID, rb.ID, "no-enumerable flag", ta.HasNoEnumerableProperties, tb.HasNoEnumerableProperties)
	c.value(path+".__proto__", ta.Prototype, tb.Prototype)
}

func slotPath(path string, pe PropertyEntry) string {
	switch pe.Kind {
	case SlotGetter:
		return path + "." + pe.Name + ".get"
	case SlotSetter:
		return path + "." + pe.Name + ".set"
	}
	return path + "." + pe.Name
}

type slotKey struct {
	name   string
	setter bool
}

func (c *comparer) properties(path string, ra, rb *Record) {
	inB := make(map[slotKey]PropertyEntry, len(rb.Properties))
	for _, pe := range rb.Properties {
		if pe.Kind != SlotClear {
			inB[slotKey{pe.Name, pe.Kind == SlotSetter}] = pe
		}
	}
	for _, pa := range ra.Properties {
		if pa.Kind == SlotClear {
			continue
		}
		sp := slotPath(path, pa)
		k := slotKey{pa.Name, pa.Kind == SlotSetter}
		pb, ok := inB[k]
		if !ok {
			c.fail(sp, ra.ID, rb.ID, "property missing in B")
			continue
		}
		delete(inB, k)
		if pa.Kind != pb.Kind {
			c.fail(sp, ra.ID, rb.ID, "slot kind %s != %s", pa.Kind, pb.Kind)
			continue
		}
		check(c, sp, ra.ID, rb.ID, "attributes", pa.Attrs, pb.Attrs)
		c.value(sp, pa.Value, pb.Value)
	}
	for _, pb := range rb.Properties {
		if _, extra := inB[slotKey{pb.Name, pb.Kind == SlotSetter}]; extra && pb.Kind != SlotClear {
			c.fail(slotPath(path, pb), ra.ID, rb.ID, "property missing in A")
		}
	}
}

func indexPath(path string, i uint32) string {
	return path + "[" + strconv.FormatUint(uint64(i), 10) + "]"
}
