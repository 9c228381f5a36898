package ttd

// ---------------------------------------------------------------------------
// Slab: linear allocator for snapshot-side slices
// ---------------------------------------------------------------------------

// DefaultSlabChunk is the element count of each backing chunk.
const DefaultSlabChunk = 4096

// arena hands out sub-slices of a chunk until it is exhausted, then starts a
// new chunk. Requests larger than half a chunk get a dedicated allocation.
type arena[T any] struct {
	buf    []T
	off    int
	size   int
	chunks int
}

func (a *arena[T]) alloc(n int) []T {
	if n <= 0 {
		return nil
	}
	if n > a.size/2 {
		a.chunks++
		return make([]T, n)
	}
	if a.off+n > len(a.buf) {
		a.buf = make([]T, a.size)
		a.off = 0
		a.chunks++
	}
	s := a.buf[a.off : a.off+n : a.off+n]
	a.off += n
	return s
}

func (a *arena[T]) reset() {
	clear(a.buf[:a.off])
	a.off = 0
}

// Slab owns every slice built while extracting or parsing one snapshot.
// Records built from a slab must not be used after Reset. There is no
// per-item free.
//
// The Objects and Types lists of a Snapshot are ordinary slices, as is
// anything handed to the host during inflation.
type Slab struct {
	values  arena[Value]
	ids     arena[ObjectID]
	props   arena[PropertyEntry]
	bools   arena[bool]
	bytes   arena[byte]
	records arena[Record]

	ints      arena[int32]
	floats    arena[float64]
	entries   arena[MapEntry]
	reactions arena[ReactionInfo]
	accessors arena[AccessorInfo]
	valueRuns arena[ArrayRun[Value]]
	intRuns   arena[ArrayRun[int32]]
	floatRuns arena[ArrayRun[float64]]
}

// NewSlab returns a slab with chunks of chunk elements per element type.
func NewSlab(chunk int) *Slab {
	if chunk <= 0 {
		chunk = DefaultSlabChunk
	}
	s := &Slab{}
	s.values.size = chunk
	s.ids.size = chunk
	s.props.size = chunk
	s.bools.size = chunk
	s.bytes.size = chunk * 16
	s.records.size = chunk / 4
	s.ints.size = chunk
	s.floats.size = chunk
	for _, size := range []*int{
		&s.entries.size, &s.reactions.size, &s.accessors.size,
		&s.valueRuns.size, &s.intRuns.size, &s.floatRuns.size,
	} {
		*size = chunk / 8
	}
	return s
}

func (s *Slab) Values(n int) []Value { return s.values.alloc(n) }
func (s *Slab) IDs(n int) []ObjectID { return s.ids.alloc(n) }
func (s *Slab) Properties(n int) []PropertyEntry { return s.props.alloc(n) }
func (s *Slab) Bools(n int) []bool { return s.bools.alloc(n) }
func (s *Slab) Int32s(n int) []int32 { return s.ints.alloc(n) }
func (s *Slab) Float64s(n int) []float64 { return s.floats.alloc(n) }
func (s *Slab) MapEntries(n int) []MapEntry { return s.entries.alloc(n) }
func (s *Slab) Reactions(n int) []ReactionInfo { return s.reactions.alloc(n) }
func (s *Slab) Accessors(n int) []AccessorInfo { return s.accessors.alloc(n) }
func (s *Slab) ValueRuns(n int) []ArrayRun[Value] { return s.valueRuns.alloc(n) }
func (s *Slab) IntRuns(n int) []ArrayRun[int32] { return s.intRuns.alloc(n) }
func (s *Slab) FloatRuns(n int) []ArrayRun[float64] { return s.floatRuns.alloc(n) }

// Bytes copies b into the slab.
func (s *Slab) Bytes(b []byte) []byte {
	out := s.bytes.alloc(len(b))
	copy(out, b)
	return out
}

// Record returns a zeroed record.
func (s *Slab) Record() *Record {
	return &s.records.alloc(1)[0]
}

// Chunks reports how many backing chunks have been allocated since creation.
func (s *Slab) Chunks() int {
	return s.values.chunks + s.ids.chunks + s.props.chunks + s.bools.chunks + s.bytes.chunks + s.records.chunks +
		s.ints.chunks + s.floats.chunks + s.entries.chunks + s.reactions.chunks + s.accessors.chunks +
		s.valueRuns.chunks + s.intRuns.chunks + s.floatRuns.chunks
}

// Reset releases every allocation at once. The current chunks are kept for
// reuse.
func (s *Slab) Reset() {
	s.values.reset()
	s.ids.reset()
	s.props.reset()
	s.bools.reset()
	s.bytes.reset()
	s.records.reset()
	s.ints.reset()
	s.floats.reset()
	s.entries.reset()
	s.reactions.reset()
	s.accessors.reset()
	s.valueRuns.reset()
	s.intRuns.reset()
	s.floatRuns.reset()
}
