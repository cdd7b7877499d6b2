package vectors

import (
	"fmt"

	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// Snapshot is an immutable view of the cached vectors in ascending question ID order.
type Snapshot struct {
	ids     []string
	vectors [][]float32
	zero    []bool
	index   map[string]int
	dim     int
}

var emptySnapshot = &Snapshot{index: map[string]int{}}

// Len returns the number of entries, zero vectors included.
func (s *Snapshot) Len() int { return len(s.ids) }

// Dimension returns the length of the first vector, or 0 when empty.
func (s *Snapshot) Dimension() int { return s.dim }

// ID returns the question ID at position i.
func (s *Snapshot) ID(i int) string { return s.ids[i] }

// Vector returns the unit vector at position i. Callers must not modify it.
func (s *Snapshot) Vector(i int) []float32 { return s.vectors[i] }

// IsZero reports whether the stored vector at position i had zero magnitude.
func (s *Snapshot) IsZero(i int) bool { return s.zero[i] }

// Index returns the position of a question ID.
func (s *Snapshot) Index(questionID string) (int, bool) {
	i, ok := s.index[questionID]
	return i, ok
}

// Lookup returns the unit vector of a question, or false if it is absent or zero.
func (s *Snapshot) Lookup(questionID string) ([]float32, bool) {
	i, ok := s.index[questionID]
	if !ok || s.zero[i] {
		return nil, false
	}
	return s.vectors[i], true
}

// builder accumulates vectors during a load.
type builder struct {
	snap *Snapshot
}

func newBuilder(dim int) *builder {
	return &builder{snap: &Snapshot{index: make(map[string]int), dim: dim}}
}

// add normalizes and appends a vector. The first vector fixes the dimension
// when none was configured; a vector of any other length is rejected with
// storage.ErrDimensionMismatch. Returns false for zero vectors, which are
// kept but flagged.
func (b *builder) add(id string, v []float32) (bool, error) {
	if b.snap.dim == 0 {
		b.snap.dim = len(v)
	}
	if len(v) != b.snap.dim {
		return false, fmt.Errorf("%w: question %s has %d dimensions, cache has %d",
			storage.ErrDimensionMismatch, id, len(v), b.snap.dim)
	}
	unit, ok := core.NormalizeVector(v)
	b.snap.index[id] = len(b.snap.ids)
	b.snap.ids = append(b.snap.ids, id)
	b.snap.vectors = append(b.snap.vectors, unit)
	b.snap.zero = append(b.snap.zero, !ok)
	return ok, nil
}

func (b *builder) snapshot() *Snapshot {
	return b.snap
}
