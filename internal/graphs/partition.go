package graphs

import (
	"errors"
	"fmt"
)

var ErrInvalidPartition = errors.New("invalid partition")

// Pairwise disjoint, non-empty clusters over one space; the sides around a
// polytomy (a tripartition when there are three).
type Partition struct {
	sides []Cluster
}

// Validates sides and makes a partition. Sides must share one width, be
// non-empty, and be pairwise disjoint; at least two are required.
func NewPartition(sides ...Cluster) (*Partition, error) {
	if len(sides) < 2 {
		return nil, fmt.Errorf("%w, %d sides given (at least 2 required)", ErrInvalidPartition, len(sides))
	}
	n := sides[0].Len()
	seen := NewCluster(n)
	for i, s := range sides {
		switch {
		case s.bits == nil:
			return nil, fmt.Errorf("%w, side %d is nil", ErrInvalidPartition, i)
		case s.Len() != n:
			return nil, fmt.Errorf("%w, side %d has width %d (expected %d)", ErrInvalidPartition, i, s.Len(), n)
		case s.Empty():
			return nil, fmt.Errorf("%w, side %d is empty", ErrInvalidPartition, i)
		case !seen.Disjoint(s):
			return nil, fmt.Errorf("%w, side %d %s overlaps another side", ErrInvalidPartition, i, s)
		}
		seen.InPlaceUnion(s)
	}
	return &Partition{sides: sides}, nil
}

func (p *Partition) Len() int { return len(p.sides) }

func (p *Partition) Side(i int) Cluster { return p.sides[i] }

// Sides of the partition; do not modify
func (p *Partition) Sides() []Cluster { return p.sides }

// Width of the underlying space
func (p *Partition) Width() int { return p.sides[0].Len() }

// Maps a cluster over side indices back to the underlying space by taking
// the union of the selected sides.
func (p *Partition) Expand(indices Cluster) Cluster {
	if indices.Len() != len(p.sides) {
		panic(fmt.Sprintf("index cluster width %d != %d sides", indices.Len(), len(p.sides)))
	}
	result := NewCluster(p.Width())
	for _, i := range indices.Members() {
		result.InPlaceUnion(p.sides[i])
	}
	return result
}
