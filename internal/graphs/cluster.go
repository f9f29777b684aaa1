package graphs

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Subset of a taxon (or species) space; one side of a bipartition. Clusters
// have reference semantics, so a cluster must not be modified once it has
// been shared (e.g., added to a ClusterCollection or used as a side).
type Cluster struct {
	bits *bitset.BitSet
	n    int
}

// Empty cluster over a space of n taxa
func NewCluster(n int) Cluster {
	return Cluster{bits: bitset.New(uint(n)), n: n}
}

// Cluster over a space of n taxa containing ids
func ClusterOf(n int, ids ...int) Cluster {
	c := NewCluster(n)
	for _, id := range ids {
		c.Set(id)
	}
	return c
}

// Cluster containing every taxon in a space of n
func FullCluster(n int) Cluster {
	c := NewCluster(n)
	c.bits.FlipRange(0, uint(n))
	return c
}

// Width of the taxon space
func (c Cluster) Len() int { return c.n }

func (c Cluster) Count() int { return int(c.bits.Count()) }

func (c Cluster) Test(id int) bool { return c.bits.Test(uint(id)) }

func (c Cluster) Set(id int) { c.bits.Set(uint(id)) }

func (c Cluster) Empty() bool { return c.bits.None() }

func (c Cluster) Full() bool { return c.Count() == c.n }

func (c Cluster) Clone() Cluster { return Cluster{bits: c.bits.Clone(), n: c.n} }

func (c Cluster) Union(o Cluster) Cluster { return Cluster{bits: c.bits.Union(o.bits), n: c.n} }

func (c Cluster) InPlaceUnion(o Cluster) { c.bits.InPlaceUnion(o.bits) }

func (c Cluster) Difference(o Cluster) Cluster {
	return Cluster{bits: c.bits.Difference(o.bits), n: c.n}
}

func (c Cluster) Complement() Cluster { return Cluster{bits: c.bits.Complement(), n: c.n} }

func (c Cluster) Equal(o Cluster) bool { return c.n == o.n && c.bits.Equal(o.bits) }

// c is a subset of o
func (c Cluster) IsSubsetOf(o Cluster) bool { return o.bits.IsSuperSet(c.bits) }

func (c Cluster) Disjoint(o Cluster) bool { return c.bits.IntersectionCardinality(o.bits) == 0 }

// Smallest member, or -1 if empty
func (c Cluster) First() int {
	if i, ok := c.bits.NextSet(0); ok {
		return int(i)
	}
	return -1
}

// Members in ascending order
func (c Cluster) Members() []int {
	members := make([]int, 0, c.Count())
	for i, ok := c.bits.NextSet(0); ok; i, ok = c.bits.NextSet(i + 1) {
		members = append(members, int(i))
	}
	return members
}

// Side of the bipartition {c, complement} that does not contain taxon 0
func (c Cluster) Canonical() Cluster {
	if c.Test(0) {
		return c.Complement()
	}
	return c
}

// Content key usable as a map key; equal clusters have equal keys
func (c Cluster) Key() string {
	words := c.bits.Bytes()
	buf := make([]byte, 0, 8*len(words))
	for _, w := range words {
		buf = binary.LittleEndian.AppendUint64(buf, w)
	}
	return string(buf)
}

func (c Cluster) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, id := range c.Members() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(id))
	}
	sb.WriteByte('}')
	return sb.String()
}

// Comma separated member names
func (c Cluster) Names(ts *TaxonSpace) string {
	members := c.Members()
	names := make([]string, len(members))
	for i, id := range members {
		names[i] = ts.Name(id)
	}
	return strings.Join(names, ",")
}
