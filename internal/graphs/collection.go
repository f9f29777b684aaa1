package graphs

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// Deduplicated set of clusters ("set X") bucketed by cluster size. Safe for
// concurrent use; each size bucket has its own lock.
type ClusterCollection struct {
	n       int
	buckets []clusterBucket
	count   atomic.Int64
}

type clusterBucket struct {
	mu       sync.Mutex
	clusters map[string]Cluster
}

// Empty collection over a space of n taxa
func NewClusterCollection(n int) *ClusterCollection {
	cc := &ClusterCollection{n: n, buckets: make([]clusterBucket, n+1)}
	for i := range cc.buckets {
		cc.buckets[i].clusters = make(map[string]Cluster)
	}
	return cc
}

// Width of the taxon space
func (cc *ClusterCollection) Len() int { return cc.n }

// Adds a copy of c; returns true if c was not already present. The empty and
// full clusters are never stored.
func (cc *ClusterCollection) Add(c Cluster) bool {
	if c.Len() != cc.n {
		panic(fmt.Sprintf("cluster width %d does not match collection width %d", c.Len(), cc.n))
	}
	size := c.Count()
	if size == 0 || size == cc.n {
		return false
	}
	key := c.Key()
	b := &cc.buckets[size]
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clusters[key]; ok {
		return false
	}
	b.clusters[key] = c.Clone()
	cc.count.Add(1)
	return true
}

func (cc *ClusterCollection) Contains(c Cluster) bool {
	if c.Len() != cc.n {
		return false
	}
	b := &cc.buckets[c.Count()]
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.clusters[c.Key()]
	return ok
}

// Total number of stored clusters
func (cc *ClusterCollection) Count() int { return int(cc.count.Load()) }

// Full cluster; the root sentinel of every tree over the space. It is not
// counted as a member of the collection.
func (cc *ClusterCollection) Root() Cluster { return FullCluster(cc.n) }

// Clusters of the given size, ordered by their members
func (cc *ClusterCollection) BySize(size int) []Cluster {
	if size < 0 || size > cc.n {
		return nil
	}
	b := &cc.buckets[size]
	b.mu.Lock()
	result := make([]Cluster, 0, len(b.clusters))
	for _, c := range b.clusters {
		result = append(result, c)
	}
	b.mu.Unlock()
	slices.SortFunc(result, compareMembers)
	return result
}

// Number of clusters per size (index = size)
func (cc *ClusterCollection) SizeCounts() []int {
	counts := make([]int, cc.n+1)
	for i := range cc.buckets {
		b := &cc.buckets[i]
		b.mu.Lock()
		counts[i] = len(b.clusters)
		b.mu.Unlock()
	}
	return counts
}

// All clusters ordered by size, then by members
func (cc *ClusterCollection) All() []Cluster {
	result := make([]Cluster, 0, cc.Count())
	for size := range cc.n + 1 {
		result = append(result, cc.BySize(size)...)
	}
	return result
}

func compareMembers(a, b Cluster) int {
	return slices.Compare(a.Members(), b.Members())
}

// One cluster per line, as comma separated taxon names
func (cc *ClusterCollection) Format(ts *TaxonSpace) string {
	var sb strings.Builder
	for _, c := range cc.All() {
		sb.WriteString(c.Names(ts))
		sb.WriteByte('\n')
	}
	return sb.String()
}
