package graphs

import (
	"math/rand/v2"
	"slices"
)

// Tree over m elements grown by inserting compatible clusters into a star
type GreedyTree struct {
	*Tree
	m        int
	clusters []Cluster
}

// Star tree over m elements (leaf taxon = element index)
func NewGreedyTree(m int) *GreedyTree {
	g := &GreedyTree{Tree: NewTree(), m: m}
	root := g.AddInternal()
	g.SetRoot(root)
	g.clusters = append(g.clusters, FullCluster(m))
	for i := range m {
		leaf := g.AddLeaf(i)
		g.Attach(root, leaf)
		g.clusters = append(g.clusters, ClusterOf(m, i))
	}
	return g
}

// Inserts c as a new clade if it is compatible with the tree: the children of
// the lowest node containing c that lie inside c must cover c exactly.
// Returns false if c is incompatible or already present.
func (g *GreedyTree) Insert(c Cluster) bool {
	if c.Count() < 2 || c.Count() >= g.m {
		return false
	}
	lca := g.Root()
descend:
	for {
		for _, ch := range g.Children(lca) {
			if c.IsSubsetOf(g.clusters[ch]) {
				lca = ch
				continue descend
			}
		}
		break
	}
	if g.clusters[lca].Equal(c) {
		return false
	}
	moved, covered := make([]int, 0), 0
	for _, ch := range g.Children(lca) {
		if g.clusters[ch].IsSubsetOf(c) {
			moved = append(moved, ch)
			covered += g.clusters[ch].Count()
		}
	}
	if covered != c.Count() {
		return false
	}
	u := g.AddInternal()
	g.clusters = append(g.clusters, c.Clone())
	for _, ch := range moved {
		g.removeChild(lca, ch)
		g.Attach(u, ch)
	}
	g.Attach(lca, u)
	return true
}

// Annotated copy of the tree
func (g *GreedyTree) Data() *TreeData {
	return MakeTreeData(g.Tree.Clone(), g.m)
}

// Bipartition with the number of trees it was observed in
type SplitCount struct {
	Cluster Cluster
	Count   int
}

// Counts canonical bipartitions over lists of per-tree bipartitions and
// returns them by descending count. Ties keep first-seen order, or a random
// order if rng is not nil.
func CountSplits(perTree [][]Cluster, rng *rand.Rand) []SplitCount {
	index := make(map[string]int)
	counts := make([]SplitCount, 0)
	for _, splits := range perTree {
		for _, s := range splits {
			key := s.Key()
			if i, ok := index[key]; ok {
				counts[i].Count++
				continue
			}
			index[key] = len(counts)
			counts = append(counts, SplitCount{Cluster: s, Count: 1})
		}
	}
	if rng != nil {
		rng.Shuffle(len(counts), func(i, j int) { counts[i], counts[j] = counts[j], counts[i] })
	}
	slices.SortStableFunc(counts, func(a, b SplitCount) int { return b.Count - a.Count })
	return counts
}

// Greedy consensus of complete trees over m taxa, one tree per threshold.
// A bipartition is considered for a threshold only if the fraction of trees
// containing it exceeds the threshold.
func GreedyConsensus(trees []*TreeData, thresholds []float64, m int, rng *rand.Rand) []*TreeData {
	perTree := make([][]Cluster, len(trees))
	for i, td := range trees {
		perTree[i] = td.Splits()
	}
	counts := CountSplits(perTree, rng)
	result := make([]*TreeData, len(thresholds))
	for i, th := range thresholds {
		g := NewGreedyTree(m)
		for _, sc := range counts {
			if float64(sc.Count)/float64(len(trees)) <= th {
				break
			}
			g.Insert(sc.Cluster)
		}
		result[i] = g.Data()
	}
	return result
}
