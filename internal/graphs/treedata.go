package graphs

import "fmt"

// Tree plus per-node side tables. Each TreeData owns its own tables, so
// several annotated copies of one input tree never share mutable state.
type TreeData struct {
	*Tree
	Clusters       []Cluster // leaves under each node (index = node id)
	NumLeavesBelow []int     // number of leaves under each node
	All            Cluster   // taxa present in the tree
	leafNode       []int     // taxon id -> node id (-1 if absent)
}

// Annotates tre (over a space of n taxa) with bottom-up clusters. The tree
// must not be edited afterwards.
func MakeTreeData(tre *Tree, n int) *TreeData {
	td := &TreeData{
		Tree:           tre,
		Clusters:       make([]Cluster, tre.Len()),
		NumLeavesBelow: make([]int, tre.Len()),
		All:            NewCluster(n),
		leafNode:       make([]int, n),
	}
	for i := range td.leafNode {
		td.leafNode[i] = -1
	}
	tre.PostOrder(func(v int) {
		if tre.IsLeaf(v) {
			taxon := tre.Taxon(v)
			if td.All.Test(taxon) {
				panic(fmt.Sprintf("taxon %d appears twice in tree", taxon))
			}
			td.All.Set(taxon)
			td.leafNode[taxon] = v
			td.Clusters[v] = ClusterOf(n, taxon)
			td.NumLeavesBelow[v] = 1
			return
		}
		children := tre.Children(v)
		td.Clusters[v] = td.Clusters[children[0]].Clone()
		for _, c := range children[1:] {
			td.Clusters[v].InPlaceUnion(td.Clusters[c])
		}
		td.NumLeavesBelow[v] = td.Clusters[v].Count()
	})
	return td
}

// Width of the taxon space
func (td *TreeData) Width() int { return td.All.Len() }

// Node id of the leaf labeled taxon, or -1
func (td *TreeData) LeafNode(taxon int) int { return td.leafNode[taxon] }

// Number of taxa missing from the tree
func (td *TreeData) Missing() int { return td.All.Len() - td.All.Count() }

// Internal nodes with more than two children, in preorder
func (td *TreeData) Polytomies() []int {
	result := make([]int, 0)
	td.PreOrder(func(v int) {
		if len(td.Children(v)) > 2 {
			result = append(result, v)
		}
	})
	return result
}

// Clusters of the children of v plus the rest of the tree's taxa, if any
func (td *TreeData) Sides(v int) []Cluster {
	children := td.Children(v)
	sides := make([]Cluster, 0, len(children)+1)
	for _, c := range children {
		sides = append(sides, td.Clusters[c])
	}
	if rest := td.All.Difference(td.Clusters[v]); !rest.Empty() {
		sides = append(sides, rest)
	}
	return sides
}

// Nontrivial bipartitions of the tree restricted to a sample. index maps a
// taxon id to its position in the sample (or -1); the result is over the m
// sample positions, in canonical form (the side without position 0), with
// each bipartition reported once.
func (td *TreeData) SampledClusters(index []int, m int) []Cluster {
	sampled := make([]Cluster, td.Len())
	seen := make(map[string]bool)
	result := make([]Cluster, 0)
	td.PostOrder(func(v int) {
		sampled[v] = NewCluster(m)
		if td.IsLeaf(v) {
			if i := index[td.Taxon(v)]; i >= 0 {
				sampled[v].Set(i)
			}
			return
		}
		for _, c := range td.Children(v) {
			sampled[v].InPlaceUnion(sampled[c])
		}
		if v == td.Root() {
			return
		}
		if size := sampled[v].Count(); size >= 2 && size <= m-2 {
			c := sampled[v].Canonical()
			if key := c.Key(); !seen[key] {
				seen[key] = true
				result = append(result, c)
			}
		}
	})
	return result
}

// Nontrivial bipartitions of a complete tree in canonical form
func (td *TreeData) Splits() []Cluster {
	return td.SampledClusters(identityIndex(td.Width()), td.Width())
}

func identityIndex(n int) []int {
	index := make([]int, n)
	for i := range index {
		index[i] = i
	}
	return index
}

// Returns cluster of node as a string of taxon names for printing/testing
func (td *TreeData) LeafsetAsString(v int, ts *TaxonSpace) string {
	return "{" + td.Clusters[v].Names(ts) + "}"
}
