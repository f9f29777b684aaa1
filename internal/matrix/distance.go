package matrix

import (
	"go.uber.org/zap"

	gr "github.com/jsdoublel/setx/internal/graphs"
)

// Average internode distance; lower is closer, diagonal is 0
type Distance struct {
	core
}

func NewDistance(n int) *Distance {
	return &Distance{core: newCore(n, 0, func(a, b float64) bool { return a < b })}
}

func (d *Distance) IsDistance() bool { return true }

func (d *Distance) Induced(sample []int) Matrix {
	return &Distance{core: d.induced(sample)}
}

// Cell (l, r) is the number of edges between l and r in the unrooted gene
// trees, averaged over trees containing both. Pairs never seen together get
// the largest observed average.
func (d *Distance) Populate(trees []*gr.TreeData, spm *gr.SpeciesMap, nprocs int) (Matrix, error) {
	zap.S().Infof("computing internode distance matrix for %d taxa from %d gene trees", d.n, len(trees))
	score, denom, err := accumulateChunks(d.n, trees, nprocs, internodeDistances)
	if err != nil {
		return nil, err
	}
	farthest := 0.0
	for i := range d.n {
		for j := range d.n {
			if i != j && denom[i][j] > 0 {
				d.m[i][j] = score[i][j] / denom[i][j]
				farthest = max(farthest, d.m[i][j])
			}
		}
	}
	for i := range d.n {
		for j := range d.n {
			switch {
			case i == j:
				d.m[i][j] = d.diag
			case denom[i][j] == 0:
				d.m[i][j] = farthest
			}
		}
	}
	return &Distance{core: d.toSpecies(spm)}, nil
}

func internodeDistances(td *gr.TreeData, score, denom [][]float64) {
	depth := make([]int, td.Len())
	td.PreOrder(func(v int) {
		if p := td.Parent(v); p >= 0 {
			depth[v] = depth[p] + 1
		}
	})
	root := td.Root()
	td.PostOrder(func(v int) {
		children := td.Children(v)
		// the two root edges of a rooted binary tree form one unrooted edge
		shortcut := 0
		if v == root && len(children) == 2 {
			shortcut = 1
		}
		for i := range children {
			for j := range i {
				for _, l := range td.Clusters[children[i]].Members() {
					for _, r := range td.Clusters[children[j]].Members() {
						dist := float64(depth[td.LeafNode(l)] + depth[td.LeafNode(r)] - 2*depth[v] - shortcut)
						score[l][r] += dist
						score[r][l] += dist
						denom[l][r]++
						denom[r][l]++
					}
				}
			}
		}
	})
}
