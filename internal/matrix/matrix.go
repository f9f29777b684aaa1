// Package matrix computes pairwise taxon similarity or distance scores from
// gene trees and derives candidate clusters from them (UPGMA, four-point
// placement, quadratic neighbor groupings).
package matrix

import (
	"errors"
	"fmt"
	"slices"

	gr "github.com/jsdoublel/setx/internal/graphs"
)

var ErrSizeMismatch = errors.New("matrix size mismatch")

// Pairwise score matrix over a taxon (or species) space. Implementations are
// read-only once populated and safe for concurrent readers.
type Matrix interface {
	Len() int
	At(i, j int) float64
	IsDistance() bool
	// Fills the matrix from annotated gene trees over the individual space
	// and returns the matrix induced on species.
	Populate(trees []*gr.TreeData, spm *gr.SpeciesMap, nprocs int) (Matrix, error)
	// Present taxon with the best score to missing (lowest id on ties)
	ClosestPresentTaxon(present gr.Cluster, missing int) int
	// Which of a, b, c should be grouped with x according to the four-point
	// condition; ties resolve to a, then b.
	BetterSideByFourPoint(x, a, b, c int) int
	// n-2 clusters of a binary UPGMA hierarchy over all taxa
	InferTreeClusters() []gr.Cluster
	// Binary UPGMA resolution of a polytomy given its sides. With original
	// set the result is over the matrix space, otherwise over side indices.
	ResolvePolytomy(sides []gr.Cluster, original bool) ([]gr.Cluster, error)
	// New matrix over sample positions, cell (i, j) = At(sample[i], sample[j])
	Induced(sample []int) Matrix
	// Nested neighbor groupings of every taxon
	QuadraticClusters() []gr.Cluster
}

// Makes an empty similarity (or distance) matrix over n taxa
func New(n int, distance bool) Matrix {
	if distance {
		return NewDistance(n)
	}
	return NewSimilarity(n)
}

// Storage and algorithms shared by both matrix kinds. better reports
// whether score a is preferable to score b.
type core struct {
	n      int
	m      [][]float64
	diag   float64
	better func(a, b float64) bool
}

func newCore(n int, diag float64, better func(a, b float64) bool) core {
	c := core{n: n, m: square(n), diag: diag, better: better}
	for i := range n {
		c.m[i][i] = diag
	}
	return c
}

func square(n int) [][]float64 {
	backing := make([]float64, n*n)
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = backing[i*n : (i+1)*n : (i+1)*n]
	}
	return rows
}

func (c *core) Len() int { return c.n }

func (c *core) At(i, j int) float64 { return c.m[i][j] }

func (c *core) ClosestPresentTaxon(present gr.Cluster, missing int) int {
	best := -1
	for _, id := range present.Members() {
		if id == missing {
			continue
		}
		if best == -1 || c.better(c.m[missing][id], c.m[missing][best]) {
			best = id
		}
	}
	return best
}

func (c *core) BetterSideByFourPoint(x, a, b, cc int) int {
	m := c.m
	scoreA := m[x][a] + m[b][cc]
	scoreB := m[x][b] + m[a][cc]
	scoreC := m[x][cc] + m[a][b]
	switch {
	case !c.better(scoreB, scoreA) && !c.better(scoreC, scoreA):
		return a
	case !c.better(scoreC, scoreB):
		return b
	default:
		return cc
	}
}

func (c *core) InferTreeClusters() []gr.Cluster {
	clusters := make([]gr.Cluster, c.n)
	weights := make([]int, c.n)
	scores := square(c.n)
	for i := range c.n {
		clusters[i] = gr.ClusterOf(c.n, i)
		weights[i] = 1
		copy(scores[i], c.m[i])
	}
	return upgma(scores, weights, clusters, c.better)
}

func (c *core) ResolvePolytomy(sides []gr.Cluster, original bool) ([]gr.Cluster, error) {
	if _, err := gr.NewPartition(sides...); err != nil {
		return nil, err
	}
	for i, s := range sides {
		if s.Len() != c.n {
			return nil, fmt.Errorf("%w, side %d has width %d (matrix is %d)", ErrSizeMismatch, i, s.Len(), c.n)
		}
	}
	k := len(sides)
	members := make([][]int, k)
	for i, s := range sides {
		members[i] = s.Members()
	}
	scores := square(k)
	weights := make([]int, k)
	clusters := make([]gr.Cluster, k)
	for i := range k {
		weights[i] = len(members[i])
		if original {
			clusters[i] = sides[i].Clone()
		} else {
			clusters[i] = gr.ClusterOf(k, i)
		}
		for j := range k {
			if i == j {
				scores[i][j] = c.diag
				continue
			}
			scores[i][j] = c.crossAverage(members[i], members[j])
		}
	}
	return upgma(scores, weights, clusters, c.better), nil
}

// average score between two disjoint, non-empty member lists
func (c *core) crossAverage(left, right []int) float64 {
	if len(left) == 0 || len(right) == 0 {
		panic("cross average with no comparisons")
	}
	sum := 0.0
	for _, l := range left {
		for _, r := range right {
			sum += c.m[l][r]
		}
	}
	return sum / float64(len(left)*len(right))
}

func (c *core) induced(sample []int) core {
	ind := core{n: len(sample), m: square(len(sample)), diag: c.diag, better: c.better}
	for i, si := range sample {
		for j, sj := range sample {
			ind.m[i][j] = c.m[si][sj]
		}
	}
	return ind
}

func (c *core) QuadraticClusters() []gr.Cluster {
	result := make([]gr.Cluster, 0, c.n*c.n)
	order := make([]int, c.n)
	for i := range c.n {
		for j := range order {
			order[j] = j
		}
		row := c.m[i]
		slices.SortStableFunc(order, func(a, b int) int {
			switch {
			case a == b:
				return 0
			case a == i:
				return -1
			case b == i:
				return 1
			case c.better(row[a], row[b]):
				return -1
			case c.better(row[b], row[a]):
				return 1
			default:
				return a - b
			}
		})
		group := gr.NewCluster(c.n)
		for _, j := range order[:max(c.n-1, 0)] {
			group.Set(j)
			result = append(result, group.Clone())
		}
	}
	return result
}

// Averages the matrix over individuals of each species pair
func (c *core) toSpecies(spm *gr.SpeciesMap) core {
	s := spm.NumSpecies()
	sp := newCore(s, c.diag, c.better)
	for a := range s {
		for b := range a {
			sum, count := 0.0, 0
			for _, i := range spm.Members(a) {
				for _, j := range spm.Members(b) {
					sum += c.m[i][j]
					count++
				}
			}
			if count > 0 {
				sp.m[a][b] = sum / float64(count)
				sp.m[b][a] = sp.m[a][b]
			}
		}
	}
	return sp
}
