package matrix

import (
	"go.uber.org/zap"

	gr "github.com/jsdoublel/setx/internal/graphs"
)

// Quartet based similarity; higher is closer, diagonal is 1
type Similarity struct {
	core
}

func NewSimilarity(n int) *Similarity {
	return &Similarity{core: newCore(n, 1, func(a, b float64) bool { return a > b })}
}

func (s *Similarity) IsDistance() bool { return false }

func (s *Similarity) Induced(sample []int) Matrix {
	return &Similarity{core: s.induced(sample)}
}

// Cell (l, r) is the fraction of quartets {l, r, a, b} resolved as lr|ab,
// summed over gene trees and normalized by the number of such quartets in
// trees containing both l and r. Pairs never seen together score 0.
func (s *Similarity) Populate(trees []*gr.TreeData, spm *gr.SpeciesMap, nprocs int) (Matrix, error) {
	zap.S().Infof("computing quartet similarity matrix for %d taxa from %d gene trees", s.n, len(trees))
	score, denom, err := accumulateChunks(s.n, trees, nprocs, similarityScores)
	if err != nil {
		return nil, err
	}
	for i := range s.n {
		for j := range s.n {
			switch {
			case i == j:
				s.m[i][j] = s.diag
			case denom[i][j] == 0:
				s.m[i][j] = 0
			default:
				s.m[i][j] = score[i][j] / (denom[i][j] / 2)
			}
		}
	}
	return &Similarity{core: s.toSpecies(spm)}, nil
}

func similarityScores(td *gr.TreeData, score, denom [][]float64) {
	td.PostOrder(func(v int) {
		if td.IsLeaf(v) {
			return
		}
		sides := td.Sides(v)
		members := make([][]int, len(sides))
		total := 0.0
		for i, side := range sides {
			members[i] = side.Members()
			total += pairs(len(members[i]))
		}
		for i := range sides {
			for j := range i {
				sim := total - pairs(len(members[i])) - pairs(len(members[j]))
				if sim == 0 {
					continue
				}
				for _, l := range members[i] {
					for _, r := range members[j] {
						score[l][r] += sim
						score[r][l] += sim
					}
				}
			}
		}
	})
	all := td.All.Members()
	d := pairs(len(all) - 2)
	for _, l := range all {
		for _, r := range all {
			if l != r {
				denom[l][r] += 2 * d
			}
		}
	}
}
