package matrix

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	gr "github.com/jsdoublel/setx/internal/graphs"
)

// adds one tree's contribution to partial score and denominator arrays
type accumulator func(td *gr.TreeData, score, denom [][]float64)

// Splits trees into contiguous chunks, accumulates each chunk on its own
// task, and sums the partial arrays in chunk order.
func accumulateChunks(n int, trees []*gr.TreeData, nprocs int, acc accumulator) (score, denom [][]float64, err error) {
	for i, td := range trees {
		if td.Width() != n {
			return nil, nil, fmt.Errorf("%w, gene tree %d has width %d (matrix is %d)", ErrSizeMismatch, i+1, td.Width(), n)
		}
	}
	nprocs = max(nprocs, 1)
	chunkSize := max((len(trees)+nprocs-1)/nprocs, 1)
	nChunks := (len(trees) + chunkSize - 1) / chunkSize
	partScores, partDenoms := make([][][]float64, nChunks), make([][][]float64, nChunks)
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(nprocs)
	for c := range nChunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, d := square(n), square(n)
			for _, td := range trees[c*chunkSize : min((c+1)*chunkSize, len(trees))] {
				acc(td, s, d)
			}
			partScores[c], partDenoms[c] = s, d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	score, denom = square(n), square(n)
	for c := range nChunks {
		for i := range n {
			for j := range n {
				score[i][j] += partScores[c][i][j]
				denom[i][j] += partDenoms[c][i][j]
			}
		}
	}
	return score, denom, nil
}

func pairs(k int) float64 { return float64(k) * float64(k-1) / 2 }
