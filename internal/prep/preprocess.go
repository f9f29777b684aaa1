// Package used for preparing gene trees for search-space construction:
// reading input, canonical rerooting, cluster annotation, and completion of
// gene trees with missing taxa.
package prep

import (
	"context"
	"fmt"

	"github.com/evolbioinfo/gotree/tree"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	gr "github.com/jsdoublel/setx/internal/graphs"
)

// Annotated gene trees with coverage information
type Preprocessed struct {
	Trees      []*gr.TreeData // one per input gene tree, in input order
	Incomplete int            // number of trees missing at least one taxon
}

// Converts gene trees into annotated arena trees over taxa. Unless rooted is
// set, each tree is rerooted on its centroid edge. Degree-2 nodes are
// removed. Returns an error if a tree has unknown or duplicated leaf labels.
func Preprocess(geneTrees []*tree.Tree, taxa *gr.TaxonSpace, rooted bool, nprocs int) (*Preprocessed, error) {
	zap.S().Infof("preprocessing %d gene trees", len(geneTrees))
	trees := make([]*gr.TreeData, len(geneTrees))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(nprocs, 1))
	for i, gt := range geneTrees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := gr.FromGotree(gt, taxa)
			if err != nil {
				return fmt.Errorf("gene tree %d: %w", i+1, err)
			}
			t.RemoveDegree2()
			if !rooted {
				RerootAtCentroid(t)
			}
			trees[i] = gr.MakeTreeData(t, taxa.Len())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	pre := &Preprocessed{Trees: trees}
	for _, td := range trees {
		if td.Missing() > 0 {
			pre.Incomplete++
		}
	}
	if pre.Incomplete > 0 {
		zap.S().Infof("%d of %d gene trees are missing taxa", pre.Incomplete, len(trees))
	}
	return pre, nil
}

// Reroots t on the edge above the node whose leaf count is closest to half
// of all leaves; ties go to the first such node in postorder.
func RerootAtCentroid(t *gr.Tree) {
	below := make([]int, t.Len())
	t.PostOrder(func(v int) {
		if t.IsLeaf(v) {
			below[v] = 1
			return
		}
		for _, c := range t.Children(v) {
			below[v] += below[c]
		}
	})
	if t.Root() < 0 {
		return
	}
	half := below[t.Root()] / 2
	best, bestDist := -1, 0
	t.PostOrder(func(v int) {
		if v == t.Root() {
			return
		}
		dist := abs(half - below[v])
		if best == -1 || dist < bestDist {
			best, bestDist = v, dist
		}
	})
	if best >= 0 {
		t.RerootAbove(best)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
