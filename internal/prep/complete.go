package prep

import (
	"errors"
	"fmt"

	gr "github.com/jsdoublel/setx/internal/graphs"
	"github.com/jsdoublel/setx/internal/matrix"
)

var ErrTooFewTaxa = errors.New("too few taxa")

// Returns a copy of td with every missing taxon inserted, in ascending id
// order. Each taxon is placed next to its closest taxon among those present
// in td (never another inserted taxon), then moved down the rest of the tree
// using the four-point method on m. td itself is not modified.
func Complete(td *gr.TreeData, m matrix.Matrix) (*gr.TreeData, error) {
	if n := td.All.Count(); n < 3 {
		return nil, fmt.Errorf("%w, gene tree has %d taxa (at least 3 required for completion)", ErrTooFewTaxa, n)
	}
	if m.Len() != td.Width() {
		return nil, fmt.Errorf("%w, matrix has %d taxa and tree space has %d", matrix.ErrSizeMismatch, m.Len(), td.Width())
	}
	work := td.Tree.Clone()
	work.RemoveDegree2()
	leafOf := make([]int, td.Width())
	for taxon := range leafOf {
		leafOf[taxon] = td.LeafNode(taxon)
	}
	for missing := range td.Width() {
		if td.All.Test(missing) {
			continue
		}
		closest := m.ClosestPresentTaxon(td.All, missing)
		work.RerootAbove(leafOf[closest])
		start := otherChild(work, work.Root(), leafOf[closest])
	descend:
		for !work.IsLeaf(start) {
			children := work.Children(start)
			if len(children) != 2 {
				break // insert above the polytomy
			}
			a := work.Taxon(work.LeftmostLeaf(children[0]))
			b := work.Taxon(work.LeftmostLeaf(children[1]))
			switch m.BetterSideByFourPoint(missing, closest, a, b) {
			case closest:
				break descend
			case a:
				start = children[0]
			default:
				start = children[1]
			}
		}
		leafOf[missing] = work.GraftAbove(start, missing)
	}
	return gr.MakeTreeData(work, td.Width()), nil
}

func otherChild(t *gr.Tree, v, child int) int {
	for _, c := range t.Children(v) {
		if c != child {
			return c
		}
	}
	panic(fmt.Sprintf("node %d has no child other than %d", v, child))
}
