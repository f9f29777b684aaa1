package graphs

import (
	"errors"
	"fmt"
	"slices"

	"github.com/evolbioinfo/gotree/tree"
)

var ErrMulTree = errors.New("contains duplicate labels")

type node struct {
	parent   int
	children []int
	taxon    int // -1 for internal nodes
}

// Rooted tree stored as an arena of nodes indexed by integer id. Node ids are
// stable for the life of the tree; nodes detached by an edit stay in the
// arena but are unreachable from the root.
type Tree struct {
	nodes []node
	root  int
}

func NewTree() *Tree { return &Tree{root: -1} }

// Adds a detached leaf labeled by taxon id and returns its node id
func (t *Tree) AddLeaf(taxon int) int {
	t.nodes = append(t.nodes, node{parent: -1, taxon: taxon})
	return len(t.nodes) - 1
}

// Adds a detached internal node and returns its node id
func (t *Tree) AddInternal() int {
	t.nodes = append(t.nodes, node{parent: -1, taxon: -1})
	return len(t.nodes) - 1
}

// Makes child the last child of parent
func (t *Tree) Attach(parent, child int) {
	t.nodes[child].parent = parent
	t.nodes[parent].children = append(t.nodes[parent].children, child)
}

func (t *Tree) SetRoot(v int) {
	t.root = v
	if v >= 0 {
		t.nodes[v].parent = -1
	}
}

func (t *Tree) Root() int { return t.root }

// Number of node slots (including unreachable ones)
func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) Parent(v int) int { return t.nodes[v].parent }

// Children of v; do not modify
func (t *Tree) Children(v int) []int { return t.nodes[v].children }

func (t *Tree) IsLeaf(v int) bool { return t.nodes[v].taxon >= 0 }

// Taxon id of a leaf, -1 for internal nodes
func (t *Tree) Taxon(v int) int { return t.nodes[v].taxon }

func (t *Tree) PostOrder(f func(v int)) {
	if t.root >= 0 {
		t.postOrder(t.root, f)
	}
}

func (t *Tree) postOrder(v int, f func(v int)) {
	for _, c := range t.nodes[v].children {
		t.postOrder(c, f)
	}
	f(v)
}

func (t *Tree) PreOrder(f func(v int)) {
	if t.root >= 0 {
		t.preOrder(t.root, f)
	}
}

func (t *Tree) preOrder(v int, f func(v int)) {
	f(v)
	for _, c := range t.nodes[v].children {
		t.preOrder(c, f)
	}
}

// Leaf node ids in preorder
func (t *Tree) Leaves() []int {
	leaves := make([]int, 0)
	t.PreOrder(func(v int) {
		if t.IsLeaf(v) {
			leaves = append(leaves, v)
		}
	})
	return leaves
}

func (t *Tree) NumLeaves() int { return len(t.Leaves()) }

// First leaf reached by always taking the first child
func (t *Tree) LeftmostLeaf(v int) int {
	for !t.IsLeaf(v) {
		v = t.nodes[v].children[0]
	}
	return v
}

// Deep copy; the copy shares no state with t
func (t *Tree) Clone() *Tree {
	c := &Tree{nodes: make([]node, len(t.nodes)), root: t.root}
	for i, n := range t.nodes {
		c.nodes[i] = node{parent: n.parent, taxon: n.taxon, children: slices.Clone(n.children)}
	}
	return c
}

func (t *Tree) removeChild(parent, child int) {
	t.nodes[parent].children = slices.DeleteFunc(t.nodes[parent].children, func(c int) bool {
		return c == child
	})
}

func (t *Tree) replaceChild(parent, old, repl int) {
	i := slices.Index(t.nodes[parent].children, old)
	if i < 0 {
		panic(fmt.Sprintf("node %d is not a child of %d", old, parent))
	}
	t.nodes[parent].children[i] = repl
	t.nodes[repl].parent = parent
}

// Makes the internal node v the root by reversing the edges on the path from
// v to the root. A leaf cannot be a root since it would gain children.
func (t *Tree) reroot(v int) {
	if t.IsLeaf(v) {
		panic(fmt.Sprintf("cannot root at leaf node %d", v))
	}
	if v == t.root {
		return
	}
	path := []int{v}
	for p := t.nodes[v].parent; p >= 0; p = t.nodes[p].parent {
		path = append(path, p)
	}
	for i := len(path) - 1; i > 0; i-- {
		par, child := path[i], path[i-1]
		t.removeChild(par, child)
		t.nodes[child].children = append(t.nodes[child].children, par)
		t.nodes[par].parent = child
	}
	t.SetRoot(v)
}

// Roots the tree on the edge above v with a new root whose children are v and
// the rest of the tree. Degree-2 nodes left behind are removed.
func (t *Tree) RerootAbove(v int) {
	p := t.nodes[v].parent
	if p < 0 {
		return
	}
	t.reroot(p)
	t.removeChild(p, v)
	r := t.AddInternal()
	t.Attach(r, v)
	t.Attach(r, p)
	t.SetRoot(r)
	t.RemoveDegree2()
}

// Suppresses internal nodes with a single child and prunes internal nodes
// without any leaves below them.
func (t *Tree) RemoveDegree2() {
	if t.root < 0 {
		return
	}
	t.SetRoot(t.suppress(t.root))
}

// returns the node replacing v (-1 if nothing is left below v)
func (t *Tree) suppress(v int) int {
	if t.IsLeaf(v) {
		return v
	}
	n := &t.nodes[v]
	kept := n.children[:0]
	for _, c := range n.children {
		if r := t.suppress(c); r >= 0 {
			t.nodes[r].parent = v
			kept = append(kept, r)
		}
	}
	n.children = kept
	switch len(kept) {
	case 0:
		return -1
	case 1:
		return kept[0]
	default:
		return v
	}
}

// Inserts a new leaf for taxon on the edge above v (a new root if v is the
// root) and returns the new leaf's node id.
func (t *Tree) GraftAbove(v, taxon int) int {
	leaf := t.AddLeaf(taxon)
	u := t.AddInternal()
	if p := t.nodes[v].parent; p >= 0 {
		t.replaceChild(p, v, u)
	} else {
		t.SetRoot(u)
	}
	t.Attach(u, v)
	t.Attach(u, leaf)
	return leaf
}

// New tree containing only leaves for which relabel returns true, labeled
// with the returned taxon id. Internal nodes left with fewer than two
// children are suppressed.
func (t *Tree) Restrict(relabel func(taxon int) (int, bool)) *Tree {
	out := NewTree()
	var copyNode func(v int) int
	copyNode = func(v int) int {
		if t.IsLeaf(v) {
			if id, ok := relabel(t.nodes[v].taxon); ok {
				return out.AddLeaf(id)
			}
			return -1
		}
		kids := make([]int, 0, len(t.nodes[v].children))
		for _, c := range t.nodes[v].children {
			if k := copyNode(c); k >= 0 {
				kids = append(kids, k)
			}
		}
		switch len(kids) {
		case 0:
			return -1
		case 1:
			return kids[0]
		}
		u := out.AddInternal()
		for _, k := range kids {
			out.Attach(u, k)
		}
		return u
	}
	if t.root >= 0 {
		out.SetRoot(copyNode(t.root))
	}
	return out
}

// Converts a gotree tree into an arena tree with leaves labeled by taxa ids.
// Returns an error for unknown or duplicated leaf labels.
func FromGotree(tre *tree.Tree, taxa *TaxonSpace) (*Tree, error) {
	out := NewTree()
	seen := NewCluster(taxa.Len())
	var build func(cur, prev *tree.Node) (int, error)
	build = func(cur, prev *tree.Node) (int, error) {
		if cur.Tip() {
			id, ok := taxa.ID(cur.Name())
			if !ok {
				return -1, fmt.Errorf("%w, leaf %s", ErrUnknownTaxon, cur.Name())
			}
			if seen.Test(id) {
				return -1, fmt.Errorf("tree %w (%s)", ErrMulTree, cur.Name())
			}
			seen.Set(id)
			return out.AddLeaf(id), nil
		}
		v := out.AddInternal()
		for _, n := range cur.Neigh() {
			if n == prev {
				continue
			}
			c, err := build(n, cur)
			if err != nil {
				return -1, err
			}
			out.Attach(v, c)
		}
		return v, nil
	}
	root, err := build(tre.Root(), nil)
	if err != nil {
		return nil, err
	}
	out.SetRoot(root)
	return out, nil
}

// Converts the tree to a gotree tree with leaves named from taxa
func (t *Tree) ToGotree(taxa *TaxonSpace) *tree.Tree {
	gt := tree.NewTree()
	nodes := make([]*tree.Node, len(t.nodes))
	t.PreOrder(func(v int) {
		n := gt.NewNode()
		if t.IsLeaf(v) {
			n.SetName(taxa.Name(t.nodes[v].taxon))
		}
		nodes[v] = n
		if p := t.nodes[v].parent; p >= 0 {
			gt.ConnectNodes(nodes[p], n)
		}
	})
	if t.root >= 0 {
		gt.SetRoot(nodes[t.root])
	}
	return gt
}

// Newick string with leaves named from taxa
func (t *Tree) Newick(taxa *TaxonSpace) string {
	return t.ToGotree(taxa).Newick()
}
