package graphs

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/evolbioinfo/gotree/io/newick"
	"github.com/evolbioinfo/gotree/tree"
)

func parseNewick(t *testing.T, nwk string) *tree.Tree {
	t.Helper()
	tre, err := newick.NewParser(strings.NewReader(nwk)).Parse()
	if err != nil {
		t.Fatalf("invalid newick tree %s; test is written wrong", nwk)
	}
	return tre
}

func taxaOf(t *testing.T, names ...string) *TaxonSpace {
	t.Helper()
	ts, err := NewTaxonSpace(names)
	if err != nil {
		t.Fatalf("invalid taxa; test is written wrong: %s", err)
	}
	return ts
}

func parseTree(t *testing.T, nwk string, taxa *TaxonSpace) *Tree {
	t.Helper()
	tre, err := FromGotree(parseNewick(t, nwk), taxa)
	if err != nil {
		t.Fatalf("could not convert %s: %s", nwk, err)
	}
	return tre
}

// sorted leaf sets of the children of the root, as name strings
func rootSides(td *TreeData, taxa *TaxonSpace) []string {
	result := make([]string, 0)
	for _, c := range td.Children(td.Root()) {
		result = append(result, td.LeafsetAsString(c, taxa))
	}
	slices.Sort(result)
	return result
}

func splitStrings(td *TreeData) []string {
	result := make([]string, 0)
	for _, c := range td.Splits() {
		result = append(result, c.String())
	}
	slices.Sort(result)
	return result
}

func TestFromGotree(t *testing.T) {
	testCases := []struct {
		name        string
		tre         string
		taxa        []string
		numLeaves   int
		expectedErr error
	}{
		{
			name:      "rooted",
			tre:       "((a,b),(c,d));",
			taxa:      []string{"a", "b", "c", "d"},
			numLeaves: 4,
		},
		{
			name:      "unrooted subset",
			tre:       "(a,b,(c,d));",
			taxa:      []string{"a", "b", "c", "d", "e"},
			numLeaves: 4,
		},
		{
			name:        "unknown taxon",
			tre:         "((a,b),(c,x));",
			taxa:        []string{"a", "b", "c", "d"},
			expectedErr: ErrUnknownTaxon,
		},
		{
			name:        "duplicate label",
			tre:         "((a,b),(a,c));",
			taxa:        []string{"a", "b", "c"},
			expectedErr: ErrMulTree,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			tre, err := FromGotree(parseNewick(t, test.tre), taxaOf(t, test.taxa...))
			if !errors.Is(err, test.expectedErr) {
				t.Fatalf("got error %v, expected %v", err, test.expectedErr)
			}
			if err != nil {
				return
			}
			if tre.NumLeaves() != test.numLeaves {
				t.Errorf("got %d leaves, expected %d", tre.NumLeaves(), test.numLeaves)
			}
		})
	}
}

func TestRerootAbove(t *testing.T) {
	testCases := []struct {
		name     string
		tre      string
		taxa     []string
		leaf     string
		expected []string
	}{
		{
			name:     "cherry leaf",
			tre:      "((a,b),(c,d));",
			taxa:     []string{"a", "b", "c", "d"},
			leaf:     "c",
			expected: []string{"{a,b,d}", "{c}"},
		},
		{
			name:     "root child",
			tre:      "(a,(b,(c,d)));",
			taxa:     []string{"a", "b", "c", "d"},
			leaf:     "a",
			expected: []string{"{a}", "{b,c,d}"},
		},
		{
			name:     "polytomy",
			tre:      "(a,b,(c,d,e));",
			taxa:     []string{"a", "b", "c", "d", "e"},
			leaf:     "e",
			expected: []string{"{a,b,c,d}", "{e}"},
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			taxa := taxaOf(t, test.taxa...)
			tre := parseTree(t, test.tre, taxa)
			before := MakeTreeData(tre.Clone(), taxa.Len())
			id, _ := taxa.ID(test.leaf)
			tre.RerootAbove(before.LeafNode(id))
			td := MakeTreeData(tre, taxa.Len())
			if got := rootSides(td, taxa); !slices.Equal(got, test.expected) {
				t.Errorf("got root sides %v, expected %v", got, test.expected)
			}
			td.PreOrder(func(v int) {
				if !td.IsLeaf(v) && len(td.Children(v)) < 2 {
					t.Errorf("node %d has %d children after rerooting", v, len(td.Children(v)))
				}
			})
			if !slices.Equal(splitStrings(td), splitStrings(before)) {
				t.Errorf("rerooting changed bipartitions: %v != %v", splitStrings(td), splitStrings(before))
			}
		})
	}
}

func TestRerootAboveRoot(t *testing.T) {
	taxa := taxaOf(t, "a", "b", "c")
	tre := parseTree(t, "((a,b),c);", taxa)
	root := tre.Root()
	tre.RerootAbove(root)
	if tre.Root() != root {
		t.Errorf("rerooting above the root moved it from %d to %d", root, tre.Root())
	}
}

func TestRerootLeafPanics(t *testing.T) {
	taxa := taxaOf(t, "a", "b", "c")
	tre := parseTree(t, "((a,b),c);", taxa)
	leaf := MakeTreeData(tre.Clone(), taxa.Len()).LeafNode(2)
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("rooting at a leaf should panic")
		}
		if tre.IsLeaf(tre.Root()) {
			t.Errorf("root is a leaf")
		}
	}()
	tre.reroot(leaf)
}

func TestGraftAbove(t *testing.T) {
	taxa := taxaOf(t, "a", "b", "c", "d")
	tre := parseTree(t, "((a,b),c);", taxa)
	before := MakeTreeData(tre.Clone(), taxa.Len())
	leaf := tre.GraftAbove(before.LeafNode(0), 3)
	td := MakeTreeData(tre, taxa.Len())
	if got := td.LeafsetAsString(td.Parent(leaf), taxa); got != "{a,d}" {
		t.Errorf("grafted leaf has parent cluster %s, expected {a,d}", got)
	}
	if td.Missing() != 0 {
		t.Errorf("tree still missing %d taxa", td.Missing())
	}
	root := tre.Clone()
	rootLeaf := root.GraftAbove(root.Root(), 3)
	if root.Parent(rootLeaf) != root.Root() {
		t.Errorf("grafting above the root should make a new root")
	}
}

func TestRestrict(t *testing.T) {
	taxa := taxaOf(t, "a", "b", "c", "d", "e")
	tre := parseTree(t, "((a,b),(c,(d,e)));", taxa)
	restricted := tre.Restrict(func(taxon int) (int, bool) {
		return taxon, taxon != 1 && taxon != 4
	})
	td := MakeTreeData(restricted, taxa.Len())
	if td.NumLeaves() != 3 {
		t.Fatalf("got %d leaves, expected 3", td.NumLeaves())
	}
	if got, expected := rootSides(td, taxa), []string{"{a}", "{c,d}"}; !slices.Equal(got, expected) {
		t.Errorf("got root sides %v, expected %v", got, expected)
	}
	relabeled := tre.Restrict(func(taxon int) (int, bool) { return taxon / 2, taxon%2 == 0 })
	rd := MakeTreeData(relabeled, 3)
	if rd.All.String() != "{0,1,2}" {
		t.Errorf("relabeled leaves %s, expected {0,1,2}", rd.All)
	}
}

func TestToGotree(t *testing.T) {
	trees := []string{
		"((a,b),(c,(d,e)));",
		"(a,b,(c,d,e));",
		"(a,(b,(c,(d,e))));",
	}
	taxa := taxaOf(t, "a", "b", "c", "d", "e")
	for _, nwk := range trees {
		t.Run(nwk, func(t *testing.T) {
			td := MakeTreeData(parseTree(t, nwk, taxa), taxa.Len())
			back := MakeTreeData(parseTree(t, td.Newick(taxa), taxa), taxa.Len())
			if !slices.Equal(splitStrings(td), splitStrings(back)) {
				t.Errorf("round trip changed bipartitions: %v != %v", splitStrings(td), splitStrings(back))
			}
			if back.NumLeaves() != td.NumLeaves() {
				t.Errorf("round trip changed leaf count: %d != %d", back.NumLeaves(), td.NumLeaves())
			}
		})
	}
}

func TestRemoveDegree2(t *testing.T) {
	tre := NewTree()
	root, mid, inner := tre.AddInternal(), tre.AddInternal(), tre.AddInternal()
	tre.Attach(root, mid)
	tre.Attach(mid, inner)
	a, b, c := tre.AddLeaf(0), tre.AddLeaf(1), tre.AddLeaf(2)
	tre.Attach(inner, a)
	tre.Attach(inner, b)
	tre.Attach(root, c)
	empty := tre.AddInternal()
	tre.Attach(root, empty)
	tre.SetRoot(root)
	tre.RemoveDegree2()
	if got := len(tre.Children(tre.Root())); got != 2 {
		t.Fatalf("root has %d children, expected 2", got)
	}
	if tre.Parent(a) != inner || tre.Parent(inner) != root {
		t.Errorf("degree-2 node was not suppressed")
	}
}
