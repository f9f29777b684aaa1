package graphs

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestGreedyTreeInsert(t *testing.T) {
	g := NewGreedyTree(5)
	testCases := []struct {
		name     string
		cluster  Cluster
		expected bool
	}{
		{name: "cherry", cluster: ClusterOf(5, 0, 1), expected: true},
		{name: "present", cluster: ClusterOf(5, 0, 1), expected: false},
		{name: "incompatible", cluster: ClusterOf(5, 1, 2), expected: false},
		{name: "nested", cluster: ClusterOf(5, 0, 1, 2), expected: true},
		{name: "sibling", cluster: ClusterOf(5, 3, 4), expected: true},
		{name: "crossing", cluster: ClusterOf(5, 0, 1, 2, 3), expected: false},
		{name: "singleton", cluster: ClusterOf(5, 4), expected: false},
		{name: "full", cluster: FullCluster(5), expected: false},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			if got := g.Insert(test.cluster); got != test.expected {
				t.Errorf("Insert(%s) = %t, expected %t", test.cluster, got, test.expected)
			}
		})
	}
	td := g.Data()
	if len(td.Polytomies()) != 0 {
		t.Errorf("tree should be fully resolved")
	}
	if got, expected := splitStrings(td), []string{"{2,3,4}", "{3,4}"}; !slices.Equal(got, expected) {
		t.Errorf("got splits %v, expected %v", got, expected)
	}
}

func TestCountSplits(t *testing.T) {
	a, b, c := ClusterOf(4, 1, 2), ClusterOf(4, 1, 3), ClusterOf(4, 2, 3)
	counts := CountSplits([][]Cluster{{a, b}, {a}, {b, c}}, nil)
	got := fmt.Sprint(counts)
	if got != "[{{1,2} 2} {{1,3} 2} {{2,3} 1}]" {
		t.Errorf("got %s", got)
	}
	shuffled := CountSplits([][]Cluster{{a, b}, {a}, {b, c}}, rand.New(rand.NewPCG(1, 2)))
	if shuffled[2].Cluster.String() != "{2,3}" || shuffled[0].Count != 2 {
		t.Errorf("shuffle broke count order: %v", shuffled)
	}
}

func TestGreedyConsensus(t *testing.T) {
	taxa := taxaOf(t, "a", "b", "c", "d", "e")
	trees := make([]*TreeData, 0)
	for _, nwk := range []string{
		"((a,b),(c,(d,e)));",
		"((a,b),(c,(d,e)));",
		"((a,c),(b,(d,e)));",
	} {
		trees = append(trees, MakeTreeData(parseTree(t, nwk, taxa), taxa.Len()))
	}
	consensus := GreedyConsensus(trees, []float64{0, 0.5, 0.7, 1}, taxa.Len(), nil)
	expected := [][]string{
		{"{2,3,4}", "{3,4}"},
		{"{2,3,4}", "{3,4}"},
		{"{3,4}"},
		{},
	}
	for i, td := range consensus {
		if got := splitStrings(td); !slices.Equal(got, expected[i]) {
			t.Errorf("threshold %d: got splits %v, expected %v", i, got, expected[i])
		}
		if td.NumLeaves() != taxa.Len() {
			t.Errorf("threshold %d: consensus has %d leaves", i, td.NumLeaves())
		}
	}
}
