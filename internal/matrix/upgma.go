package matrix

import gr "github.com/jsdoublel/setx/internal/graphs"

// Weighted UPGMA over scores (modified in place). Pairs are merged until two
// groups remain and the merged clusters are returned in merge order.
//
// The merged pair is the row with the best score to its best partner; ties
// go to the lowest row index and, within a row, to the lowest column index.
func upgma(scores [][]float64, weights []int, clusters []gr.Cluster, better func(a, b float64) bool) []gr.Cluster {
	n := len(scores)
	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}
	rowBest := func(i int) int {
		b := -1
		for k := range n {
			if k == i || !active[k] {
				continue
			}
			if b == -1 || better(scores[i][k], scores[i][b]) {
				b = k
			}
		}
		return b
	}
	best := make([]int, n)
	for i := range n {
		best[i] = rowBest(i)
	}
	result := make([]gr.Cluster, 0, max(n-2, 0))
	for left := n; left > 2; left-- {
		ci := -1
		for i := range n {
			if !active[i] {
				continue
			}
			if ci == -1 || better(scores[i][best[i]], scores[ci][best[ci]]) {
				ci = i
			}
		}
		cj := best[ci]
		if cj < 0 || !active[cj] {
			panic("upgma merge with inactive row")
		}
		wi, wj := float64(weights[ci]), float64(weights[cj])
		for k := range n {
			if !active[k] || k == ci || k == cj {
				continue
			}
			s := (scores[ci][k]*wi + scores[cj][k]*wj) / (wi + wj)
			scores[ci][k], scores[k][ci] = s, s
		}
		active[cj] = false
		weights[ci] += weights[cj]
		clusters[ci] = clusters[ci].Union(clusters[cj])
		result = append(result, clusters[ci])
		for k := range n {
			switch {
			case !active[k]:
			case k == ci || best[k] == ci || best[k] == cj:
				best[k] = rowBest(k)
			case better(scores[k][ci], scores[k][best[k]]),
				scores[k][ci] == scores[k][best[k]] && ci < best[k]:
				best[k] = ci
			}
		}
	}
	return result
}
