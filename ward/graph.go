// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package ward

import (
	"math"
	"runtime"
	"slices"
	"sync"
)

// knnBlockSize is the number of points a single worker searches before
// yielding its slot in the semaphore.
const knnBlockSize = 256

// AdjacencyGraph is a symmetric neighbor relation over points identified by
// their position. Every point has an entry, possibly empty.
type AdjacencyGraph struct {
	adj [][]int
}

// NewAdjacencyGraph builds a graph over n points from an edge list. Edges are
// symmetrized, self loops and duplicates are dropped.
func NewAdjacencyGraph(n int, edges [][2]int) (*AdjacencyGraph, error) {
	if n < 0 {
		return nil, newError(ErrorTypeInvalidParameter, "point count must not be negative, got %d", n)
	}

	adj := make([][]int, n)

	for _, e := range edges {
		a, b := e[0], e[1]
		if a < 0 || a >= n || b < 0 || b >= n {
			return nil, newError(ErrorTypeInvalidParameter, "edge (%d, %d) out of range for %d points", a, b, n)
		}

		if a == b {
			continue
		}

		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}

	for i := range adj {
		slices.Sort(adj[i])
		adj[i] = slices.Compact(adj[i])
	}

	return &AdjacencyGraph{adj: adj}, nil
}

// Len returns the number of points in the graph.
func (g *AdjacencyGraph) Len() int {
	return len(g.adj)
}

// Neighbors returns the sorted neighbors of point i. The slice must not be
// modified.
func (g *AdjacencyGraph) Neighbors(i int) []int {
	return g.adj[i]
}

// Adjacent reports whether points a and b are neighbors.
func (g *AdjacencyGraph) Adjacent(a, b int) bool {
	_, found := slices.BinarySearch(g.adj[a], b)

	return found
}

// EdgeCount returns the number of undirected edges.
func (g *AdjacencyGraph) EdgeCount() int {
	total := 0
	for _, nbrs := range g.adj {
		total += len(nbrs)
	}

	return total / 2
}

// Components returns the connected components, each sorted ascending, in
// order of their smallest point.
func (g *AdjacencyGraph) Components() [][]int {
	seen := make([]bool, len(g.adj))

	var comps [][]int

	for start := range g.adj {
		if seen[start] {
			continue
		}

		queue := []int{start}
		seen[start] = true

		for qi := 0; qi < len(queue); qi++ {
			for _, v := range g.adj[queue[qi]] {
				if !seen[v] {
					seen[v] = true
					queue = append(queue, v)
				}
			}
		}

		slices.Sort(queue)
		comps = append(comps, queue)
	}

	return comps
}

// Connected reports whether the subgraph induced by members is connected.
// An empty set is not connected.
func (g *AdjacencyGraph) Connected(members []int) bool {
	if len(members) == 0 {
		return false
	}

	in := make(map[int]bool, len(members))
	for _, m := range members {
		in[m] = true
	}

	seen := map[int]bool{members[0]: true}
	queue := []int{members[0]}

	for qi := 0; qi < len(queue); qi++ {
		for _, v := range g.adj[queue[qi]] {
			if in[v] && !seen[v] {
				seen[v] = true
				queue = append(queue, v)
			}
		}
	}

	return len(seen) == len(in)
}

type neighbor struct {
	dist float64
	idx  int
}

func closer(a, b neighbor) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}

	return a.idx < b.idx
}

// BuildKNNGraph links every point to its k nearest other points by Euclidean
// distance over coords and symmetrizes the result. Ties are broken by the
// lower point index. Points are searched in parallel by up to workers
// goroutines; workers <= 0 means runtime.NumCPU().
func BuildKNNGraph(coords [][]float64, k, workers int) (*AdjacencyGraph, error) {
	n := len(coords)
	if k < 1 || k >= n {
		return nil, newError(ErrorTypeInvalidParameter, "neighbor count must be in [1, %d], got %d", n-1, k)
	}

	dims := len(coords[0])
	if dims == 0 {
		return nil, newError(ErrorTypeInvalidParameter, "coordinates must have at least one dimension")
	}

	for i, c := range coords {
		if len(c) != dims {
			return nil, newError(ErrorTypeInvalidParameter, "point %d has %d coordinates, expected %d", i, len(c), dims)
		}

		for _, v := range c {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, newError(ErrorTypeNumeric, "point %d has a non-finite coordinate", i)
			}
		}
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	nearest := make([][]int, n)

	var wg sync.WaitGroup

	semaphore := make(chan struct{}, workers)

	for lo := 0; lo < n; lo += knnBlockSize {
		hi := min(lo+knnBlockSize, n)

		wg.Add(1)

		go func(lo, hi int) {
			defer wg.Done()
			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			best := make([]neighbor, 0, k+1)
			for i := lo; i < hi; i++ {
				best = kNearest(coords, i, k, best[:0])

				idx := make([]int, len(best))
				for j, nb := range best {
					idx[j] = nb.idx
				}

				nearest[i] = idx
			}
		}(lo, hi)
	}

	wg.Wait()

	edges := make([][2]int, 0, n*k)
	for i, nbrs := range nearest {
		for _, j := range nbrs {
			edges = append(edges, [2]int{i, j})
		}
	}

	return NewAdjacencyGraph(n, edges)
}

// kNearest returns the k closest points to coords[i], closest first, reusing
// best as scratch space.
func kNearest(coords [][]float64, i, k int, best []neighbor) []neighbor {
	origin := coords[i]

	for j, c := range coords {
		if j == i {
			continue
		}

		var d float64

		for x := range origin {
			diff := origin[x] - c[x]
			d += diff * diff
		}

		cand := neighbor{dist: d, idx: j}
		if len(best) == k && !closer(cand, best[k-1]) {
			continue
		}

		pos, _ := slices.BinarySearchFunc(best, cand, func(a, b neighbor) int {
			if closer(a, b) {
				return -1
			}

			if closer(b, a) {
				return 1
			}

			return 0
		})
		best = slices.Insert(best, pos, cand)

		if len(best) > k {
			best = best[:k]
		}
	}

	return best
}
