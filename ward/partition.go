// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package ward

// Partition assigns every point to exactly one cluster. Labels are dense,
// 0..Clusters-1, numbered in order of the first point of each cluster.
type Partition struct {
	// Labels maps point index to cluster label.
	Labels []int `json:"labels"`
	// Clusters is the number of distinct labels.
	Clusters int `json:"clusters"`
	// Sizes holds the number of points per label.
	Sizes []int `json:"sizes"`
	// Representatives holds, per label, the smallest point index of the
	// cluster, which is also its id in the merge log.
	Representatives []int `json:"representatives"`
}

// newPartition relabels owner, a point-to-cluster-id mapping, densely.
func newPartition(owner []int) *Partition {
	p := &Partition{Labels: make([]int, len(owner))}
	dense := make(map[int]int)

	for i, id := range owner {
		label, ok := dense[id]
		if !ok {
			label = len(dense)
			dense[id] = label
			p.Sizes = append(p.Sizes, 0)
			p.Representatives = append(p.Representatives, i)
		}

		p.Labels[i] = label
		p.Sizes[label]++
	}

	p.Clusters = len(dense)

	return p
}

// Groups returns the point indices of each cluster, indexed by label.
func (p *Partition) Groups() [][]int {
	groups := make([][]int, p.Clusters)
	for i, size := range p.Sizes {
		groups[i] = make([]int, 0, size)
	}

	for point, label := range p.Labels {
		groups[label] = append(groups[label], point)
	}

	return groups
}

// Replay rebuilds the partition of n points after applying merges until
// clusters remain. merges must come from a run over the same n points and
// clusters must be reachable with them.
func Replay(n int, merges []Merge, clusters int) (*Partition, error) {
	if clusters < n-len(merges) || clusters > n || clusters < 1 {
		return nil, newError(
			ErrorTypeInvalidParameter,
			"cannot reach %d clusters from %d points with %d merges",
			clusters, n, len(merges),
		)
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}

		return i
	}

	for _, m := range merges[:n-clusters] {
		if m.Absorbed < 0 || m.Absorbed >= n || m.Survivor < 0 || m.Survivor >= n {
			return nil, newError(ErrorTypeInvalidParameter, "merge %d <- %d out of range", m.Survivor, m.Absorbed)
		}

		if m.Absorbed == m.Survivor || find(m.Absorbed) != m.Absorbed || find(m.Survivor) != m.Survivor {
			return nil, newError(ErrorTypeInvalidParameter, "merge %d <- %d references an absorbed cluster", m.Survivor, m.Absorbed)
		}

		parent[m.Absorbed] = m.Survivor
	}

	owner := make([]int, n)
	for i := range owner {
		owner[i] = find(i)
	}

	return newPartition(owner), nil
}
