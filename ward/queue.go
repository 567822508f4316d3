// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package ward

import "container/heap"

// candidate is a possible merge of clusters lo < hi. The versions record the
// state of both clusters when the cost was computed; a candidate whose
// versions no longer match is stale and is dropped when popped.
type candidate struct {
	cost   float64
	lo, hi int
	loVer  uint32
	hiVer  uint32
}

func (c candidate) less(o candidate) bool {
	if c.cost != o.cost {
		return c.cost < o.cost
	}

	if c.lo != o.lo {
		return c.lo < o.lo
	}

	return c.hi < o.hi
}

// candidateHeap is a min-heap ordered by cost, then by (lo, hi).
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[i].less(h[j]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]

	return c
}

type candidateQueue struct {
	h candidateHeap
}

func (q *candidateQueue) push(c candidate) {
	heap.Push(&q.h, c)
}

func (q *candidateQueue) pop() (candidate, bool) {
	if len(q.h) == 0 {
		return candidate{}, false
	}

	return heap.Pop(&q.h).(candidate), true
}

func (q *candidateQueue) size() int {
	return len(q.h)
}

// compact removes every candidate for which valid returns false and restores
// the heap order.
func (q *candidateQueue) compact(valid func(candidate) bool) {
	kept := q.h[:0]
	for _, c := range q.h {
		if valid(c) {
			kept = append(kept, c)
		}
	}

	q.h = kept
	heap.Init(&q.h)
}
