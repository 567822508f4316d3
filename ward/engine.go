// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package ward

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
)

// DefaultMinPoints is the smallest input accepted when Options.MinPoints is 0.
const DefaultMinPoints = 2

// The candidate heap is rebuilt without stale entries once it holds more than
// compactFactor entries per live cluster edge.
const (
	compactFactor = 4
	compactSlack  = 1024
)

// State is the lifecycle state of an Engine.
type State int

const (
	// StateInitial one singleton cluster per point, no merge performed yet.
	StateInitial State = iota
	// StateMerging merges are in progress.
	StateMerging
	// StateTargetReached the requested number of clusters was reached.
	StateTargetReached
	// StateExhausted no legal merge remains above the requested number of clusters.
	StateExhausted
	// StateAborted the context was cancelled between two merges.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateMerging:
		return "merging"
	case StateTargetReached:
		return "target reached"
	case StateExhausted:
		return "exhausted"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no more merges will happen.
func (s State) Terminal() bool {
	return s == StateTargetReached || s == StateExhausted
}

// Options configures an Engine.
type Options struct {
	// TargetClusters is the number of clusters to stop at.
	TargetClusters int

	// MinPoints is the smallest accepted input. Defaults to DefaultMinPoints.
	MinPoints int

	// Progress, when set, is called after every merge with the number of
	// merges done and the number needed to reach TargetClusters.
	Progress func(done, total int)
}

// Merge is one step of the merge log.
type Merge struct {
	// Absorbed is the id of the cluster that ceased to exist.
	Absorbed int `json:"absorbed"`
	// Survivor is the id of the cluster that absorbed it; always lower than Absorbed.
	Survivor int `json:"survivor"`
	// Cost is the Ward cost of the merge.
	Cost float64 `json:"cost"`
	// Size is the number of points in the merged cluster.
	Size int `json:"size"`
}

// Result is the outcome of Run.
type Result struct {
	State State
	// Clusters is the number of active clusters when Run returned.
	Clusters int
	// Partition is nil unless State is terminal.
	Partition *Partition
	Merges    []Merge
	// Inversions counts merges cheaper than an earlier merge. Constrained
	// Ward clustering does not guarantee monotonic costs.
	Inversions int
}

// Engine runs constrained Ward clustering over a fixed set of points. An
// Engine is single use and must not be shared between goroutines.
type Engine struct {
	points []Point
	opts   Options

	store   *Store
	members [][]int
	adj     []map[int]struct{}
	version []uint32
	queue   candidateQueue
	edges   int
	active  int
	state   State

	merges     []Merge
	maxCost    float64
	inversions int
}

// NewEngine validates the input and builds the initial state: one singleton
// cluster per point, cluster adjacency equal to graph, and one candidate per
// graph edge.
func NewEngine(points []Point, graph *AdjacencyGraph, opts Options) (*Engine, error) {
	if opts.MinPoints <= 0 {
		opts.MinPoints = DefaultMinPoints
	}

	n := len(points)
	if n < opts.MinPoints {
		return nil, newError(ErrorTypeInsufficientData, "need at least %d points, got %d", opts.MinPoints, n)
	}

	if opts.TargetClusters < 1 || opts.TargetClusters > n {
		return nil, newError(ErrorTypeInvalidParameter, "target clusters must be in [1, %d], got %d", n, opts.TargetClusters)
	}

	if graph == nil {
		return nil, newError(ErrorTypeInvalidParameter, "adjacency graph is required")
	}

	if graph.Len() != n {
		return nil, newError(ErrorTypeInvalidParameter, "adjacency graph has %d points, expected %d", graph.Len(), n)
	}

	if err := validatePoints(points); err != nil {
		return nil, err
	}

	e := &Engine{
		points:  points,
		opts:    opts,
		store:   NewStore(n),
		members: make([][]int, n),
		adj:     make([]map[int]struct{}, n),
		version: make([]uint32, n),
		active:  n,
		state:   StateInitial,
	}

	for i, p := range points {
		e.store.Create(i, p)
		e.members[i] = []int{i}

		nbrs := graph.Neighbors(i)

		e.adj[i] = make(map[int]struct{}, len(nbrs))
		for _, j := range nbrs {
			e.adj[i][j] = struct{}{}
		}
	}

	for i := range points {
		for _, j := range graph.Neighbors(i) {
			if i < j {
				e.enqueue(i, j)
				e.edges++
			}
		}
	}

	return e, nil
}

func validatePoints(points []Point) error {
	dims := len(points[0].Features)
	if dims == 0 {
		return newError(ErrorTypeInvalidParameter, "points must have at least one feature")
	}

	for i, p := range points {
		if len(p.Features) != dims {
			return newError(ErrorTypeInvalidParameter, "point %d has %d features, expected %d", i, len(p.Features), dims)
		}

		for d, v := range p.Features {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return newError(ErrorTypeNumeric, "point %d feature %d is %v", i, d, v)
			}
		}

		if math.IsNaN(p.Weight) || math.IsInf(p.Weight, 0) {
			return newError(ErrorTypeNumeric, "point %d weight is %v", i, p.Weight)
		}

		if p.Weight < 0 {
			return newError(ErrorTypeInvalidParameter, "point %d weight must not be negative, got %v", i, p.Weight)
		}
	}

	return nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Active returns the number of active clusters.
func (e *Engine) Active() int {
	return e.active
}

// Merges returns the merge log so far.
func (e *Engine) Merges() []Merge {
	return slices.Clone(e.merges)
}

// Members returns the sorted members of cluster id, or nil if id is not an
// active cluster.
func (e *Engine) Members(id int) []int {
	if e.members[id] == nil {
		return nil
	}

	m := slices.Clone(e.members[id])
	slices.Sort(m)

	return m
}

// ClusterStats returns the statistics of cluster id, or nil if id is not an
// active cluster.
func (e *Engine) ClusterStats(id int) *Stats {
	return e.store.Get(id)
}

// NeighborClusters returns the sorted ids of the clusters adjacent to id.
func (e *Engine) NeighborClusters(id int) []int {
	return slices.Sorted(maps.Keys(e.adj[id]))
}

// ActiveClusters returns the ids of the active clusters in ascending order.
func (e *Engine) ActiveClusters() []int {
	ids := make([]int, 0, e.active)

	for id, m := range e.members {
		if m != nil {
			ids = append(ids, id)
		}
	}

	return ids
}

// Run merges clusters until TargetClusters remain or no legal merge is left.
// ctx is checked once per merge; on cancellation Run returns the partial
// result with StateAborted and an error wrapping ErrAborted. Run may be
// called again after an abort to resume.
//
// When the graph runs out of legal merges Run returns the achieved result
// together with a *DisconnectedGraphError.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	switch e.state {
	case StateTargetReached:
		return e.result(), nil
	case StateExhausted:
		return e.result(), e.disconnected()
	}

	e.state = StateMerging
	total := len(e.points) - e.opts.TargetClusters

	for e.active > e.opts.TargetClusters {
		if err := ctx.Err(); err != nil {
			e.state = StateAborted

			return e.result(), fmt.Errorf("%w after %d merges: %w", ErrAborted, len(e.merges), err)
		}

		c, ok := e.next()
		if !ok {
			e.state = StateExhausted

			return e.result(), e.disconnected()
		}

		e.merge(c)

		if e.opts.Progress != nil {
			e.opts.Progress(len(e.merges), total)
		}
	}

	e.state = StateTargetReached

	return e.result(), nil
}

func (e *Engine) disconnected() error {
	return &DisconnectedGraphError{
		Requested: e.opts.TargetClusters,
		Achieved:  e.active,
		Partition: e.partition(),
	}
}

func (e *Engine) result() *Result {
	r := &Result{
		State:      e.state,
		Clusters:   e.active,
		Merges:     e.Merges(),
		Inversions: e.inversions,
	}

	if e.state.Terminal() {
		r.Partition = e.partition()
	}

	return r
}

func (e *Engine) enqueue(a, b int) {
	lo, hi := min(a, b), max(a, b)
	e.queue.push(candidate{
		cost:  e.store.WardCost(lo, hi),
		lo:    lo,
		hi:    hi,
		loVer: e.version[lo],
		hiVer: e.version[hi],
	})
}

func (e *Engine) valid(c candidate) bool {
	return e.members[c.lo] != nil && e.members[c.hi] != nil &&
		e.version[c.lo] == c.loVer && e.version[c.hi] == c.hiVer
}

// next pops candidates until it finds one whose clusters are unchanged since
// its cost was computed.
func (e *Engine) next() (candidate, bool) {
	for {
		c, ok := e.queue.pop()
		if !ok {
			return candidate{}, false
		}

		if e.valid(c) {
			return c, true
		}
	}
}

// merge folds c.hi into c.lo, rewires the cluster adjacency and enqueues the
// new costs between the merged cluster and its neighbors.
func (e *Engine) merge(c candidate) {
	survivor, absorbed := c.lo, c.hi

	st := e.store.Merge(survivor, absorbed)

	large, small := e.members[survivor], e.members[absorbed]
	if len(small) > len(large) {
		large, small = small, large
	}

	e.members[survivor] = append(large, small...)
	e.members[absorbed] = nil

	for nb := range e.adj[absorbed] {
		delete(e.adj[nb], absorbed)
		e.edges--

		if nb == survivor {
			continue
		}

		if _, ok := e.adj[survivor][nb]; !ok {
			e.adj[survivor][nb] = struct{}{}
			e.adj[nb][survivor] = struct{}{}
			e.edges++
		}
	}

	e.adj[absorbed] = nil
	e.version[survivor]++
	e.active--

	for _, nb := range e.NeighborClusters(survivor) {
		e.enqueue(survivor, nb)
	}

	if e.queue.size() > compactFactor*e.edges+compactSlack {
		e.queue.compact(e.valid)
	}

	if c.cost < e.maxCost {
		e.inversions++
	} else {
		e.maxCost = c.cost
	}

	e.merges = append(e.merges, Merge{
		Absorbed: absorbed,
		Survivor: survivor,
		Cost:     c.cost,
		Size:     st.Size,
	})
}

// Partition returns the current partition. It fails with an incomplete
// partition error unless the engine reached a terminal state.
func (e *Engine) Partition() (*Partition, error) {
	if !e.state.Terminal() {
		return nil, newError(ErrorTypeIncompletePartition, "engine is in state %q", e.state)
	}

	return e.partition(), nil
}

func (e *Engine) partition() *Partition {
	owner := make([]int, len(e.points))

	for id, m := range e.members {
		for _, p := range m {
			owner[p] = id
		}
	}

	return newPartition(owner)
}
