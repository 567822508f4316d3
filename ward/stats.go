// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package ward

import (
	"math/big"
)

// exactPrec is wide enough to hold the exact sum of any number of weighted
// float64 products below 2^1000 terms without rounding.
const exactPrec = 1 << 13

// derivedPrec is the working precision used to derive the sum of squared
// deviations from the exact sums.
const derivedPrec = 256

// Point is a clustering input. Its identifier is its position in the slice
// given to NewEngine. A zero Weight means 1.
type Point struct {
	Features []float64
	Weight   float64
}

func (p Point) weight() float64 {
	if p.Weight == 0 {
		return 1
	}

	return p.Weight
}

// Stats are the aggregates of one cluster. Weight, Centroid and SSD are
// derived from exact running sums, so they depend only on the membership and
// never on the order in which clusters were merged.
type Stats struct {
	// Size is the number of member points.
	Size int
	// Weight is the total member weight; equal to Size for unweighted points.
	Weight float64
	// Centroid is the weighted mean feature vector.
	Centroid []float64
	// SSD is the weighted sum of squared deviations from the centroid.
	SSD float64

	wsum *big.Float
	lin  []*big.Float
	quad *big.Float
}

func exact() *big.Float {
	return new(big.Float).SetPrec(exactPrec)
}

func newStats(p Point) *Stats {
	w := p.weight()
	bw := exact().SetFloat64(w)

	s := &Stats{
		Size: 1,
		wsum: bw,
		lin:  make([]*big.Float, len(p.Features)),
		quad: exact(),
	}

	term := exact()

	for d, x := range p.Features {
		bx := exact().SetFloat64(x)
		s.lin[d] = exact().Mul(bw, bx)

		term.Mul(s.lin[d], bx)
		s.quad.Add(s.quad, term)
	}

	s.derive()

	return s
}

// absorb adds other's sums into s. Both must have the same dimension.
func (s *Stats) absorb(other *Stats) {
	s.Size += other.Size
	s.wsum.Add(s.wsum, other.wsum)

	for d := range s.lin {
		s.lin[d].Add(s.lin[d], other.lin[d])
	}

	s.quad.Add(s.quad, other.quad)
	s.derive()
}

func (s *Stats) derive() {
	s.Weight, _ = s.wsum.Float64()

	if s.Centroid == nil {
		s.Centroid = make([]float64, len(s.lin))
	}

	q := new(big.Float).SetPrec(53)
	sq := new(big.Float).SetPrec(derivedPrec)
	acc := new(big.Float).SetPrec(derivedPrec)

	for d, l := range s.lin {
		s.Centroid[d], _ = q.Quo(l, s.wsum).Float64()

		sq.Mul(l, l)
		acc.Add(acc, sq)
	}

	// SSD = Σw‖x‖² − ‖Σwx‖²/Σw
	acc.Quo(acc, s.wsum)
	acc.Sub(new(big.Float).SetPrec(derivedPrec).Set(s.quad), acc)

	s.SSD, _ = acc.Float64()
	if s.SSD < 0 {
		s.SSD = 0
	}
}

// wardCost returns the increase in total within-cluster variance caused by
// merging a and b.
func wardCost(a, b *Stats) float64 {
	var d2 float64

	for i, ca := range a.Centroid {
		diff := ca - b.Centroid[i]
		d2 += diff * diff
	}

	return a.Weight * b.Weight / (a.Weight + b.Weight) * d2
}

// Store keeps the statistics of every active cluster, indexed by cluster id.
type Store struct {
	clusters []*Stats
}

// NewStore returns a store able to hold clusters with ids in [0, n).
func NewStore(n int) *Store {
	return &Store{clusters: make([]*Stats, n)}
}

// Create registers a singleton cluster with the given id.
func (s *Store) Create(id int, p Point) *Stats {
	st := newStats(p)
	s.clusters[id] = st

	return st
}

// Get returns the statistics of cluster id, or nil if it is not active.
func (s *Store) Get(id int) *Stats {
	return s.clusters[id]
}

// Merge folds cluster absorbed into cluster survivor and returns the merged
// statistics. The absorbed cluster is removed from the store.
func (s *Store) Merge(survivor, absorbed int) *Stats {
	st := s.clusters[survivor]
	st.absorb(s.clusters[absorbed])
	s.clusters[absorbed] = nil

	return st
}

// WardCost returns the Ward merge cost of two active clusters.
func (s *Store) WardCost(a, b int) float64 {
	return wardCost(s.clusters[a], s.clusters[b])
}

// StatsOf computes the statistics of a set of points from scratch.
func StatsOf(points []Point, members []int) *Stats {
	if len(members) == 0 {
		return nil
	}

	st := newStats(points[members[0]])
	for _, m := range members[1:] {
		st.absorb(newStats(points[m]))
	}

	return st
}
