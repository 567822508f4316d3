// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/jcodagnone/territorios/spatial"
	"github.com/jcodagnone/territorios/ward"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
)

// Territory summarizes one cluster.
type Territory struct {
	Cluster int `json:"cluster"`
	Size    int `json:"size"`
	// Totals and Means hold one value per attribute column.
	Totals   []float64     `json:"totals"`
	Means    []float64     `json:"means"`
	Centroid spatial.Point `json:"centroid"`
	// Bound is in longitude/latitude.
	Bound orb.Bound `json:"bound"`
	// RadiusMeters is the largest distance from Centroid to a member.
	RadiusMeters float64 `json:"radius_m"`
	// SSD is the sum of squared deviations of the scaled features.
	SSD float64 `json:"ssd"`
	// H3Cells is the number of distinct cells the members fall in.
	H3Cells int `json:"h3_cells"`
}

// GeoCount counts the records of a territory sharing the same values of the
// optional geographic columns.
type GeoCount struct {
	Cluster int      `json:"cluster"`
	Values  []string `json:"values"`
	Count   int      `json:"count"`
}

func groups(labels []int, clusters int) [][]int {
	out := make([][]int, clusters)
	for i, l := range labels {
		out[l] = append(out[l], i)
	}

	return out
}

func summarizeTerritories(r *Result) ([]Territory, error) {
	ds := r.Dataset
	points := make([]ward.Point, len(r.Features))

	for i, f := range r.Features {
		points[i] = ward.Point{Features: f}
	}

	territories := make([]Territory, 0, r.Clusters)

	for label, members := range groups(r.Labels, r.Clusters) {
		t := Territory{
			Cluster: label,
			Size:    len(members),
			Totals:  make([]float64, len(ds.Attributes)),
			Means:   make([]float64, len(ds.Attributes)),
		}

		values := make([]float64, len(members))

		for a := range ds.Attributes {
			for j, m := range members {
				values[j] = ds.Records[m].Attrs[a]
			}

			t.Totals[a] = floats.Sum(values)
			t.Means[a] = t.Totals[a] / float64(len(members))
		}

		lats := make([]float64, len(members))
		lngs := make([]float64, len(members))
		located := make([]spatial.Point, len(members))

		first := ds.Records[members[0]].Point
		t.Bound = orb.Point{first.Lng, first.Lat}.Bound()

		for j, m := range members {
			p := ds.Records[m].Point
			lats[j], lngs[j] = p.Lat, p.Lng
			t.Bound = t.Bound.Extend(orb.Point{p.Lng, p.Lat})
			located[j] = p
		}

		t.Centroid = spatial.Point{
			Lat: floats.Sum(lats) / float64(len(members)),
			Lng: floats.Sum(lngs) / float64(len(members)),
		}

		for _, m := range members {
			p := ds.Records[m].Point
			t.RadiusMeters = max(t.RadiusMeters, t.Centroid.HaversineDistance(&p))
		}

		footprint, err := spatial.Footprint(located, r.Options.H3Resolution)
		if err != nil {
			return nil, err
		}

		t.SSD = ward.StatsOf(points, members).SSD
		t.H3Cells = len(footprint)

		territories = append(territories, t)
	}

	return territories, nil
}

// summarizeGeo groups by territory and every present geographic column,
// sorted by territory then column values.
func summarizeGeo(r *Result) []GeoCount {
	if len(r.Dataset.GeoColumns) == 0 {
		return nil
	}

	index := make(map[string]int)

	var out []GeoCount

	for i, rec := range r.Dataset.Records {
		key := strconv.Itoa(r.Labels[i]) + "\x00" + strings.Join(rec.Geo, "\x00")

		if j, ok := index[key]; ok {
			out[j].Count++

			continue
		}

		index[key] = len(out)
		out = append(out, GeoCount{Cluster: r.Labels[i], Values: rec.Geo, Count: 1})
	}

	slices.SortFunc(out, func(a, b GeoCount) int {
		if c := cmp.Compare(a.Cluster, b.Cluster); c != 0 {
			return c
		}

		return slices.Compare(a.Values, b.Values)
	})

	return out
}
