// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package segmentation turns a table of located records into territories:
// it projects and scales the records, builds their k nearest neighbor graph
// and runs constrained Ward clustering over it.
package segmentation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jcodagnone/territorios/spatial"
	"github.com/jcodagnone/territorios/ward"
)

// Result is the outcome of Segment.
type Result struct {
	Options Options  `json:"options"`
	Dataset *Dataset `json:"-"`

	// Features are the scaled feature vectors the engine clustered.
	Features [][]float64 `json:"-"`
	Scaler   *Scaler     `json:"scaler"`

	// Labels holds the territory of every record, in record order.
	Labels   []int `json:"-"`
	Clusters int   `json:"clusters"`
	// Disconnected is set when the neighbor graph ran out of legal merges
	// before reaching Options.Clusters.
	Disconnected bool         `json:"disconnected"`
	Components   int          `json:"components"`
	Edges        int          `json:"edges"`
	Merges       []ward.Merge `json:"-"`
	Inversions   int          `json:"inversions"`

	// Cells holds the H3 cell of every record at Options.H3Resolution.
	Cells []string `json:"-"`

	Territories []Territory `json:"territories"`
	GeoSummary  []GeoCount  `json:"geo_summary,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Segment partitions ds into opts.Clusters territories.
//
// When the neighbor graph has more connected components than requested
// territories Segment returns both a Result holding the achieved partition,
// with Disconnected set, and a *ward.DisconnectedGraphError. Callers that
// can live with more territories keep the result.
func Segment(ctx context.Context, ds *Dataset, opts Options) (*Result, error) {
	start := time.Now()

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	n := len(ds.Records)
	if n < opts.MinRecords {
		return nil, &ward.Error{
			Type:    ward.ErrorTypeInsufficientData,
			Message: fmt.Sprintf("need at least %d valid records, got %d", opts.MinRecords, n),
		}
	}

	proj, err := spatial.ProjectionByName(opts.Projection)
	if err != nil {
		return nil, err
	}

	planar := spatial.ProjectAll(proj, ds.Points())
	coords := make([][]float64, n)
	rows := make([][]float64, n)

	for i, p := range planar {
		coords[i] = []float64{p[0], p[1]}
		rows[i] = append([]float64{p[0], p[1]}, ds.Records[i].Attrs...)
	}

	features, scaler := StandardScale(rows)

	graph, err := ward.BuildKNNGraph(coords, opts.Neighbors, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("building neighbor graph: %w", err)
	}

	components := len(graph.Components())
	log.Printf("Built %d-NN graph over %d records: %d edges, %d components",
		opts.Neighbors, n, graph.EdgeCount(), components)

	points := make([]ward.Point, n)
	for i, f := range features {
		points[i] = ward.Point{Features: f}
	}

	engine, err := ward.NewEngine(points, graph, ward.Options{
		TargetClusters: opts.Clusters,
		MinPoints:      max(opts.MinRecords, ward.DefaultMinPoints),
		Progress:       opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	out, runErr := engine.Run(ctx)
	if runErr != nil && !ward.IsDisconnectedGraph(runErr) {
		return nil, runErr
	}

	res := &Result{
		Options:      opts,
		Dataset:      ds,
		Features:     features,
		Scaler:       scaler,
		Labels:       out.Partition.Labels,
		Clusters:     out.Partition.Clusters,
		Disconnected: runErr != nil,
		Components:   components,
		Edges:        graph.EdgeCount(),
		Merges:       out.Merges,
		Inversions:   out.Inversions,
	}

	if res.Cells, err = cells(ds, opts.H3Resolution); err != nil {
		return nil, err
	}

	if res.Territories, err = summarizeTerritories(res); err != nil {
		return nil, err
	}

	res.GeoSummary = summarizeGeo(res)
	res.Duration = time.Since(start)

	if res.Disconnected {
		log.Printf("⚠️  Segmentation stopped at %d territories, %d were requested", res.Clusters, opts.Clusters)
	} else {
		log.Printf("Segmentation complete - %d territories from %d records in %v", res.Clusters, n, res.Duration)
	}

	if res.Inversions > 0 {
		log.Printf("Merge costs were not monotonic %d times", res.Inversions)
	}

	return res, runErr
}

func cells(ds *Dataset, res int) ([]string, error) {
	out := make([]string, len(ds.Records))

	for i, r := range ds.Records {
		cell, err := spatial.CellAt(r.Point, res)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}

		out[i] = cell.String()
	}

	return out, nil
}

// Level returns the territory labels the same run would have produced when
// stopping at k territories. k must not be below Clusters.
func (r *Result) Level(k int) ([]int, error) {
	p, err := ward.Replay(len(r.Labels), r.Merges, k)
	if err != nil {
		return nil, err
	}

	return p.Labels, nil
}

// TotalSSD is the within-territory sum of squared deviations in scaled units.
func (r *Result) TotalSSD() float64 {
	var total float64
	for _, t := range r.Territories {
		total += t.SSD
	}

	return total
}
