// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"slices"

	"github.com/jcodagnone/territorios/segmentation"
	"github.com/jcodagnone/territorios/spatial"
	"github.com/jcodagnone/territorios/ward"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/spf13/cobra"
)

var debugNeighbors int

// graphStats describes a neighbor graph over projected points.
type graphStats struct {
	Points     int
	Edges      int
	Components []int
	MeanEdge   float64
	MaxEdge    float64
}

func describeGraph(points []orb.Point, g *ward.AdjacencyGraph) graphStats {
	s := graphStats{Points: g.Len(), Edges: g.EdgeCount()}

	for _, c := range g.Components() {
		s.Components = append(s.Components, len(c))
	}

	slices.Sort(s.Components)
	slices.Reverse(s.Components)

	var total float64

	for i := range g.Len() {
		for _, j := range g.Neighbors(i) {
			if i < j {
				d := planar.Distance(points[i], points[j])
				total += d
				s.MaxEdge = max(s.MaxEdge, d)
			}
		}
	}

	if s.Edges > 0 {
		s.MeanEdge = total / float64(s.Edges)
	}

	return s
}

var debugGraphCmd = &cobra.Command{
	Use:   "graph <archivo|url|->",
	Short: "Describe el grafo de vecinos de un CSV",
	Long: `Construye el grafo de k vecinos más cercanos que usa la segmentación y
muestra su tamaño y sus componentes conexas. Un grafo con más componentes
que territorios pedidos no puede alcanzar ese número.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := segmentation.DefaultOptions()
		opts.Projection = debugProjection

		proj, err := spatial.ProjectionByName(opts.Projection)
		if err != nil {
			return err
		}

		ds, _, err := loadDataset(cmd.Context(), args[0], opts, &segmentFlags.sourceOptions)
		if err != nil {
			return err
		}

		points := spatial.ProjectAll(proj, ds.Points())
		coords := make([][]float64, len(points))

		for i, p := range points {
			coords[i] = []float64{p[0], p[1]}
		}

		g, err := ward.BuildKNNGraph(coords, debugNeighbors, 0)
		if err != nil {
			return err
		}

		s := describeGraph(points, g)

		fmt.Printf("Puntos:       %d\n", s.Points)
		fmt.Printf("Aristas:      %d\n", s.Edges)
		fmt.Printf("Arista media: %.1f m\n", s.MeanEdge)
		fmt.Printf("Arista máx.:  %.1f m\n", s.MaxEdge)
		fmt.Printf("Componentes:  %d %v\n", len(s.Components), s.Components)

		return nil
	},
}

func init() {
	debugGraphCmd.PersistentFlags().IntVar(&debugNeighbors, "neighbors", segmentation.DefaultNeighbors, "Vecinos por registro")
}
