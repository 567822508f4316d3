// Copyright 2025 The ChapaUY Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"fmt"

	"github.com/uber/h3-go/v4"
)

// MaxH3Resolution is the finest H3 resolution.
const MaxH3Resolution = 15

// CellAt returns the H3 cell containing p at resolution res.
func CellAt(p Point, res int) (h3.Cell, error) {
	if res < 0 || res > MaxH3Resolution {
		return 0, fmt.Errorf("spatial: h3 resolution must be in [0, %d], got %d", MaxH3Resolution, res)
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), res)
	if err != nil {
		return 0, fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
	}

	return cell, nil
}

// Footprint counts the points that fall in each H3 cell at resolution res.
func Footprint(points []Point, res int) (map[h3.Cell]int, error) {
	cells := make(map[h3.Cell]int)

	for _, p := range points {
		cell, err := CellAt(p, res)
		if err != nil {
			return nil, err
		}

		cells[cell]++
	}

	return cells, nil
}
