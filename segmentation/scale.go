// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Columns whose deviation is below this fraction of their mean are constant.
const constantTolerance = 1e-12

// Scaler holds the per-column parameters of a z-score transform.
type Scaler struct {
	Means []float64 `json:"means"`
	// Scales are population standard deviations, 1 for constant columns.
	Scales []float64 `json:"scales"`
}

// StandardScale centers every column of rows on its mean and divides it by
// its population standard deviation. A constant column becomes all zeros.
// rows is not modified.
func StandardScale(rows [][]float64) ([][]float64, *Scaler) {
	if len(rows) == 0 {
		return nil, &Scaler{}
	}

	dims := len(rows[0])
	sc := &Scaler{Means: make([]float64, dims), Scales: make([]float64, dims)}
	col := make([]float64, len(rows))

	for d := range dims {
		for i, row := range rows {
			col[i] = row[d]
		}

		mean, std := stat.PopMeanStdDev(col, nil)
		if std <= constantTolerance*math.Abs(mean) {
			std = 1
		}

		sc.Means[d], sc.Scales[d] = mean, std
	}

	return sc.Transform(rows), sc
}

// Transform applies the scaler to rows.
func (sc *Scaler) Transform(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))

	for i, row := range rows {
		out[i] = make([]float64, len(row))
		for d, v := range row {
			out[i][d] = (v - sc.Means[d]) / sc.Scales[d]
		}
	}

	return out
}
