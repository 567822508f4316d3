// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segmentTwoTowns(t *testing.T) *Result {
	t.Helper()

	res, err := Segment(context.Background(), twoTowns(), testOptions(2, 5))
	require.NoError(t, err)

	return res
}

func TestResultTable(t *testing.T) {
	res := segmentTwoTowns(t)
	tbl := res.Table()

	assert.Equal(t, "hcp_id", tbl.IDColumn)
	require.Len(t, tbl.Rows, 6)

	for i, row := range tbl.Rows {
		assert.Equal(t, i, row.Ordinal)
		assert.Equal(t, res.Labels[i], row.Cluster)
		assert.Equal(t, res.Cells[i], row.Cell)
		assert.Equal(t, res.Dataset.Records[i].ID, row.ID)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, segmentTwoTowns(t).Table()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 7)

	assert.Equal(t, []string{"hcp_id", "trx_count", "latitude", "longitude", "state", "city", "cluster"}, rows[0])
	assert.Equal(t, []string{"a1", "10", "38.87", "-99.32", "KS", "Hays", "0"}, rows[1])
	assert.Equal(t, []string{"b3", "31", "38.89", "-89.34", "KS", "Vandalia", "1"}, rows[6])
}

func TestWriteCSVWithoutGeoColumns(t *testing.T) {
	tbl := &Table{
		IDColumn:   "id",
		Attributes: []string{"sales", "visits"},
		Rows: []Assignment{
			{Record: Record{ID: "x", Attrs: []float64{1.5, 2}}, Cluster: 3},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, "id,sales,visits,latitude,longitude,cluster\nx,1.5,2,0,0,3\n", buf.String())
}

func TestDefaultCSVName(t *testing.T) {
	assert.Equal(t, "territories_5.csv", DefaultCSVName(5))
}

func TestFeatureCollection(t *testing.T) {
	fc := FeatureCollection(segmentTwoTowns(t).Table())
	require.Len(t, fc.Features, 8)

	first := fc.Features[0]
	assert.Equal(t, "record", first.Properties["kind"])
	assert.Equal(t, "a1", first.Properties["hcp_id"])
	assert.Equal(t, orb.Point{-99.32, 38.87}, first.Geometry)

	territory := fc.Features[6]
	assert.Equal(t, "territory", territory.Properties["kind"])
	assert.Equal(t, 0, territory.Properties[ClusterColumn])

	poly, ok := territory.Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.InDelta(t, -99.34, poly.Bound().Min[0], 1e-9)
	assert.InDelta(t, 38.89, poly.Bound().Max[1], 1e-9)
}

func TestWriteGeoJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, segmentTwoTowns(t).Table()))

	fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 8)
	assert.Equal(t, "b3", fc.Features[5].Properties["hcp_id"])
}
