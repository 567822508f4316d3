// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ClusterColumn is the name of the exported territory column.
const ClusterColumn = "cluster"

// Assignment is a record together with its territory.
type Assignment struct {
	Record
	Ordinal int    `json:"ordinal"`
	Cluster int    `json:"cluster"`
	Cell    string `json:"h3_cell"`
}

// Table is the exportable view of a segmentation, either fresh from Segment
// or loaded from a RunRepository.
type Table struct {
	IDColumn   string       `json:"id_column"`
	Attributes []string     `json:"attributes"`
	GeoColumns []string     `json:"geo_columns"`
	Rows       []Assignment `json:"rows"`
}

// Table returns the assignments of every record in input order.
func (r *Result) Table() *Table {
	t := &Table{
		IDColumn:   r.Dataset.IDColumn,
		Attributes: r.Dataset.Attributes,
		GeoColumns: r.Dataset.GeoColumns,
		Rows:       make([]Assignment, len(r.Dataset.Records)),
	}

	for i, rec := range r.Dataset.Records {
		t.Rows[i] = Assignment{Record: rec, Ordinal: i, Cluster: r.Labels[i], Cell: r.Cells[i]}
	}

	return t
}

// DefaultCSVName is the file name used when exporting k territories.
func DefaultCSVName(k int) string {
	return fmt.Sprintf("territories_%d.csv", k)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes the id, the attributes, the coordinates, the present
// geographic columns and the territory of every row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	header := append([]string{t.IDColumn}, t.Attributes...)
	header = append(header, LatitudeColumn, LongitudeColumn)
	header = append(header, t.GeoColumns...)
	header = append(header, ClusterColumn)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, 0, len(header))

	for _, a := range t.Rows {
		row = append(row[:0], a.ID)
		for _, v := range a.Attrs {
			row = append(row, formatFloat(v))
		}

		row = append(row, formatFloat(a.Point.Lat), formatFloat(a.Point.Lng))
		row = append(row, a.Geo...)
		row = append(row, strconv.Itoa(a.Cluster))

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing %s: %w", a.ID, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// FeatureCollection builds one point feature per row and one polygon
// feature per territory with its bounding box.
func FeatureCollection(t *Table) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	bounds := make(map[int]orb.Bound)

	var order []int

	for _, a := range t.Rows {
		p := orb.Point{a.Point.Lng, a.Point.Lat}

		f := geojson.NewFeature(p)
		f.Properties["kind"] = "record"
		f.Properties[t.IDColumn] = a.ID
		f.Properties[ClusterColumn] = a.Cluster
		f.Properties["h3_cell"] = a.Cell

		for i, col := range t.Attributes {
			f.Properties[col] = a.Attrs[i]
		}

		for i, col := range t.GeoColumns {
			f.Properties[col] = a.Geo[i]
		}

		fc.Append(f)

		if b, ok := bounds[a.Cluster]; ok {
			bounds[a.Cluster] = b.Extend(p)
		} else {
			bounds[a.Cluster] = p.Bound()
			order = append(order, a.Cluster)
		}
	}

	for _, cluster := range order {
		f := geojson.NewFeature(bounds[cluster].ToPolygon())
		f.Properties["kind"] = "territory"
		f.Properties[ClusterColumn] = cluster
		fc.Append(f)
	}

	return fc
}

// WriteGeoJSON writes FeatureCollection(t) to w.
func WriteGeoJSON(w io.Writer, t *Table) error {
	if err := json.NewEncoder(w).Encode(FeatureCollection(t)); err != nil {
		return fmt.Errorf("encoding geojson: %w", err)
	}

	return nil
}
