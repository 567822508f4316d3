// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/jcodagnone/territorios/spatial"
	"github.com/jcodagnone/territorios/utils"
)

// Core coordinate columns.
const (
	LatitudeColumn  = "latitude"
	LongitudeColumn = "longitude"
)

// GeoColumns are optional descriptive columns kept for the geographic
// summary and the exports, in output order.
var GeoColumns = []string{"state", "city", "zip_code"}

var columnAliases = map[string]string{
	"lat":  LatitudeColumn,
	"lng":  LongitudeColumn,
	"lon":  LongitudeColumn,
	"long": LongitudeColumn,
	"zip":  "zip_code",
}

// Missing markers, compared after folding.
var missingValues = []string{"", "na", "n/a", "nan", "null", "none"}

// Record is one input row.
type Record struct {
	ID    string        `json:"id"`
	Point spatial.Point `json:"point"`
	// Attrs holds one value per Dataset.Attributes column.
	Attrs []float64 `json:"attrs"`
	// Geo holds one value per Dataset.GeoColumns column.
	Geo []string `json:"geo,omitempty"`
}

// Dataset is the parsed input of a segmentation.
type Dataset struct {
	IDColumn   string
	Attributes []string
	// GeoColumns lists the optional columns present in the input.
	GeoColumns []string
	Records    []Record
}

// Points returns the location of every record.
func (d *Dataset) Points() []spatial.Point {
	points := make([]spatial.Point, len(d.Records))
	for i, r := range d.Records {
		points[i] = r.Point
	}

	return points
}

// LoadReport describes what ReadCSV kept.
type LoadReport struct {
	Rows    int `json:"rows"`
	Dropped int `json:"dropped"`
	Kept    int `json:"kept"`
}

// Schema names the columns ReadCSV extracts.
type Schema struct {
	IDColumn   string
	Attributes []string
}

// ReadCSV reads a delimited file with a header row. Headers are matched after
// normalization so "HCP ID" finds hcp_id. Rows with an empty id, attribute
// or coordinate are dropped and counted; any other bad value fails the load.
func ReadCSV(r io.Reader, schema Schema) (*Dataset, *LoadReport, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, &DataError{Type: ErrorTypeEmpty, Message: "input has no header row"}
	}

	if err != nil {
		return nil, nil, &DataError{Type: ErrorTypeMalformed, Message: "reading header", Err: err}
	}

	index := make(map[string]int, len(header))

	for i, h := range header {
		key := utils.NormalizeHeader(h)
		if alias, ok := columnAliases[key]; ok {
			key = alias
		}

		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	ds := &Dataset{
		IDColumn:   utils.NormalizeHeader(schema.IDColumn),
		Attributes: make([]string, len(schema.Attributes)),
	}
	for i, a := range schema.Attributes {
		ds.Attributes[i] = utils.NormalizeHeader(a)
	}

	required := append([]string{ds.IDColumn}, ds.Attributes...)
	required = append(required, LatitudeColumn, LongitudeColumn)

	var missing []string

	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}

	if len(missing) > 0 {
		return nil, nil, &DataError{
			Type:    ErrorTypeMissingColumns,
			Column:  strings.Join(missing, ","),
			Message: "missing required columns: " + strings.Join(missing, ", "),
		}
	}

	for _, col := range GeoColumns {
		if _, ok := index[col]; ok {
			ds.GeoColumns = append(ds.GeoColumns, col)
		}
	}

	report := &LoadReport{}
	seen := make(map[string]int)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, nil, &DataError{Type: ErrorTypeMalformed, Message: "reading row", Err: err}
		}

		report.Rows++

		line, _ := reader.FieldPos(0)

		rec, ok, err := parseRow(row, index, ds, line)
		if err != nil {
			return nil, nil, err
		}

		if !ok {
			report.Dropped++

			continue
		}

		if prev, dup := seen[rec.ID]; dup {
			return nil, nil, &DataError{
				Type:    ErrorTypeDuplicateID,
				Line:    line,
				Column:  ds.IDColumn,
				Message: fmt.Sprintf("id %q already used on line %d", rec.ID, prev),
			}
		}

		seen[rec.ID] = line
		ds.Records = append(ds.Records, rec)
	}

	report.Kept = len(ds.Records)

	if report.Dropped > 0 {
		log.Printf("⚠️  Dropped %d of %d rows due to missing values in core columns", report.Dropped, report.Rows)
	}

	return ds, report, nil
}

func isMissing(s string) bool {
	return slices.Contains(missingValues, strings.ToLower(strings.TrimSpace(s)))
}

// parseRow returns ok=false when a core cell is empty.
func parseRow(row []string, index map[string]int, ds *Dataset, line int) (Record, bool, error) {
	cell := func(col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}

		return strings.TrimSpace(row[i])
	}

	number := func(col string) (float64, bool, error) {
		raw := cell(col)
		if isMissing(raw) {
			return 0, false, nil
		}

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false, &DataError{
				Type:    ErrorTypeNotNumeric,
				Line:    line,
				Column:  col,
				Message: fmt.Sprintf("column %s: %q is not a finite number", col, raw),
			}
		}

		return v, true, nil
	}

	rec := Record{ID: cell(ds.IDColumn), Attrs: make([]float64, len(ds.Attributes))}
	if rec.ID == "" {
		return Record{}, false, nil
	}

	complete := true

	for i, col := range ds.Attributes {
		v, ok, err := number(col)
		if err != nil {
			return Record{}, false, err
		}

		complete = complete && ok
		rec.Attrs[i] = v
	}

	lat, okLat, err := number(LatitudeColumn)
	if err != nil {
		return Record{}, false, err
	}

	lng, okLng, err := number(LongitudeColumn)
	if err != nil {
		return Record{}, false, err
	}

	if !complete || !okLat || !okLng {
		return Record{}, false, nil
	}

	rec.Point = spatial.Point{Lat: lat, Lng: lng}
	if err := rec.Point.Validate(); err != nil {
		return Record{}, false, &DataError{Type: ErrorTypeCoordinates, Line: line, Message: "bad coordinates", Err: err}
	}

	if len(ds.GeoColumns) > 0 {
		rec.Geo = make([]string, len(ds.GeoColumns))
		for i, col := range ds.GeoColumns {
			rec.Geo[i] = cell(col)
		}
	}

	return rec, true, nil
}
