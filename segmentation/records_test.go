// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jcodagnone/territorios/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultSchema = Schema{IDColumn: DefaultIDColumn, Attributes: DefaultAttributes}

func TestReadCSV(t *testing.T) {
	input := "\ufeffHCP ID,Trx Count,Lat,Lng,State,City\n" +
		"a,10,40.1,-100.2,KS,Hays\n" +
		"b, 20 ,40.2,-100.3,KS,Hays\n"

	ds, report, err := ReadCSV(strings.NewReader(input), defaultSchema)
	require.NoError(t, err)

	assert.Equal(t, &LoadReport{Rows: 2, Dropped: 0, Kept: 2}, report)
	assert.Equal(t, "hcp_id", ds.IDColumn)
	assert.Equal(t, []string{"trx_count"}, ds.Attributes)
	assert.Equal(t, []string{"state", "city"}, ds.GeoColumns)

	want := []Record{
		{ID: "a", Point: spatial.Point{Lat: 40.1, Lng: -100.2}, Attrs: []float64{10}, Geo: []string{"KS", "Hays"}},
		{ID: "b", Point: spatial.Point{Lat: 40.2, Lng: -100.3}, Attrs: []float64{20}, Geo: []string{"KS", "Hays"}},
	}
	if diff := cmp.Diff(want, ds.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVDropsIncompleteRows(t *testing.T) {
	input := "hcp_id,trx_count,latitude,longitude\n" +
		"a,10,40.1,-100.2\n" +
		"b,NA,40.2,-100.3\n" +
		",5,40.2,-100.3\n" +
		"c,7,,-100.3\n" +
		"d,8,40.3,null\n" +
		"e,9,40.4,-100.4\n"

	ds, report, err := ReadCSV(strings.NewReader(input), defaultSchema)
	require.NoError(t, err)

	assert.Equal(t, &LoadReport{Rows: 6, Dropped: 4, Kept: 2}, report)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, "a", ds.Records[0].ID)
	assert.Equal(t, "e", ds.Records[1].ID)
	assert.Nil(t, ds.GeoColumns)
	assert.Nil(t, ds.Records[0].Geo)
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(error) bool
		line  int
	}{
		{
			name:  "empty",
			input: "",
			check: func(err error) bool { return isDataType(err, ErrorTypeEmpty) },
		},
		{
			name:  "missing columns",
			input: "hcp_id,latitude\na,1\n",
			check: IsMissingColumns,
		},
		{
			name:  "not numeric",
			input: "hcp_id,trx_count,latitude,longitude\na,1,40,-100\nb,many,40,-100\n",
			check: IsNotNumeric,
			line:  3,
		},
		{
			name:  "infinite",
			input: "hcp_id,trx_count,latitude,longitude\na,Inf,40,-100\n",
			check: IsNotNumeric,
			line:  2,
		},
		{
			name:  "duplicate id",
			input: "hcp_id,trx_count,latitude,longitude\na,1,40,-100\na,2,41,-101\n",
			check: IsDuplicateID,
			line:  3,
		},
		{
			name:  "latitude out of range",
			input: "hcp_id,trx_count,latitude,longitude\na,1,95,-100\n",
			check: func(err error) bool { return isDataType(err, ErrorTypeCoordinates) },
			line:  2,
		},
		{
			name:  "malformed",
			input: "hcp_id,trx_count,latitude,longitude\n\"a,1,40,-100\n",
			check: func(err error) bool { return isDataType(err, ErrorTypeMalformed) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadCSV(strings.NewReader(tt.input), defaultSchema)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.True(t, IsDataError(err))

			if tt.line > 0 {
				var dErr *DataError
				require.ErrorAs(t, err, &dErr)
				assert.Equal(t, tt.line, dErr.Line)
			}
		})
	}
}

func TestReadCSVMissingColumnsListsAll(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("hcp_id,city\n"), defaultSchema)
	require.Error(t, err)

	var dErr *DataError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "trx_count,latitude,longitude", dErr.Column)
}

func TestReadCSVCustomSchema(t *testing.T) {
	input := "Store,Sales,Visits,lat,long,zip\n" +
		"s1,100,3,40,-100,67601\n"

	ds, _, err := ReadCSV(strings.NewReader(input), Schema{IDColumn: "store", Attributes: []string{"Sales", "visits"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"sales", "visits"}, ds.Attributes)
	assert.Equal(t, []string{"zip_code"}, ds.GeoColumns)
	assert.Equal(t, []float64{100, 3}, ds.Records[0].Attrs)
	assert.Equal(t, []string{"67601"}, ds.Records[0].Geo)
	assert.Equal(t, []spatial.Point{{Lat: 40, Lng: -100}}, ds.Points())
}
