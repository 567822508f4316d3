// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoTownsCSV = "hcp_id,trx_count,latitude,longitude,city\n" +
	"a1,10,38.87,-99.32,Hays\n" +
	"a2,12,38.88,-99.33,Hays\n" +
	"a3,11,38.89,-99.34,Ellis\n" +
	"bad,,38.89,-99.34,Ellis\n" +
	"b1,30,38.87,-89.32,Vandalia\n" +
	"b2,32,38.88,-89.33,Vandalia\n" +
	"b3,31,38.89,-89.34,Vandalia\n"

func setupServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	opts := DefaultOptions()
	opts.Workers = 1

	s := NewServer(setupRepository(t), opts)

	return s, s.Router()
}

func uploadRequest(t *testing.T, content string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer

	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="towns.csv"`)
	h.Set("Content-Type", "text/csv")

	part, err := mw.CreatePart(h)
	require.NoError(t, err)

	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/segment", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return req
}

type segmentResponse struct {
	Run         Run         `json:"run"`
	Load        LoadReport  `json:"load"`
	Territories []Territory `json:"territories"`
}

func postSegment(t *testing.T, router http.Handler, fields map[string]string) (*httptest.ResponseRecorder, segmentResponse) {
	t.Helper()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, twoTownsCSV, fields))

	var resp segmentResponse
	if w.Code == http.StatusCreated {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}

	return w, resp
}

func TestServerSegment(t *testing.T) {
	_, router := setupServer(t)

	w, resp := postSegment(t, router, map[string]string{"clusters": "2", "neighbors": "5"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, "towns.csv", resp.Run.Source)
	assert.Equal(t, 2, resp.Run.Clusters)
	assert.Equal(t, []string{"city"}, resp.Run.GeoColumns)
	assert.Equal(t, LoadReport{Rows: 7, Dropped: 1, Kept: 6}, resp.Load)
	assert.Len(t, resp.Territories, 2)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.Run.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Runs  []Run `json:"runs"`
		Total int   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, resp.Run.ID, list.Runs[0].ID)
}

func TestServerSegmentDisconnected(t *testing.T) {
	_, router := setupServer(t)

	w, _ := postSegment(t, router, map[string]string{"clusters": "1", "neighbors": "2"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["requested"])
	assert.EqualValues(t, 2, body["achieved"])

	w, resp := postSegment(t, router, map[string]string{"clusters": "1", "neighbors": "2", "accept_partial": "true"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, resp.Run.Disconnected)
	assert.Equal(t, 2, resp.Run.Clusters)
}

func TestServerSegmentBadRequests(t *testing.T) {
	_, router := setupServer(t)

	tests := []struct {
		name    string
		content string
		fields  map[string]string
	}{
		{"invalid clusters", twoTownsCSV, map[string]string{"clusters": "-3"}},
		{"unknown projection", twoTownsCSV, map[string]string{"projection": "mollweide"}},
		{"missing columns", "hcp_id,latitude\n", nil},
		{"too few records", "hcp_id,trx_count,latitude,longitude\na,1,40,-100\n", nil},
		{"too many clusters", twoTownsCSV, map[string]string{"clusters": "9", "neighbors": "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, uploadRequest(t, tt.content, tt.fields))
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/segment", strings.NewReader("clusters=2"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServerRunResources(t *testing.T) {
	_, router := setupServer(t)

	_, resp := postSegment(t, router, map[string]string{"clusters": "2", "neighbors": "5"})
	require.NotEmpty(t, resp.Run.ID)

	base := "/api/runs/" + resp.Run.ID

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		return w
	}

	t.Run("assignments", func(t *testing.T) {
		w := get(base + "/assignments")
		require.Equal(t, http.StatusOK, w.Code)

		var tbl Table
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tbl))
		assert.Len(t, tbl.Rows, 6)
		assert.Equal(t, "b3", tbl.Rows[5].ID)
		assert.Equal(t, 1, tbl.Rows[5].Cluster)
	})

	t.Run("merges", func(t *testing.T) {
		w := get(base + "/merges")
		require.Equal(t, http.StatusOK, w.Code)

		var merges []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &merges))
		assert.Len(t, merges, 4)
	})

	t.Run("levels", func(t *testing.T) {
		w := get(base + "/levels/6")
		require.Equal(t, http.StatusOK, w.Code)

		var tbl Table
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tbl))

		for i, row := range tbl.Rows {
			assert.Equal(t, i, row.Cluster)
		}

		assert.Equal(t, http.StatusBadRequest, get(base+"/levels/1").Code)
		assert.Equal(t, http.StatusBadRequest, get(base+"/levels/many").Code)
	})

	t.Run("csv", func(t *testing.T) {
		w := get(base + "/export.csv")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "territories_2.csv")

		rows, err := csv.NewReader(w.Body).ReadAll()
		require.NoError(t, err)
		assert.Len(t, rows, 7)
		assert.Equal(t, "cluster", rows[0][len(rows[0])-1])
	})

	t.Run("geojson", func(t *testing.T) {
		w := get(base + "/territories.geojson")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "FeatureCollection")
	})

	t.Run("not found", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get("/api/runs/missing").Code)
		assert.Equal(t, http.StatusNotFound, get("/api/runs/missing/export.csv").Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, base, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, http.StatusNotFound, get(base).Code)
	})
}

func TestServerListRunsValidation(t *testing.T) {
	_, router := setupServer(t)

	for _, q := range []string{"limit=0", "limit=x", "offset=-1"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"runs": [], "total": 0}`, w.Body.String())
}

func TestServerMetrics(t *testing.T) {
	_, router := setupServer(t)

	postSegment(t, router, map[string]string{"clusters": "2", "neighbors": "5"})
	postSegment(t, router, map[string]string{"clusters": "1", "neighbors": "2"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `territorios_segmentation_runs_total{outcome="ok"} 1`)
	assert.Contains(t, body, `territorios_segmentation_runs_total{outcome="partial"} 1`)
	assert.Contains(t, body, "territorios_segmentation_records_total 12")
}
