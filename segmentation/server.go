// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jcodagnone/territorios/utils"
	"github.com/jcodagnone/territorios/utils/httputils"
	"github.com/jcodagnone/territorios/ward"
)

// DefaultMaxUpload bounds the size of uploaded files.
const DefaultMaxUpload = 64 << 20

type Server struct {
	repo      RunRepository
	defaults  Options
	metrics   *Metrics
	maxUpload int64
}

func NewServer(repo RunRepository, defaults Options) *Server {
	return &Server{
		repo:      repo,
		defaults:  defaults,
		metrics:   NewMetrics("territorios"),
		maxUpload: DefaultMaxUpload,
	}
}

// Router registers every route on a new gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.POST("/api/segment", s.segment)
	r.GET("/api/runs", s.listRuns)
	r.GET("/api/runs/:id", s.getRun)
	r.DELETE("/api/runs/:id", s.deleteRun)
	r.GET("/api/runs/:id/assignments", s.getAssignments)
	r.GET("/api/runs/:id/merges", s.getMerges)
	r.GET("/api/runs/:id/levels/:k", s.getLevel)
	r.GET("/api/runs/:id/export.csv", s.exportCSV)
	r.GET("/api/runs/:id/territories.geojson", s.exportGeoJSON)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	return r
}

func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *Server) fail(ctx *gin.Context, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("Error serving %s: %v", ctx.Request.URL.Path, err)
	}

	body := gin.H{"error": err.Error()}

	var dErr *ward.DisconnectedGraphError
	if errors.As(err, &dErr) {
		body["requested"] = dErr.Requested
		body["achieved"] = dErr.Achieved
	}

	ctx.JSON(status, body)
}

type segmentRequest struct {
	Clusters      int    `form:"clusters" binding:"omitempty,min=1,max=500"`
	Neighbors     int    `form:"neighbors" binding:"omitempty,min=1,max=100"`
	IDColumn      string `form:"id_column"`
	Attributes    string `form:"attributes"`
	Projection    string `form:"projection"`
	AcceptPartial bool   `form:"accept_partial"`
}

func (req *segmentRequest) options(defaults Options) Options {
	opts := defaults
	if req.Clusters > 0 {
		opts.Clusters = req.Clusters
	}

	if req.Neighbors > 0 {
		opts.Neighbors = req.Neighbors
	}

	if req.IDColumn != "" {
		opts.IDColumn = req.IDColumn
	}

	if req.Attributes != "" {
		opts.Attributes = utils.SplitList(req.Attributes)
	}

	if req.Projection != "" {
		opts.Projection = req.Projection
	}

	return opts
}

func (s *Server) segment(ctx *gin.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, s.maxUpload)

	var req segmentRequest
	if err := ctx.ShouldBind(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})

		return
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(ctx, fmt.Errorf("opening upload: %w", err))

		return
	}
	defer f.Close()

	body, err := httputils.AsReader(f, fh.Header.Get("Content-Type"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	opts := req.options(s.defaults)
	if err := opts.Validate(); err != nil {
		s.fail(ctx, err)

		return
	}

	ds, report, err := ReadCSV(body, opts.Schema())
	if err != nil {
		s.fail(ctx, err)

		return
	}

	res, err := Segment(ctx.Request.Context(), ds, opts)
	s.metrics.Observe(res, err)

	if err != nil && !(req.AcceptPartial && ward.IsDisconnectedGraph(err)) {
		s.fail(ctx, err)

		return
	}

	run := NewRun(fh.Filename, report, res)
	if err := s.repo.SaveRun(run, res); err != nil {
		s.fail(ctx, fmt.Errorf("saving run: %w", err))

		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"run":         run,
		"load":        report,
		"territories": res.Territories,
		"geo_summary": res.GeoSummary,
	})
}

func (s *Server) listRuns(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})

		return
	}

	offset, err := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset parameter"})

		return
	}

	runs, err := s.repo.ListRuns(limit, offset)
	if err != nil {
		s.fail(ctx, err)

		return
	}

	total, err := s.repo.CountRuns()
	if err != nil {
		s.fail(ctx, err)

		return
	}

	if runs == nil {
		runs = []*Run{}
	}

	ctx.JSON(http.StatusOK, gin.H{"runs": runs, "total": total})
}

func (s *Server) getRun(ctx *gin.Context) {
	run, err := s.repo.GetRun(ctx.Param("id"))
	if err != nil {
		s.fail(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, run)
}

func (s *Server) deleteRun(ctx *gin.Context) {
	if err := s.repo.DeleteRun(ctx.Param("id")); err != nil {
		s.fail(ctx, err)

		return
	}

	ctx.Status(http.StatusNoContent)
}

func (s *Server) getAssignments(ctx *gin.Context) {
	t, err := s.repo.GetAssignments(ctx.Param("id"))
	if err != nil {
		s.fail(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, t)
}

func (s *Server) getMerges(ctx *gin.Context) {
	merges, err := s.repo.GetMerges(ctx.Param("id"))
	if err != nil {
		s.fail(ctx, err)

		return
	}

	if merges == nil {
		merges = []ward.Merge{}
	}

	ctx.JSON(http.StatusOK, merges)
}

// getLevel replays the stored merge log down to a coarser number of
// territories.
func (s *Server) getLevel(ctx *gin.Context) {
	k, err := strconv.Atoi(ctx.Param("k"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid k parameter"})

		return
	}

	id := ctx.Param("id")

	t, err := s.repo.GetAssignments(id)
	if err != nil {
		s.fail(ctx, err)

		return
	}

	merges, err := s.repo.GetMerges(id)
	if err != nil {
		s.fail(ctx, err)

		return
	}

	p, err := ward.Replay(len(t.Rows), merges, k)
	if err != nil {
		s.fail(ctx, err)

		return
	}

	for i := range t.Rows {
		t.Rows[i].Cluster = p.Labels[t.Rows[i].Ordinal]
	}

	ctx.JSON(http.StatusOK, t)
}

func (s *Server) exportCSV(ctx *gin.Context) {
	id := ctx.Param("id")

	run, err := s.repo.GetRun(id)
	if err != nil {
		s.fail(ctx, err)

		return
	}

	t, err := s.repo.GetAssignments(id)
	if err != nil {
		s.fail(ctx, err)

		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", DefaultCSVName(run.Clusters)))
	ctx.Header("Content-Type", "text/csv; charset=utf-8")
	ctx.Status(http.StatusOK)

	if err := WriteCSV(ctx.Writer, t); err != nil {
		log.Printf("Error writing CSV for run %s: %v", id, err)
	}
}

func (s *Server) exportGeoJSON(ctx *gin.Context) {
	t, err := s.repo.GetAssignments(ctx.Param("id"))
	if err != nil {
		s.fail(ctx, err)

		return
	}

	ctx.Header("Content-Type", "application/geo+json")
	ctx.Status(http.StatusOK)

	if err := WriteGeoJSON(ctx.Writer, t); err != nil {
		log.Printf("Error writing GeoJSON for run %s: %v", ctx.Param("id"), err)
	}
}
