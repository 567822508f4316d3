// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package segmentation

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepository(t *testing.T) RunRepository {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRunRepository(db)
	require.NoError(t, repo.CreateSchema())

	return repo
}

func saveTwoTowns(t *testing.T, repo RunRepository) (*Run, *Result) {
	t.Helper()

	res := segmentTwoTowns(t)
	run := NewRun("towns.csv", &LoadReport{Rows: 7, Dropped: 1, Kept: 6}, res)
	require.NoError(t, repo.SaveRun(run, res))

	return run, res
}

func TestNewRun(t *testing.T) {
	res := segmentTwoTowns(t)
	run := NewRun("towns.csv", &LoadReport{Rows: 7, Dropped: 1, Kept: 6}, res)

	assert.Len(t, run.ID, 36)
	assert.Equal(t, 6, run.Records)
	assert.Equal(t, 1, run.Dropped)
	assert.Equal(t, 2, run.Requested)
	assert.Equal(t, 2, run.Clusters)
	assert.Equal(t, []string{"state", "city"}, run.GeoColumns)
	assert.InDelta(t, res.TotalSSD(), run.TotalSSD, 1e-12)

	other := NewRun("towns.csv", nil, res)
	assert.NotEqual(t, run.ID, other.ID)
	assert.Zero(t, other.Dropped)
}

func TestRunRepositoryRoundTrip(t *testing.T) {
	repo := setupRepository(t)
	run, res := saveTwoTowns(t, repo)

	got, err := repo.GetRun(run.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(run, got, cmpopts.EquateApproxTime(0), cmpopts.IgnoreFields(Run{}, "Duration")); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, run.Duration.Milliseconds(), got.Duration.Milliseconds())

	tbl, err := repo.GetAssignments(run.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(res.Table(), tbl); diff != "" {
		t.Errorf("assignments mismatch (-want +got):\n%s", diff)
	}

	merges, err := repo.GetMerges(run.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Merges, merges)
}

func TestRunRepositoryListAndCount(t *testing.T) {
	repo := setupRepository(t)

	count, err := repo.CountRuns()
	require.NoError(t, err)
	assert.Zero(t, count)

	first, _ := saveTwoTowns(t, repo)
	second, _ := saveTwoTowns(t, repo)

	count, err = repo.CountRuns()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	runs, err := repo.ListRuns(10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	ids := []string{runs[0].ID, runs[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	runs, err = repo.ListRuns(1, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunRepositoryNotFound(t *testing.T) {
	repo := setupRepository(t)

	_, err := repo.GetRun("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = repo.GetAssignments("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = repo.GetMerges("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	assert.ErrorIs(t, repo.DeleteRun("nope"), ErrRunNotFound)
}

func TestRunRepositoryDelete(t *testing.T) {
	repo := setupRepository(t)
	run, _ := saveTwoTowns(t, repo)

	require.NoError(t, repo.DeleteRun(run.ID))

	_, err := repo.GetRun(run.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)

	count, err := repo.CountRuns()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunRepositoryPartialRun(t *testing.T) {
	repo := setupRepository(t)

	res, err := Segment(context.Background(), twoTowns(), testOptions(1, 2))
	require.Error(t, err)

	run := NewRun("towns.csv", nil, res)
	require.NoError(t, repo.SaveRun(run, res))

	got, err := repo.GetRun(run.ID)
	require.NoError(t, err)
	assert.True(t, got.Disconnected)
	assert.Equal(t, 1, got.Requested)
	assert.Equal(t, 2, got.Clusters)
}
