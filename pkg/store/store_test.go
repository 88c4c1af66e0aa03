/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"gotest.tools/assert"

	harmonyerrors "github.com/nasa/harmony-core/pkg/errors"
	"github.com/nasa/harmony-core/pkg/models"
)

func seedJob(t *testing.T, s *MemoryStore, jobID, serviceID string, itemCount int) {
	t.Helper()
	now := time.Now().UTC()
	job := &models.Job{
		RequestID:     jobID,
		Status:        models.JobRunning,
		IsAsync:       true,
		CollectionIDs: []string{"C1"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	steps := []models.WorkflowStep{
		{JobID: jobID, StepIndex: 0, ServiceID: serviceID, Operation: "{}", WorkItemCount: itemCount},
	}
	var items []models.WorkItem
	for i := 0; i < itemCount; i++ {
		items = append(items, models.WorkItem{
			JobID:     jobID,
			ServiceID: serviceID,
			Status:    models.WorkItemReady,
			SortIndex: i,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	assert.NilError(t, s.CreateJob(context.Background(), job, steps, items))
}

func TestGetNextWorkLeasesOldestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedJob(t, s, "job-1", "svc", 2)

	first, err := s.GetNextWork(ctx, "svc", "pod-a")
	assert.NilError(t, err)
	assert.Assert(t, first != nil)
	assert.Equal(t, first.Status, models.WorkItemRunning)

	second, err := s.GetNextWork(ctx, "svc", "pod-b")
	assert.NilError(t, err)
	assert.Assert(t, second != nil)
	assert.Assert(t, second.ID > first.ID)

	third, err := s.GetNextWork(ctx, "svc", "pod-c")
	assert.NilError(t, err)
	assert.Assert(t, third == nil)
}

func TestGetNextWorkFiltersByService(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedJob(t, s, "job-1", "svc-a", 1)

	item, err := s.GetNextWork(ctx, "svc-b", "pod-1")
	assert.NilError(t, err)
	assert.Assert(t, item == nil)
}

func TestUpdateWorkItemConflictOnTerminal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedJob(t, s, "job-1", "svc", 1)

	item, err := s.GetNextWork(ctx, "svc", "pod-1")
	assert.NilError(t, err)

	item.Status = models.WorkItemSuccessful
	item.Results = []string{"s3://artifacts/job-1/1/outputs/catalog0.json"}
	assert.NilError(t, s.UpdateWorkItem(ctx, item))

	item.Status = models.WorkItemFailed
	err = s.UpdateWorkItem(ctx, item)
	assert.Assert(t, harmonyerrors.IsConflict(err))
}

// The postgres update must carry the terminal-status guard in its WHERE
// clause; a separate read-then-write check would let two concurrent reports
// for a re-leased item both land.
func TestUpdateWorkItemQueryGuardsTerminalStatus(t *testing.T) {
	row, err := newWorkItemRow(&models.WorkItem{ID: 7, Status: models.WorkItemSuccessful})
	assert.NilError(t, err)

	query, args, err := updateWorkItemQuery(row, 7)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(query, "status IN ("))

	var guarded []string
	for _, arg := range args {
		if s, ok := arg.(string); ok && (s == string(models.WorkItemReady) || s == string(models.WorkItemRunning)) {
			guarded = append(guarded, s)
		}
	}
	assert.DeepEqual(t, guarded, []string{string(models.WorkItemReady), string(models.WorkItemRunning)})
}

func TestExpireLeases(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedJob(t, s, "job-1", "svc", 1)

	leased, err := s.GetNextWork(ctx, "svc", "pod-1")
	assert.NilError(t, err)
	assert.Assert(t, leased != nil)

	// A generous lease keeps the item running.
	n, err := s.ExpireLeases(ctx, time.Hour)
	assert.NilError(t, err)
	assert.Equal(t, n, 0)

	// A zero lease reaps it back to ready with a bumped retry count.
	n, err = s.ExpireLeases(ctx, 0)
	assert.NilError(t, err)
	assert.Equal(t, n, 1)

	item, err := s.GetWorkItem(ctx, leased.ID)
	assert.NilError(t, err)
	assert.Equal(t, item.Status, models.WorkItemReady)
	assert.Equal(t, item.RetryCount, 1)
}

func TestJobRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedJob(t, s, "job-1", "svc", 0)

	job, err := s.GetJob(ctx, "job-1")
	assert.NilError(t, err)
	assert.Equal(t, job.Status, models.JobRunning)

	job.Status = models.JobSuccessful
	job.Progress = 100
	assert.NilError(t, s.UpdateJob(ctx, job))

	updated, err := s.GetJob(ctx, "job-1")
	assert.NilError(t, err)
	assert.Equal(t, updated.Status, models.JobSuccessful)
	assert.Equal(t, updated.Progress, 100)

	_, err = s.GetJob(ctx, "missing")
	assert.Assert(t, harmonyerrors.IsNotFound(err))
}

func TestWorkItemRowRoundTrip(t *testing.T) {
	op := &models.DataOperation{
		RequestID: "job-1",
		Sources:   []models.Source{{Collection: "C1"}},
	}
	item := &models.WorkItem{
		ID:              3,
		JobID:           "job-1",
		ServiceID:       "svc",
		Status:          models.WorkItemSuccessful,
		ScrollID:        "s2",
		Operation:       op,
		Results:         []string{"s3://b/catalog0.json"},
		OutputItemSizes: []int64{123},
		TotalItemsSize:  123,
	}
	row, err := newWorkItemRow(item)
	assert.NilError(t, err)
	restored, err := row.toWorkItem()
	assert.NilError(t, err)
	assert.Equal(t, restored.ID, item.ID)
	assert.Equal(t, restored.ScrollID, "s2")
	assert.Equal(t, restored.Operation.RequestID, "job-1")
	assert.DeepEqual(t, restored.Results, item.Results)
	assert.DeepEqual(t, restored.OutputItemSizes, item.OutputItemSizes)
}
