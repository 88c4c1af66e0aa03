/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package planner

import (
	"fmt"
	"strings"
	"testing"

	"gotest.tools/assert"

	"github.com/nasa/harmony-core/pkg/catalog"
	"github.com/nasa/harmony-core/pkg/models"
)

func intPtr(i int) *int { return &i }

func testService() *catalog.ServiceConfig {
	return &catalog.ServiceConfig{
		Name:        "harmony/netcdf-to-zarr",
		Type:        catalog.TypeTurbo,
		UmmS:        "S1",
		Collections: []catalog.CollectionEntry{{ID: "C1"}},
		Steps: []catalog.ServiceStep{
			{Image: "harmony/query-cmr:latest"},
			{Image: "harmony/netcdf-to-zarr:latest"},
		},
	}
}

func TestGranuleAccountingServiceLimit(t *testing.T) {
	p := NewWithLimits(1000, 2000, 1)
	svc := testService()
	svc.GranuleLimit = intPtr(20)
	op := &models.DataOperation{
		RequestID:  "job-1",
		Sources:    []models.Source{{Collection: "C1"}},
		CMRHits:    100,
		MaxResults: intPtr(50),
	}

	plan, err := p.Plan(op, svc)
	assert.NilError(t, err)
	assert.Equal(t, plan.Job.NumInputGranules, 20)
	assert.Equal(t, plan.Job.Message,
		"CMR query identified 100 granules, but the request has been limited to process only the first 20 granules because the service harmony/netcdf-to-zarr is limited to 20.")
}

func TestGranuleAccountingMaxResults(t *testing.T) {
	p := NewWithLimits(1000, 2000, 1)
	op := &models.DataOperation{
		RequestID:  "job-2",
		Sources:    []models.Source{{Collection: "C1"}},
		CMRHits:    100,
		MaxResults: intPtr(50),
	}

	plan, err := p.Plan(op, testService())
	assert.NilError(t, err)
	assert.Equal(t, plan.Job.NumInputGranules, 50)
	assert.Equal(t, plan.Job.Message,
		"CMR query identified 100 granules, but the request has been limited to process only the first 50 granules because you requested 50 maxResults.")
}

func TestGranuleAccountingCollectionLimit(t *testing.T) {
	p := NewWithLimits(1000, 2000, 1)
	svc := testService()
	svc.Collections[0].GranuleLimit = intPtr(10)
	op := &models.DataOperation{
		RequestID: "job-3",
		Sources:   []models.Source{{Collection: "C1"}},
		CMRHits:   100,
	}

	plan, err := p.Plan(op, svc)
	assert.NilError(t, err)
	assert.Equal(t, plan.Job.NumInputGranules, 10)
	assert.Equal(t, plan.Job.Message,
		"CMR query identified 100 granules, but the request has been limited to process only the first 10 granules because collection C1 is limited to 10 for the harmony/netcdf-to-zarr service.")
}

func TestGranuleAccountingSystemLimit(t *testing.T) {
	p := NewWithLimits(30, 2000, 1)
	op := &models.DataOperation{
		RequestID: "job-4",
		Sources:   []models.Source{{Collection: "C1"}},
		CMRHits:   100,
	}

	plan, err := p.Plan(op, testService())
	assert.NilError(t, err)
	assert.Equal(t, plan.Job.NumInputGranules, 30)
	assert.Equal(t, plan.Job.Message,
		"CMR query identified 100 granules, but the request has been limited to process only the first 30 granules because of system constraints.")
}

func TestNoMessageWhenUnbounded(t *testing.T) {
	p := NewWithLimits(1000, 2000, 1)
	op := &models.DataOperation{
		RequestID: "job-5",
		Sources:   []models.Source{{Collection: "C1"}},
		CMRHits:   7,
	}

	plan, err := p.Plan(op, testService())
	assert.NilError(t, err)
	assert.Equal(t, plan.Job.NumInputGranules, 7)
	assert.Equal(t, plan.Job.Message, "")
}

func TestSynchronousDecision(t *testing.T) {
	p := NewWithLimits(1000, 2000, 1)
	op := &models.DataOperation{
		RequestID: "job-6",
		Sources:   []models.Source{{Collection: "C1"}},
		CMRHits:   1,
	}
	plan, err := p.Plan(op, testService())
	assert.NilError(t, err)
	assert.Assert(t, !plan.Job.IsAsync)

	op.CMRHits = 5
	op.RequestID = "job-7"
	plan, err = p.Plan(op, testService())
	assert.NilError(t, err)
	assert.Assert(t, plan.Job.IsAsync)

	op.RequireSynchronous = true
	op.RequestID = "job-8"
	plan, err = p.Plan(op, testService())
	assert.NilError(t, err)
	assert.Assert(t, !plan.Job.IsAsync)
}

func TestStepsSerializedAtCurrentSchemaVersion(t *testing.T) {
	p := NewWithLimits(1000, 2000, 1)
	op := &models.DataOperation{
		RequestID: "job-9",
		Sources:   []models.Source{{Collection: "C1"}},
		CMRHits:   3,
	}

	plan, err := p.Plan(op, testService())
	assert.NilError(t, err)
	assert.Equal(t, len(plan.Steps), 2)
	for _, step := range plan.Steps {
		assert.Equal(t, step.JobID, "job-9")
		assert.Assert(t, len(step.Operation) > 0)
	}
	expected := fmt.Sprintf("%q:%q", "version", models.CurrentSchemaVersion)
	assert.Assert(t, strings.Contains(plan.Steps[0].Operation, expected))
}

func TestInitialWorkItemCarriesScrollID(t *testing.T) {
	p := NewWithLimits(1000, 2000, 1)
	op := &models.DataOperation{
		RequestID: "job-10",
		Sources:   []models.Source{{Collection: "C1"}},
		CMRHits:   3,
	}

	plan, err := p.Plan(op, testService())
	assert.NilError(t, err)
	assert.Equal(t, len(plan.InitialWorkItems), 1)
	item := plan.InitialWorkItems[0]
	assert.Assert(t, item.ScrollID != "")
	assert.Equal(t, item.ServiceID, "harmony/query-cmr:latest")
	assert.Equal(t, item.Status, models.WorkItemReady)
	assert.Equal(t, plan.Steps[0].WorkItemCount, 1)
}

func granulesOf(n int, prefix string) []models.Granule {
	granules := make([]models.Granule, 0, n)
	for i := 0; i < n; i++ {
		granules = append(granules, models.Granule{ID: fmt.Sprintf("%s-%d", prefix, i)})
	}
	return granules
}

func TestBatchOperations(t *testing.T) {
	op := &models.DataOperation{
		RequestID: "job-11",
		Sources: []models.Source{
			{Collection: "C1", Granules: granulesOf(5, "a")},
			{Collection: "C2", Granules: granulesOf(2, "b")},
		},
	}

	batches, err := BatchOperations(op, 2)
	assert.NilError(t, err)
	// C1 splits into 3 batches, C2 fits in 1.
	assert.Equal(t, len(batches), 4)

	var collected []string
	for _, batch := range batches {
		assert.Equal(t, len(batch.Sources), 1)
		assert.Assert(t, len(batch.Sources[0].Granules) <= 2)
		for _, g := range batch.Sources[0].Granules {
			collected = append(collected, g.ID)
		}
	}
	assert.Equal(t, len(collected), 7)
	assert.Equal(t, collected[0], "a-0")
	assert.Equal(t, collected[4], "a-4")
	assert.Equal(t, collected[5], "b-0")
	assert.Equal(t, collected[6], "b-1")
}

func TestBatchOperationsZeroMeansNoBatching(t *testing.T) {
	op := &models.DataOperation{
		RequestID: "job-12",
		Sources:   []models.Source{{Collection: "C1", Granules: granulesOf(5, "a")}},
	}
	batches, err := BatchOperations(op, 0)
	assert.NilError(t, err)
	assert.Equal(t, len(batches), 1)
	assert.Equal(t, batches[0], op)
}

func TestBatchSize(t *testing.T) {
	p := NewWithLimits(1000, 2000, 1)
	svc := testService()
	assert.Equal(t, p.BatchSize(svc, nil), 1000)

	svc.BatchSize = intPtr(100)
	assert.Equal(t, p.BatchSize(svc, nil), 100)
	assert.Equal(t, p.BatchSize(svc, intPtr(10)), 10)

	svc.BatchSize = intPtr(0)
	assert.Equal(t, p.BatchSize(svc, intPtr(10)), 0)
}
