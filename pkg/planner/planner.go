/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package planner expands a chosen service config and a data operation into
// a job record, its workflow steps, and the initial work items that drive
// the first step.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/catalog"
	"github.com/nasa/harmony-core/pkg/config"
	harmonyerrors "github.com/nasa/harmony-core/pkg/errors"
	"github.com/nasa/harmony-core/pkg/models"
	"github.com/nasa/harmony-core/pkg/store"
	"github.com/nasa/harmony-core/pkg/util/jsonutil"
)

// Plan is the expansion of one request: everything the store persists in a
// single transaction.
type Plan struct {
	Job              *models.Job
	Steps            []models.WorkflowStep
	InitialWorkItems []models.WorkItem
}

// Planner holds the system-wide caps applied to every plan.
type Planner struct {
	systemLimit            int
	defaultBatchSize       int
	maxSynchronousGranules int
}

// New builds a planner from the system config.
func New() *Planner {
	return &Planner{
		systemLimit:            config.GetMaxGranuleLimit(),
		defaultBatchSize:       config.GetDefaultBatchSize(),
		maxSynchronousGranules: config.GetMaxSynchronousGranules(),
	}
}

// NewWithLimits is the constructor used by tests.
func NewWithLimits(systemLimit, defaultBatchSize, maxSynchronousGranules int) *Planner {
	return &Planner{
		systemLimit:            systemLimit,
		defaultBatchSize:       defaultBatchSize,
		maxSynchronousGranules: maxSynchronousGranules,
	}
}

// Plan derives the job, workflow steps, and initial work items for the
// operation. The operation is not mutated; the serialized copies carry the
// derived granule count and synchronousness.
func (p *Planner) Plan(op *models.DataOperation, svc *catalog.ServiceConfig) (*Plan, error) {
	planOp, err := op.Clone()
	if err != nil {
		return nil, harmonyerrors.NewServerError(err.Error())
	}
	planOp.Version = models.CurrentSchemaVersion

	granules, message := p.granuleCount(planOp, svc)
	synchronous := p.isSynchronous(planOp, svc, granules)
	planOp.IsSynchronous = &synchronous

	now := time.Now().UTC()
	job := &models.Job{
		RequestID:        planOp.RequestID,
		User:             planOp.User,
		Status:           models.JobRunning,
		Message:          message,
		IsAsync:          !synchronous,
		NumInputGranules: granules,
		CollectionIDs:    planOp.CollectionIDs(),
		Progress:         0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	batchSize := p.BatchSize(svc, planOp.MaxResults)
	steps, err := p.buildSteps(planOp, svc, granules, batchSize)
	if err != nil {
		return nil, err
	}
	items, err := p.buildInitialWorkItems(planOp, svc, steps, batchSize, now)
	if err != nil {
		return nil, err
	}
	if len(steps) > 0 {
		steps[0].WorkItemCount = len(items)
	}

	return &Plan{Job: job, Steps: steps, InitialWorkItems: items}, nil
}

// Persist writes the plan atomically.
func Persist(ctx context.Context, s store.Interface, plan *Plan) error {
	if err := s.CreateJob(ctx, plan.Job, plan.Steps, plan.InitialWorkItems); err != nil {
		klog.ErrorS(err, "failed to persist plan", "jobID", plan.Job.RequestID)
		return harmonyerrors.NewServerError("Failed to save job to database.")
	}
	return nil
}

// granuleCount applies every granule cap and returns the bound count plus
// the user-facing message naming whichever cap bound, empty when none did.
func (p *Planner) granuleCount(op *models.DataOperation, svc *catalog.ServiceConfig) (int, string) {
	count := op.CMRHits
	limit := p.systemLimit
	reason := "because of system constraints."

	// Checked tightest-message-first so ties name the most specific cap.
	if op.MaxResults != nil && *op.MaxResults < limit {
		limit = *op.MaxResults
		reason = fmt.Sprintf("because you requested %d maxResults.", limit)
	}
	for _, source := range op.Sources {
		entry := svc.CollectionEntryFor(source.Collection)
		if entry != nil && entry.GranuleLimit != nil && *entry.GranuleLimit < limit {
			limit = *entry.GranuleLimit
			reason = fmt.Sprintf("because collection %s is limited to %d for the %s service.",
				source.Collection, limit, svc.Name)
		}
	}
	if svc.GranuleLimit != nil && *svc.GranuleLimit < limit {
		limit = *svc.GranuleLimit
		reason = fmt.Sprintf("because the service %s is limited to %d.", svc.Name, limit)
	}

	if count <= limit {
		return count, ""
	}
	message := fmt.Sprintf(
		"CMR query identified %d granules, but the request has been limited to process only the first %d granules %s",
		count, limit, reason)
	return limit, message
}

// isSynchronous decides whether the caller blocks on the job.
func (p *Planner) isSynchronous(op *models.DataOperation, svc *catalog.ServiceConfig, granules int) bool {
	if op.RequireSynchronous {
		return true
	}
	if op.IsSynchronous != nil {
		return *op.IsSynchronous
	}
	maxSync := p.maxSynchronousGranules
	if svc.MaximumSyncGranules != nil {
		maxSync = *svc.MaximumSyncGranules
	}
	return granules <= maxSync
}

// BatchSize computes the per-work-item granule cap for the service. Zero
// means no batching.
func (p *Planner) BatchSize(svc *catalog.ServiceConfig, maxResults *int) int {
	size := p.defaultBatchSize
	if svc.BatchSize != nil {
		size = *svc.BatchSize
	}
	if size == 0 {
		return 0
	}
	if maxResults != nil && *maxResults < size {
		size = *maxResults
	}
	if p.systemLimit < size {
		size = p.systemLimit
	}
	return size
}

// buildSteps serializes the operation into one workflow step per service
// step. Sequential steps process one item at a time; the others get a count
// derived from the granule total.
func (p *Planner) buildSteps(op *models.DataOperation, svc *catalog.ServiceConfig,
	granules, batchSize int) ([]models.WorkflowStep, error) {

	serialized := jsonutil.MarshalSilently(op)
	if serialized == nil {
		return nil, harmonyerrors.NewServerError("failed to serialize the data operation")
	}
	steps := make([]models.WorkflowStep, 0, len(svc.Steps))
	for i, svcStep := range svc.Steps {
		count := 1
		if !svcStep.IsSequential && batchSize > 0 {
			count = (granules + batchSize - 1) / batchSize
		}
		steps = append(steps, models.WorkflowStep{
			JobID:         op.RequestID,
			StepIndex:     i,
			ServiceID:     svcStep.Image,
			Operation:     string(serialized),
			WorkItemCount: count,
			IsSequential:  svcStep.IsSequential,
		})
	}
	return steps, nil
}

// buildInitialWorkItems creates the items that drive the first step. An
// operation with inline granules is batched directly; otherwise a single
// CMR-query item carrying a fresh scroll session drives granule discovery.
func (p *Planner) buildInitialWorkItems(op *models.DataOperation, svc *catalog.ServiceConfig,
	steps []models.WorkflowStep, batchSize int, now time.Time) ([]models.WorkItem, error) {

	if len(steps) == 0 {
		return nil, nil
	}
	first := steps[0]

	if op.GranuleCount() == 0 {
		item := models.WorkItem{
			JobID:     op.RequestID,
			ServiceID: first.ServiceID,
			StepIndex: first.StepIndex,
			Status:    models.WorkItemReady,
			ScrollID:  uuid.NewString(),
			Operation: op,
			SortIndex: 0,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return []models.WorkItem{item}, nil
	}

	batches, err := BatchOperations(op, batchSize)
	if err != nil {
		return nil, err
	}
	items := make([]models.WorkItem, 0, len(batches))
	for i, batch := range batches {
		items = append(items, models.WorkItem{
			JobID:     op.RequestID,
			ServiceID: first.ServiceID,
			StepIndex: first.StepIndex,
			Status:    models.WorkItemReady,
			Operation: batch,
			SortIndex: i,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return items, nil
}
