/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package store persists jobs, workflow steps, and the work-item queue. The
// queue hands out at most one ready item per poll, transitions it to running,
// and stamps it with the polling pod so orphaned leases can be reaped.
package store

import (
	"context"
	"time"

	"github.com/nasa/harmony-core/pkg/models"
)

// Interface is the work-item store contract the planner, the work server,
// and (indirectly) the pull worker rely on.
type Interface interface {
	// CreateJob persists a job together with its workflow steps and initial
	// work items in one transaction. Nothing is written on failure.
	CreateJob(ctx context.Context, job *models.Job, steps []models.WorkflowStep, items []models.WorkItem) error

	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error

	// GetNextWork leases the oldest ready item for the service to podName,
	// marking it running. Returns (nil, nil) when no work is ready.
	GetNextWork(ctx context.Context, serviceID, podName string) (*models.WorkItem, error)

	GetWorkItem(ctx context.Context, id int64) (*models.WorkItem, error)

	// UpdateWorkItem applies a worker's status report. Reporting against an
	// item that already reached a terminal status returns a Conflict error.
	UpdateWorkItem(ctx context.Context, item *models.WorkItem) error

	// ExpireLeases returns running items older than the lease duration to
	// ready, incrementing their retry count. Reports how many were reset.
	ExpireLeases(ctx context.Context, lease time.Duration) (int, error)

	Close() error
}
