/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/nasa/harmony-core/pkg/models"
)

const (
	TJobs          = "jobs"
	TWorkflowSteps = "workflow_steps"
	TWorkItems     = "work_items"
)

// jobRow is the jobs table shape. Collection ids are a text array; links are
// a JSONB blob.
type jobRow struct {
	RequestId        string         `db:"request_id"`
	Username         string         `db:"username"`
	Status           string         `db:"status"`
	Message          string         `db:"message"`
	Request          string         `db:"request"`
	IsAsync          bool           `db:"is_async"`
	NumInputGranules int            `db:"num_input_granules"`
	CollectionIds    pq.StringArray `db:"collection_ids"`
	Links            []byte         `db:"links"`
	Progress         int            `db:"progress"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func newJobRow(job *models.Job) (*jobRow, error) {
	links, err := json.Marshal(job.Links)
	if err != nil {
		return nil, err
	}
	return &jobRow{
		RequestId:        job.RequestID,
		Username:         job.User,
		Status:           string(job.Status),
		Message:          job.Message,
		Request:          job.Request,
		IsAsync:          job.IsAsync,
		NumInputGranules: job.NumInputGranules,
		CollectionIds:    job.CollectionIDs,
		Links:            links,
		Progress:         job.Progress,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}, nil
}

func (r *jobRow) toJob() (*models.Job, error) {
	job := &models.Job{
		RequestID:        r.RequestId,
		User:             r.Username,
		Status:           models.JobStatus(r.Status),
		Message:          r.Message,
		Request:          r.Request,
		IsAsync:          r.IsAsync,
		NumInputGranules: r.NumInputGranules,
		CollectionIDs:    r.CollectionIds,
		Progress:         r.Progress,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if len(r.Links) > 0 {
		if err := json.Unmarshal(r.Links, &job.Links); err != nil {
			return nil, fmt.Errorf("failed to decode links for job %s: %w", r.RequestId, err)
		}
	}
	return job, nil
}

type stepRow struct {
	JobId         string `db:"job_id"`
	StepIndex     int    `db:"step_index"`
	ServiceId     string `db:"service_id"`
	Operation     string `db:"operation"`
	WorkItemCount int    `db:"work_item_count"`
	IsSequential  bool   `db:"is_sequential"`
}

func newStepRow(step *models.WorkflowStep) *stepRow {
	return &stepRow{
		JobId:         step.JobID,
		StepIndex:     step.StepIndex,
		ServiceId:     step.ServiceID,
		Operation:     step.Operation,
		WorkItemCount: step.WorkItemCount,
		IsSequential:  step.IsSequential,
	}
}

// workItemRow is the work_items table shape. The operation and the result
// lists are JSONB blobs; locked_by records the pod holding the lease.
type workItemRow struct {
	Id              int64     `db:"id"`
	JobId           string    `db:"job_id"`
	ServiceId       string    `db:"service_id"`
	StepIndex       int       `db:"step_index"`
	Status          string    `db:"status"`
	ScrollId        string    `db:"scroll_id"`
	StacCatalog     string    `db:"stac_catalog_location"`
	Operation       []byte    `db:"operation"`
	RetryCount      int       `db:"retry_count"`
	Duration        float64   `db:"duration"`
	SortIndex       int       `db:"sort_index"`
	Results         []byte    `db:"results"`
	OutputItemSizes []byte    `db:"output_item_sizes"`
	TotalItemsSize  float64   `db:"total_items_size"`
	Hits            int       `db:"hits"`
	Message         string    `db:"message"`
	MessageCategory string    `db:"message_category"`
	LockedBy        string    `db:"locked_by"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func newWorkItemRow(item *models.WorkItem) (*workItemRow, error) {
	operation, err := json.Marshal(item.Operation)
	if err != nil {
		return nil, err
	}
	results, err := json.Marshal(item.Results)
	if err != nil {
		return nil, err
	}
	sizes, err := json.Marshal(item.OutputItemSizes)
	if err != nil {
		return nil, err
	}
	return &workItemRow{
		Id:              item.ID,
		JobId:           item.JobID,
		ServiceId:       item.ServiceID,
		StepIndex:       item.StepIndex,
		Status:          string(item.Status),
		ScrollId:        item.ScrollID,
		StacCatalog:     item.StacCatalogLocation,
		Operation:       operation,
		RetryCount:      item.RetryCount,
		Duration:        item.Duration,
		SortIndex:       item.SortIndex,
		Results:         results,
		OutputItemSizes: sizes,
		TotalItemsSize:  item.TotalItemsSize,
		Hits:            item.Hits,
		Message:         item.Message,
		MessageCategory: item.MessageCategory,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}, nil
}

func (r *workItemRow) toWorkItem() (*models.WorkItem, error) {
	item := &models.WorkItem{
		ID:                  r.Id,
		JobID:               r.JobId,
		ServiceID:           r.ServiceId,
		StepIndex:           r.StepIndex,
		Status:              models.WorkItemStatus(r.Status),
		ScrollID:            r.ScrollId,
		StacCatalogLocation: r.StacCatalog,
		RetryCount:          r.RetryCount,
		Duration:            r.Duration,
		SortIndex:           r.SortIndex,
		TotalItemsSize:      r.TotalItemsSize,
		Hits:                r.Hits,
		Message:             r.Message,
		MessageCategory:     r.MessageCategory,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if len(r.Operation) > 0 && string(r.Operation) != "null" {
		item.Operation = &models.DataOperation{}
		if err := json.Unmarshal(r.Operation, item.Operation); err != nil {
			return nil, fmt.Errorf("failed to decode operation for work item %d: %w", r.Id, err)
		}
	}
	if len(r.Results) > 0 && string(r.Results) != "null" {
		if err := json.Unmarshal(r.Results, &item.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results for work item %d: %w", r.Id, err)
		}
	}
	if len(r.OutputItemSizes) > 0 && string(r.OutputItemSizes) != "null" {
		if err := json.Unmarshal(r.OutputItemSizes, &item.OutputItemSizes); err != nil {
			return nil, fmt.Errorf("failed to decode output sizes for work item %d: %w", r.Id, err)
		}
	}
	return item, nil
}
