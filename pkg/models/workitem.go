/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package models

import (
	"time"
)

type JobStatus string

const (
	JobRunning    JobStatus = "running"
	JobSuccessful JobStatus = "successful"
	JobFailed     JobStatus = "failed"
	JobWarning    JobStatus = "warning"
)

type WorkItemStatus string

const (
	WorkItemReady      WorkItemStatus = "ready"
	WorkItemRunning    WorkItemStatus = "running"
	WorkItemSuccessful WorkItemStatus = "successful"
	WorkItemFailed     WorkItemStatus = "failed"
	WorkItemWarning    WorkItemStatus = "warning"
)

// IsTerminal reports whether no further transitions are allowed.
func (s WorkItemStatus) IsTerminal() bool {
	return s == WorkItemSuccessful || s == WorkItemFailed || s == WorkItemWarning
}

// JobLink is a link surfaced to the end user on the job record.
type JobLink struct {
	Href  string `json:"href"`
	Title string `json:"title,omitempty"`
	Rel   string `json:"rel,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Job is created once by the planner; only status transitions mutate it.
type Job struct {
	RequestID        string    `json:"requestId"`
	User             string    `json:"username"`
	Status           JobStatus `json:"status"`
	Message          string    `json:"message,omitempty"`
	Request          string    `json:"request,omitempty"`
	IsAsync          bool      `json:"isAsync"`
	NumInputGranules int       `json:"numInputGranules"`
	CollectionIDs    []string  `json:"collectionIds"`
	Links            []JobLink `json:"links,omitempty"`
	Progress         int       `json:"progress"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// WorkflowStep is one position in the service pipeline. Steps reference each
// other by index only; the worker is oblivious to chaining.
type WorkflowStep struct {
	JobID         string `json:"jobID"`
	StepIndex     int    `json:"stepIndex"`
	ServiceID     string `json:"serviceID"`
	Operation     string `json:"operation"`
	WorkItemCount int    `json:"workItemCount"`
	IsSequential  bool   `json:"is_sequential"`
}

// WorkItem is the unit of work executed by a worker pod: one sidecar
// invocation. The store owns the record; a pod holds a lease while
// executing and must report terminal status or let the lease expire.
type WorkItem struct {
	ID        int64          `json:"id"`
	JobID     string         `json:"jobID"`
	ServiceID string         `json:"serviceID"`
	StepIndex int            `json:"stepIndex"`
	Status    WorkItemStatus `json:"status"`
	ScrollID  string         `json:"scrollID,omitempty"`
	// StacCatalogLocation is the input STAC catalog URL produced by the
	// previous step, empty for the first step of a job.
	StacCatalogLocation string         `json:"stacCatalogLocation,omitempty"`
	Operation           *DataOperation `json:"operation,omitempty"`
	RetryCount          int            `json:"retryCount"`
	Duration            float64        `json:"duration,omitempty"`
	SortIndex           int            `json:"sortIndex"`
	Results             []string       `json:"results,omitempty"`
	OutputItemSizes     []int64        `json:"outputItemSizes,omitempty"`
	TotalItemsSize      float64        `json:"totalItemsSize,omitempty"`
	Hits                int            `json:"hits,omitempty"`
	Message             string         `json:"message,omitempty"`
	MessageCategory     string         `json:"message_category,omitempty"`
	UpdatedAt           time.Time      `json:"updatedAt,omitempty"`
	CreatedAt           time.Time      `json:"createdAt,omitempty"`
}

// WorkResponse is the body of a successful work poll.
type WorkResponse struct {
	WorkItem       *WorkItem `json:"workItem"`
	MaxCMRGranules int       `json:"maxCmrGranules,omitempty"`
}
