/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	harmonyerrors "github.com/nasa/harmony-core/pkg/errors"
	"github.com/nasa/harmony-core/pkg/models"
	"github.com/nasa/harmony-core/pkg/util/jsonutil"
)

// MemoryStore is an in-process Interface used by tests and local runs. It
// mirrors the postgres semantics, including lease stamping and the terminal
// status conflict.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[string]*models.Job
	steps  map[string][]models.WorkflowStep
	items  map[int64]*models.WorkItem
	leases map[int64]memoryLease
}

type memoryLease struct {
	podName  string
	lockedAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		jobs:   map[string]*models.Job{},
		steps:  map[string][]models.WorkflowStep{},
		items:  map[int64]*models.WorkItem{},
		leases: map[int64]memoryLease{},
	}
}

func (m *MemoryStore) CreateJob(_ context.Context, job *models.Job,
	steps []models.WorkflowStep, items []models.WorkItem) error {

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.RequestID]; exists {
		return fmt.Errorf("job %s already exists", job.RequestID)
	}
	stored := *job
	m.jobs[job.RequestID] = &stored
	m.steps[job.RequestID] = append([]models.WorkflowStep{}, steps...)
	for i := range items {
		item := items[i]
		item.ID = m.nextID
		m.nextID++
		m.items[item.ID] = &item
	}
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, jobID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, harmonyerrors.NewNotFound(fmt.Sprintf("job %s does not exist", jobID))
	}
	copied := *job
	return &copied, nil
}

func (m *MemoryStore) UpdateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[job.RequestID]
	if !ok {
		return harmonyerrors.NewNotFound(fmt.Sprintf("job %s does not exist", job.RequestID))
	}
	stored.Status = job.Status
	stored.Message = job.Message
	stored.Progress = job.Progress
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) GetNextWork(_ context.Context, serviceID, podName string) (*models.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ready []*models.WorkItem
	for _, item := range m.items {
		if item.ServiceID == serviceID && item.Status == models.WorkItemReady {
			ready = append(ready, item)
		}
	}
	if len(ready) == 0 {
		return nil, nil
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].ID < ready[j].ID })

	item := ready[0]
	item.Status = models.WorkItemRunning
	item.UpdatedAt = time.Now().UTC()
	m.leases[item.ID] = memoryLease{podName: podName, lockedAt: item.UpdatedAt}
	return copyWorkItem(item)
}

func (m *MemoryStore) GetWorkItem(_ context.Context, id int64) (*models.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, harmonyerrors.NewWorkItemNotFound(id)
	}
	return copyWorkItem(item)
}

func (m *MemoryStore) UpdateWorkItem(_ context.Context, update *models.WorkItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[update.ID]
	if !ok {
		return harmonyerrors.NewWorkItemNotFound(update.ID)
	}
	if item.Status.IsTerminal() {
		return harmonyerrors.NewConflict(
			fmt.Sprintf("work item %d already has terminal status %s", update.ID, item.Status))
	}
	item.Status = update.Status
	item.ScrollID = update.ScrollID
	item.Duration = update.Duration
	item.Results = append([]string{}, update.Results...)
	item.OutputItemSizes = append([]int64{}, update.OutputItemSizes...)
	item.TotalItemsSize = update.TotalItemsSize
	item.Hits = update.Hits
	item.Message = update.Message
	item.MessageCategory = update.MessageCategory
	item.UpdatedAt = time.Now().UTC()
	delete(m.leases, item.ID)
	return nil
}

func (m *MemoryStore) ExpireLeases(_ context.Context, lease time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-lease)
	expired := 0
	for id, item := range m.items {
		if item.Status != models.WorkItemRunning {
			continue
		}
		held, ok := m.leases[id]
		if ok && held.lockedAt.After(cutoff) {
			continue
		}
		item.Status = models.WorkItemReady
		item.RetryCount++
		item.UpdatedAt = time.Now().UTC()
		delete(m.leases, id)
		expired++
	}
	return expired, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// WorkItems returns every stored item, ordered by id. Test helper.
func (m *MemoryStore) WorkItems() []models.WorkItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.WorkItem
	for _, item := range m.items {
		copied, err := copyWorkItem(item)
		if err == nil {
			items = append(items, *copied)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func copyWorkItem(item *models.WorkItem) (*models.WorkItem, error) {
	copied := &models.WorkItem{}
	if err := jsonutil.DeepCopy(item, copied); err != nil {
		return nil, err
	}
	return copied, nil
}
