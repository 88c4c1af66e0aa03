/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/config"
	harmonyerrors "github.com/nasa/harmony-core/pkg/errors"
	"github.com/nasa/harmony-core/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	request_id         TEXT PRIMARY KEY,
	username           TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	message            TEXT NOT NULL DEFAULT '',
	request            TEXT NOT NULL DEFAULT '',
	is_async           BOOLEAN NOT NULL DEFAULT TRUE,
	num_input_granules INTEGER NOT NULL DEFAULT 0,
	collection_ids     TEXT[] NOT NULL DEFAULT '{}',
	links              JSONB,
	progress           INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_steps (
	job_id          TEXT NOT NULL REFERENCES jobs(request_id),
	step_index      INTEGER NOT NULL,
	service_id      TEXT NOT NULL,
	operation       TEXT NOT NULL,
	work_item_count INTEGER NOT NULL DEFAULT 0,
	is_sequential   BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (job_id, step_index)
);

CREATE TABLE IF NOT EXISTS work_items (
	id                BIGSERIAL PRIMARY KEY,
	job_id            TEXT NOT NULL REFERENCES jobs(request_id),
	service_id        TEXT NOT NULL,
	step_index        INTEGER NOT NULL,
	status            TEXT NOT NULL,
	scroll_id         TEXT NOT NULL DEFAULT '',
	stac_catalog_location TEXT NOT NULL DEFAULT '',
	operation         JSONB,
	retry_count       INTEGER NOT NULL DEFAULT 0,
	duration          DOUBLE PRECISION NOT NULL DEFAULT 0,
	sort_index        INTEGER NOT NULL DEFAULT 0,
	results           JSONB,
	output_item_sizes JSONB,
	total_items_size  DOUBLE PRECISION NOT NULL DEFAULT 0,
	hits              INTEGER NOT NULL DEFAULT 0,
	message           TEXT NOT NULL DEFAULT '',
	message_category  TEXT NOT NULL DEFAULT '',
	locked_by         TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS work_items_poll_idx ON work_items (service_id, status, id);
`

const (
	insertJobCmd = `INSERT INTO jobs
		(request_id, username, status, message, request, is_async, num_input_granules,
		 collection_ids, links, progress, created_at, updated_at)
		VALUES (:request_id, :username, :status, :message, :request, :is_async, :num_input_granules,
		 :collection_ids, :links, :progress, :created_at, :updated_at)`

	insertStepCmd = `INSERT INTO workflow_steps
		(job_id, step_index, service_id, operation, work_item_count, is_sequential)
		VALUES (:job_id, :step_index, :service_id, :operation, :work_item_count, :is_sequential)`

	insertWorkItemCmd = `INSERT INTO work_items
		(job_id, service_id, step_index, status, scroll_id, stac_catalog_location, operation,
		 retry_count, duration, sort_index, results, output_item_sizes, total_items_size, hits,
		 message, message_category, created_at, updated_at)
		VALUES (:job_id, :service_id, :step_index, :status, :scroll_id, :stac_catalog_location, :operation,
		 :retry_count, :duration, :sort_index, :results, :output_item_sizes, :total_items_size, :hits,
		 :message, :message_category, :created_at, :updated_at)`

	nextWorkCmd = `SELECT * FROM work_items
		WHERE service_id = $1 AND status = 'ready'
		ORDER BY id
		LIMIT 1
		FOR UPDATE SKIP LOCKED`
)

// PostgresStore is the production Interface implementation.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects using the system database_url and ensures the
// schema exists.
func NewPostgresStore() (*PostgresStore, error) {
	return NewPostgresStoreFromURL(config.GetDatabaseURL())
}

func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("the database url is empty")
	}
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	klog.Infof("connected to work item database")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job,
	steps []models.WorkflowStep, items []models.WorkItem) error {

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				klog.ErrorS(rbErr, "failed to roll back job creation", "jobID", job.RequestID)
			}
		}
	}()

	row, err := newJobRow(job)
	if err != nil {
		return err
	}
	if _, err = tx.NamedExecContext(ctx, insertJobCmd, row); err != nil {
		return err
	}
	for i := range steps {
		if _, err = tx.NamedExecContext(ctx, insertStepCmd, newStepRow(&steps[i])); err != nil {
			return err
		}
	}
	for i := range items {
		var itemRow *workItemRow
		if itemRow, err = newWorkItemRow(&items[i]); err != nil {
			return err
		}
		if _, err = tx.NamedExecContext(ctx, insertWorkItemCmd, itemRow); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	query, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TJobs).Where(sqrl.Eq{"request_id": jobID}).ToSql()
	if err != nil {
		return nil, err
	}
	var row jobRow
	if err := s.db.Unsafe().GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, harmonyerrors.NewNotFound(fmt.Sprintf("job %s does not exist", jobID))
		}
		return nil, err
	}
	return row.toJob()
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *models.Job) error {
	query, args, err := sqrl.Update(TJobs).PlaceholderFormat(sqrl.Dollar).
		Set("status", string(job.Status)).
		Set("message", job.Message).
		Set("progress", job.Progress).
		Set("updated_at", time.Now().UTC()).
		Where(sqrl.Eq{"request_id": job.RequestID}).ToSql()
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return harmonyerrors.NewNotFound(fmt.Sprintf("job %s does not exist", job.RequestID))
	}
	return nil
}

// GetNextWork leases the oldest ready item inside a transaction. SKIP LOCKED
// keeps concurrent pollers from contending on the same row.
func (s *PostgresStore) GetNextWork(ctx context.Context, serviceID, podName string) (*models.WorkItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				klog.ErrorS(rbErr, "failed to roll back work poll", "serviceID", serviceID)
			}
		}
	}()

	var row workItemRow
	if err = tx.Unsafe().GetContext(ctx, &row, nextWorkCmd, serviceID); err != nil {
		if err == sql.ErrNoRows {
			err = tx.Commit()
			return nil, err
		}
		return nil, err
	}

	var query string
	var args []interface{}
	query, args, err = sqrl.Update(TWorkItems).PlaceholderFormat(sqrl.Dollar).
		Set("status", string(models.WorkItemRunning)).
		Set("locked_by", podName).
		Set("updated_at", time.Now().UTC()).
		Where(sqrl.Eq{"id": row.Id}).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	row.Status = string(models.WorkItemRunning)
	row.LockedBy = podName
	return row.toWorkItem()
}

func (s *PostgresStore) GetWorkItem(ctx context.Context, id int64) (*models.WorkItem, error) {
	query, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TWorkItems).Where(sqrl.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var row workItemRow
	if err := s.db.Unsafe().GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, harmonyerrors.NewWorkItemNotFound(id)
		}
		return nil, err
	}
	return row.toWorkItem()
}

// UpdateWorkItem applies a status report. The terminal-status guard is part
// of the UPDATE itself so two concurrent reports for the same item, e.g.
// after a lease expired while the original pod's report was in flight, cannot
// both win.
func (s *PostgresStore) UpdateWorkItem(ctx context.Context, item *models.WorkItem) error {
	row, err := newWorkItemRow(item)
	if err != nil {
		return err
	}
	query, args, err := updateWorkItemQuery(row, item.ID)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		// Zero rows means the item is missing or already settled; one read
		// tells the two apart.
		current, getErr := s.GetWorkItem(ctx, item.ID)
		if getErr != nil {
			return getErr
		}
		return harmonyerrors.NewConflict(
			fmt.Sprintf("work item %d already has terminal status %s", item.ID, current.Status))
	}
	return nil
}

func updateWorkItemQuery(row *workItemRow, id int64) (string, []interface{}, error) {
	return sqrl.Update(TWorkItems).PlaceholderFormat(sqrl.Dollar).
		Set("status", row.Status).
		Set("scroll_id", row.ScrollId).
		Set("duration", row.Duration).
		Set("results", row.Results).
		Set("output_item_sizes", row.OutputItemSizes).
		Set("total_items_size", row.TotalItemsSize).
		Set("hits", row.Hits).
		Set("message", row.Message).
		Set("message_category", row.MessageCategory).
		Set("updated_at", time.Now().UTC()).
		Where(sqrl.Eq{"id": id}).
		Where(sqrl.Eq{"status": []string{
			string(models.WorkItemReady),
			string(models.WorkItemRunning),
		}}).ToSql()
}

func (s *PostgresStore) ExpireLeases(ctx context.Context, lease time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-lease)
	query, args, err := sqrl.Update(TWorkItems).PlaceholderFormat(sqrl.Dollar).
		Set("status", string(models.WorkItemReady)).
		Set("locked_by", "").
		Set("retry_count", sqrl.Expr("retry_count + 1")).
		Set("updated_at", time.Now().UTC()).
		Where(sqrl.Eq{"status": string(models.WorkItemRunning)}).
		Where(sqrl.Lt{"updated_at": cutoff}).ToSql()
	if err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		klog.Warningf("returned %d expired work item leases to ready", n)
	}
	return int(n), nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
