/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package sidecar

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/config"
	"github.com/nasa/harmony-core/pkg/logstream"
	"github.com/nasa/harmony-core/pkg/models"
	"github.com/nasa/harmony-core/pkg/objectstore"
	"github.com/nasa/harmony-core/pkg/util/backoff"
	"github.com/nasa/harmony-core/pkg/util/jsonutil"
)

const (
	// Operations larger than this are passed by file; the exec argument list
	// has a hard size ceiling.
	maxInlineOperationBytes = 100000

	// Both containers of a service pod share /tmp.
	operationFile = "/tmp/operation.json"
	shapeFile     = "/tmp/shapefile.json"
)

// Runner drives the generic sidecar path: build the command line, exec into
// the worker container, resolve outputs or errors.
type Runner struct {
	executor Executor
	store    objectstore.Interface
}

func NewRunner(executor Executor, store objectstore.Interface) *Runner {
	return &Runner{executor: executor, store: store}
}

// CatalogDir is the output STAC directory for one work item.
func CatalogDir(artifactBucket, jobID string, workItemID int64) string {
	return fmt.Sprintf("s3://%s/%s/%d/outputs/", artifactBucket, jobID, workItemID)
}

// Run executes the work item once (plus internal-error replays) and returns
// the structured result. The context carries the worker timeout.
func (r *Runner) Run(ctx context.Context, item *models.WorkItem, stream *logstream.Stream) *Result {
	catalogDir := CatalogDir(config.GetArtifactBucket(), item.JobID, item.ID)

	command, err := r.buildCommand(item, catalogDir)
	if err != nil {
		klog.ErrorS(err, "failed to build sidecar command", "workItemID", item.ID)
		return &Result{Status: models.WorkItemFailed, Message: err.Error()}
	}
	klog.V(3).Infof("invoking sidecar for work item %d", item.ID)

	// The exec callback delivers its status over a channel so the loop can
	// observe the worker timeout while the stream is still open.
	var status *ExecStatus
	attempt := func() error {
		statusCh := make(chan *ExecStatus, 1)
		go func() {
			statusCh <- r.executor.Exec(ctx, command, stream)
		}()
		select {
		case status = <-statusCh:
		case <-ctx.Done():
			status = &ExecStatus{ExitCode: -1, Message: ctx.Err().Error()}
			return nil
		}
		if status.Internal {
			klog.Warningf("sidecar exec hit an internal kubernetes error for work item %d: %s",
				item.ID, status.Message)
			return fmt.Errorf("internal exec error: %s", status.Message)
		}
		return nil
	}
	if err := backoff.RetryExec(attempt); err != nil {
		return internalErrorResult()
	}

	if ctx.Err() != nil {
		return &Result{
			Status:  models.WorkItemFailed,
			Message: fmt.Sprintf("Worker timed out after %ds seconds", config.GetWorkerTimeoutSecond()),
		}
	}
	if !status.Success {
		return resolveError(ctx, r.store, catalogDir, item.ServiceID, status)
	}

	catalogs, err := resolveOutputs(ctx, r.store, catalogDir)
	if err != nil {
		klog.ErrorS(err, "failed to resolve sidecar outputs", "workItemID", item.ID)
		return &Result{Status: models.WorkItemFailed, Message: err.Error()}
	}
	return &Result{Status: models.WorkItemSuccessful, Results: catalogs}
}

// Prime pushes one synthetic invocation through the exec path before the
// worker starts polling. The first exec against a freshly started pod can
// fail inside the client machinery; a service-level error is fine here, only
// an internal exec failure means the pod is not usable yet.
func (r *Runner) Prime(ctx context.Context) error {
	item := &models.WorkItem{
		JobID:     "primer",
		Operation: &models.DataOperation{RequestID: "primer"},
	}
	command, err := r.buildCommand(item, CatalogDir(config.GetArtifactBucket(), item.JobID, item.ID))
	if err != nil {
		return err
	}
	status := r.executor.Exec(ctx, command, io.Discard)
	if status.Internal {
		return fmt.Errorf("prime invocation failed: %s", status.Message)
	}
	return nil
}

// buildCommand assembles the sidecar argument list for the item.
func (r *Runner) buildCommand(item *models.WorkItem, catalogDir string) ([]string, error) {
	command := splitInvocationArgs(config.GetInvocationArgs())
	command = append(command, "--harmony-action", "invoke")

	op, err := normalizeShape(item.Operation)
	if err != nil {
		return nil, err
	}
	serialized := jsonutil.MarshalSilently(op)
	if serialized == nil {
		return nil, fmt.Errorf("failed to serialize the operation of work item %d", item.ID)
	}
	if len(serialized) > maxInlineOperationBytes {
		if err := os.WriteFile(operationFile, serialized, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", operationFile, err)
		}
		command = append(command, "--harmony-input-file", operationFile)
	} else {
		command = append(command, "--harmony-input", string(serialized))
	}

	if item.StacCatalogLocation != "" {
		command = append(command, "--harmony-sources", item.StacCatalogLocation)
	}
	command = append(command, "--harmony-metadata-dir", catalogDir)
	return command, nil
}

// splitInvocationArgs splits the configured arguments on newline, falling
// back to spaces for single-line values.
func splitInvocationArgs(invocationArgs string) []string {
	var parts []string
	if strings.Contains(invocationArgs, "\n") {
		parts = strings.Split(invocationArgs, "\n")
	} else {
		parts = strings.Split(invocationArgs, " ")
	}
	var args []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			args = append(args, part)
		}
	}
	return args
}

// normalizeShape spills inline GeoJSON to the shared /tmp so the sidecar
// reads a file reference instead of megabytes of argument.
func normalizeShape(op *models.DataOperation) (*models.DataOperation, error) {
	if op == nil {
		return nil, fmt.Errorf("the work item carries no operation")
	}
	if op.GeoJSON == "" {
		return op, nil
	}
	normalized, err := op.Clone()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(shapeFile, []byte(normalized.GeoJSON), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", shapeFile, err)
	}
	normalized.Shape = &models.ShapeFileRef{
		Href: "file://" + shapeFile,
		Type: "application/geo+json",
	}
	normalized.GeoJSON = ""
	return normalized, nil
}
