/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package sidecar

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"gotest.tools/assert"
	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/config"
	"github.com/nasa/harmony-core/pkg/logstream"
	"github.com/nasa/harmony-core/pkg/models"
	"github.com/nasa/harmony-core/pkg/objectstore"
	"github.com/nasa/harmony-core/pkg/util/httpclient"
)

// fakeExecutor returns a fixed status after optionally writing some output,
// or blocks until the context expires when status is nil.
type fakeExecutor struct {
	status  *ExecStatus
	output  string
	command []string
}

func (f *fakeExecutor) Exec(ctx context.Context, command []string, stdout io.Writer) *ExecStatus {
	f.command = command
	if f.status == nil {
		<-ctx.Done()
		return &ExecStatus{ExitCode: -1, Message: ctx.Err().Error()}
	}
	if f.output != "" {
		_, _ = stdout.Write([]byte(f.output))
	}
	return f.status
}

func testWorkItem() *models.WorkItem {
	return &models.WorkItem{
		ID:        7,
		JobID:     "job-1",
		ServiceID: "ghcr.io/nasa/harmony-gdal:latest",
		Status:    models.WorkItemRunning,
		Operation: &models.DataOperation{
			Sources:   []models.Source{{Collection: "C1-PROV"}},
			RequestID: "req-1",
		},
	}
}

func TestSplitInvocationArgs(t *testing.T) {
	assert.DeepEqual(t, splitInvocationArgs("python -m service"),
		[]string{"python", "-m", "service"})
	assert.DeepEqual(t, splitInvocationArgs("python\n-m\nservice\n"),
		[]string{"python", "-m", "service"})
	assert.DeepEqual(t, splitInvocationArgs("  python   run  "),
		[]string{"python", "run"})
}

func TestBuildCommand(t *testing.T) {
	config.SetValue("invocation_args", "python -m harmony_service")
	defer config.SetValue("invocation_args", "")

	item := testWorkItem()
	item.StacCatalogLocation = "s3://artifacts/job-1/3/outputs/catalog0.json"
	r := NewRunner(&fakeExecutor{}, objectstore.NewMemoryStore())
	command, err := r.buildCommand(item, "s3://artifacts/job-1/7/outputs/")
	assert.NilError(t, err)

	assert.DeepEqual(t, command[:5],
		[]string{"python", "-m", "harmony_service", "--harmony-action", "invoke"})
	assert.Equal(t, command[5], "--harmony-input")
	assert.Assert(t, strings.Contains(command[6], `"collection":"C1-PROV"`))
	assert.DeepEqual(t, command[7:], []string{
		"--harmony-sources", "s3://artifacts/job-1/3/outputs/catalog0.json",
		"--harmony-metadata-dir", "s3://artifacts/job-1/7/outputs/",
	})
}

func TestBuildCommandLargeOperationUsesFile(t *testing.T) {
	config.SetValue("invocation_args", "python -m harmony_service")
	defer config.SetValue("invocation_args", "")

	item := testWorkItem()
	item.Operation.StagingLocation = strings.Repeat("x", maxInlineOperationBytes+1)
	r := NewRunner(&fakeExecutor{}, objectstore.NewMemoryStore())
	command, err := r.buildCommand(item, "s3://artifacts/job-1/7/outputs/")
	assert.NilError(t, err)
	defer os.Remove(operationFile)

	assert.Equal(t, command[5], "--harmony-input-file")
	assert.Equal(t, command[6], operationFile)
	data, err := os.ReadFile(operationFile)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(data), `"collection":"C1-PROV"`))
}

func TestNormalizeShape(t *testing.T) {
	op := &models.DataOperation{
		Sources: []models.Source{{Collection: "C1-PROV"}},
		GeoJSON: `{"type":"FeatureCollection","features":[]}`,
	}
	normalized, err := normalizeShape(op)
	assert.NilError(t, err)
	defer os.Remove(shapeFile)

	assert.Equal(t, normalized.GeoJSON, "")
	assert.Equal(t, normalized.Shape.Href, "file:///tmp/shapefile.json")
	assert.Equal(t, normalized.Shape.Type, "application/geo+json")
	data, err := os.ReadFile(shapeFile)
	assert.NilError(t, err)
	assert.Equal(t, string(data), `{"type":"FeatureCollection","features":[]}`)

	// The caller's operation keeps its inline shape.
	assert.Assert(t, op.GeoJSON != "")
	assert.Assert(t, op.Shape == nil)
}

func TestSanitizeServiceName(t *testing.T) {
	assert.Equal(t, SanitizeServiceName("ghcr.io/nasa/harmony-gdal:latest"),
		"ghcr.io/nasa/harmony-gdal")
	assert.Equal(t, SanitizeServiceName("ghcr.io/nasa/harmony-gdal@sha256:abcd"),
		"ghcr.io/nasa/harmony-gdal")
	assert.Equal(t, SanitizeServiceName("localhost:5000/gdal:1.2"), "localhost:5000/gdal")
	assert.Equal(t, SanitizeServiceName("harmony-gdal"), "harmony-gdal")
}

func TestResolveOutputsBatchCatalogs(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()
	dir := "s3://artifacts/job-1/7/outputs/"
	batch := `["catalog2.json", "catalog0.json", "s3://elsewhere/catalog.json"]`
	assert.NilError(t, store.PutObject(ctx, dir+batchCatalogsFile, []byte(batch)))
	assert.NilError(t, store.PutObject(ctx, dir+"catalog0.json", []byte("{}")))

	catalogs, err := resolveOutputs(ctx, store, dir)
	assert.NilError(t, err)
	assert.DeepEqual(t, catalogs, []string{
		"s3://artifacts/job-1/7/outputs/catalog2.json",
		"s3://artifacts/job-1/7/outputs/catalog0.json",
		"s3://elsewhere/catalog.json",
	})
}

func TestResolveOutputsSortsByIndex(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()
	dir := "s3://artifacts/job-1/7/outputs/"
	for _, name := range []string{"catalog10.json", "catalog2.json", "catalog.json", "item0.json"} {
		assert.NilError(t, store.PutObject(ctx, dir+name, []byte("{}")))
	}

	catalogs, err := resolveOutputs(ctx, store, dir)
	assert.NilError(t, err)
	assert.DeepEqual(t, catalogs, []string{
		dir + "catalog.json",
		dir + "catalog2.json",
		dir + "catalog10.json",
	})
}

func TestResolveErrorFromErrorFile(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()
	dir := "s3://artifacts/job-1/7/outputs/"
	info := `{"error": "no data found in the requested range", "level": "Warning", "category": "no-data"}`
	assert.NilError(t, store.PutObject(ctx, dir+errorFile, []byte(info)))

	result := resolveError(ctx, store, dir, "ghcr.io/nasa/harmony-gdal:latest",
		&ExecStatus{ExitCode: 1, Message: "command terminated with exit code 1"})
	assert.Equal(t, result.Status, models.WorkItemWarning)
	assert.Equal(t, result.Message,
		"ghcr.io/nasa/harmony-gdal: no data found in the requested range")
	assert.Equal(t, result.MessageCategory, "no-data")
}

func TestResolveErrorExitCodes(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()
	dir := "s3://artifacts/job-1/7/outputs/"

	result := resolveError(ctx, store, dir, "gdal", &ExecStatus{ExitCode: 137})
	assert.Equal(t, result.Status, models.WorkItemFailed)
	assert.Equal(t, result.Message, "gdal: "+oomMessage)

	result = resolveError(ctx, store, dir, "gdal", &ExecStatus{ExitCode: 1})
	assert.Equal(t, result.Message, "gdal: "+noMessageMessage)

	result = resolveError(ctx, store, dir, "gdal",
		&ExecStatus{ExitCode: 1, Message: "command terminated with exit code 1"})
	assert.Equal(t, result.Message, "gdal: command terminated with exit code 1")
}

func TestRunnerRun(t *testing.T) {
	config.SetValue("artifact_bucket", "artifacts")
	config.SetValue("invocation_args", "python -m harmony_service")
	defer func() {
		config.SetValue("artifact_bucket", "")
		config.SetValue("invocation_args", "")
	}()

	store := objectstore.NewMemoryStore()
	ctx := context.Background()
	item := testWorkItem()
	dir := CatalogDir("artifacts", item.JobID, item.ID)
	assert.NilError(t, store.PutObject(ctx, dir+"catalog0.json", []byte("{}")))

	executor := &fakeExecutor{status: &ExecStatus{Success: true}, output: "processing granule 1\n"}
	stream := logstream.NewStream(klog.Background(), item.ID, 0)
	result := NewRunner(executor, store).Run(ctx, item, stream)

	assert.Equal(t, result.Status, models.WorkItemSuccessful)
	assert.DeepEqual(t, result.Results, []string{dir + "catalog0.json"})
	assert.Equal(t, executor.command[len(executor.command)-1], dir)
	// The header entry plus the streamed line.
	assert.Equal(t, len(stream.Entries()), 2)
}

func TestRunnerRunTimeout(t *testing.T) {
	config.SetValue("artifact_bucket", "artifacts")
	config.SetValue("invocation_args", "run")
	defer func() {
		config.SetValue("artifact_bucket", "")
		config.SetValue("invocation_args", "")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	item := testWorkItem()
	stream := logstream.NewStream(klog.Background(), item.ID, 0)
	result := NewRunner(&fakeExecutor{}, objectstore.NewMemoryStore()).Run(ctx, item, stream)

	assert.Equal(t, result.Status, models.WorkItemFailed)
	assert.Assert(t, strings.HasPrefix(result.Message, "Worker timed out after"))
}

func withQuerySidecar(t *testing.T, handler http.HandlerFunc) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	port := server.Listener.Addr().(*net.TCPAddr).Port
	config.SetValue("worker_port", port)
	t.Cleanup(func() { config.SetValue("worker_port", 5000) })
	config.SetValue("artifact_bucket", "artifacts")
	t.Cleanup(func() { config.SetValue("artifact_bucket", "") })
}

func TestQueryCMR(t *testing.T) {
	var request queryRequest
	withQuerySidecar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NilError(t, json.NewDecoder(r.Body).Decode(&request))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"batchCatalogs":   []string{"catalog0.json", "catalog1.json"},
			"totalItemsSize":  1.5,
			"outputItemSizes": []int64{512, 1024},
			"scrollID":        "s2",
			"hits":            20,
		})
	})

	item := testWorkItem()
	item.ScrollID = "s1"
	result := QueryCMR(httpclient.Instance(), item, 20)

	assert.Equal(t, request.ScrollID, "s1")
	assert.Equal(t, request.MaxCMRGranules, 20)
	assert.Equal(t, request.WorkItemID, item.ID)
	assert.Equal(t, request.OutputDir, "s3://artifacts/job-1/7/outputs/")

	assert.Equal(t, result.Status, models.WorkItemSuccessful)
	assert.DeepEqual(t, result.Results, []string{
		"s3://artifacts/job-1/7/outputs/catalog0.json",
		"s3://artifacts/job-1/7/outputs/catalog1.json",
	})
	assert.Equal(t, result.ScrollID, "s2")
	assert.Equal(t, result.Hits, 20)
	assert.Equal(t, result.TotalItemsSize, 1.5)
	assert.DeepEqual(t, result.OutputItemSizes, []int64{512, 1024})
}

func TestQueryCMRGranValidation(t *testing.T) {
	withQuerySidecar(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":         "granule G1 is not accessible",
			"errorCategory": "granValidation",
		})
	})

	result := QueryCMR(httpclient.Instance(), testWorkItem(), 20)
	assert.Equal(t, result.Status, models.WorkItemFailed)
	// Validation messages surface to the user verbatim.
	assert.Equal(t, result.Message, "granule G1 is not accessible")
	assert.Equal(t, result.MessageCategory, granValidationCategory)
}

func TestQueryCMRClientError(t *testing.T) {
	withQuerySidecar(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "malformed query"})
	})

	result := QueryCMR(httpclient.Instance(), testWorkItem(), 20)
	assert.Equal(t, result.Status, models.WorkItemFailed)
	assert.Equal(t, result.Message, "ghcr.io/nasa/harmony-gdal: malformed query")
}
