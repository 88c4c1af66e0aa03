/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package sidecar

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nasa/harmony-core/pkg/models"
	"github.com/nasa/harmony-core/pkg/objectstore"
)

const (
	batchCatalogsFile = "batch-catalogs.json"
	errorFile         = "error.json"

	oomMessage       = "Service failed due to running out of memory"
	noMessageMessage = "Service terminated without error message"

	internalErrorMessage  = "Unknown internal server error"
	internalErrorCategory = "Internal server error"
)

var catalogPattern = regexp.MustCompile(`^catalog(\d*)\.json$`)

// Result is the structured outcome of one work item execution, ready to be
// copied onto the work item and reported.
type Result struct {
	Status          models.WorkItemStatus
	Results         []string
	OutputItemSizes []int64
	TotalItemsSize  float64
	ScrollID        string
	Hits            int
	Message         string
	MessageCategory string
}

// errorInfo is the service-authored error.json shape.
type errorInfo struct {
	Error    string `json:"error"`
	Level    string `json:"level,omitempty"`
	Category string `json:"category,omitempty"`
}

// resolveOutputs enumerates the STAC catalogs the service wrote under
// catalogDir. A server-authored batch-catalogs.json wins, in file order;
// otherwise catalog(N).json keys are sorted by N, missing index first.
func resolveOutputs(ctx context.Context, store objectstore.Interface, catalogDir string) ([]string, error) {
	batchURL := objectstore.JoinURL(catalogDir, batchCatalogsFile)
	exists, err := store.ObjectExists(ctx, batchURL)
	if err != nil {
		return nil, err
	}
	if exists {
		data, err := store.GetObject(ctx, batchURL)
		if err != nil {
			return nil, err
		}
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", batchURL, err)
		}
		catalogs := make([]string, 0, len(names))
		for _, name := range names {
			catalogs = append(catalogs, absoluteCatalogURL(catalogDir, name))
		}
		return catalogs, nil
	}

	urls, err := store.ListObjects(ctx, catalogDir)
	if err != nil {
		return nil, err
	}
	type indexed struct {
		url   string
		index int
	}
	var catalogs []indexed
	for _, url := range urls {
		base := url[strings.LastIndex(url, "/")+1:]
		match := catalogPattern.FindStringSubmatch(base)
		if match == nil {
			continue
		}
		index := 0
		if match[1] != "" {
			index, _ = strconv.Atoi(match[1])
		}
		catalogs = append(catalogs, indexed{url: url, index: index})
	}
	sort.SliceStable(catalogs, func(i, j int) bool { return catalogs[i].index < catalogs[j].index })
	result := make([]string, 0, len(catalogs))
	for _, c := range catalogs {
		result = append(result, c.url)
	}
	return result, nil
}

func absoluteCatalogURL(catalogDir, name string) string {
	if strings.HasPrefix(name, "s3://") {
		return name
	}
	return objectstore.JoinURL(catalogDir, name)
}

// resolveError builds the failure (or warning) result for a non-successful
// exit. A service-authored error.json supersedes the exec status; exit code
// 137 is the kernel OOM kill.
func resolveError(ctx context.Context, store objectstore.Interface, catalogDir,
	serviceID string, status *ExecStatus) *Result {

	prefix := SanitizeServiceName(serviceID)
	info := readErrorInfo(ctx, store, catalogDir)
	if info == nil {
		message := noMessageMessage
		if status.ExitCode == 137 {
			message = oomMessage
		} else if status.Message != "" {
			message = status.Message
		}
		info = &errorInfo{Error: message}
	}

	result := &Result{
		Status:          models.WorkItemFailed,
		Message:         fmt.Sprintf("%s: %s", prefix, info.Error),
		MessageCategory: info.Category,
	}
	if strings.EqualFold(info.Level, "warning") {
		result.Status = models.WorkItemWarning
	}
	return result
}

func readErrorInfo(ctx context.Context, store objectstore.Interface, catalogDir string) *errorInfo {
	errorURL := objectstore.JoinURL(catalogDir, errorFile)
	exists, err := store.ObjectExists(ctx, errorURL)
	if err != nil || !exists {
		return nil
	}
	data, err := store.GetObject(ctx, errorURL)
	if err != nil {
		return nil
	}
	info := &errorInfo{}
	if err := json.Unmarshal(data, info); err != nil || info.Error == "" {
		return nil
	}
	return info
}

// SanitizeServiceName strips the registry digest and tag from a service
// image reference, leaving the name users see in error messages.
func SanitizeServiceName(serviceID string) string {
	name := serviceID
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, ":"); i > strings.LastIndex(name, "/") {
		name = name[:i]
	}
	return name
}

// internalErrorResult is returned when the exec API kept failing through
// every replay.
func internalErrorResult() *Result {
	return &Result{
		Status:          models.WorkItemFailed,
		Message:         internalErrorMessage,
		MessageCategory: internalErrorCategory,
	}
}
