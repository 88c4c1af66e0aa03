/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package sidecar

import (
	"encoding/json"
	"fmt"
	"net/http"

	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/config"
	"github.com/nasa/harmony-core/pkg/models"
	"github.com/nasa/harmony-core/pkg/util/backoff"
	"github.com/nasa/harmony-core/pkg/util/httpclient"
)

// granValidationCategory short-circuits retries: the request itself is bad
// and the message surfaces directly to the user.
const granValidationCategory = "granValidation"

// queryRequest is the body POSTed to the CMR-query sidecar's local endpoint.
type queryRequest struct {
	OutputDir      string                `json:"outputDir"`
	HarmonyInput   *models.DataOperation `json:"harmonyInput"`
	ScrollID       string                `json:"scrollId"`
	MaxCMRGranules int                   `json:"maxCmrGranules"`
	WorkItemID     int64                 `json:"workItemId"`
}

type queryResponse struct {
	BatchCatalogs   []string `json:"batchCatalogs"`
	TotalItemsSize  float64  `json:"totalItemsSize"`
	OutputItemSizes []int64  `json:"outputItemSizes"`
	ScrollID        string   `json:"scrollID"`
	Hits            int      `json:"hits"`
	Error           string   `json:"error"`
	ErrorLevel      string   `json:"errorLevel"`
	ErrorCategory   string   `json:"errorCategory"`
}

// QueryCMR runs a scroll-bearing work item against the sidecar's local HTTP
// endpoint instead of exec. 500-class responses are replayed like internal
// exec errors; a granValidation error is terminal.
func QueryCMR(client httpclient.Interface, item *models.WorkItem, maxCMRGranules int) *Result {
	url := fmt.Sprintf("http://127.0.0.1:%d/work", config.GetWorkerPort())
	catalogDir := CatalogDir(config.GetArtifactBucket(), item.JobID, item.ID)
	request := &queryRequest{
		OutputDir:      catalogDir,
		HarmonyInput:   item.Operation,
		ScrollID:       item.ScrollID,
		MaxCMRGranules: maxCMRGranules,
		WorkItemID:     item.ID,
	}

	var result *Result
	attempt := func() error {
		rsp, err := client.Post(url, request)
		if err != nil {
			klog.ErrorS(err, "failed to reach the query sidecar", "workItemID", item.ID)
			return err
		}
		response := &queryResponse{}
		if len(rsp.Body) > 0 {
			if err := json.Unmarshal(rsp.Body, response); err != nil {
				return fmt.Errorf("failed to parse query sidecar response: %w", err)
			}
		}
		if rsp.IsSuccess() {
			result = querySuccess(catalogDir, item, response)
			return nil
		}
		if response.ErrorCategory == granValidationCategory {
			result = &Result{
				Status:          models.WorkItemFailed,
				Message:         response.Error,
				MessageCategory: granValidationCategory,
			}
			return nil
		}
		if rsp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("query sidecar returned %d: %s", rsp.StatusCode, response.Error)
		}
		result = &Result{Status: models.WorkItemFailed, Message: queryErrorMessage(item, response)}
		return nil
	}
	if err := backoff.RetryExec(attempt); err != nil {
		return internalErrorResult()
	}
	return result
}

func querySuccess(catalogDir string, item *models.WorkItem, response *queryResponse) *Result {
	catalogs := make([]string, 0, len(response.BatchCatalogs))
	for _, name := range response.BatchCatalogs {
		catalogs = append(catalogs, absoluteCatalogURL(catalogDir, name))
	}
	return &Result{
		Status:          models.WorkItemSuccessful,
		Results:         catalogs,
		OutputItemSizes: response.OutputItemSizes,
		TotalItemsSize:  response.TotalItemsSize,
		ScrollID:        response.ScrollID,
		Hits:            response.Hits,
	}
}

func queryErrorMessage(item *models.WorkItem, response *queryResponse) string {
	if response.Error != "" {
		return fmt.Sprintf("%s: %s", SanitizeServiceName(item.ServiceID), response.Error)
	}
	return fmt.Sprintf("%s: %s", SanitizeServiceName(item.ServiceID), noMessageMessage)
}
