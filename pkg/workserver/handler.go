/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package workserver exposes the work protocol the pull workers speak:
// GET /service/work to lease an item, PUT /service/work/:id to report it.
package workserver

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/klog/v2"

	harmonyerrors "github.com/nasa/harmony-core/pkg/errors"
	"github.com/nasa/harmony-core/pkg/models"
	"github.com/nasa/harmony-core/pkg/store"
	"github.com/nasa/harmony-core/pkg/util/jsonutil"
)

type Handler struct {
	store store.Interface
}

func NewHandler(s store.Interface) *Handler {
	return &Handler{store: s}
}

type handleFunc func(*gin.Context) (interface{}, error)

func handle(c *gin.Context, fn handleFunc) {
	rsp, err := fn(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if rsp == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, rsp)
}

func abortWithError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	if status, ok := err.(apierrors.APIStatus); ok && status.Status().Code > 0 {
		code = int(status.Status().Code)
	}
	c.AbortWithStatusJSON(code, gin.H{
		"code":    harmonyerrors.GetErrorCode(err),
		"message": err.Error(),
	})
}

// GetWork leases the next ready item for the polling pod. No ready work is a
// plain 404 so workers can tell "nothing to do" from a failing server.
func (h *Handler) GetWork(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		serviceID := c.Query("serviceID")
		if serviceID == "" {
			return nil, harmonyerrors.NewBadRequest("serviceID is required")
		}
		podName := c.Query("podName")

		item, err := h.store.GetNextWork(c.Request.Context(), serviceID, podName)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, harmonyerrors.NewNotFound("no work available")
		}
		klog.V(2).Infof("leased work item %d of job %s to %s", item.ID, item.JobID, podName)

		response := &models.WorkResponse{WorkItem: item}
		if item.ScrollID != "" {
			job, err := h.store.GetJob(c.Request.Context(), item.JobID)
			if err != nil {
				return nil, err
			}
			response.MaxCMRGranules = job.NumInputGranules
		}
		return response, nil
	})
}

// UpdateWork applies a worker's status report. A report against an item that
// already reached a terminal status is a 409; the worker logs and moves on.
func (h *Handler) UpdateWork(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return nil, harmonyerrors.NewBadRequest("invalid work item id")
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, harmonyerrors.NewBadRequest(err.Error())
		}
		item := &models.WorkItem{}
		if err := jsonutil.UnmarshalWithCheck(body, item); err != nil {
			return nil, harmonyerrors.NewBadRequest(err.Error())
		}
		item.ID = id

		if err := h.store.UpdateWorkItem(c.Request.Context(), item); err != nil {
			return nil, err
		}
		klog.V(2).Infof("work item %d reported %s", id, item.Status)
		return nil, nil
	})
}
