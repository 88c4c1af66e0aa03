/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"fmt"
	"net/http"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const HarmonyPrefix = "Harmony."

/*
   5-digit error code convention: [xx][yyy]
   [xx] subsystem (00-99)
   00: general errors
   01: service selection
   02: work planning
   03: work items / pull worker
   [yyy] error number within the subsystem
*/

// general: 00xxx
const (
	InternalError = HarmonyPrefix + "00001"
	BadRequest    = HarmonyPrefix + "00002"
	NotFound      = HarmonyPrefix + "00003"
	Conflict      = HarmonyPrefix + "00004"
	Unauthorized  = HarmonyPrefix + "00005"
)

// service selection: 01xxx
const (
	UnsupportedOperation = HarmonyPrefix + "01001"
	ServiceNotFound      = HarmonyPrefix + "01002"
)

// work planning: 02xxx
const (
	ServerError = HarmonyPrefix + "02001"
)

// work items: 03xxx
const (
	WorkItemNotFound = HarmonyPrefix + "03001"
)

// IsHarmony returns true when the error carries a Harmony reason code.
func IsHarmony(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(string(apierrors.ReasonForError(err)), HarmonyPrefix)
}

func IsBadRequest(err error) bool {
	return apierrors.ReasonForError(err) == BadRequest
}

func IsUnsupportedOperation(err error) bool {
	return apierrors.ReasonForError(err) == UnsupportedOperation
}

func IsConflict(err error) bool {
	return apierrors.ReasonForError(err) == Conflict
}

func IsNotFound(err error) bool {
	reason := apierrors.ReasonForError(err)
	return reason == NotFound || reason == ServiceNotFound || reason == WorkItemNotFound
}

func IsServerError(err error) bool {
	return apierrors.ReasonForError(err) == ServerError
}

func GetErrorCode(err error) string {
	if err == nil || !IsHarmony(err) {
		return ""
	}
	return string(apierrors.ReasonForError(err))
}

func NewBadRequest(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  BadRequest,
		Message: fmt.Sprintf("Bad request. %s", message),
	}}
}

// NewUnsupportedOperation is rendered by the API callers as a 422 carrying
// the selector's human-readable explanation.
func NewUnsupportedOperation(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusUnprocessableEntity,
		Reason:  UnsupportedOperation,
		Message: message,
	}}
}

func NewServerError(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusInternalServerError,
		Reason:  ServerError,
		Message: message,
	}}
}

func NewNotFound(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusNotFound,
		Reason:  NotFound,
		Message: message,
	}}
}

func NewServiceNotFound(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusNotFound,
		Reason:  ServiceNotFound,
		Message: message,
	}}
}

func NewWorkItemNotFound(id int64) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusNotFound,
		Reason:  WorkItemNotFound,
		Message: fmt.Sprintf("work item %d not found", id),
	}}
}

func NewConflict(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusConflict,
		Reason:  Conflict,
		Message: message,
	}}
}

func NewUnauthorized(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusUnauthorized,
		Reason:  Unauthorized,
		Message: message,
	}}
}
