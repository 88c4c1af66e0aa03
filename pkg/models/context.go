/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package models

import (
	"k8s.io/klog/v2"
)

// RequestContext carries request-scoped data into the selector. It is
// value-copied; replace fields with the With* helpers instead of mutating.
type RequestContext struct {
	ID string
	// Logger is pre-seeded with the request id.
	Logger klog.Logger
	// RequestedMimeTypes is the parsed Accept header, pre-sorted by quality
	// value with a stable tie-break on header order.
	RequestedMimeTypes []string
	// Frontend names the API flavor that built the request (coverages, edr, wms).
	Frontend string
}

func NewRequestContext(id string) RequestContext {
	return RequestContext{
		ID:     id,
		Logger: klog.Background().WithValues("requestId", id),
	}
}

func (c RequestContext) WithMimeTypes(mimeTypes ...string) RequestContext {
	c.RequestedMimeTypes = mimeTypes
	return c
}

func (c RequestContext) WithFrontend(frontend string) RequestContext {
	c.Frontend = frontend
	return c
}
