/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package models

import (
	"github.com/nasa/harmony-core/pkg/util/jsonutil"
)

// CurrentSchemaVersion is the data-operation schema version workflow steps
// are serialized at.
const CurrentSchemaVersion = "0.22.0"

// Variable names one variable of a collection.
type Variable struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Granule is one input granule of a source.
type Granule struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Source is one collection the request draws granules from.
type Source struct {
	Collection string     `json:"collection"`
	ShortName  string     `json:"shortName,omitempty"`
	VersionID  string     `json:"versionId,omitempty"`
	Variables  []Variable `json:"variables,omitempty"`
	Granules   []Granule  `json:"granules,omitempty"`
}

// Dimension is an arbitrary named dimension subset.
type Dimension struct {
	Name string   `json:"name"`
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
}

// Temporal is the requested time range.
type Temporal struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// ShapeFileRef replaces inline GeoJSON once the sidecar runner has spilled
// it to the pod's shared /tmp.
type ShapeFileRef struct {
	Href string `json:"href"`
	Type string `json:"type"`
}

// DataOperation is the request payload handed from the API frontend to the
// selector and planner, and serialized into every workflow step. Only the
// fields the routing and dispatch core consumes are modeled.
type DataOperation struct {
	Sources            []Source      `json:"sources"`
	OutputFormat       string        `json:"outputFormat,omitempty"`
	BoundingRectangle  []float64     `json:"boundingRectangle,omitempty"`
	GeoJSON            string        `json:"geojson,omitempty"`
	Shape              *ShapeFileRef `json:"shape,omitempty"`
	CRS                string        `json:"crs,omitempty"`
	Dimensions         []Dimension   `json:"dimensions,omitempty"`
	ShouldConcatenate  bool          `json:"shouldConcatenate,omitempty"`
	Temporal           *Temporal     `json:"temporal,omitempty"`
	MaxResults         *int          `json:"maxResults,omitempty"`
	CMRHits            int           `json:"cmrHits,omitempty"`
	RequireSynchronous bool          `json:"requireSynchronous,omitempty"`
	IsSynchronous      *bool         `json:"isSynchronous,omitempty"`
	RequestID          string        `json:"requestId"`
	User               string        `json:"user,omitempty"`
	Client             string        `json:"client,omitempty"`
	StagingLocation    string        `json:"stagingLocation,omitempty"`
	Version            string        `json:"version,omitempty"`
}

// Clone returns a deep copy. The selector binds the resolved output format
// onto its copy and must never mutate the caller's operation.
func (op *DataOperation) Clone() (*DataOperation, error) {
	clone := &DataOperation{}
	if err := jsonutil.DeepCopy(op, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// CollectionIDs returns the distinct collections across sources, in source
// order.
func (op *DataOperation) CollectionIDs() []string {
	seen := map[string]bool{}
	var ids []string
	for _, s := range op.Sources {
		if !seen[s.Collection] {
			seen[s.Collection] = true
			ids = append(ids, s.Collection)
		}
	}
	return ids
}

// HasVariables reports whether any source asks for specific variables.
func (op *DataOperation) HasVariables() bool {
	for _, s := range op.Sources {
		if len(s.Variables) > 0 {
			return true
		}
	}
	return false
}

// GranuleCount is the total number of granules across all sources.
func (op *DataOperation) GranuleCount() int {
	n := 0
	for _, s := range op.Sources {
		n += len(s.Granules)
	}
	return n
}

// StripVariables clears the variable lists from every source. The worker
// does this before echoing the operation back on status updates; the server
// does not need them back and they can be large.
func (op *DataOperation) StripVariables() {
	for i := range op.Sources {
		op.Sources[i].Variables = []Variable{}
	}
}
