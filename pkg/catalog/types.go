/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package catalog

import (
	"github.com/nasa/harmony-core/pkg/util/jsonutil"
)

// Service dispatch variants.
const (
	TypeTurbo = "turbo"
	TypeHTTP  = "http"
	TypeNoOp  = "no-op"
)

// NoOpServiceName is the name of the synthetic service returned when no
// real service can satisfy a request.
const NoOpServiceName = "noOpService"

// Subsetting holds the per-axis subsetting capability flags.
type Subsetting struct {
	BBox             bool `yaml:"bbox" json:"bbox"`
	Shape            bool `yaml:"shape" json:"shape"`
	Variable         bool `yaml:"variable" json:"variable"`
	MultipleVariable bool `yaml:"multiple_variable" json:"multiple_variable"`
	Dimension        bool `yaml:"dimension" json:"dimension"`
	Temporal         bool `yaml:"temporal" json:"temporal"`
}

// Capabilities describes what a backend service can do. OutputFormats keeps
// catalog order; format resolution is first-wins.
type Capabilities struct {
	Subsetting           Subsetting `yaml:"subsetting" json:"subsetting"`
	Concatenation        bool       `yaml:"concatenation" json:"concatenation"`
	ConcatenateByDefault bool       `yaml:"concatenate_by_default" json:"concatenate_by_default"`
	Reprojection         bool       `yaml:"reprojection" json:"reprojection"`
	OutputFormats        []string   `yaml:"output_formats" json:"output_formats"`
}

// CollectionEntry associates a service with a collection. A non-empty
// Variables list restricts the association to those variables only.
type CollectionEntry struct {
	ID           string   `yaml:"id" json:"id"`
	Variables    []string `yaml:"variables,omitempty" json:"variables,omitempty"`
	GranuleLimit *int     `yaml:"granule_limit,omitempty" json:"granule_limit,omitempty"`
}

// ServiceStep is one image in the service's workflow chain.
type ServiceStep struct {
	Image        string `yaml:"image" json:"image"`
	IsSequential bool   `yaml:"is_sequential,omitempty" json:"is_sequential,omitempty"`
}

// ServiceConfig is one entry of the service catalog. Immutable after load;
// consumers that need to mutate (the selector binds a resolved output
// format) operate on deep copies.
type ServiceConfig struct {
	Name                string            `yaml:"name" json:"name"`
	Type                string            `yaml:"type" json:"type"`
	UmmS                string            `yaml:"umm_s,omitempty" json:"umm_s,omitempty"`
	Collections         []CollectionEntry `yaml:"collections,omitempty" json:"collections,omitempty"`
	Capabilities        Capabilities      `yaml:"capabilities" json:"capabilities"`
	GranuleLimit        *int              `yaml:"granule_limit,omitempty" json:"granule_limit,omitempty"`
	BatchSize           *int              `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	MaximumSyncGranules *int              `yaml:"maximum_sync_granules,omitempty" json:"maximum_sync_granules,omitempty"`
	Concurrency         int               `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	Steps               []ServiceStep     `yaml:"steps,omitempty" json:"steps,omitempty"`

	// Message is advisory text attached by the selector to the copy it
	// returns. Never populated from the catalog file.
	Message string `yaml:"-" json:"message,omitempty"`
}

// Clone returns a deep copy of the config.
func (s *ServiceConfig) Clone() ServiceConfig {
	clone := ServiceConfig{}
	// All fields are JSON-serializable values.
	if err := jsonutil.DeepCopy(s, &clone); err != nil {
		return *s
	}
	return clone
}

// IsNoOp reports whether this is the synthetic do-nothing service.
func (s *ServiceConfig) IsNoOp() bool {
	return s.Type == TypeNoOp
}

// CollectionEntryFor returns the association for a collection, if any.
func (s *ServiceConfig) CollectionEntryFor(collectionID string) *CollectionEntry {
	for i := range s.Collections {
		if s.Collections[i].ID == collectionID {
			return &s.Collections[i]
		}
	}
	return nil
}

// NoOpService builds the synthetic config returned when no real service
// matches, carrying a human-readable explanation.
func NoOpService(message string) ServiceConfig {
	return ServiceConfig{
		Name:    NoOpServiceName,
		Type:    TypeNoOp,
		Message: message,
		Capabilities: Capabilities{
			OutputFormats: []string{},
		},
	}
}
