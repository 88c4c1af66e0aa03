/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package selector

import (
	"fmt"

	"github.com/nasa/harmony-core/pkg/catalog"
	"github.com/nasa/harmony-core/pkg/models"
)

// filter is one stage of the selection pipeline. Each stage either does not
// apply to the request, or narrows the candidate list and contributes the
// name of the operation it enforces. A stage that applies and narrows to
// zero candidates rejects the request; relaxable stages may be dropped on
// the best-effort rerun.
type filter struct {
	name      string
	relaxable bool
	apply     func(op *models.DataOperation, ctx models.RequestContext,
		candidates []catalog.ServiceConfig) (narrowed []catalog.ServiceConfig, requested string, applied bool)
}

// collectionsFilter retains services whose collection associations cover
// every source. An association listing variables covers a source only when
// every requested variable of that source is listed.
var collectionsFilter = filter{
	name: "collections",
	apply: func(op *models.DataOperation, _ models.RequestContext,
		candidates []catalog.ServiceConfig) ([]catalog.ServiceConfig, string, bool) {
		var narrowed []catalog.ServiceConfig
		for _, svc := range candidates {
			if serviceCoversSources(&svc, op.Sources) {
				narrowed = append(narrowed, svc)
			}
		}
		return narrowed, "", true
	},
}

func serviceCoversSources(svc *catalog.ServiceConfig, sources []models.Source) bool {
	for _, source := range sources {
		entry := svc.CollectionEntryFor(source.Collection)
		if entry == nil {
			return false
		}
		if len(entry.Variables) == 0 {
			continue
		}
		allowed := map[string]bool{}
		for _, v := range entry.Variables {
			allowed[v] = true
		}
		for _, v := range source.Variables {
			if !allowed[v.Name] && !allowed[v.ID] {
				return false
			}
		}
	}
	return true
}

var concatenationFilter = filter{
	name: "concatenation",
	apply: func(op *models.DataOperation, _ models.RequestContext,
		candidates []catalog.ServiceConfig) ([]catalog.ServiceConfig, string, bool) {
		if !op.ShouldConcatenate {
			return candidates, "", false
		}
		var narrowed []catalog.ServiceConfig
		for _, svc := range candidates {
			if svc.Capabilities.Concatenation {
				narrowed = append(narrowed, svc)
			}
		}
		return narrowed, "concatenation", true
	},
}

var variableFilter = filter{
	name: "variable subsetting",
	apply: func(op *models.DataOperation, _ models.RequestContext,
		candidates []catalog.ServiceConfig) ([]catalog.ServiceConfig, string, bool) {
		if !op.HasVariables() {
			return candidates, "", false
		}
		var narrowed []catalog.ServiceConfig
		for _, svc := range candidates {
			if svc.Capabilities.Subsetting.Variable {
				narrowed = append(narrowed, svc)
			}
		}
		return narrowed, "variable subsetting", true
	},
}

var spatialFilter = filter{
	name:      "spatial subsetting",
	relaxable: true,
	apply: func(op *models.DataOperation, _ models.RequestContext,
		candidates []catalog.ServiceConfig) ([]catalog.ServiceConfig, string, bool) {
		if len(op.BoundingRectangle) == 0 {
			return candidates, "", false
		}
		var narrowed []catalog.ServiceConfig
		for _, svc := range candidates {
			if svc.Capabilities.Subsetting.BBox {
				narrowed = append(narrowed, svc)
			}
		}
		return narrowed, "spatial subsetting", true
	},
}

var shapefileFilter = filter{
	name:      "shapefile subsetting",
	relaxable: true,
	apply: func(op *models.DataOperation, _ models.RequestContext,
		candidates []catalog.ServiceConfig) ([]catalog.ServiceConfig, string, bool) {
		if op.GeoJSON == "" {
			return candidates, "", false
		}
		var narrowed []catalog.ServiceConfig
		for _, svc := range candidates {
			if svc.Capabilities.Subsetting.Shape {
				narrowed = append(narrowed, svc)
			}
		}
		return narrowed, "shapefile subsetting", true
	},
}

var reprojectionFilter = filter{
	name: "reprojection",
	apply: func(op *models.DataOperation, _ models.RequestContext,
		candidates []catalog.ServiceConfig) ([]catalog.ServiceConfig, string, bool) {
		if op.CRS == "" {
			return candidates, "", false
		}
		var narrowed []catalog.ServiceConfig
		for _, svc := range candidates {
			if svc.Capabilities.Reprojection {
				narrowed = append(narrowed, svc)
			}
		}
		return narrowed, "reprojection", true
	},
}

var dimensionFilter = filter{
	name:      "dimension subsetting",
	relaxable: true,
	apply: func(op *models.DataOperation, _ models.RequestContext,
		candidates []catalog.ServiceConfig) ([]catalog.ServiceConfig, string, bool) {
		if len(op.Dimensions) == 0 {
			return candidates, "", false
		}
		var narrowed []catalog.ServiceConfig
		for _, svc := range candidates {
			if svc.Capabilities.Subsetting.Dimension {
				narrowed = append(narrowed, svc)
			}
		}
		return narrowed, "dimension subsetting", true
	},
}

// formatFilter runs last in the strict chain so earlier stages cannot
// eliminate a service that would have offered an otherwise-supported
// format. On success it binds the resolved format onto the operation.
var formatFilter = filter{
	name: "reformatting",
	apply: func(op *models.DataOperation, ctx models.RequestContext,
		candidates []catalog.ServiceConfig) ([]catalog.ServiceConfig, string, bool) {
		if !hasFormatRequest(op, ctx) {
			return candidates, "", false
		}
		requested := requestedMimeTypes(op, ctx)
		operationName := fmt.Sprintf("reformatting to %s", firstConcreteMime(requested))
		format := resolveFormat(requested, candidates)
		if format == "" {
			return nil, operationName, true
		}
		op.OutputFormat = format
		var narrowed []catalog.ServiceConfig
		for _, svc := range candidates {
			for _, offered := range svc.Capabilities.OutputFormats {
				if offered == format {
					narrowed = append(narrowed, svc)
					break
				}
			}
		}
		return narrowed, operationName, true
	},
}

// allFilters is the strict chain, in canonical order.
var allFilters = []filter{
	collectionsFilter,
	concatenationFilter,
	variableFilter,
	spatialFilter,
	shapefileFilter,
	reprojectionFilter,
	dimensionFilter,
	formatFilter,
}

// requiredFilters omits the relaxable stages; the best-effort rerun
// silently drops spatial, shapefile, and dimension subsetting.
var requiredFilters = []filter{
	collectionsFilter,
	concatenationFilter,
	variableFilter,
	reprojectionFilter,
	formatFilter,
}
