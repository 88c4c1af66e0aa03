/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package selector

import (
	"sort"
	"strconv"
	"strings"

	"github.com/nasa/harmony-core/pkg/catalog"
	"github.com/nasa/harmony-core/pkg/models"
)

const wildcardMime = "*/*"

// mimeMatches applies the wildcard rule from the requested side: */*
// matches everything, type/* matches any subtype of type, anything else
// must equal type/subtype exactly. Parameters are stripped first.
func mimeMatches(requested, offered string) bool {
	requested = stripParams(requested)
	offered = stripParams(offered)
	if requested == wildcardMime {
		return true
	}
	if strings.HasSuffix(requested, "/*") {
		prefix := strings.TrimSuffix(requested, "*")
		return strings.HasPrefix(offered, prefix)
	}
	return requested == offered
}

func stripParams(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}

// qualityValue parses the q parameter of an Accept entry, defaulting to 1.
func qualityValue(mime string) float64 {
	for _, part := range strings.Split(mime, ";")[1:] {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "q=") {
			if q, err := strconv.ParseFloat(part[2:], 64); err == nil {
				return q
			}
		}
	}
	return 1.0
}

// SortMimeTypes orders Accept entries by quality value, descending, keeping
// header order for ties. The request context carries the result.
func SortMimeTypes(mimeTypes []string) []string {
	sorted := make([]string, len(mimeTypes))
	copy(sorted, mimeTypes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return qualityValue(sorted[i]) > qualityValue(sorted[j])
	})
	return sorted
}

// requestedMimeTypes returns the format requests in priority order: an
// explicit outputFormat first, then the Accept entries.
func requestedMimeTypes(op *models.DataOperation, ctx models.RequestContext) []string {
	var requested []string
	if op.OutputFormat != "" {
		requested = append(requested, op.OutputFormat)
	}
	requested = append(requested, ctx.RequestedMimeTypes...)
	return requested
}

// hasFormatRequest reports whether the format filter applies: an explicit
// output format, or any Accept entry other than the full wildcard.
func hasFormatRequest(op *models.DataOperation, ctx models.RequestContext) bool {
	if op.OutputFormat != "" {
		return true
	}
	for _, mime := range ctx.RequestedMimeTypes {
		if stripParams(mime) != wildcardMime {
			return true
		}
	}
	return false
}

// resolveFormat walks the requested mime types in priority order and the
// candidates in catalog order, returning the first offered format matching
// a request. First-wins on both axes keeps selection stable.
func resolveFormat(requested []string, candidates []catalog.ServiceConfig) string {
	for _, mime := range requested {
		for _, svc := range candidates {
			for _, offered := range svc.Capabilities.OutputFormats {
				if mimeMatches(mime, offered) {
					return offered
				}
			}
		}
	}
	return ""
}

// firstConcreteMime returns the highest-priority non-wildcard request, used
// to name the unsupported operation in selector messages.
func firstConcreteMime(requested []string) string {
	for _, mime := range requested {
		if stripParams(mime) != wildcardMime {
			return stripParams(mime)
		}
	}
	return ""
}
