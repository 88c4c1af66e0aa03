/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package selector chooses the backend service that can fulfill a data
// operation. Candidates flow through an ordered chain of narrowing filters;
// when the strict chain eliminates everyone, a best-effort rerun drops the
// relaxable subsetting stages before giving up with a synthetic no-op
// service.
package selector

import (
	"fmt"
	"strings"

	"github.com/nasa/harmony-core/pkg/catalog"
	harmonyerrors "github.com/nasa/harmony-core/pkg/errors"
	"github.com/nasa/harmony-core/pkg/models"
)

// BestEffortMessage is attached to the chosen service when the relaxable
// subsetting stages had to be dropped to find a match.
const BestEffortMessage = "Data in output files may extend outside the spatial bounds you requested."

// chainOutcome is the result of running a filter chain to completion or to
// its first rejection.
type chainOutcome struct {
	candidates []catalog.ServiceConfig
	requested  []string
	rejectedBy *filter
}

func (o *chainOutcome) rejected() bool {
	return o.rejectedBy != nil
}

// ChooseServiceConfig returns the service config for the operation, or a
// synthetic no-op config whose Message explains what was unsupported. The
// resolved output format, when one was requested, is bound onto op. The
// only error returned is NotFound, for a concatenation request no service
// can satisfy.
func ChooseServiceConfig(op *models.DataOperation, ctx models.RequestContext,
	configs []catalog.ServiceConfig) (catalog.ServiceConfig, error) {

	strictOp, err := op.Clone()
	if err != nil {
		return catalog.ServiceConfig{}, harmonyerrors.NewServerError(err.Error())
	}
	strict := runChain(strictOp, ctx, configs, allFilters)
	if strict.rejectedBy != nil && strict.rejectedBy.name == concatenationFilter.name {
		return catalog.ServiceConfig{}, harmonyerrors.NewServiceNotFound("no matching service")
	}
	if !strict.rejected() {
		op.OutputFormat = strictOp.OutputFormat
		return strict.candidates[0].Clone(), nil
	}

	// Only a rejection by a relaxable stage can be helped by dropping the
	// relaxable stages; anything else is a hard mismatch.
	if strict.rejectedBy.relaxable {
		fallbackOp, err := op.Clone()
		if err != nil {
			return catalog.ServiceConfig{}, harmonyerrors.NewServerError(err.Error())
		}
		fallback := runChain(fallbackOp, ctx, configs, requiredFilters)
		if !fallback.rejected() {
			op.OutputFormat = fallbackOp.OutputFormat
			chosen := fallback.candidates[0].Clone()
			chosen.Message = BestEffortMessage
			ctx.Logger.Info("relaxed subsetting to find a matching service", "service", chosen.Name)
			return chosen, nil
		}
	}

	return catalog.NoOpService(unsupportedMessage(op, strict.requested)), nil
}

// runChain narrows candidates through the filters in order, accumulating
// the names of the operations that applied. The chain stops at the first
// stage that applies and leaves no candidates.
func runChain(op *models.DataOperation, ctx models.RequestContext,
	configs []catalog.ServiceConfig, filters []filter) chainOutcome {

	outcome := chainOutcome{candidates: configs}
	for i := range filters {
		f := &filters[i]
		narrowed, requested, applied := f.apply(op, ctx, outcome.candidates)
		if !applied {
			continue
		}
		if requested != "" {
			outcome.requested = append(outcome.requested, requested)
		}
		outcome.candidates = narrowed
		if len(narrowed) == 0 {
			outcome.rejectedBy = f
			return outcome
		}
	}
	return outcome
}

// unsupportedMessage renders the human-readable no-op explanation.
func unsupportedMessage(op *models.DataOperation, requested []string) string {
	collections := strings.Join(op.CollectionIDs(), ", ")
	if len(requested) == 0 {
		return fmt.Sprintf("no operations can be performed on %s", collections)
	}
	return fmt.Sprintf("the requested combination of operations: %s on %s is unsupported",
		listToText(requested), collections)
}

// listToText joins items the way a sentence would: "a", "a and b",
// "a, b, and c".
func listToText(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
