/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package planner

import (
	harmonyerrors "github.com/nasa/harmony-core/pkg/errors"
	"github.com/nasa/harmony-core/pkg/models"
)

// BatchOperations splits an operation into per-batch clones of at most
// batchSize granules each. A batch never mixes granules from different
// sources; a source larger than batchSize is split across batches. A
// batchSize of zero disables batching.
func BatchOperations(op *models.DataOperation, batchSize int) ([]*models.DataOperation, error) {
	if batchSize <= 0 {
		return []*models.DataOperation{op}, nil
	}

	var batches []*models.DataOperation
	for i, source := range op.Sources {
		for start := 0; start < len(source.Granules); start += batchSize {
			end := start + batchSize
			if end > len(source.Granules) {
				end = len(source.Granules)
			}
			batch, err := op.Clone()
			if err != nil {
				return nil, harmonyerrors.NewServerError(err.Error())
			}
			batchSource := batch.Sources[i]
			batchSource.Granules = batchSource.Granules[start:end]
			batch.Sources = []models.Source{batchSource}
			batches = append(batches, batch)
		}
	}
	if len(batches) == 0 {
		// No inline granules to split.
		return []*models.DataOperation{op}, nil
	}
	return batches, nil
}
