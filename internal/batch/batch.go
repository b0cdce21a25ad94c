// Package batch runs the derivation pipeline over many inputs under a fixed
// concurrency ceiling.
package batch

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/imagemill/imagemill/internal/model"
)

// Deriver - contract for processing one item; satisfied by pipeline.Pipeline.
type Deriver interface {
	Derive(ctx context.Context, src model.SourceImage) (*model.DerivationResult, error)
}

type Coordinator struct {
	deriver Deriver
	limit   int
}

// New builds a coordinator with the given concurrency ceiling. The ceiling
// bounds simultaneous codec and upload load; it is configuration, never
// derived from batch length.
func New(deriver Deriver, limit int) *Coordinator {
	if limit < 1 {
		limit = 1
	}
	return &Coordinator{deriver: deriver, limit: limit}
}

// ProcessBatch derives every item with at most `limit` running at once.
// Results land in pre-allocated slots indexed by submission order, so the
// output sequence matches the input regardless of completion order. A failed
// item fills its own slot with an ItemError and never cancels its siblings;
// len(result) == len(items) always holds.
func (c *Coordinator) ProcessBatch(ctx context.Context, items []model.SourceImage) model.BatchResult {
	results := make(model.BatchResult, len(items))

	var g errgroup.Group
	g.SetLimit(c.limit)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			res, err := c.deriver.Derive(ctx, item)
			if err != nil {
				results[i] = model.BatchItem{Err: asItemError(err)}
				return nil
			}
			results[i] = model.BatchItem{Result: res}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func asItemError(err error) *model.ItemError {
	var ie *model.ItemError
	if errors.As(err, &ie) {
		return ie
	}
	return &model.ItemError{Step: "pipeline", Err: err}
}
