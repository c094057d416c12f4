package decoding

import (
	"context"

	"golang.org/x/sync/errgroup"

	"txDecoder/internal/model"
)

// DecodeAll decodes independent transactions on up to workers goroutines.
// Each transaction keeps its own event arena and action item queue; results
// are returned in input order. Cancellation is honoured between transactions.
func (e *Engine) DecodeAll(ctx context.Context, txs []model.Transaction, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(txs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range txs {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.DecodeTransaction(gctx, txs[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
