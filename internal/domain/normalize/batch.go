package normalize

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/okian/fleetready/internal/domain/model"
)

// Result is the outcome of normalizing one raw record.
type Result struct {
	Raw    model.RawRecord
	Record model.CanonicalRecord
	Err    error
}

// NormalizeBatch normalizes raws concurrently with at most limit records in
// flight. Results keep the input order. Per-record failures are reported in
// Result.Err; the returned error is non-nil only when ctx is done.
func (n *Normalizer) NormalizeBatch(ctx context.Context, raws []model.RawRecord, limit int) ([]Result, error) {
	results := make([]Result, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := range raws {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := n.Normalize(raws[i])
			results[i] = Result{Raw: raws[i], Record: rec, Err: err}
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
