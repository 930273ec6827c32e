package sink

import (
	"context"
	"iter"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/marketpulse/scrape-cli/internal/model"
)

// Stream drains a lazy sequence of combined batches into dst, one batch at
// a time. Errors carried by the sequence and errors from the destination
// both end the run; the totals accumulated so far are returned alongside.
// Stream does not call Close on dst.
func Stream(ctx context.Context, batches iter.Seq2[model.CombinedBatch, error], dst Sink) (Result, error) {
	var total Result
	for batch, err := range batches {
		if err != nil {
			return total, err
		}
		if len(batch.Records) == 0 {
			continue
		}

		res, err := dst.WriteBatch(ctx, batch.Records)
		total = total.Add(res)
		if err != nil {
			return total, eris.Wrapf(err, "sink: write pages %d-%d", batch.FirstPage, batch.LastPage)
		}
		zap.L().Info("batch written",
			zap.String("sink", dst.Name()),
			zap.Int("first_page", batch.FirstPage),
			zap.Int("last_page", batch.LastPage),
			zap.Int("records", len(batch.Records)),
			zap.Int("inserted", res.Inserted),
			zap.Int("updated", res.Updated),
		)
	}
	return total, nil
}
