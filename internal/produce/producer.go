// Package produce turns a page-oriented source into lazy, ordered sequences
// of record batches. Nothing here is concurrent: pages are fetched strictly
// in order with a polite delay between them, and memory is bounded by one
// page (Pages) or one page group (Batches) regardless of how many pages the
// run covers.
package produce

import (
	"context"
	"errors"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/marketpulse/scrape-cli/internal/model"
	"github.com/marketpulse/scrape-cli/internal/source"
)

// Config bounds one production run.
type Config struct {
	// Pages is the maximum number of pages to fetch, starting at 1. The run
	// stops earlier when the source reports no further pages.
	Pages int

	// Delay is the pause between consecutive page fetches. No pause happens
	// before the first page.
	Delay time.Duration

	// BatchPages is how many consecutive page batches Batches combines into
	// one emitted unit. Values below 1 are treated as 1.
	BatchPages int
}

// Stats counts what a production run did. Read it after the sequence ends
// (or is abandoned); a partial read mid-run reflects progress so far.
type Stats struct {
	PagesAttempted int
	PagesSucceeded int
	PagesFailed    int
	PagesEmpty     int
	Records        int
}

// Producer drives a Source through one production run. A Producer owns its
// cursor exclusively and is single-use: call Pages, Batches or Collect once.
type Producer struct {
	src   source.Source
	cfg   Config
	stats Stats
}

// New builds a Producer for one run.
func New(src source.Source, cfg Config) *Producer {
	if cfg.Pages < 1 {
		cfg.Pages = 1
	}
	if cfg.BatchPages < 1 {
		cfg.BatchPages = 1
	}
	return &Producer{src: src, cfg: cfg}
}

// Stats returns the run counters accumulated so far.
func (p *Producer) Stats() Stats {
	return p.stats
}

// Pages returns a lazy sequence of page batches in strictly increasing page
// order. Each element carries the batch and, for pages whose fetch failed
// after retries, the absorbed error alongside an empty batch; the sequence
// continues past those. Fatal errors (cancelled context, malformed request)
// end the sequence after being yielded. Stopping iteration early abandons
// the remaining pages; nothing else is fetched.
func (p *Producer) Pages(ctx context.Context) iter.Seq2[model.PageBatch, error] {
	return func(yield func(model.PageBatch, error) bool) {
		for page := 1; page <= p.cfg.Pages; page++ {
			if page > 1 && p.cfg.Delay > 0 {
				if err := sleep(ctx, p.cfg.Delay); err != nil {
					yield(model.PageBatch{Page: page}, err)
					return
				}
			}

			batch, hasMore, err := p.src.FetchPage(ctx, page)
			p.stats.PagesAttempted++

			if err != nil {
				if !isAbsorbed(err) {
					yield(model.PageBatch{Page: page}, err)
					return
				}
				// Page-level failure: skip the page, keep the run alive.
				p.stats.PagesFailed++
				zap.L().Error("page fetch failed, skipping",
					zap.String("source", p.src.Name()),
					zap.Int("page", page),
					zap.Error(err),
				)
				if !yield(model.PageBatch{Page: page}, err) {
					return
				}
				continue
			}

			p.stats.PagesSucceeded++
			if len(batch.Records) == 0 {
				p.stats.PagesEmpty++
			}
			p.stats.Records += len(batch.Records)

			if !yield(batch, nil) {
				return
			}

			if !hasMore {
				zap.L().Info("source reported no more pages",
					zap.String("source", p.src.Name()),
					zap.Int("last_page", page),
				)
				return
			}
		}
	}
}

// Batches returns a lazy sequence of combined batches, each covering
// BatchPages consecutive pages (the final one may cover fewer). Combined
// batches preserve page order; at most BatchPages pages of records are held
// at once. Absorbed page failures contribute an empty slot to their group;
// a fatal error flushes the pending group before surfacing.
func (p *Producer) Batches(ctx context.Context) iter.Seq2[model.CombinedBatch, error] {
	return func(yield func(model.CombinedBatch, error) bool) {
		var pending model.CombinedBatch
		pagesInGroup := 0

		flush := func() bool {
			out := pending
			pending = model.CombinedBatch{}
			pagesInGroup = 0
			return yield(out, nil)
		}

		for batch, err := range p.Pages(ctx) {
			if err != nil && !isAbsorbed(err) {
				if pagesInGroup > 0 && !flush() {
					return
				}
				yield(model.CombinedBatch{}, err)
				return
			}

			if pagesInGroup == 0 {
				pending.FirstPage = batch.Page
			}
			pending.LastPage = batch.Page
			pending.Records = append(pending.Records, batch.Records...)
			pagesInGroup++

			if pagesInGroup >= p.cfg.BatchPages {
				if !flush() {
					return
				}
			}
		}

		// Short tail group, never dropped.
		if pagesInGroup > 0 {
			flush()
		}
	}
}

// Collect eagerly drains the page sequence into one in-memory slice, in page
// order. Memory scales with the total record count; prefer Batches plus a
// streaming sink for large runs. Records gathered before a fatal error are
// returned alongside it.
func (p *Producer) Collect(ctx context.Context) ([]model.Record, error) {
	var all []model.Record
	for batch, err := range p.Pages(ctx) {
		if err != nil && !isAbsorbed(err) {
			return all, err
		}
		all = append(all, batch.Records...)
	}
	return all, nil
}

// isAbsorbed reports whether err is a page-level failure the producer has
// already skipped past, as opposed to a run-fatal error.
func isAbsorbed(err error) bool {
	var pfe *source.PageFetchError
	return errors.As(err, &pfe)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
