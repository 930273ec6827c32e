// Package source implements the per-site scrapers. Each source turns one
// page index into a batch of records; pagination, delays and batching live
// in internal/produce.
package source

import (
	"context"
	"fmt"

	"github.com/marketpulse/scrape-cli/internal/model"
)

// Source fetches one page worth of records. hasMore reports whether a page
// beyond the requested one exists, so callers never have to treat an empty
// batch as an end-of-input heuristic.
type Source interface {
	Name() string
	FetchPage(ctx context.Context, page int) (batch model.PageBatch, hasMore bool, err error)
}

// PageFetchError reports that one page could not be fetched after all
// retries. Producers absorb it: the page is skipped, counted as failed, and
// the run continues. Any other error from FetchPage is fatal to the run.
type PageFetchError struct {
	Source string
	Page   int
	Err    error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("%s: page %d: %v", e.Source, e.Page, e.Err)
}

func (e *PageFetchError) Unwrap() error {
	return e.Err
}
