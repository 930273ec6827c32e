// Package sink writes record batches to their destinations: JSON, CSV and
// XLSX files on disk, MongoDB and PostgreSQL for upserts. Sinks are fed by
// the streaming writer one combined batch at a time, so a destination never
// needs to hold a full run in memory.
package sink

import (
	"context"

	"github.com/marketpulse/scrape-cli/internal/model"
)

// Result counts what one write (or a whole run of writes) did at the
// destination.
type Result struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// Add merges another Result into this one and returns the sum.
func (r Result) Add(other Result) Result {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Failed += other.Failed
	return r
}

// Total returns the number of records the destination accepted.
func (r Result) Total() int {
	return r.Inserted + r.Updated
}

// Sink is a batch destination. WriteBatch errors are fatal to the run:
// unlike page fetches, a broken destination is not worth retrying past.
// Close finalizes the destination (file framing, connection teardown) and
// must be called exactly once.
type Sink interface {
	Name() string
	WriteBatch(ctx context.Context, records []model.Record) (Result, error)
	Close(ctx context.Context) error
}
