// Package store persists local state between scrape runs: the run history
// shown by the runs command and served over HTTP, and a TTL'd cache of raw
// page HTML that lets a re-run skip fetches it did recently.
package store

import (
	"context"
	"time"

	"github.com/marketpulse/scrape-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Source string          `json:"source,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store is the persistence interface for run history and the page cache.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Page cache; satisfies source.PageCache.
	GetPage(ctx context.Context, key string) ([]byte, error)
	SetPage(ctx context.Context, key string, html []byte, ttl time.Duration) error
	DeleteExpiredPages(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
