package source

import (
	"testing"
	"time"

	"github.com/marketpulse/scrape-cli/internal/config"
	"github.com/marketpulse/scrape-cli/internal/resilience"
)

func testScrapeConfig() config.ScrapeConfig {
	return config.ScrapeConfig{
		Pages:         3,
		TimeoutSecs:   5,
		MaxRetries:    3,
		MaxConcurrent: 3,
		RatePerSec:    1000, // keep tests fast
		UserAgent:     "scrape-cli-test",
	}
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	fast := resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
	return NewClient(testScrapeConfig(), append([]Option{WithRetry(fast)}, opts...)...)
}

func fixedTime() time.Time {
	return time.Date(2024, 11, 12, 10, 30, 0, 0, time.UTC)
}
