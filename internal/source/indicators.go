package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/marketpulse/scrape-cli/internal/config"
	"github.com/marketpulse/scrape-cli/internal/model"
)

// indicatorColumns maps table cell positions to field names. The first,
// unit and date headers are blank on the live page, so positions are fixed
// rather than derived from header text.
var indicatorColumns = []string{"indicator", "last", "previous", "highest", "lowest", "unit", "date"}

// IndicatorsSource scrapes per-country economic indicator tables. One page
// index maps to one tab (overview, gdp, labour, ...), so the page universe
// is finite and known up front.
type IndicatorsSource struct {
	client  *Client
	baseURL string
	country string
	tabs    []string
	now     func() time.Time
}

// NewIndicators builds the indicators source.
func NewIndicators(client *Client, cfg config.IndicatorsConfig) *IndicatorsSource {
	tabs := cfg.Tabs
	if len(tabs) == 0 {
		tabs = config.IndicatorTabs
	}
	return &IndicatorsSource{
		client:  client,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		country: strings.ToLower(cfg.Country),
		tabs:    tabs,
		now:     time.Now,
	}
}

func (s *IndicatorsSource) Name() string { return "indicators" }

// Pages returns how many tabs this source will visit.
func (s *IndicatorsSource) Pages() int { return len(s.tabs) }

// FetchPage scrapes the tab at position page-1. hasMore reflects whether
// tabs remain, independent of how many rows the current tab yielded.
func (s *IndicatorsSource) FetchPage(ctx context.Context, page int) (model.PageBatch, bool, error) {
	batch := model.PageBatch{Page: page}
	if page < 1 || page > len(s.tabs) {
		return batch, false, nil
	}
	tab := s.tabs[page-1]
	hasMore := page < len(s.tabs)

	pageURL := fmt.Sprintf("%s/%s/indicators", s.baseURL, s.country)
	doc, err := s.client.GetDocument(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return batch, false, err
		}
		return batch, hasMore, &PageFetchError{Source: s.Name(), Page: page, Err: err}
	}

	table := doc.Find(fmt.Sprintf("div#%s[role='tabpanel'] table", tab)).First()
	if table.Length() == 0 {
		zap.L().Warn("indicator table not found, site layout may have changed",
			zap.String("country", s.country),
			zap.String("tab", tab),
		)
		return batch, hasMore, nil
	}

	scrapedAt := s.now().UTC().Format(time.RFC3339)
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < len(indicatorColumns) {
			return
		}
		rec := model.Record{}
		cells.Each(func(i int, cell *goquery.Selection) {
			if i < len(indicatorColumns) {
				rec[indicatorColumns[i]] = strings.TrimSpace(cell.Text())
			}
		})

		name, _ := rec["indicator"].(string)
		if name == "" {
			return
		}
		rec["country"] = s.country
		rec["tab_name"] = tab
		rec[model.FieldURL] = pageURL
		rec[model.FieldScrapedAt] = scrapedAt
		rec[model.FieldHash] = model.Hash(s.country, tab, name)
		batch.Records = append(batch.Records, rec)
	})

	zap.L().Info("scraped indicators tab",
		zap.String("tab", tab),
		zap.Int("indicators", len(batch.Records)),
	)
	return batch, hasMore, nil
}
