package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/marketpulse/scrape-cli/internal/config"
	"github.com/marketpulse/scrape-cli/internal/model"
)

// ratioKeys maps warehouse ratio labels (lowercased, as shown on the page)
// to record field names.
var ratioKeys = []struct {
	match string
	field string
}{
	{"market cap", "market_cap"},
	{"current price", "current_price"},
	{"stock p/e", "pe_ratio"},
	{"price to book", "pb_ratio"},
	{"book value", "book_value"},
	{"dividend yield", "dividend_yield"},
	{"roce", "roce"},
	{"roe", "roe"},
	{"face value", "face_value"},
	{"debt to equity", "debt_to_equity"},
}

// StocksSource scrapes per-symbol fundamentals pages. One page index maps
// to one symbol from the configured list.
type StocksSource struct {
	client  *Client
	baseURL string
	symbols []string
	now     func() time.Time
}

// NewStocks builds the stocks source.
func NewStocks(client *Client, cfg config.StocksConfig, symbols []string) *StocksSource {
	if len(symbols) == 0 {
		symbols = cfg.Symbols
	}
	upper := make([]string, len(symbols))
	for i, sym := range symbols {
		upper[i] = strings.ToUpper(strings.TrimSpace(sym))
	}
	return &StocksSource{
		client:  client,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		symbols: upper,
		now:     time.Now,
	}
}

func (s *StocksSource) Name() string { return "stocks" }

// Pages returns how many symbols this source will visit.
func (s *StocksSource) Pages() int { return len(s.symbols) }

// FetchPage scrapes the symbol at position page-1.
func (s *StocksSource) FetchPage(ctx context.Context, page int) (model.PageBatch, bool, error) {
	batch := model.PageBatch{Page: page}
	if page < 1 || page > len(s.symbols) {
		return batch, false, nil
	}
	symbol := s.symbols[page-1]
	hasMore := page < len(s.symbols)

	pageURL := fmt.Sprintf("%s/%s/", s.baseURL, symbol)
	doc, err := s.client.GetDocument(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return batch, false, err
		}
		return batch, hasMore, &PageFetchError{Source: s.Name(), Page: page, Err: err}
	}

	// Hash includes the scrape date so each day's snapshot is its own row.
	scrapedAt := s.now().UTC()
	rec := model.Record{
		"symbol":        symbol,
		model.FieldURL:  pageURL,
		model.FieldHash: model.Hash(symbol, scrapedAt.Format("2006-01-02")),
	}
	rec[model.FieldScrapedAt] = scrapedAt.Format(time.RFC3339)

	if name := strings.TrimSpace(doc.Find("h1").First().Text()); name != "" {
		rec["name"] = name
	}

	ratios := doc.Find("ul#top-ratios li")
	if ratios.Length() == 0 {
		ratios = doc.Find("li.flex")
	}
	found := 0
	ratios.Each(func(_ int, li *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(li.Find("span.name").First().Text()))
		value := strings.TrimSpace(li.Find("span.value, span.number").First().Text())
		if label == "" || value == "" {
			return
		}
		for _, rk := range ratioKeys {
			if strings.Contains(label, rk.match) {
				rec[rk.field] = CleanNumber(value)
				found++
				break
			}
		}
	})

	if found == 0 && rec["name"] == nil {
		zap.L().Warn("no fundamentals found, site layout may have changed",
			zap.String("symbol", symbol),
		)
		return batch, hasMore, nil
	}

	batch.Records = append(batch.Records, rec)
	zap.L().Info("scraped stock fundamentals",
		zap.String("symbol", symbol),
		zap.Int("ratios", found),
	)
	return batch, hasMore, nil
}

// CleanNumber parses display values like "1,234.56", "12.5%", "₹ 3,200" or
// "15.2 Cr." into a float, expanding crore/lakh multipliers. Returns nil
// for blanks and placeholders so sinks store an explicit null.
func CleanNumber(value string) any {
	v := strings.TrimSpace(value)
	switch v {
	case "", "-", "N/A", "NA":
		return nil
	}

	v = strings.ReplaceAll(v, ",", "")
	v = strings.ReplaceAll(v, "%", "")
	v = strings.ReplaceAll(v, "₹", "")
	v = strings.TrimSuffix(strings.TrimSpace(v), ".")

	multiplier := 1.0
	lower := strings.ToLower(v)
	switch {
	case strings.Contains(lower, "cr"):
		multiplier = 1e7 // 1 crore = 10 million
		v = v[:strings.Index(lower, "cr")]
	case strings.Contains(lower, "lac"):
		multiplier = 1e5 // 1 lakh = 100,000
		v = v[:strings.Index(lower, "lac")]
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil
	}
	return f * multiplier
}
