package source

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marketpulse/scrape-cli/internal/config"
	"github.com/marketpulse/scrape-cli/internal/model"
	"github.com/marketpulse/scrape-cli/internal/resilience"
)

// NewsSource scrapes a paginated news listing (markets section). Page URLs
// follow the {base}page-N/ convention. When FetchDetails is enabled, each
// article's detail page is fetched with bounded concurrency to fill in the
// author, publish date and full text; a failed detail fetch leaves those
// fields empty rather than failing the page.
type NewsSource struct {
	client        *Client
	baseURL       string
	fetchDetails  bool
	maxConcurrent int
	now           func() time.Time
}

// NewNews builds the news source.
func NewNews(client *Client, cfg config.NewsConfig, scrape config.ScrapeConfig) *NewsSource {
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	maxConcurrent := scrape.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &NewsSource{
		client:        client,
		baseURL:       base,
		fetchDetails:  scrape.FetchDetails,
		maxConcurrent: maxConcurrent,
		now:           time.Now,
	}
}

func (s *NewsSource) Name() string { return "news" }

var pageLinkRe = regexp.MustCompile(`page-(\d+)`)

// FetchPage scrapes one listing page and reports whether the pagination
// block advertises a later page.
func (s *NewsSource) FetchPage(ctx context.Context, page int) (model.PageBatch, bool, error) {
	batch := model.PageBatch{Page: page}
	pageURL := fmt.Sprintf("%spage-%d/", s.baseURL, page)

	doc, err := s.client.GetDocument(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return batch, false, err
		}
		return batch, false, &PageFetchError{Source: s.Name(), Page: page, Err: err}
	}

	containers := doc.Find("li.clearfix")
	if containers.Length() == 0 {
		containers = doc.Find("div.article")
	}
	if containers.Length() == 0 {
		containers = doc.Find("article")
	}
	if containers.Length() == 0 {
		// Layout change: no article containers at all. Surfaced as an empty
		// page so the summary shows the anomaly.
		zap.L().Warn("no article containers found, site layout may have changed",
			zap.String("url", pageURL),
			zap.Int("page", page),
		)
		return batch, s.hasMorePages(doc, page), nil
	}

	containers.Each(func(_ int, sel *goquery.Selection) {
		if rec := s.extractArticle(sel); rec != nil {
			batch.Records = append(batch.Records, rec)
		}
	})

	if s.fetchDetails {
		s.fillDetails(ctx, batch.Records)
	}

	// Hash after detail enrichment so the publish date participates.
	scrapedAt := s.now().UTC().Format(time.RFC3339)
	for _, rec := range batch.Records {
		title, _ := rec["title"].(string)
		date, _ := rec["date"].(string)
		rec[model.FieldHash] = model.Hash(title, date)
		rec[model.FieldScrapedAt] = scrapedAt
	}

	zap.L().Info("scraped news page",
		zap.Int("page", page),
		zap.Int("articles", len(batch.Records)),
	)
	return batch, s.hasMorePages(doc, page), nil
}

// extractArticle pulls one record from a listing container. Containers
// without a title are navigation noise and are skipped.
func (s *NewsSource) extractArticle(sel *goquery.Selection) model.Record {
	rec := model.Record{}

	titleElem := sel.Find("h2 a").First()
	if titleElem.Length() == 0 {
		titleElem = sel.Find("a").First()
	}
	title := strings.TrimSpace(titleElem.Text())
	if title == "" {
		return nil
	}
	rec["title"] = title

	if href, ok := titleElem.Attr("href"); ok {
		rec[model.FieldURL] = s.resolveURL(href)
	} else {
		rec[model.FieldURL] = ""
	}

	rec["date"] = strings.TrimSpace(sel.Find("span.article-time, time, span.date").First().Text())
	rec["summary"] = strings.TrimSpace(sel.Find("p").First().Text())
	rec["author"] = strings.TrimSpace(sel.Find("span.author, a.author").First().Text())

	if src, ok := sel.Find("img").First().Attr("src"); ok {
		rec["image_url"] = src
	} else {
		rec["image_url"] = ""
	}

	return rec
}

// fillDetails enriches records from their detail pages with at most
// maxConcurrent in-flight fetches. Failures leave the fields empty.
func (s *NewsSource) fillDetails(ctx context.Context, records []model.Record) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for _, rec := range records {
		articleURL, _ := rec[model.FieldURL].(string)
		if articleURL == "" {
			continue
		}
		g.Go(func() error {
			s.fetchArticleDetails(gctx, articleURL, rec)
			return nil
		})
	}
	_ = g.Wait()
}

// fetchArticleDetails fetches one article page and fills author, date and
// full content. Detail pages get a shorter retry budget than listings.
func (s *NewsSource) fetchArticleDetails(ctx context.Context, articleURL string, rec model.Record) {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2
	retry.OnRetry = resilience.RetryLogger(s.Name(), "fetch detail")

	doc, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*goquery.Document, error) {
		return s.client.GetDocument(ctx, articleURL)
	})
	if err != nil {
		zap.L().Warn("detail fetch failed, keeping partial fields",
			zap.String("url", articleURL),
			zap.Error(err),
		)
		return
	}

	authorElem := doc.Find("div.article_author a").First()
	if authorElem.Length() == 0 {
		authorElem = doc.Find("div.article_author").First()
	}
	if author := strings.TrimSpace(authorElem.Text()); author != "" {
		rec["author"] = author
	}

	if dateText := strings.TrimSpace(doc.Find("div.article_schedule span").First().Text()); dateText != "" {
		// "November 12, 2024 / 10:23 IST" keeps only the date part.
		if i := strings.Index(dateText, "/"); i >= 0 {
			dateText = strings.TrimSpace(dateText[:i])
		}
		rec["date"] = dateText
	}

	var paragraphs []string
	doc.Find("div#contentdata p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		rec["full_content"] = strings.Join(paragraphs, "\n\n")
	}
}

// hasMorePages inspects pagination links for a page number beyond the
// current one. An empty page with more pages behind it therefore stays
// distinguishable from the end of the listing.
func (s *NewsSource) hasMorePages(doc *goquery.Document, page int) bool {
	more := false
	doc.Find("a[href*='page-']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		m := pageLinkRe.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > page {
			more = true
			return false
		}
		return true
	})
	return more
}

func (s *NewsSource) resolveURL(href string) string {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
