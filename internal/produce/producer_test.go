package produce

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/marketpulse/scrape-cli/internal/model"
	"github.com/marketpulse/scrape-cli/internal/source"
)

// fakeSource produces deterministic records: page i yields recordsPerPage
// records labelled p<i>r<j>. Pages listed in failPages return a
// PageFetchError; fatalPage returns a run-fatal error.
type fakeSource struct {
	recordsPerPage int
	lastPage       int // hasMore == page < lastPage; 0 means unbounded
	failPages      map[int]bool
	fatalPage      int
	emptyPages     map[int]bool
	fetched        []int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchPage(_ context.Context, page int) (model.PageBatch, bool, error) {
	f.fetched = append(f.fetched, page)
	batch := model.PageBatch{Page: page}

	if page == f.fatalPage {
		return batch, false, errors.New("malformed request")
	}
	if f.failPages[page] {
		return batch, f.more(page), &source.PageFetchError{Source: "fake", Page: page, Err: errors.New("timeout")}
	}
	if !f.emptyPages[page] {
		for j := 1; j <= f.recordsPerPage; j++ {
			batch.Records = append(batch.Records, model.Record{
				"id":           fmt.Sprintf("p%dr%d", page, j),
				model.FieldURL: fmt.Sprintf("https://example.com/p%dr%d", page, j),
			})
		}
	}
	return batch, f.more(page), nil
}

func (f *fakeSource) more(page int) bool {
	return f.lastPage == 0 || page < f.lastPage
}

func ids(records []model.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r["id"].(string)
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCollect_ScenarioA_PageOrder(t *testing.T) {
	src := &fakeSource{recordsPerPage: 2}
	p := New(src, Config{Pages: 3})

	records, err := p.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"p1r1", "p1r2", "p2r1", "p2r2", "p3r1", "p3r2"}
	if !equalIDs(ids(records), want) {
		t.Errorf("expected %v, got %v", want, ids(records))
	}
	if s := p.Stats(); s.PagesAttempted != 3 || s.PagesSucceeded != 3 || s.Records != 6 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestBatches_ScenarioB_Grouping(t *testing.T) {
	src := &fakeSource{recordsPerPage: 2}
	p := New(src, Config{Pages: 5, BatchPages: 2})

	var batches []model.CombinedBatch
	for b, err := range p.Batches(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		batches = append(batches, b)
	}

	if len(batches) != 3 {
		t.Fatalf("expected 3 combined batches, got %d", len(batches))
	}
	wantPages := [][2]int{{1, 2}, {3, 4}, {5, 5}}
	wantSizes := []int{4, 4, 2}
	for i, b := range batches {
		if b.FirstPage != wantPages[i][0] || b.LastPage != wantPages[i][1] {
			t.Errorf("batch %d: expected pages %v, got {%d %d}", i, wantPages[i], b.FirstPage, b.LastPage)
		}
		if len(b.Records) != wantSizes[i] {
			t.Errorf("batch %d: expected %d records, got %d", i, wantSizes[i], len(b.Records))
		}
	}
}

func TestBatches_ConcatenationMatchesPages(t *testing.T) {
	for _, batchPages := range []int{1, 2, 3, 7} {
		pagesRun := New(&fakeSource{recordsPerPage: 3}, Config{Pages: 5})
		var fromPages []model.Record
		for b, err := range pagesRun.Pages(context.Background()) {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			fromPages = append(fromPages, b.Records...)
		}

		batchRun := New(&fakeSource{recordsPerPage: 3}, Config{Pages: 5, BatchPages: batchPages})
		var fromBatches []model.Record
		for b, err := range batchRun.Batches(context.Background()) {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			fromBatches = append(fromBatches, b.Records...)
		}

		if !equalIDs(ids(fromPages), ids(fromBatches)) {
			t.Errorf("batch_pages=%d: concatenation mismatch", batchPages)
		}
	}
}

func TestBatches_SizeLargerThanRun_SingleBatch(t *testing.T) {
	p := New(&fakeSource{recordsPerPage: 2}, Config{Pages: 3, BatchPages: 10})

	var batches []model.CombinedBatch
	for b, err := range p.Batches(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		batches = append(batches, b)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 combined batch, got %d", len(batches))
	}
	if len(batches[0].Records) != 6 {
		t.Errorf("expected 6 records, got %d", len(batches[0].Records))
	}
}

func TestPages_ScenarioC_FailedPageSkipped(t *testing.T) {
	src := &fakeSource{recordsPerPage: 2, failPages: map[int]bool{2: true}}
	p := New(src, Config{Pages: 3})

	var records []model.Record
	var pageErrs int
	for b, err := range p.Pages(context.Background()) {
		if err != nil {
			pageErrs++
			if len(b.Records) != 0 {
				t.Errorf("failed page should yield an empty batch, got %d records", len(b.Records))
			}
			if b.Page != 2 {
				t.Errorf("expected failure on page 2, got page %d", b.Page)
			}
			continue
		}
		records = append(records, b.Records...)
	}

	want := []string{"p1r1", "p1r2", "p3r1", "p3r2"}
	if !equalIDs(ids(records), want) {
		t.Errorf("expected %v, got %v", want, ids(records))
	}
	if pageErrs != 1 {
		t.Errorf("expected 1 page error, got %d", pageErrs)
	}
	s := p.Stats()
	if s.PagesAttempted != 3 || s.PagesFailed != 1 || s.PagesSucceeded != 2 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestPages_FatalErrorTerminates(t *testing.T) {
	src := &fakeSource{recordsPerPage: 1, fatalPage: 2}
	p := New(src, Config{Pages: 5})

	records, err := p.Collect(context.Background())
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record before the fatal page, got %d", len(records))
	}
	if len(src.fetched) != 2 {
		t.Errorf("expected fetching to stop at the fatal page, fetched %v", src.fetched)
	}
}

func TestBatches_FatalErrorFlushesPending(t *testing.T) {
	src := &fakeSource{recordsPerPage: 2, fatalPage: 3}
	p := New(src, Config{Pages: 5, BatchPages: 10})

	var batches []model.CombinedBatch
	var fatal error
	for b, err := range p.Batches(context.Background()) {
		if err != nil {
			fatal = err
			continue
		}
		batches = append(batches, b)
	}

	if fatal == nil {
		t.Fatal("expected fatal error")
	}
	if len(batches) != 1 {
		t.Fatalf("expected pending group flushed before the error, got %d batches", len(batches))
	}
	if len(batches[0].Records) != 4 {
		t.Errorf("expected 4 records from pages 1-2, got %d", len(batches[0].Records))
	}
}

func TestPages_StopsWhenSourceExhausted(t *testing.T) {
	src := &fakeSource{recordsPerPage: 1, lastPage: 2}
	p := New(src, Config{Pages: 10})

	records, err := p.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
	if len(src.fetched) != 2 {
		t.Errorf("expected 2 fetches, got %v", src.fetched)
	}
}

func TestPages_AbandonedConsumerStopsFetching(t *testing.T) {
	src := &fakeSource{recordsPerPage: 1}
	p := New(src, Config{Pages: 100})

	for range p.Pages(context.Background()) {
		break
	}
	if len(src.fetched) != 1 {
		t.Errorf("expected exactly 1 fetch after early break, got %v", src.fetched)
	}
}

func TestPages_DelayBetweenPagesOnly(t *testing.T) {
	src := &fakeSource{recordsPerPage: 1}
	p := New(src, Config{Pages: 3, Delay: 20 * time.Millisecond})

	start := time.Now()
	if _, err := p.Collect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)
	// Two inter-page delays, none before the first page.
	if elapsed < 35*time.Millisecond {
		t.Errorf("expected at least two 20ms delays, elapsed %v", elapsed)
	}

	single := New(&fakeSource{recordsPerPage: 1, lastPage: 1}, Config{Pages: 1, Delay: time.Second})
	start = time.Now()
	if _, err := single.Collect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("no delay should precede the first page")
	}
}

func TestPages_CancelDuringDelay(t *testing.T) {
	src := &fakeSource{recordsPerPage: 1}
	p := New(src, Config{Pages: 10, Delay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.Collect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(src.fetched) != 1 {
		t.Errorf("expected 1 fetch before cancellation, got %v", src.fetched)
	}
}

func TestPages_EmptyPageCounted(t *testing.T) {
	src := &fakeSource{recordsPerPage: 2, emptyPages: map[int]bool{2: true}}
	p := New(src, Config{Pages: 3})

	if _, err := p.Collect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := p.Stats()
	if s.PagesEmpty != 1 {
		t.Errorf("expected 1 empty page, got %d", s.PagesEmpty)
	}
	if s.Records != 4 {
		t.Errorf("expected 4 records, got %d", s.Records)
	}
}
