package model

// PageBatch holds every record extracted from one source page. A batch may
// be empty (the page matched nothing, or its fetch failed and was skipped)
// but is only ever produced for a page inside the requested range.
type PageBatch struct {
	Page    int
	Records []Record
}

// CombinedBatch is the concatenation of consecutive page batches, in fetch
// order. FirstPage and LastPage bound the pages it covers; the tail batch of
// a run may cover fewer pages than the configured group size.
type CombinedBatch struct {
	FirstPage int
	LastPage  int
	Records   []Record
}
