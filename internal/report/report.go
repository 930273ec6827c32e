// Package report renders run summaries for the terminal.
package report

import (
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/marketpulse/scrape-cli/internal/model"
)

// WriteSummary renders one run summary as a two-column table.
func WriteSummary(w io.Writer, source string, sum model.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Source", source},
		{"Pages attempted", sum.PagesAttempted},
		{"Pages succeeded", sum.PagesSucceeded},
		{"Pages failed", sum.PagesFailed},
		{"Pages empty", sum.PagesEmpty},
		{"Records scraped", sum.Records},
		{"Inserted", sum.Inserted},
		{"Updated", sum.Updated},
		{"Write failures", sum.Failed},
		{"Destination", sum.Destination},
		{"Elapsed", sum.Elapsed.Round(time.Millisecond).String()},
	})
	t.Render()
}

// WriteRuns renders run history, newest first as given.
func WriteRuns(w io.Writer, runs []model.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Source", "Status", "Records", "Started", "Duration"})

	for _, r := range runs {
		records := "-"
		if r.Summary != nil {
			records = itoa(r.Summary.Records)
		}
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{
			shortID(r.ID),
			r.Source,
			string(r.Status),
			records,
			r.StartedAt.Format(time.RFC3339),
			duration,
		})
	}
	t.Render()
}

// shortID trims a UUID to its first group for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
