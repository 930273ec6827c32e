package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/marketpulse/scrape-cli/internal/model"
)

// CSVFile streams records into a CSV file. The column set is fixed by the
// first batch: the sorted union of its record keys, with the hash and url
// fields pulled to the front. Later batches fill missing columns with an
// empty string and drop keys outside the header.
type CSVFile struct {
	path    string
	f       *os.File
	w       *csv.Writer
	columns []string
	closed  bool
}

// NewCSVFile creates (or truncates) the file at path, creating parent
// directories as needed.
func NewCSVFile(path string) (*CSVFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sink: csv: create directory for %s", path)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sink: csv: create %s", path)
	}
	return &CSVFile{path: path, f: f, w: csv.NewWriter(f)}, nil
}

func (s *CSVFile) Name() string { return "csv:" + s.path }

func (s *CSVFile) WriteBatch(_ context.Context, records []model.Record) (Result, error) {
	if s.closed {
		return Result{}, eris.New("sink: csv: write after close")
	}
	if len(records) == 0 {
		return Result{}, nil
	}

	if s.columns == nil {
		s.columns = columnsFor(records)
		if err := s.w.Write(s.columns); err != nil {
			return Result{}, eris.Wrapf(err, "sink: csv: write header to %s", s.path)
		}
	}

	row := make([]string, len(s.columns))
	for _, rec := range records {
		for i, col := range s.columns {
			row[i] = cellString(rec[col])
		}
		if err := s.w.Write(row); err != nil {
			return Result{}, eris.Wrapf(err, "sink: csv: write %s", s.path)
		}
	}
	return Result{Inserted: len(records)}, nil
}

func (s *CSVFile) Close(_ context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return eris.Wrapf(err, "sink: csv: flush %s", s.path)
	}
	if err := s.f.Close(); err != nil {
		return eris.Wrapf(err, "sink: csv: close %s", s.path)
	}
	return nil
}

// columnsFor builds the header: hash and url first when present, the rest
// of the key union sorted.
func columnsFor(records []model.Record) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			seen[k] = true
		}
	}

	var head, rest []string
	for _, k := range []string{model.FieldHash, model.FieldURL} {
		if seen[k] {
			head = append(head, k)
			delete(seen, k)
		}
	}
	for k := range seen {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(head, rest...)
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
