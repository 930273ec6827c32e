package sink

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/marketpulse/scrape-cli/internal/model"
)

// XLSXFile collects records into a single-sheet workbook and saves it on
// Close. Unlike the JSON and CSV sinks the workbook is built in memory;
// the xlsx format has no streaming append. Column selection follows the
// CSV sink: fixed by the first batch.
type XLSXFile struct {
	path    string
	file    *xlsx.File
	sheet   *xlsx.Sheet
	columns []string
	rows    int
	closed  bool
}

// NewXLSXFile prepares a workbook destined for path, creating parent
// directories as needed.
func NewXLSXFile(path string) (*XLSXFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sink: xlsx: create directory for %s", path)
		}
	}
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Records")
	if err != nil {
		return nil, eris.Wrap(err, "sink: xlsx: add sheet")
	}
	return &XLSXFile{path: path, file: f, sheet: sheet}, nil
}

func (s *XLSXFile) Name() string { return "xlsx:" + s.path }

func (s *XLSXFile) WriteBatch(_ context.Context, records []model.Record) (Result, error) {
	if s.closed {
		return Result{}, eris.New("sink: xlsx: write after close")
	}
	if len(records) == 0 {
		return Result{}, nil
	}

	if s.columns == nil {
		s.columns = columnsFor(records)
		header := s.sheet.AddRow()
		for _, col := range s.columns {
			header.AddCell().SetString(col)
		}
	}

	for _, rec := range records {
		row := s.sheet.AddRow()
		for _, col := range s.columns {
			switch v := rec[col].(type) {
			case nil:
				row.AddCell()
			case float64:
				row.AddCell().SetFloat(v)
			case int:
				row.AddCell().SetInt(v)
			case string:
				row.AddCell().SetString(v)
			default:
				row.AddCell().SetValue(v)
			}
		}
		s.rows++
	}
	return Result{Inserted: len(records)}, nil
}

// Close saves the workbook to disk.
func (s *XLSXFile) Close(_ context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.file.Save(s.path); err != nil {
		return eris.Wrapf(err, "sink: xlsx: save %s", s.path)
	}
	return nil
}
