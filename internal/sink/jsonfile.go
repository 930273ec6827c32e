package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/marketpulse/scrape-cli/internal/model"
)

// JSONFile streams records into a file as one JSON array. Array framing is
// written incrementally: the file is not valid JSON until Close succeeds,
// at which point it is a complete pretty-printed array (possibly empty).
type JSONFile struct {
	path    string
	f       *os.File
	w       *bufio.Writer
	written int
	closed  bool
}

// NewJSONFile creates (or truncates) the file at path, creating parent
// directories as needed.
func NewJSONFile(path string) (*JSONFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sink: json: create directory for %s", path)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sink: json: create %s", path)
	}
	return &JSONFile{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func (s *JSONFile) Name() string { return "json:" + s.path }

// WriteBatch appends the records to the array. Every record counts as
// inserted; a file has nothing to update.
func (s *JSONFile) WriteBatch(_ context.Context, records []model.Record) (Result, error) {
	if s.closed {
		return Result{}, eris.New("sink: json: write after close")
	}
	for _, rec := range records {
		data, err := json.MarshalIndent(rec, "  ", "  ")
		if err != nil {
			return Result{}, eris.Wrap(err, "sink: json: marshal record")
		}
		sep := ",\n  "
		if s.written == 0 {
			sep = "[\n  "
		}
		if _, err := s.w.WriteString(sep); err != nil {
			return Result{}, eris.Wrapf(err, "sink: json: write %s", s.path)
		}
		if _, err := s.w.Write(data); err != nil {
			return Result{}, eris.Wrapf(err, "sink: json: write %s", s.path)
		}
		s.written++
	}
	// Flush per batch so progress is visible in the file as the run goes.
	if err := s.w.Flush(); err != nil {
		return Result{}, eris.Wrapf(err, "sink: json: flush %s", s.path)
	}
	return Result{Inserted: len(records)}, nil
}

// Close writes the closing bracket and flushes. After Close the file is a
// valid JSON array.
func (s *JSONFile) Close(_ context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	tail := "[]\n"
	if s.written > 0 {
		tail = "\n]\n"
	}
	if _, err := s.w.WriteString(tail); err != nil {
		return eris.Wrapf(err, "sink: json: finalize %s", s.path)
	}
	if err := s.w.Flush(); err != nil {
		return eris.Wrapf(err, "sink: json: flush %s", s.path)
	}
	if err := s.f.Close(); err != nil {
		return eris.Wrapf(err, "sink: json: close %s", s.path)
	}
	return nil
}
