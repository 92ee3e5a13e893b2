// Package report appends DuplicateRecords to a CSV output sink, writing a
// header row only the first time the file is created (or found empty),
// matching the append-only contract external tooling expects.
package report

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/nearsift/nearsift/domain"
)

// Columns selects which CSV shape a Writer emits, since the column set
// varies by backend and single-corpus-vs-multi-corpus mode.
type Columns int

const (
	// ColumnsLSHSingle emits `key, dup_key` for a single-corpus LSH run.
	ColumnsLSHSingle Columns = iota
	// ColumnsLSHMulti emits `corpus, key, dup_key` for a multi-corpus LSH run.
	ColumnsLSHMulti
	// ColumnsBloom emits `corpus, dup_key` — only the observer side is known.
	ColumnsBloom
)

func (c Columns) header() []string {
	switch c {
	case ColumnsLSHSingle:
		return []string{"key", "dup_key"}
	case ColumnsLSHMulti:
		return []string{"corpus", "key", "dup_key"}
	case ColumnsBloom:
		return []string{"corpus", "dup_key"}
	default:
		return nil
	}
}

// Writer appends DuplicateRecords to path as CSV.
type Writer struct {
	f       *os.File
	w       *csv.Writer
	columns Columns
}

// Open opens path for append, creating it if missing, and writes a header
// row iff the file is empty at open time.
func Open(path string, columns Columns) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat output file %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(columns.header()); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &Writer{f: f, w: w, columns: columns}, nil
}

// Write appends one DuplicateRecord, shaping the row according to the
// Writer's configured Columns.
func (w *Writer) Write(rec domain.DuplicateRecord) error {
	var row []string
	switch w.columns {
	case ColumnsLSHSingle:
		row = []string{rec.Key, rec.DuplicateKey}
	case ColumnsLSHMulti:
		row = []string{rec.Corpus, rec.Key, rec.DuplicateKey}
	case ColumnsBloom:
		row = []string{rec.Corpus, rec.Key}
	default:
		return fmt.Errorf("unknown column mode %d", w.columns)
	}
	if err := w.w.Write(row); err != nil {
		return err
	}
	w.w.Flush()
	return w.w.Error()
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Clear truncates path to zero length (or creates it), used by the --clear
// flag to purge prior output before a run.
func Clear(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to clear output file %s: %w", path, err)
	}
	return f.Close()
}
