package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Writer streams output rows to a temporary sibling of the destination path.
// Every row is flushed and synced before WriteRow returns, so killing the
// process at any point leaves a complete prefix of valid rows behind the
// header. Publish atomically renames the temporary file over the destination;
// until then the previous output file (if any) is untouched.
type Writer struct {
	path    string
	tmpPath string
	file    *os.File
	csv     *csv.Writer
	rows    int
}

// NewWriter creates the temporary file and writes the header row.
func NewWriter(path string, header []string) (*Writer, error) {
	tmpPath := path + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create output temp file: %w", err)
	}

	w := &Writer{
		path:    path,
		tmpPath: tmpPath,
		file:    f,
		csv:     csv.NewWriter(f),
	}
	if err := w.csv.Write(header); err != nil {
		w.Discard()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := w.sync(); err != nil {
		w.Discard()
		return nil, err
	}
	return w, nil
}

// WriteRow appends one row and forces it to durable storage.
func (w *Writer) WriteRow(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	if err := w.sync(); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows returns the number of data rows written so far.
func (w *Writer) Rows() int {
	return w.rows
}

// Publish closes the temporary file and renames it over the destination,
// making the rows written so far visible to readers as a complete table.
func (w *Writer) Publish() error {
	if w.file == nil {
		return nil
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		w.file = nil
		return fmt.Errorf("flush output: %w", err)
	}
	if err := w.file.Close(); err != nil {
		w.file = nil
		return fmt.Errorf("close output temp file: %w", err)
	}
	w.file = nil
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		return fmt.Errorf("publish output: %w", err)
	}
	return nil
}

// Discard closes and removes the temporary file without publishing.
func (w *Writer) Discard() {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
	os.Remove(w.tmpPath)
}

func (w *Writer) sync() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	return nil
}
