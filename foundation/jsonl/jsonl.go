// Package jsonl provides an append-only writer for line delimited json files.
package jsonl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Writer appends records to a single jsonl file, one json document per line.
// The parent directory is created on open if it doesn't exist yet.
type Writer struct {
	path string
	file *os.File
}

// OpenWriter opens path for appending, creating parent directories as needed
func OpenWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating directory for %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &Writer{path: path, file: file}, nil
}

// Path returns the file path the writer appends to
func (w *Writer) Path() string {
	return w.path
}

// Append marshals record as json and writes it followed by a newline
func (w *Writer) Append(record interface{}) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling record for %s: %w", w.path, err)
	}
	line = append(line, '\n')
	if _, err = w.file.Write(line); err != nil {
		return fmt.Errorf("appending to %s: %w", w.path, err)
	}
	return nil
}

// Close closes the underlying file handle
func (w *Writer) Close() error {
	return w.file.Close()
}
