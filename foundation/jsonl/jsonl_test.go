package jsonl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestWriter_Append(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "2024", "01", "02", "records.jsonl")

	w, err := OpenWriter(path)
	is.NoErr(err) // writer should create missing parent directories

	is.NoErr(w.Append(map[string]interface{}{"stop_code": "1001", "count": 2}))
	is.NoErr(w.Append(map[string]interface{}{"stop_code": "1002"}))
	is.NoErr(w.Close())

	contents, err := os.ReadFile(path)
	is.NoErr(err)
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	is.Equal(len(lines), 2)
	is.True(strings.Contains(lines[0], `"stop_code":"1001"`))
	is.True(strings.Contains(lines[1], `"stop_code":"1002"`))
}

func TestWriter_AppendToExistingFile(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "records.jsonl")

	w, err := OpenWriter(path)
	is.NoErr(err)
	is.NoErr(w.Append(map[string]interface{}{"n": 1}))
	is.NoErr(w.Close())

	// a second writer on the same path appends rather than truncating
	w2, err := OpenWriter(path)
	is.NoErr(err)
	is.NoErr(w2.Append(map[string]interface{}{"n": 2}))
	is.NoErr(w2.Close())

	contents, err := os.ReadFile(path)
	is.NoErr(err)
	is.Equal(strings.Count(string(contents), "\n"), 2)
}
