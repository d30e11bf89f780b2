package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadIndex loads a compact JSON search index (a flat array of records).
func ReadIndex(path string) ([]Record, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path from config
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing index %s: %w", path, err)
	}
	return records, nil
}

// WriteIndex writes records as a compact JSON index. The file is written to
// a temp path and renamed so readers never observe a partial index.
func WriteIndex(path string, records []Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	return atomicWrite(path, data)
}

// Load reads a dataset file in whatever form it is: a SQLite artifact
// (by extension), a compact JSON index (top-level array), or the raw
// upstream mappings file (top-level object).
func Load(path string) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sqlite", ".db":
		return ReadSQLite(path)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path from config
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}
	if trimmed[0] == '[' {
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parsing index %s: %w", path, err)
		}
		return records, nil
	}
	return ParseMappings(data)
}

// atomicWrite writes data to a sibling temp file and renames it into place.
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
