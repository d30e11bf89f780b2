// Package store holds the immutable in-memory index over the ATT&CK to
// D3FEND mapping records. It is built once at startup and only ever read
// afterward, so it is safe for concurrent use without locking.
package store

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/curtislbyrd/D3tectConvert/internal/dataset"
)

// fold normalizes a string for matching: NFC composition then lowercase,
// so composed and decomposed spellings of the same name compare equal.
func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// ErrEmptyDataset is returned by New when no usable records remain after
// validation. The service cannot start without an indexed dataset.
var ErrEmptyDataset = errors.New("dataset contains no usable records")

// DefaultListLimit caps ListAll when the caller passes a non-positive limit.
const DefaultListLimit = 500

// Entry is a minimal {id, name} pair for autocomplete listings.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Stats describes what happened during index construction.
type Stats struct {
	Loaded          int
	Skipped         int      // rows missing id or name
	Duplicates      int      // ids seen more than once (last write wins)
	DuplicateIDs    []string // up to the first few duplicate ids, for logging
	Countermeasures int      // total countermeasures across loaded records
}

const maxReportedDuplicates = 10

// Store indexes mapping records by exact id and by lowercase id/name text.
type Store struct {
	records []dataset.Record // dataset order
	byID    map[string]int
	lowerID []string // lowercase id per record, same index as records
	lowerNm []string // lowercase name per record
}

// New builds a store from records. Rows missing an id or name are skipped
// and counted. A duplicate id replaces the earlier record in place, keeping
// the original dataset position. An entirely unusable dataset is an error.
func New(records []dataset.Record) (*Store, Stats, error) {
	s := &Store{byID: make(map[string]int, len(records))}
	var stats Stats

	for _, rec := range records {
		rec.AttackID = strings.ToUpper(strings.TrimSpace(rec.AttackID))
		rec.AttackName = strings.TrimSpace(rec.AttackName)
		if rec.AttackID == "" || rec.AttackName == "" {
			stats.Skipped++
			continue
		}
		if idx, seen := s.byID[rec.AttackID]; seen {
			stats.Duplicates++
			if len(stats.DuplicateIDs) < maxReportedDuplicates {
				stats.DuplicateIDs = append(stats.DuplicateIDs, rec.AttackID)
			}
			s.records[idx] = rec
			s.lowerID[idx] = strings.ToLower(rec.AttackID)
			s.lowerNm[idx] = fold(rec.AttackName)
			continue
		}
		s.byID[rec.AttackID] = len(s.records)
		s.records = append(s.records, rec)
		s.lowerID = append(s.lowerID, strings.ToLower(rec.AttackID))
		s.lowerNm = append(s.lowerNm, fold(rec.AttackName))
	}

	if len(s.records) == 0 {
		return nil, stats, ErrEmptyDataset
	}

	stats.Loaded = len(s.records)
	for _, rec := range s.records {
		stats.Countermeasures += len(rec.D3FEND)
	}
	return s, stats, nil
}

// Len returns the number of indexed techniques.
func (s *Store) Len() int {
	return len(s.records)
}

// Countermeasures returns the total number of stored countermeasures.
func (s *Store) Countermeasures() int {
	n := 0
	for _, rec := range s.records {
		n += len(rec.D3FEND)
	}
	return n
}

// GetByID returns the record for an exact technique id. The id is matched
// case-insensitively; callers normally pass an already-uppercased id.
func (s *Store) GetByID(id string) (dataset.Record, bool) {
	idx, ok := s.byID[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return dataset.Record{}, false
	}
	return s.records[idx], true
}

// MatchIDPrefix returns all records whose id starts with prefix, in dataset
// order. "T1566" matches T1566 itself and every T1566.### sub-technique.
func (s *Store) MatchIDPrefix(prefix string) []dataset.Record {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil
	}
	var out []dataset.Record
	for _, rec := range s.records {
		if strings.HasPrefix(rec.AttackID, prefix) {
			out = append(out, rec)
		}
	}
	return out
}

// SearchByText returns records whose id or name contains text (matched
// case- and composition-insensitively), ranked in three tiers: exact id
// match, then prefix
// match on id or name, then substring match. Each tier preserves dataset
// order. The result is capped at limit.
func (s *Store) SearchByText(text string, limit int) []dataset.Record {
	text = fold(strings.TrimSpace(text))
	if text == "" || limit <= 0 {
		return nil
	}

	var exact, prefix, substr []int
	for i := range s.records {
		id, name := s.lowerID[i], s.lowerNm[i]
		switch {
		case id == text:
			exact = append(exact, i)
		case strings.HasPrefix(id, text) || strings.HasPrefix(name, text):
			prefix = append(prefix, i)
		case strings.Contains(id, text) || strings.Contains(name, text):
			substr = append(substr, i)
		}
	}

	out := make([]dataset.Record, 0, limit)
	for _, tier := range [][]int{exact, prefix, substr} {
		for _, i := range tier {
			if len(out) == limit {
				return out
			}
			out = append(out, s.records[i])
		}
	}
	return out
}

// ListAll returns {id, name} pairs for autocomplete, optionally filtered by
// a case-insensitive substring on id or name. A non-positive limit falls
// back to DefaultListLimit. Entries are unique by id because the index is.
func (s *Store) ListAll(filter string, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	filter = fold(strings.TrimSpace(filter))

	out := make([]Entry, 0, min(limit, len(s.records)))
	for i, rec := range s.records {
		if filter != "" && !strings.Contains(s.lowerID[i], filter) && !strings.Contains(s.lowerNm[i], filter) {
			continue
		}
		out = append(out, Entry{ID: rec.AttackID, Name: rec.AttackName})
		if len(out) == limit {
			break
		}
	}
	return out
}

// SampleIDs returns up to n technique ids in dataset order, for diagnostics.
func (s *Store) SampleIDs(n int) []string {
	if n > len(s.records) {
		n = len(s.records)
	}
	ids := make([]string, 0, n)
	for _, rec := range s.records[:n] {
		ids = append(ids, rec.AttackID)
	}
	return ids
}
