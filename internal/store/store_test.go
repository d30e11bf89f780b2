package store

import (
	"errors"
	"testing"

	"github.com/curtislbyrd/D3tectConvert/internal/dataset"
)

func testRecords() []dataset.Record {
	return []dataset.Record{
		{AttackID: "T1566", AttackName: "Phishing", D3FEND: []dataset.Countermeasure{
			{ID: "D3-UBA", Name: "User Behavior Analysis", D3FENDID: "D3-UBA"},
		}},
		{AttackID: "T1566.001", AttackName: "Spearphishing Attachment", D3FEND: []dataset.Countermeasure{
			{ID: "D3-UBA", Name: "User Behavior Analysis", D3FENDID: "D3-UBA"},
			{ID: "D3-NTA", Name: "Network Traffic Analysis", D3FENDID: "D3-NTA"},
		}},
		{AttackID: "T1059", AttackName: "Command and Scripting Interpreter"},
		{AttackID: "T1003", AttackName: "OS Credential Dumping"},
	}
}

func mustStore(t *testing.T, records []dataset.Record) *Store {
	t.Helper()
	s, _, err := New(records)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestGetByID(t *testing.T) {
	s := mustStore(t, testRecords())

	rec, ok := s.GetByID("T1566.001")
	if !ok {
		t.Fatal("expected T1566.001 to be found")
	}
	if rec.AttackName != "Spearphishing Attachment" {
		t.Errorf("expected Spearphishing Attachment, got %q", rec.AttackName)
	}
	if len(rec.D3FEND) != 2 {
		t.Errorf("expected 2 countermeasures, got %d", len(rec.D3FEND))
	}
}

func TestGetByID_CaseInsensitive(t *testing.T) {
	s := mustStore(t, testRecords())

	if _, ok := s.GetByID("t1566.001"); !ok {
		t.Error("expected lowercase id to resolve")
	}
	if _, ok := s.GetByID("  T1566.001  "); !ok {
		t.Error("expected surrounding whitespace to be ignored")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	s := mustStore(t, testRecords())

	if _, ok := s.GetByID("T9999"); ok {
		t.Error("expected T9999 to be absent")
	}
}

func TestNew_SkipsMalformedRows(t *testing.T) {
	records := append(testRecords(),
		dataset.Record{AttackID: "", AttackName: "nameless id"},
		dataset.Record{AttackID: "T4444", AttackName: ""},
	)
	s, stats, err := New(records)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if stats.Skipped != 2 {
		t.Errorf("expected 2 skipped rows, got %d", stats.Skipped)
	}
	if s.Len() != 4 {
		t.Errorf("expected 4 records, got %d", s.Len())
	}
}

func TestNew_DuplicateLastWriteWins(t *testing.T) {
	records := append(testRecords(),
		dataset.Record{AttackID: "T1566", AttackName: "Phishing (revised)"},
	)
	s, stats, err := New(records)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if stats.Duplicates != 1 {
		t.Errorf("expected 1 duplicate, got %d", stats.Duplicates)
	}
	rec, _ := s.GetByID("T1566")
	if rec.AttackName != "Phishing (revised)" {
		t.Errorf("expected last write to win, got %q", rec.AttackName)
	}
	// The duplicate keeps the original dataset position.
	if got := s.SampleIDs(1)[0]; got != "T1566" {
		t.Errorf("expected T1566 to keep first position, got %s", got)
	}
}

func TestNew_EmptyDataset(t *testing.T) {
	if _, _, err := New(nil); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("expected ErrEmptyDataset, got %v", err)
	}
	if _, _, err := New([]dataset.Record{{AttackID: "", AttackName: ""}}); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("expected ErrEmptyDataset for all-skipped rows, got %v", err)
	}
}

func TestMatchIDPrefix(t *testing.T) {
	s := mustStore(t, testRecords())

	recs := s.MatchIDPrefix("T1566")
	if len(recs) != 2 {
		t.Fatalf("expected parent and sub-technique, got %d", len(recs))
	}
	if recs[0].AttackID != "T1566" || recs[1].AttackID != "T1566.001" {
		t.Errorf("expected dataset order [T1566 T1566.001], got [%s %s]", recs[0].AttackID, recs[1].AttackID)
	}

	if got := s.MatchIDPrefix("T9"); got != nil {
		t.Errorf("expected no matches for T9, got %d", len(got))
	}
}

func TestSearchByText_Tiers(t *testing.T) {
	records := []dataset.Record{
		{AttackID: "T1003", AttackName: "OS Credential Dumping"},
		{AttackID: "T1566", AttackName: "Phishing"},
		{AttackID: "T1566.001", AttackName: "Spearphishing Attachment"},
		{AttackID: "T1598", AttackName: "Phishing for Information"},
	}
	s := mustStore(t, records)

	// "phishing": prefix match on two names, substring on one.
	got := s.SearchByText("phishing", 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
	if got[0].AttackID != "T1566" || got[1].AttackID != "T1598" {
		t.Errorf("expected prefix tier first in dataset order, got [%s %s]", got[0].AttackID, got[1].AttackID)
	}
	if got[2].AttackID != "T1566.001" {
		t.Errorf("expected substring tier last, got %s", got[2].AttackID)
	}
}

func TestSearchByText_ExactIDFirst(t *testing.T) {
	records := []dataset.Record{
		{AttackID: "T1003.001", AttackName: "LSASS Memory"},
		{AttackID: "T1003", AttackName: "OS Credential Dumping"},
	}
	s := mustStore(t, records)

	got := s.SearchByText("t1003", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].AttackID != "T1003" {
		t.Errorf("expected exact id match ranked first, got %s", got[0].AttackID)
	}
}

func TestSearchByText_Limit(t *testing.T) {
	s := mustStore(t, testRecords())

	if got := s.SearchByText("t", 2); len(got) != 2 {
		t.Errorf("expected limit to cap results at 2, got %d", len(got))
	}
	if got := s.SearchByText("t", 0); got != nil {
		t.Errorf("expected nil for non-positive limit, got %d", len(got))
	}
}

func TestSearchByText_CompositionInsensitive(t *testing.T) {
	// Name stored in decomposed form (e + combining acute) must match a
	// query typed in the precomposed form, and the reverse.
	const decomposed = "cafe\u0301"
	const composed = "caf\u00e9"

	s := mustStore(t, []dataset.Record{
		{AttackID: "T1534", AttackName: "Internal Spearphishing (" + decomposed + ")"},
	})

	if got := s.SearchByText(composed, 10); len(got) != 1 {
		t.Errorf("composed query missed decomposed name: %d matches", len(got))
	}
	if got := s.SearchByText(decomposed, 10); len(got) != 1 {
		t.Errorf("decomposed query missed decomposed name: %d matches", len(got))
	}
	if got := s.ListAll(composed, 10); len(got) != 1 {
		t.Errorf("composed filter missed decomposed name: %d entries", len(got))
	}
}

func TestListAll(t *testing.T) {
	s := mustStore(t, testRecords())

	all := s.ListAll("", 0)
	if len(all) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(all))
	}
	seen := make(map[string]bool)
	for _, e := range all {
		if seen[e.ID] {
			t.Errorf("duplicate id %s in listing", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestListAll_FilterAndLimit(t *testing.T) {
	s := mustStore(t, testRecords())

	got := s.ListAll("phish", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 filtered entries, got %d", len(got))
	}

	if got := s.ListAll("", 3); len(got) != 3 {
		t.Errorf("expected limit 3, got %d", len(got))
	}
	if got := s.ListAll("", 10); len(got) > 10 {
		t.Errorf("limit exceeded: %d", len(got))
	}
}

func TestCountermeasures(t *testing.T) {
	s := mustStore(t, testRecords())
	if got := s.Countermeasures(); got != 3 {
		t.Errorf("expected 3 countermeasures, got %d", got)
	}
}
