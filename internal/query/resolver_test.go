package query

import (
	"testing"

	"github.com/curtislbyrd/D3tectConvert/internal/dataset"
	"github.com/curtislbyrd/D3tectConvert/internal/store"
)

func testStore(t *testing.T, records []dataset.Record) *store.Store {
	t.Helper()
	st, _, err := store.New(records)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return st
}

func TestResolve_ExactID(t *testing.T) {
	st := testStore(t, []dataset.Record{
		{AttackID: "T1566", AttackName: "Phishing"},
		{AttackID: "T1566.001", AttackName: "Spearphishing Attachment"},
	})
	r := NewResolver(st)

	got := r.Resolve(Classified{Kind: ByID, Value: "T1566.001"}, DefaultMaxTextMatches)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if got[0].AttackID != "T1566.001" {
		t.Errorf("expected exact match to win over prefix, got %s", got[0].AttackID)
	}
}

func TestResolve_PrefixWhenParentAbsent(t *testing.T) {
	st := testStore(t, []dataset.Record{
		{AttackID: "T1566.001", AttackName: "Spearphishing Attachment"},
		{AttackID: "T1566.002", AttackName: "Spearphishing Link"},
	})
	r := NewResolver(st)

	got := r.Resolve(Classified{Kind: ByID, Value: "T1566"}, DefaultMaxTextMatches)
	if len(got) != 2 {
		t.Fatalf("expected both sub-techniques, got %d", len(got))
	}
	if got[0].AttackID != "T1566.001" || got[1].AttackID != "T1566.002" {
		t.Errorf("expected dataset order, got [%s %s]", got[0].AttackID, got[1].AttackID)
	}
}

func TestResolve_ParentFallback(t *testing.T) {
	st := testStore(t, []dataset.Record{
		{AttackID: "T1566", AttackName: "Phishing"},
	})
	r := NewResolver(st)

	got := r.Resolve(Classified{Kind: ByID, Value: "T1566.001"}, DefaultMaxTextMatches)
	if len(got) != 1 {
		t.Fatalf("expected parent fallback, got %d matches", len(got))
	}
	if got[0].AttackID != "T1566" {
		t.Errorf("expected T1566, got %s", got[0].AttackID)
	}
}

func TestResolve_IDTextFallback(t *testing.T) {
	// Id-shaped query with no id match falls through to text search, where
	// the digits still hit a name containing them.
	st := testStore(t, []dataset.Record{
		{AttackID: "T1003", AttackName: "Also known as t9999 dumping"},
	})
	r := NewResolver(st)

	got := r.Resolve(Classified{Kind: ByID, Value: "T9999"}, DefaultMaxTextMatches)
	if len(got) != 1 {
		t.Fatalf("expected text fallback match, got %d", len(got))
	}
	if got[0].AttackID != "T1003" {
		t.Errorf("expected T1003, got %s", got[0].AttackID)
	}
}

func TestResolve_NoMatches(t *testing.T) {
	st := testStore(t, []dataset.Record{
		{AttackID: "T1566", AttackName: "Phishing"},
	})
	r := NewResolver(st)

	if got := r.Resolve(Classified{Kind: ByID, Value: "T9999"}, DefaultMaxTextMatches); len(got) != 0 {
		t.Errorf("expected no matches for unknown id, got %d", len(got))
	}
	if got := r.Resolve(Classified{Kind: ByText, Value: "zzz-does-not-exist"}, DefaultMaxTextMatches); len(got) != 0 {
		t.Errorf("expected no matches for unknown text, got %d", len(got))
	}
}

func TestResolve_TextCapped(t *testing.T) {
	records := make([]dataset.Record, 0, DefaultMaxTextMatches+5)
	for i := 0; i < DefaultMaxTextMatches+5; i++ {
		records = append(records, dataset.Record{
			AttackID:   "T" + string(rune('1'+i/10)) + string(rune('0'+i%10)) + "00",
			AttackName: "Phishing Variant",
		})
	}
	st := testStore(t, records)
	r := NewResolver(st)

	// A non-positive limit falls back to the default cap.
	got := r.Resolve(Classified{Kind: ByText, Value: "phishing"}, 0)
	if len(got) != DefaultMaxTextMatches {
		t.Errorf("expected results capped at %d, got %d", DefaultMaxTextMatches, len(got))
	}

	got = r.Resolve(Classified{Kind: ByText, Value: "phishing"}, 3)
	if len(got) != 3 {
		t.Errorf("expected results capped at 3, got %d", len(got))
	}
}
