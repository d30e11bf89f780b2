package metrics

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStatsHandler(t *testing.T) {
	m := New()
	m.RecordMatch(time.Millisecond, []string{"T1566"})
	m.RecordMatch(2*time.Millisecond, []string{"T1566", "T1003"})
	m.RecordNoMatches(time.Millisecond)
	m.RecordEmptyQuery()

	rec := httptest.NewRecorder()
	m.StatsHandler()(rec, httptest.NewRequest("GET", "/stats", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got struct {
		Queries struct {
			Total      int64   `json:"total"`
			Matched    int64   `json:"matched"`
			NoMatches  int64   `json:"no_matches"`
			EmptyQuery int64   `json:"empty_query"`
			MatchRate  float64 `json:"match_rate"`
		} `json:"queries"`
		TopTechniques []struct {
			Name  string `json:"name"`
			Count int64  `json:"count"`
		} `json:"top_techniques"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}

	if got.Queries.Total != 4 || got.Queries.Matched != 2 || got.Queries.NoMatches != 1 || got.Queries.EmptyQuery != 1 {
		t.Errorf("queries = %+v", got.Queries)
	}
	if got.Queries.MatchRate != 0.5 {
		t.Errorf("MatchRate = %v, want 0.5", got.Queries.MatchRate)
	}
	if len(got.TopTechniques) != 2 {
		t.Fatalf("expected 2 ranked techniques, got %d", len(got.TopTechniques))
	}
	if got.TopTechniques[0].Name != "T1566" || got.TopTechniques[0].Count != 2 {
		t.Errorf("top entry = %+v", got.TopTechniques[0])
	}
}

func TestTopTechniquesCapped(t *testing.T) {
	m := New()
	for i := 0; i < maxTopEntries+50; i++ {
		m.RecordMatch(0, []string{fmt.Sprintf("T%04d", i)})
	}
	if len(m.topTechniques) != maxTopEntries {
		t.Errorf("map grew to %d, cap is %d", len(m.topTechniques), maxTopEntries)
	}
	// Ids already in the table still count after the cap is hit.
	m.RecordMatch(0, []string{"T0000"})
	if m.topTechniques["T0000"] != 2 {
		t.Errorf("T0000 count = %d, want 2", m.topTechniques["T0000"])
	}
}

func TestPrometheusHandler(t *testing.T) {
	m := New()
	m.RecordMatch(time.Millisecond, []string{"T1566"})
	m.RecordRateLimited()
	m.SetDatasetSize(300, 1200)

	rec := httptest.NewRecorder()
	m.PrometheusHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`d3tect_queries_total{result="match"} 1`,
		`d3tect_queries_total{result="rate_limited"} 1`,
		"d3tect_ratelimited_total 1",
		"d3tect_dataset_techniques 300",
		"d3tect_dataset_countermeasures 1200",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
