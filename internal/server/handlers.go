package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/curtislbyrd/D3tectConvert/internal/query"
)

// writeJSON encodes v as the response body with the JSON content type.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError mirrors the {"error": ...} shape the UI expects.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleSearch serves GET /search?q=. A blank query is a user-correctable
// validation error; zero matches is a normal empty result.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := r.URL.Query().Get("q")
	if maxLen := s.cfg.Load().Limits.MaxQueryLength; len(raw) > maxLen {
		writeJSONError(w, http.StatusBadRequest, "query too long")
		return
	}

	start := time.Now()
	result, kind, err := s.svc.Resolve(raw)
	if err != nil {
		if errors.Is(err, query.ErrEmptyQuery) {
			s.metrics.RecordEmptyQuery()
			s.log.LogEmptyQuery(clientIP(r), requestIDFrom(r.Context()))
			writeJSONError(w, http.StatusBadRequest, "Enter a MITRE ATT&CK ID (e.g., T1566.001) or an attack name")
			return
		}
		// Resolve has no other error paths; treat anything else as internal.
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	elapsed := time.Since(start)
	if len(result.AttackMatches) == 0 {
		s.metrics.RecordNoMatches(elapsed)
	} else {
		ids := make([]string, 0, len(result.AttackMatches))
		for _, m := range result.AttackMatches {
			ids = append(ids, m.ID)
		}
		s.metrics.RecordMatch(elapsed, ids)
	}
	s.log.LogSearch(result.Query, kind.String(), clientIP(r), requestIDFrom(r.Context()),
		len(result.AttackMatches), result.TotalD3FEND, elapsed)

	writeJSON(w, http.StatusOK, result)
}

// handleAttacks serves GET /api/attacks?q=&limit= for autocomplete.
func (s *Server) handleAttacks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	cfg := s.cfg.Load()
	filter := r.URL.Query().Get("q")
	if len(filter) > cfg.Limits.MaxQueryLength {
		writeJSONError(w, http.StatusBadRequest, "filter too long")
		return
	}

	limit := cfg.Limits.ListResults
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	writeJSON(w, http.StatusOK, s.svc.ListAttacks(filter, limit))
}

// handleDebug serves GET /debug: dataset dimensions and a sample of ids.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_loaded":          s.st.Len(),
		"total_countermeasures": s.st.Countermeasures(),
		"example_ids":           s.st.SampleIDs(5),
	})
}

// handleHealthz serves GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"techniques": s.st.Len(),
	})
}
