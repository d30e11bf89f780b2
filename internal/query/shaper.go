package query

import "github.com/curtislbyrd/D3tectConvert/internal/dataset"

// placeholderURL stands in when a source row carried no reference link.
const placeholderURL = "https://d3fend.mitre.org/"

// ShapedResult is the response contract handed to the presentation layer.
type ShapedResult struct {
	Query         string        `json:"query"`
	TotalD3FEND   int           `json:"total_d3fend"`
	AttackMatches []AttackMatch `json:"attack_matches"`
}

// AttackMatch is one matched technique with its shaped countermeasures.
type AttackMatch struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	D3FEND []ShapedCountermeasure `json:"d3fend"`
}

// ShapedCountermeasure is the wire form of one countermeasure. Optional
// badge fields are omitted rather than nulled to keep payloads compact.
type ShapedCountermeasure struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url,omitempty"`
	Type      string `json:"type,omitempty"`
	AttackRef string `json:"attack_ref,omitempty"`
	TacticID  string `json:"tactic_id,omitempty"`
	D3FENDID  string `json:"d3fend_id,omitempty"`
}

// Shape transforms resolved records into the response contract. It copies
// each countermeasure sequence and drops the trailing entry: the last row
// per technique in the upstream dataset is a known duplicate artifact.
// Shaping is total; an empty input yields an empty (not nil) match list.
func Shape(normalizedQuery string, matches []dataset.Record) ShapedResult {
	out := ShapedResult{
		Query:         normalizedQuery,
		AttackMatches: make([]AttackMatch, 0, len(matches)),
	}

	for _, rec := range matches {
		m := AttackMatch{
			ID:     rec.AttackID,
			Name:   rec.AttackName,
			D3FEND: make([]ShapedCountermeasure, 0, len(rec.D3FEND)),
		}
		// Trailing-drop: exclude the last entry of a non-empty sequence.
		// TODO: drop this trim once upstream stops emitting the duplicate
		// final row per technique.
		kept := rec.D3FEND
		if len(kept) > 0 {
			kept = kept[:len(kept)-1]
		}
		for _, cm := range kept {
			m.D3FEND = append(m.D3FEND, shapeCountermeasure(cm))
		}
		out.TotalD3FEND += len(m.D3FEND)
		out.AttackMatches = append(out.AttackMatches, m)
	}
	return out
}

// shapeCountermeasure applies the display-identity rule: the shown id is
// the D3FEND id when present, else the ATT&CK-side reference, else the raw
// internal id, never with a synthetic prefix.
func shapeCountermeasure(cm dataset.Countermeasure) ShapedCountermeasure {
	label := cm.ID
	switch {
	case cm.D3FENDID != "":
		label = cm.D3FENDID
	case cm.AttackRef != "":
		label = cm.AttackRef
	}

	url := cm.URL
	if url == "" {
		url = placeholderURL
	}

	return ShapedCountermeasure{
		ID:        label,
		Name:      cm.Name,
		URL:       url,
		Type:      cm.Type,
		AttackRef: cm.AttackRef,
		TacticID:  cm.TacticID,
		D3FENDID:  cm.D3FENDID,
	}
}
