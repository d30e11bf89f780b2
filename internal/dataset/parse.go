package dataset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// d3fendTactics are the six top-level D3FEND tactic names. Countermeasure
// labels matching one of these are classified as tactics rather than
// techniques, which changes the reference URL path.
var d3fendTactics = map[string]bool{
	"harden":  true,
	"detect":  true,
	"isolate": true,
	"deceive": true,
	"evict":   true,
	"restore": true,
}

// ParseMappings parses the raw d3fend-full-mappings.json payload into
// records grouped by ATT&CK technique id. The upstream file is a SPARQL
// result set: either {"results":{"bindings":[...]}} or a flat object keyed
// by UUID. Rows without a usable T-prefixed technique id or without any
// countermeasure are dropped. Within a technique, countermeasures are
// deduplicated by id while preserving first-seen order.
func ParseMappings(data []byte) ([]Record, error) {
	bindings, err := decodeBindings(data)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string]*Record)
	var order []string

	for _, row := range bindings {
		techID := extractValue(row, "off_tech_id")
		if techID == "" {
			techID = extractValue(row, "off_tech")
		}
		techID = strings.ToUpper(strings.TrimSpace(fragment(techID)))
		if techID == "" || !strings.HasPrefix(techID, "T") {
			continue
		}

		name := strings.TrimSpace(extractValue(row, "off_tech_label"))
		if name == "" {
			name = techID
		}

		tacticID := strings.ToUpper(strings.TrimSpace(fragment(extractValue(row, "def_tactic"))))

		rec := grouped[techID]
		if rec == nil {
			rec = &Record{AttackID: techID, AttackName: name}
			grouped[techID] = rec
			order = append(order, techID)
		}

		for _, field := range []string{"def_tech", "def_artifact"} {
			cm, ok := countermeasureFrom(row, field, tacticID)
			if !ok {
				continue
			}
			if containsID(rec.D3FEND, cm.ID) {
				continue
			}
			rec.D3FEND = append(rec.D3FEND, cm)
		}
	}

	records := make([]Record, 0, len(order))
	for _, id := range order {
		if len(grouped[id].D3FEND) == 0 {
			continue
		}
		records = append(records, *grouped[id])
	}
	return records, nil
}

// countermeasureFrom builds a countermeasure from one binding field pair
// (def_tech/def_tech_label or def_artifact/def_artifact_label). The D3FEND
// id comes from the URI fragment; when the URI has no fragment, a label
// starting with "D3" is accepted as the id directly.
func countermeasureFrom(row map[string]json.RawMessage, field, tacticID string) (Countermeasure, bool) {
	uri := extractValue(row, field)
	label := extractValue(row, field+"_label")
	if label == "" {
		label = uri
	}

	var id string
	if strings.Contains(uri, "#") {
		id = strings.TrimSpace(fragment(uri))
	} else if strings.HasPrefix(label, "D3") {
		id = label
	}
	if id == "" {
		return Countermeasure{}, false
	}

	name := strings.TrimSpace(label)
	if name == "" {
		name = id
	}

	kind := "technique"
	if d3fendTactics[strings.ToLower(name)] {
		kind = "tactic"
	}

	cm := Countermeasure{
		ID:   id,
		Name: name,
		Type: kind,
		URL:  fmt.Sprintf("https://d3fend.mitre.org/%s/d3f:%s", kind, id),
	}
	if strings.HasPrefix(id, "D3") {
		cm.D3FENDID = id
	} else {
		cm.AttackRef = id
	}
	if kind == "technique" && tacticID != "" {
		cm.TacticID = tacticID
	}
	return cm, true
}

// decodeBindings extracts the binding rows from either upstream shape.
func decodeBindings(data []byte) ([]map[string]json.RawMessage, error) {
	var envelope struct {
		Results *struct {
			Bindings []map[string]json.RawMessage `json:"bindings"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Results != nil {
		return envelope.Results.Bindings, nil
	}

	// Flat object keyed by UUID: every object-valued member is a row.
	// Keys are sorted so repeated loads of the same file produce the same
	// record order.
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("parsing mappings: %w", err)
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var bindings []map[string]json.RawMessage
	for _, k := range keys {
		var row map[string]json.RawMessage
		if err := json.Unmarshal(flat[k], &row); err != nil {
			continue
		}
		bindings = append(bindings, row)
	}
	return bindings, nil
}

// extractValue reads a binding field that is either a plain string or a
// SPARQL term object {"value": "..."}.
func extractValue(row map[string]json.RawMessage, field string) string {
	raw, ok := row[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var term struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &term); err == nil {
		return term.Value
	}
	return ""
}

// fragment returns the part after the last '#', or the input unchanged when
// there is no fragment.
func fragment(s string) string {
	if i := strings.LastIndex(s, "#"); i >= 0 {
		return s[i+1:]
	}
	return s
}

func containsID(cms []Countermeasure, id string) bool {
	for _, c := range cms {
		if c.ID == id {
			return true
		}
	}
	return false
}
