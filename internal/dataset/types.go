// Package dataset loads the ATT&CK to D3FEND mapping data that the rest of
// the service indexes and queries. It understands three on-disk forms: the
// raw d3fend-full-mappings.json file published by MITRE, the compact JSON
// search index generated from it, and an equivalent SQLite artifact.
package dataset

// Countermeasure is a single D3FEND entry associated with an ATT&CK
// technique. ID is always set; the remaining fields are present only when
// the source row carried them.
type Countermeasure struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	TacticID  string `json:"tactic_id,omitempty"`
	D3FENDID  string `json:"d3fend_id,omitempty"`
	AttackRef string `json:"attack_ref,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Record is one ATT&CK technique with its ordered countermeasure sequence.
// The order of D3FEND entries is the order they appeared in the upstream
// mapping file and is preserved end to end.
type Record struct {
	AttackID   string           `json:"attack_id"`
	AttackName string           `json:"attack_name"`
	D3FEND     []Countermeasure `json:"d3fend"`
}
