// Package query turns a raw search string into shaped lookup results:
// classify the query, resolve it against the store, shape the matches into
// the response contract. Every step is a pure function over the immutable
// store, so concurrent requests need no coordination.
package query

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind says how a query should be resolved.
type Kind int

// Query kinds.
const (
	ByID Kind = iota // technique-id shaped, exact-or-prefix lookup
	ByText           // free text, name/id substring search
)

func (k Kind) String() string {
	if k == ByID {
		return "id"
	}
	return "text"
}

// Classified is a query with its resolution strategy decided and its value
// normalized: uppercased for ids, lowercased and NFC-normalized for text.
type Classified struct {
	Kind  Kind
	Value string
}

// idShape matches a technique identifier: T followed by digits, with an
// optional .digits sub-technique suffix, case-insensitive.
var idShape = regexp.MustCompile(`^[Tt][0-9]+(\.[0-9]+)?$`)

// Classify decides how to interpret a trimmed, non-empty query string.
// Blank input is rejected upstream; Classify itself never fails.
func Classify(raw string) Classified {
	q := strings.TrimSpace(raw)
	if idShape.MatchString(q) {
		return Classified{Kind: ByID, Value: strings.ToUpper(q)}
	}
	return Classified{Kind: ByText, Value: strings.ToLower(norm.NFC.String(q))}
}
