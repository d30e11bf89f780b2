package query

import (
	"strings"

	"github.com/curtislbyrd/D3tectConvert/internal/dataset"
	"github.com/curtislbyrd/D3tectConvert/internal/store"
)

// DefaultMaxTextMatches bounds free-text results when no explicit cap is
// configured, so a one-word query cannot pull the whole dataset into one
// response.
const DefaultMaxTextMatches = 20

// Resolver turns a classified query into the matching records with their
// countermeasure sequences attached. All lookups are pure reads.
type Resolver struct {
	st *store.Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(st *store.Store) *Resolver {
	return &Resolver{st: st}
}

// Resolve runs the lookup strategy for the query. Free-text lookups return
// at most limit records; a non-positive limit falls back to
// DefaultMaxTextMatches. An empty result means no matches; it is not an
// error.
func (r *Resolver) Resolve(c Classified, limit int) []dataset.Record {
	if limit <= 0 {
		limit = DefaultMaxTextMatches
	}
	if c.Kind == ByID {
		return r.resolveID(c.Value, limit)
	}
	return r.st.SearchByText(c.Value, limit)
}

// resolveID tries each id strategy in priority order and returns the first
// non-empty result. The chain handles a parent id typed when only
// sub-techniques exist (prefix), a sub-technique typed when only the parent
// exists (parent), and id-shaped text that matches nothing (text fallback).
func (r *Resolver) resolveID(id string, limit int) []dataset.Record {
	strategies := []func(string, int) []dataset.Record{
		r.exact,
		r.prefix,
		r.parent,
		r.text,
	}
	for _, try := range strategies {
		if recs := try(id, limit); len(recs) > 0 {
			return recs
		}
	}
	return nil
}

func (r *Resolver) exact(id string, _ int) []dataset.Record {
	rec, ok := r.st.GetByID(id)
	if !ok {
		return nil
	}
	return []dataset.Record{rec}
}

func (r *Resolver) prefix(id string, _ int) []dataset.Record {
	return r.st.MatchIDPrefix(id)
}

// parent resolves a sub-technique id to its parent when only the parent is
// present in the dataset.
func (r *Resolver) parent(id string, limit int) []dataset.Record {
	dot := strings.IndexByte(id, '.')
	if dot < 0 {
		return nil
	}
	return r.exact(id[:dot], limit)
}

func (r *Resolver) text(id string, limit int) []dataset.Record {
	return r.st.SearchByText(strings.ToLower(id), limit)
}
