package query

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/curtislbyrd/D3tectConvert/internal/store"
)

// ErrEmptyQuery is returned by Resolve for input that is blank after
// trimming. It is a user-correctable validation error, not a fault.
var ErrEmptyQuery = errors.New("empty query")

// Service is the single entry point the request-handling layer calls.
type Service struct {
	st         *store.Store
	resolver   *Resolver
	maxMatches atomic.Int32
}

// NewService creates the query service over an already-built store.
// maxMatches caps free-text results per query; a non-positive value falls
// back to DefaultMaxTextMatches.
func NewService(st *store.Store, maxMatches int) *Service {
	s := &Service{st: st, resolver: NewResolver(st)}
	s.SetMaxMatches(maxMatches)
	return s
}

// SetMaxMatches updates the free-text result cap. Config reloads call it
// while requests are in flight, so the cap is stored atomically.
func (s *Service) SetMaxMatches(n int) {
	if n <= 0 {
		n = DefaultMaxTextMatches
	}
	s.maxMatches.Store(int32(n)) //nolint:gosec // G115: capped well below int32 range
}

// Resolve classifies, resolves, and shapes a raw query. For any non-empty
// input it returns a valid ShapedResult; zero matches is a normal empty
// result, never an error. The only error is ErrEmptyQuery.
func (s *Service) Resolve(raw string) (ShapedResult, Kind, error) {
	if strings.TrimSpace(raw) == "" {
		return ShapedResult{}, ByText, ErrEmptyQuery
	}
	c := Classify(raw)
	matches := s.resolver.Resolve(c, int(s.maxMatches.Load()))
	return Shape(c.Value, matches), c.Kind, nil
}

// ListAttacks returns {id, name} pairs for autocomplete, optionally
// filtered by substring and capped at limit.
func (s *Service) ListAttacks(filter string, limit int) []store.Entry {
	return s.st.ListAll(filter, limit)
}
