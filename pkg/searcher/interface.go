package searcher

import (
	"context"
	"errors"
)

// Searcher is a single retrieval source: dense, lexical, or a backend
// that can fuse both natively.
type Searcher interface {
	// Search returns up to limit results for query, best first.
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// SearcherFunc adapts a plain function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string, limit int) ([]Result, error)

// Search implements Searcher.
func (f SearcherFunc) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	return f(ctx, query, limit)
}

// Result is one retrieval hit before final ranking.
type Result struct {
	// ID is the application record ID.
	ID string

	// Score is the source-specific or fused score. After RRF fusion it
	// is the summed reciprocal-rank mass.
	Score float64

	// RankDense and RankLexical are the 1-indexed positions in each
	// source list, 0 when the source did not return this ID.
	RankDense   int
	RankLexical int

	// MatchedTerms are the lexical query terms that hit, when known.
	MatchedTerms []string
}

// ErrNoSearchers is returned when a hybrid searcher is constructed with
// neither a dense nor a lexical source.
var ErrNoSearchers = errors.New("at least one searcher is required")

// ErrHybridUnsupported is returned by native searchers whose backend
// cannot run a fused query; the hybrid searcher then fuses manually.
var ErrHybridUnsupported = errors.New("native hybrid query unsupported")
