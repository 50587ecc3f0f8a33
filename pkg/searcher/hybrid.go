// Package searcher implements hybrid dense+lexical retrieval with
// Reciprocal Rank Fusion. A backend that can answer a fused query
// natively is tried first; everything else gets the manual path: both
// sources searched in parallel, ranks fused with 1/(k+rank).
package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultRRFConstant is the rank-smoothing constant k in 1/(k+rank).
const DefaultRRFConstant = 60

// HybridSearcher combines a dense and a lexical source. Thread-safe.
type HybridSearcher struct {
	mu      sync.RWMutex
	native  Searcher
	dense   Searcher
	lexical Searcher
	rrfK    int
}

// Option configures a HybridSearcher.
type Option func(*HybridSearcher)

// WithNativeSearcher sets a backend that may answer fused queries in a
// single call. It is allowed to return ErrHybridUnsupported.
func WithNativeSearcher(s Searcher) Option {
	return func(h *HybridSearcher) { h.native = s }
}

// WithDenseSearcher sets the embedding-based source.
func WithDenseSearcher(s Searcher) Option {
	return func(h *HybridSearcher) { h.dense = s }
}

// WithLexicalSearcher sets the BM25 keyword source.
func WithLexicalSearcher(s Searcher) Option {
	return func(h *HybridSearcher) { h.lexical = s }
}

// WithRRFConstant overrides the fusion smoothing constant.
func WithRRFConstant(k int) Option {
	return func(h *HybridSearcher) {
		if k > 0 {
			h.rrfK = k
		}
	}
}

// NewHybridSearcher builds a searcher from options. At least one of the
// dense or lexical sources must be set.
func NewHybridSearcher(opts ...Option) (*HybridSearcher, error) {
	h := &HybridSearcher{rrfK: DefaultRRFConstant}
	for _, opt := range opts {
		opt(h)
	}
	if h.dense == nil && h.lexical == nil {
		return nil, ErrNoSearchers
	}
	return h, nil
}

// Search retrieves up to limit candidates for query.
//
// The native backend is tried first; on ErrHybridUnsupported (or any
// native failure) the dense and lexical sources run in parallel and
// their ranks are RRF-fused. If one source fails the other's results
// are returned alone; only both failing is an error.
func (h *HybridSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.native != nil {
		results, err := h.native.Search(ctx, query, limit)
		if err == nil {
			return truncate(results, limit), nil
		}
		if !errors.Is(err, ErrHybridUnsupported) {
			slog.Warn("native hybrid search failed, falling back", "error", err)
		}
	}

	if h.dense == nil {
		return h.lexical.Search(ctx, query, limit)
	}
	if h.lexical == nil {
		return h.dense.Search(ctx, query, limit)
	}
	return h.manualSearch(ctx, query, limit)
}

func (h *HybridSearcher) manualSearch(ctx context.Context, query string, limit int) ([]Result, error) {
	var (
		denseResults, lexResults []Result
		denseErr, lexErr         error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		denseResults, denseErr = h.dense.Search(gctx, query, limit)
		return nil // degradation handled below
	})
	g.Go(func() error {
		lexResults, lexErr = h.lexical.Search(gctx, query, limit)
		return nil
	})
	_ = g.Wait()

	if denseErr != nil && lexErr != nil {
		return nil, fmt.Errorf("all sources failed: dense: %v, lexical: %v", denseErr, lexErr)
	}
	if denseErr != nil {
		slog.Warn("dense search failed, lexical only", "error", denseErr)
		return truncate(withRanks(lexResults, false), limit), nil
	}
	if lexErr != nil {
		slog.Warn("lexical search failed, dense only", "error", lexErr)
		return truncate(withRanks(denseResults, true), limit), nil
	}

	return truncate(h.fuse(denseResults, lexResults), limit), nil
}

// fuse applies Reciprocal Rank Fusion: each list contributes
// 1/(k + rank) per candidate, ranks 1-indexed, contributions summed.
// Metadata merges last-write-wins, lexical over dense.
func (h *HybridSearcher) fuse(dense, lexical []Result) []Result {
	fused := make(map[string]*Result)

	for i, r := range dense {
		rank := i + 1
		fused[r.ID] = &Result{
			ID:        r.ID,
			Score:     1.0 / float64(h.rrfK+rank),
			RankDense: rank,
		}
	}
	for i, r := range lexical {
		rank := i + 1
		if existing, ok := fused[r.ID]; ok {
			existing.Score += 1.0 / float64(h.rrfK+rank)
			existing.RankLexical = rank
			existing.MatchedTerms = r.MatchedTerms
		} else {
			fused[r.ID] = &Result{
				ID:           r.ID,
				Score:        1.0 / float64(h.rrfK+rank),
				RankLexical:  rank,
				MatchedTerms: r.MatchedTerms,
			}
		}
	}

	results := make([]Result, 0, len(fused))
	for _, r := range fused {
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results
}

// withRanks fills in the single-source rank positions when fusion is
// skipped, so downstream scoring still sees where each hit came from.
func withRanks(results []Result, dense bool) []Result {
	out := make([]Result, len(results))
	for i, r := range results {
		if dense {
			r.RankDense = i + 1
		} else {
			r.RankLexical = i + 1
		}
		out[i] = r
	}
	return out
}

func truncate(results []Result, limit int) []Result {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
