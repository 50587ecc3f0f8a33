// Package search orchestrates retrieval: it validates requests, runs
// the hybrid searcher over the index, blends in the bandit prior and
// both memory tiers, and returns ranked results. It also owns the write
// path that feeds outcomes back into the learning state.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/applyrag/applyrag/internal/bandit"
	"github.com/applyrag/applyrag/internal/config"
	apperrors "github.com/applyrag/applyrag/internal/errors"
	"github.com/applyrag/applyrag/internal/index"
	"github.com/applyrag/applyrag/internal/memory"
	"github.com/applyrag/applyrag/internal/record"
	"github.com/applyrag/applyrag/internal/state"
	"github.com/applyrag/applyrag/pkg/ranker"
	"github.com/applyrag/applyrag/pkg/searcher"
)

// Request limits.
const (
	MaxQueryChars = 512
	MaxK          = 200
)

// Filters restrict results after fusion. Empty fields match everything.
type Filters struct {
	Status string
	Method string
	Tag    string
}

func (f Filters) matches(r *record.Record) bool {
	if f.Status != "" && record.NormalizeStatus(f.Status) != r.Status {
		return false
	}
	if f.Method != "" && !strings.EqualFold(f.Method, r.Method) {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range r.Tags {
			if strings.EqualFold(f.Tag, t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ScoredResult is one ranked retrieval result with its score breakdown.
type ScoredResult struct {
	Record     *record.Record `json:"record"`
	FinalScore float64        `json:"final_score"`

	Base         float64  `json:"base"`
	Overlap      float64  `json:"lexical_overlap"`
	BanditPrior  float64  `json:"bandit_prior"`
	MemoryShort  float64  `json:"memory_short"`
	MemoryLong   float64  `json:"memory_long"`
	RankDense    int      `json:"rank_dense,omitempty"`
	RankLexical  int      `json:"rank_lexical,omitempty"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// Service is the retrieval and feedback front-end.
type Service struct {
	cfg     *config.Config
	idx     *index.Index
	dataDir string

	// rng is injectable for deterministic recommendation tests.
	rng *rand.Rand
}

// NewService creates a service over an opened index. dataDir holds the
// learning state (arm map, memory logs, ledgers, session).
func NewService(cfg *config.Config, idx *index.Index, dataDir string) *Service {
	return &Service{cfg: cfg, idx: idx, dataDir: dataDir}
}

// WithRand sets the random source used for bandit sampling.
func (s *Service) WithRand(rng *rand.Rand) *Service {
	s.rng = rng
	return s
}

func (s *Service) validateQuery(query string, k int) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", apperrors.New(apperrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryChars {
		return "", apperrors.New(apperrors.ErrCodeQueryTooLong,
			fmt.Sprintf("query is %d characters, max %d", n, MaxQueryChars), nil)
	}
	if k < 1 || k > MaxK {
		return "", apperrors.New(apperrors.ErrCodeInvalidK,
			fmt.Sprintf("k must be in [1, %d], got %d", MaxK, k), nil)
	}
	return query, nil
}

func (s *Service) newSearcher() (*searcher.HybridSearcher, error) {
	native := searcher.SearcherFunc(func(ctx context.Context, q string, limit int) ([]searcher.Result, error) {
		hits, err := s.idx.HybridSearch(ctx, q, limit)
		if err == index.ErrHybridUnsupported {
			return nil, searcher.ErrHybridUnsupported
		}
		if err != nil {
			return nil, err
		}
		return toResults(hits), nil
	})
	dense := searcher.SearcherFunc(func(ctx context.Context, q string, limit int) ([]searcher.Result, error) {
		hits, err := s.idx.VectorSearch(ctx, q, limit)
		if err != nil {
			return nil, err
		}
		return toResults(hits), nil
	})
	lexical := searcher.SearcherFunc(func(ctx context.Context, q string, limit int) ([]searcher.Result, error) {
		hits, err := s.idx.LexicalSearch(ctx, q, limit)
		if err != nil {
			return nil, err
		}
		return toResults(hits), nil
	})

	return searcher.NewHybridSearcher(
		searcher.WithNativeSearcher(native),
		searcher.WithDenseSearcher(dense),
		searcher.WithLexicalSearcher(lexical),
		searcher.WithRRFConstant(s.cfg.Retrieval.RRFConstant),
	)
}

func toResults(hits []index.Hit) []searcher.Result {
	out := make([]searcher.Result, len(hits))
	for i, h := range hits {
		out[i] = searcher.Result{ID: h.ID, Score: h.Score, MatchedTerms: h.MatchedTerms}
	}
	return out
}

// Retrieve runs the full ranked retrieval pipeline. Learning state is
// reloaded on every call so concurrent feedback takes effect without a
// restart.
func (s *Service) Retrieve(ctx context.Context, query string, k int, filters Filters) ([]ScoredResult, error) {
	query, err := s.validateQuery(query, k)
	if err != nil {
		return nil, err
	}

	candidateK := k * s.cfg.Retrieval.OverfetchFactor
	if candidateK < s.cfg.Retrieval.OverfetchFloor {
		candidateK = s.cfg.Retrieval.OverfetchFloor
	}

	hybrid, err := s.newSearcher()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, err)
	}
	results, err := hybrid.Search(ctx, query, candidateK)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeSearchFailed, err)
	}

	model := bandit.Load(s.dataDir, s.rng)
	memStore := memory.NewStore(s.dataDir)
	episodic, err := memStore.LoadEpisodic()
	if err != nil {
		slog.Warn("episodic log unreadable, skipping recency signal", "error", err)
	}
	semantic, err := memStore.LoadSemantic()
	if err != nil {
		slog.Warn("semantic snapshot unreadable, skipping priority signal", "error", err)
	}
	recency := memory.RecencyScores(episodic, time.Now().UTC(), s.cfg.Memory.HalfLifeDays)
	priority := memory.PriorityScores(semantic)

	weights := ranker.Weights{
		Base:        s.cfg.Fusion.BaseWeight,
		Lexical:     s.cfg.Fusion.LexicalWeight,
		Bandit:      s.cfg.Fusion.BanditWeight,
		MemoryShort: s.cfg.Fusion.MemoryShortWeight,
		MemoryLong:  s.cfg.Fusion.MemoryLongWeight,
	}

	byID := make(map[string]ScoredResult, len(results))
	scored := make([]ranker.Scored, 0, len(results))
	for _, res := range results {
		rec := s.idx.Get(res.ID)
		if rec == nil {
			// index ahead of catalog, stale entry
			continue
		}
		sig := ranker.Signals{
			Base:        ranker.NormalizeBase(res.Score),
			Lexical:     ranker.LexicalOverlap(query, overlapText(rec)),
			Bandit:      model.PriorFor(rec.Tags, rec.Method),
			MemoryShort: recency[rec.AppID],
			MemoryLong:  priority[rec.AppID],
		}
		scored = append(scored, ranker.Scored{ID: res.ID, Signals: sig})
		byID[res.ID] = ScoredResult{
			Record:       rec,
			Base:         sig.Base,
			Overlap:      sig.Lexical,
			BanditPrior:  sig.Bandit,
			MemoryShort:  sig.MemoryShort,
			MemoryLong:   sig.MemoryLong,
			RankDense:    res.RankDense,
			RankLexical:  res.RankLexical,
			MatchedTerms: res.MatchedTerms,
		}
	}

	ranked := ranker.Rank(scored, weights)

	// Filters apply after fusion and before truncation, so a filtered
	// retrieval still fills k from the over-fetched pool.
	out := make([]ScoredResult, 0, k)
	for _, r := range ranked {
		sr := byID[r.ID]
		if !filters.matches(sr.Record) {
			continue
		}
		sr.FinalScore = r.FinalScore
		out = append(out, sr)
		if len(out) == k {
			break
		}
	}

	s.saveSession(query, out)
	return out, nil
}

func overlapText(r *record.Record) string {
	return strings.Join([]string{
		r.Company, r.Role, r.Status, r.Method,
		strings.Join(r.Tags, " "), r.Notes, r.ContextText,
	}, " ")
}

func (s *Service) saveSession(query string, results []ScoredResult) {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Record.AppID
	}
	err := state.SaveSession(s.dataDir, &state.Session{
		Query:     query,
		ResultIDs: ids,
		Timestamp: record.Now(),
	})
	if err != nil {
		slog.Warn("failed to save session", "error", err)
	}
}
