// Package ranker computes the final candidate ordering by blending the
// retrieval score with lexical overlap, the learned bandit prior, and
// the two memory tiers. Every signal lives in [0,1], the weights sum to
// 1, so the fused score is itself a [0,1] confidence.
package ranker

import (
	"math"
	"sort"
	"strings"
)

// Weights holds the blend weights for the five ranking signals.
type Weights struct {
	Base        float64
	Lexical     float64
	Bandit      float64
	MemoryShort float64
	MemoryLong  float64
}

// DefaultWeights returns the hand-tuned production blend. Retrieval
// relevance dominates, memory tiers nudge.
func DefaultWeights() Weights {
	return Weights{
		Base:        0.48,
		Lexical:     0.22,
		Bandit:      0.20,
		MemoryShort: 0.06,
		MemoryLong:  0.04,
	}
}

// Signals are the per-candidate inputs to fusion, each in [0,1].
type Signals struct {
	// Base is the normalized hybrid retrieval score.
	Base float64
	// Lexical is the query-term overlap fraction.
	Lexical float64
	// Bandit is the Thompson model's prior for the candidate's arms.
	Bandit float64
	// MemoryShort is the decayed episodic recency score.
	MemoryShort float64
	// MemoryLong is the semantic status priority.
	MemoryLong float64
}

// Fuse blends the signals under w.
func (w Weights) Fuse(s Signals) float64 {
	return w.Base*s.Base +
		w.Lexical*s.Lexical +
		w.Bandit*s.Bandit +
		w.MemoryShort*s.MemoryShort +
		w.MemoryLong*s.MemoryLong
}

// NormalizeBase squashes a raw retrieval score into [0,1]. Scores
// already in the unit interval pass through; anything larger (raw BM25
// mass) maps to raw/(1+raw), which is monotonic and bounded.
func NormalizeBase(raw float64) float64 {
	if raw < 0 {
		return 0
	}
	if raw <= 1 {
		return raw
	}
	return raw / (1 + raw)
}

// LexicalOverlap returns the fraction of distinct query terms that
// appear as substrings of the candidate text, both lowercased. An empty
// query scores zero.
func LexicalOverlap(query, text string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(terms))
	haystack := strings.ToLower(text)

	matched := 0
	total := 0
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		total++
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) / float64(total)
}

// Scored is a candidate with its fused score.
type Scored struct {
	ID         string
	Signals    Signals
	FinalScore float64
}

// Rank fuses and sorts candidates best-first. The sort is stable, so
// equal-score candidates keep their pre-fusion retrieval order.
func Rank(candidates []Scored, w Weights) []Scored {
	out := make([]Scored, len(candidates))
	for i, c := range candidates {
		c.FinalScore = clamp01(w.Fuse(c.Signals))
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalScore > out[j].FinalScore
	})
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
