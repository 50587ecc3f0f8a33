// Package memory keeps the two-tier memory the ranker reads from:
// an append-only episodic log of feedback events whose influence decays
// with age, and a semantic snapshot of per-application facts scored by
// current status. Both tiers live as JSONL files under the data dir.
package memory

import (
	"math"
	"strings"
	"time"

	"github.com/applyrag/applyrag/internal/record"
)

// DefaultHalfLifeDays is the episodic decay half-life.
const DefaultHalfLifeDays = 14.0

// EpisodicEntry is one feedback event in the episodic log.
type EpisodicEntry struct {
	Subject   string  `json:"subject"`
	Outcome   string  `json:"outcome"`
	ScoreHint float64 `json:"score_hint"`
	Note      string  `json:"note,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// SemanticEntry is one per-application fact in the semantic snapshot.
type SemanticEntry struct {
	Subject   string  `json:"subject"`
	Status    string  `json:"status"`
	Priority  float64 `json:"priority"`
	Fact      string  `json:"fact"`
	UpdatedAt string  `json:"updated_at"`
}

// scoreHints maps an outcome to the intensity of its episodic trace.
// Defaults to 0.35 for anything unrecognized.
var scoreHints = map[string]float64{
	"blocked":     0.2,
	"no_response": 0.3,
	"rejected":    0.4,
	"response":    0.7,
	"interview":   0.9,
	"offer":       1.0,
}

// ScoreHint returns the episodic intensity for an outcome.
func ScoreHint(outcome string) float64 {
	if h, ok := scoreHints[strings.ToLower(strings.TrimSpace(outcome))]; ok {
		return h
	}
	return 0.35
}

// statusPriorities maps a canonical status to its semantic priority.
// Defaults to 0.4 for anything unrecognized.
var statusPriorities = map[string]float64{
	record.StatusOffer:    1.0,
	record.StatusApplied:  0.8,
	record.StatusRejected: 0.5,
	record.StatusBlocked:  0.3,
	record.StatusDraft:    0.2,
	record.StatusClosed:   0.1,
}

// StatusPriority returns the semantic priority for a status.
func StatusPriority(status string) float64 {
	if p, ok := statusPriorities[record.NormalizeStatus(status)]; ok {
		return p
	}
	return 0.4
}

// NewEpisodic builds an episodic entry for an outcome observed now.
func NewEpisodic(subject, outcome, note string) EpisodicEntry {
	return EpisodicEntry{
		Subject:   subject,
		Outcome:   strings.ToLower(strings.TrimSpace(outcome)),
		ScoreHint: ScoreHint(outcome),
		Note:      note,
		Timestamp: record.Now(),
	}
}

// NewSemantic builds the semantic fact for a record's current state.
func NewSemantic(r *record.Record) SemanticEntry {
	return SemanticEntry{
		Subject:   r.AppID,
		Status:    r.Status,
		Priority:  StatusPriority(r.Status),
		Fact:      r.ContextText,
		UpdatedAt: record.Now(),
	}
}

// RecencyScores computes the decayed episodic score per subject:
// exp(-ln2 * age_days / half_life) * score_hint, clamped to [0,1],
// keeping the max across a subject's entries. Entries with unparseable
// timestamps are skipped; entries from the future decay as age zero.
func RecencyScores(entries []EpisodicEntry, now time.Time, halfLifeDays float64) map[string]float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	scores := make(map[string]float64)
	for _, e := range entries {
		ts, err := time.Parse(time.RFC3339, e.Timestamp)
		if err != nil {
			continue
		}
		ageDays := now.Sub(ts).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		decay := math.Exp(-math.Ln2 * ageDays / halfLifeDays)
		score := math.Max(0, math.Min(1, decay*e.ScoreHint))
		if score > scores[e.Subject] {
			scores[e.Subject] = score
		}
	}
	return scores
}

// PriorityScores returns the semantic priority per subject, keeping
// the highest priority when a subject has multiple snapshot entries.
func PriorityScores(entries []SemanticEntry) map[string]float64 {
	scores := make(map[string]float64)
	for _, e := range entries {
		p := math.Max(0, math.Min(1, e.Priority))
		if p > scores[e.Subject] {
			scores[e.Subject] = p
		}
	}
	return scores
}
