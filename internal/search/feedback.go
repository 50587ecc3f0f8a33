package search

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/applyrag/applyrag/internal/bandit"
	apperrors "github.com/applyrag/applyrag/internal/errors"
	"github.com/applyrag/applyrag/internal/memory"
	"github.com/applyrag/applyrag/internal/record"
	"github.com/applyrag/applyrag/internal/state"
	"github.com/applyrag/applyrag/internal/tracker"
)

// withLock serializes a state mutation against other processes.
func (s *Service) withLock(fn func() error) error {
	lock := state.NewFileLock(s.dataDir)
	if err := lock.Lock(); err != nil {
		return apperrors.New(apperrors.ErrCodeStateLock, "state is locked by another process", err)
	}
	defer lock.Unlock()
	return fn()
}

// Feedback records an explicit outcome for an application: the bandit
// arms update and an episodic memory entry is appended.
func (s *Service) Feedback(appID, outcome, note string) error {
	rec := s.idx.Get(appID)
	if rec == nil {
		return apperrors.New(apperrors.ErrCodeUnknownRecord,
			fmt.Sprintf("no record with id %q", appID), nil)
	}
	if _, err := bandit.RewardFor(outcome); err != nil {
		return apperrors.New(apperrors.ErrCodeUnknownOutcome, err.Error(), err)
	}

	return s.withLock(func() error {
		model := bandit.Load(s.dataDir, s.rng)
		if err := model.RecordOutcome(rec.Tags, rec.Method, outcome); err != nil {
			return apperrors.New(apperrors.ErrCodeUnknownOutcome, err.Error(), err)
		}
		if err := model.Save(s.dataDir); err != nil {
			return apperrors.Wrap(apperrors.ErrCodePersistFailed, err)
		}
		store := memory.NewStore(s.dataDir)
		if err := store.AppendEpisodic(memory.NewEpisodic(appID, outcome, note)); err != nil {
			return apperrors.Wrap(apperrors.ErrCodePersistFailed, err)
		}
		return nil
	})
}

// ThumbFeedback converts a positional vote on the last retrieval into
// an outcome: up means the result drew a response, down means silence.
// Position is 1-indexed into the last session's results. Without a
// saved session the vote lands on the most recently applied record.
func (s *Service) ThumbFeedback(position int, up bool) (string, error) {
	session, err := state.LoadSession(s.dataDir)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeStateCorrupt, err)
	}

	var appID, note string
	switch {
	case session != nil && len(session.ResultIDs) > 0:
		if position < 1 || position > len(session.ResultIDs) {
			return "", apperrors.New(apperrors.ErrCodeInvalidInput,
				fmt.Sprintf("position %d out of range 1..%d", position, len(session.ResultIDs)), nil)
		}
		appID = session.ResultIDs[position-1]
		note = fmt.Sprintf("thumb vote on query %q", session.Query)
	default:
		rec := s.mostRecentApplied()
		if rec == nil {
			return "", apperrors.New(apperrors.ErrCodeInvalidInput,
				"no previous retrieval to vote on and no applied records", nil)
		}
		appID = rec.AppID
		note = "thumb vote without a prior retrieval"
	}

	outcome := "response"
	if !up {
		outcome = "no_response"
	}
	return appID, s.Feedback(appID, outcome, note)
}

// mostRecentApplied returns the applied record with the latest
// DateApplied, nil when nothing has been applied to yet. Dates are
// ISO-formatted in the tracker so string comparison orders them.
func (s *Service) mostRecentApplied() *record.Record {
	var best *record.Record
	for _, rec := range s.idx.All() {
		if rec.Status != record.StatusApplied {
			continue
		}
		if best == nil || rec.DateApplied > best.DateApplied {
			best = rec
		}
	}
	return best
}

// BatchEntry is one feedback item in a replayable batch file.
type BatchEntry struct {
	Subject string `json:"subject"`
	Outcome string `json:"outcome"`
	Note    string `json:"note,omitempty"`
}

// BatchResult summarizes a batch application.
type BatchResult struct {
	Applied int
	Skipped int
	Errors  []string
}

func batchKey(e BatchEntry) string {
	return strings.ToLower(strings.Join([]string{e.Subject, e.Outcome, e.Note}, "|"))
}

// FeedbackBatch applies a batch of outcomes idempotently: entries whose
// key is already in the ledger are skipped, so re-running the same
// batch file never double-trains the model.
func (s *Service) FeedbackBatch(entries []BatchEntry) (*BatchResult, error) {
	res := &BatchResult{}
	err := s.withLock(func() error {
		model := bandit.Load(s.dataDir, s.rng)
		store := memory.NewStore(s.dataDir)
		ledger := state.LoadLedger(filepath.Join(s.dataDir, state.FeedbackLedgerFileName))

		var episodic []memory.EpisodicEntry
		for _, e := range entries {
			if e.Subject == "" {
				res.Errors = append(res.Errors, "entry missing subject")
				continue
			}
			if _, err := bandit.RewardFor(e.Outcome); err != nil {
				res.Errors = append(res.Errors, err.Error())
				continue
			}
			if !ledger.Mark(batchKey(e)) {
				res.Skipped++
				continue
			}

			var tags []string
			method := ""
			if rec := s.idx.Get(e.Subject); rec != nil {
				tags, method = rec.Tags, rec.Method
			}
			if err := model.RecordOutcome(tags, method, e.Outcome); err != nil {
				res.Errors = append(res.Errors, err.Error())
				continue
			}
			episodic = append(episodic, memory.NewEpisodic(e.Subject, e.Outcome, e.Note))
			res.Applied++
		}

		if res.Applied == 0 {
			return nil
		}
		if err := model.Save(s.dataDir); err != nil {
			return apperrors.Wrap(apperrors.ErrCodePersistFailed, err)
		}
		if err := store.AppendEpisodic(episodic...); err != nil {
			return apperrors.Wrap(apperrors.ErrCodePersistFailed, err)
		}
		if err := ledger.Save(); err != nil {
			return apperrors.Wrap(apperrors.ErrCodePersistFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SyncTrackerFeedback scans tracker rows for outcome signals (statuses,
// recruiter responses, interview stages) and feeds the new ones into
// the model. Each row state syncs at most once, tracked by ledger key.
func (s *Service) SyncTrackerFeedback(rows []tracker.Row) (*BatchResult, error) {
	res := &BatchResult{}
	err := s.withLock(func() error {
		model := bandit.Load(s.dataDir, s.rng)
		store := memory.NewStore(s.dataDir)
		ledger := state.LoadLedger(filepath.Join(s.dataDir, state.TrackerLedgerFileName))

		records, rowErrs := tracker.BuildRecords(rows)
		res.Errors = append(res.Errors, rowErrs...)
		recByID := make(map[string]*record.Record, len(records))
		for _, r := range records {
			recByID[r.AppID] = r
		}

		var episodic []memory.EpisodicEntry
		for _, row := range rows {
			outcome := tracker.InferOutcome(row)
			if outcome == "" {
				continue
			}
			appID := record.StableID(row.Get("Company"), row.Get("Role"), row.Get("Career Page URL"))
			if !ledger.Mark(tracker.OutcomeKey(row, appID, outcome)) {
				res.Skipped++
				continue
			}

			var tags []string
			method := ""
			if rec := recByID[appID]; rec != nil {
				tags, method = rec.Tags, rec.Method
			}
			if err := model.RecordOutcome(tags, method, outcome); err != nil {
				res.Errors = append(res.Errors, err.Error())
				continue
			}
			episodic = append(episodic, memory.NewEpisodic(appID, outcome, "synced from tracker"))
			res.Applied++
		}

		if res.Applied == 0 {
			return nil
		}
		if err := model.Save(s.dataDir); err != nil {
			return apperrors.Wrap(apperrors.ErrCodePersistFailed, err)
		}
		if err := store.AppendEpisodic(episodic...); err != nil {
			return apperrors.Wrap(apperrors.ErrCodePersistFailed, err)
		}
		if err := ledger.Save(); err != nil {
			return apperrors.Wrap(apperrors.ErrCodePersistFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// LogEvent appends a free-form episodic note for an application without
// touching the bandit model. Unknown outcomes get the default hint.
func (s *Service) LogEvent(subject, outcome, note string) error {
	if strings.TrimSpace(subject) == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "subject must not be empty", nil)
	}
	return s.withLock(func() error {
		store := memory.NewStore(s.dataDir)
		if err := store.AppendEpisodic(memory.NewEpisodic(subject, outcome, note)); err != nil {
			return apperrors.Wrap(apperrors.ErrCodePersistFailed, err)
		}
		return nil
	})
}

// BuildResult summarizes an index build.
type BuildResult struct {
	Records      int
	Bootstrapped int
	RowErrors    []string
}

// Build ingests the tracker CSV: rebuilds both indexes and the catalog,
// refreshes the semantic memory snapshot, and, on a fresh model, seeds
// the bandit arms from observed statuses.
func (s *Service) Build(ctx context.Context, trackerPath string) (*BuildResult, error) {
	rows, err := tracker.LoadRows(trackerPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeTrackerRead, err)
	}
	records, rowErrs := tracker.BuildRecords(rows)
	for _, e := range rowErrs {
		slog.Warn("tracker row skipped", "reason", e)
	}

	if err := s.idx.Build(ctx, records); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeIndexFailed, err)
	}

	res := &BuildResult{Records: len(records), RowErrors: rowErrs}
	err = s.withLock(func() error {
		semantic := make([]memory.SemanticEntry, len(records))
		for i, r := range records {
			semantic[i] = memory.NewSemantic(r)
		}
		store := memory.NewStore(s.dataDir)
		if err := store.WriteSemantic(semantic); err != nil {
			return apperrors.Wrap(apperrors.ErrCodePersistFailed, err)
		}

		model := bandit.Load(s.dataDir, s.rng)
		if len(model.Arms) == 0 {
			res.Bootstrapped = model.BootstrapFromRecords(records)
			if res.Bootstrapped > 0 {
				if err := model.Save(s.dataDir); err != nil {
					return apperrors.Wrap(apperrors.ErrCodePersistFailed, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Recommend samples the bandit posteriors and returns the top k arms.
func (s *Service) Recommend(k int) []bandit.ArmStat {
	return bandit.Load(s.dataDir, s.rng).Recommend(k)
}

// ArmStats returns all arms sorted by posterior mean.
func (s *Service) ArmStats() []bandit.ArmStat {
	return bandit.Load(s.dataDir, s.rng).Stats()
}

// Status summarizes the state of the system for the dashboard.
type Status struct {
	Records        int
	Arms           int
	EpisodicEvents int
	SemanticFacts  int
}

// SystemStatus gathers counts across the index and learning state.
func (s *Service) SystemStatus() Status {
	store := memory.NewStore(s.dataDir)
	episodic, _ := store.LoadEpisodic()
	semantic, _ := store.LoadSemantic()
	return Status{
		Records:        s.idx.Len(),
		Arms:           len(bandit.Load(s.dataDir, s.rng).Arms),
		EpisodicEvents: len(episodic),
		SemanticFacts:  len(semantic),
	}
}
