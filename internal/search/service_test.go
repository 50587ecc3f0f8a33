package search

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/applyrag/applyrag/internal/config"
	"github.com/applyrag/applyrag/internal/embed"
	apperrors "github.com/applyrag/applyrag/internal/errors"
	"github.com/applyrag/applyrag/internal/index"
	"github.com/applyrag/applyrag/internal/record"
	"github.com/applyrag/applyrag/internal/tracker"
)

const testTrackerCSV = `Company,Role,Status,Career Page URL,Tags,Notes,Date Applied,Response,Interview Stage,Response Type
Acme AI,Senior ML Engineer,Applied,https://jobs.ashbyhq.com/acme/1,ai;remote,machine learning platform,2026-08-01,,,
Beta Corp,Backend Engineer,Applied,https://jobs.lever.co/beta/2,go;infra,distributed systems,2026-07-20,,,
Gamma Labs,ML Engineer,Rejected,https://jobs.lever.co/gamma/3,ai,research lab,2026-06-10,Yes,,Rejection email
Delta Inc,Product Designer,Draft,https://delta.example.com/careers,design,,,,,
`

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()

	trackerPath := filepath.Join(dir, "tracker.csv")
	if err := os.WriteFile(trackerPath, []byte(testTrackerCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	embedder := embed.NewHashingEmbedder(256)
	idx, err := index.Open("", embedder)
	if err != nil {
		t.Fatalf("opening index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	cfg := config.DefaultConfig()
	cfg.Paths.DataDir = dir
	svc := NewService(cfg, idx, dir).WithRand(rand.New(rand.NewPCG(1, 2)))

	if _, err := svc.Build(context.Background(), trackerPath); err != nil {
		t.Fatalf("building index: %v", err)
	}
	return svc, trackerPath
}

func TestRetrieve_ValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Retrieve(ctx, "   ", 5, Filters{}); apperrors.GetCode(err) != apperrors.ErrCodeQueryEmpty {
		t.Errorf("empty query: got %v", err)
	}

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := svc.Retrieve(ctx, string(long), 5, Filters{}); apperrors.GetCode(err) != apperrors.ErrCodeQueryTooLong {
		t.Errorf("long query: got %v", err)
	}

	if _, err := svc.Retrieve(ctx, "ml", 0, Filters{}); apperrors.GetCode(err) != apperrors.ErrCodeInvalidK {
		t.Errorf("k=0: got %v", err)
	}
	if _, err := svc.Retrieve(ctx, "ml", 500, Filters{}); apperrors.GetCode(err) != apperrors.ErrCodeInvalidK {
		t.Errorf("k=500: got %v", err)
	}
}

func TestRetrieve_RanksRelevantFirst(t *testing.T) {
	svc, _ := newTestService(t)

	results, err := svc.Retrieve(context.Background(), "senior ml engineer", 3, Filters{})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].Record.Company != "Acme AI" {
		t.Errorf("top result = %s, want Acme AI", results[0].Record.Company)
	}
	for _, r := range results {
		if r.FinalScore < 0 || r.FinalScore > 1 {
			t.Errorf("%s score %g outside [0,1]", r.Record.AppID, r.FinalScore)
		}
	}
	// Ordering is best-first.
	for i := 1; i < len(results); i++ {
		if results[i].FinalScore > results[i-1].FinalScore {
			t.Errorf("results not sorted at %d", i)
		}
	}
}

func TestRetrieve_FiltersAfterFusion(t *testing.T) {
	svc, _ := newTestService(t)

	results, err := svc.Retrieve(context.Background(), "engineer", 10, Filters{Tag: "ai"})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	for _, r := range results {
		found := false
		for _, tag := range r.Record.Tags {
			if tag == "ai" {
				found = true
			}
		}
		if !found {
			t.Errorf("filtered result %s lacks ai tag", r.Record.AppID)
		}
	}
}

func TestFeedback_ShiftsRanking(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	before, err := svc.Retrieve(ctx, "ml engineer", 3, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	target := before[0].Record.AppID

	// Twenty interviews on the top record's arms should lift its bandit
	// prior well above the others.
	for i := 0; i < 20; i++ {
		if err := svc.Feedback(target, "interview", "phone screen"); err != nil {
			t.Fatalf("Feedback failed: %v", err)
		}
	}

	after, err := svc.Retrieve(ctx, "ml engineer", 3, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	var beforePrior, afterPrior float64
	for _, r := range before {
		if r.Record.AppID == target {
			beforePrior = r.BanditPrior
		}
	}
	for _, r := range after {
		if r.Record.AppID == target {
			afterPrior = r.BanditPrior
		}
	}
	if afterPrior <= beforePrior {
		t.Errorf("bandit prior did not rise: %g -> %g", beforePrior, afterPrior)
	}
	// Fresh feedback also feeds the episodic tier.
	for _, r := range after {
		if r.Record.AppID == target && r.MemoryShort == 0 {
			t.Error("episodic signal missing after feedback")
		}
	}
}

func TestFeedback_RejectsUnknowns(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Feedback("nonexistent__id__000", "offer", "")
	if apperrors.GetCode(err) != apperrors.ErrCodeUnknownRecord {
		t.Errorf("unknown record: got %v", err)
	}

	results, err := svc.Retrieve(context.Background(), "engineer", 1, Filters{})
	if err != nil || len(results) == 0 {
		t.Fatal("need one result")
	}
	err = svc.Feedback(results[0].Record.AppID, "ghosted", "")
	if apperrors.GetCode(err) != apperrors.ErrCodeUnknownOutcome {
		t.Errorf("unknown outcome: got %v", err)
	}
}

func TestThumbFeedback_ResolvesSessionPosition(t *testing.T) {
	svc, _ := newTestService(t)

	results, err := svc.Retrieve(context.Background(), "backend engineer", 2, Filters{})
	if err != nil || len(results) < 2 {
		t.Fatalf("need two results, got %d (%v)", len(results), err)
	}

	appID, err := svc.ThumbFeedback(2, true)
	if err != nil {
		t.Fatalf("ThumbFeedback failed: %v", err)
	}
	if appID != results[1].Record.AppID {
		t.Errorf("vote resolved to %s, want %s", appID, results[1].Record.AppID)
	}

	if _, err := svc.ThumbFeedback(99, true); !errors.As(err, new(*apperrors.Error)) {
		t.Errorf("out-of-range position: got %v", err)
	}
}

func TestThumbFeedback_FallsBackToLatestApplied(t *testing.T) {
	svc, _ := newTestService(t)

	// No retrieval has run, so there is no session to resolve against.
	appID, err := svc.ThumbFeedback(1, false)
	if err != nil {
		t.Fatalf("ThumbFeedback without session failed: %v", err)
	}

	rec := svc.idx.Get(appID)
	if rec == nil || rec.Status != record.StatusApplied {
		t.Fatalf("fallback picked %q, want an applied record", appID)
	}
	// Acme AI has the latest application date among applied rows.
	if rec.Company != "Acme AI" {
		t.Errorf("fallback picked %s, want the most recently applied", rec.Company)
	}
}

func TestFeedbackBatch_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)

	results, err := svc.Retrieve(context.Background(), "engineer", 2, Filters{})
	if err != nil || len(results) < 2 {
		t.Fatal("need two results")
	}
	entries := []BatchEntry{
		{Subject: results[0].Record.AppID, Outcome: "interview"},
		{Subject: results[1].Record.AppID, Outcome: "rejected"},
		// Last two are invalid: empty subject, unknown outcome.
		{Subject: "", Outcome: "offer"},
		{Subject: "x", Outcome: "whatever"},
	}

	first, err := svc.FeedbackBatch(entries)
	if err != nil {
		t.Fatalf("FeedbackBatch failed: %v", err)
	}
	if first.Applied != 2 || first.Skipped != 0 || len(first.Errors) != 2 {
		t.Errorf("first run: %+v", first)
	}

	second, err := svc.FeedbackBatch(entries)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if second.Applied != 0 || second.Skipped != 2 {
		t.Errorf("replay should skip all applied entries: %+v", second)
	}
}

func TestSyncTrackerFeedback_Idempotent(t *testing.T) {
	svc, trackerPath := newTestService(t)

	rows, err := tracker.LoadRows(trackerPath)
	if err != nil {
		t.Fatal(err)
	}

	// Only the rejected Gamma Labs row carries an outcome signal.
	first, err := svc.SyncTrackerFeedback(rows)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if first.Applied != 1 {
		t.Errorf("first sync applied %d, want 1", first.Applied)
	}

	second, err := svc.SyncTrackerFeedback(rows)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if second.Applied != 0 || second.Skipped != 1 {
		t.Errorf("second sync should skip: %+v", second)
	}
}

func TestBuild_BootstrapsBanditFromStatuses(t *testing.T) {
	svc, _ := newTestService(t)

	// The tracker has Applied/Rejected rows; Draft contributes nothing.
	stats := svc.ArmStats()
	if len(stats) == 0 {
		t.Fatal("expected bootstrapped arms")
	}
	seen := make(map[string]bool)
	for _, a := range stats {
		seen[a.Name] = true
	}
	if !seen["cat:ai"] || !seen["method:lever"] {
		t.Errorf("expected cat:ai and method:lever arms, got %v", seen)
	}
	if seen["cat:design"] {
		t.Error("draft rows must not bootstrap arms")
	}
}

func TestRecommendAndStatus(t *testing.T) {
	svc, _ := newTestService(t)

	recs := svc.Recommend(2)
	if len(recs) == 0 || len(recs) > 2 {
		t.Errorf("Recommend(2) returned %d arms", len(recs))
	}
	for _, r := range recs {
		if r.Sampled < 0 || r.Sampled > 1 {
			t.Errorf("sampled value %g outside [0,1]", r.Sampled)
		}
	}

	status := svc.SystemStatus()
	if status.Records != 4 {
		t.Errorf("status records = %d, want 4", status.Records)
	}
	if status.SemanticFacts != 4 {
		t.Errorf("semantic facts = %d, want 4", status.SemanticFacts)
	}
	if status.Arms == 0 {
		t.Error("expected bootstrapped arms in status")
	}
}

func TestLogEvent_AppendsEpisodic(t *testing.T) {
	svc, _ := newTestService(t)

	before := svc.SystemStatus().EpisodicEvents
	if err := svc.LogEvent("acme__senior-ml-engineer__x", "response", "recruiter email"); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}
	if got := svc.SystemStatus().EpisodicEvents; got != before+1 {
		t.Errorf("episodic events = %d, want %d", got, before+1)
	}

	if err := svc.LogEvent("  ", "response", ""); err == nil {
		t.Error("empty subject should be rejected")
	}
}
