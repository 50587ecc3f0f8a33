package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/applyrag/applyrag/internal/embed"
	"github.com/applyrag/applyrag/internal/record"
)

func testRecords() []*record.Record {
	recs := []*record.Record{
		{
			AppID:   "acme__ml-engineer__aaa",
			Company: "Acme",
			Role:    "ML Engineer",
			Status:  record.StatusApplied,
			Method:  "ashby",
			Tags:    []string{"ai", "remote"},
			Notes:   "machine learning platform team",
		},
		{
			AppID:   "beta__backend-engineer__bbb",
			Company: "Beta Corp",
			Role:    "Backend Engineer",
			Status:  record.StatusApplied,
			Method:  "lever",
			Tags:    []string{"go", "infra"},
			Notes:   "distributed systems in go",
		},
		{
			AppID:   "gamma__designer__ccc",
			Company: "Gamma",
			Role:    "Product Designer",
			Status:  record.StatusDraft,
			Method:  "direct",
			Tags:    []string{"design"},
		},
	}
	for _, r := range recs {
		r.ContextText = record.BuildContextText(r)
		r.Text = record.BuildText(r)
	}
	return recs
}

func newTestIndex(t *testing.T, dir string) *Index {
	t.Helper()
	idx, err := Open(dir, embed.NewHashingEmbedder(256))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestBuildAndLexicalSearch(t *testing.T) {
	idx := newTestIndex(t, "")
	if err := idx.Build(context.Background(), testRecords()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if idx.Len() != 3 {
		t.Fatalf("indexed %d records, want 3", idx.Len())
	}

	hits, err := idx.LexicalSearch(context.Background(), "machine learning", 10)
	if err != nil {
		t.Fatalf("LexicalSearch failed: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected lexical hits for 'machine learning'")
	}
	if hits[0].ID != "acme__ml-engineer__aaa" {
		t.Errorf("top hit = %s, want the ML record", hits[0].ID)
	}
}

func TestVectorSearchRanksSimilarFirst(t *testing.T) {
	idx := newTestIndex(t, "")
	if err := idx.Build(context.Background(), testRecords()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	hits, err := idx.VectorSearch(context.Background(), "machine learning engineer", 3)
	if err != nil {
		t.Fatalf("VectorSearch failed: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected vector hits")
	}
	if hits[0].ID != "acme__ml-engineer__aaa" {
		t.Errorf("top hit = %s, want the ML record", hits[0].ID)
	}
	for _, h := range hits {
		if h.Score < 0 || h.Score > 1 {
			t.Errorf("score %g outside [0,1]", h.Score)
		}
	}
}

func TestHybridSearchUnsupported(t *testing.T) {
	idx := newTestIndex(t, "")
	_, err := idx.HybridSearch(context.Background(), "anything", 5)
	if !errors.Is(err, ErrHybridUnsupported) {
		t.Errorf("got %v, want ErrHybridUnsupported", err)
	}
}

func TestLexicalSearch_EmptyQuery(t *testing.T) {
	idx := newTestIndex(t, "")
	hits, err := idx.LexicalSearch(context.Background(), "   ", 5)
	if err != nil {
		t.Fatalf("empty query should not error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("empty query returned %d hits", len(hits))
	}
}

func TestGetReturnsPayload(t *testing.T) {
	idx := newTestIndex(t, "")
	if err := idx.Build(context.Background(), testRecords()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	r := idx.Get("beta__backend-engineer__bbb")
	if r == nil || r.Company != "Beta Corp" {
		t.Errorf("Get returned %+v", r)
	}
	if idx.Get("nope") != nil {
		t.Error("unknown ID should return nil")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	idx := newTestIndex(t, dir)
	if err := idx.Build(context.Background(), testRecords()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newTestIndex(t, dir)
	if reopened.Len() != 3 {
		t.Fatalf("reopened catalog has %d records, want 3", reopened.Len())
	}
	hits, err := reopened.VectorSearch(context.Background(), "backend distributed systems", 2)
	if err != nil {
		t.Fatalf("VectorSearch after reload failed: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hits from reloaded vector store")
	}
}

func TestCatalogLoad_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.jsonl")

	c := NewCatalog()
	c.Replace(testRecords())
	if err := c.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	fresh := NewCatalog()
	if err := fresh.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if fresh.Len() != 3 {
		t.Errorf("loaded %d records, want 3", fresh.Len())
	}
}
