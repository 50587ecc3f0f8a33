package index

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/applyrag/applyrag/internal/record"
)

// textAnalyzerName is the custom analyzer used for application text:
// unicode word tokenization plus lowercasing, no stop-word stripping.
// Tracker text is short; stop words carry signal ("reached out").
const textAnalyzerName = "app_text"

// LexicalIndex wraps bleve for BM25 keyword search over application
// records.
type LexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// lexicalDoc is the bleve document shape. All searchable text is folded
// into one field so a single match query covers every record facet.
type lexicalDoc struct {
	Content string `json:"content"`
}

func lexicalContent(r *record.Record) string {
	return strings.Join([]string{
		r.Company, r.Role, r.Status, r.Method,
		strings.Join(r.Tags, " "), r.Notes, r.Text,
	}, "\n")
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(textAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("adding custom analyzer: %w", err)
	}
	m.DefaultAnalyzer = textAnalyzerName
	return m, nil
}

// NewLexicalIndex creates a lexical index. An empty path yields an
// in-memory index; otherwise the index lives on disk and is recreated
// if opening fails (the tracker is the source of truth, an index is
// always rebuildable).
func NewLexicalIndex(path string) (*LexicalIndex, error) {
	m, err := createIndexMapping()
	if err != nil {
		return nil, err
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		idx, err = bleve.Open(path)
		if err != nil {
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening lexical index: %w", err)
	}
	return &LexicalIndex{index: idx}, nil
}

// Index adds records to the lexical index in one batch.
func (l *LexicalIndex) Index(ctx context.Context, records []*record.Record) error {
	if len(records) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("lexical index is closed")
	}

	batch := l.index.NewBatch()
	for _, r := range records {
		if err := batch.Index(r.AppID, lexicalDoc{Content: lexicalContent(r)}); err != nil {
			return fmt.Errorf("indexing %s: %w", r.AppID, err)
		}
	}
	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("executing lexical batch: %w", err)
	}
	return nil
}

// Search runs a BM25 match query, returning up to limit hits.
func (l *LexicalIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	mq := bleve.NewMatchQuery(query)
	mq.SetField("content")

	req := bleve.NewSearchRequest(mq)
	req.Size = limit
	req.IncludeLocations = true

	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{
			ID:           h.ID,
			Score:        h.Score,
			MatchedTerms: matchedTerms(h),
		})
	}
	return hits, nil
}

// DocCount returns the number of indexed records.
func (l *LexicalIndex) DocCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0
	}
	n, _ := l.index.DocCount()
	return int(n)
}

// Close closes the underlying bleve index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.index.Close()
}

func matchedTerms(hit *search.DocumentMatch) []string {
	seen := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field != "content" {
			continue
		}
		for term := range locations {
			seen[term] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	return terms
}
