// Package index maintains the retrieval indexes: a bleve BM25 index for
// keyword search, an HNSW store for embedding search, and a JSONL
// catalog of the indexed records. All three are rebuilt together from
// the tracker, which stays the single source of truth.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/applyrag/applyrag/internal/embed"
	"github.com/applyrag/applyrag/internal/record"
)

// ErrHybridUnsupported signals that the backend cannot run a single
// fused dense+lexical query. Callers fall back to running the two
// searches separately and fusing ranks themselves.
var ErrHybridUnsupported = errors.New("backend does not support native hybrid queries")

// File names under the index directory.
const (
	CatalogFileName = "records.jsonl"
	VectorFileName  = "vectors.hnsw"
	LexicalDirName  = "lexical.bleve"
)

// Hit is one search result from either index.
type Hit struct {
	ID           string
	Score        float64
	MatchedTerms []string
}

// Index bundles the catalog and both retrieval indexes.
type Index struct {
	catalog  *Catalog
	lexical  *LexicalIndex
	vectors  *VectorStore
	embedder embed.Embedder
	dir      string
}

// Open opens (or creates) the index rooted at dir. An empty dir keeps
// everything in memory, used by tests.
func Open(dir string, embedder embed.Embedder) (*Index, error) {
	var lexPath string
	if dir != "" {
		lexPath = filepath.Join(dir, LexicalDirName)
	}
	lexical, err := NewLexicalIndex(lexPath)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		catalog:  NewCatalog(),
		lexical:  lexical,
		vectors:  NewVectorStore(embedder.Dimensions()),
		embedder: embedder,
		dir:      dir,
	}

	if dir != "" {
		if err := idx.loadPersisted(); err != nil {
			// A broken vector/catalog file means a rebuild, not a dead CLI.
			slog.Warn("persisted index unusable, rebuild required", "dir", dir, "error", err)
		}
	}
	return idx, nil
}

func (x *Index) loadPersisted() error {
	catalogPath := filepath.Join(x.dir, CatalogFileName)
	if err := x.catalog.Load(catalogPath); err != nil {
		return err
	}
	if x.catalog.Len() == 0 {
		return nil
	}
	return x.vectors.Load(filepath.Join(x.dir, VectorFileName))
}

// Build indexes the given records, replacing the catalog contents.
func (x *Index) Build(ctx context.Context, records []*record.Record) error {
	x.catalog.Replace(records)

	if err := x.lexical.Index(ctx, records); err != nil {
		return fmt.Errorf("building lexical index: %w", err)
	}

	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	for i, r := range records {
		vec, err := embed.EmbedRecord(ctx, x.embedder, r)
		if err != nil {
			return fmt.Errorf("embedding %s: %w", r.AppID, err)
		}
		ids[i] = r.AppID
		vectors[i] = vec
	}
	if err := x.vectors.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("building vector index: %w", err)
	}

	if x.dir != "" {
		if err := x.catalog.Save(filepath.Join(x.dir, CatalogFileName)); err != nil {
			return err
		}
		if err := x.vectors.Save(filepath.Join(x.dir, VectorFileName)); err != nil {
			return err
		}
	}
	return nil
}

// HybridSearch would run one fused dense+lexical query on the backend.
// Neither bleve nor the HNSW store expose that, so this always returns
// ErrHybridUnsupported and callers take the manual fusion path.
func (x *Index) HybridSearch(ctx context.Context, query string, k int) ([]Hit, error) {
	return nil, ErrHybridUnsupported
}

// VectorSearch embeds the query and returns the k nearest records.
func (x *Index) VectorSearch(ctx context.Context, query string, k int) ([]Hit, error) {
	vec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return x.vectors.Search(ctx, vec, k)
}

// LexicalSearch runs a BM25 keyword query.
func (x *Index) LexicalSearch(ctx context.Context, query string, k int) ([]Hit, error) {
	return x.lexical.Search(ctx, query, k)
}

// Get returns the catalog record for an ID, nil if unknown.
func (x *Index) Get(id string) *record.Record {
	return x.catalog.Get(id)
}

// All returns every catalog record in insertion order.
func (x *Index) All() []*record.Record {
	return x.catalog.All()
}

// Len returns the number of indexed records.
func (x *Index) Len() int {
	return x.catalog.Len()
}

// Close closes both indexes.
func (x *Index) Close() error {
	lexErr := x.lexical.Close()
	vecErr := x.vectors.Close()
	if lexErr != nil {
		return lexErr
	}
	return vecErr
}
