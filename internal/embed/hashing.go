package embed

import (
	"context"
	"math"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/applyrag/applyrag/internal/record"
)

// DefaultDimensions is the standard embedding width.
const DefaultDimensions = 1536

// HashingEmbedder maps text to a fixed-width vector by feature hashing:
// each unigram and adjacent bigram is hashed with BLAKE2b into a bucket,
// and the bucket counts are L2-normalized. Deterministic across runs,
// processes, and machines.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder creates a hashing embedder. Non-positive dims fall
// back to DefaultDimensions.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashingEmbedder{dims: dims}
}

// Embed hashes text into a unit vector. Text with no tokens embeds to
// the zero vector. The context is unused: hashing never blocks.
func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)

	toks := Tokenize(text)
	if len(toks) == 0 {
		return vec, nil
	}
	for _, tok := range toks {
		vec[e.bucket(tok)] += 1.0
	}
	normalize(vec)
	return vec, nil
}

// Dimensions returns the embedding width.
func (e *HashingEmbedder) Dimensions() int {
	return e.dims
}

// bucket hashes a token into [0, dims) via an 8-byte BLAKE2b digest
// interpreted as a little-endian integer.
func (e *HashingEmbedder) bucket(tok string) int {
	sum, _ := blake2b.New(8, nil)
	sum.Write([]byte(tok))
	d := sum.Sum(nil)

	var h uint64
	for i := 7; i >= 0; i-- {
		h = h<<8 | uint64(d[i])
	}
	return int(h % uint64(e.dims))
}

// Tokenize lowercases text and splits on whitespace, then appends the
// adjacent bigrams joined with "_" so that local word order contributes
// to the embedding.
func Tokenize(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return nil
	}
	toks := make([]string, 0, len(words)*2-1)
	toks = append(toks, words...)
	for i := 0; i+1 < len(words); i++ {
		toks = append(toks, words[i]+"_"+words[i+1])
	}
	return toks
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// fieldBoosts controls how many times each record field is repeated in
// the document text fed to the embedder. Company and role dominate,
// free text contributes once.
var fieldBoosts = []struct {
	weight int
	value  func(*record.Record) string
}{
	{5, func(r *record.Record) string { return r.Company }},
	{4, func(r *record.Record) string { return r.Role }},
	{3, func(r *record.Record) string { return strings.Join(r.Tags, " ") }},
	{2, func(r *record.Record) string { return r.Method }},
	{1, func(r *record.Record) string { return r.Status }},
	{1, func(r *record.Record) string { return r.Notes }},
	{2, func(r *record.Record) string { return r.ContextText }},
	{1, func(r *record.Record) string { return r.Text }},
}

// DocumentText assembles the boosted text for a record embedding.
func DocumentText(r *record.Record) string {
	var b strings.Builder
	for _, f := range fieldBoosts {
		v := strings.TrimSpace(f.value(r))
		if v == "" {
			continue
		}
		for i := 0; i < f.weight; i++ {
			b.WriteString(v)
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// EmbedRecord embeds a record's field-boosted document text.
func EmbedRecord(ctx context.Context, e Embedder, r *record.Record) ([]float32, error) {
	return e.Embed(ctx, DocumentText(r))
}
