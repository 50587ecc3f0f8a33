// Package embed provides the deterministic hashing embedder used for
// retrieval. No model weights, no network: tokens are hashed into a
// fixed-width vector, so identical text always embeds identically and
// the index never drifts across machines.
package embed

import "context"

// Embedder generates dense vector embeddings from text.
type Embedder interface {
	// Embed converts text into a unit-length embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int
}
