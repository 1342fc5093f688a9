// Package embedding defines the text embedding contract and its HTTP-backed
// implementation. The vector model behind it is opaque to the rest of the
// system; callers only see float32 vectors of a fixed dimension.
package embedding

import "context"

// Embedder converts text into a dense vector. Implementations must be safe
// for concurrent use.
type Embedder interface {
	// Name identifies the model for logging and vector metadata.
	Name() string

	// Dimension returns the vector length this embedder produces.
	Dimension() int

	// Embed returns the vector for the given text. The returned slice has
	// exactly Dimension() elements on success.
	Embed(ctx context.Context, text string) ([]float32, error)
}
