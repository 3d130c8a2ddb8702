package library

import "context"

// VectorIndex defines the similarity-search operations required by the
// ingestion and retrieval pipelines. Upsert is idempotent by record id;
// Query returns matches ordered by descending cosine similarity.
type VectorIndex interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Clear(ctx context.Context) error
}

// PassageReader is the read side of the passage store used at query time.
// A missing id yields ErrPassageNotFound, never a crash.
type PassageReader interface {
	Get(id string) (string, error)
}

// PassageStore is the full store contract used by the ingestion pipeline.
// Reset discards prior contents before a rebuild; Flush persists the map.
type PassageStore interface {
	PassageReader
	Put(id, text string) error
	Reset() error
	Flush() error
}

// Embedder turns text into fixed-dimension dense vectors. The same engine
// must embed passages at ingestion and queries at retrieval.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dims() int
}

// Generator synthesizes a natural-language completion from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// QueryCache optionally memoizes full query responses.
type QueryCache interface {
	Get(ctx context.Context, query string, topK int) (*QueryResponse, bool)
	Set(ctx context.Context, query string, topK int, resp *QueryResponse)
}
