package interfaces

import (
	"context"
	"io"

	"github.com/elelem/visibility/pkg/model"
)

// EmbeddingProvider encodes text into a fixed-size vector
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SentimentProvider scores polarity of text in [-1, 1]
type SentimentProvider interface {
	Score(ctx context.Context, text string) (float64, error)
}

// TextGenerator produces raw LLM text for a prompt
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// IndexStore keeps the full analysis document for search and vector retrieval
type IndexStore interface {
	// Upsert writes the document at its response_id, overwriting any previous version
	Upsert(ctx context.Context, doc *model.IndexDocument) error

	// Get retrieves one document by response_id
	Get(ctx context.Context, id model.ResponseID) (*model.IndexDocument, error)

	// SearchSimilar returns the nearest documents by embedding distance
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*model.SimilarResponse, error)
}

// HistoryProvider returns prior sentiment scores of a brand. An empty result is normal.
type HistoryProvider interface {
	History(ctx context.Context, brand string, exclude model.ResponseID, limit int) ([]float64, error)
}

// StatusStore keeps the live processing status of submitted queries
type StatusStore interface {
	// Insert creates a pending record and returns its identifier
	Insert(ctx context.Context, record *model.QueryRecord) (model.ResponseID, error)

	// UpdateComplete marks the record complete with score and processed time.
	// It returns model.ErrRecordNotFound or model.ErrInvalidIdentifier for a missing target.
	UpdateComplete(ctx context.Context, id model.ResponseID, score float64) error

	// Get retrieves the status view of one record
	Get(ctx context.Context, id model.ResponseID) (*model.QueryDetails, error)
}

// ObjectStorage keeps blobs by key
type ObjectStorage interface {
	// Put returns a writer to save an object. The object is committed on Close, and
	// discarded instead when ctx is cancelled before Close.
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get returns model.ErrRecordNotFound when the object does not exist
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// HistoricalSink records one append-only history entry per pipeline run
type HistoricalSink interface {
	// Name identifies the sink in logs and reports
	Name() string

	// Write appends the record. rawText is passed for sinks that keep it.
	Write(ctx context.Context, record *model.AnalysisRecord, rawText string) error

	// Metrics aggregates the recorded visibility scores of one brand
	Metrics(ctx context.Context, brand string) (*model.BrandMetrics, error)
}
