package visibility_test

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/elelem/visibility/pkg/interfaces"
	"github.com/elelem/visibility/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

type mockEmbedder struct {
	interfaces.EmbeddingProvider
	embedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFunc(ctx, text)
}

// constantEmbedder returns the same vector for every text, so semantic similarity is 1.0
func constantEmbedder() *mockEmbedder {
	return &mockEmbedder{
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			v := make([]float32, model.EmbeddingDimension)
			for i := range v {
				v[i] = 1
			}
			return v, nil
		},
	}
}

type mockSentiment struct {
	interfaces.SentimentProvider
	scoreFunc func(ctx context.Context, text string) (float64, error)
}

func (m *mockSentiment) Score(ctx context.Context, text string) (float64, error) {
	return m.scoreFunc(ctx, text)
}

func fixedSentiment(score float64) *mockSentiment {
	return &mockSentiment{
		scoreFunc: func(ctx context.Context, text string) (float64, error) {
			return score, nil
		},
	}
}

// memoryIndex is an in-memory IndexStore and HistoryProvider
type memoryIndex struct {
	mu        sync.Mutex
	docs      map[string]*model.IndexDocument
	upserts   int
	upsertErr error
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{docs: map[string]*model.IndexDocument{}}
}

func (m *memoryIndex) Upsert(ctx context.Context, doc *model.IndexDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.docs[doc.ResponseID] = doc
	return nil
}

func (m *memoryIndex) Get(ctx context.Context, id model.ResponseID) (*model.IndexDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id.String()]
	if !ok {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "not found")
	}
	return doc, nil
}

func (m *memoryIndex) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*model.SimilarResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var results []*model.SimilarResponse
	for _, id := range ids {
		if len(results) == limit {
			break
		}
		results = append(results, &model.SimilarResponse{Document: m.docs[id]})
	}
	return results, nil
}

func (m *memoryIndex) History(ctx context.Context, brand string, exclude model.ResponseID, limit int) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var docs []*model.IndexDocument
	for _, doc := range m.docs {
		if doc.BrandKeyword == brand && doc.ResponseID != exclude.String() {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Timestamp.After(docs[j].Timestamp) })

	var scores []float64
	for _, doc := range docs {
		if len(scores) == limit {
			break
		}
		scores = append(scores, doc.SentimentScore)
	}
	return scores, nil
}

type mockStatus struct {
	interfaces.StatusStore
	mu         sync.Mutex
	updates    map[model.ResponseID]float64
	updateFunc func(ctx context.Context, id model.ResponseID, score float64) error
	insertFunc func(ctx context.Context, record *model.QueryRecord) (model.ResponseID, error)
	getFunc    func(ctx context.Context, id model.ResponseID) (*model.QueryDetails, error)
}

func newMockStatus() *mockStatus {
	return &mockStatus{updates: map[model.ResponseID]float64{}}
}

func (m *mockStatus) UpdateComplete(ctx context.Context, id model.ResponseID, score float64) error {
	if m.updateFunc != nil {
		if err := m.updateFunc(ctx, id, score); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates[id] = score
	return nil
}

func (m *mockStatus) Insert(ctx context.Context, record *model.QueryRecord) (model.ResponseID, error) {
	return m.insertFunc(ctx, record)
}

func (m *mockStatus) Get(ctx context.Context, id model.ResponseID) (*model.QueryDetails, error) {
	return m.getFunc(ctx, id)
}

type memorySink struct {
	mu       sync.Mutex
	rows     []*model.HistoryRow
	writeErr func(attempt int) error
	attempts int
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Write(ctx context.Context, record *model.AnalysisRecord, rawText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.writeErr != nil {
		if err := m.writeErr(m.attempts); err != nil {
			return err
		}
	}
	m.rows = append(m.rows, record.HistoryRow(rawText))
	return nil
}

func (m *memorySink) Metrics(ctx context.Context, brand string) (*model.BrandMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := &model.BrandMetrics{BrandName: brand}
	var total float64
	for _, r := range m.rows {
		if r.BrandKeyword == brand {
			metrics.TotalQueries++
			total += r.VisibilityScore
		}
	}
	if metrics.TotalQueries > 0 {
		metrics.AverageVisibilityScore = total / float64(metrics.TotalQueries)
	}
	return metrics, nil
}

// memoryArchive is an in-memory ObjectStorage. An object is committed on the first Close
// unless the writer context was cancelled.
type memoryArchive struct {
	mu       sync.Mutex
	objects  map[string][]byte
	putErr   error
	writeErr error
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{objects: map[string][]byte{}}
}

type archiveWriter struct {
	buf     bytes.Buffer
	ctx     context.Context
	archive *memoryArchive
	key     string
	closed  bool
}

func (w *archiveWriter) Write(p []byte) (int, error) {
	if w.archive.writeErr != nil {
		// a partial write reaches the buffer before failing
		w.buf.Write(p[:len(p)/2])
		return len(p) / 2, w.archive.writeErr
	}
	return w.buf.Write(p)
}

func (w *archiveWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.ctx.Err(); err != nil {
		return err
	}
	w.archive.mu.Lock()
	defer w.archive.mu.Unlock()
	w.archive.objects[w.key] = w.buf.Bytes()
	return nil
}

func (m *memoryArchive) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	return &archiveWriter{ctx: ctx, archive: m, key: key}, nil
}

func (m *memoryArchive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "object not found", goerr.V("key", key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
