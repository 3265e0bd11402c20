package repository_test

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/repository"
	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
)

func setupFirestore(t *testing.T) *repository.FirestoreIndex {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.NewFirestore(context.Background(), projectID, databaseID,
		repository.WithCollection("test_brand_analysis"))
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func randomEmbedding() []float32 {
	v := make([]float32, model.EmbeddingDimension)
	for i := range v {
		v[i] = rand.Float32()*2 - 1
	}
	return v
}

func newTestRecord(brand string, sentiment float64, ts time.Time) *model.AnalysisRecord {
	return &model.AnalysisRecord{
		ResponseID: model.ResponseID(uuid.NewString()),
		BrandName:  brand,
		Keywords:   []string{"daraz", "leading"},
		Features: model.FeatureSet{
			Sentiment:          sentiment,
			SemanticSimilarity: 0.7,
			KeywordMatch:       1,
			BrandFreq:          0.5,
			Correctness:        1,
			Consistency:        1,
		},
		VisibilityScore: 72.5,
		Embedding:       randomEmbedding(),
		Timestamp:       ts,
	}
}

func TestFirestoreUpsertAndGet(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	record := newTestRecord("Daraz", 0.6, time.Now())
	gt.NoError(t, repo.Upsert(ctx, record.IndexDocument()))

	// rerun overwrites the same document
	record.VisibilityScore = 80.25
	gt.NoError(t, repo.Upsert(ctx, record.IndexDocument()))

	doc, err := repo.Get(ctx, record.ResponseID)
	gt.NoError(t, err)
	gt.Equal(t, doc.ResponseID, record.ResponseID.String())
	gt.Equal(t, doc.VisibilityScore, 80.25)
	gt.A(t, doc.EmbeddingVector).Length(model.EmbeddingDimension)
}

func TestFirestoreGetNotFound(t *testing.T) {
	repo := setupFirestore(t)

	_, err := repo.Get(context.Background(), model.ResponseID(uuid.NewString()))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrRecordNotFound))
}

func TestFirestoreHistory(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	brand := "brand-" + uuid.NewString()
	now := time.Now()
	older := newTestRecord(brand, 0.1, now.Add(-2*time.Minute))
	newer := newTestRecord(brand, 0.9, now.Add(-1*time.Minute))
	current := newTestRecord(brand, 0.5, now)

	for _, r := range []*model.AnalysisRecord{older, newer, current} {
		gt.NoError(t, repo.Upsert(ctx, r.IndexDocument()))
	}

	scores, err := repo.History(ctx, brand, current.ResponseID, 10)
	gt.NoError(t, err)
	gt.A(t, scores).Length(2)
	gt.Equal(t, scores[0], 0.9)
	gt.Equal(t, scores[1], 0.1)

	t.Run("unknown brand has no history", func(t *testing.T) {
		scores, err := repo.History(ctx, "brand-"+uuid.NewString(), "", 10)
		gt.NoError(t, err)
		gt.A(t, scores).Length(0)
	})
}

func TestFirestoreSearchSimilar(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	record := newTestRecord("Pathao", 0.3, time.Now())
	gt.NoError(t, repo.Upsert(ctx, record.IndexDocument()))

	results, err := repo.SearchSimilar(ctx, record.Embedding, 3)
	gt.NoError(t, err)
	gt.True(t, len(results) > 0)
	gt.Equal(t, results[0].Document.ResponseID, record.ResponseID.String())
}
