package repository

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/elelem/visibility/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultIndexCollection = "brand_analysis"
	vectorDistanceField    = "vector_distance"
)

// FirestoreIndex keeps analysis documents in a Firestore collection, one document per
// response_id. It serves brand history and vector similarity search.
type FirestoreIndex struct {
	client     *firestore.Client
	collection string
}

type FirestoreOption func(*FirestoreIndex)

// WithCollection overrides the collection name
func WithCollection(name string) FirestoreOption {
	return func(f *FirestoreIndex) {
		f.collection = name
	}
}

// NewFirestore creates a new Firestore index
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...FirestoreOption) (*FirestoreIndex, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	f := &FirestoreIndex{
		client:     client,
		collection: defaultIndexCollection,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *FirestoreIndex) Close() error {
	return f.client.Close()
}

// Upsert writes the document at its response_id. A rerun overwrites the previous version.
func (f *FirestoreIndex) Upsert(ctx context.Context, doc *model.IndexDocument) error {
	if doc.ResponseID == "" {
		return goerr.Wrap(model.ErrInvalidIdentifier, "empty response_id", goerr.T(model.TagStore))
	}

	if _, err := f.client.Collection(f.collection).Doc(doc.ResponseID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to upsert index document",
			goerr.V("response_id", doc.ResponseID),
			goerr.T(model.TagStore))
	}
	return nil
}

func (f *FirestoreIndex) Get(ctx context.Context, id model.ResponseID) (*model.IndexDocument, error) {
	snap, err := f.client.Collection(f.collection).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrRecordNotFound, "index document not found", goerr.V("response_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get index document", goerr.V("response_id", id), goerr.T(model.TagStore))
	}

	var doc model.IndexDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode index document", goerr.V("response_id", id))
	}
	return &doc, nil
}

// History returns sentiment scores of earlier documents of the same brand, newest first.
// The document of the running request is skipped so a rerun does not compare with itself.
func (f *FirestoreIndex) History(ctx context.Context, brand string, exclude model.ResponseID, limit int) ([]float64, error) {
	if limit <= 0 {
		return nil, nil
	}

	iter := f.client.Collection(f.collection).
		Where("brand_keyword", "==", brand).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit + 1).
		Documents(ctx)
	defer iter.Stop()

	scores := make([]float64, 0, limit)
	for len(scores) < limit {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to query brand history",
				goerr.V("brand", brand),
				goerr.T(model.TagStore))
		}
		if snap.Ref.ID == exclude.String() {
			continue
		}

		var doc model.IndexDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode history document", goerr.V("id", snap.Ref.ID))
		}
		scores = append(scores, doc.SentimentScore)
	}

	return scores, nil
}

// SearchSimilar finds the nearest documents by cosine distance of the embedding vector
func (f *FirestoreIndex) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*model.SimilarResponse, error) {
	if len(embedding) == 0 {
		return nil, goerr.New("empty embedding for similarity search")
	}

	query := f.client.Collection(f.collection).FindNearest(
		"embedding_vector",
		firestore.Vector32(embedding),
		limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: vectorDistanceField},
	)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var results []*model.SimilarResponse
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to run vector search", goerr.T(model.TagStore))
		}

		var doc model.IndexDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode similar document", goerr.V("id", snap.Ref.ID))
		}

		var distance float64
		if v, ok := snap.Data()[vectorDistanceField].(float64); ok {
			distance = v
		}

		results = append(results, &model.SimilarResponse{Document: &doc, Distance: distance})
	}

	return results, nil
}
