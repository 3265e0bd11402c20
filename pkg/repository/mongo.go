package repository

import (
	"context"
	"errors"
	"time"

	"github.com/elelem/visibility/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultStatusCollection = "brand_analysis"
	mongoConnectTimeout     = 5 * time.Second
)

// MongoStatus keeps live processing status of submitted queries in MongoDB. Records are keyed
// by ObjectID, whose hex form is the response_id used across the pipeline.
type MongoStatus struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

type MongoOption func(*mongoConfig)

type mongoConfig struct {
	collection string
	now        func() time.Time
}

func WithStatusCollection(name string) MongoOption {
	return func(c *mongoConfig) {
		c.collection = name
	}
}

// WithStatusClock replaces the clock used for processed_at
func WithStatusClock(now func() time.Time) MongoOption {
	return func(c *mongoConfig) {
		c.now = now
	}
}

// NewMongoStatus connects to MongoDB and checks the primary is reachable
func NewMongoStatus(ctx context.Context, uri, database string, opts ...MongoOption) (*MongoStatus, error) {
	cfg := &mongoConfig{
		collection: defaultStatusCollection,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect mongodb", goerr.V("database", database))
	}

	pingCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, goerr.Wrap(err, "failed to ping mongodb", goerr.V("database", database))
	}

	return &MongoStatus{
		client:     client,
		collection: client.Database(database).Collection(cfg.collection),
		now:        cfg.now,
	}, nil
}

func (m *MongoStatus) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func parseObjectID(id model.ResponseID) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id.String())
	if err != nil {
		return primitive.NilObjectID, goerr.Wrap(model.ErrInvalidIdentifier, "response_id is not an ObjectID",
			goerr.V("response_id", id),
			goerr.V("cause", err.Error()))
	}
	return oid, nil
}

// Insert creates a pending record and returns the generated response_id
func (m *MongoStatus) Insert(ctx context.Context, record *model.QueryRecord) (model.ResponseID, error) {
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = m.now().UTC()
	}
	if record.ResponseData.Status == "" {
		record.ResponseData.Status = model.QueryStatusProcessing
	}

	if _, err := m.collection.InsertOne(ctx, record); err != nil {
		return "", goerr.Wrap(err, "failed to insert query record", goerr.T(model.TagStore))
	}

	return model.ResponseID(record.ID.Hex()), nil
}

// UpdateComplete marks the record complete. Zero matched documents is ErrRecordNotFound.
func (m *MongoStatus) UpdateComplete(ctx context.Context, id model.ResponseID, score float64) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"response_data.status":           model.QueryStatusComplete,
			"response_data.visibility_score": score,
			"response_data.processed_at":     m.now().UTC(),
		},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return goerr.Wrap(err, "failed to update query status",
			goerr.V("response_id", id),
			goerr.T(model.TagStore))
	}
	if result.MatchedCount == 0 {
		return goerr.Wrap(model.ErrRecordNotFound, "no query record matched", goerr.V("response_id", id))
	}

	return nil
}

func (m *MongoStatus) Get(ctx context.Context, id model.ResponseID) (*model.QueryDetails, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var record model.QueryRecord
	if err := m.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, goerr.Wrap(model.ErrRecordNotFound, "query record not found", goerr.V("response_id", id))
		}
		return nil, goerr.Wrap(err, "failed to find query record",
			goerr.V("response_id", id),
			goerr.T(model.TagStore))
	}

	return record.Details(), nil
}
