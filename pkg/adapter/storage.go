package adapter

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/elelem/visibility/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// CloudStorage keeps analysis snapshots as objects in one bucket
type CloudStorage struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

type StorageOption func(*CloudStorage)

// WithObjectPrefix sets the key prefix of every object. Default is "analyses/".
func WithObjectPrefix(prefix string) StorageOption {
	return func(s *CloudStorage) {
		s.prefix = prefix
	}
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string, opts ...StorageOption) (*CloudStorage, error) {
	if bucketName == "" {
		return nil, goerr.Wrap(model.ErrInvalidConfig, "bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	s := &CloudStorage{
		bucketName: bucketName,
		prefix:     "analyses/",
		client:     client,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *CloudStorage) Close() error {
	return s.client.Close()
}

func (s *CloudStorage) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucketName).Object(s.prefix + key)
}

func (s *CloudStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	writer := s.object(key).NewWriter(ctx)
	writer.ContentType = "application/json"
	return writer, nil
}

func (s *CloudStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "object not found",
			goerr.V("bucket", s.bucketName), goerr.V("key", s.prefix+key))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("key", s.prefix+key))
	}

	return reader, nil
}
