package adapter_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/elelem/visibility/pkg/adapter"
	"github.com/elelem/visibility/pkg/model"
	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
)

func TestCloudStorage(t *testing.T) {
	bucket := os.Getenv("TEST_STORAGE_BUCKET")
	if bucket == "" {
		t.Skip("TEST_STORAGE_BUCKET is not set")
	}

	ctx := context.Background()
	s, err := adapter.NewStorage(ctx, bucket, adapter.WithObjectPrefix("test/visibility/"))
	gt.NoError(t, err)
	defer s.Close()

	key := uuid.NewString() + ".json"

	t.Run("put then get", func(t *testing.T) {
		w, err := s.Put(ctx, key)
		gt.NoError(t, err)
		_, err = w.Write([]byte(`{"brand_name":"Daraz"}`))
		gt.NoError(t, err)
		gt.NoError(t, w.Close())

		r, err := s.Get(ctx, key)
		gt.NoError(t, err)
		defer r.Close()

		data, err := io.ReadAll(r)
		gt.NoError(t, err)
		gt.Equal(t, string(data), `{"brand_name":"Daraz"}`)
	})

	t.Run("missing object", func(t *testing.T) {
		_, err := s.Get(ctx, "missing-"+key)
		gt.True(t, errors.Is(err, model.ErrRecordNotFound))
	})
}

func TestNewStorageRequiresBucket(t *testing.T) {
	_, err := adapter.NewStorage(context.Background(), "")
	gt.True(t, errors.Is(err, model.ErrInvalidConfig))
}
