package repository_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/repository"
	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
)

func testSQLSink(t *testing.T, driver, envName string) {
	dsn := os.Getenv(envName)
	if dsn == "" {
		t.Skip(envName + " is not set")
	}

	ctx := context.Background()
	sink, err := repository.NewSQLSink(ctx, driver, dsn)
	gt.NoError(t, err)
	defer func() { _ = sink.Close() }()

	gt.NoError(t, sink.EnsureSchema(ctx))
	gt.Equal(t, sink.Name(), driver)

	brand := "Brand-" + uuid.NewString()[:8]
	first := newTestRecord(brand, 0.4, time.Now())
	first.VisibilityScore = 60
	second := newTestRecord(brand, 0.8, time.Now())
	second.VisibilityScore = 80.5

	gt.NoError(t, sink.Write(ctx, first, ""))
	gt.NoError(t, sink.Write(ctx, second, ""))

	t.Run("duplicate response_id", func(t *testing.T) {
		err := sink.Write(ctx, first, "")
		gt.True(t, errors.Is(err, model.ErrDuplicateHistory))
	})

	t.Run("metrics match brand case-insensitively", func(t *testing.T) {
		metrics, err := sink.Metrics(ctx, strings.ToLower(brand))
		gt.NoError(t, err)
		gt.Equal(t, metrics.TotalQueries, int64(2))
		gt.Equal(t, metrics.AverageVisibilityScore, 70.25)
	})

	t.Run("unknown brand", func(t *testing.T) {
		metrics, err := sink.Metrics(ctx, "missing-"+uuid.NewString())
		gt.NoError(t, err)
		gt.Equal(t, metrics.TotalQueries, int64(0))
		gt.Equal(t, metrics.AverageVisibilityScore, 0.0)
	})
}

func TestPostgresSink(t *testing.T) {
	testSQLSink(t, repository.DriverPostgres, "TEST_POSTGRES_DSN")
}

func TestMySQLSink(t *testing.T) {
	testSQLSink(t, repository.DriverMySQL, "TEST_MYSQL_DSN")
}
