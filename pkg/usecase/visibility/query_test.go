package visibility_test

import (
	"context"
	"errors"
	"testing"

	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/usecase/visibility"
	"github.com/m-mizutani/gt"
)

func TestSubmitAndAnalyze(t *testing.T) {
	f := newFixture()
	var inserted *model.QueryRecord
	f.status.insertFunc = func(ctx context.Context, record *model.QueryRecord) (model.ResponseID, error) {
		inserted = record
		return "64b7f0c2a1b2c3d4e5f60718", nil
	}
	uc := newUseCase(t, f)

	outcome, err := uc.SubmitAndAnalyze(context.Background(), &visibility.SubmitInput{
		UserQuery: "Best e-commerce platform in Bangladesh?",
		BrandName: "Daraz",
		RawText:   darazText,
	})
	gt.NoError(t, err)
	gt.Equal(t, outcome.ResponseID, model.ResponseID("64b7f0c2a1b2c3d4e5f60718"))

	gt.V(t, inserted).NotNil()
	gt.Equal(t, inserted.ResponseData.Status, model.QueryStatusProcessing)
	gt.Equal(t, inserted.ResponseData.RawLLMResponse, darazText)
	gt.Equal(t, f.status.updates["64b7f0c2a1b2c3d4e5f60718"], outcome.Score)
}

func TestSubmitRequiresBrand(t *testing.T) {
	f := newFixture()
	uc := newUseCase(t, f)

	_, err := uc.Submit(context.Background(), &visibility.SubmitInput{UserQuery: "q"})
	gt.True(t, errors.Is(err, model.ErrInvalidRequest))
}

func TestStatus(t *testing.T) {
	f := newFixture()
	f.status.getFunc = func(ctx context.Context, id model.ResponseID) (*model.QueryDetails, error) {
		return &model.QueryDetails{ResponseID: id, Status: model.QueryStatusComplete, VisibilityScore: 72.5}, nil
	}
	uc := newUseCase(t, f)

	details, err := uc.Status(context.Background(), "resp-1")
	gt.NoError(t, err)
	gt.Equal(t, details.Status, model.QueryStatusComplete)
	gt.Equal(t, details.VisibilityScore, 72.5)
}

func TestMetrics(t *testing.T) {
	f := newFixture()
	uc := newUseCase(t, f)
	ctx := context.Background()

	_, err := uc.Analyze(ctx, darazRequest("resp-1"))
	gt.NoError(t, err)
	_, err = uc.Analyze(ctx, darazRequest("resp-2"))
	gt.NoError(t, err)

	metrics, err := uc.Metrics(ctx, "Daraz")
	gt.NoError(t, err)
	gt.Equal(t, metrics.TotalQueries, int64(2))

	_, err = uc.Metrics(ctx, "")
	gt.True(t, errors.Is(err, model.ErrInvalidRequest))
}

func TestSimilar(t *testing.T) {
	f := newFixture()
	uc := newUseCase(t, f)
	ctx := context.Background()

	for _, id := range []model.ResponseID{"resp-1", "resp-2", "resp-3"} {
		_, err := uc.Analyze(ctx, darazRequest(id))
		gt.NoError(t, err)
	}

	t.Run("by text", func(t *testing.T) {
		results, err := uc.Similar(ctx, "online shopping", 2)
		gt.NoError(t, err)
		gt.A(t, results).Length(2)
	})

	t.Run("by response excludes itself", func(t *testing.T) {
		results, err := uc.SimilarTo(ctx, "resp-1", 2)
		gt.NoError(t, err)
		gt.A(t, results).Length(2)
		for _, r := range results {
			gt.NotEqual(t, r.Document.ResponseID, "resp-1")
		}
	})

	t.Run("unknown response", func(t *testing.T) {
		_, err := uc.SimilarTo(ctx, "missing", 2)
		gt.True(t, errors.Is(err, model.ErrRecordNotFound))
	})

	t.Run("non-positive limit is rejected", func(t *testing.T) {
		for _, limit := range []int{0, -1} {
			_, err := uc.Similar(ctx, "online shopping", limit)
			gt.True(t, errors.Is(err, model.ErrInvalidRequest))

			_, err = uc.SimilarTo(ctx, "resp-1", limit)
			gt.True(t, errors.Is(err, model.ErrInvalidRequest))
		}
	})
}
