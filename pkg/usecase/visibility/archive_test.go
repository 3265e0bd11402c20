package visibility_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/usecase/visibility"
	"github.com/m-mizutani/gt"
)

func newArchivedUseCase(t *testing.T, f *fixture, archive *memoryArchive) *visibility.UseCase {
	t.Helper()
	stores := f.stores()
	stores.Archive = archive

	now := time.Date(2026, 3, 3, 17, 6, 7, 0, time.UTC)
	uc, err := visibility.New(
		visibility.Capabilities{Embedder: constantEmbedder(), Sentiment: fixedSentiment(0.5)},
		stores,
		visibility.WithClock(func() time.Time { return now }),
	)
	gt.NoError(t, err)
	return uc
}

func TestArchiveSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	archive := newMemoryArchive()
	uc := newArchivedUseCase(t, f, archive)

	outcome, err := uc.Analyze(ctx, darazRequest("resp-archive"))
	gt.NoError(t, err)

	snapshot, err := uc.Archived(ctx, "resp-archive")
	gt.NoError(t, err)
	gt.Equal(t, snapshot.ResponseID, model.ResponseID("resp-archive"))
	gt.Equal(t, snapshot.BrandName, "Daraz")
	gt.Equal(t, snapshot.RawText, darazText)
	gt.Equal(t, snapshot.Outcome.Score, outcome.Score)
	gt.A(t, snapshot.Outcome.Steps).Length(3)
	gt.True(t, snapshot.ArchivedAt.Equal(time.Date(2026, 3, 3, 17, 6, 7, 0, time.UTC)))
}

func TestArchiveKeepsFatalOutcome(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.index.upsertErr = errors.New("index unavailable")
	archive := newMemoryArchive()
	uc := newArchivedUseCase(t, f, archive)

	_, err := uc.Analyze(ctx, darazRequest("resp-fatal"))
	gt.Error(t, err)

	snapshot, err := uc.Archived(ctx, "resp-fatal")
	gt.NoError(t, err)
	gt.Equal(t, snapshot.Outcome.Step(visibility.StepIndex).Status, visibility.StepFatal)
	gt.Equal(t, snapshot.Outcome.Step(visibility.StepHistory).Status, visibility.StepSkipped)
}

func TestArchiveFailureDoesNotFailAnalysis(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	archive := newMemoryArchive()
	archive.putErr = errors.New("bucket unavailable")
	uc := newArchivedUseCase(t, f, archive)

	outcome, err := uc.Analyze(ctx, darazRequest("resp-1"))
	gt.NoError(t, err)
	gt.True(t, outcome.Succeeded())

	_, err = uc.Archived(ctx, "resp-1")
	gt.True(t, errors.Is(err, model.ErrRecordNotFound))
}

func TestArchivedWithoutArchive(t *testing.T) {
	f := newFixture()
	uc := newUseCase(t, f)

	_, err := uc.Archived(context.Background(), "resp-1")
	gt.True(t, errors.Is(err, model.ErrStoreNotInitialized))
}

func TestArchiveKeepsPreviousSnapshotOnFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("write failure", func(t *testing.T) {
		f := newFixture()
		archive := newMemoryArchive()
		uc := newArchivedUseCase(t, f, archive)

		first, err := uc.Analyze(ctx, darazRequest("resp-1"))
		gt.NoError(t, err)

		archive.writeErr = errors.New("connection reset")
		_, err = uc.Analyze(ctx, darazRequest("resp-1"))
		gt.NoError(t, err)

		snapshot, err := uc.Archived(ctx, "resp-1")
		gt.NoError(t, err)
		gt.Equal(t, snapshot.Outcome.Score, first.Score)
		gt.A(t, snapshot.Outcome.Steps).Length(3)
	})

	t.Run("marshal failure", func(t *testing.T) {
		f := newFixture()
		archive := newMemoryArchive()
		stores := f.stores()
		stores.Archive = archive

		sentiment := 0.5
		uc, err := visibility.New(visibility.Capabilities{
			Embedder: constantEmbedder(),
			Sentiment: &mockSentiment{scoreFunc: func(ctx context.Context, text string) (float64, error) {
				return sentiment, nil
			}},
		}, stores)
		gt.NoError(t, err)

		_, err = uc.Analyze(ctx, darazRequest("resp-1"))
		gt.NoError(t, err)

		// NaN can not be encoded as JSON
		sentiment = math.NaN()
		_, err = uc.Analyze(ctx, darazRequest("resp-1"))
		gt.NoError(t, err)

		snapshot, err := uc.Archived(ctx, "resp-1")
		gt.NoError(t, err)
		gt.Equal(t, snapshot.Outcome.Features.Sentiment, 0.5)
	})
}
