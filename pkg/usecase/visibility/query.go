package visibility

import (
	"context"
	"strings"

	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// SubmitInput is a user query together with the LLM answer to analyze
type SubmitInput struct {
	UserQuery string
	BrandName string
	RawText   string
	UserID    string
}

// Submit creates a pending status record and returns the response_id assigned to it
func (u *UseCase) Submit(ctx context.Context, in *SubmitInput) (model.ResponseID, error) {
	if u.stores.Status == nil {
		return "", goerr.Wrap(model.ErrStoreNotInitialized, "status store is not set")
	}
	if strings.TrimSpace(in.BrandName) == "" {
		return "", goerr.Wrap(model.ErrInvalidRequest, "brand_name is empty")
	}

	record := &model.QueryRecord{
		UserQuery: in.UserQuery,
		UserID:    in.UserID,
		Timestamp: u.now().UTC(),
		ResponseData: model.ResponseData{
			BrandName:      in.BrandName,
			RawLLMResponse: in.RawText,
			Status:         model.QueryStatusProcessing,
		},
	}

	id, err := u.stores.Status.Insert(ctx, record)
	if err != nil {
		return "", err
	}

	logging.From(ctx).Info("query submitted", "response_id", id, "brand", in.BrandName)
	return id, nil
}

// SubmitAndAnalyze submits the query and runs the pipeline with the assigned response_id
func (u *UseCase) SubmitAndAnalyze(ctx context.Context, in *SubmitInput) (*Outcome, error) {
	id, err := u.Submit(ctx, in)
	if err != nil {
		return nil, err
	}

	return u.Analyze(ctx, &model.AnalysisRequest{
		ResponseID: id,
		BrandName:  in.BrandName,
		RawText:    in.RawText,
	})
}

// Status returns the live processing status of one response
func (u *UseCase) Status(ctx context.Context, id model.ResponseID) (*model.QueryDetails, error) {
	if u.stores.Status == nil {
		return nil, goerr.Wrap(model.ErrStoreNotInitialized, "status store is not set")
	}
	return u.stores.Status.Get(ctx, id)
}

// Metrics returns aggregated visibility of a brand from the configured historical sink
func (u *UseCase) Metrics(ctx context.Context, brand string) (*model.BrandMetrics, error) {
	if u.stores.Sink == nil {
		return nil, goerr.Wrap(model.ErrStoreNotInitialized, "historical sink is not set")
	}
	if strings.TrimSpace(brand) == "" {
		return nil, goerr.Wrap(model.ErrInvalidRequest, "brand_name is empty")
	}
	return u.stores.Sink.Metrics(ctx, brand)
}

func validateLimit(limit int) error {
	if limit <= 0 {
		return goerr.Wrap(model.ErrInvalidRequest, "limit must be positive", goerr.V("limit", limit))
	}
	return nil
}

// Similar embeds text and returns the nearest analyzed responses
func (u *UseCase) Similar(ctx context.Context, text string, limit int) ([]*model.SimilarResponse, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	if u.caps.Embedder == nil {
		return nil, goerr.Wrap(model.ErrModelNotInitialized, "embedding provider is not set")
	}
	if u.stores.Index == nil {
		return nil, goerr.Wrap(model.ErrStoreNotInitialized, "index store is not set")
	}

	vec, err := u.caps.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query text")
	}

	return u.stores.Index.SearchSimilar(ctx, vec, limit)
}

// SimilarTo returns responses nearest to an already indexed one, excluding itself
func (u *UseCase) SimilarTo(ctx context.Context, id model.ResponseID, limit int) ([]*model.SimilarResponse, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	if u.stores.Index == nil {
		return nil, goerr.Wrap(model.ErrStoreNotInitialized, "index store is not set")
	}

	doc, err := u.stores.Index.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	results, err := u.stores.Index.SearchSimilar(ctx, doc.EmbeddingVector, limit+1)
	if err != nil {
		return nil, err
	}

	filtered := make([]*model.SimilarResponse, 0, limit)
	for _, r := range results {
		if r.Document.ResponseID == id.String() {
			continue
		}
		if len(filtered) == limit {
			break
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}
