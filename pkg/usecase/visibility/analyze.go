package visibility

import (
	"context"

	"github.com/elelem/visibility/pkg/analysis"
	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// Analyze scores one LLM response and persists the record. An extraction failure returns
// before any write. A fatal persistence failure returns the partial outcome with the error.
func (u *UseCase) Analyze(ctx context.Context, req *model.AnalysisRequest) (*Outcome, error) {
	if err := u.checkReady(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger := logging.From(ctx).With("response_id", req.ResponseID, "brand", req.BrandName)
	ctx = logging.With(ctx, logger)
	logger.Info("start visibility analysis")

	record, err := u.extract(ctx, req)
	if err != nil {
		return nil, err
	}

	outcome, err := u.persist(ctx, record, req.RawText)
	u.archive(ctx, req, outcome)
	if err != nil {
		logger.Error("visibility analysis aborted", "error", err, "score", record.VisibilityScore)
		return outcome, err
	}

	logger.Info("finish visibility analysis",
		"score", outcome.Score,
		"history_recorded", outcome.HistoryRecorded(),
	)
	return outcome, nil
}

func (u *UseCase) checkReady() error {
	if u.caps.Embedder == nil {
		return goerr.Wrap(model.ErrModelNotInitialized, "embedding provider is not set")
	}
	if u.caps.Sentiment == nil {
		return goerr.Wrap(model.ErrModelNotInitialized, "sentiment provider is not set")
	}
	if u.stores.Index == nil {
		return goerr.Wrap(model.ErrStoreNotInitialized, "index store is not set")
	}
	if u.stores.Status == nil {
		return goerr.Wrap(model.ErrStoreNotInitialized, "status store is not set")
	}
	if u.stores.Sink == nil {
		return goerr.Wrap(model.ErrStoreNotInitialized, "historical sink is not set")
	}
	return nil
}

// extract runs the model-backed extractors concurrently and then the pure ones
func (u *UseCase) extract(ctx context.Context, req *model.AnalysisRequest) (*model.AnalysisRecord, error) {
	var (
		textVec   []float32
		brandVec  []float32
		sentiment float64
		history   []float64
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		v, err := u.caps.Embedder.Embed(egCtx, req.RawText)
		if err != nil {
			return goerr.Wrap(err, "failed to embed response text", goerr.T(model.TagExtraction))
		}
		textVec = v
		return nil
	})
	eg.Go(func() error {
		v, err := u.caps.Embedder.Embed(egCtx, req.BrandName)
		if err != nil {
			return goerr.Wrap(err, "failed to embed brand name", goerr.T(model.TagExtraction))
		}
		brandVec = v
		return nil
	})
	eg.Go(func() error {
		s, err := u.caps.Sentiment.Score(egCtx, req.RawText)
		if err != nil {
			return goerr.Wrap(err, "failed to score sentiment", goerr.T(model.TagExtraction))
		}
		sentiment = s
		return nil
	})
	if u.stores.History != nil && u.historyLimit > 0 {
		eg.Go(func() error {
			h, err := u.stores.History.History(egCtx, req.BrandName, req.ResponseID, u.historyLimit)
			if err != nil {
				return goerr.Wrap(err, "failed to load brand history", goerr.T(model.TagExtraction))
			}
			history = h
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, goerr.Wrap(err, "feature extraction failed",
			goerr.V("response_id", req.ResponseID),
			goerr.T(model.TagExtraction))
	}

	keywords := analysis.ExtractKeywords(req.RawText)
	features := model.FeatureSet{
		Sentiment:          sentiment,
		SemanticSimilarity: analysis.SemanticSimilarity(brandVec, textVec),
		KeywordMatch:       analysis.KeywordMatch(keywords, req.RawText),
		BrandFreq:          analysis.BrandFrequency(req.BrandName, req.RawText),
		Correctness:        analysis.Correctness(req.BrandName, req.RawText),
		Consistency:        analysis.Consistency(history, sentiment),
	}

	logging.From(ctx).Debug("features extracted",
		"features", features,
		"keywords", keywords,
		"history_size", len(history),
	)

	return &model.AnalysisRecord{
		ResponseID:      req.ResponseID,
		BrandName:       req.BrandName,
		Keywords:        keywords,
		Features:        features,
		VisibilityScore: u.aggregator.Score(features.Signals(u.norm)),
		Embedding:       textVec,
		Timestamp:       u.now().UTC(),
	}, nil
}
