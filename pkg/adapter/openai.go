package adapter

import (
	"context"

	"github.com/elelem/visibility/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder produces embeddings with the OpenAI embeddings API
type OpenAIEmbedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

type OpenAIOption func(*openaiConfig)

type openaiConfig struct {
	baseURL   string
	model     openai.EmbeddingModel
	dimension int
}

// WithOpenAIBaseURL points the client at a compatible endpoint
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) {
		c.baseURL = url
	}
}

func WithOpenAIModel(model string) OpenAIOption {
	return func(c *openaiConfig) {
		c.model = openai.EmbeddingModel(model)
	}
}

func NewOpenAIEmbedder(apiKey string, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, goerr.Wrap(model.ErrModelNotInitialized, "openai api key is empty")
	}

	cfg := &openaiConfig{
		model:     openai.SmallEmbedding3,
		dimension: model.EmbeddingDimension,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		clientCfg.BaseURL = cfg.baseURL
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.model,
		dimension: cfg.dimension,
	}, nil
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      []string{text},
		Model:      o.model,
		Dimensions: o.dimension,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embeddings", goerr.V("model", o.model))
	}

	if len(resp.Data) == 0 {
		return nil, goerr.New("empty embedding response", goerr.V("model", o.model))
	}

	values := resp.Data[0].Embedding
	if len(values) != o.dimension {
		return nil, goerr.New("unexpected embedding dimension",
			goerr.V("expected", o.dimension),
			goerr.V("actual", len(values)))
	}

	return values, nil
}
