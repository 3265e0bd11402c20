package adapter

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/elelem/visibility/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const sentimentInstruction = `You rate the sentiment polarity of text.
Return a JSON object with a single field "score": a number from -1.0 (very negative) to 1.0 (very positive), 0.0 for neutral.`

// GeminiClient serves embeddings, sentiment scoring and text generation from Vertex AI
type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string
	dimension       int32
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

// WithEmbeddingDimension overrides the requested output dimensionality
func WithEmbeddingDimension(dim int32) GeminiOption {
	return func(g *GeminiClient) {
		g.dimension = dim
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
		dimension:       model.EmbeddingDimension,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Embed returns the embedding vector of text
func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(g.dimension),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V("model", g.embeddingModel))
	}

	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, goerr.New("empty embedding response", goerr.V("model", g.embeddingModel))
	}

	values := resp.Embeddings[0].Values
	if len(values) != int(g.dimension) {
		return nil, goerr.New("unexpected embedding dimension",
			goerr.V("expected", g.dimension),
			goerr.V("actual", len(values)))
	}

	return values, nil
}

type sentimentResult struct {
	Score float64 `json:"score"`
}

// Score asks the generative model for a sentiment polarity in [-1, 1]
func (g *GeminiClient) Score(ctx context.Context, text string) (float64, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(sentimentInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"score": {
					Type:        genai.TypeNumber,
					Description: "Sentiment polarity from -1.0 to 1.0",
				},
			},
			Required: []string{"score"},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, genai.Text(text), config)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to generate sentiment", goerr.V("model", g.generativeModel))
	}

	var result sentimentResult
	if err := json.Unmarshal([]byte(resp.Text()), &result); err != nil {
		return 0, goerr.Wrap(err, "failed to parse sentiment response", goerr.V("text", resp.Text()))
	}

	return math.Max(-1, math.Min(1, result.Score)), nil
}

// Generate returns the raw text answer of the generative model
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, genai.Text(prompt), nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content", goerr.V("model", g.generativeModel))
	}

	return strings.TrimSpace(resp.Text()), nil
}
