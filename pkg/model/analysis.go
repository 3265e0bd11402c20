package model

import (
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
)

// EmbeddingDimension is the vector size stored in the index (all-MiniLM-L6-v2 compatible)
const EmbeddingDimension = 384

// ResponseID is an externally assigned identifier of one LLM response. It is the only join
// key between the index store, the status store and the historical sink.
type ResponseID string

func (id ResponseID) String() string { return string(id) }

// AnalysisRequest is the input of one pipeline run
type AnalysisRequest struct {
	ResponseID ResponseID
	BrandName  string
	RawText    string
}

// Validate checks if the request can be analyzed
func (r *AnalysisRequest) Validate() error {
	if strings.TrimSpace(string(r.ResponseID)) == "" {
		return goerr.Wrap(ErrInvalidRequest, "response_id is empty")
	}
	if strings.TrimSpace(r.BrandName) == "" {
		return goerr.Wrap(ErrInvalidRequest, "brand_name is empty", goerr.V("response_id", r.ResponseID))
	}
	return nil
}

// FeatureSet holds the six extractor outputs of one request. Sentiment keeps its native
// [-1, 1] range, the rest are in [0, 1].
type FeatureSet struct {
	Sentiment          float64 `json:"sentiment_score"`
	SemanticSimilarity float64 `json:"semantic_similarity"`
	KeywordMatch       float64 `json:"keyword_match"`
	BrandFreq          float64 `json:"brand_freq"`
	Correctness        float64 `json:"correctness"`
	Consistency        float64 `json:"consistency"`
}

// Signals is the aggregator input. Every field is expected in [0, 1].
type Signals struct {
	Sentiment   float64
	Semantic    float64
	Keyword     float64
	BrandFreq   float64
	Correctness float64
	Consistency float64
}

// Signals converts features into aggregator input using the given sentiment normalization
func (f FeatureSet) Signals(norm SentimentNormalization) Signals {
	return Signals{
		Sentiment:   norm.Apply(f.Sentiment),
		Semantic:    f.SemanticSimilarity,
		Keyword:     f.KeywordMatch,
		BrandFreq:   f.BrandFreq,
		Correctness: f.Correctness,
		Consistency: f.Consistency,
	}
}

// AnalysisRecord is the consolidated result of one pipeline run
type AnalysisRecord struct {
	ResponseID      ResponseID
	BrandName       string
	Keywords        []string
	Features        FeatureSet
	VisibilityScore float64
	Embedding       []float32
	Timestamp       time.Time
}

// IndexDocument is the shape written to the index store, keyed by response_id
type IndexDocument struct {
	ResponseID         string             `firestore:"response_id" json:"response_id"`
	BrandKeyword       string             `firestore:"brand_keyword" json:"brand_keyword"`
	Keywords           string             `firestore:"keywords" json:"keywords"`
	SentimentScore     float64            `firestore:"sentiment_score" json:"sentiment_score"`
	SemanticSimilarity float64            `firestore:"semantic_similarity" json:"semantic_similarity"`
	KeywordMatch       float64            `firestore:"keyword_match" json:"keyword_match"`
	BrandFreq          float64            `firestore:"brand_freq" json:"brand_freq"`
	Correctness        float64            `firestore:"correctness" json:"correctness"`
	Consistency        float64            `firestore:"consistency" json:"consistency"`
	VisibilityScore    float64            `firestore:"visibility_score" json:"visibility_score"`
	Timestamp          time.Time          `firestore:"timestamp" json:"timestamp"`
	EmbeddingVector    firestore.Vector32 `firestore:"embedding_vector" json:"embedding_vector"`
}

// IndexDocument builds the full index document including the embedding vector
func (r *AnalysisRecord) IndexDocument() *IndexDocument {
	return &IndexDocument{
		ResponseID:         string(r.ResponseID),
		BrandKeyword:       r.BrandName,
		Keywords:           strings.Join(r.Keywords, " "),
		SentimentScore:     r.Features.Sentiment,
		SemanticSimilarity: r.Features.SemanticSimilarity,
		KeywordMatch:       r.Features.KeywordMatch,
		BrandFreq:          r.Features.BrandFreq,
		Correctness:        r.Features.Correctness,
		Consistency:        r.Features.Consistency,
		VisibilityScore:    r.VisibilityScore,
		Timestamp:          r.Timestamp.UTC(),
		EmbeddingVector:    firestore.Vector32(r.Embedding),
	}
}

// NaiveTimeFormat is ISO-8601 without zone offset, used for analytics rows
const NaiveTimeFormat = "2006-01-02T15:04:05.999999"

// HistoryRow is the immutable analytics row. It drops the embedding vector and carries the
// raw text. Timestamps are timezone-naive strings in UTC.
type HistoryRow struct {
	ResponseID         string  `json:"response_id"`
	BrandKeyword       string  `json:"brand_keyword"`
	Keywords           string  `json:"keywords"`
	SentimentScore     float64 `json:"sentiment_score"`
	SemanticSimilarity float64 `json:"semantic_similarity"`
	KeywordMatch       float64 `json:"keyword_match"`
	BrandFreq          float64 `json:"brand_freq"`
	Correctness        float64 `json:"correctness"`
	Consistency        float64 `json:"consistency"`
	VisibilityScore    float64 `json:"visibility_score"`
	Timestamp          string  `json:"timestamp"`
	RawText            string  `json:"raw_text"`
}

// HistoryRow projects the record into an analytics row
func (r *AnalysisRecord) HistoryRow(rawText string) *HistoryRow {
	doc := r.IndexDocument()
	return &HistoryRow{
		ResponseID:         doc.ResponseID,
		BrandKeyword:       doc.BrandKeyword,
		Keywords:           doc.Keywords,
		SentimentScore:     doc.SentimentScore,
		SemanticSimilarity: doc.SemanticSimilarity,
		KeywordMatch:       doc.KeywordMatch,
		BrandFreq:          doc.BrandFreq,
		Correctness:        doc.Correctness,
		Consistency:        doc.Consistency,
		VisibilityScore:    doc.VisibilityScore,
		Timestamp:          doc.Timestamp.Format(NaiveTimeFormat),
		RawText:            rawText,
	}
}

// PerformanceRow is the compact row of the relational reporting table
type PerformanceRow struct {
	ResponseID      string
	BrandName       string
	VisibilityScore float64
	Timestamp       time.Time
}

// PerformanceRow projects the record into a relational reporting row
func (r *AnalysisRecord) PerformanceRow() *PerformanceRow {
	return &PerformanceRow{
		ResponseID:      string(r.ResponseID),
		BrandName:       r.BrandName,
		VisibilityScore: r.VisibilityScore,
		Timestamp:       r.Timestamp.UTC(),
	}
}
