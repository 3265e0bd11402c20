package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QueryStatus is the processing status of a submitted query
type QueryStatus string

const (
	QueryStatusProcessing QueryStatus = "Processing"
	QueryStatusComplete   QueryStatus = "Complete"
)

// ResponseData is the mutable part of a query record
type ResponseData struct {
	BrandName       string      `bson:"brand_name" json:"brand_name"`
	RawLLMResponse  string      `bson:"raw_llm_response" json:"raw_llm_response"`
	Status          QueryStatus `bson:"status" json:"status"`
	VisibilityScore *float64    `bson:"visibility_score,omitempty" json:"visibility_score,omitempty"`
	ProcessedAt     *time.Time  `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// QueryRecord is the document kept in the live status store
type QueryRecord struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserQuery    string             `bson:"user_query" json:"user_query"`
	ResponseData ResponseData       `bson:"response_data" json:"response_data"`
	Timestamp    time.Time          `bson:"timestamp" json:"timestamp"`
	UserID       string             `bson:"user_id,omitempty" json:"user_id,omitempty"`
}

// QueryDetails is the flattened status view of one response
type QueryDetails struct {
	ResponseID      ResponseID  `json:"response_id"`
	BrandName       string      `json:"brand_name"`
	Status          QueryStatus `json:"status"`
	VisibilityScore float64     `json:"visibility_score"`
	RawLLMResponse  string      `json:"raw_llm_response"`
	ProcessedAt     *time.Time  `json:"processed_at,omitempty"`
}

// Details flattens a query record
func (r *QueryRecord) Details() *QueryDetails {
	d := &QueryDetails{
		ResponseID:     ResponseID(r.ID.Hex()),
		BrandName:      r.ResponseData.BrandName,
		Status:         r.ResponseData.Status,
		RawLLMResponse: r.ResponseData.RawLLMResponse,
		ProcessedAt:    r.ResponseData.ProcessedAt,
	}
	if r.ResponseData.VisibilityScore != nil {
		d.VisibilityScore = *r.ResponseData.VisibilityScore
	}
	return d
}

// BrandMetrics is the aggregate reporting view for one brand
type BrandMetrics struct {
	BrandName              string  `json:"brand_name"`
	TotalQueries           int64   `json:"total_queries"`
	AverageVisibilityScore float64 `json:"average_visibility_score"`
}

// SimilarResponse is one vector search hit from the index
type SimilarResponse struct {
	Document *IndexDocument
	Distance float64
}
