package adapter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/elelem/visibility/pkg/model"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const defaultHistoryTable = "brand_analysis_history"

// historySchema mirrors model.HistoryRow. The timestamp column is DATETIME because rows carry
// a timezone-naive UTC timestamp.
var historySchema = bigquery.Schema{
	{Name: "response_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "brand_keyword", Type: bigquery.StringFieldType, Required: true},
	{Name: "keywords", Type: bigquery.StringFieldType},
	{Name: "sentiment_score", Type: bigquery.FloatFieldType},
	{Name: "semantic_similarity", Type: bigquery.FloatFieldType},
	{Name: "keyword_match", Type: bigquery.FloatFieldType},
	{Name: "brand_freq", Type: bigquery.FloatFieldType},
	{Name: "correctness", Type: bigquery.FloatFieldType},
	{Name: "consistency", Type: bigquery.FloatFieldType},
	{Name: "visibility_score", Type: bigquery.FloatFieldType},
	{Name: "timestamp", Type: bigquery.DateTimeFieldType},
	{Name: "raw_text", Type: bigquery.StringFieldType},
}

// BigQuery is the cloud historical sink. Every pipeline run appends one immutable row.
type BigQuery struct {
	client    *bigquery.Client
	datasetID string
	tableID   string
}

// BigQueryOption is a functional option for BigQuery sink
type BigQueryOption func(*BigQuery)

func WithHistoryTable(tableID string) BigQueryOption {
	return func(bq *BigQuery) {
		bq.tableID = tableID
	}
}

// NewBigQuery creates a new BigQuery sink
func NewBigQuery(ctx context.Context, projectID, datasetID string, opts ...BigQueryOption) (*BigQuery, error) {
	if datasetID == "" {
		return nil, goerr.Wrap(model.ErrInvalidConfig, "bigquery dataset is empty")
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	bq := &BigQuery{
		client:    client,
		datasetID: datasetID,
		tableID:   defaultHistoryTable,
	}

	for _, opt := range opts {
		opt(bq)
	}

	return bq, nil
}

func (bq *BigQuery) Close() error {
	return bq.client.Close()
}

func (bq *BigQuery) Name() string {
	return "bigquery"
}

func (bq *BigQuery) table() *bigquery.Table {
	return bq.client.Dataset(bq.datasetID).Table(bq.tableID)
}

// EnsureTable creates the history table when it does not exist yet
func (bq *BigQuery) EnsureTable(ctx context.Context) error {
	tbl := bq.table()

	_, err := tbl.Metadata(ctx)
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return goerr.Wrap(err, "failed to get table metadata",
			goerr.V("dataset", bq.datasetID),
			goerr.V("table", bq.tableID))
	}

	if err := tbl.Create(ctx, &bigquery.TableMetadata{Schema: historySchema}); err != nil {
		return goerr.Wrap(err, "failed to create history table",
			goerr.V("dataset", bq.datasetID),
			goerr.V("table", bq.tableID))
	}

	return nil
}

// historySaver adapts a history row to the streaming insert API. The insert ID is unique per
// call, so client retries inside one Put are deduplicated but separate runs append new rows.
type historySaver struct {
	row      *model.HistoryRow
	insertID string
}

func newHistorySaver(row *model.HistoryRow) *historySaver {
	return &historySaver{row: row, insertID: uuid.NewString()}
}

func (s *historySaver) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"response_id":         s.row.ResponseID,
		"brand_keyword":       s.row.BrandKeyword,
		"keywords":            s.row.Keywords,
		"sentiment_score":     s.row.SentimentScore,
		"semantic_similarity": s.row.SemanticSimilarity,
		"keyword_match":       s.row.KeywordMatch,
		"brand_freq":          s.row.BrandFreq,
		"correctness":         s.row.Correctness,
		"consistency":         s.row.Consistency,
		"visibility_score":    s.row.VisibilityScore,
		"timestamp":           s.row.Timestamp,
		"raw_text":            s.row.RawText,
	}, s.insertID, nil
}

// Write appends the history row of the record
func (bq *BigQuery) Write(ctx context.Context, record *model.AnalysisRecord, rawText string) error {
	saver := newHistorySaver(record.HistoryRow(rawText))

	if err := bq.table().Inserter().Put(ctx, saver); err != nil {
		return goerr.Wrap(model.ErrRemoteWrite, "failed to insert history row",
			goerr.V("response_id", record.ResponseID),
			goerr.V("table", bq.tableID),
			goerr.V("cause", err.Error()),
			goerr.T(model.TagStore))
	}

	return nil
}

type metricsRow struct {
	TotalQueries int64                `bigquery:"total_queries"`
	AverageScore bigquery.NullFloat64 `bigquery:"average_score"`
}

// Metrics aggregates visibility scores of a brand from the history table
func (bq *BigQuery) Metrics(ctx context.Context, brand string) (*model.BrandMetrics, error) {
	q := bq.client.Query(fmt.Sprintf(
		"SELECT COUNT(visibility_score) AS total_queries, AVG(visibility_score) AS average_score "+
			"FROM `%s.%s.%s` WHERE LOWER(brand_keyword) = LOWER(@brand)",
		bq.client.Project(), bq.datasetID, bq.tableID))
	q.Parameters = []bigquery.QueryParameter{{Name: "brand", Value: brand}}

	job, err := q.Run(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run metrics query", goerr.V("brand", brand))
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to wait for query completion", goerr.V("brand", brand))
	}
	if status.Err() != nil {
		return nil, goerr.Wrap(status.Err(), "metrics query failed", goerr.V("brand", brand))
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read query result")
	}

	metrics := &model.BrandMetrics{BrandName: brand}
	var row metricsRow
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return metrics, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to iterate query result")
	}

	metrics.TotalQueries = row.TotalQueries
	if row.TotalQueries > 0 && row.AverageScore.Valid {
		metrics.AverageVisibilityScore = math.Round(row.AverageScore.Float64*100) / 100
	}
	return metrics, nil
}
