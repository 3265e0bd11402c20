package repository

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/elelem/visibility/pkg/model"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"

	sqlPingTimeout = 5 * time.Second

	pqUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	performanceTableName = "brand_performance"
)

type sqlDialect struct {
	createTable   string
	insertRow     string
	metricsByName string
}

var dialects = map[string]sqlDialect{
	DriverPostgres: {
		createTable: `
CREATE TABLE IF NOT EXISTS brand_performance (
  id SERIAL PRIMARY KEY,
  brand_name VARCHAR(255) NOT NULL,
  visibility_score REAL NOT NULL,
  query_timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
  response_id VARCHAR(255) UNIQUE NOT NULL,
  inserted_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);`,
		insertRow: `
INSERT INTO brand_performance
  (brand_name, visibility_score, query_timestamp, response_id)
VALUES ($1, $2, $3, $4);`,
		metricsByName: `
SELECT COUNT(visibility_score), AVG(visibility_score)
FROM brand_performance
WHERE LOWER(brand_name) = LOWER($1);`,
	},
	DriverMySQL: {
		createTable: `
CREATE TABLE IF NOT EXISTS brand_performance (
  id BIGINT AUTO_INCREMENT PRIMARY KEY,
  brand_name VARCHAR(255) NOT NULL,
  visibility_score DOUBLE NOT NULL,
  query_timestamp DATETIME(6) NOT NULL,
  response_id VARCHAR(255) NOT NULL UNIQUE,
  inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`,
		insertRow: `
INSERT INTO brand_performance
  (brand_name, visibility_score, query_timestamp, response_id)
VALUES (?, ?, ?, ?);`,
		metricsByName: `
SELECT COUNT(visibility_score), AVG(visibility_score)
FROM brand_performance
WHERE LOWER(brand_name) = LOWER(?);`,
	},
}

// SQLSink is the local historical sink. It keeps one compact row per response_id in the
// brand_performance table of PostgreSQL or MySQL.
type SQLSink struct {
	db      *sql.DB
	driver  string
	dialect sqlDialect
}

// NewSQLSink opens the database with pool limits and pings it
func NewSQLSink(ctx context.Context, driver, dsn string) (*SQLSink, error) {
	if _, ok := dialects[driver]; !ok {
		return nil, goerr.Wrap(model.ErrInvalidConfig, "unsupported sql driver", goerr.V("driver", driver))
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("driver", driver))
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, sqlPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to ping database", goerr.V("driver", driver))
	}

	return NewSQLSinkWithDB(db, driver)
}

// NewSQLSinkWithDB wraps an already opened database
func NewSQLSinkWithDB(db *sql.DB, driver string) (*SQLSink, error) {
	dialect, ok := dialects[driver]
	if !ok {
		return nil, goerr.Wrap(model.ErrInvalidConfig, "unsupported sql driver", goerr.V("driver", driver))
	}
	return &SQLSink{db: db, driver: driver, dialect: dialect}, nil
}

func (s *SQLSink) Close() error {
	return s.db.Close()
}

func (s *SQLSink) Name() string {
	return s.driver
}

// EnsureSchema creates the brand_performance table if it does not exist
func (s *SQLSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return goerr.Wrap(err, "failed to create table",
			goerr.V("table", performanceTableName),
			goerr.V("driver", s.driver))
	}
	return nil
}

// Write inserts the compact performance row. A second row for the same response_id is
// rejected by the unique constraint and reported as ErrDuplicateHistory.
func (s *SQLSink) Write(ctx context.Context, record *model.AnalysisRecord, _ string) error {
	row := record.PerformanceRow()

	_, err := s.db.ExecContext(ctx, s.dialect.insertRow,
		row.BrandName, row.VisibilityScore, row.Timestamp, row.ResponseID)
	if err != nil {
		if isUniqueViolation(err) {
			return goerr.Wrap(model.ErrDuplicateHistory, "history row already exists",
				goerr.V("response_id", row.ResponseID),
				goerr.V("driver", s.driver))
		}
		return goerr.Wrap(model.ErrRemoteWrite, "failed to insert performance row",
			goerr.V("response_id", row.ResponseID),
			goerr.V("driver", s.driver),
			goerr.V("cause", err.Error()),
			goerr.T(model.TagStore))
	}

	return nil
}

// Metrics returns row count and average visibility of a brand, matched case-insensitively
func (s *SQLSink) Metrics(ctx context.Context, brand string) (*model.BrandMetrics, error) {
	var (
		total int64
		avg   sql.NullFloat64
	)
	if err := s.db.QueryRowContext(ctx, s.dialect.metricsByName, brand).Scan(&total, &avg); err != nil {
		return nil, goerr.Wrap(err, "failed to query brand metrics",
			goerr.V("brand", brand),
			goerr.T(model.TagStore))
	}

	metrics := &model.BrandMetrics{BrandName: brand, TotalQueries: total}
	if total > 0 && avg.Valid {
		metrics.AverageVisibilityScore = math.Round(avg.Float64*100) / 100
	}
	return metrics, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	return false
}
