package cli

import (
	"context"
	"io"

	"github.com/elelem/visibility/pkg/adapter"
	"github.com/elelem/visibility/pkg/analysis"
	"github.com/elelem/visibility/pkg/interfaces"
	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/repository"
	"github.com/elelem/visibility/pkg/usecase/visibility"
	"github.com/elelem/visibility/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Global
	environment string
	logLevel    string
	logFormat   string

	// Stores
	project         string
	database        string
	indexCollection string
	mongoURI        string
	mongoDatabase   string
	sqlDriver       string
	sqlDSN          string
	bigqueryProject string
	bigqueryDataset string
	bigqueryTable   string
	archiveBucket   string

	// Models
	embeddingProvider string
	sentimentProvider string
	geminiProject     string
	geminiLocation    string
	geminiModel       string
	geminiEmbedModel  string
	openaiAPIKey      string
	openaiBaseURL     string

	// Scoring
	weightsFile   string
	sentimentNorm string
	historyLimit  int64
	indexPolicy   string
	statusPolicy  string
	historyPolicy string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "environment",
			Aliases:     []string{"e"},
			Usage:       "Deployment environment (LOCAL or CLOUD). Selects the historical sink",
			Value:       string(model.EnvironmentLocal),
			Sources:     cli.EnvVars("VISIBILITY_ENVIRONMENT"),
			Destination: &cfg.environment,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("VISIBILITY_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       string(logging.FormatConsole),
			Sources:     cli.EnvVars("VISIBILITY_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// storeFlags returns flags of the index store, status store and historical sinks
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "index-collection",
			Usage:       "Firestore collection of analysis documents",
			Value:       "brand_analysis",
			Sources:     cli.EnvVars("VISIBILITY_INDEX_COLLECTION"),
			Destination: &cfg.indexCollection,
		},
		&cli.StringFlag{
			Name:        "mongo-uri",
			Usage:       "MongoDB connection URI of the status store",
			Sources:     cli.EnvVars("MONGO_URI"),
			Destination: &cfg.mongoURI,
		},
		&cli.StringFlag{
			Name:        "mongo-database",
			Usage:       "MongoDB database name",
			Value:       "brand_visibility",
			Sources:     cli.EnvVars("MONGO_DB_NAME"),
			Destination: &cfg.mongoDatabase,
		},
		&cli.StringFlag{
			Name:        "sql-driver",
			Usage:       "Relational sink driver for LOCAL environment (postgres, mysql)",
			Value:       repository.DriverPostgres,
			Sources:     cli.EnvVars("VISIBILITY_SQL_DRIVER"),
			Destination: &cfg.sqlDriver,
		},
		&cli.StringFlag{
			Name:        "sql-dsn",
			Usage:       "Relational sink DSN",
			Sources:     cli.EnvVars("DATABASE_URL"),
			Destination: &cfg.sqlDSN,
		},
		&cli.StringFlag{
			Name:        "bigquery-project",
			Usage:       "BigQuery project ID for CLOUD environment (defaults to --project)",
			Sources:     cli.EnvVars("BIGQUERY_PROJECT_ID"),
			Destination: &cfg.bigqueryProject,
		},
		&cli.StringFlag{
			Name:        "bigquery-dataset",
			Usage:       "BigQuery dataset of the history table",
			Sources:     cli.EnvVars("BIGQUERY_DATASET_ID"),
			Destination: &cfg.bigqueryDataset,
		},
		&cli.StringFlag{
			Name:        "bigquery-table",
			Usage:       "BigQuery history table",
			Value:       "brand_analysis_history",
			Sources:     cli.EnvVars("BIGQUERY_TABLE_ID"),
			Destination: &cfg.bigqueryTable,
		},
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket for analysis snapshots (disabled when empty)",
			Sources:     cli.EnvVars("VISIBILITY_ARCHIVE_BUCKET"),
			Destination: &cfg.archiveBucket,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedding-provider",
			Usage:       "Embedding provider (gemini, openai)",
			Value:       "gemini",
			Sources:     cli.EnvVars("VISIBILITY_EMBEDDING_PROVIDER"),
			Destination: &cfg.embeddingProvider,
		},
		&cli.StringFlag{
			Name:        "sentiment-provider",
			Usage:       "Sentiment provider (lexicon, gemini)",
			Value:       "lexicon",
			Sources:     cli.EnvVars("VISIBILITY_SENTIMENT_PROVIDER"),
			Destination: &cfg.sentimentProvider,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini generative model",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "gemini-embedding-model",
			Usage:       "Gemini embedding model",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("GEMINI_EMBEDDING_MODEL"),
			Destination: &cfg.geminiEmbedModel,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "OpenAI compatible API base URL",
			Sources:     cli.EnvVars("OPENAI_BASE_URL"),
			Destination: &cfg.openaiBaseURL,
		},
	}
}

// scoreFlags returns flags of the aggregator and persistence policy
func scoreFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "weights",
			Aliases:     []string{"w"},
			Usage:       "Path to YAML file of aggregator weights",
			Sources:     cli.EnvVars("VISIBILITY_WEIGHTS_FILE"),
			Destination: &cfg.weightsFile,
		},
		&cli.StringFlag{
			Name:        "sentiment-normalization",
			Usage:       "How sentiment enters the score (remap, raw)",
			Value:       string(model.SentimentRemap),
			Sources:     cli.EnvVars("VISIBILITY_SENTIMENT_NORMALIZATION"),
			Destination: &cfg.sentimentNorm,
		},
		&cli.IntFlag{
			Name:        "history-limit",
			Usage:       "Number of prior sentiment scores used for consistency",
			Value:       20,
			Sources:     cli.EnvVars("VISIBILITY_HISTORY_LIMIT"),
			Destination: &cfg.historyLimit,
		},
		&cli.StringFlag{
			Name:        "index-policy",
			Usage:       "Failure policy of the index write (fatal, soft, retry:N[:fatal|soft])",
			Value:       "fatal",
			Sources:     cli.EnvVars("VISIBILITY_INDEX_POLICY"),
			Destination: &cfg.indexPolicy,
		},
		&cli.StringFlag{
			Name:        "status-policy",
			Usage:       "Failure policy of the status update",
			Value:       "fatal",
			Sources:     cli.EnvVars("VISIBILITY_STATUS_POLICY"),
			Destination: &cfg.statusPolicy,
		},
		&cli.StringFlag{
			Name:        "history-policy",
			Usage:       "Failure policy of the history write (defaults to soft on CLOUD, fatal on LOCAL)",
			Sources:     cli.EnvVars("VISIBILITY_HISTORY_POLICY"),
			Destination: &cfg.historyPolicy,
		},
	}
}

// setupLogger builds the logger, makes it default and attaches it to ctx
func (cfg *config) setupLogger(ctx context.Context, w io.Writer) context.Context {
	logger := logging.New(cfg.logLevel, w, logging.WithFormat(logging.ParseFormat(cfg.logFormat)))
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// closer collects cleanup functions of opened clients
type closer []func()

func (c closer) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// newIndex creates the Firestore index store
func (cfg *config) newIndex(ctx context.Context) (*repository.FirestoreIndex, error) {
	if cfg.project == "" {
		return nil, goerr.Wrap(model.ErrStoreNotInitialized, "project is required")
	}

	index, err := repository.NewFirestore(ctx, cfg.project, cfg.database,
		repository.WithCollection(cfg.indexCollection))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create index store")
	}
	return index, nil
}

// newStatus creates the MongoDB status store
func (cfg *config) newStatus(ctx context.Context) (*repository.MongoStatus, error) {
	if cfg.mongoURI == "" {
		return nil, goerr.Wrap(model.ErrStoreNotInitialized, "mongo-uri is required")
	}

	status, err := repository.NewMongoStatus(ctx, cfg.mongoURI, cfg.mongoDatabase)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create status store")
	}
	return status, nil
}

// newSink creates the historical sink of the environment and makes sure its table exists
func (cfg *config) newSink(ctx context.Context, env model.Environment) (interfaces.HistoricalSink, func(), error) {
	switch env {
	case model.EnvironmentCloud:
		project := cfg.bigqueryProject
		if project == "" {
			project = cfg.project
		}
		if project == "" {
			return nil, nil, goerr.Wrap(model.ErrStoreNotInitialized, "bigquery-project or project is required")
		}

		bq, err := adapter.NewBigQuery(ctx, project, cfg.bigqueryDataset, adapter.WithHistoryTable(cfg.bigqueryTable))
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create bigquery sink")
		}
		if err := bq.EnsureTable(ctx); err != nil {
			_ = bq.Close()
			return nil, nil, err
		}
		return bq, func() { _ = bq.Close() }, nil

	default:
		if cfg.sqlDSN == "" {
			return nil, nil, goerr.Wrap(model.ErrStoreNotInitialized, "sql-dsn is required")
		}

		sink, err := repository.NewSQLSink(ctx, cfg.sqlDriver, cfg.sqlDSN)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create relational sink")
		}
		if err := sink.EnsureSchema(ctx); err != nil {
			_ = sink.Close()
			return nil, nil, err
		}
		return sink, func() { _ = sink.Close() }, nil
	}
}

// newArchive creates the snapshot archive. It returns nil without a bucket.
func (cfg *config) newArchive(ctx context.Context) (*adapter.CloudStorage, error) {
	if cfg.archiveBucket == "" {
		return nil, nil
	}

	archive, err := adapter.NewStorage(ctx, cfg.archiveBucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create archive")
	}
	return archive, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.Wrap(model.ErrModelNotInitialized, "gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.Wrap(model.ErrModelNotInitialized, "gemini-location is required")
	}

	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithGenerativeModel(cfg.geminiModel),
		adapter.WithEmbeddingModel(cfg.geminiEmbedModel),
	)
}

func (cfg *config) newEmbedder(ctx context.Context) (interfaces.EmbeddingProvider, error) {
	switch cfg.embeddingProvider {
	case "gemini":
		return cfg.newGemini(ctx)
	case "openai":
		var opts []adapter.OpenAIOption
		if cfg.openaiBaseURL != "" {
			opts = append(opts, adapter.WithOpenAIBaseURL(cfg.openaiBaseURL))
		}
		return adapter.NewOpenAIEmbedder(cfg.openaiAPIKey, opts...)
	default:
		return nil, goerr.Wrap(model.ErrInvalidConfig, "unknown embedding provider",
			goerr.V("provider", cfg.embeddingProvider))
	}
}

func (cfg *config) newSentiment(ctx context.Context) (interfaces.SentimentProvider, error) {
	switch cfg.sentimentProvider {
	case "lexicon":
		return analysis.NewLexiconSentiment(), nil
	case "gemini":
		return cfg.newGemini(ctx)
	default:
		return nil, goerr.Wrap(model.ErrInvalidConfig, "unknown sentiment provider",
			goerr.V("provider", cfg.sentimentProvider))
	}
}

// useCaseOptions converts scoring flags into usecase options
func (cfg *config) useCaseOptions(env model.Environment) ([]visibility.Option, error) {
	weights := model.DefaultWeights()
	if cfg.weightsFile != "" {
		w, err := model.LoadWeights(cfg.weightsFile)
		if err != nil {
			return nil, err
		}
		weights = w
	}

	norm, err := model.ParseSentimentNormalization(cfg.sentimentNorm)
	if err != nil {
		return nil, err
	}

	indexPolicy, err := visibility.ParseStepPolicy(cfg.indexPolicy)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid index-policy")
	}
	statusPolicy, err := visibility.ParseStepPolicy(cfg.statusPolicy)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid status-policy")
	}
	historyPolicy := visibility.DefaultHistoryPolicy(env)
	if cfg.historyPolicy != "" {
		historyPolicy, err = visibility.ParseStepPolicy(cfg.historyPolicy)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid history-policy")
		}
	}

	return []visibility.Option{
		visibility.WithWeights(weights),
		visibility.WithSentimentNormalization(norm),
		visibility.WithHistoryLimit(int(cfg.historyLimit)),
		visibility.WithStepPolicy(visibility.StepIndex, indexPolicy),
		visibility.WithStepPolicy(visibility.StepStatus, statusPolicy),
		visibility.WithStepPolicy(visibility.StepHistory, historyPolicy),
	}, nil
}

// newUseCase wires every store and model handle. The returned closer must be called when
// the command ends.
func (cfg *config) newUseCase(ctx context.Context) (*visibility.UseCase, closer, error) {
	var cleanup closer

	env, err := model.ParseEnvironment(cfg.environment)
	if err != nil {
		return nil, nil, err
	}

	opts, err := cfg.useCaseOptions(env)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		return nil, nil, err
	}
	sentiment, err := cfg.newSentiment(ctx)
	if err != nil {
		return nil, nil, err
	}

	index, err := cfg.newIndex(ctx)
	if err != nil {
		return nil, nil, err
	}
	cleanup = append(cleanup, func() { _ = index.Close() })

	status, err := cfg.newStatus(ctx)
	if err != nil {
		cleanup.Close()
		return nil, nil, err
	}
	cleanup = append(cleanup, func() { _ = status.Close(context.Background()) })

	sink, closeSink, err := cfg.newSink(ctx, env)
	if err != nil {
		cleanup.Close()
		return nil, nil, err
	}
	cleanup = append(cleanup, closeSink)

	stores := visibility.Stores{Index: index, Status: status, Sink: sink, History: index}
	archive, err := cfg.newArchive(ctx)
	if err != nil {
		cleanup.Close()
		return nil, nil, err
	}
	if archive != nil {
		stores.Archive = archive
		cleanup = append(cleanup, func() { _ = archive.Close() })
	}

	logging.From(ctx).Debug("visibility pipeline configured",
		"environment", env,
		"sink", sink.Name(),
		"embedding", cfg.embeddingProvider,
		"sentiment", cfg.sentimentProvider,
		"archive", cfg.archiveBucket,
	)

	uc, err := visibility.New(
		visibility.Capabilities{Embedder: embedder, Sentiment: sentiment},
		stores,
		opts...,
	)
	if err != nil {
		cleanup.Close()
		return nil, nil, err
	}

	return uc, cleanup, nil
}
