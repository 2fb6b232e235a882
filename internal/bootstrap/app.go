package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"tenantrag/internal/ai"
	"tenantrag/internal/app"
	"tenantrag/internal/cache"
	"tenantrag/internal/config"
	"tenantrag/internal/metrics"
	"tenantrag/internal/model"
	"tenantrag/internal/pkg/logger"
	"tenantrag/internal/platform/blob"
	"tenantrag/internal/platform/database"
	rabbitmqClient "tenantrag/internal/platform/rabbitmq"
	redisClient "tenantrag/internal/platform/redis"
	"tenantrag/internal/repository"
	httptransport "tenantrag/internal/transport/http"
	"tenantrag/internal/transport/http/handler"
	"tenantrag/internal/transport/pubsub"
	"tenantrag/internal/vectorstore"
	"tenantrag/internal/worker"
)

// App owns every connection a process needs and builds the services on top
// of them. Each binary picks the services it runs.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	MQConn   *amqp.Connection
	Broker   pubsub.Broker
	Blobs    blob.Store
	Vectors  vectorstore.Store
	Provider *ai.Provider
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Tenants   *repository.TenantRepository
	Users     *repository.UserRepository
	Documents *repository.DocumentRepository
	Sessions  *repository.SessionRepository
	Messages  *repository.MessageRepository
	Jobs      *rabbitmqClient.JobPublisher

	StartedAt time.Time

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{
		Config:    cfg,
		Log:       log,
		StartedAt: time.Now(),
	}
	if err := a.connect(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	a.Tenants = repository.NewTenantRepository(a.DB)
	a.Users = repository.NewUserRepository(a.DB)
	a.Documents = repository.NewDocumentRepository(a.DB)
	a.Sessions = repository.NewSessionRepository(a.DB)
	a.Messages = repository.NewMessageRepository(a.DB)
	a.Jobs = rabbitmqClient.NewJobPublisher(a.MQConn, cfg.RabbitMQ.DocumentQueue)

	a.Provider = ai.NewProvider(
		ai.ChatConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
		},
		ai.EmbeddingConfig{
			BaseURL: cfg.LLM.EmbeddingBaseURL,
			APIKey:  cfg.LLM.EmbeddingAPIKey,
			Model:   cfg.LLM.EmbeddingModel,
		},
		time.Duration(cfg.LLM.TimeoutSeconds)*time.Second,
	)
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	db, err := database.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN(), cfg.App.Env == "dev")
	if err != nil {
		return err
	}
	a.DB = db
	a.closers = append(a.closers, func() error { return database.Close(db) })

	rdb, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	a.Redis = rdb
	a.closers = append(a.closers, rdb.Close)

	broker := pubsub.NewRedisBroker(a.Log.With("component", "broker"), rdb)
	a.Broker = broker
	a.closers = append(a.closers, broker.Close)

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}
	a.MQConn = mqConn
	a.closers = append(a.closers, mqConn.Close)

	switch cfg.Storage.Backend {
	case "gcs":
		store, err := blob.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsFile)
		if err != nil {
			return err
		}
		a.Blobs = store
		a.closers = append(a.closers, store.Close)
	default:
		store, err := blob.NewLocalStore(cfg.Storage.LocalDir)
		if err != nil {
			return err
		}
		a.Blobs = store
	}

	switch cfg.Vector.Backend {
	case "qdrant":
		store, err := vectorstore.NewQdrantStore(ctx, vectorstore.QdrantConfig{
			Host:       cfg.Vector.QdrantHost,
			Port:       cfg.Vector.QdrantPort,
			APIKey:     cfg.Vector.QdrantAPIKey,
			UseTLS:     cfg.Vector.QdrantUseTLS,
			Collection: cfg.Vector.QdrantCollection,
			VectorSize: uint64(cfg.Vector.Dimension), //nolint:gosec // dimension is validated positive
		})
		if err != nil {
			return err
		}
		a.Vectors = store
		a.closers = append(a.closers, store.Close)
	case "memory":
		a.Log.Warn("using in-process vector store; vectors are not shared between processes")
		a.Vectors = vectorstore.NewMemoryStore()
	default:
		a.Vectors = vectorstore.NewPGVectorStore(db)
	}
	return nil
}

// Migrate creates or updates the relational schema, and the chunk table when
// vectors live in postgres.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.DB.WithContext(ctx).AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.Document{},
		&model.ChatSession{},
		&model.Message{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	if pg, ok := a.Vectors.(*vectorstore.PGVectorStore); ok {
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) AuthService() *app.AuthService {
	cfg := a.Config.Auth
	return app.NewAuthService(a.Users, a.Tenants, app.AuthConfig{
		JWTSecret:         cfg.JWTSecret,
		TokenTTL:          time.Duration(cfg.JWTExpireMinute) * time.Minute,
		WidgetTokenTTL:    time.Duration(cfg.WidgetExpireMinute) * time.Minute,
		MinPasswordLength: cfg.MinPasswordLength,
		AllowSelfRegister: cfg.AllowSelfRegister,
	})
}

func (a *App) ChatService() *app.ChatService {
	return app.NewChatService(a.Broker, a.Broker, a.Sessions, a.Messages)
}

func (a *App) DocumentService() *app.DocumentService {
	return app.NewDocumentService(
		a.Log.With("component", "documents"),
		a.Tenants,
		a.Documents,
		a.Blobs,
		a.Jobs,
		a.Vectors,
		a.Broker,
		app.DocumentServiceConfig{
			MaxUploadBytes:   a.Config.Upload.MaxUploadBytes,
			DefaultPageQuota: a.Config.Upload.MaxPagesPerTenant,
		},
	)
}

func (a *App) IngestionService() *app.IngestionService {
	return app.NewIngestionService(
		a.Log.With("component", "ingestion"),
		a.Documents,
		a.Blobs,
		a.Provider,
		a.Vectors,
		a.Broker,
		a.Metrics,
		app.IngestionConfig{
			ChunkSize:    a.Config.RAG.ChunkSize,
			ChunkOverlap: a.Config.RAG.ChunkOverlap,
			BatchSize:    a.Config.RAG.EmbeddingBatchSize,
		},
	)
}

func (a *App) Orchestrator() *app.Orchestrator {
	cfg := a.Config
	history := cache.NewHistoryCache(a.Redis, time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second)
	return app.NewOrchestrator(
		a.Log.With("component", "orchestrator"),
		a.Tenants,
		a.Messages,
		history,
		app.NewRetriever(a.Provider, a.Vectors, cfg.RAG.TopK),
		a.Provider,
		a.Broker,
		app.NewPromptBuilder(cfg.RAG.DefaultTone, cfg.RAG.NoInfoMessage),
		a.Metrics,
		app.OrchestratorConfig{
			RAGEnabled:    cfg.RAG.Enabled,
			MaxContext:    cfg.LLM.MaxContextMessage,
			NoInfoMessage: cfg.RAG.NoInfoMessage,
			TurnTimeout:   time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		},
	)
}

// ChatAgent wires a fresh orchestrator to the session inboxes.
func (a *App) ChatAgent() *worker.ChatAgent {
	return worker.NewChatAgent(a.Broker, a.Orchestrator(), cache.NewRequestClaims(a.Redis, 0), a.Log.With("component", "agent"))
}

func (a *App) DocumentWorker() *worker.DocumentJobWorker {
	return worker.NewDocumentJobWorker(
		a.MQConn,
		a.IngestionService(),
		a.Log.With("component", "worker"),
		a.Config.RabbitMQ.DocumentQueue,
		a.Config.Worker.MaxJobs,
		time.Duration(a.Config.Worker.JobTimeoutSeconds)*time.Second,
	)
}

func (a *App) HealthHandler() *handler.HealthHandler {
	return handler.NewHealthHandler(a.Config.App.Name, a.Config.App.Env, a.StartedAt, map[string]handler.Checker{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		},
		"rabbitmq": func(context.Context) error {
			if a.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		},
	})
}

// Router builds the public API. The returned function releases the rate
// limiter.
func (a *App) Router() (http.Handler, func()) {
	cfg := a.Config
	return httptransport.NewRouter(httptransport.RouterDeps{
		Log:       a.Log.With("component", "http"),
		Metrics:   a.Metrics,
		Gatherer:  a.Registry,
		GinMode:   cfg.App.GinMode,
		JWTSecret: cfg.Auth.JWTSecret,
		RateRPS:   cfg.RateLimit.RPS,
		RateBurst: cfg.RateLimit.Burst,
		Heartbeat: time.Duration(cfg.App.StreamHeartbeatSeconds) * time.Second,
		Auth:      a.AuthService(),
		Chat:      a.ChatService(),
		Documents: a.DocumentService(),
		Health:    a.HealthHandler(),
	})
}

func (a *App) OpsRouter() http.Handler {
	return httptransport.NewOpsRouter(a.HealthHandler(), a.Registry)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) TenantService() *app.TenantService {
	return app.NewTenantService(a.Tenants)
}
