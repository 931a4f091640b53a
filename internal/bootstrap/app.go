package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"aligncall/internal/ai"
	"aligncall/internal/app"
	"aligncall/internal/cache"
	"aligncall/internal/config"
	mysqlClient "aligncall/internal/platform/mysql"
	"aligncall/internal/platform/qdrant"
	rabbitmqClient "aligncall/internal/platform/rabbitmq"
	redisClient "aligncall/internal/platform/redis"
	"aligncall/internal/repository"
	"aligncall/internal/voice"
	"aligncall/internal/worker"
)

// Services are the application services shared by the router and workers.
type Services struct {
	Auth       *app.AuthService
	Campaigns  *app.CampaignService
	Dials      *app.DialService
	CallEvents *app.CallEventService
	Tools      *app.ToolDispatcher
	Knowledge  *app.KnowledgeIngestService
	Geo        *app.GeoIngestService
}

type App struct {
	Config *config.Config
	Logger *slog.Logger
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	Qdrant *qdrant.KnowledgeStore

	Services       Services
	CallEventQueue *rabbitmqClient.JobPublisher
	Workers        []*worker.QueueWorker

	StartedAt time.Time
}

// New connects every dependency, builds the services and starts the queue workers.
func New(ctx context.Context) (*App, error) {
	a, err := connect(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := a.startWorkers(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// NewLoader connects storage only, for bulk loads from the command line.
// Campaign, dial and call-event services are not built.
func NewLoader(ctx context.Context) (*App, error) {
	return connect(ctx, false)
}

func connect(ctx context.Context, withQueue bool) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	a := &App{Config: cfg, Logger: newLogger(cfg.App), StartedAt: time.Now()}
	slog.SetDefault(a.Logger)

	a.MySQL, err = mysqlClient.New(ctx, cfg.MySQLDSN(), cfg.App.Env != "prod")
	if err != nil {
		return nil, err
	}
	if err := mysqlClient.Migrate(a.MySQL); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	if withQueue {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	store, err := a.knowledgeStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.buildServices(store)
	return a, nil
}

// knowledgeStore picks the configured backend. The MySQL backend scans every
// chunk and is therefore always exact.
func (a *App) knowledgeStore(ctx context.Context) (app.KnowledgeStore, error) {
	cfg := a.Config.Knowledge
	switch cfg.Backend {
	case "", "mysql":
		return app.NewScanStore(repository.NewKnowledgeChunkRepository(a.MySQL)), nil
	case "qdrant":
		store, err := qdrant.New(cfg.QdrantAddr, cfg.QdrantCollection)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = store.Close()
			return nil, err
		}
		a.Qdrant = store
		return store, nil
	default:
		return nil, fmt.Errorf("unknown knowledge backend %q", cfg.Backend)
	}
}

func (a *App) buildServices(store app.KnowledgeStore) {
	cfg, logger := a.Config, a.Logger

	llm := ai.NewClient(ai.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		ChatModel:      cfg.LLM.Model,
		AnalysisModel:  cfg.LLM.AnalysisModel,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})

	chunkRepo := repository.NewKnowledgeChunkRepository(a.MySQL)
	geoRepo := repository.NewGeoRepository(a.MySQL)
	cityCache := cache.NewCityCache(a.Redis, cfg.CityCacheTTL())

	var archive app.ChunkArchive
	if a.Qdrant != nil {
		archive = chunkRepo
	}

	a.Services = Services{
		Auth: app.NewAuthService(
			repository.NewOperatorRepository(a.MySQL),
			cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
		),
		Tools: app.NewToolDispatcher(
			app.NewRetrievalService(llm, store, cfg.Knowledge.TopK, cfg.Knowledge.Exact, logger),
			app.NewGeoResolver(geoRepo, cityCache, logger),
			app.NewAnswerComposer(llm),
			cfg.ToolTimeout(),
			logger,
		),
		Knowledge: app.NewKnowledgeIngestService(llm, store, archive, logger),
		Geo:       app.NewGeoIngestService(geoRepo, cityCache, logger),
	}

	if a.MQConn == nil {
		return
	}

	voiceClient := voice.NewClient(voice.Config{
		BaseURL:            cfg.Voice.BaseURL,
		APIKey:             cfg.Voice.APIKey,
		AssistantID:        cfg.Voice.AssistantID,
		PhoneNumberID:      cfg.Voice.PhoneNumberID,
		MaxDurationSeconds: cfg.Voice.MaxDurationSeconds,
	})
	callRepo := repository.NewCallRepository(a.MySQL)
	a.CallEventQueue = rabbitmqClient.NewJobPublisher(a.MQConn, cfg.RabbitMQ.CallEventQueue)

	a.Services.Campaigns = app.NewCampaignService(
		repository.NewBatchRepository(a.MySQL),
		callRepo,
		rabbitmqClient.NewJobPublisher(a.MQConn, cfg.RabbitMQ.DialQueue),
		cfg.Campaign.UploadDir,
		cfg.Campaign.MaxDialsPerUpload,
		logger,
	)
	a.Services.Dials = app.NewDialService(callRepo, voiceClient, logger)
	a.Services.CallEvents = app.NewCallEventService(
		callRepo,
		voiceClient,
		app.NewTranscriptAnalyst(llm, logger),
		logger,
	)
}

func (a *App) startWorkers(ctx context.Context) error {
	cfg := a.Config
	limit := rate.Inf
	if cfg.Voice.DialsPerSecond > 0 {
		limit = rate.Limit(cfg.Voice.DialsPerSecond)
	}

	a.Workers = []*worker.QueueWorker{
		worker.NewQueueWorker(a.MQConn, cfg.RabbitMQ.DialQueue,
			worker.DialHandler(a.Services.Dials), rate.NewLimiter(limit, 1), a.Logger),
		worker.NewQueueWorker(a.MQConn, cfg.RabbitMQ.CallEventQueue,
			worker.CallEventHandler(a.Services.CallEvents), nil, a.Logger),
	}
	for _, w := range a.Workers {
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start worker failed: %w", err)
		}
	}
	return nil
}

func newLogger(cfg config.AppConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Env, "prod") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("app", cfg.Name)
}

func (a *App) Close() error {
	var errs []error
	for _, w := range a.Workers {
		w.Close()
	}
	if a.Qdrant != nil {
		errs = append(errs, a.Qdrant.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.MQConn != nil {
		errs = append(errs, a.MQConn.Close())
	}
	if a.MySQL != nil {
		if sqlDB, err := a.MySQL.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
