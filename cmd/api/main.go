package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/photomarket/internal/api"
	"github.com/your-org/photomarket/internal/api/handlers"
	"github.com/your-org/photomarket/internal/api/ws"
	"github.com/your-org/photomarket/internal/app"
	"github.com/your-org/photomarket/internal/config"
	"github.com/your-org/photomarket/internal/ledger"
	"github.com/your-org/photomarket/internal/matching"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/observability"
	"github.com/your-org/photomarket/internal/payments"
	"github.com/your-org/photomarket/internal/queue"
	"github.com/your-org/photomarket/internal/scheduler"
	"github.com/your-org/photomarket/internal/storage"
	"github.com/your-org/photomarket/internal/worker"
)

const localQueueCapacity = 1024

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Auth.JWTSecret == "" {
		slog.Error("auth.jwt_secret is empty; set it or PM_JWT_SECRET")
		os.Exit(1)
	}

	slog.Info("starting photomarket API",
		"port", cfg.Server.Port,
		"queue", cfg.Queue.Mode,
		"processing", cfg.Processing.Mode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	checks := map[string]handlers.Check{
		"postgres": db.Ping,
		"minio":    minioStore.Ping,
	}

	// Match notifications reach the hub directly in local mode and through
	// the EVENTS stream otherwise, so matches found by workers are delivered too.
	var (
		publisher matching.Publisher = hub
		tasks     queue.TaskPublisher
		local     *queue.Local
		producer  *queue.Producer
	)
	switch cfg.Queue.Mode {
	case "local":
		local = queue.NewLocal(cfg.Queue.Workers, localQueueCapacity, queue.PolicyFromConfig(cfg.Queue))
		tasks = local
		checks["queue"] = local.Ready
	default:
		producer, err = queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}
		publisher = producer
		tasks = producer
		checks["nats"] = func(context.Context) error { return producer.Ping() }
	}

	services := app.NewServices(ctx, cfg, db, minioStore, publisher)
	defer services.Close()
	if check := services.RedisCheck(); check != nil {
		checks["redis"] = check
	}

	var provider payments.Provider
	if cfg.Payments.Mode == "provider" {
		provider = payments.NewYooKassa(cfg.Payments)
		slog.Info("payments via provider", "base_url", cfg.Payments.BaseURL)
	}
	ledgerSvc := ledger.NewService(db, provider, ledger.OptionsFromConfig(cfg.Ledger))

	if producer != nil {
		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Error("create match consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		// Each API instance needs every match, so the consumer name is per host.
		host, _ := os.Hostname()
		err = consumer.ConsumeMatches(ctx, "api-matches-"+host, func(ctx context.Context, ev models.MatchEvent) error {
			return hub.PublishMatch(ctx, ev)
		})
		if err != nil {
			slog.Warn("start match consumer", "error", err)
		}
	}

	var sched *scheduler.Scheduler
	if local != nil {
		dispatcher := worker.NewDispatcher(services.Pipeline, services.Index)
		local.Start(ctx, dispatcher.Handle, dispatcher.OnExhausted)

		// Nothing else recovers tasks lost with the in-memory queue.
		sched = scheduler.New(db, local, cfg.Scheduler)
		if err := sched.Start(); err != nil {
			slog.Error("start scheduler", "error", err)
			os.Exit(1)
		}
	}

	processing := handlers.Processing{Pipeline: services.Pipeline}
	if cfg.Processing.Mode == "async" {
		processing.Tasks = tasks
	}

	router := api.NewRouter(api.RouterConfig{
		APIKey:      cfg.Auth.APIKey,
		JWTSecret:   cfg.Auth.JWTSecret,
		MaxUploadMB: cfg.Server.MaxUploadMB,
		DB:          db,
		Objects:     minioStore,
		Processing:  processing,
		Index:       services.Index,
		Ledger:      ledgerSvc,
		Tasks:       tasks,
		Hub:         hub,
		Checks:      checks,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if sched != nil {
		<-sched.Stop().Done()
	}
	cancel()
	if local != nil {
		local.Wait()
	}

	slog.Info("API server stopped")
}
