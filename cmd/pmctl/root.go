package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/your-org/photomarket/internal/app"
	"github.com/your-org/photomarket/internal/config"
	"github.com/your-org/photomarket/internal/observability"
	"github.com/your-org/photomarket/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pmctl",
	Short: "Maintenance tool for the photo marketplace",
	Long: `pmctl runs one-off maintenance against the marketplace database and
object store: reprocessing photos, rematching faces, issuing access tokens
and sending commands to the scheduler.

Settings come from the YAML config; PM_* variables, including those in a
local .env file, override it.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	observability.SetupLogger(cfg.Logging.Level, "text")
	return cfg, nil
}

// env is what the data commands run against.
type env struct {
	cfg      *config.Config
	db       *storage.PostgresStore
	services *app.Services
}

func (e *env) Close() {
	e.services.Close()
	e.db.Close()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	objects, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to minio: %w", err)
	}

	return &env{cfg: cfg, db: db, services: app.NewServices(ctx, cfg, db, objects, nil)}, nil
}
