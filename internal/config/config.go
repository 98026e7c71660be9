package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	Redis      RedisConfig      `yaml:"redis"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Vision     VisionConfig     `yaml:"vision"`
	Matching   MatchingConfig   `yaml:"matching"`
	Processing ProcessingConfig `yaml:"processing"`
	Queue      QueueConfig      `yaml:"queue"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Payments   PaymentsConfig   `yaml:"payments"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port        int   `yaml:"port"`
	MetricsPort int   `yaml:"metrics_port"`
	MaxUploadMB int64 `yaml:"max_upload_mb"`
}

type AuthConfig struct {
	APIKey    string `yaml:"api_key"`
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig is optional. An empty Addr disables the rematch lock.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	Enabled            bool          `yaml:"enabled"`
	ModelsDir          string        `yaml:"models_dir"`
	DetectionThreshold float64       `yaml:"detection_threshold"`
	EncoderTimeout     time.Duration `yaml:"encoder_timeout"`
}

type MatchingConfig struct {
	Tolerance float64 `yaml:"tolerance"`
	Metric    string  `yaml:"metric"`
}

type ProcessingConfig struct {
	// Mode is "sync" (process inside the upload request) or "async" (enqueue).
	Mode             string  `yaml:"mode"`
	ThumbnailSize    int     `yaml:"thumbnail_size"`
	ThumbnailQuality int     `yaml:"thumbnail_quality"`
	WatermarkText    string  `yaml:"watermark_text"`
	WatermarkOpacity float64 `yaml:"watermark_opacity"`
	WatermarkAngle   float64 `yaml:"watermark_angle"`
	WatermarkQuality int     `yaml:"watermark_quality"`
}

type QueueConfig struct {
	// Mode is "nats" or "local".
	Mode        string        `yaml:"mode"`
	Workers     int           `yaml:"workers"`
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

type LedgerConfig struct {
	CommissionRate string `yaml:"commission_rate"`
	MaxDownloads   int    `yaml:"max_downloads"`
}

// Commission parses CommissionRate, falling back to 15%.
func (l LedgerConfig) Commission() decimal.Decimal {
	d, err := decimal.NewFromString(l.CommissionRate)
	if err != nil {
		return decimal.NewFromFloat(0.15)
	}
	return d
}

type PaymentsConfig struct {
	// Mode is "instant" or "provider".
	Mode      string        `yaml:"mode"`
	BaseURL   string        `yaml:"base_url"`
	ShopID    string        `yaml:"shop_id"`
	SecretKey string        `yaml:"secret_key"`
	ReturnURL string        `yaml:"return_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	SweepSpec   string `yaml:"sweep_spec"`
	RematchSpec string `yaml:"rematch_spec"`

	// StaleAfter is how long a photo may sit in processing before the sweep requeues it.
	StaleAfter time.Duration `yaml:"stale_after"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 8082
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 256
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 30 * time.Minute
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.EncoderTimeout == 0 {
		cfg.Vision.EncoderTimeout = 30 * time.Second
	}
	if cfg.Matching.Tolerance == 0 {
		cfg.Matching.Tolerance = 0.6
	}
	if cfg.Matching.Metric == "" {
		cfg.Matching.Metric = "euclidean"
	}
	if cfg.Processing.Mode == "" {
		cfg.Processing.Mode = "async"
	}
	if cfg.Processing.ThumbnailSize == 0 {
		cfg.Processing.ThumbnailSize = 400
	}
	if cfg.Processing.ThumbnailQuality == 0 {
		cfg.Processing.ThumbnailQuality = 85
	}
	if cfg.Processing.WatermarkText == "" {
		cfg.Processing.WatermarkText = "PhotoMarket"
	}
	if cfg.Processing.WatermarkOpacity == 0 {
		cfg.Processing.WatermarkOpacity = 0.3
	}
	if cfg.Processing.WatermarkAngle == 0 {
		cfg.Processing.WatermarkAngle = 30
	}
	if cfg.Processing.WatermarkQuality == 0 {
		cfg.Processing.WatermarkQuality = 70
	}
	if cfg.Queue.Mode == "" {
		cfg.Queue.Mode = "nats"
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Queue.Backoff == 0 {
		cfg.Queue.Backoff = 60 * time.Second
	}
	if cfg.Ledger.CommissionRate == "" {
		cfg.Ledger.CommissionRate = "0.15"
	}
	if cfg.Ledger.MaxDownloads == 0 {
		cfg.Ledger.MaxDownloads = 5
	}
	if cfg.Payments.Mode == "" {
		cfg.Payments.Mode = "instant"
	}
	if cfg.Payments.BaseURL == "" {
		cfg.Payments.BaseURL = "https://api.yookassa.ru/v3"
	}
	if cfg.Payments.Timeout == 0 {
		cfg.Payments.Timeout = 15 * time.Second
	}
	if cfg.Scheduler.SweepSpec == "" {
		cfg.Scheduler.SweepSpec = "0 */10 * * * *"
	}
	if cfg.Scheduler.RematchSpec == "" {
		cfg.Scheduler.RematchSpec = "0 30 3 * * *"
	}
	if cfg.Scheduler.StaleAfter == 0 {
		cfg.Scheduler.StaleAfter = 15 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PM_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("PM_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("PM_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PM_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PM_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PM_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PM_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PM_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PM_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PM_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PM_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PM_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PM_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PM_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("PM_VISION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Vision.Enabled = b
		}
	}
	if v := os.Getenv("PM_MATCH_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.Tolerance = f
		}
	}
	if v := os.Getenv("PM_PROCESSING_MODE"); v != "" {
		cfg.Processing.Mode = v
	}
	if v := os.Getenv("PM_QUEUE_MODE"); v != "" {
		cfg.Queue.Mode = v
	}
	if v := os.Getenv("PM_QUEUE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.Workers = n
		}
	}
	if v := os.Getenv("PM_COMMISSION_RATE"); v != "" {
		cfg.Ledger.CommissionRate = v
	}
	if v := os.Getenv("PM_PAYMENTS_MODE"); v != "" {
		cfg.Payments.Mode = v
	}
	if v := os.Getenv("PM_PAYMENTS_SHOP_ID"); v != "" {
		cfg.Payments.ShopID = v
	}
	if v := os.Getenv("PM_PAYMENTS_SECRET_KEY"); v != "" {
		cfg.Payments.SecretKey = v
	}
}
