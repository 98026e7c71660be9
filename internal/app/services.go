// Package app assembles the services shared by the binaries.
package app

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/photomarket/internal/cache"
	"github.com/your-org/photomarket/internal/config"
	"github.com/your-org/photomarket/internal/matcher"
	"github.com/your-org/photomarket/internal/matching"
	"github.com/your-org/photomarket/internal/pipeline"
	"github.com/your-org/photomarket/internal/storage"
	"github.com/your-org/photomarket/internal/vision"
)

type Services struct {
	Encoder  vision.FaceEncoder
	Index    *matching.Service
	Pipeline *pipeline.Pipeline
	// Redis is nil when no address is configured or it was unreachable.
	Redis *redis.Client

	closers []func()
}

// NewServices loads the face encoder and builds the match index and photo
// pipeline on top of it. Missing models or Redis degrade the services
// instead of failing.
func NewServices(ctx context.Context, cfg *config.Config, db storage.Store, objects storage.ObjectStore, publisher matching.Publisher) *Services {
	s := &Services{}

	enc, closeEnc := vision.NewEncoder(cfg.Vision)
	s.Encoder = enc
	s.closers = append(s.closers, closeEnc)

	var locker matching.Locker
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, rematch runs unlocked", "addr", cfg.Redis.Addr, "error", err)
		} else {
			s.Redis = client
			s.closers = append(s.closers, func() { _ = client.Close() })
			locker = cache.NewLocker(client, cfg.Redis.LockTTL)
		}
	}

	m := matcher.New(cfg.Matching.Tolerance, matcher.Metric(cfg.Matching.Metric), enc)
	s.Index = matching.NewService(db, m, publisher, locker)
	s.Pipeline = pipeline.New(db, objects, enc, s.Index, pipeline.OptionsFromConfig(cfg.Processing))
	return s
}

// RedisCheck reports Redis health, or nil when Redis is not in use.
func (s *Services) RedisCheck() func(context.Context) error {
	if s.Redis == nil {
		return nil
	}
	return func(ctx context.Context) error { return s.Redis.Ping(ctx).Err() }
}

// Close releases resources in reverse order of acquisition.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
