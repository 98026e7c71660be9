package app

import (
	"context"
	"testing"

	"github.com/your-org/photomarket/internal/config"
	"github.com/your-org/photomarket/internal/storage/mock"
)

func TestNewServicesDegrades(t *testing.T) {
	cfg := &config.Config{}
	cfg.Matching.Tolerance = 0.6
	cfg.Matching.Metric = "euclidean"

	s := NewServices(context.Background(), cfg, mock.NewStore(), mock.NewObjects(), nil)
	defer s.Close()

	if s.Encoder.Available() {
		t.Error("encoder available with vision disabled")
	}
	if s.Index == nil || s.Pipeline == nil {
		t.Fatal("services not built")
	}
	if s.Redis != nil || s.RedisCheck() != nil {
		t.Error("redis wired without an address")
	}
	if s.Index.Matcher().Available() {
		t.Error("matcher available without an encoder")
	}
}
