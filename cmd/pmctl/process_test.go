package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/matching"
	"github.com/your-org/photomarket/internal/models"
)

func TestPhotoQuery(t *testing.T) {
	tests := []struct {
		all        bool
		status     string
		wantUnproc bool
		wantStatus models.PhotoStatus
		wantErr    bool
	}{
		{false, "", true, "", false},
		{true, "", false, "", false},
		{true, "error", false, models.PhotoStatusError, false},
		{false, "active", true, models.PhotoStatusActive, false},
		{true, "deleted", false, "", true},
		{true, "bogus", false, "", true},
	}

	for _, tt := range tests {
		q, err := photoQuery(tt.all, tt.status)
		if (err != nil) != tt.wantErr {
			t.Errorf("photoQuery(%v, %q) error = %v, wantErr %v", tt.all, tt.status, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if q.UnprocessedOnly != tt.wantUnproc {
			t.Errorf("photoQuery(%v, %q).UnprocessedOnly = %v, want %v", tt.all, tt.status, q.UnprocessedOnly, tt.wantUnproc)
		}
		var got models.PhotoStatus
		if q.Status != nil {
			got = *q.Status
		}
		if got != tt.wantStatus {
			t.Errorf("photoQuery(%v, %q).Status = %q, want %q", tt.all, tt.status, got, tt.wantStatus)
		}
	}
}

func TestProcessPhotos(t *testing.T) {
	ids := make([]uuid.UUID, 12)
	for i := range ids {
		ids[i] = uuid.New()
	}
	failing := map[uuid.UUID]bool{ids[1]: true, ids[5]: true}
	skipping := map[uuid.UUID]bool{ids[2]: true, ids[7]: true, ids[9]: true}

	var inFlight, peak int64
	var mu sync.Mutex
	seen := make(map[uuid.UUID]int)
	process := func(_ context.Context, id uuid.UUID) (bool, error) {
		n := atomic.AddInt64(&inFlight, 1)
		defer atomic.AddInt64(&inFlight, -1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		seen[id]++
		mu.Unlock()
		if failing[id] {
			return false, errors.New("decode failed")
		}
		return !skipping[id], nil
	}
	var done int64

	got := processPhotos(context.Background(), ids, 3, process, func() { atomic.AddInt64(&done, 1) })

	want := processCounts{processed: 7, skipped: 3, failed: 2}
	if got != want {
		t.Errorf("processPhotos() = %+v, want %+v", got, want)
	}
	if done != int64(len(ids)) {
		t.Errorf("done called %d times, want %d", done, len(ids))
	}
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want at most 3", peak)
	}
	for _, id := range ids {
		if seen[id] != 1 {
			t.Errorf("photo %s processed %d times, want 1", id, seen[id])
		}
	}
}

type fakeRematcher struct {
	stats matching.RematchStats
	err   error
	opts  matching.RematchOptions
}

func (f *fakeRematcher) RematchAll(_ context.Context, opts matching.RematchOptions) (matching.RematchStats, error) {
	f.opts = opts
	return f.stats, f.err
}

func TestRematch(t *testing.T) {
	ctx := context.Background()

	r := &fakeRematcher{stats: matching.RematchStats{Scanned: 4, Matched: 2}}
	stats, err := rematch(ctx, r, true)
	if err != nil || stats.Matched != 2 || !r.opts.Reassign {
		t.Errorf("rematch() = %+v, %v, reassign %v; want 2 matched, nil, true", stats, err, r.opts.Reassign)
	}

	r = &fakeRematcher{err: matching.ErrRematchRunning}
	if _, err := rematch(ctx, r, false); err == nil || errors.Is(err, matching.ErrRematchRunning) {
		t.Errorf("rematch() while running = %v, want a plain retry message", err)
	}

	cause := errors.New("db down")
	r = &fakeRematcher{err: cause}
	if _, err := rematch(ctx, r, false); !errors.Is(err, cause) {
		t.Errorf("rematch() error = %v, want wrapped %v", err, cause)
	}
}
