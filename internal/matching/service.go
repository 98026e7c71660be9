// Package matching keeps the face-to-client match index up to date.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/matcher"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/observability"
	"github.com/your-org/photomarket/internal/storage"
)

// Match sources carried on published events.
const (
	SourcePhoto   = "photo"
	SourceClient  = "client"
	SourceRescan  = "rescan"
	SourceRematch = "rematch"
)

const rematchLockKey = "lock:rematch-all"

// ErrRematchRunning is returned when another process holds the rematch lock.
var ErrRematchRunning = errors.New("rematch already running")

// Store is the persistence the match index needs.
type Store interface {
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	ListMatchableClients(ctx context.Context) ([]models.Client, error)
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	ListPhotoFaces(ctx context.Context, photoID uuid.UUID) ([]models.PhotoFace, error)
	ListFacesForMatching(ctx context.Context, unmatchedOnly bool) ([]models.PhotoFace, error)
	ClaimFace(ctx context.Context, faceID, clientID uuid.UUID, confidence float64) (bool, error)
	AssignFace(ctx context.Context, faceID uuid.UUID, clientID *uuid.UUID, confidence float64) error
}

// Publisher receives every newly recorded match.
type Publisher interface {
	PublishMatch(ctx context.Context, ev models.MatchEvent) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev models.MatchEvent) error

func (f PublisherFunc) PublishMatch(ctx context.Context, ev models.MatchEvent) error {
	return f(ctx, ev)
}

// Locker serializes rematch runs across processes. ok is false when the
// lock is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// RematchOptions controls a full rematch.
type RematchOptions struct {
	// Reassign recomputes every face instead of filling unmatched ones.
	Reassign bool
}

// RematchStats summarizes a full rematch.
type RematchStats struct {
	Scanned    int `json:"scanned"`
	Matched    int `json:"matched"`
	Reassigned int `json:"reassigned"`
	Cleared    int `json:"cleared"`
}

type Service struct {
	store     Store
	matcher   *matcher.Matcher
	publisher Publisher
	locker    Locker
}

// NewService wires the match index. publisher and locker may be nil.
func NewService(store Store, m *matcher.Matcher, publisher Publisher, locker Locker) *Service {
	return &Service{store: store, matcher: m, publisher: publisher, locker: locker}
}

// Matcher returns the matcher used for comparisons.
func (s *Service) Matcher() *matcher.Matcher { return s.matcher }

// Candidates loads processed clients in first-match order.
func (s *Service) Candidates(ctx context.Context) ([]matcher.Candidate, error) {
	clients, err := s.store.ListMatchableClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list matchable clients: %w", err)
	}
	out := make([]matcher.Candidate, 0, len(clients))
	for _, c := range clients {
		if !c.Matchable() {
			continue
		}
		out = append(out, matcher.Candidate{ID: c.ID, Embedding: c.Embedding})
	}
	return out, nil
}

// MatchPhoto attaches each unmatched face of an active photo to the first
// matching client. It returns the number of new matches.
func (s *Service) MatchPhoto(ctx context.Context, photoID uuid.UUID) (int, error) {
	photo, err := s.store.GetPhoto(ctx, photoID)
	if err != nil {
		return 0, fmt.Errorf("get photo: %w", err)
	}
	if photo == nil {
		return 0, fmt.Errorf("photo %s: %w", photoID, storage.ErrNotFound)
	}
	if photo.Status != models.PhotoStatusActive || !photo.FacesProcessed || !s.matcher.Available() {
		return 0, nil
	}

	candidates, err := s.Candidates(ctx)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	faces, err := s.store.ListPhotoFaces(ctx, photoID)
	if err != nil {
		return 0, fmt.Errorf("list photo faces: %w", err)
	}

	matched := 0
	for _, face := range faces {
		if face.MatchedClientID != nil {
			continue
		}
		m, ok := s.matcher.FirstMatch(face.Embedding, candidates)
		if !ok {
			continue
		}
		claimed, err := s.claim(ctx, face, m.ID, m.Confidence, SourcePhoto)
		if err != nil {
			return matched, err
		}
		if claimed {
			matched++
		}
	}
	return matched, nil
}

// MatchClient compares a processed client against every unmatched face on
// active photos. It returns the number of new matches.
func (s *Service) MatchClient(ctx context.Context, clientID uuid.UUID) (int, error) {
	client, err := s.matchableClient(ctx, clientID)
	if err != nil || client == nil {
		return 0, err
	}

	faces, err := s.store.ListFacesForMatching(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("list faces for matching: %w", err)
	}

	matched := 0
	for _, face := range faces {
		if err := ctx.Err(); err != nil {
			return matched, err
		}
		ok, conf := s.matcher.Compare(client.Embedding, face.Embedding)
		if !ok {
			continue
		}
		claimed, err := s.claim(ctx, face, client.ID, conf, SourceClient)
		if err != nil {
			return matched, err
		}
		if claimed {
			matched++
		}
	}
	return matched, nil
}

// RescanClient compares the client against all faces on active photos and
// takes over every face it matches, even ones already matched elsewhere.
func (s *Service) RescanClient(ctx context.Context, clientID uuid.UUID) (int, error) {
	client, err := s.matchableClient(ctx, clientID)
	if err != nil || client == nil {
		return 0, err
	}

	faces, err := s.store.ListFacesForMatching(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("list faces for matching: %w", err)
	}

	changed := 0
	for _, face := range faces {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		ok, conf := s.matcher.Compare(client.Embedding, face.Embedding)
		if !ok {
			continue
		}
		if face.MatchedClientID != nil && *face.MatchedClientID == client.ID {
			continue
		}
		if err := s.store.AssignFace(ctx, face.ID, &client.ID, conf); err != nil {
			return changed, fmt.Errorf("assign face %s: %w", face.ID, err)
		}
		changed++
		s.recorded(ctx, face, client.ID, conf, SourceRescan)
	}
	return changed, nil
}

// RematchAll runs a full scan of faces on active photos against all
// processed clients. Running it twice in a row changes nothing the second time.
func (s *Service) RematchAll(ctx context.Context, opts RematchOptions) (RematchStats, error) {
	var stats RematchStats

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, rematchLockKey)
		if err != nil {
			return stats, fmt.Errorf("acquire rematch lock: %w", err)
		}
		if !ok {
			return stats, ErrRematchRunning
		}
		defer unlock()
	}

	if !s.matcher.Available() {
		slog.Warn("face encoder unavailable, skipping rematch")
		return stats, nil
	}

	start := time.Now()
	candidates, err := s.Candidates(ctx)
	if err != nil {
		return stats, err
	}
	faces, err := s.store.ListFacesForMatching(ctx, !opts.Reassign)
	if err != nil {
		return stats, fmt.Errorf("list faces for matching: %w", err)
	}

	for _, face := range faces {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++
		m, ok := s.matcher.FirstMatch(face.Embedding, candidates)

		if !opts.Reassign {
			if !ok {
				continue
			}
			claimed, err := s.claim(ctx, face, m.ID, m.Confidence, SourceRematch)
			if err != nil {
				return stats, err
			}
			if claimed {
				stats.Matched++
			}
			continue
		}

		switch {
		case !ok && face.MatchedClientID != nil:
			if err := s.store.AssignFace(ctx, face.ID, nil, 0); err != nil {
				return stats, fmt.Errorf("clear face %s: %w", face.ID, err)
			}
			stats.Cleared++
		case ok && face.MatchedClientID == nil:
			if err := s.store.AssignFace(ctx, face.ID, &m.ID, m.Confidence); err != nil {
				return stats, fmt.Errorf("assign face %s: %w", face.ID, err)
			}
			stats.Matched++
			s.recorded(ctx, face, m.ID, m.Confidence, SourceRematch)
		case ok && (*face.MatchedClientID != m.ID || face.Confidence != m.Confidence):
			if err := s.store.AssignFace(ctx, face.ID, &m.ID, m.Confidence); err != nil {
				return stats, fmt.Errorf("assign face %s: %w", face.ID, err)
			}
			if *face.MatchedClientID != m.ID {
				stats.Reassigned++
				s.recorded(ctx, face, m.ID, m.Confidence, SourceRematch)
			}
		}
	}

	slog.Info("rematch finished",
		"reassign", opts.Reassign,
		"clients", len(candidates),
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"reassigned", stats.Reassigned,
		"cleared", stats.Cleared,
		"duration", time.Since(start))
	return stats, nil
}

func (s *Service) matchableClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	client, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("client %s: %w", id, storage.ErrNotFound)
	}
	if !client.Matchable() || !s.matcher.Available() {
		return nil, nil
	}
	return client, nil
}

func (s *Service) claim(ctx context.Context, face models.PhotoFace, clientID uuid.UUID, conf float64, source string) (bool, error) {
	claimed, err := s.store.ClaimFace(ctx, face.ID, clientID, conf)
	if err != nil {
		return false, fmt.Errorf("claim face %s: %w", face.ID, err)
	}
	if claimed {
		s.recorded(ctx, face, clientID, conf, source)
	}
	return claimed, nil
}

func (s *Service) recorded(ctx context.Context, face models.PhotoFace, clientID uuid.UUID, conf float64, source string) {
	s.Notify(ctx, models.MatchEvent{
		ClientID:   clientID,
		PhotoID:    face.PhotoID,
		FaceID:     face.ID,
		Confidence: conf,
		Source:     source,
		Timestamp:  time.Now().UTC(),
	})
}

// Notify counts a recorded match and forwards it to the publisher.
// Publish failures are logged, never returned.
func (s *Service) Notify(ctx context.Context, ev models.MatchEvent) {
	observability.MatchesRecorded.WithLabelValues(ev.Source).Inc()
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMatch(ctx, ev); err != nil {
		slog.Warn("publish match event", "client_id", ev.ClientID, "photo_id", ev.PhotoID, "error", err)
	}
}
