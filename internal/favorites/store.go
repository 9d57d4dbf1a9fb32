package favorites

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"weatherfav/internal/logger"
	"weatherfav/internal/owm"
	"weatherfav/internal/weather"
)

// Repository is the local record store. Implementations own sort-order
// assignment and make RewriteSortOrder atomic.
type Repository interface {
	// Create persists rec with sort order max+1 (0 when empty) and returns it.
	Create(ctx context.Context, rec Record) (Record, error)
	FetchOrdered(ctx context.Context) ([]Record, error)
	// DeleteByIdentifier removes at most one row. A missing id is not an error.
	DeleteByIdentifier(ctx context.Context, id string) error
	// RewriteSortOrder sets ids[i]'s sort order to i. Unknown ids are skipped.
	RewriteSortOrder(ctx context.Context, ids []string) error
	// UpdateWeather returns ErrNotFound for an unknown id.
	UpdateWeather(ctx context.Context, id string, report weather.Report) error
}

// Gateway is the remote side of a refresh.
type Gateway interface {
	LoadCurrentWeather(ctx context.Context, lat, lon float64) (*owm.CurrentWeather, error)
}

// Publisher mirrors changes outside the process.
type Publisher interface {
	PublishChange(ctx context.Context, c Change) error
}

const DefaultChangeBuffer = 16

// Store orchestrates the repository and the gateway and emits changes.
//
// The change stream has a single subscriber slot: each Changes call closes
// the previous channel and hands out a new one. Events emitted before a
// subscription are not replayed, and a full buffer drops the event.
type Store struct {
	repo      Repository
	gateway   Gateway
	publisher Publisher
	buffer    int
	log       *zap.SugaredLogger

	// writes serialises every repository mutation.
	writes sync.Mutex

	subMu sync.Mutex
	sub   chan Change
}

type Option func(*Store)

// WithPublisher mirrors every emitted change through p.
func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithChangeBuffer sets the subscriber channel capacity.
func WithChangeBuffer(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.buffer = n
		}
	}
}

func NewStore(repo Repository, gateway Gateway, opts ...Option) *Store {
	s := &Store{
		repo:    repo,
		gateway: gateway,
		buffer:  DefaultChangeBuffer,
		log:     logger.GetLogger().Named("favorites"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a record that already carries weather and a range.
func (s *Store) Create(ctx context.Context, rec Record) (Record, error) {
	if !rec.complete() {
		return Record{}, ErrMissingData
	}
	if rec.ID == "" {
		rec.ID = NewID()
	}

	s.writes.Lock()
	created, err := s.repo.Create(ctx, rec)
	s.writes.Unlock()
	if err != nil {
		return Record{}, fmt.Errorf("create favorite: %w", err)
	}

	s.emit(ctx, Change{Kind: Added, Record: created})
	return created, nil
}

// Fetch returns every favorite by ascending sort order.
func (s *Store) Fetch(ctx context.Context) ([]Record, error) {
	recs, err := s.repo.FetchOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch favorites: %w", err)
	}
	return recs, nil
}

// Remove deletes rec by identifier. Removing an unknown id succeeds.
func (s *Store) Remove(ctx context.Context, rec Record) error {
	s.writes.Lock()
	err := s.repo.DeleteByIdentifier(ctx, rec.ID)
	s.writes.Unlock()
	if err != nil {
		return fmt.Errorf("remove favorite %s: %w", rec.ID, err)
	}

	s.emit(ctx, Change{Kind: Removed, Record: rec})
	return nil
}

// Reorder gives each id its index in ids. The call is abandoned, without an
// error, when an id repeats or the ids that resolve to stored favorites do not
// number exactly the current favorites. Unknown ids keep their slot.
func (s *Store) Reorder(ctx context.Context, ids []string) error {
	s.writes.Lock()
	defer s.writes.Unlock()

	current, err := s.repo.FetchOrdered(ctx)
	if err != nil {
		return fmt.Errorf("reorder favorites: %w", err)
	}

	known := make(map[string]bool, len(current))
	for _, r := range current {
		known[r.ID] = true
	}
	seen := make(map[string]bool, len(ids))
	resolved := 0
	for _, id := range ids {
		if seen[id] {
			s.log.Warnw("reorder abandoned: repeated identifier", "id", id)
			return nil
		}
		seen[id] = true
		if known[id] {
			resolved++
		}
	}

	if resolved != len(current) {
		s.log.Warnw("reorder abandoned: identifiers do not match favorites",
			"requested", len(ids), "resolved", resolved, "favorites", len(current))
		return nil
	}

	if err := s.repo.RewriteSortOrder(ctx, ids); err != nil {
		return fmt.Errorf("reorder favorites: %w", err)
	}
	return nil
}

// LoadWeatherData fetches current weather for a coordinate pair.
func (s *Store) LoadWeatherData(ctx context.Context, lat, lon float64) (*owm.CurrentWeather, error) {
	return s.gateway.LoadCurrentWeather(ctx, lat, lon)
}

// SaveWeather persists refreshed reports one at a time. Records without a
// report or no longer stored are skipped.
func (s *Store) SaveWeather(ctx context.Context, recs []Record) (int, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	saved := 0
	for _, r := range recs {
		if r.Weather == nil {
			continue
		}
		err := s.repo.UpdateWeather(ctx, r.ID, *r.Weather)
		switch {
		case err == nil:
			saved++
		case errors.Is(err, ErrNotFound):
			s.log.Debugw("skipping weather for removed favorite", "id", r.ID)
		default:
			return saved, fmt.Errorf("save weather %s: %w", r.ID, err)
		}
	}
	return saved, nil
}

// Changes returns a fresh change stream, closing the previous one.
func (s *Store) Changes() <-chan Change {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.sub != nil {
		close(s.sub)
	}
	s.sub = make(chan Change, s.buffer)
	return s.sub
}

// Close ends the live change stream, if any.
func (s *Store) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.sub != nil {
		close(s.sub)
		s.sub = nil
	}
}

func (s *Store) emit(ctx context.Context, c Change) {
	s.subMu.Lock()
	if s.sub != nil {
		select {
		case s.sub <- c:
		default:
			s.log.Warnw("change stream full, dropping event", "kind", c.Kind.String(), "id", c.Record.ID)
		}
	}
	s.subMu.Unlock()

	if s.publisher != nil {
		if err := s.publisher.PublishChange(ctx, c); err != nil {
			s.log.Warnw("failed to mirror change", "kind", c.Kind.String(), "id", c.Record.ID, "error", err)
		}
	}
}
