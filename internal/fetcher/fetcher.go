package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"weatherfav/internal/favorites"
	"weatherfav/internal/logger"
)

// FavoriteStore is the persistence side of a refresh cycle.
type FavoriteStore interface {
	Fetch(ctx context.Context) ([]favorites.Record, error)
	SaveWeather(ctx context.Context, recs []favorites.Record) (int, error)
}

// BatchRefresher fetches fresh weather for a batch of favorites.
type BatchRefresher interface {
	RefreshMany(ctx context.Context, recs []favorites.Record) ([]favorites.Record, error)
}

// Fetcher runs refresh cycles, either on a ticker or on demand. Cycles go
// through a Reloader, so a new cycle cancels the one in flight.
type Fetcher struct {
	store     FavoriteStore
	refresher BatchRefresher
	reloader  favorites.Reloader
	log       *zap.SugaredLogger
}

func New(store FavoriteStore, refresher BatchRefresher) *Fetcher {
	return &Fetcher{
		store:     store,
		refresher: refresher,
		log:       logger.GetLogger().Named("fetcher"),
	}
}

func (f *Fetcher) RunRefreshLoop(ctx context.Context, interval time.Duration) {
	f.log.Infow("favorite refresher starting", "interval", interval)

	f.refreshLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.log.Info("favorite refresher stopped")
			return
		case <-ticker.C:
			f.refreshLogged(ctx)
		}
	}
}

func (f *Fetcher) refreshLogged(ctx context.Context) {
	if _, err := f.Refresh(ctx); err != nil {
		if errors.Is(err, favorites.ErrSuperseded) {
			f.log.Debug("refresh cycle superseded")
			return
		}
		f.log.Errorw("refresh cycle failed", "error", err)
	}
}

// Refresh loads every favorite, refreshes the batch and persists the result.
// Nothing is written when the batch fails or the cycle is superseded.
func (f *Fetcher) Refresh(ctx context.Context) ([]favorites.Record, error) {
	var refreshed []favorites.Record
	err := f.reloader.Run(ctx, func(ctx context.Context) error {
		start := time.Now()

		recs, err := f.store.Fetch(ctx)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			refreshed = recs
			return nil
		}

		out, err := f.refresher.RefreshMany(ctx, recs)
		if err != nil {
			return fmt.Errorf("refresh batch: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		saved, err := f.store.SaveWeather(ctx, out)
		if err != nil {
			return err
		}
		refreshed = out

		f.log.Infow("favorites refreshed",
			"favorites", len(recs),
			"saved", saved,
			"duration", time.Since(start),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}
