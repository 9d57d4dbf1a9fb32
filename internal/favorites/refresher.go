package favorites

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"weatherfav/internal/logger"
	"weatherfav/internal/owm"
)

// WeatherLoader is the part of Store the refresher needs.
type WeatherLoader interface {
	LoadWeatherData(ctx context.Context, lat, lon float64) (*owm.CurrentWeather, error)
}

// Refresher fans a batch of favorites out to concurrent weather fetches.
type Refresher struct {
	loader  WeatherLoader
	limit   int
	metrics *Metrics
	log     *zap.SugaredLogger
}

// NewRefresher builds a refresher running at most limit fetches at once
// (0 means one goroutine per record). metrics may be nil.
func NewRefresher(loader WeatherLoader, limit int, metrics *Metrics) *Refresher {
	return &Refresher{
		loader:  loader,
		limit:   limit,
		metrics: metrics,
		log:     logger.GetLogger().Named("refresher"),
	}
}

// RefreshOne returns a copy of rec with freshly fetched weather.
func (r *Refresher) RefreshOne(ctx context.Context, rec Record) (Record, error) {
	cw, err := r.loader.LoadWeatherData(ctx, rec.Latitude, rec.Longitude)
	if err != nil {
		return Record{}, fmt.Errorf("refresh %s: %w", rec.ID, err)
	}
	out := rec.Clone()
	if !out.ApplyWeather(cw) {
		r.log.Debugw("no condition in payload, keeping previous weather", "id", rec.ID)
	}
	return out, nil
}

// RefreshMany refreshes recs concurrently. The result has the same length and
// order as recs. The first failure cancels the rest and no partial result is
// returned.
func (r *Refresher) RefreshMany(ctx context.Context, recs []Record) ([]Record, error) {
	start := time.Now()
	out := make([]Record, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for i, rec := range recs {
		g.Go(func() error {
			refreshed, err := r.RefreshOne(gctx, rec)
			if err != nil {
				return err
			}
			out[i] = refreshed
			return nil
		})
	}

	err := g.Wait()
	r.metrics.observeBatch("many", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Result is one slot of a RefreshEach batch.
type Result struct {
	Record Record
	Err    error
}

// RefreshEach is the partial-success variant of RefreshMany: every record gets
// a slot, failed ones carry the original record and the error.
func (r *Refresher) RefreshEach(ctx context.Context, recs []Record) []Result {
	start := time.Now()
	out := make([]Result, len(recs))

	var g errgroup.Group
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for i, rec := range recs {
		g.Go(func() error {
			refreshed, err := r.RefreshOne(ctx, rec)
			if err != nil {
				out[i] = Result{Record: rec, Err: err}
				return nil
			}
			out[i] = Result{Record: refreshed}
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for _, res := range out {
		if res.Err != nil {
			failures++
		}
	}
	if failures > 0 {
		r.log.Warnw("partial refresh", "total", len(recs), "failed", failures)
	}
	r.metrics.observeEach(len(recs)-failures, failures, time.Since(start))
	return out
}
