package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"weatherfav/internal/favorites"
	"weatherfav/internal/logger"
	"weatherfav/internal/owm"
	"weatherfav/internal/weather"
)

type FavoriteStore interface {
	Create(ctx context.Context, rec favorites.Record) (favorites.Record, error)
	Fetch(ctx context.Context) ([]favorites.Record, error)
	Remove(ctx context.Context, rec favorites.Record) error
	Reorder(ctx context.Context, ids []string) error
}

type Previewer interface {
	RefreshOne(ctx context.Context, rec favorites.Record) (favorites.Record, error)
}

type RefreshRunner interface {
	Refresh(ctx context.Context) ([]favorites.Record, error)
}

type ForecastLoader interface {
	Load(ctx context.Context, lat, lon float64, current *weather.Report) (*weather.Forecast, error)
}

type Handler struct {
	favorites FavoriteStore
	preview   Previewer
	refresh   RefreshRunner
	forecast  ForecastLoader
	gatherer  prometheus.Gatherer
	log       *zap.SugaredLogger
}

// NewHandler wires the API. A nil gatherer leaves /metrics unregistered.
func NewHandler(store FavoriteStore, preview Previewer, refresh RefreshRunner, forecast ForecastLoader, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		favorites: store,
		preview:   preview,
		refresh:   refresh,
		forecast:  forecast,
		gatherer:  gatherer,
		log:       logger.GetLogger().Named("api"),
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/favorites", h.listFavorites)
	mux.HandleFunc("POST /v1/favorites", h.createFavorite)
	mux.HandleFunc("DELETE /v1/favorites/{id}", h.removeFavorite)
	mux.HandleFunc("PUT /v1/favorites/order", h.reorderFavorites)
	mux.HandleFunc("POST /v1/favorites/refresh", h.refreshFavorites)
	mux.HandleFunc("POST /v1/preview", h.previewLocation)
	mux.HandleFunc("GET /v1/forecast", h.getForecast)
	mux.HandleFunc("GET /health", h.health)
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

type favoritesJSON struct {
	Favorites []favorites.Record `json:"favorites"`
}

type locationJSON struct {
	ID                string          `json:"id"`
	Latitude          *float64        `json:"latitude"`
	Longitude         *float64        `json:"longitude"`
	TimeZone          string          `json:"time_zone"`
	Name              string          `json:"name"`
	IsCurrentLocation bool            `json:"is_current_location"`
	IsFavorite        *bool           `json:"is_favorite"`
	Weather           *weather.Report `json:"weather"`
}

func (l locationJSON) record() (favorites.Record, bool) {
	if l.Latitude == nil || l.Longitude == nil || l.Name == "" {
		return favorites.Record{}, false
	}
	isFavorite := true
	if l.IsFavorite != nil {
		isFavorite = *l.IsFavorite
	}
	return favorites.Record{
		ID:                l.ID,
		Latitude:          *l.Latitude,
		Longitude:         *l.Longitude,
		TimeZone:          l.TimeZone,
		Name:              l.Name,
		IsCurrentLocation: l.IsCurrentLocation,
		IsFavorite:        isFavorite,
		Weather:           l.Weather,
	}, true
}

type orderJSON struct {
	IDs []string `json:"ids"`
}

type forecastJSON struct {
	City    cityJSON             `json:"city"`
	Current weather.Report       `json:"current"`
	Hourly  []hourlyForecastJSON `json:"hourly_forecast"`
	Daily   []dailyForecastJSON  `json:"daily_forecast"`
}

type cityJSON struct {
	Name      string    `json:"name"`
	Sunrise   time.Time `json:"sunrise"`
	Sunset    time.Time `json:"sunset"`
	UTCOffset int       `json:"utc_offset_seconds"`
}

type hourlyForecastJSON struct {
	Time time.Time `json:"time"`
	weather.Report
}

type dailyForecastJSON struct {
	Date string `json:"date"`
	weather.Report
}

func (h *Handler) listFavorites(w http.ResponseWriter, r *http.Request) {
	recs, err := h.favorites.Fetch(r.Context())
	if err != nil {
		h.log.Errorw("list favorites failed", "error", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, favoritesJSON{Favorites: recs})
}

func (h *Handler) createFavorite(w http.ResponseWriter, r *http.Request) {
	var body locationJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	rec, ok := body.record()
	if !ok {
		writeJSONError(w, "latitude, longitude and name are required", http.StatusBadRequest)
		return
	}

	created, err := h.favorites.Create(r.Context(), rec)
	if errors.Is(err, favorites.ErrMissingData) {
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if errors.Is(err, favorites.ErrDuplicate) {
		writeJSONError(w, "favorite already exists", http.StatusConflict)
		return
	}
	if err != nil {
		h.log.Errorw("create favorite failed", "error", err, "id", rec.ID)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) removeFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec := favorites.Record{ID: id}

	// Emit the full record when it is still stored.
	if recs, err := h.favorites.Fetch(r.Context()); err == nil {
		for _, existing := range recs {
			if existing.ID == id {
				rec = existing
				break
			}
		}
	}

	if err := h.favorites.Remove(r.Context(), rec); err != nil {
		h.log.Errorw("remove favorite failed", "error", err, "id", id)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reorderFavorites(w http.ResponseWriter, r *http.Request) {
	var body orderJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.favorites.Reorder(r.Context(), body.IDs); err != nil {
		h.log.Errorw("reorder favorites failed", "error", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	// A mismatched list is ignored, so answer with the order actually stored.
	h.listFavorites(w, r)
}

func (h *Handler) refreshFavorites(w http.ResponseWriter, r *http.Request) {
	recs, err := h.refresh.Refresh(r.Context())
	if errors.Is(err, favorites.ErrSuperseded) {
		writeJSONError(w, "refresh superseded by a newer request", http.StatusConflict)
		return
	}
	if err != nil {
		h.writeUpstreamError(w, "refresh favorites", err)
		return
	}
	writeJSON(w, http.StatusOK, favoritesJSON{Favorites: recs})
}

func (h *Handler) previewLocation(w http.ResponseWriter, r *http.Request) {
	var body locationJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	rec, ok := body.record()
	if !ok {
		writeJSONError(w, "latitude, longitude and name are required", http.StatusBadRequest)
		return
	}
	if rec.ID == "" {
		rec.ID = favorites.NewID()
	}

	refreshed, err := h.preview.RefreshOne(r.Context(), rec)
	if err != nil {
		h.writeUpstreamError(w, "preview location", err)
		return
	}
	writeJSON(w, http.StatusOK, refreshed)
}

func (h *Handler) getForecast(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		writeJSONError(w, "invalid lat parameter", http.StatusBadRequest)
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		writeJSONError(w, "invalid lon parameter", http.StatusBadRequest)
		return
	}

	fc, err := h.forecast.Load(r.Context(), lat, lon, nil)
	if err != nil {
		h.writeUpstreamError(w, "load forecast", err)
		return
	}

	resp := forecastJSON{
		City: cityJSON{
			Name:    fc.City.Name,
			Sunrise: fc.City.Sunrise,
			Sunset:  fc.City.Sunset,
		},
		Current: fc.Current,
		Hourly:  make([]hourlyForecastJSON, 0, len(fc.Hourly)),
		Daily:   make([]dailyForecastJSON, 0, len(fc.Daily)),
	}
	if fc.City.Location != nil {
		_, resp.City.UTCOffset = fc.City.Sunrise.In(fc.City.Location).Zone()
	}
	for _, hf := range fc.Hourly {
		resp.Hourly = append(resp.Hourly, hourlyForecastJSON{Time: hf.Time, Report: hf.Report})
	}
	for _, df := range fc.Daily {
		resp.Daily = append(resp.Daily, dailyForecastJSON{Date: df.Date.Format("2006-01-02"), Report: df.Report})
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

// writeUpstreamError maps gateway failures onto gateway-ish statuses.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"
	switch {
	case errors.Is(err, owm.ErrServer):
		status, msg = http.StatusBadGateway, "weather provider error"
		if code, ok := owm.StatusCode(err); ok {
			h.log.Warnw(op+" failed", "error", err, "upstream_status", code)
			writeJSONError(w, msg, status)
			return
		}
	case errors.Is(err, owm.ErrTransport):
		status, msg = http.StatusGatewayTimeout, "weather provider unreachable"
	case errors.Is(err, owm.ErrDecoding):
		status, msg = http.StatusBadGateway, "unexpected weather provider response"
	}
	h.log.Errorw(op+" failed", "error", err)
	writeJSONError(w, msg, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
