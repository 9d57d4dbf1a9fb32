// Package events mirrors favorite changes onto a Redis channel so other
// processes can observe them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"weatherfav/internal/favorites"
	"weatherfav/internal/logger"
)

const DefaultChannel = "favorites:changes"

type Config struct {
	Channel        string
	PublishTimeout time.Duration
	BufferSize     int
}

func DefaultConfig() Config {
	return Config{
		Channel:        DefaultChannel,
		PublishTimeout: 5 * time.Second,
		BufferSize:     64,
	}
}

// Envelope is the wire form of a change.
type Envelope struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Kind      string           `json:"kind"`
	Record    favorites.Record `json:"record"`
}

type metrics struct {
	published *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "favorite_events_published_total",
			Help: "Favorite changes mirrored to Redis by kind",
		}, []string{"kind"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "favorite_events_errors_total",
			Help: "Failures while mirroring or receiving favorite changes",
		}, []string{"operation"}),
		latency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "favorite_events_publish_duration_seconds",
			Help:    "Time taken to publish a change",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}

// RedisPublisher implements favorites.Publisher over Redis pub/sub.
type RedisPublisher struct {
	rdb     redis.UniversalClient
	cfg     Config
	metrics *metrics
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewRedisPublisher builds a publisher. reg may be nil.
func NewRedisPublisher(rdb redis.UniversalClient, cfg Config, reg prometheus.Registerer) *RedisPublisher {
	def := DefaultConfig()
	if cfg.Channel == "" {
		cfg.Channel = def.Channel
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return &RedisPublisher{
		rdb:     rdb,
		cfg:     cfg,
		metrics: newMetrics(reg),
		log:     logger.GetLogger().Named("events"),
		now:     time.Now,
	}
}

// PublishChange sends c to the configured channel.
func (p *RedisPublisher) PublishChange(ctx context.Context, c favorites.Change) error {
	start := time.Now()
	defer func() {
		p.metrics.latency.Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(Envelope{
		ID:        uuid.NewString(),
		Timestamp: p.now().UTC(),
		Kind:      c.Kind.String(),
		Record:    c.Record,
	})
	if err != nil {
		p.metrics.errors.WithLabelValues("marshal").Inc()
		return fmt.Errorf("marshal change: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()

	if err := p.rdb.Publish(ctx, p.cfg.Channel, string(data)).Err(); err != nil {
		p.metrics.errors.WithLabelValues("publish").Inc()
		return fmt.Errorf("redis publish: %w", err)
	}
	p.metrics.published.WithLabelValues(c.Kind.String()).Inc()
	return nil
}

// Subscribe streams envelopes from the channel until ctx is done. Messages
// that fail to decode are logged and skipped.
func (p *RedisPublisher) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	pubsub := p.rdb.Subscribe(ctx, p.cfg.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		p.metrics.errors.WithLabelValues("subscribe").Inc()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Envelope, p.cfg.BufferSize)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				env, ok := p.decode(msg)
				if !ok {
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// decode parses one channel message. Undecodable payloads are counted, logged
// and reported as not ok.
func (p *RedisPublisher) decode(msg *redis.Message) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		p.metrics.errors.WithLabelValues("decode").Inc()
		p.log.Warnw("dropping undecodable change", "channel", msg.Channel, "error", err)
		return Envelope{}, false
	}
	return env, true
}
