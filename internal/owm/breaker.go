package owm

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerDoer short-circuits calls after repeated transport failures.
// Responses of any status count as successes; only Do errors trip it.
type BreakerDoer struct {
	next Doer
	cb   *gobreaker.CircuitBreaker
}

type BreakerSettings struct {
	Name             string
	ConsecutiveFails uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
}

func NewBreakerDoer(next Doer, s BreakerSettings) *BreakerDoer {
	if s.Name == "" {
		s.Name = "owm"
	}
	if s.ConsecutiveFails == 0 {
		s.ConsecutiveFails = 5
	}
	if s.Interval <= 0 {
		s.Interval = time.Minute
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	threshold := s.ConsecutiveFails
	return &BreakerDoer{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        s.Name,
			MaxRequests: 1,
			Interval:    s.Interval,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
		}),
	}
}

func (b *BreakerDoer) Do(req *http.Request) (*http.Response, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Do(req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*http.Response), nil
}

// State reports the breaker state name ("closed", "half-open", "open").
func (b *BreakerDoer) State() string {
	return b.cb.State().String()
}
