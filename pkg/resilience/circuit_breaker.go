package resilience

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	cmiserr "drccmis/pkg/errors"
	"drccmis/pkg/monitoring"
)

// State of the breaker, as reported in metrics.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota
	// StateHalfOpen lets a limited number of probe requests through.
	StateHalfOpen
	// StateOpen rejects requests until the timeout passes.
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Config configures a Breaker.
type Config struct {
	Name string
	// FailureRatio trips the breaker once MinRequests requests were seen in
	// the interval.
	FailureRatio float64
	MinRequests  uint32
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
	// Interval resets the counts while closed. Zero never resets.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
}

// DefaultConfig matches the breaker settings of the HTTP clients: trip at a
// 60% failure ratio over at least 5 requests.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		FailureRatio: 0.6,
		MinRequests:  5,
		MaxRequests:  3,
		Interval:     10 * time.Second,
		Timeout:      30 * time.Second,
	}
}

// Breaker guards the requests of one DMS connection. A nil Breaker runs every
// call directly. It never retries.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker returns a breaker. Only failures without an answer from the DMS
// or with a 5xx status count against it; 4xx answers are the caller's fault.
func NewBreaker(cfg Config) *Breaker {
	def := DefaultConfig(cfg.Name)
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = def.FailureRatio
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !CountsAsFailure(err)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			monitoring.CircuitBreakerState.WithLabelValues(name).Set(float64(fromGobreaker(to)))
		},
	}
	monitoring.CircuitBreakerState.WithLabelValues(cfg.Name).Set(float64(StateClosed))
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// CountsAsFailure reports errors that say something about the health of the
// DMS rather than about the request. A query without results is an answer,
// whatever status the vendor sends it with.
func CountsAsFailure(err error) bool {
	if cmiserr.IsNoResults(err) {
		return false
	}
	status := cmiserr.Status(err)
	return status == 0 || status >= 500
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() error) error {
	if b == nil {
		return fn()
	}
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}
	return fromGobreaker(b.cb.State())
}

// IsOpen reports a call rejected by the breaker.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
