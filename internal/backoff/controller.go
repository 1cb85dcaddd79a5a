// Package backoff isolates failing sources: each source carries its own
// retry state, so one provider melting down never degrades the rest of an
// ingestion cycle.
package backoff

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"Web3Scanner/internal/domain"
	"Web3Scanner/internal/ports"
)

// Config tunes the controller.
type Config struct {
	// Base is the first backoff interval after a failure. Default: 1 minute.
	Base time.Duration
	// Max caps the backoff interval. Default: 30 minutes.
	Max time.Duration
	// FetchTimeout bounds each adapter call. A timeout counts as a failure.
	// Default: 20 seconds.
	FetchTimeout time.Duration
}

func (c *Config) defaults() {
	if c.Base <= 0 {
		c.Base = time.Minute
	}
	if c.Max <= 0 {
		c.Max = 30 * time.Minute
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 20 * time.Second
	}
}

// Result is the outcome of one controlled fetch.
type Result struct {
	Signals []domain.Signal
	// Stale is true when the source was skipped (still backed off) and the
	// signals come from the last successful fetch, or are empty.
	Stale bool
	// Skipped is true when no fetch was attempted.
	Skipped bool
	Err     error
}

type sourceState struct {
	consecutiveFailures int
	nextAllowedAt       time.Time
	lastSuccessAt       time.Time
	lastError           string
	lastResult          []domain.Signal
}

// Controller wraps adapter calls with per-source rate limiting and
// exponential backoff.
type Controller struct {
	mu     sync.Mutex
	states map[string]*sourceState
	config Config
	logger *slog.Logger
	clock  func() time.Time
}

// New creates a Controller.
func New(cfg Config, logger *slog.Logger) *Controller {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		states: map[string]*sourceState{},
		config: cfg,
		logger: logger,
		clock:  time.Now,
	}
}

// SetClock injects a time source for tests.
func (c *Controller) SetClock(clock func() time.Time) {
	c.clock = clock
}

// Execute runs one controlled fetch against the source. While the source is
// backed off, the last cached result set is returned tagged stale, without
// touching the provider.
func (c *Controller) Execute(ctx context.Context, source ports.SignalSource, since time.Time) Result {
	id := source.SourceID()
	now := c.clock()

	c.mu.Lock()
	state, ok := c.states[id]
	if !ok {
		state = &sourceState{}
		c.states[id] = state
	}
	if now.Before(state.nextAllowedAt) {
		cached := append([]domain.Signal(nil), state.lastResult...)
		c.mu.Unlock()
		c.logger.Debug("source backed off, serving cached results",
			"source_id", id, "cached", len(cached))
		return Result{Signals: cached, Stale: true, Skipped: true}
	}
	c.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
	signals, err := source.Fetch(fetchCtx, since)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		wait := c.config.Base << uint(state.consecutiveFailures)
		if wait > c.config.Max || wait <= 0 {
			wait = c.config.Max
		}
		state.nextAllowedAt = now.Add(wait)
		state.consecutiveFailures++
		state.lastError = err.Error()
		c.logger.Warn("source fetch failed",
			"source_id", id,
			"consecutive_failures", state.consecutiveFailures,
			"retry_in", wait,
			"error", err)
		return Result{Err: &domain.FetchError{SourceID: id, Cause: err}}
	}

	state.consecutiveFailures = 0
	state.nextAllowedAt = time.Time{}
	state.lastSuccessAt = now
	state.lastError = ""
	state.lastResult = signals
	return Result{Signals: signals}
}

// States returns a snapshot of per-source fetch state for health reporting.
func (c *Controller) States() []domain.FetchState {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.FetchState, 0, len(c.states))
	for id, st := range c.states {
		out = append(out, domain.FetchState{
			SourceID:            id,
			ConsecutiveFailures: st.consecutiveFailures,
			NextAllowedAt:       st.nextAllowedAt,
			LastSuccessAt:       st.lastSuccessAt,
			LastError:           st.lastError,
		})
	}
	return out
}

// AllBackedOff reports whether every known source is currently throttled.
// Used to mark digests assembled during a fully degraded state as stale.
func (c *Controller) AllBackedOff(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.states) == 0 {
		return false
	}
	for _, st := range c.states {
		if !now.Before(st.nextAllowedAt) {
			return false
		}
	}
	return true
}
