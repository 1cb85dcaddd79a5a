// Package store owns the dedup & window cache: the only durable state of
// the pipeline. Entries are keyed by fingerprint; window membership is
// always computed from observed_at at query time, so logical correctness
// never depends on eviction timing.
package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"Web3Scanner/internal/domain"
	"Web3Scanner/internal/ports"
)

// futureTolerance bounds how far ahead of now an observed_at may sit before
// it is treated as corruption rather than clock skew.
const futureTolerance = 5 * time.Minute

// WindowStore is a time-indexed cache of seen signals with a rolling
// 24-hour retention policy. Admit is an atomic check-and-insert; all
// mutation is serialized behind one mutex (contention is human-scale).
type WindowStore struct {
	mu      sync.Mutex
	entries map[string]*domain.Signal
	repo    ports.SignalRepository
	logger  *slog.Logger
	clock   func() time.Time
}

// Option customizes a WindowStore.
type Option func(*WindowStore)

// WithRepository attaches durable backing. New admissions are saved,
// re-sightings touched, evictions deleted.
func WithRepository(repo ports.SignalRepository) Option {
	return func(w *WindowStore) { w.repo = repo }
}

// WithClock injects a time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(w *WindowStore) { w.clock = clock }
}

// New builds an empty WindowStore.
func New(logger *slog.Logger, opts ...Option) *WindowStore {
	w := &WindowStore{
		entries: map[string]*domain.Signal{},
		logger:  logger,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Load rehydrates the store from its repository. Called once at startup,
// before any Admit.
func (w *WindowStore) Load(ctx context.Context) error {
	if w.repo == nil {
		return nil
	}

	now := w.clock()
	signals, err := w.repo.LoadWindow(ctx, now.Add(-domain.WindowDuration))
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range signals {
		sig := signals[i]
		w.entries[sig.Fingerprint] = &sig
	}
	w.logger.Info("window store rehydrated", "entries", len(signals))
	return nil
}

// Admit offers a signal to the store and returns its admission outcome.
// Expired signals are ignored, not stored. Duplicates refresh
// last_seen_fetch_at but keep the first-seen observed_at, protecting window
// correctness against providers that resend stale items with fresh fetch
// times.
func (w *WindowStore) Admit(ctx context.Context, signal domain.Signal) (domain.Admission, error) {
	now := w.clock()

	if signal.ObservedAt.After(now.Add(futureTolerance)) {
		return 0, &domain.StoreCorruptionError{
			Fingerprint: signal.Fingerprint,
			Reason:      "observed_at beyond future tolerance",
		}
	}

	if !signal.InWindow(now) {
		return domain.AdmissionExpired, nil
	}

	w.mu.Lock()
	existing, ok := w.entries[signal.Fingerprint]
	if ok {
		existing.FetchedAt = signal.FetchedAt
		w.mu.Unlock()
		if w.repo != nil {
			if err := w.repo.Touch(ctx, signal.Fingerprint, signal.FetchedAt); err != nil {
				w.logger.Warn("touch entry", "fingerprint", signal.Fingerprint, "error", err)
			}
		}
		return domain.AdmissionDuplicate, nil
	}

	stored := signal
	w.entries[signal.Fingerprint] = &stored
	w.mu.Unlock()

	if w.repo != nil {
		if err := w.repo.Save(ctx, stored); err != nil {
			w.logger.Warn("persist entry", "fingerprint", signal.Fingerprint, "error", err)
		}
	}
	return domain.AdmissionNew, nil
}

// QueryInWindow returns copies of all stored signals whose observed_at is
// within the window relative to now, most recent first, fingerprint
// ascending for equal timestamps. The returned slice is a consistent
// snapshot: composers may hold it across scoring without seeing mutations.
func (w *WindowStore) QueryInWindow(now time.Time) []domain.Signal {
	w.mu.Lock()
	out := make([]domain.Signal, 0, len(w.entries))
	for _, entry := range w.entries {
		if entry.InWindow(now) {
			out = append(out, *entry)
		}
	}
	w.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ObservedAt.Equal(out[j].ObservedAt) {
			return out[i].ObservedAt.After(out[j].ObservedAt)
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}

// EvictExpired drops entries strictly outside the window. Idempotent and
// safe at any time: queries never rely on it having run.
func (w *WindowStore) EvictExpired(ctx context.Context) int {
	now := w.clock()
	cutoff := now.Add(-domain.WindowDuration)

	w.mu.Lock()
	removed := 0
	for fp, entry := range w.entries {
		if !entry.InWindow(now) {
			delete(w.entries, fp)
			removed++
		}
	}
	w.mu.Unlock()

	if w.repo != nil && removed > 0 {
		if _, err := w.repo.DeleteOlderThan(ctx, cutoff); err != nil {
			w.logger.Warn("delete expired entries", "error", err)
		}
	}
	if removed > 0 {
		w.logger.Debug("evicted expired entries", "count", removed)
	}
	return removed
}

// Len reports how many entries are physically stored, in or out of window.
func (w *WindowStore) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
