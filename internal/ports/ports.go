package ports

import (
	"context"
	"time"

	"Web3Scanner/internal/domain"
)

// SignalSource produces normalized signals from one external provider.
// An empty result set is a valid success; failures are returned, never panicked.
type SignalSource interface {
	SourceID() string
	Fetch(ctx context.Context, since time.Time) ([]domain.Signal, error)
}

// SignalRepository persists window-store entries so a restart does not lose
// the rolling window. The window store is its only caller.
type SignalRepository interface {
	LoadWindow(ctx context.Context, since time.Time) ([]domain.Signal, error)
	Save(ctx context.Context, signal domain.Signal) error
	Touch(ctx context.Context, fingerprint string, fetchedAt time.Time) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Notifier delivers rendered digests to the messaging front end.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// NarrativeClient asks an LLM endpoint for a short market narrative used to
// decorate the daily brief. Optional; failures never block a digest.
type NarrativeClient interface {
	Narrate(ctx context.Context, payload []byte) (string, error)
}

// Scheduler controls when ingestion cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
