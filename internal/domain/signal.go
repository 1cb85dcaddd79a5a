package domain

import "time"

// WindowDuration is the rolling interval within which a signal counts as current.
const WindowDuration = 24 * time.Hour

// Signal is a normalized unit of intelligence fetched from one source.
type Signal struct {
	SourceID    string
	Fingerprint string
	ObservedAt  time.Time
	FetchedAt   time.Time
	Payload     Payload
	Score       float64
	Scored      bool
}

// InWindow reports whether the signal's publication time still falls inside
// the rolling window relative to now.
func (s Signal) InWindow(now time.Time) bool {
	return now.Sub(s.ObservedAt) <= WindowDuration
}

// Payload carries the normalized per-source metadata. Adapters fill the
// fields their provider knows; Summary is the only field every source must
// provide (it falls back to Title during normalization).
type Payload struct {
	Title     string
	URL       string
	Summary   string
	Ecosystem string
	Sector    string
	Tags      []string
	AmountUSD float64
	Stars     int
	Forks     int
	Actor     string
}

// Admission is the outcome of offering a signal to the window store.
type Admission int

const (
	AdmissionNew Admission = iota
	AdmissionDuplicate
	AdmissionExpired
)

func (a Admission) String() string {
	switch a {
	case AdmissionNew:
		return "new"
	case AdmissionDuplicate:
		return "duplicate"
	case AdmissionExpired:
		return "expired"
	}
	return "unknown"
}

// CycleReport summarizes one ingestion cycle across all sources.
type CycleReport struct {
	NewCount       int
	DuplicateCount int
	ExpiredCount   int
	FailedSources  []string
	SkippedSources []string
	Started        time.Time
	Elapsed        time.Duration
}

// FetchState is the backoff controller's view of one source.
type FetchState struct {
	SourceID            string
	ConsecutiveFailures int
	NextAllowedAt       time.Time
	LastSuccessAt       time.Time
	LastError           string
}

// Healthy reports whether the source is currently allowed to fetch.
func (f FetchState) Healthy(now time.Time) bool {
	return !now.Before(f.NextAllowedAt)
}
