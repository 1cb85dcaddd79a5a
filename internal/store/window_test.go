package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Web3Scanner/internal/domain"
)

func testSignal(fingerprint string, observedAt time.Time) domain.Signal {
	return domain.Signal{
		SourceID:    "news",
		Fingerprint: fingerprint,
		ObservedAt:  observedAt,
		FetchedAt:   observedAt,
		Payload:     domain.Payload{Title: "t-" + fingerprint, Summary: "s-" + fingerprint},
	}
}

func TestWindowMembership(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	w := New(nil, WithClock(func() time.Time { return now }))

	admission, err := w.Admit(context.Background(), testSignal("aaa", now.Add(-time.Hour)))
	if err != nil {
		t.Fatalf("admit returned error: %v", err)
	}
	if admission != domain.AdmissionNew {
		t.Fatalf("expected new, got %s", admission)
	}

	if got := w.QueryInWindow(now); len(got) != 1 {
		t.Fatalf("expected 1 in-window signal, got %d", len(got))
	}

	// 25 hours later the signal is out of window even though it was never
	// physically evicted.
	later := now.Add(25 * time.Hour)
	if got := w.QueryInWindow(later); len(got) != 0 {
		t.Fatalf("expected empty window, got %d signals", len(got))
	}
	if w.Len() != 1 {
		t.Fatalf("lazy eviction should keep the entry, Len=%d", w.Len())
	}
}

func TestAdmitDuplicateKeepsFirstObservedAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	w := New(nil, WithClock(func() time.Time { return now }))

	first := testSignal("aaa", now.Add(-time.Hour))
	if _, err := w.Admit(context.Background(), first); err != nil {
		t.Fatalf("first admit: %v", err)
	}

	// Provider resend with a timestamp one minute off and a fresh fetch time.
	resend := testSignal("aaa", now.Add(-time.Hour).Add(time.Minute))
	resend.FetchedAt = now
	admission, err := w.Admit(context.Background(), resend)
	if err != nil {
		t.Fatalf("second admit: %v", err)
	}
	if admission != domain.AdmissionDuplicate {
		t.Fatalf("expected duplicate, got %s", admission)
	}

	got := w.QueryInWindow(now)
	if len(got) != 1 {
		t.Fatalf("expected exactly one stored entry, got %d", len(got))
	}
	if !got[0].ObservedAt.Equal(first.ObservedAt) {
		t.Fatalf("observed_at was overwritten: %v", got[0].ObservedAt)
	}
	if !got[0].FetchedAt.Equal(now) {
		t.Fatalf("last_seen_fetch_at was not refreshed: %v", got[0].FetchedAt)
	}
}

func TestAdmitExpiredIgnored(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	w := New(nil, WithClock(func() time.Time { return now }))

	admission, err := w.Admit(context.Background(), testSignal("old", now.Add(-25*time.Hour)))
	if err != nil {
		t.Fatalf("admit returned error: %v", err)
	}
	if admission != domain.AdmissionExpired {
		t.Fatalf("expected expired, got %s", admission)
	}
	if w.Len() != 0 {
		t.Fatalf("expired signal must not be stored, Len=%d", w.Len())
	}
}

func TestAdmitFutureObservedAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	w := New(nil, WithClock(func() time.Time { return now }))

	_, err := w.Admit(context.Background(), testSignal("future", now.Add(10*time.Minute)))
	var corruption *domain.StoreCorruptionError
	if !errors.As(err, &corruption) {
		t.Fatalf("expected StoreCorruptionError, got %v", err)
	}
}

func TestQueryOrdering(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	w := New(nil, WithClock(func() time.Time { return now }))

	same := now.Add(-2 * time.Hour)
	for _, sig := range []domain.Signal{
		testSignal("bbb", same),
		testSignal("aaa", same),
		testSignal("ccc", now.Add(-time.Hour)),
	} {
		if _, err := w.Admit(context.Background(), sig); err != nil {
			t.Fatalf("admit %s: %v", sig.Fingerprint, err)
		}
	}

	got := w.QueryInWindow(now)
	want := []string{"ccc", "aaa", "bbb"}
	if len(got) != len(want) {
		t.Fatalf("expected %d signals, got %d", len(want), len(got))
	}
	for i, fp := range want {
		if got[i].Fingerprint != fp {
			t.Fatalf("position %d: expected %s, got %s", i, fp, got[i].Fingerprint)
		}
	}
}

func TestEvictExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	w := New(nil, WithClock(func() time.Time { return now }))

	if _, err := w.Admit(context.Background(), testSignal("aaa", now.Add(-23*time.Hour))); err != nil {
		t.Fatalf("admit: %v", err)
	}

	if removed := w.EvictExpired(context.Background()); removed != 0 {
		t.Fatalf("nothing should be evicted yet, removed %d", removed)
	}

	now = now.Add(2 * time.Hour)
	if removed := w.EvictExpired(context.Background()); removed != 1 {
		t.Fatalf("expected 1 eviction, got %d", removed)
	}
	// Idempotent.
	if removed := w.EvictExpired(context.Background()); removed != 0 {
		t.Fatalf("second eviction should remove nothing, got %d", removed)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	w := New(nil, WithClock(func() time.Time { return now }))

	if _, err := w.Admit(context.Background(), testSignal("aaa", now.Add(-time.Hour))); err != nil {
		t.Fatalf("admit: %v", err)
	}

	snapshot := w.QueryInWindow(now)
	w.EvictExpired(context.Background())
	if _, err := w.Admit(context.Background(), testSignal("bbb", now)); err != nil {
		t.Fatalf("admit during composition: %v", err)
	}

	if len(snapshot) != 1 || snapshot[0].Fingerprint != "aaa" {
		t.Fatalf("snapshot changed under mutation: %+v", snapshot)
	}
}

func TestConcurrentAdmitSameFingerprint(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	w := New(nil, WithClock(func() time.Time { return now }))

	const workers = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		newCount int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admission, err := w.Admit(context.Background(), testSignal("same", now.Add(-time.Minute)))
			if err != nil {
				t.Errorf("admit: %v", err)
				return
			}
			if admission == domain.AdmissionNew {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if newCount != 1 {
		t.Fatalf("check-and-insert raced: %d admissions reported new", newCount)
	}
	if w.Len() != 1 {
		t.Fatalf("expected a single entry, got %d", w.Len())
	}
}
