package projects

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const launchPage = `<!doctype html>
<html><body>
<nav>
  <a href="/">Home</a>
  <a href="/docs">Docs</a>
</nav>
<main>
  <a href="/blog/introducing-velocity-amm?utm_source=page">Introducing Velocity AMM on mainnet</a>
  <a href="/blog/grants-round-seven">Grants round seven is now open for builders</a>
  <a href="https://twitter.com/acme/status/1">Announcing our community call this Thursday</a>
</main>
</body></html>`

func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, launchPage)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchExtractsAnnouncements(t *testing.T) {
	t.Parallel()

	srv := pageServer(t)
	src := NewPageSource("projects", []string{srv.URL + "/launches"}, srv.Client(), nil)

	signals, err := src.Fetch(context.Background(), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// Short nav anchors and the off-site link are filtered out.
	if len(signals) != 2 {
		t.Fatalf("expected 2 announcement links, got %d", len(signals))
	}

	first := signals[0]
	if first.Payload.Title != "Introducing Velocity AMM on mainnet" {
		t.Fatalf("title=%q", first.Payload.Title)
	}
	if first.Payload.URL == "" || first.Payload.URL[:len("http")] != "http" {
		t.Fatalf("relative link not resolved: %s", first.Payload.URL)
	}
	for _, sig := range signals {
		if sig.ObservedAt.IsZero() || !sig.ObservedAt.Equal(sig.FetchedAt) {
			t.Fatalf("page signals must use the sighting time as observed_at: %+v", sig)
		}
	}
}

func TestFetchFingerprintIgnoresTracking(t *testing.T) {
	t.Parallel()

	srv := pageServer(t)
	src := NewPageSource("projects", []string{srv.URL + "/launches"}, srv.Client(), nil)

	first, err := src.Fetch(context.Background(), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := src.Fetch(context.Background(), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if first[0].Fingerprint != second[0].Fingerprint {
		t.Fatal("repeated scrapes must fingerprint identically")
	}
}

func TestFetchAllPagesFailed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	src := NewPageSource("projects", []string{srv.URL}, srv.Client(), nil)
	if _, err := src.Fetch(context.Background(), time.Now().Add(-24*time.Hour)); err == nil {
		t.Fatal("expected an error when every page fails")
	}
}

func TestFetchCapsLinksPerPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>")
		for i := 0; i < 100; i++ {
			fmt.Fprintf(w, `<a href="/blog/post-%d">A long enough announcement title %d</a>`, i, i)
		}
		fmt.Fprint(w, "</body></html>")
	}))
	t.Cleanup(srv.Close)

	src := NewPageSource("projects", []string{srv.URL}, srv.Client(), nil)
	signals, err := src.Fetch(context.Background(), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(signals) != maxLinksPerPage {
		t.Fatalf("expected the per-page cap of %d, got %d", maxLinksPerPage, len(signals))
	}
}
