// Package projects scrapes ecosystem launch/blog pages for project
// announcements. Pages carry no machine-readable dates, so the first
// sighting time stands in for observed_at; first-seen-wins dedup in the
// window store keeps repeated scrapes from refreshing it.
package projects

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"Web3Scanner/internal/domain"
	"Web3Scanner/internal/ports"
)

const maxLinksPerPage = 30

// PageSource extracts announcement links from configured pages.
type PageSource struct {
	sourceID string
	pages    []string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.SignalSource = (*PageSource)(nil)

// NewPageSource wires the page list and an HTTP client.
func NewPageSource(sourceID string, pages []string, client *http.Client, logger *slog.Logger) *PageSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PageSource{sourceID: sourceID, pages: pages, client: client, logger: logger}
}

// SourceID identifies the source inside cycle reports and fetch state.
func (p *PageSource) SourceID() string {
	return p.sourceID
}

// Fetch scrapes every configured page. Per-page failures are tolerated; the
// fetch fails only when no page could be read.
func (p *PageSource) Fetch(ctx context.Context, since time.Time) ([]domain.Signal, error) {
	var (
		signals  []domain.Signal
		seen     = map[string]bool{}
		failures int
		lastErr  error
	)

	fetchedAt := time.Now().UTC()
	for _, pageURL := range p.pages {
		doc, err := p.fetchDocument(ctx, pageURL)
		if err != nil {
			failures++
			lastErr = err
			p.logger.Warn("page scrape failed", "page", pageURL, "error", err)
			continue
		}

		for _, sig := range extractAnnouncements(doc, pageURL, p.sourceID, fetchedAt) {
			if seen[sig.Fingerprint] {
				continue
			}
			seen[sig.Fingerprint] = true
			signals = append(signals, sig)
		}
	}

	if failures == len(p.pages) && len(p.pages) > 0 {
		return nil, fmt.Errorf("all %d pages failed, last: %w", failures, lastErr)
	}
	return signals, nil
}

func (p *PageSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Web3Scanner/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// extractAnnouncements collects in-domain article links with a meaningful
// title. Navigation anchors (short text, off-site links) are skipped.
func extractAnnouncements(doc *goquery.Document, pageURL, sourceID string, fetchedAt time.Time) []domain.Signal {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var out []domain.Signal
	doc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		if len(out) >= maxLinksPerPage {
			return false
		}

		href, _ := anchor.Attr("href")
		title := strings.Join(strings.Fields(anchor.Text()), " ")
		if href == "" || len(title) < 15 {
			return true
		}

		resolved, err := base.Parse(href)
		if err != nil || resolved.Host != base.Host {
			return true
		}

		link := domain.NormalizeURL(resolved.String())
		out = append(out, domain.Signal{
			SourceID:    sourceID,
			Fingerprint: domain.Fingerprint(sourceID, link),
			ObservedAt:  fetchedAt,
			FetchedAt:   fetchedAt,
			Payload: domain.Payload{
				Title:   title,
				URL:     link,
				Summary: title,
				Actor:   base.Host,
			},
		})
		return true
	})
	return out
}
