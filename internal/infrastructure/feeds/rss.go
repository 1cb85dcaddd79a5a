// Package feeds implements RSS/Atom signal sources (news, funding,
// ecosystem announcements) on top of gofeed.
package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"Web3Scanner/internal/domain"
	"Web3Scanner/internal/ports"
)

// amountExpr matches raise headlines like "$12M", "$1.2 billion", "$450,000".
var amountExpr = regexp.MustCompile(`\$\s?([0-9][0-9,.]*)\s?(million|billion|[mbk])?\b`)

// RSSSource aggregates one group of feeds under a single source id.
type RSSSource struct {
	sourceID     string
	feeds        []string
	parseAmounts bool
	client       *http.Client
	parser       *gofeed.Parser
	logger       *slog.Logger
}

var _ ports.SignalSource = (*RSSSource)(nil)

// NewRSSSource builds a source over the given feed URLs. When parseAmounts
// is set, raise amounts are extracted from titles (funding group).
func NewRSSSource(sourceID string, feedURLs []string, parseAmounts bool, client *http.Client, logger *slog.Logger) *RSSSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RSSSource{
		sourceID:     sourceID,
		feeds:        feedURLs,
		parseAmounts: parseAmounts,
		client:       client,
		parser:       gofeed.NewParser(),
		logger:       logger,
	}
}

// SourceID identifies the source inside cycle reports and fetch state.
func (s *RSSSource) SourceID() string {
	return s.sourceID
}

// Fetch pulls every configured feed and normalizes entries published after
// since. A feed that fails is logged and skipped; the fetch fails only when
// every feed failed, so one broken provider cannot blank the whole group.
func (s *RSSSource) Fetch(ctx context.Context, since time.Time) ([]domain.Signal, error) {
	var (
		signals  []domain.Signal
		failures int
		lastErr  error
	)

	fetchedAt := time.Now().UTC()
	for _, feedURL := range s.feeds {
		items, err := s.fetchFeed(ctx, feedURL, since, fetchedAt)
		if err != nil {
			failures++
			lastErr = err
			s.logger.Warn("feed fetch failed", "feed", feedURL, "error", err)
			continue
		}
		signals = append(signals, items...)
	}

	if failures == len(s.feeds) && len(s.feeds) > 0 {
		return nil, fmt.Errorf("all %d feeds failed, last: %w", failures, lastErr)
	}
	return signals, nil
}

func (s *RSSSource) fetchFeed(ctx context.Context, feedURL string, since, fetchedAt time.Time) ([]domain.Signal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Web3Scanner/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var out []domain.Signal
	for _, item := range feed.Items {
		published := itemTime(item)
		if published.IsZero() || published.Before(since) {
			continue
		}
		out = append(out, s.normalize(item, published, fetchedAt))
	}
	return out, nil
}

// normalize maps one feed entry onto a Signal. Identity comes from the
// normalized title and canonical link, never from provider GUIDs, which are
// routinely unstable across feed regenerations.
func (s *RSSSource) normalize(item *gofeed.Item, published, fetchedAt time.Time) domain.Signal {
	title := strings.TrimSpace(item.Title)
	link := domain.NormalizeURL(item.Link)
	summary := strings.TrimSpace(item.Description)
	if summary == "" {
		summary = title
	}

	payload := domain.Payload{
		Title:   title,
		URL:     link,
		Summary: summary,
		Tags:    itemTags(item),
	}
	if s.parseAmounts {
		payload.AmountUSD = ParseAmountUSD(title + " " + summary)
	}
	if item.Author != nil {
		payload.Actor = strings.TrimSpace(item.Author.Name)
	}

	return domain.Signal{
		SourceID:    s.sourceID,
		Fingerprint: domain.Fingerprint(title, link),
		ObservedAt:  published.UTC(),
		FetchedAt:   fetchedAt,
		Payload:     payload,
	}
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func itemTags(item *gofeed.Item) []string {
	if len(item.Categories) == 0 {
		return nil
	}
	tags := make([]string, 0, len(item.Categories))
	for _, c := range item.Categories {
		if c = strings.TrimSpace(c); c != "" {
			tags = append(tags, strings.ToLower(c))
		}
	}
	return tags
}

// ParseAmountUSD extracts the first dollar raise amount found in text,
// returning zero when none is present.
func ParseAmountUSD(text string) float64 {
	match := amountExpr.FindStringSubmatch(strings.ToLower(text))
	if match == nil {
		return 0
	}

	number, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return 0
	}

	switch match[2] {
	case "billion", "b":
		return number * 1e9
	case "million", "m":
		return number * 1e6
	case "k":
		return number * 1e3
	}
	return number
}
