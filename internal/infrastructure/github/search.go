// Package github turns GitHub repository search results into code-activity
// signals.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Web3Scanner/internal/domain"
	"Web3Scanner/internal/ports"
)

const defaultAPIBase = "https://api.github.com"

// SearchSource runs configured repository search queries against the GitHub
// API and emits one signal per repository.
type SearchSource struct {
	sourceID string
	apiBase  string
	queries  []string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.SignalSource = (*SearchSource)(nil)

// NewSearchSource wires queries and an optional bearer token. apiBase is
// overridable for tests.
func NewSearchSource(sourceID string, queries []string, token, apiBase string, client *http.Client, logger *slog.Logger) *SearchSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchSource{
		sourceID: sourceID,
		apiBase:  strings.TrimRight(apiBase, "/"),
		queries:  queries,
		token:    token,
		client:   client,
		logger:   logger,
	}
}

// SourceID identifies the source inside cycle reports and fetch state.
func (s *SearchSource) SourceID() string {
	return s.sourceID
}

type searchResponse struct {
	Items []struct {
		FullName    string    `json:"full_name"`
		HTMLURL     string    `json:"html_url"`
		Description string    `json:"description"`
		Stars       int       `json:"stargazers_count"`
		Forks       int       `json:"forks_count"`
		PushedAt    time.Time `json:"pushed_at"`
		Owner       struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"items"`
}

// Fetch runs every query, keeping repositories pushed after since. The
// canonical dedup identity for code activity is the repository full name:
// one signal per repository per window, re-pushes count as re-sightings.
func (s *SearchSource) Fetch(ctx context.Context, since time.Time) ([]domain.Signal, error) {
	var (
		signals  []domain.Signal
		seen     = map[string]bool{}
		failures int
		lastErr  error
	)

	fetchedAt := time.Now().UTC()
	for _, query := range s.queries {
		result, err := s.search(ctx, query, since)
		if err != nil {
			failures++
			lastErr = err
			s.logger.Warn("github search failed", "query", query, "error", err)
			continue
		}

		for _, repo := range result.Items {
			if repo.PushedAt.Before(since) {
				continue
			}
			fingerprint := domain.Fingerprint("github", repo.FullName)
			if seen[fingerprint] {
				continue
			}
			seen[fingerprint] = true

			summary := strings.TrimSpace(repo.Description)
			if summary == "" {
				summary = repo.FullName
			}
			signals = append(signals, domain.Signal{
				SourceID:    s.sourceID,
				Fingerprint: fingerprint,
				ObservedAt:  repo.PushedAt.UTC(),
				FetchedAt:   fetchedAt,
				Payload: domain.Payload{
					Title:   repo.FullName,
					URL:     domain.NormalizeURL(repo.HTMLURL),
					Summary: summary,
					Stars:   repo.Stars,
					Forks:   repo.Forks,
					Actor:   repo.Owner.Login,
				},
			})
		}
	}

	if failures == len(s.queries) && len(s.queries) > 0 {
		return nil, fmt.Errorf("all %d queries failed, last: %w", failures, lastErr)
	}
	return signals, nil
}

func (s *SearchSource) search(ctx context.Context, query string, since time.Time) (*searchResponse, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%s pushed:>=%s", query, since.UTC().Format("2006-01-02")))
	params.Set("sort", "updated")
	params.Set("order", "desc")

	endpoint := s.apiBase + "/search/repositories?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("github %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
