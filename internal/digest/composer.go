// Package digest composes ranked views over the scored in-window snapshot.
// The composer is a read-only projection: it never mutates store state.
package digest

import (
	"sort"
	"time"

	"Web3Scanner/internal/domain"
)

// Composer assembles digests from scored snapshots.
type Composer struct {
	maxItems int
}

// NewComposer bounds every composed view at maxItems entries.
func NewComposer(maxItems int) *Composer {
	if maxItems <= 0 {
		maxItems = 10
	}
	return &Composer{maxItems: maxItems}
}

// Compose filters the scored snapshot by the requested view, orders by
// score descending (ties: observed_at descending, then fingerprint
// ascending), truncates, and renders the human-facing payload.
func (c *Composer) Compose(view domain.ViewName, scored []domain.Signal, excluded int, stale bool, now time.Time) (domain.Digest, error) {
	if _, err := domain.ParseView(string(view)); err != nil {
		return domain.Digest{}, err
	}

	d := domain.Digest{
		View:        view,
		GeneratedAt: now,
		Stale:       stale,
		Excluded:    excluded,
	}

	switch view {
	case domain.ViewTrends:
		d.Trends = detectTrends(scored)
	case domain.ViewDailyBrief:
		d.Items = truncate(rankOrder(scored), c.maxItems)
		d.Trends = detectTrends(scored)
	case domain.ViewRawSignals:
		d.Items = truncate(rankOrder(scored), c.maxItems)
	default:
		d.Items = truncate(rankOrder(filterBySource(scored, sourceFor(view))), c.maxItems)
	}

	d.Rendered = Render(d)
	return d, nil
}

// sourceFor maps a single-source view onto the adapter id whose signals it
// shows.
func sourceFor(view domain.ViewName) string {
	switch view {
	case domain.ViewNews:
		return "news"
	case domain.ViewNewProjects:
		return "projects"
	case domain.ViewFunding:
		return "funding"
	case domain.ViewGitHub:
		return "github"
	}
	return ""
}

func filterBySource(signals []domain.Signal, sourceID string) []domain.Signal {
	if sourceID == "" {
		return signals
	}
	out := make([]domain.Signal, 0, len(signals))
	for _, s := range signals {
		if s.SourceID == sourceID {
			out = append(out, s)
		}
	}
	return out
}

// rankOrder sorts a copy of the slice by score descending with the
// deterministic tie-break chain required for reproducible digests.
func rankOrder(signals []domain.Signal) []domain.Signal {
	out := append([]domain.Signal(nil), signals...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].ObservedAt.Equal(out[j].ObservedAt) {
			return out[i].ObservedAt.After(out[j].ObservedAt)
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}

func truncate(signals []domain.Signal, max int) []domain.Signal {
	if len(signals) <= max {
		return signals
	}
	return signals[:max]
}

// detectTrends aggregates ecosystem×sector buckets by count and score sum,
// keeping the top eight.
func detectTrends(signals []domain.Signal) []domain.Trend {
	buckets := map[string]*domain.Trend{}
	for _, s := range signals {
		eco, sec := s.Payload.Ecosystem, s.Payload.Sector
		if eco == "" {
			eco = "unknown"
		}
		if sec == "" {
			sec = "unknown"
		}
		key := eco + "|" + sec
		t, ok := buckets[key]
		if !ok {
			t = &domain.Trend{Ecosystem: eco, Sector: sec}
			buckets[key] = t
		}
		t.Count++
		t.ScoreSum += s.Score
	}

	trends := make([]domain.Trend, 0, len(buckets))
	for _, t := range buckets {
		trends = append(trends, *t)
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Count != trends[j].Count {
			return trends[i].Count > trends[j].Count
		}
		if trends[i].ScoreSum != trends[j].ScoreSum {
			return trends[i].ScoreSum > trends[j].ScoreSum
		}
		return trends[i].Ecosystem+"|"+trends[i].Sector < trends[j].Ecosystem+"|"+trends[j].Sector
	})
	if len(trends) > 8 {
		trends = trends[:8]
	}
	return trends
}
