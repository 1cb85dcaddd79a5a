package domain

import (
	"fmt"
	"time"
)

// ViewName selects which projection of the in-window signals a digest shows.
type ViewName string

const (
	ViewDailyBrief  ViewName = "daily_brief"
	ViewNews        ViewName = "news"
	ViewNewProjects ViewName = "new_projects"
	ViewTrends      ViewName = "trends"
	ViewFunding     ViewName = "funding"
	ViewGitHub      ViewName = "github"
	ViewRawSignals  ViewName = "raw_signals"
)

// Views lists every view the composer understands, in presentation order.
var Views = []ViewName{
	ViewDailyBrief,
	ViewNews,
	ViewNewProjects,
	ViewTrends,
	ViewFunding,
	ViewGitHub,
	ViewRawSignals,
}

// ParseView validates a requested view name.
func ParseView(name string) (ViewName, error) {
	for _, v := range Views {
		if string(v) == name {
			return v, nil
		}
	}
	return "", &UnknownViewError{Name: name}
}

// Digest is an ephemeral, ranked projection of the in-window signals.
// It is recomputed per request; the window store stays the source of truth.
type Digest struct {
	View        ViewName
	GeneratedAt time.Time
	Stale       bool
	Items       []Signal
	Trends      []Trend
	Excluded    int
	Narrative   string
	Rendered    string
}

// Trend aggregates in-window signals sharing an ecosystem×sector bucket.
type Trend struct {
	Ecosystem string
	Sector    string
	Count     int
	ScoreSum  float64
}

func (t Trend) String() string {
	return fmt.Sprintf("%s/%s: %d signals (score %.1f)", t.Ecosystem, t.Sector, t.Count, t.ScoreSum)
}
