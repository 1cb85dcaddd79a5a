package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"Web3Scanner/internal/backoff"
	"Web3Scanner/internal/digest"
	"Web3Scanner/internal/domain"
	"Web3Scanner/internal/ports"
	"Web3Scanner/internal/scoring"
	"Web3Scanner/internal/store"
)

// CoordinatorDeps wires all driven adapters into the ingestion coordinator.
type CoordinatorDeps struct {
	Sources    []ports.SignalSource
	Controller *backoff.Controller
	Store      *store.WindowStore
	Engine     *scoring.Engine
	Composer   *digest.Composer
	Narrative  ports.NarrativeClient
	Logger     *slog.Logger
}

// Coordinator drives ingestion cycles and serves digest and health requests.
// It is the whole of the core's external interface.
type Coordinator struct {
	sources    []ports.SignalSource
	controller *backoff.Controller
	store      *store.WindowStore
	engine     *scoring.Engine
	composer   *digest.Composer
	narrative  ports.NarrativeClient
	logger     *slog.Logger
}

// NewCoordinator constructs the orchestration component.
func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		sources:    deps.Sources,
		controller: deps.Controller,
		store:      deps.Store,
		engine:     deps.Engine,
		composer:   deps.Composer,
		narrative:  deps.Narrative,
		logger:     logger,
	}
}

// LoadStore rehydrates the window store from its durable backing. Called
// once at startup before the first cycle.
func (c *Coordinator) LoadStore(ctx context.Context) error {
	return c.store.Load(ctx)
}

type sourceOutcome struct {
	sourceID string
	result   backoff.Result
}

// RunIngestionCycle invokes every source through the backoff controller,
// fans results back in, and admits them to the window store. Sources fail
// independently: a permanently broken provider shows up in FailedSources
// and nowhere else. A cycle with zero new signals and zero failures is a
// valid, successful outcome.
func (c *Coordinator) RunIngestionCycle(ctx context.Context) domain.CycleReport {
	started := time.Now()
	since := started.Add(-domain.WindowDuration)
	report := domain.CycleReport{Started: started}

	outcomes := make([]sourceOutcome, len(c.sources))
	var wg sync.WaitGroup
	for i, src := range c.sources {
		wg.Add(1)
		go func(i int, src ports.SignalSource) {
			defer wg.Done()
			outcomes[i] = sourceOutcome{
				sourceID: src.SourceID(),
				result:   c.controller.Execute(ctx, src, since),
			}
		}(i, src)
	}
	wg.Wait()

	c.store.EvictExpired(ctx)

	for _, outcome := range outcomes {
		res := outcome.result
		switch {
		case res.Err != nil:
			report.FailedSources = append(report.FailedSources, outcome.sourceID)
			continue
		case res.Skipped:
			report.SkippedSources = append(report.SkippedSources, outcome.sourceID)
			continue
		}

		for _, sig := range res.Signals {
			admission, err := c.store.Admit(ctx, sig)
			if err != nil {
				// Corruption is an invariant violation: log loudly and
				// count the source as failed rather than repair silently.
				c.logger.Error("admit rejected", "source_id", outcome.sourceID,
					"fingerprint", sig.Fingerprint, "error", err)
				report.FailedSources = appendUnique(report.FailedSources, outcome.sourceID)
				continue
			}
			switch admission {
			case domain.AdmissionNew:
				report.NewCount++
			case domain.AdmissionDuplicate:
				report.DuplicateCount++
			case domain.AdmissionExpired:
				report.ExpiredCount++
			}
		}
	}

	sort.Strings(report.FailedSources)
	sort.Strings(report.SkippedSources)
	report.Elapsed = time.Since(started)

	c.logger.Info("ingestion cycle complete",
		"new", report.NewCount,
		"duplicate", report.DuplicateCount,
		"expired", report.ExpiredCount,
		"failed_sources", report.FailedSources,
		"skipped_sources", report.SkippedSources,
		"elapsed", report.Elapsed)
	return report
}

// GetDigest composes the requested view over a consistent snapshot of the
// in-window signals at now. Adapter failures never reach this path: during
// a fully degraded state the digest is assembled from previously admitted
// signals and marked stale.
func (c *Coordinator) GetDigest(ctx context.Context, view domain.ViewName, now time.Time) (domain.Digest, error) {
	snapshot := c.store.QueryInWindow(now)
	scored, excluded := c.engine.Rank(snapshot, now)
	stale := c.controller.AllBackedOff(now)

	d, err := c.composer.Compose(view, scored, excluded, stale, now)
	if err != nil {
		return domain.Digest{}, err
	}

	if view == domain.ViewDailyBrief && c.narrative != nil && len(d.Items) > 0 {
		if narrative := c.narrate(ctx, d.Items); narrative != "" {
			d.Narrative = narrative
			d.Rendered = digest.Render(d)
		}
	}
	return d, nil
}

// Health reports per-source fetch state for the messaging layer.
func (c *Coordinator) Health() []domain.FetchState {
	states := c.controller.States()
	sort.Slice(states, func(i, j int) bool { return states[i].SourceID < states[j].SourceID })
	return states
}

// narrate asks the optional LLM client for a one-paragraph market summary.
// Any failure degrades to a digest without narrative.
func (c *Coordinator) narrate(ctx context.Context, items []domain.Signal) string {
	type item struct {
		Source  string  `json:"source"`
		Title   string  `json:"title"`
		Summary string  `json:"summary"`
		Score   float64 `json:"score"`
	}
	payload := make([]item, 0, len(items))
	for _, s := range items {
		payload = append(payload, item{
			Source:  s.SourceID,
			Title:   s.Payload.Title,
			Summary: s.Payload.Summary,
			Score:   s.Score,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	narrative, err := c.narrative.Narrate(ctx, body)
	if err != nil {
		c.logger.Warn("narrative generation failed", "error", err)
		return ""
	}
	return narrative
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
