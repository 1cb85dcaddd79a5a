// Package adapters resolves configured sources to their fetcher
// implementations. The coordinator stays agnostic to provider specifics
// beyond the source id.
package adapters

import (
	"fmt"
	"log/slog"
	"net/http"

	"Web3Scanner/internal/config"
	"Web3Scanner/internal/infrastructure/feeds"
	"Web3Scanner/internal/infrastructure/github"
	"Web3Scanner/internal/infrastructure/projects"
	"Web3Scanner/internal/ports"
)

// Constructor builds a signal source from its configuration.
type Constructor func(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) (ports.SignalSource, error)

// Registry keeps a mapping from adapter kinds to their constructors.
type Registry struct {
	kinds map[string]Constructor
}

// NewRegistry builds a registry preloaded with the built-in adapter kinds.
func NewRegistry() *Registry {
	r := &Registry{kinds: map[string]Constructor{}}
	r.Register("rss", newRSS)
	r.Register("github", newGitHub)
	r.Register("pages", newPages)
	return r
}

// Register adds or replaces a constructor for a kind.
func (r *Registry) Register(kind string, build Constructor) {
	r.kinds[kind] = build
}

// Build resolves every configured source into a fetcher.
func (r *Registry) Build(sources []config.SourceConfig, client *http.Client, logger *slog.Logger) ([]ports.SignalSource, error) {
	built := make([]ports.SignalSource, 0, len(sources))
	for _, src := range sources {
		construct, ok := r.kinds[src.Kind]
		if !ok {
			return nil, fmt.Errorf("source %s: adapter kind %q is not registered", src.ID, src.Kind)
		}
		adapter, err := construct(src, client, logger.With("component", "source."+src.ID))
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.ID, err)
		}
		built = append(built, adapter)
	}
	return built, nil
}

func newRSS(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) (ports.SignalSource, error) {
	if len(cfg.Feeds) == 0 {
		return nil, fmt.Errorf("rss adapter requires at least one feed")
	}
	parseAmounts := cfg.Options["parseAmounts"] == "true"
	return feeds.NewRSSSource(cfg.ID, cfg.Feeds, parseAmounts, client, logger), nil
}

func newGitHub(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) (ports.SignalSource, error) {
	if len(cfg.Queries) == 0 {
		return nil, fmt.Errorf("github adapter requires at least one query")
	}
	return github.NewSearchSource(cfg.ID, cfg.Queries, cfg.Options["token"], cfg.Options["apiBase"], client, logger), nil
}

func newPages(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) (ports.SignalSource, error) {
	if len(cfg.Pages) == 0 {
		return nil, fmt.Errorf("pages adapter requires at least one page")
	}
	return projects.NewPageSource(cfg.ID, cfg.Pages, client, logger), nil
}
