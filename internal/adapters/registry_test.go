package adapters

import (
	"log/slog"
	"strings"
	"testing"

	"Web3Scanner/internal/config"
)

func TestBuildResolvesAllKinds(t *testing.T) {
	t.Parallel()

	sources := []config.SourceConfig{
		{ID: "news", Kind: "rss", Feeds: []string{"https://example.com/feed"}},
		{ID: "github", Kind: "github", Queries: []string{"topic:defi"}},
		{ID: "projects", Kind: "pages", Pages: []string{"https://example.com/blog"}},
	}

	built, err := NewRegistry().Build(sources, nil, slog.Default())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(built) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(built))
	}
	for i, src := range built {
		if src.SourceID() != sources[i].ID {
			t.Fatalf("source %d: id=%s, want %s", i, src.SourceID(), sources[i].ID)
		}
	}
}

func TestBuildUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Build([]config.SourceConfig{
		{ID: "x", Kind: "carrier-pigeon"},
	}, nil, slog.Default())
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("expected unknown-kind error, got %v", err)
	}
}

func TestBuildValidatesSourceConfig(t *testing.T) {
	t.Parallel()

	cases := []config.SourceConfig{
		{ID: "news", Kind: "rss"},
		{ID: "github", Kind: "github"},
		{ID: "projects", Kind: "pages"},
	}
	for _, src := range cases {
		if _, err := NewRegistry().Build([]config.SourceConfig{src}, nil, slog.Default()); err == nil {
			t.Errorf("kind %s: expected a validation error for empty config", src.Kind)
		}
	}
}
