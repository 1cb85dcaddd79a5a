package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "WEB3SCANNER_CONFIG"
	dbPathEnv         = "SQLITE_DB_PATH"
	githubTokenEnv    = "GITHUB_TOKEN"
	narrativeKeyEnv   = "NARRATIVE_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Storage       StorageConfig      `yaml:"storage"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Backoff       BackoffConfig      `yaml:"backoff"`
	Digest        DigestConfig       `yaml:"digest"`
	Scoring       ScoringConfig      `yaml:"scoring"`
	Notifications NotificationConfig `yaml:"notifications"`
	Narrative     NarrativeConfig    `yaml:"narrative"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StorageConfig describes the SQLite window-store backing file.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines how often ingestion cycles run.
type SchedulerConfig struct {
	IntervalHours int    `yaml:"intervalHours"`
	Timezone      string `yaml:"timezone"`
}

// Interval resolves the configured cycle cadence.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalHours <= 0 {
		return time.Hour
	}
	return time.Duration(s.IntervalHours) * time.Hour
}

// BackoffConfig tunes the per-source rate/backoff controller.
type BackoffConfig struct {
	Base         Duration `yaml:"base"`
	Max          Duration `yaml:"max"`
	FetchTimeout Duration `yaml:"fetchTimeout"`
}

// DigestConfig bounds composed digests.
type DigestConfig struct {
	MaxItems int `yaml:"maxItems"`
}

// ScoringConfig carries per-source weights for the scoring engine.
type ScoringConfig struct {
	SourceWeights map[string]float64 `yaml:"sourceWeights"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// NarrativeConfig defines the optional LLM narrative endpoint.
type NarrativeConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// SourceConfig describes one external source with its adapter kind.
type SourceConfig struct {
	ID      string            `yaml:"id"`
	Kind    string            `yaml:"kind"`
	Feeds   []string          `yaml:"feeds"`
	Queries []string          `yaml:"queries"`
	Pages   []string          `yaml:"pages"`
	Options map[string]string `yaml:"options"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dbPathEnv); v != "" {
		c.Storage.Path = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(narrativeKeyEnv); v != "" {
		c.Narrative.APIKey = v
	}

	if v := os.Getenv(githubTokenEnv); v != "" {
		for i := range c.Sources {
			if c.Sources[i].Kind != "github" {
				continue
			}
			if c.Sources[i].Options == nil {
				c.Sources[i].Options = map[string]string{}
			}
			c.Sources[i].Options["token"] = v
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Storage.Path != "" {
		base.Storage = override.Storage
	}

	if override.Scheduler.IntervalHours > 0 {
		base.Scheduler.IntervalHours = override.Scheduler.IntervalHours
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Backoff.Base > 0 {
		base.Backoff.Base = override.Backoff.Base
	}
	if override.Backoff.Max > 0 {
		base.Backoff.Max = override.Backoff.Max
	}
	if override.Backoff.FetchTimeout > 0 {
		base.Backoff.FetchTimeout = override.Backoff.FetchTimeout
	}

	if override.Digest.MaxItems > 0 {
		base.Digest.MaxItems = override.Digest.MaxItems
	}

	if len(override.Scoring.SourceWeights) > 0 {
		base.Scoring = override.Scoring
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Narrative.Endpoint != "" {
		base.Narrative.Endpoint = override.Narrative.Endpoint
	}
	if override.Narrative.Model != "" {
		base.Narrative.Model = override.Narrative.Model
	}
	if override.Narrative.APIKey != "" {
		base.Narrative.APIKey = override.Narrative.APIKey
	}
	if override.Narrative.SystemPrompt != "" {
		base.Narrative.SystemPrompt = override.Narrative.SystemPrompt
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Storage:   StorageConfig{Path: "data/signals.db"},
		Scheduler: SchedulerConfig{IntervalHours: 1, Timezone: "UTC"},
		Backoff: BackoffConfig{
			Base:         Duration(time.Minute),
			Max:          Duration(30 * time.Minute),
			FetchTimeout: Duration(20 * time.Second),
		},
		Digest: DigestConfig{MaxItems: 10},
		Scoring: ScoringConfig{
			SourceWeights: map[string]float64{
				"news":     1.0,
				"funding":  1.0,
				"github":   0.9,
				"projects": 0.85,
			},
		},
		Narrative: NarrativeConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You summarize Web3 market signals into one short narrative paragraph.",
		},
		Sources: []SourceConfig{
			{
				ID:   "news",
				Kind: "rss",
				Feeds: []string{
					"https://www.coindesk.com/arc/outboundfeeds/rss/",
					"https://decrypt.co/feed",
				},
			},
			{
				ID:   "funding",
				Kind: "rss",
				Feeds: []string{
					"https://blockworks.co/feed",
				},
				Options: map[string]string{"parseAmounts": "true"},
			},
			{
				ID:   "github",
				Kind: "github",
				Queries: []string{
					"language:Solidity stars:>50",
					"topic:defi stars:>50",
				},
			},
			{
				ID:   "projects",
				Kind: "pages",
				Pages: []string{
					"https://arbitrum.io/blog",
					"https://www.optimism.io/blog",
				},
			},
		},
	}
}
