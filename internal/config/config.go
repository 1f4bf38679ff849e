package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Providers ProvidersConfig `yaml:"providers"`
	Normalize NormalizeConfig `yaml:"normalize"`
	News      NewsConfig      `yaml:"news"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
	Filter    FilterConfig    `yaml:"filter"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures fetch and re-rank intervals for daemon mode.
type ScheduleConfig struct {
	FetchInterval string `yaml:"fetch_interval"`
	RankInterval  string `yaml:"rank_interval"`
}

// ParseFetchInterval returns the fetch interval as time.Duration.
func (s ScheduleConfig) ParseFetchInterval() time.Duration {
	d, err := time.ParseDuration(s.FetchInterval)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// ParseRankInterval returns the re-rank interval as time.Duration.
func (s ScheduleConfig) ParseRankInterval() time.Duration {
	d, err := time.ParseDuration(s.RankInterval)
	if err != nil {
		return 12 * time.Hour
	}
	return d
}

// ProvidersConfig holds configuration for all score providers.
type ProvidersConfig struct {
	MAL     MALConfig     `yaml:"mal"`
	AniList AniListConfig `yaml:"anilist"`
}

// MALConfig for the MyAnimeList provider (via the Jikan API).
type MALConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Pages   int    `yaml:"pages"`
}

// AniListConfig for the AniList GraphQL provider.
type AniListConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Pages   int    `yaml:"pages"`
	PerPage int    `yaml:"per_page"`
}

// NormalizeConfig configures the score normalization pass.
type NormalizeConfig struct {
	MinSampleSize  int  `yaml:"min_sample_size"`
	MinCohortSize  int  `yaml:"min_cohort_size"`
	BaselineStart  int  `yaml:"baseline_start"`
	BaselineEnd    int  `yaml:"baseline_end"`
	AllowIncreases bool `yaml:"allow_increases"`
}

// NewsConfig for the anime news feed reader.
type NewsConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// AlertsConfig configures mover notifications and their destinations.
type AlertsConfig struct {
	MinRankDelta int           `yaml:"min_rank_delta"`
	Slack        SlackConfig   `yaml:"slack"`
	Discord      DiscordConfig `yaml:"discord"`
	Webhook      WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// FilterConfig configures news filtering on top of the ranked titles.
type FilterConfig struct {
	ExtraKeywords   []string `yaml:"extra_keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./truerank.db"},
		Schedule: ScheduleConfig{
			FetchInterval: "6h",
			RankInterval:  "12h",
		},
		Providers: ProvidersConfig{
			MAL: MALConfig{
				Enabled: true,
				BaseURL: "https://api.jikan.moe/v4",
				Pages:   20,
			},
			AniList: AniListConfig{
				Enabled: false,
				BaseURL: "https://graphql.anilist.co",
				Pages:   10,
				PerPage: 50,
			},
		},
		Normalize: NormalizeConfig{
			MinSampleSize: 5000,
			MinCohortSize: 10,
			BaselineStart: 2000,
			BaselineEnd:   2015,
		},
		News: NewsConfig{
			Enabled: true,
			Feeds: []FeedItem{
				{Name: "Anime News Network", URL: "https://www.animenewsnetwork.com/all/rss.xml"},
				{Name: "Crunchyroll News", URL: "https://www.crunchyroll.com/newsrss"},
				{Name: "MyAnimeList News", URL: "https://myanimelist.net/rss/news.xml"},
			},
		},
		Alerts: AlertsConfig{MinRankDelta: 10},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRUERANK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TRUERANK_MAL_URL"); v != "" {
		cfg.Providers.MAL.BaseURL = v
	}
	if v := os.Getenv("TRUERANK_ANILIST_URL"); v != "" {
		cfg.Providers.AniList.BaseURL = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}
