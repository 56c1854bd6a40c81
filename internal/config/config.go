package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "MEETINGPREP_CONFIG"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Search    SearchConfig    `yaml:"search"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Composio  ComposioConfig  `yaml:"composio"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LoggingConfig selects the level and an optional JSON log file.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
	File  string `yaml:"file" env:"LOG_FILE"`
}

// HTTPConfig describes the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR"`
}

// DatabaseConfig describes the relational store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN    string `yaml:"dsn" env:"DATABASE_URL"`
}

// SchedulerConfig defines when the trigger path runs on its own.
type SchedulerConfig struct {
	Enabled  bool           `yaml:"enabled" env:"SCHEDULER_ENABLED"`
	Interval time.Duration  `yaml:"interval" env:"SCHEDULER_INTERVAL"`
	Timezone string         `yaml:"timezone" env:"SCHEDULER_TIMEZONE"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// CalendarConfig controls the ingest window.
type CalendarConfig struct {
	CalendarID    string `yaml:"calendarId" env:"CALENDAR_ID"`
	LookaheadDays int    `yaml:"lookaheadDays" env:"CALENDAR_LOOKAHEAD_DAYS"`
	MaxResults    int    `yaml:"maxResults" env:"CALENDAR_MAX_RESULTS"`
}

// PipelineConfig bounds the blocking stages of one meeting.
type PipelineConfig struct {
	StaleAfter         time.Duration `yaml:"staleAfter" env:"PIPELINE_STALE_AFTER"`
	SynthesisTimeout   time.Duration `yaml:"synthesisTimeout" env:"PIPELINE_SYNTHESIS_TIMEOUT"`
	PublicationTimeout time.Duration `yaml:"publicationTimeout" env:"PIPELINE_PUBLICATION_TIMEOUT"`
}

// SearchConfig defines how to contact the web-search API.
type SearchConfig struct {
	Endpoint     string        `yaml:"endpoint" env:"YOUCOM_ENDPOINT"`
	APIKey       string        `yaml:"apiKey" env:"YOUCOM_API_KEY"`
	ResultCount  int           `yaml:"resultCount" env:"SEARCH_RESULT_COUNT"`
	QueryTimeout time.Duration `yaml:"queryTimeout" env:"SEARCH_QUERY_TIMEOUT"`
}

// SynthesisConfig selects the LLM backend.
type SynthesisConfig struct {
	Provider     string  `yaml:"provider" env:"SYNTHESIS_PROVIDER"`
	Model        string  `yaml:"model" env:"SYNTHESIS_MODEL"`
	APIKey       string  `yaml:"apiKey" env:"OPENAI_API_KEY"`
	AnthropicKey string  `yaml:"anthropicApiKey" env:"ANTHROPIC_API_KEY"`
	BaseURL      string  `yaml:"baseUrl" env:"SYNTHESIS_BASE_URL"`
	Temperature  float64 `yaml:"temperature" env:"SYNTHESIS_TEMPERATURE"`
}

// ComposioConfig wires the tool gateway used for calendar, notes and mail.
type ComposioConfig struct {
	BaseURL          string        `yaml:"baseUrl" env:"COMPOSIO_BASE_URL"`
	APIKey           string        `yaml:"apiKey" env:"COMPOSIO_API_KEY"`
	UserID           string        `yaml:"userId" env:"COMPOSIO_USER_ID"`
	NotionDatabaseID string        `yaml:"notionDatabaseId" env:"NOTION_DATABASE_ID"`
	Timeout          time.Duration `yaml:"timeout" env:"COMPOSIO_TIMEOUT"`
}

// TelemetryConfig enables OTLP trace export when an endpoint is set.
type TelemetryConfig struct {
	ServiceName  string `yaml:"serviceName" env:"OTEL_SERVICE_NAME"`
	OTLPEndpoint string `yaml:"otlpEndpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		log.Printf("config: %v (environment overrides ignored)", err)
	}
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		HTTP:     HTTPConfig{Addr: ":8000"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "./meetingprep.db"},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Interval: 15 * time.Minute,
			Timezone: defaultTimezone,
			location: tz,
		},
		Calendar: CalendarConfig{CalendarID: "primary", LookaheadDays: 7, MaxResults: 25},
		Pipeline: PipelineConfig{
			StaleAfter:         30 * time.Minute,
			SynthesisTimeout:   2 * time.Minute,
			PublicationTimeout: 30 * time.Second,
		},
		Search: SearchConfig{
			Endpoint:     "https://ydc-index.io/v1/search",
			ResultCount:  5,
			QueryTimeout: 15 * time.Second,
		},
		Synthesis: SynthesisConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			Temperature: 0.2,
		},
		Composio: ComposioConfig{
			BaseURL: "https://backend.composio.dev",
			Timeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{ServiceName: "meetingprep"},
	}
}
