// Package config loads audiobrief settings from a YAML file and
// AUDIOBRIEF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"audiobrief/jobapi"
	"audiobrief/session"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing default file
// is not an error.
const DefaultPath = "audiobrief.yaml"

type Config struct {
	API      APIConfig      `yaml:"api"`
	Upload   UploadConfig   `yaml:"upload"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Progress ProgressConfig `yaml:"progress"`
	Summary  SummaryConfig  `yaml:"summary"`
	Logging  LoggingConfig  `yaml:"logging"`
	Watch    WatchConfig    `yaml:"watch"`
	Debug    bool           `yaml:"debug"`
}

type APIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout"`
	SubmitTimeout     time.Duration `yaml:"submit_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	StatusTimeout     time.Duration `yaml:"status_timeout"`
}

type UploadConfig struct {
	TrimSeconds int `yaml:"trim_seconds"`
}

type JobsConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	AbandonAfter time.Duration `yaml:"abandon_after"`
	DisplayDelay time.Duration `yaml:"display_delay"`
}

type ProgressConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type SummaryConfig struct {
	WordCount int    `yaml:"word_count"`
	Style     string `yaml:"style"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type WatchConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// Default returns the built-in configuration
func Default() *Config {
	sc := session.DefaultConfig()
	return &Config{
		API: APIConfig{
			BaseURL:           jobapi.DefaultBaseURL,
			TranscribeTimeout: sc.TranscribeTimeout,
			SubmitTimeout:     sc.SubmitTimeout,
			RequestTimeout:    sc.RequestTimeout,
			StatusTimeout:     sc.Poller.RequestTimeout,
		},
		Upload: UploadConfig{TrimSeconds: sc.TrimSeconds},
		Jobs: JobsConfig{
			PollInterval: sc.Poller.Interval,
			AbandonAfter: sc.Poller.AbandonAfter,
			DisplayDelay: sc.Poller.DisplayDelay,
		},
		Progress: ProgressConfig{Interval: sc.ProgressInterval},
		Summary: SummaryConfig{
			WordCount: session.DefaultWordCount,
			Style:     session.DefaultStyle,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path, then
// environment overrides. An empty path means DefaultPath, which may be absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.API.BaseURL = getEnv("AUDIOBRIEF_API_URL", c.API.BaseURL)
	c.API.TranscribeTimeout = getEnvDuration("AUDIOBRIEF_TRANSCRIBE_TIMEOUT", c.API.TranscribeTimeout)
	c.API.SubmitTimeout = getEnvDuration("AUDIOBRIEF_SUBMIT_TIMEOUT", c.API.SubmitTimeout)
	c.API.RequestTimeout = getEnvDuration("AUDIOBRIEF_REQUEST_TIMEOUT", c.API.RequestTimeout)
	c.API.StatusTimeout = getEnvDuration("AUDIOBRIEF_STATUS_TIMEOUT", c.API.StatusTimeout)
	c.Upload.TrimSeconds = getEnvInt("AUDIOBRIEF_TRIM_SECONDS", c.Upload.TrimSeconds)
	c.Jobs.PollInterval = getEnvDuration("AUDIOBRIEF_POLL_INTERVAL", c.Jobs.PollInterval)
	c.Jobs.AbandonAfter = getEnvDuration("AUDIOBRIEF_ABANDON_AFTER", c.Jobs.AbandonAfter)
	c.Summary.WordCount = getEnvInt("AUDIOBRIEF_WORD_COUNT", c.Summary.WordCount)
	c.Summary.Style = getEnv("AUDIOBRIEF_STYLE", c.Summary.Style)
	c.Logging.Level = getEnv("AUDIOBRIEF_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("AUDIOBRIEF_LOG_FORMAT", c.Logging.Format)
	c.Logging.File = getEnv("AUDIOBRIEF_LOG_FILE", c.Logging.File)
	c.Watch.OutputDir = getEnv("AUDIOBRIEF_WATCH_OUTPUT", c.Watch.OutputDir)
	c.Debug = getEnvBool("AUDIOBRIEF_DEBUG", c.Debug)
}

// Validate rejects unusable values and fills in defaults for unset ones
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an http or https URL, got %q", c.API.BaseURL)
	}

	durations := map[string]time.Duration{
		"api.transcribe_timeout": c.API.TranscribeTimeout,
		"api.submit_timeout":     c.API.SubmitTimeout,
		"api.request_timeout":    c.API.RequestTimeout,
		"api.status_timeout":     c.API.StatusTimeout,
		"jobs.poll_interval":     c.Jobs.PollInterval,
		"jobs.abandon_after":     c.Jobs.AbandonAfter,
		"jobs.display_delay":     c.Jobs.DisplayDelay,
		"progress.interval":      c.Progress.Interval,
	}
	for key, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	if c.Upload.TrimSeconds < 0 {
		return fmt.Errorf("upload.trim_seconds must not be negative")
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch c.Logging.Level {
	case "":
		c.Logging.Level = "info"
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("logging.level %q is not one of trace, debug, info, warn, error, disabled", c.Logging.Level)
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "":
		c.Logging.Format = "console"
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format)
	}

	def := Default()
	if c.API.TranscribeTimeout == 0 {
		c.API.TranscribeTimeout = def.API.TranscribeTimeout
	}
	if c.API.SubmitTimeout == 0 {
		c.API.SubmitTimeout = def.API.SubmitTimeout
	}
	if c.API.RequestTimeout == 0 {
		c.API.RequestTimeout = def.API.RequestTimeout
	}
	if c.API.StatusTimeout == 0 {
		c.API.StatusTimeout = def.API.StatusTimeout
	}
	if c.Upload.TrimSeconds == 0 {
		c.Upload.TrimSeconds = def.Upload.TrimSeconds
	}
	if c.Jobs.PollInterval == 0 {
		c.Jobs.PollInterval = def.Jobs.PollInterval
	}
	if c.Jobs.AbandonAfter == 0 {
		c.Jobs.AbandonAfter = def.Jobs.AbandonAfter
	}
	if c.Progress.Interval == 0 {
		c.Progress.Interval = def.Progress.Interval
	}
	if c.Watch.OutputDir == "" {
		c.Watch.OutputDir = "transcripts"
	}

	s := c.SummarySettings()
	c.Summary.WordCount = s.WordCount
	c.Summary.Style = s.Style

	return nil
}

// Session converts the configuration into session timeouts and pacing
func (c *Config) Session() session.Config {
	return session.Config{
		TranscribeTimeout: c.API.TranscribeTimeout,
		SubmitTimeout:     c.API.SubmitTimeout,
		RequestTimeout:    c.API.RequestTimeout,
		TrimSeconds:       c.Upload.TrimSeconds,
		ProgressInterval:  c.Progress.Interval,
		Poller: session.PollerConfig{
			Interval:       c.Jobs.PollInterval,
			AbandonAfter:   c.Jobs.AbandonAfter,
			DisplayDelay:   c.Jobs.DisplayDelay,
			RequestTimeout: c.API.StatusTimeout,
		},
	}
}

// SummarySettings returns the configured summary settings with defaults applied
func (c *Config) SummarySettings() session.Settings {
	return session.Settings{WordCount: c.Summary.WordCount, Style: c.Summary.Style}.Normalize()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return def
}
