package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	SourceURLs []string        `yaml:"source_urls" validate:"dive,url"`
	Browser    BrowserConfig   `yaml:"browser"`
	Webhook    WebhookConfig   `yaml:"webhook"`
	Scheduler  SchedulerConfig `yaml:"scheduler"`
	Store      StoreConfig     `yaml:"store"`
	Archive    ArchiveConfig   `yaml:"archive"`
	Server     ServerConfig    `yaml:"server"`
	Log        LogConfig       `yaml:"log"`
}

type BrowserConfig struct {
	Headless          bool          `yaml:"headless"`
	ExecutablePath    string        `yaml:"executable_path"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" validate:"gt=0"`
	ScrollWait        time.Duration `yaml:"scroll_wait" validate:"gte=0"`
	MaxStalls         int           `yaml:"max_stalls" validate:"min=1"`
	MaxListings       int           `yaml:"max_listings" validate:"min=1"`
	PriceToken        string        `yaml:"price_token" validate:"required"`
	MinPageDelay      time.Duration `yaml:"min_page_delay" validate:"gte=0"`
	MaxPageDelay      time.Duration `yaml:"max_page_delay" validate:"gtefield=MinPageDelay"`
	ScreenshotDir     string        `yaml:"screenshot_dir"`
}

type WebhookConfig struct {
	URL         string        `yaml:"url" validate:"omitempty,url"`
	Mention     string        `yaml:"mention"`
	MaxRetries  int           `yaml:"max_retries" validate:"min=1"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	MinInterval time.Duration `yaml:"min_interval" validate:"gte=0"`
}

type SchedulerConfig struct {
	Interval         time.Duration `yaml:"interval" validate:"gt=0"`
	RestartInProcess bool          `yaml:"restart_in_process"`
	ShowTimers       bool          `yaml:"show_timers"`
}

type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// ArchiveConfig enables the optional PostgreSQL observation history.
type ArchiveConfig struct {
	DSN string `yaml:"dsn"`
}

type ServerConfig struct {
	Port                  int           `yaml:"port" validate:"min=1,max=65535"`
	ProbeWorkers          int           `yaml:"probe_workers" validate:"min=0"`
	ProbeTimeout          time.Duration `yaml:"probe_timeout" validate:"gt=0"`
	PurgeFailureThreshold int           `yaml:"purge_failure_threshold" validate:"min=1"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=console json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=1"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
}

func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
			ScrollWait:        time.Second,
			MaxStalls:         5,
			MaxListings:       64,
			PriceToken:        "AU$",
		},
		Webhook: WebhookConfig{
			MaxRetries:  3,
			Timeout:     15 * time.Second,
			MinInterval: 500 * time.Millisecond,
		},
		Scheduler: SchedulerConfig{
			Interval:   3 * time.Hour,
			ShowTimers: true,
		},
		Store: StoreConfig{
			Path: "saved_listings.json",
		},
		Server: ServerConfig{
			Port:                  3015,
			ProbeTimeout:          15 * time.Second,
			PurgeFailureThreshold: 1,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads the YAML file at path on top of DefaultConfig, applies
// environment overrides and validates the result. A .env file next to the
// working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not load .env file: %w", err)
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("could not parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MW_SOURCE_URLS"); v != "" {
		c.SourceURLs = nil
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.SourceURLs = append(c.SourceURLs, u)
			}
		}
	}
	if v := os.Getenv("MW_WEBHOOK_URL"); v != "" {
		c.Webhook.URL = v
	}
	if v := os.Getenv("MW_ARCHIVE_DSN"); v != "" {
		c.Archive.DSN = v
	}
	if v := os.Getenv("MW_CHROME_PATH"); v != "" {
		c.Browser.ExecutablePath = v
	}
	if v := os.Getenv("MW_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MW_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

// RequireSources fails when no source page is configured. Only the
// scraping commands need sources; the maintenance service does not.
func (c *Config) RequireSources() error {
	if len(c.SourceURLs) == 0 {
		return errors.New("invalid configuration: source_urls is empty")
	}
	return nil
}

// Validate checks struct tags on the whole configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
