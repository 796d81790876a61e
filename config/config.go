package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/use-agent/postwatch/models"
)

// Notifier backends.
const (
	NotifierDiscord = "discord"
	NotifierAMQP    = "amqp"
)

// State backends.
const (
	StateFile     = "file"
	StateSQLite   = "sqlite"
	StatePostgres = "postgres"
)

// Config holds all application configuration. It is built once at process
// entry and passed down explicitly; nothing below cmd/ reads the environment.
type Config struct {
	Target      TargetConfig      `yaml:"target"`
	Browser     BrowserConfig     `yaml:"browser"`
	Scraper     ScraperConfig     `yaml:"scraper"`
	Notifier    NotifierConfig    `yaml:"notifier"`
	State       StateConfig       `yaml:"state"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Log         LogConfig         `yaml:"log"`
}

// TargetConfig describes the site being watched and the session used to read it.
type TargetConfig struct {
	// BaseURL is the site origin; profile URLs are BaseURL + "/" + handle.
	BaseURL string `yaml:"base_url"` // default: "https://x.com"

	// CookieName is the session cookie carrying the credential.
	CookieName string `yaml:"cookie_name"` // default: "auth_token"

	// CookieDomain scopes the session cookie.
	CookieDomain string `yaml:"cookie_domain"` // default: ".x.com"

	// Credential is the pre-obtained session token. Required.
	Credential string `yaml:"credential"`
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `yaml:"headless"` // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"no_sandbox"` // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"browser_bin"`

	// Proxy is the proxy URL for all browser traffic.
	Proxy string `yaml:"proxy"`

	// Stealth injects the anti-bot-detection evasions script.
	Stealth bool `yaml:"stealth"` // default: true

	UserAgent      string `yaml:"user_agent"`
	ViewportWidth  int    `yaml:"viewport_width"`  // default: 1920
	ViewportHeight int    `yaml:"viewport_height"` // default: 1080
}

// ScraperConfig controls navigation and the readiness wait.
type ScraperConfig struct {
	// NavigationTimeout bounds a single navigation attempt.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 60s

	// ReadyTimeout bounds the wait for the page landmark after navigation.
	ReadyTimeout time.Duration `yaml:"ready_timeout"` // default: 30s

	// MaxAttempts is the total number of navigation attempts.
	MaxAttempts int `yaml:"max_attempts"` // default: 3

	// RetryDelay is the pause after a connection reset.
	RetryDelay time.Duration `yaml:"retry_delay"` // default: 5s

	// BlockedResourceTypes lists resource types the browser never loads.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string `yaml:"blocked_resource_types"`

	// BlockTrackers drops requests to analytics and ad hosts.
	BlockTrackers bool `yaml:"block_trackers"` // default: true
}

// NotifierConfig selects and configures the delivery backend.
type NotifierConfig struct {
	Backend string `yaml:"backend"` // "discord" or "amqp"; default: "discord"

	// WebhookURL is the Discord webhook endpoint. Required for discord.
	WebhookURL string `yaml:"webhook_url"`

	// Username and AvatarURL are the bot identity shown on the message.
	Username  string `yaml:"username"` // default: "Twitter Updates"
	AvatarURL string `yaml:"avatar_url"`

	Footer  string        `yaml:"footer"` // default: "Posted from X"
	Color   int           `yaml:"color"`  // default: 0x1DA1F2
	Timeout time.Duration `yaml:"timeout"` // default: 10s

	AMQP AMQPConfig `yaml:"amqp"`
}

// AMQPConfig configures the AMQP publisher backend.
type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`    // default: "postwatch"
	RoutingKey string `yaml:"routing_key"` // default: "posts"
}

// StateConfig selects where per-handle markers live.
type StateConfig struct {
	Backend     string `yaml:"backend"` // "file", "sqlite" or "postgres"; default: "file"
	Dir         string `yaml:"dir"`     // default: "log"
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// DiagnosticsConfig controls failure artifacts.
type DiagnosticsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Dir     string `yaml:"dir"`     // default: "."
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "text"
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Target: TargetConfig{
			BaseURL:      "https://x.com",
			CookieName:   "auth_token",
			CookieDomain: ".x.com",
		},
		Browser: BrowserConfig{
			Headless:       true,
			Stealth:        true,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		},
		Scraper: ScraperConfig{
			NavigationTimeout:    60 * time.Second,
			ReadyTimeout:         30 * time.Second,
			MaxAttempts:          3,
			RetryDelay:           5 * time.Second,
			BlockedResourceTypes: []string{"Font", "Media"},
			BlockTrackers:        true,
		},
		Notifier: NotifierConfig{
			Backend:  NotifierDiscord,
			Username: "Twitter Updates",
			Footer:   "Posted from X",
			Color:    0x1DA1F2,
			Timeout:  10 * time.Second,
			AMQP: AMQPConfig{
				Exchange:   "postwatch",
				RoutingKey: "posts",
			},
		},
		State: StateConfig{
			Backend:    StateFile,
			Dir:        "log",
			SQLitePath: "postwatch.db",
		},
		Diagnostics: DiagnosticsConfig{
			Enabled: true,
			Dir:     ".",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration in three layers: built-in defaults, an
// optional YAML file (path may be empty), then environment variables.
// A .env file in the working directory is loaded first if present.
//
// File values are merged onto the defaults with mergo, so a boolean that
// defaults to true cannot be switched off from the file; use the
// environment variable for that. An explicit empty blocked_resource_types
// list is kept empty.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		var file Config
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		noBlocking := file.Scraper.BlockedResourceTypes != nil && len(file.Scraper.BlockedResourceTypes) == 0
		if err := mergo.Merge(&file, cfg); err != nil {
			return nil, fmt.Errorf("merge config: %w", err)
		}
		if noBlocking {
			file.Scraper.BlockedResourceTypes = []string{}
		}
		cfg = file
	}

	applyEnv(&cfg)
	return &cfg, nil
}

// applyEnv overlays environment variables onto cfg. AUTH_TOKEN and
// DISCORD_WEBHOOK_URL keep their historical names.
func applyEnv(c *Config) {
	c.Target.BaseURL = envOr("POSTWATCH_BASE_URL", c.Target.BaseURL)
	c.Target.CookieName = envOr("POSTWATCH_COOKIE_NAME", c.Target.CookieName)
	c.Target.CookieDomain = envOr("POSTWATCH_COOKIE_DOMAIN", c.Target.CookieDomain)
	c.Target.Credential = envOr("AUTH_TOKEN", c.Target.Credential)

	c.Browser.Headless = envBoolOr("POSTWATCH_HEADLESS", c.Browser.Headless)
	c.Browser.NoSandbox = envBoolOr("POSTWATCH_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.BrowserBin = envOr("POSTWATCH_BROWSER_BIN", c.Browser.BrowserBin)
	c.Browser.Proxy = envOr("POSTWATCH_PROXY", c.Browser.Proxy)
	c.Browser.Stealth = envBoolOr("POSTWATCH_STEALTH", c.Browser.Stealth)
	c.Browser.UserAgent = envOr("POSTWATCH_USER_AGENT", c.Browser.UserAgent)

	c.Scraper.NavigationTimeout = envDurationOr("POSTWATCH_NAV_TIMEOUT", c.Scraper.NavigationTimeout)
	c.Scraper.ReadyTimeout = envDurationOr("POSTWATCH_READY_TIMEOUT", c.Scraper.ReadyTimeout)
	c.Scraper.MaxAttempts = envIntOr("POSTWATCH_NAV_ATTEMPTS", c.Scraper.MaxAttempts)
	c.Scraper.RetryDelay = envDurationOr("POSTWATCH_RETRY_DELAY", c.Scraper.RetryDelay)
	c.Scraper.BlockedResourceTypes = envSliceOr("POSTWATCH_BLOCKED_RESOURCES", c.Scraper.BlockedResourceTypes)
	c.Scraper.BlockTrackers = envBoolOr("POSTWATCH_BLOCK_TRACKERS", c.Scraper.BlockTrackers)

	c.Notifier.Backend = envOr("POSTWATCH_NOTIFIER", c.Notifier.Backend)
	c.Notifier.WebhookURL = envOr("DISCORD_WEBHOOK_URL", c.Notifier.WebhookURL)
	c.Notifier.Username = envOr("POSTWATCH_BOT_NAME", c.Notifier.Username)
	c.Notifier.AvatarURL = envOr("POSTWATCH_BOT_AVATAR", c.Notifier.AvatarURL)
	c.Notifier.Timeout = envDurationOr("POSTWATCH_NOTIFY_TIMEOUT", c.Notifier.Timeout)
	c.Notifier.AMQP.URL = envOr("POSTWATCH_AMQP_URL", c.Notifier.AMQP.URL)
	c.Notifier.AMQP.Exchange = envOr("POSTWATCH_AMQP_EXCHANGE", c.Notifier.AMQP.Exchange)
	c.Notifier.AMQP.RoutingKey = envOr("POSTWATCH_AMQP_ROUTING_KEY", c.Notifier.AMQP.RoutingKey)

	c.State.Backend = envOr("POSTWATCH_STATE_BACKEND", c.State.Backend)
	c.State.Dir = envOr("POSTWATCH_STATE_DIR", c.State.Dir)
	c.State.SQLitePath = envOr("POSTWATCH_SQLITE_PATH", c.State.SQLitePath)
	c.State.PostgresDSN = envOr("POSTWATCH_POSTGRES_DSN", c.State.PostgresDSN)

	c.Diagnostics.Enabled = envBoolOr("POSTWATCH_DIAGNOSTICS", c.Diagnostics.Enabled)
	c.Diagnostics.Dir = envOr("POSTWATCH_DIAGNOSTICS_DIR", c.Diagnostics.Dir)

	c.Log.Level = envOr("POSTWATCH_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("POSTWATCH_LOG_FORMAT", c.Log.Format)
}

// Validate checks that everything a run needs before touching the network
// is present. It returns a CONFIG_INVALID RunError listing every problem.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Target.Credential) == "" {
		problems = append(problems, "AUTH_TOKEN is not set")
	}
	if c.Target.BaseURL == "" {
		problems = append(problems, "target base URL is empty")
	}

	switch c.Notifier.Backend {
	case NotifierDiscord:
		if c.Notifier.WebhookURL == "" {
			problems = append(problems, "DISCORD_WEBHOOK_URL is not set")
		}
	case NotifierAMQP:
		if c.Notifier.AMQP.URL == "" {
			problems = append(problems, "POSTWATCH_AMQP_URL is not set")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown notifier backend %q", c.Notifier.Backend))
	}

	switch c.State.Backend {
	case StateFile, StateSQLite:
	case StatePostgres:
		if c.State.PostgresDSN == "" {
			problems = append(problems, "POSTWATCH_POSTGRES_DSN is not set")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown state backend %q", c.State.Backend))
	}

	if c.Scraper.MaxAttempts < 1 {
		problems = append(problems, "navigation attempts must be at least 1")
	}

	if len(problems) > 0 {
		return models.NewRunError(models.ErrCodeConfig, strings.Join(problems, "; "), nil)
	}
	return nil
}

// ProfileURL returns the timeline URL for handle.
func (c *Config) ProfileURL(handle string) string {
	return strings.TrimRight(c.Target.BaseURL, "/") + "/" + handle
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
