// ABOUTME: Configuration loading and parsing for coven-helpdesk
// ABOUTME: Supports YAML or TOML files with environment variable expansion, defaults, and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config location.
const EnvConfigPath = "COVEN_HELPDESK_CONFIG"

// Config represents the complete coven-helpdesk configuration
type Config struct {
	Server       ServerConfig       `yaml:"server" toml:"server"`
	Tailscale    TailscaleConfig    `yaml:"tailscale" toml:"tailscale"`
	Database     DatabaseConfig     `yaml:"database" toml:"database"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
	Dedupe       DedupeConfig       `yaml:"dedupe" toml:"dedupe"`
	Sessions     SessionsConfig     `yaml:"sessions" toml:"sessions"`
	Forms        FormsConfig        `yaml:"forms" toml:"forms"`
	Conversation ConversationConfig `yaml:"conversation" toml:"conversation"`
	Classifier   ClassifierConfig   `yaml:"classifier" toml:"classifier"`
	Transports   TransportsConfig   `yaml:"transports" toml:"transports"`
	RateLimit    RateLimitConfig    `yaml:"ratelimit" toml:"ratelimit"`
}

// ServerConfig holds the health and ledger HTTP listener
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`

	// HTTPS serves :443 with Tailscale-provisioned certs. CertFile and
	// KeyFile replace those certs (generate via: tailscale cert <hostname>).
	HTTPS    bool   `yaml:"https" toml:"https"`
	CertFile string `yaml:"cert_file" toml:"cert_file"`
	KeyFile  string `yaml:"key_file" toml:"key_file"`
	Funnel   bool   `yaml:"funnel" toml:"funnel"` // public Funnel, implies HTTPS
}

// DatabaseConfig holds the turn ledger location. An empty path keeps the
// ledger in memory.
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DedupeConfig bounds the processed-event cache.
type DedupeConfig struct {
	TTL     time.Duration `yaml:"-" toml:"-"`
	MaxSize int           `yaml:"max_size" toml:"max_size"`

	TTLRaw string `yaml:"ttl" toml:"ttl"`
}

// SessionsConfig controls idle session eviction.
type SessionsConfig struct {
	IdleTTL       time.Duration `yaml:"-" toml:"-"`
	SweepInterval time.Duration `yaml:"-" toml:"-"`

	IdleTTLRaw       string `yaml:"idle_ttl" toml:"idle_ttl"`
	SweepIntervalRaw string `yaml:"sweep_interval" toml:"sweep_interval"`
}

// FormsConfig holds form collection settings
type FormsConfig struct {
	QuitToken string `yaml:"quit_token" toml:"quit_token"`
}

// ConversationConfig holds event filtering settings
type ConversationConfig struct {
	// DirectOnly drops messages from shared rooms. Nil means true.
	DirectOnly *bool `yaml:"direct_only" toml:"direct_only"`
}

// DirectOnlyEnabled reports the effective direct_only setting.
func (c ConversationConfig) DirectOnlyEnabled() bool {
	return c.DirectOnly == nil || *c.DirectOnly
}

// ClassifierConfig selects the language model backend used for intents
type ClassifierConfig struct {
	Provider     string        `yaml:"provider" toml:"provider"`
	APIKey       string        `yaml:"api_key" toml:"api_key"`
	Endpoint     string        `yaml:"endpoint" toml:"endpoint"`
	APIVersion   string        `yaml:"api_version" toml:"api_version"`
	Model        string        `yaml:"model" toml:"model"`
	MaxTokens    int64         `yaml:"max_tokens" toml:"max_tokens"`
	Timeout      time.Duration `yaml:"-" toml:"-"`
	PromptsFile  string        `yaml:"prompts_file" toml:"prompts_file"`
	ExamplesFile string        `yaml:"examples_file" toml:"examples_file"`
	PromptKey    string        `yaml:"prompt_key" toml:"prompt_key"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// TransportsConfig holds configuration for every chat transport
type TransportsConfig struct {
	Matrix   MatrixConfig   `yaml:"matrix" toml:"matrix"`
	Discord  DiscordConfig  `yaml:"discord" toml:"discord"`
	Telegram TelegramConfig `yaml:"telegram" toml:"telegram"`
	Console  ConsoleConfig  `yaml:"console" toml:"console"`
}

// MatrixConfig holds Matrix integration configuration
type MatrixConfig struct {
	Enabled         bool     `yaml:"enabled" toml:"enabled"`
	Homeserver      string   `yaml:"homeserver" toml:"homeserver"`
	UserID          string   `yaml:"user_id" toml:"user_id"`
	AccessToken     string   `yaml:"access_token" toml:"access_token"`
	DeviceID        string   `yaml:"device_id" toml:"device_id"`
	RecoveryKey     string   `yaml:"recovery_key" toml:"recovery_key"`
	Encryption      bool     `yaml:"encryption" toml:"encryption"`
	DataDir         string   `yaml:"data_dir" toml:"data_dir"`
	AutoJoin        bool     `yaml:"auto_join" toml:"auto_join"`
	TypingIndicator bool     `yaml:"typing_indicator" toml:"typing_indicator"`
	AllowedRooms    []string `yaml:"allowed_rooms" toml:"allowed_rooms"`
}

// DiscordConfig holds Discord bot configuration
type DiscordConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Token   string `yaml:"token" toml:"token"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Token   string `yaml:"token" toml:"token"`
}

// ConsoleConfig holds the stdin/stdout transport configuration
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	UserID  string `yaml:"user_id" toml:"user_id"`
}

// RateLimitConfig throttles outbound messages per transport. Zero
// messages_per_second disables throttling.
type RateLimitConfig struct {
	MessagesPerSecond float64 `yaml:"messages_per_second" toml:"messages_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded before decoding.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(expandEnvVars(string(data)), isTOML(path))
	if err != nil {
		return nil, err
	}

	// Prompt and example files sit next to the config unless given absolutely
	dir := filepath.Dir(path)
	cfg.Classifier.PromptsFile = relativeTo(dir, cfg.Classifier.PromptsFile)
	cfg.Classifier.ExamplesFile = relativeTo(dir, cfg.Classifier.ExamplesFile)
	return cfg, nil
}

func relativeTo(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Parse decodes already-expanded config content, then applies defaults and validates.
func Parse(content string, asTOML bool) (*Config, error) {
	var cfg Config
	if asTOML {
		if _, err := toml.Decode(content, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Default values applied to unset fields.
const (
	DefaultHTTPAddr      = ":8080"
	DefaultDedupeTTL     = 5 * time.Minute
	DefaultDedupeMaxSize = 100_000
	DefaultIdleTTL       = 24 * time.Hour
	DefaultSweepInterval = 10 * time.Minute
	DefaultQuitToken     = "q"
	DefaultMaxTokens     = 50
	DefaultTimeout       = 30 * time.Second
	DefaultPromptsFile   = "prompts.json"
	DefaultExamplesFile  = "example_intent.json"
	DefaultPromptKey     = "intent"
	DefaultConsoleUser   = "console"
	DefaultAzureVersion  = "2024-06-01"
)

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Dedupe.TTL == 0 {
		c.Dedupe.TTL = DefaultDedupeTTL
	}
	if c.Dedupe.MaxSize == 0 {
		c.Dedupe.MaxSize = DefaultDedupeMaxSize
	}
	if c.Sessions.IdleTTL == 0 {
		c.Sessions.IdleTTL = DefaultIdleTTL
	}
	if c.Sessions.SweepInterval == 0 {
		c.Sessions.SweepInterval = DefaultSweepInterval
	}
	if c.Forms.QuitToken == "" {
		c.Forms.QuitToken = DefaultQuitToken
	}

	cl := &c.Classifier
	cl.Provider = strings.ToLower(cl.Provider)
	if cl.MaxTokens == 0 {
		cl.MaxTokens = DefaultMaxTokens
	}
	if cl.Timeout == 0 {
		cl.Timeout = DefaultTimeout
	}
	if cl.PromptsFile == "" {
		cl.PromptsFile = DefaultPromptsFile
	}
	if cl.ExamplesFile == "" {
		cl.ExamplesFile = DefaultExamplesFile
	}
	if cl.PromptKey == "" {
		cl.PromptKey = DefaultPromptKey
	}
	if cl.Provider == "azure" && cl.APIVersion == "" {
		cl.APIVersion = DefaultAzureVersion
	}

	if c.Transports.Console.UserID == "" {
		c.Transports.Console.UserID = DefaultConsoleUser
	}

	c.Database.Path = expandHome(c.Database.Path)
	c.Tailscale.StateDir = expandHome(c.Tailscale.StateDir)
	c.Transports.Matrix.DataDir = expandHome(c.Transports.Matrix.DataDir)
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(p string) string {
	rest, ok := strings.CutPrefix(p, "~/")
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if (c.Tailscale.CertFile == "") != (c.Tailscale.KeyFile == "") {
		return fmt.Errorf("tailscale.cert_file and tailscale.key_file must be set together")
	}
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	if c.Dedupe.TTL < 0 {
		return fmt.Errorf("dedupe.ttl must not be negative")
	}
	if c.Dedupe.MaxSize < 0 {
		return fmt.Errorf("dedupe.max_size must not be negative")
	}
	if c.Sessions.IdleTTL < 0 || c.Sessions.SweepInterval < 0 {
		return fmt.Errorf("sessions durations must not be negative")
	}

	if err := c.Classifier.validate(); err != nil {
		return err
	}
	if err := c.Transports.validate(); err != nil {
		return err
	}

	if c.RateLimit.MessagesPerSecond < 0 {
		return fmt.Errorf("ratelimit.messages_per_second must not be negative")
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit.burst must not be negative")
	}

	return nil
}

func (c *ClassifierConfig) validate() error {
	switch c.Provider {
	case "azure":
		if c.Endpoint == "" {
			return fmt.Errorf("classifier.endpoint is required for azure")
		}
	case "openai", "anthropic":
	case "":
		return fmt.Errorf("classifier.provider is required")
	default:
		return fmt.Errorf("classifier.provider must be azure, openai, or anthropic (got %q)", c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("classifier.api_key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("classifier.model is required")
	}
	if c.Endpoint != "" {
		if err := validateHTTPURL(c.Endpoint); err != nil {
			return fmt.Errorf("classifier.endpoint %w", err)
		}
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("classifier.max_tokens must not be negative")
	}
	return nil
}

func (t *TransportsConfig) validate() error {
	if !t.Matrix.Enabled && !t.Discord.Enabled && !t.Telegram.Enabled && !t.Console.Enabled {
		return fmt.Errorf("at least one transport must be enabled")
	}

	if m := t.Matrix; m.Enabled {
		if m.Homeserver == "" {
			return fmt.Errorf("transports.matrix.homeserver is required")
		}
		if err := validateHTTPURL(m.Homeserver); err != nil {
			return fmt.Errorf("transports.matrix.homeserver %w", err)
		}
		if m.UserID == "" {
			return fmt.Errorf("transports.matrix.user_id is required")
		}
		if m.AccessToken == "" {
			return fmt.Errorf("transports.matrix.access_token is required")
		}
		if m.Encryption && m.DataDir == "" {
			return fmt.Errorf("transports.matrix.data_dir is required when encryption is enabled")
		}
	}
	if t.Discord.Enabled && t.Discord.Token == "" {
		return fmt.Errorf("transports.discord.token is required")
	}
	if t.Telegram.Enabled && t.Telegram.Token == "" {
		return fmt.Errorf("transports.telegram.token is required")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https scheme")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"dedupe.ttl", cfg.Dedupe.TTLRaw, &cfg.Dedupe.TTL},
		{"sessions.idle_ttl", cfg.Sessions.IdleTTLRaw, &cfg.Sessions.IdleTTL},
		{"sessions.sweep_interval", cfg.Sessions.SweepIntervalRaw, &cfg.Sessions.SweepInterval},
		{"classifier.timeout", cfg.Classifier.TimeoutRaw, &cfg.Classifier.Timeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// ResolvePath picks the config file location: an explicit flag value, then
// $COVEN_HELPDESK_CONFIG, then $XDG_CONFIG_HOME/coven/helpdesk.yaml, then
// ~/.config/coven/helpdesk.yaml.
func ResolvePath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "coven", "helpdesk.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "coven", "helpdesk.yaml"), nil
}
