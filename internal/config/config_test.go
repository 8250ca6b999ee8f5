// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, validation, and path resolution

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
classifier:
  provider: "openai"
  api_key: "sk-test"
  model: "gpt-4o-mini"
transports:
  console:
    enabled: true
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "helpdesk.yaml", `
server:
  http_addr: "0.0.0.0:9090"

database:
  path: "./turns.db"

logging:
  level: "debug"
  format: "json"

dedupe:
  ttl: "2m"
  max_size: 500

sessions:
  idle_ttl: "1h"
  sweep_interval: "30s"

forms:
  quit_token: "quit"

conversation:
  direct_only: false

classifier:
  provider: "azure"
  api_key: "azure-key"
  endpoint: "https://example.openai.azure.com"
  api_version: "2024-02-01"
  model: "intent-deployment"
  max_tokens: 20
  timeout: "10s"

transports:
  matrix:
    enabled: true
    homeserver: "https://matrix.org"
    user_id: "@helpdesk:matrix.org"
    access_token: "matrix-token"
    encryption: true
    data_dir: "/var/lib/helpdesk"
    auto_join: true
    allowed_rooms:
      - "!room1:matrix.org"
  telegram:
    enabled: true
    token: "123:abc"

ratelimit:
  messages_per_second: 1.5
  burst: 3
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:9090" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:9090")
	}
	if cfg.Database.Path != "./turns.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./turns.db")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
	if cfg.Dedupe.TTL != 2*time.Minute {
		t.Errorf("Dedupe.TTL = %v, want %v", cfg.Dedupe.TTL, 2*time.Minute)
	}
	if cfg.Dedupe.MaxSize != 500 {
		t.Errorf("Dedupe.MaxSize = %d, want 500", cfg.Dedupe.MaxSize)
	}
	if cfg.Sessions.IdleTTL != time.Hour {
		t.Errorf("Sessions.IdleTTL = %v, want %v", cfg.Sessions.IdleTTL, time.Hour)
	}
	if cfg.Sessions.SweepInterval != 30*time.Second {
		t.Errorf("Sessions.SweepInterval = %v, want %v", cfg.Sessions.SweepInterval, 30*time.Second)
	}
	if cfg.Forms.QuitToken != "quit" {
		t.Errorf("Forms.QuitToken = %q, want %q", cfg.Forms.QuitToken, "quit")
	}
	if cfg.Conversation.DirectOnlyEnabled() {
		t.Error("Conversation.DirectOnlyEnabled() = true, want false")
	}

	cl := cfg.Classifier
	if cl.Provider != "azure" || cl.APIVersion != "2024-02-01" || cl.Model != "intent-deployment" {
		t.Errorf("Classifier = %+v", cl)
	}
	if cl.MaxTokens != 20 {
		t.Errorf("Classifier.MaxTokens = %d, want 20", cl.MaxTokens)
	}
	if cl.Timeout != 10*time.Second {
		t.Errorf("Classifier.Timeout = %v, want %v", cl.Timeout, 10*time.Second)
	}

	m := cfg.Transports.Matrix
	if !m.Enabled || !m.Encryption || !m.AutoJoin {
		t.Errorf("Transports.Matrix flags = %+v", m)
	}
	if len(m.AllowedRooms) != 1 || m.AllowedRooms[0] != "!room1:matrix.org" {
		t.Errorf("Transports.Matrix.AllowedRooms = %v", m.AllowedRooms)
	}
	if !cfg.Transports.Telegram.Enabled || cfg.Transports.Telegram.Token != "123:abc" {
		t.Errorf("Transports.Telegram = %+v", cfg.Transports.Telegram)
	}
	if cfg.Transports.Discord.Enabled {
		t.Error("Transports.Discord.Enabled = true, want false")
	}

	if cfg.RateLimit.MessagesPerSecond != 1.5 || cfg.RateLimit.Burst != 3 {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "helpdesk.yaml", minimalYAML)
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Database.Path != "" {
		t.Errorf("Database.Path = %q, want empty", cfg.Database.Path)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
	if cfg.Dedupe.TTL != DefaultDedupeTTL || cfg.Dedupe.MaxSize != DefaultDedupeMaxSize {
		t.Errorf("Dedupe = %+v", cfg.Dedupe)
	}
	if cfg.Sessions.IdleTTL != DefaultIdleTTL || cfg.Sessions.SweepInterval != DefaultSweepInterval {
		t.Errorf("Sessions = %+v", cfg.Sessions)
	}
	if cfg.Forms.QuitToken != "q" {
		t.Errorf("Forms.QuitToken = %q, want %q", cfg.Forms.QuitToken, "q")
	}
	if !cfg.Conversation.DirectOnlyEnabled() {
		t.Error("Conversation.DirectOnlyEnabled() = false, want true")
	}

	cl := cfg.Classifier
	if cl.MaxTokens != DefaultMaxTokens {
		t.Errorf("Classifier.MaxTokens = %d, want %d", cl.MaxTokens, DefaultMaxTokens)
	}
	if cl.Timeout != DefaultTimeout {
		t.Errorf("Classifier.Timeout = %v, want %v", cl.Timeout, DefaultTimeout)
	}
	if cl.PromptsFile != filepath.Join(filepath.Dir(configPath), "prompts.json") {
		t.Errorf("Classifier.PromptsFile = %q, want it next to the config", cl.PromptsFile)
	}
	if filepath.Base(cl.ExamplesFile) != "example_intent.json" || cl.PromptKey != "intent" {
		t.Errorf("Classifier files = %q %q", cl.ExamplesFile, cl.PromptKey)
	}
	if cl.APIVersion != "" {
		t.Errorf("Classifier.APIVersion = %q, want empty for openai", cl.APIVersion)
	}
	if cfg.Transports.Console.UserID != DefaultConsoleUser {
		t.Errorf("Transports.Console.UserID = %q, want %q", cfg.Transports.Console.UserID, DefaultConsoleUser)
	}
}

func TestLoad_AzureDefaultsAPIVersion(t *testing.T) {
	cfg, err := Parse(`
classifier:
  provider: "Azure"
  api_key: "k"
  endpoint: "https://example.openai.azure.com"
  model: "m"
transports:
  console:
    enabled: true
`, false)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Classifier.Provider != "azure" {
		t.Errorf("Classifier.Provider = %q, want lower-cased %q", cfg.Classifier.Provider, "azure")
	}
	if cfg.Classifier.APIVersion != DefaultAzureVersion {
		t.Errorf("Classifier.APIVersion = %q, want %q", cfg.Classifier.APIVersion, DefaultAzureVersion)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "helpdesk.toml", `
[server]
http_addr = ":7070"

[dedupe]
ttl = "90s"

[conversation]
direct_only = false

[classifier]
provider = "anthropic"
api_key = "ant-key"
model = "claude-3-5-haiku-latest"

[transports.discord]
enabled = true
token = "discord-token"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != ":7070" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, ":7070")
	}
	if cfg.Dedupe.TTL != 90*time.Second {
		t.Errorf("Dedupe.TTL = %v, want %v", cfg.Dedupe.TTL, 90*time.Second)
	}
	if cfg.Conversation.DirectOnlyEnabled() {
		t.Error("Conversation.DirectOnlyEnabled() = true, want false")
	}
	if cfg.Classifier.Provider != "anthropic" {
		t.Errorf("Classifier.Provider = %q, want %q", cfg.Classifier.Provider, "anthropic")
	}
	if !cfg.Transports.Discord.Enabled || cfg.Transports.Discord.Token != "discord-token" {
		t.Errorf("Transports.Discord = %+v", cfg.Transports.Discord)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CLASSIFIER_KEY", "key-from-env")
	t.Setenv("TEST_TELEGRAM_TOKEN", "tg-from-env")

	cfg, err := Load(writeConfig(t, "helpdesk.yaml", `
classifier:
  provider: "openai"
  api_key: "${TEST_CLASSIFIER_KEY}"
  model: "gpt-4o-mini"
transports:
  telegram:
    enabled: true
    token: "${TEST_TELEGRAM_TOKEN}"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Classifier.APIKey != "key-from-env" {
		t.Errorf("Classifier.APIKey = %q, want %q", cfg.Classifier.APIKey, "key-from-env")
	}
	if cfg.Transports.Telegram.Token != "tg-from-env" {
		t.Errorf("Transports.Telegram.Token = %q, want %q", cfg.Transports.Telegram.Token, "tg-from-env")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("HELPDESK_A", "alpha")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single", "${HELPDESK_A}", "alpha"},
		{"embedded", "x-${HELPDESK_A}-y", "x-alpha-y"},
		{"unset", "${HELPDESK_UNSET_VAR}", ""},
		{"no braces", "$HELPDESK_A", "$HELPDESK_A"},
		{"plain", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnvVars(tt.in); got != tt.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("error = %q, want it to mention reading config file", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "helpdesk.yaml", "classifier: [unterminated"))
	if err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("Load() error = %v, want parsing config file error", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Parse(minimalYAML+"dedupe:\n  ttl: \"soon\"\n", false)
	if err == nil {
		t.Fatal("Parse() expected error for bad duration")
	}
	if !strings.Contains(err.Error(), "dedupe.ttl") {
		t.Errorf("error = %q, want it to name dedupe.ttl", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		base    string
		wantErr string
	}{
		{
			name:    "no provider",
			base:    "transports:\n  console:\n    enabled: true\n",
			wantErr: "classifier.provider is required",
		},
		{
			name:    "unknown provider",
			base:    "classifier:\n  provider: \"llama\"\n  api_key: k\n  model: m\ntransports:\n  console:\n    enabled: true\n",
			wantErr: "classifier.provider must be",
		},
		{
			name:    "azure without endpoint",
			base:    "classifier:\n  provider: azure\n  api_key: k\n  model: m\ntransports:\n  console:\n    enabled: true\n",
			wantErr: "classifier.endpoint is required for azure",
		},
		{
			name:    "missing api key",
			base:    "classifier:\n  provider: openai\n  model: m\ntransports:\n  console:\n    enabled: true\n",
			wantErr: "classifier.api_key is required",
		},
		{
			name:    "missing model",
			base:    "classifier:\n  provider: openai\n  api_key: k\ntransports:\n  console:\n    enabled: true\n",
			wantErr: "classifier.model is required",
		},
		{
			name:    "no transports",
			base:    "classifier:\n  provider: openai\n  api_key: k\n  model: m\n",
			wantErr: "at least one transport must be enabled",
		},
		{
			name:    "matrix without homeserver",
			extra:   "  matrix:\n    enabled: true\n",
			wantErr: "transports.matrix.homeserver is required",
		},
		{
			name:    "matrix bad scheme",
			extra:   "  matrix:\n    enabled: true\n    homeserver: \"ftp://matrix.org\"\n",
			wantErr: "must use http or https scheme",
		},
		{
			name:    "matrix encryption without data dir",
			extra:   "  matrix:\n    enabled: true\n    homeserver: \"https://m.org\"\n    user_id: \"@a:m.org\"\n    access_token: t\n    encryption: true\n",
			wantErr: "transports.matrix.data_dir is required",
		},
		{
			name:    "discord without token",
			extra:   "  discord:\n    enabled: true\n",
			wantErr: "transports.discord.token is required",
		},
		{
			name:    "telegram without token",
			extra:   "  telegram:\n    enabled: true\n",
			wantErr: "transports.telegram.token is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := tt.base
			if content == "" {
				content = minimalYAML + tt.extra
			}
			_, err := Parse(content, false)
			if err == nil {
				t.Fatalf("Parse() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Direct(t *testing.T) {
	base := func() *Config {
		cfg, err := Parse(minimalYAML, false)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Tailscale.Enabled = true
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "tailscale.hostname") {
		t.Errorf("Validate() = %v, want tailscale.hostname error", err)
	}

	cfg = base()
	cfg.Tailscale.CertFile = "cert.pem"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "must be set together") {
		t.Errorf("Validate() = %v, want cert/key pairing error", err)
	}

	cfg = base()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("Validate() = %v, want logging.level error", err)
	}

	cfg = base()
	cfg.RateLimit.Burst = -1
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "ratelimit.burst") {
		t.Errorf("Validate() = %v, want ratelimit.burst error", err)
	}

	cfg = base()
	cfg.Server.HTTPAddr = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "server.http_addr") {
		t.Errorf("Validate() = %v, want server.http_addr error", err)
	}
	cfg.Tailscale.Enabled = true
	cfg.Tailscale.Hostname = "helpdesk"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with tailscale = %v, want nil", err)
	}
}

func TestLoad_AbsoluteClassifierFiles(t *testing.T) {
	cfg, err := Load(writeConfig(t, "helpdesk.yaml", `
classifier:
  provider: "openai"
  api_key: "k"
  model: "m"
  prompts_file: "/etc/helpdesk/prompts.json"
transports:
  console:
    enabled: true
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Classifier.PromptsFile != "/etc/helpdesk/prompts.json" {
		t.Errorf("Classifier.PromptsFile = %q, want absolute path unchanged", cfg.Classifier.PromptsFile)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/data/helpdesk.db"); got != filepath.Join(home, "data", "helpdesk.db") {
		t.Errorf("expandHome() = %q", got)
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("expandHome() = %q, want unchanged", got)
	}
	if got := expandHome("~user/x"); got != "~user/x" {
		t.Errorf("expandHome() = %q, want unchanged", got)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "")

	if got, _ := ResolvePath("/explicit.yaml"); got != "/explicit.yaml" {
		t.Errorf("ResolvePath(flag) = %q", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got, _ := ResolvePath(""); got != filepath.Join("/xdg", "coven", "helpdesk.yaml") {
		t.Errorf("ResolvePath(xdg) = %q", got)
	}

	t.Setenv(EnvConfigPath, "/from/env.toml")
	if got, _ := ResolvePath(""); got != "/from/env.toml" {
		t.Errorf("ResolvePath(env) = %q", got)
	}

	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/tester")
	if got, _ := ResolvePath(""); got != filepath.Join("/home/tester", ".config", "coven", "helpdesk.yaml") {
		t.Errorf("ResolvePath(home) = %q", got)
	}
}

func TestWriteStarter(t *testing.T) {
	t.Setenv("AZURE_OPENAI_KEY", "starter-key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://starter.openai.azure.com")

	path := filepath.Join(t.TempDir(), "nested", "helpdesk.yaml")
	if err := WriteStarter(path, false); err != nil {
		t.Fatalf("WriteStarter() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(starter) error = %v", err)
	}
	if !cfg.Transports.Console.Enabled {
		t.Error("starter config should enable the console transport")
	}
	if cfg.Classifier.APIKey != "starter-key" {
		t.Errorf("Classifier.APIKey = %q, want %q", cfg.Classifier.APIKey, "starter-key")
	}
	for _, name := range []string{"prompts.json", "example_intent.json"} {
		if _, err := os.Stat(filepath.Join(filepath.Dir(path), name)); err != nil {
			t.Errorf("starter %s not written: %v", name, err)
		}
	}
	if cfg.Classifier.PromptsFile != filepath.Join(filepath.Dir(path), "prompts.json") {
		t.Errorf("Classifier.PromptsFile = %q, want the starter prompts file", cfg.Classifier.PromptsFile)
	}

	err = WriteStarter(path, false)
	if !errors.Is(err, ErrConfigExists) {
		t.Errorf("WriteStarter() second call = %v, want ErrConfigExists", err)
	}
	if err := WriteStarter(path, true); err != nil {
		t.Errorf("WriteStarter(force) error = %v", err)
	}
}
