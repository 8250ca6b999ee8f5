// ABOUTME: Starter configuration written by `coven-helpdesk init`
// ABOUTME: Secrets are left as ${VAR} references so the file can be committed safely

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrConfigExists is returned by WriteStarter when the target already exists.
var ErrConfigExists = errors.New("config file already exists")

// StarterYAML is a minimal working configuration using the console
// transport and an Azure OpenAI classifier.
const StarterYAML = `# coven-helpdesk configuration
server:
  http_addr: ":8080"

tailscale:
  enabled: false
  hostname: "helpdesk"
  auth_key: "${TS_AUTHKEY}"

database:
  path: "~/.local/share/coven/helpdesk.db"

logging:
  level: "info"
  format: "text"

dedupe:
  ttl: "5m"
  max_size: 100000

sessions:
  idle_ttl: "24h"
  sweep_interval: "10m"

forms:
  quit_token: "q"

conversation:
  direct_only: true

classifier:
  provider: "azure"
  api_key: "${AZURE_OPENAI_KEY}"
  endpoint: "${AZURE_OPENAI_ENDPOINT}"
  api_version: "2024-06-01"
  model: "gpt-4o-mini"
  max_tokens: 50
  timeout: "30s"
  prompts_file: "prompts.json"
  examples_file: "example_intent.json"
  prompt_key: "intent"

transports:
  console:
    enabled: true
    user_id: "console"
  matrix:
    enabled: false
    homeserver: "https://matrix.org"
    user_id: "@helpdesk:matrix.org"
    access_token: "${MATRIX_ACCESS_TOKEN}"
    auto_join: true
  discord:
    enabled: false
    token: "${DISCORD_BOT_TOKEN}"
  telegram:
    enabled: false
    token: "${TELEGRAM_BOT_TOKEN}"

ratelimit:
  messages_per_second: 2
  burst: 5
`

// StarterPrompts is the prompts file written next to a starter config.
const StarterPrompts = `{
  // The system prompt used to classify every new request.
  intent: "You route help-desk chat messages. Reply with exactly one label: Hello, Jira Support Ticket, or Other.",
}
`

// StarterExamples is the few-shot examples file written next to a starter config.
const StarterExamples = `[
  // Each pair shows the model a message and the label it should produce.
  { role: "user", content: "hi" },
  { role: "assistant", content: "Hello" },
  { role: "user", content: "I need to open a ticket for my broken laptop" },
  { role: "assistant", content: "Jira Support Ticket" },
  { role: "user", content: "what's for lunch?" },
  { role: "assistant", content: "Other" },
]
`

// WriteStarter writes StarterYAML to path, creating parent directories,
// plus prompts.json and example_intent.json beside it when those are missing.
// An existing config is only replaced when force is set.
func WriteStarter(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(StarterYAML), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	extras := map[string]string{
		DefaultPromptsFile:  StarterPrompts,
		DefaultExamplesFile: StarterExamples,
	}
	for name, content := range extras {
		target := filepath.Join(dir, name)
		if _, err := os.Stat(target); err == nil {
			continue
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}
