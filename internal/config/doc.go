// Package config handles configuration loading for coven-helpdesk.
//
// # Overview
//
// Configuration is loaded from a YAML file, or a TOML file when the path
// ends in ".toml". Environment variables are expanded first, then durations
// are parsed, defaults are filled in, and the result is validated.
//
// # Configuration File
//
// Locations (in order):
//
//  1. The --config flag
//  2. Path from COVEN_HELPDESK_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/coven/helpdesk.yaml
//  4. ~/.config/coven/helpdesk.yaml
//
// `coven-helpdesk init` writes StarterYAML to the resolved location.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	classifier:
//	  api_key: "${AZURE_OPENAI_KEY}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	dedupe:
//	  ttl: "5m"
//	sessions:
//	  idle_ttl: "24h"
//	  sweep_interval: "10m"
//	classifier:
//	  timeout: "30s"
//
// # Configuration Sections
//
// Classifier:
//
//	classifier:
//	  provider: "azure"        # azure, openai, anthropic
//	  endpoint: "https://example.openai.azure.com"
//	  model: "gpt-4o-mini"     # deployment name for azure
//	  prompts_file: "prompts.json"
//	  examples_file: "example_intent.json"
//	  prompt_key: "intent"
//
// Transports (at least one must be enabled):
//
//	transports:
//	  matrix:
//	    enabled: true
//	    homeserver: "https://matrix.org"
//	    user_id: "@helpdesk:matrix.org"
//	    access_token: "${MATRIX_ACCESS_TOKEN}"
//	    encryption: true
//	    data_dir: "~/.local/share/coven/matrix"
//	  discord:
//	    enabled: false
//	  telegram:
//	    enabled: false
//	  console:
//	    enabled: false
//
// Conversation filtering defaults to direct messages only:
//
//	conversation:
//	  direct_only: true
//
// Leaving database.path empty keeps the turn ledger in memory.
//
// # Usage
//
//	path, err := config.ResolvePath(flagValue)
//	if err != nil {
//	    return err
//	}
//	cfg, err := config.Load(path)
package config
