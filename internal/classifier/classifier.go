// ABOUTME: Intent classification contract backed by hosted language models.
// ABOUTME: Builds system prompt, few-shot examples, and user message into one completion request.

package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultMaxTokens bounds the completion length when neither the backend
// config nor the call overrides it. Intent labels are short.
const DefaultMaxTokens int64 = 50

// Message roles accepted in few-shot examples.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider names accepted in Config.
const (
	ProviderAzure     = "azure"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var (
	// ErrNoChoices means the model answered without any usable content.
	ErrNoChoices = errors.New("classifier returned no choices")

	// ErrInvalidRole means a few-shot example used a role the backend cannot send.
	ErrInvalidRole = errors.New("invalid example role")
)

// Example is one few-shot message replayed verbatim between the system
// prompt and the user's message.
type Example struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Classifier resolves a user message to an intent label.
type Classifier interface {
	Classify(ctx context.Context, message, prompt string, examples []Example, opts ...Option) (string, error)
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, message, prompt string, examples []Example, opts ...Option) (string, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, message, prompt string, examples []Example, opts ...Option) (string, error) {
	return f(ctx, message, prompt, examples, opts...)
}

// Option adjusts a single Classify call.
type Option func(*callOptions)

type callOptions struct {
	maxTokens int64
}

// WithMaxTokens overrides the completion length for one call.
func WithMaxTokens(n int64) Option {
	return func(o *callOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

func resolveOptions(defaultMax int64, opts []Option) callOptions {
	if defaultMax <= 0 {
		defaultMax = DefaultMaxTokens
	}
	o := callOptions{maxTokens: defaultMax}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Config selects and configures a backend.
type Config struct {
	Provider   string
	APIKey     string
	Model      string // deployment name for azure
	Endpoint   string // azure resource endpoint, or base URL override for openai/anthropic
	APIVersion string // azure only
	MaxTokens  int64
	Timeout    time.Duration
}

// New builds the backend named by cfg.Provider.
func New(cfg Config, logger *slog.Logger) (Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case ProviderAzure, ProviderOpenAI:
		return NewOpenAI(cfg, logger)
	case ProviderAnthropic:
		return NewAnthropic(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}

func validateExamples(examples []Example, allowed ...string) error {
	for i, ex := range examples {
		ok := false
		for _, role := range allowed {
			if ex.Role == role {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: example %d has role %q", ErrInvalidRole, i, ex.Role)
		}
	}
	return nil
}
