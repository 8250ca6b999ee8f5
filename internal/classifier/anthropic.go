// ABOUTME: Classifier backend for the Anthropic Messages API.
// ABOUTME: System-role content goes into the system blocks; user/assistant examples become turns.

package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic classifies through a Claude model.
type Anthropic struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *slog.Logger
}

// NewAnthropic creates an Anthropic backend.
func NewAnthropic(cfg Config, logger *slog.Logger, extra ...option.RequestOption) (*Anthropic, error) {
	if cfg.Model == "" {
		return nil, errors.New("classifier model is required")
	}

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	client := anthropic.NewClient(opts...)
	if logger == nil {
		logger = slog.Default()
	}
	return &Anthropic{
		client:    &client,
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
		logger:    logger.With("component", "classifier", "provider", ProviderAnthropic),
	}, nil
}

// Classify sends the prompt (plus any system-role examples) as system blocks,
// the remaining examples in order, then the user's message, and returns the
// first text block of the reply.
func (c *Anthropic) Classify(ctx context.Context, message, prompt string, examples []Example, opts ...Option) (string, error) {
	if err := validateExamples(examples, RoleSystem, RoleUser, RoleAssistant); err != nil {
		return "", err
	}
	o := resolveOptions(c.maxTokens, opts)

	system := []anthropic.TextBlockParam{{Text: prompt}}
	messages := make([]anthropic.MessageParam, 0, len(examples)+1)
	for _, ex := range examples {
		switch ex.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: ex.Content})
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(ex.Content)))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(ex.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: o.maxTokens,
		System:    system,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("messages request: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			label := block.AsText().Text
			c.logger.Debug("classified message", "intent", label, "examples", len(examples), "max_tokens", o.maxTokens)
			return label, nil
		}
	}
	return "", ErrNoChoices
}
