// ABOUTME: Classifier backend for the OpenAI Chat Completions API and Azure OpenAI deployments.
// ABOUTME: Uses the official openai-go SDK; Azure routing is handled by its azure options.

package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// OpenAI classifies through a chat completion model. For Azure the model
// name is the deployment name.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

// NewOpenAI creates an OpenAI or Azure OpenAI backend. Extra request options
// are appended after the ones derived from cfg.
func NewOpenAI(cfg Config, logger *slog.Logger, extra ...option.RequestOption) (*OpenAI, error) {
	if cfg.Model == "" {
		return nil, errors.New("classifier model is required")
	}

	var opts []option.RequestOption
	switch cfg.Provider {
	case ProviderAzure:
		if cfg.Endpoint == "" || cfg.APIVersion == "" {
			return nil, errors.New("azure classifier requires endpoint and api_version")
		}
		opts = append(opts,
			azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	default:
		if cfg.APIKey != "" {
			opts = append(opts, option.WithAPIKey(cfg.APIKey))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithBaseURL(cfg.Endpoint))
		}
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	client := openai.NewClient(opts...)
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{
		client:    &client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.With("component", "classifier", "provider", providerName(cfg.Provider)),
	}, nil
}

func providerName(p string) string {
	if p == "" {
		return ProviderOpenAI
	}
	return p
}

// Classify sends system(prompt), the examples in order, then user(message),
// and returns the content of the first choice.
func (c *OpenAI) Classify(ctx context.Context, message, prompt string, examples []Example, opts ...Option) (string, error) {
	if err := validateExamples(examples, RoleSystem, RoleUser, RoleAssistant); err != nil {
		return "", err
	}
	o := resolveOptions(c.maxTokens, opts)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(examples)+2)
	messages = append(messages, openai.SystemMessage(prompt))
	for _, ex := range examples {
		switch ex.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(ex.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(ex.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(ex.Content))
		}
	}
	messages = append(messages, openai.UserMessage(message))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               c.model,
		MaxCompletionTokens: openai.Int(o.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	label := resp.Choices[0].Message.Content
	c.logger.Debug("classified message", "intent", label, "examples", len(examples), "max_tokens", o.maxTokens)
	return label, nil
}
