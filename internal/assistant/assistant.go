// Package assistant generates stylist replies for the chat service using the
// OpenAI API.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/closetiq/closetiq/internal/models"
)

// ErrNoChoicesReturned indicates the completion API returned no choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// DefaultSystemPrompt is the stylist persona used when none is configured.
const DefaultSystemPrompt = "You are a friendly personal fashion stylist. " +
	"You help the user pick outfits, combine pieces from their wardrobe, and plan what to wear. " +
	"Keep replies short, warm, and practical."

// ClientInterface generates one assistant reply from a conversation transcript.
type ClientInterface interface {
	GenerateReply(ctx context.Context, transcript []models.Message) (string, error)
}

// completionService defines the minimal interface for chat completions.
type completionService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration for the OpenAI-backed assistant.
type Opts struct {
	APIKey       string
	Model        string
	SystemPrompt string
}

// Option configures assistant construction.
type Option func(*Opts)

// WithAPIKey sets an explicit API key, overriding OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithSystemPrompt overrides the stylist system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *Opts) {
		o.SystemPrompt = prompt
	}
}

// Client wraps the OpenAI chat completion service for generating replies.
type Client struct {
	chat         completionService
	model        string
	systemPrompt string
}

// NewClient initializes an assistant client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	cli := openai.NewClient(option.WithAPIKey(apiKey))
	slog.Debug("assistant.NewClient: client ready", "model", model)
	return &Client{chat: &cli.Chat.Completions, model: model, systemPrompt: systemPrompt}, nil
}

// GenerateReply produces the next stylist turn from the transcript so far.
func (c *Client) GenerateReply(ctx context.Context, transcript []models.Message) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript)+1)
	messages = append(messages, openai.SystemMessage(c.systemPrompt))
	for _, msg := range transcript {
		switch msg.Sender {
		case models.SenderUser:
			messages = append(messages, openai.UserMessage(msg.Text))
		case models.SenderBot:
			messages = append(messages, openai.AssistantMessage(msg.Text))
		}
	}

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("assistant.GenerateReply completion failed", "error", err)
		return "", fmt.Errorf("generate reply: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}
