// Package anthropic adapts the Anthropic Messages API to llm.Provider.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/efebarandurmaz/codechart/internal/llm"
)

const defaultMaxTokens = 1024

// MessagesClient is the subset of the SDK used here. It allows tests to
// substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Client implements llm.Provider for the Anthropic Messages API.
type Client struct {
	model    string
	messages MessagesClient
}

// New creates an Anthropic provider. SDK-level retries are disabled; callers
// bound each call with their own deadline.
func New(apiKey, model, baseURL string, timeout time.Duration) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	client := anthropic.NewClient(opts...)
	return &Client{model: model, messages: &client.Messages}
}

// NewWithMessages builds a provider around an existing messages client.
func NewWithMessages(model string, messages MessagesClient) *Client {
	return &Client{model: model, messages: messages}
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(opts.MaxTokensOr(defaultMaxTokens)),
		Messages:  make([]anthropic.MessageParam, 0, len(prompt.Messages)),
	}
	if prompt.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt.SystemPrompt}}
	}
	for _, m := range prompt.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == llm.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}
	if opts != nil {
		if opts.Temperature != nil {
			params.Temperature = anthropic.Float(*opts.Temperature)
		}
		if opts.TopP != nil {
			params.TopP = anthropic.Float(*opts.TopP)
		}
		if len(opts.StopSeqs) > 0 {
			params.StopSequences = opts.StopSeqs
		}
	}

	msg, err := c.messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &llm.Response{
		Content:      text.String(),
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		StopReason:   string(msg.StopReason),
	}, nil
}
