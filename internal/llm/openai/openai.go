// Package openai adapts OpenAI-compatible chat and embedding APIs (OpenAI,
// Groq, Ollama, vLLM, ...) to llm.Provider.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/efebarandurmaz/codechart/internal/llm"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultEmbedModel = "text-embedding-3-small"
	defaultMaxTokens  = 1024
)

// ChatClient is the chat-completions subset of the SDK.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// EmbeddingsClient is the embeddings subset of the SDK.
type EmbeddingsClient interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// Client implements llm.Provider and llm.Embedder.
type Client struct {
	name       string
	model      string
	embedModel string
	chat       ChatClient
	embeddings EmbeddingsClient
}

// New creates an OpenAI-compatible provider registered under name.
func New(name, apiKey, model, baseURL, embedModel string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	client := openai.NewClient(opts...)
	return NewWithClients(name, model, embedModel, &client.Chat.Completions, &client.Embeddings)
}

// NewWithClients builds a provider around existing SDK services.
func NewWithClients(name, model, embedModel string, chat ChatClient, embeddings EmbeddingsClient) *Client {
	if name == "" {
		name = "openai"
	}
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}
	return &Client{
		name:       name,
		model:      model,
		embedModel: embedModel,
		chat:       chat,
		embeddings: embeddings,
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(prompt.Messages)+1)
	if prompt.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.SystemPrompt))
	}
	for _, m := range prompt.Messages {
		switch m.Role {
		case llm.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: openai.Int(int64(opts.MaxTokensOr(defaultMaxTokens))),
	}
	if opts != nil {
		if opts.Temperature != nil {
			params.Temperature = openai.Float(*opts.Temperature)
		}
		if opts.TopP != nil {
			params.TopP = openai.Float(*opts.TopP)
		}
		if len(opts.StopSeqs) > 0 {
			params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: opts.StopSeqs}
		}
	}

	result, err := c.chat.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	text, stop := "", ""
	if len(result.Choices) > 0 {
		text = result.Choices[0].Message.Content
		stop = result.Choices[0].FinishReason
	}

	return &llm.Response{
		Content:      text,
		Model:        result.Model,
		InputTokens:  int(result.Usage.PromptTokens),
		OutputTokens: int(result.Usage.CompletionTokens),
		StopReason:   stop,
	}, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.embeddings == nil {
		return nil, llm.ErrEmbeddingsUnsupported
	}
	result, err := c.embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: c.embedModel,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("%s embed: %w", c.name, err)
	}

	out := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}
