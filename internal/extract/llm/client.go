// Package llm is the model-assisted fallback extractor. It is consulted
// only when deterministic extraction comes back empty or under the
// source's confidence threshold, and its output is schema-validated
// before anything downstream sees it.
package llm

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Client abstracts the chat-completion call so tests can substitute a
// canned transcript.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Provider() string
	Model() string
}

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds a client for the given key and model.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete sends one system+user exchange and returns the raw response
// text.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Provider implements Client.
func (c *OpenAIClient) Provider() string { return "openai" }

// Model implements Client.
func (c *OpenAIClient) Model() string { return c.model }
