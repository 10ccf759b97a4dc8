package textquiz

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatMessage is a single role-tagged prompt message
type ChatMessage struct {
	Role    string
	Content string
}

// User builds a user-role message.
func User(content string) ChatMessage {
	return ChatMessage{Role: openai.ChatMessageRoleUser, Content: content}
}

// System builds a system-role message.
func System(content string) ChatMessage {
	return ChatMessage{Role: openai.ChatMessageRoleSystem, Content: content}
}

// CompletionOptions carries optional overrides for a single completion.
// Nil fields leave the provider defaults in place.
type CompletionOptions struct {
	MaxTokens   *int
	Temperature *float32
}

// TextGenerator is the external text-generation capability
type TextGenerator interface {
	Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error)
}

// OpenAIGenerator implements TextGenerator on an OpenAI compatible chat
// completion endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator. An empty baseURL uses the OpenAI
// API, anything else (ollama, vLLM, ...) is used as given.
func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends the messages and returns the trimmed content of the first choice.
func (g *OpenAIGenerator) Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
		// a zero temperature is dropped by omitempty
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func intPtr(v int) *int { return &v }

func float32Ptr(v float32) *float32 { return &v }
