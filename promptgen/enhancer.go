// Package promptgen rewrites short user prompts into detailed generation
// prompts using a chat model.
package promptgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"soragen/logging"
)

// DefaultModel is the chat model used for prompt enhancement.
const DefaultModel = "gpt-4o-mini"

// defaultMaxTokens bounds the enhanced prompt length.
const defaultMaxTokens = 400

const videoSystemPrompt = "You are a prompt writer for a text-to-video " +
	"model. Rewrite the user's idea as a single vivid shot description: " +
	"subject, action, setting, camera movement, and lighting. Keep it " +
	"under 120 words. Reply with the rewritten prompt only."

const imageSystemPrompt = "You are a prompt writer for a text-to-image " +
	"model. Rewrite the user's idea as a single detailed scene " +
	"description: subject, composition, style, and lighting. Keep it " +
	"under 80 words. Reply with the rewritten prompt only."

// Kind selects the target medium for enhancement.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
)

// chatCompleter is the slice of the OpenAI client the enhancer uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Enhancer expands terse prompts before they are sent to a generation
// endpoint. Enhancement is best-effort: callers that cannot tolerate the
// extra round trip use the original prompt.
type Enhancer struct {
	client chatCompleter
	model  string
	logger *logging.Logger
}

// Config holds construction parameters for an Enhancer.
type Config struct {
	// APIKey authenticates the chat completion calls. Required.
	APIKey string

	// BaseURL overrides the API endpoint (empty uses the default).
	BaseURL string

	// Model is the chat model name. Default DefaultModel.
	Model string

	// Logger is optional.
	Logger *logging.Logger
}

// New creates an Enhancer.
func New(cfg Config) (*Enhancer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("promptgen: api key cannot be empty")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Enhancer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger.Named("promptgen"),
	}, nil
}

// Enhance rewrites prompt for the given medium. The returned string is
// the model's rewrite, or an error when the chat call fails; the caller
// decides whether to fall back to the original.
func (e *Enhancer) Enhance(ctx context.Context, kind Kind, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("promptgen: prompt cannot be empty")
	}

	system := videoSystemPrompt
	if kind == KindImage {
		system = imageSystemPrompt
	}

	resp, err := e.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: system,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens: defaultMaxTokens,
		},
	)
	if err != nil {
		return "", fmt.Errorf("promptgen: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("promptgen: chat completion returned no choices")
	}

	enhanced := strings.TrimSpace(resp.Choices[0].Message.Content)
	if enhanced == "" {
		return "", fmt.Errorf("promptgen: chat completion returned an empty prompt")
	}

	e.logger.Debug("prompt enhanced",
		zap.String("kind", string(kind)),
		zap.Int("original_len", len(prompt)),
		zap.Int("enhanced_len", len(enhanced)),
	)
	return enhanced, nil
}
