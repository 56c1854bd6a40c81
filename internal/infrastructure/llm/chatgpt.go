package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"MeetingPrep/internal/config"
	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

// ChatGPTRunner implements ports.SynthesisRunner on the OpenAI Chat Completions API.
type ChatGPTRunner struct {
	client      *openai.Client
	model       string
	temperature float64
}

var _ ports.SynthesisRunner = (*ChatGPTRunner)(nil)

// NewChatGPTRunner builds a runner from configuration.
func NewChatGPTRunner(cfg config.SynthesisConfig) (*ChatGPTRunner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY: %w", ErrNotConfigured)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4o
	}
	return &ChatGPTRunner{client: &client, model: model, temperature: cfg.Temperature}, nil
}

// Run sends the steering instructions and grounding payload as one JSON-mode completion.
func (r *ChatGPTRunner) Run(ctx context.Context, instructions, payload string) (domain.SynthesisResult, error) {
	completion, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(WithOutputContract(instructions)),
			openai.UserMessage(payload),
		},
		Temperature: openai.Float(r.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return domain.SynthesisResult{}, fmt.Errorf("openai chat completion: no choices")
	}

	return DecodeResult(completion.Choices[0].Message.Content)
}
