package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"

	"MeetingPrep/internal/config"
	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

// LangChainRunner runs synthesis on any langchaingo model.
type LangChainRunner struct {
	model       llms.Model
	temperature float64
}

var _ ports.SynthesisRunner = (*LangChainRunner)(nil)

// NewLangChainRunner wraps an existing model.
func NewLangChainRunner(model llms.Model, temperature float64) *LangChainRunner {
	return &LangChainRunner{model: model, temperature: temperature}
}

func newAnthropicRunner(cfg config.SynthesisConfig) (*LangChainRunner, error) {
	if cfg.AnthropicKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY: %w", ErrNotConfigured)
	}
	opts := []anthropic.Option{anthropic.WithToken(cfg.AnthropicKey)}
	if cfg.Model != "" {
		opts = append(opts, anthropic.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	model, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create anthropic model: %w", err)
	}
	return NewLangChainRunner(model, cfg.Temperature), nil
}

func newOllamaRunner(cfg config.SynthesisConfig) (*LangChainRunner, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model), ollama.WithFormat("json")}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	model, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return NewLangChainRunner(model, cfg.Temperature), nil
}

// Run sends the instructions and payload as one JSON-mode generation and decodes the reply.
func (r *LangChainRunner) Run(ctx context.Context, instructions, payload string) (domain.SynthesisResult, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, WithOutputContract(instructions)),
		llms.TextParts(llms.ChatMessageTypeHuman, payload),
	}

	response, err := r.model.GenerateContent(ctx, messages,
		llms.WithTemperature(r.temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("generate synthesis: %w", err)
	}
	if len(response.Choices) == 0 {
		return domain.SynthesisResult{}, fmt.Errorf("generate synthesis: no response choices")
	}

	return DecodeResult(response.Choices[0].Content)
}
