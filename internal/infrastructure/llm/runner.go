package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"MeetingPrep/internal/config"
	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

// ErrNotConfigured marks a provider whose credentials are missing.
var ErrNotConfigured = errors.New("not configured")

const outputContract = `Respond with one JSON object and nothing else, using exactly these keys:
{
  "insights": [{"text": string, "why": string, "priority": integer 1-5 (1 = highest)}],
  "hooks": [{"hook": string, "source": string}],
  "competitors": [{"name": string, "positioning": string}],
  "pre_meeting_draft": {"subject": string, "body": string},
  "follow_up_draft": {"subject": string, "body": string}
}`

// NewRunner selects the synthesis backend named by cfg.Provider.
func NewRunner(cfg config.SynthesisConfig) (ports.SynthesisRunner, error) {
	var (
		runner ports.SynthesisRunner
		err    error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		runner, err = NewChatGPTRunner(cfg)
	case "anthropic":
		runner, err = newAnthropicRunner(cfg)
	case "ollama":
		runner, err = newOllamaRunner(cfg)
	default:
		return nil, fmt.Errorf("unsupported synthesis provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return runner, nil
}

// WithOutputContract appends the JSON shape the reply must follow.
func WithOutputContract(instructions string) string {
	return instructions + "\n\n" + outputContract
}

// DecodeResult parses a model reply, tolerating code fences around the JSON.
func DecodeResult(raw string) (domain.SynthesisResult, error) {
	text := strings.TrimSpace(raw)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}

	var result domain.SynthesisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return domain.SynthesisResult{}, fmt.Errorf("decode synthesis output: %w", err)
	}
	if result.PreMeetingDraft.Subject == "" && result.PreMeetingDraft.Body == "" {
		return domain.SynthesisResult{}, errors.New("synthesis output is missing pre_meeting_draft")
	}
	if result.FollowUpDraft.Subject == "" && result.FollowUpDraft.Body == "" {
		return domain.SynthesisResult{}, errors.New("synthesis output is missing follow_up_draft")
	}

	result.Error = nil
	return result, nil
}
