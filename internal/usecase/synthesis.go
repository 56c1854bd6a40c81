package usecase

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

const (
	minPriority = 1
	maxPriority = 5

	notConfiguredReason = "synthesis provider not configured"
	payloadPreamble     = "Use the following meeting context + enrichment to produce the structured output.\n\n"
)

// Synthesizer turns enrichment into talking points and drafts with one LLM call.
type Synthesizer struct {
	runner  ports.SynthesisRunner
	timeout time.Duration
	logger  *slog.Logger
}

// NewSynthesizer builds the synthesis stage. A nil runner makes every call soft-fail.
func NewSynthesizer(runner ports.SynthesisRunner, timeout time.Duration, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		runner:  runner,
		timeout: timeout,
		logger:  logger.With("component", "synthesis"),
	}
}

// Synthesize never returns an error: failures produce domain.FallbackSynthesis.
func (s *Synthesizer) Synthesize(ctx context.Context, enrichment domain.EnrichmentResult, meeting domain.MeetingContext, profile domain.SteeringProfile) domain.SynthesisResult {
	ctx, span := tracer.Start(ctx, "synthesis.run")
	defer span.End()

	if s.runner == nil {
		s.logger.Warn(notConfiguredReason)
		span.SetStatus(codes.Error, notConfiguredReason)
		return domain.FallbackSynthesis(notConfiguredReason)
	}

	payload, err := BuildPayload(enrichment, meeting)
	if err != nil {
		return s.fail(span, fmt.Sprintf("Unexpected error: %v", err))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.runner.Run(ctx, BuildInstructions(profile), payload)
	if err != nil {
		return s.fail(span, fmt.Sprintf("Unexpected error: %v", err))
	}
	if result.Failed() {
		return s.fail(span, *result.Error)
	}

	result = NormalizeSynthesis(result)
	span.SetAttributes(
		attribute.Int("synthesis.insights", len(result.Insights)),
		attribute.Int("synthesis.hooks", len(result.Hooks)),
	)
	return result
}

func (s *Synthesizer) fail(span trace.Span, reason string) domain.SynthesisResult {
	s.logger.Error("synthesis failed", "error", reason)
	span.SetStatus(codes.Error, reason)
	return domain.FallbackSynthesis(reason)
}

// BuildInstructions renders the steering profile into the system instruction block.
func BuildInstructions(p domain.SteeringProfile) string {
	lines := []string{
		"You are an always-on meeting prep agent for founder-led sales.",
		"Your job is to turn real-time enrichment data into:",
		"1) prioritized insights, 2) personalization hooks, 3) competitor notes,",
		"4) a pre-meeting email draft, and 5) a follow-up template draft.",
		"",
		"Hard requirements:",
		"- Be specific and grounded in the enrichment; avoid generic claims.",
		"- Prefer concrete facts and cite sources in hooks.sources when possible.",
		"- Email Draft 1 (pre-meeting): 80–150 words, 2–3 specific hooks, 2 discovery questions.",
		"- Email Draft 2 (follow-up): a good template with placeholders for post-meeting details.",
		"",
		"Steering profile (how to frame everything):",
		"- Product focus: " + p.ProductFocus,
		"- ICP: " + p.ICP,
		"- Key pains: " + joinOrNone(p.KeyPains),
		"- Disallowed claims: " + joinOrNone(p.DisallowedClaims),
		"- Competitor list: " + joinOrNone(p.CompetitorList),
		fmt.Sprintf("- Weights: news=%.2f, role_pains=%.2f, competitors=%.2f", p.WeightNews, p.WeightRolePains, p.WeightCompetitors),
		"- Specificity rules: " + joinOrNone(p.SpecificityRules),
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// BuildPayload serializes the meeting context and enrichment the model grounds on.
func BuildPayload(enrichment domain.EnrichmentResult, meeting domain.MeetingContext) (string, error) {
	if meeting.Attendees == nil {
		meeting.Attendees = []domain.Attendee{}
	}
	raw, err := json.Marshal(struct {
		Meeting    domain.MeetingContext   `json:"meeting"`
		Enrichment domain.EnrichmentResult `json:"enrichment"`
	}{meeting, enrichment})
	if err != nil {
		return "", fmt.Errorf("encode synthesis payload: %w", err)
	}
	return payloadPreamble + string(raw), nil
}

// NormalizeSynthesis clamps insight priorities to 1..5, orders insights by
// priority and replaces nil lists with empty ones. A missing priority ranks
// lowest.
func NormalizeSynthesis(r domain.SynthesisResult) domain.SynthesisResult {
	insights := make([]domain.Insight, 0, len(r.Insights))
	for _, in := range r.Insights {
		if in.Priority == 0 {
			in.Priority = maxPriority
		}
		in.Priority = min(max(in.Priority, minPriority), maxPriority)
		insights = append(insights, in)
	}
	slices.SortStableFunc(insights, func(a, b domain.Insight) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	r.Insights = insights

	if r.Hooks == nil {
		r.Hooks = []domain.Hook{}
	}
	if r.Competitors == nil {
		r.Competitors = []domain.CompetitorNote{}
	}
	return r
}

func joinOrNone(items []string) string {
	if joined := strings.Join(items, ", "); joined != "" {
		return joined
	}
	return "(none)"
}
