package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

// PipelineDeps wires all stages into the orchestration pipeline.
type PipelineDeps struct {
	Ingest      *CalendarIngest
	Enricher    *Enricher
	Synthesizer *Synthesizer
	Publisher   *Publisher
	Steering    *SteeringService
	Meetings    ports.MeetingRepository

	CalendarID         string
	LookaheadDays      int
	StaleAfter         time.Duration
	PublicationTimeout time.Duration

	Logger *slog.Logger
}

// RunResult reports one trigger invocation.
type RunResult struct {
	NewMeetings int `json:"new_meetings"`
	Processed   int `json:"processed_meetings"`
}

// Pipeline implements the meeting preparation workflow.
type Pipeline struct {
	ingest      *CalendarIngest
	enricher    *Enricher
	synthesizer *Synthesizer
	publisher   *Publisher
	steering    *SteeringService
	meetings    ports.MeetingRepository

	calendarID         string
	lookaheadDays      int
	staleAfter         time.Duration
	publicationTimeout time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		ingest:             deps.Ingest,
		enricher:           deps.Enricher,
		synthesizer:        deps.Synthesizer,
		publisher:          deps.Publisher,
		steering:           deps.Steering,
		meetings:           deps.Meetings,
		calendarID:         deps.CalendarID,
		lookaheadDays:      deps.LookaheadDays,
		staleAfter:         deps.StaleAfter,
		publicationTimeout: deps.PublicationTimeout,
		logger:             logger.With("component", "pipeline"),
		now:                time.Now,
	}
}

// RunOnce optionally polls the calendar, then drives every New meeting through
// enrichment, synthesis and publication. A failure on one meeting is logged
// and does not stop the others.
func (p *Pipeline) RunOnce(ctx context.Context, poll bool) (RunResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()

	var result RunResult

	if p.staleAfter > 0 {
		requeued, err := p.meetings.RequeueStale(ctx, p.now().Add(-p.staleAfter))
		if err != nil {
			return result, fmt.Errorf("requeue stale meetings: %w", err)
		}
		if requeued > 0 {
			p.logger.Warn("requeued stale meetings", "count", requeued)
		}
	}

	if poll && p.ingest != nil {
		created, err := p.ingest.PollAndUpsert(ctx, p.lookaheadDays, p.calendarID)
		if err != nil {
			p.logger.Error("calendar poll failed, continuing with pending meetings", "error", err)
		}
		result.NewMeetings = created
	}

	pending, err := p.meetings.ListByStatus(ctx, domain.StatusNew)
	if err != nil {
		return result, fmt.Errorf("load new meetings: %w", err)
	}
	if len(pending) == 0 {
		return result, nil
	}

	profile, err := p.steering.Current(ctx)
	if err != nil {
		return result, err
	}

	for _, m := range pending {
		processed, err := p.process(ctx, m, profile)
		if err != nil {
			p.logger.Error("meeting processing failed", "meeting_id", m.ID, "error", err)
			continue
		}
		if processed {
			result.Processed++
		}
	}

	span.SetAttributes(
		attribute.Int("meetings.new", result.NewMeetings),
		attribute.Int("meetings.processed", result.Processed),
	)
	p.logger.Info("pipeline run complete", "new_meetings", result.NewMeetings, "processed", result.Processed)
	return result, nil
}

// process advances one meeting and reports whether it reached Drafted or Error.
func (p *Pipeline) process(ctx context.Context, m *domain.Meeting, profile domain.SteeringProfile) (bool, error) {
	ctx, span := tracer.Start(ctx, "pipeline.meeting")
	defer span.End()
	span.SetAttributes(attribute.Int64("meeting.id", m.ID), attribute.String("meeting.event_id", m.CalendarEventID))

	claimed, err := p.meetings.Claim(ctx, m.ID, profile.Version)
	if err != nil {
		return false, err
	}
	if !claimed {
		p.logger.Info("meeting already claimed", "meeting_id", m.ID)
		return false, nil
	}
	version := profile.Version
	if err := m.Advance(domain.StatusEnriching); err != nil {
		return false, err
	}
	m.SteeringVersion = &version

	logger := p.logger.With("meeting_id", m.ID, "title", m.Title)
	logger.Info("processing meeting")

	enrichment := p.enricher.Enrich(ctx, m.CompanyOrUnknown(), m.RoleOrUnknown(), m.Attendees, profile)

	synthesis := p.synthesizer.Synthesize(ctx, enrichment, domain.MeetingContext{
		Title:     m.Title,
		Company:   m.CompanyOrUnknown(),
		Role:      m.RoleOrUnknown(),
		Attendees: m.Attendees,
	}, profile)

	if synthesis.Failed() {
		logger.Warn("synthesis returned error", "error", *synthesis.Error)
		span.SetStatus(codes.Error, *synthesis.Error)
		if err := m.Fail(*synthesis.Error); err != nil {
			return false, err
		}
		return p.commit(ctx, m, domain.StatusEnriching)
	}

	m.Insights = synthesis.Insights
	m.Hooks = synthesis.Hooks
	m.Competitors = synthesis.Competitors
	if err := m.Advance(domain.StatusEnriched); err != nil {
		return false, err
	}
	if ok, err := p.commit(ctx, m, domain.StatusEnriching); !ok || err != nil {
		return false, err
	}
	logger.Info("synthesis complete", "insights", len(m.Insights), "hooks", len(m.Hooks))

	publishCtx := ctx
	if p.publicationTimeout > 0 {
		var cancel context.CancelFunc
		publishCtx, cancel = context.WithTimeout(ctx, p.publicationTimeout)
		defer cancel()
	}
	published := p.publisher.Publish(publishCtx, m, synthesis)
	if published.NotionPageID != "" {
		m.NotionPageID = &published.NotionPageID
	}
	m.DraftIDs = published.DraftIDs

	if err := m.Advance(domain.StatusDrafted); err != nil {
		return false, err
	}
	return p.commit(ctx, m, domain.StatusEnriched)
}

func (p *Pipeline) commit(ctx context.Context, m *domain.Meeting, expected domain.MeetingStatus) (bool, error) {
	err := p.meetings.Update(ctx, m, expected)
	if errors.Is(err, domain.ErrStaleState) {
		p.logger.Warn("meeting changed underneath the pipeline", "meeting_id", m.ID, "expected", expected)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("persist meeting %d at %s: %w", m.ID, m.Status, err)
	}
	return true, nil
}
