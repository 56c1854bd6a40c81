package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

// MeetingService backs the read, re-run and feedback operations on meetings.
type MeetingService struct {
	meetings ports.MeetingRepository
	steering *SteeringService
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewMeetingService wires the meeting operations.
func NewMeetingService(meetings ports.MeetingRepository, steering *SteeringService, pipeline *Pipeline, logger *slog.Logger) *MeetingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MeetingService{
		meetings: meetings,
		steering: steering,
		pipeline: pipeline,
		logger:   logger.With("component", "meetings"),
	}
}

// List returns every meeting, latest scheduled first.
func (s *MeetingService) List(ctx context.Context) ([]*domain.Meeting, error) {
	return s.meetings.List(ctx)
}

// Get returns one meeting or domain.ErrNotFound.
func (s *MeetingService) Get(ctx context.Context, id int64) (*domain.Meeting, error) {
	return s.meetings.Get(ctx, id)
}

// Rerun puts the meeting back to New, clears its error and runs the pipeline
// without polling the calendar.
func (s *MeetingService) Rerun(ctx context.Context, id int64) (*domain.Meeting, error) {
	m, err := s.meetings.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := m.Status
	m.Reset()
	if err := s.meetings.Update(ctx, m, previous); err != nil {
		return nil, fmt.Errorf("reset meeting %d: %w", id, err)
	}
	s.logger.Info("meeting reset for re-run", "meeting_id", id, "previous_status", string(previous))

	if _, err := s.pipeline.RunOnce(ctx, false); err != nil {
		return nil, err
	}
	return s.meetings.Get(ctx, id)
}

// SubmitFeedback records a score on a Drafted meeting and adapts steering.
func (s *MeetingService) SubmitFeedback(ctx context.Context, id int64, score int, notes *string) (*domain.Meeting, error) {
	if score != 0 && score != 1 {
		return nil, fmt.Errorf("score %d: %w", score, domain.ErrInvalidFeedback)
	}

	m, err := s.meetings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.Advance(domain.StatusFeedbackGiven); err != nil {
		return nil, fmt.Errorf("meeting %d: %w", id, err)
	}
	m.FeedbackScore = &score
	m.FeedbackNotes = notes

	if err := s.meetings.Update(ctx, m, domain.StatusDrafted); err != nil {
		return nil, fmt.Errorf("record feedback on meeting %d: %w", id, err)
	}

	text := ""
	if notes != nil {
		text = *notes
	}
	if _, err := s.steering.ApplyFeedback(ctx, score, text); err != nil {
		// The score is already stored; a resubmit is rejected with 409.
		s.logger.Error("steering adaptation lost for recorded feedback",
			"meeting_id", id,
			"score", score,
			"notes", text,
			"error", err)
		return nil, err
	}
	return m, nil
}
