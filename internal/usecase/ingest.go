package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

const eventStatusCancelled = "cancelled"

var offsetlessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// CalendarIngest turns upcoming calendar events into New meetings.
type CalendarIngest struct {
	calendar   ports.CalendarSource
	meetings   ports.MeetingRepository
	maxResults int
	logger     *slog.Logger
	now        func() time.Time
}

// NewCalendarIngest wires the ingest step. A nil calendar disables polling.
func NewCalendarIngest(calendar ports.CalendarSource, meetings ports.MeetingRepository, maxResults int, logger *slog.Logger) *CalendarIngest {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarIngest{
		calendar:   calendar,
		meetings:   meetings,
		maxResults: maxResults,
		logger:     logger.With("component", "ingest"),
		now:        time.Now,
	}
}

// PollAndUpsert fetches events in [now, now+lookaheadDays] and inserts the ones
// not seen before. Calendar failures are logged and yield zero new meetings;
// only persistence errors are returned.
func (i *CalendarIngest) PollAndUpsert(ctx context.Context, lookaheadDays int, calendarID string) (int, error) {
	ctx, span := tracer.Start(ctx, "ingest.poll")
	defer span.End()

	if i.calendar == nil {
		i.logger.Warn("calendar source not configured; skipping poll")
		return 0, nil
	}

	timeMin := i.now().UTC()
	timeMax := timeMin.AddDate(0, 0, lookaheadDays)

	events, err := i.calendar.ListEvents(ctx, timeMin, timeMax, calendarID, i.maxResults)
	if err != nil {
		i.logger.Warn("calendar poll failed", "calendar_id", calendarID, "error", err)
		return 0, nil
	}
	i.logger.Info("calendar poll returned events", "calendar_id", calendarID, "count", len(events))

	created := 0
	for _, event := range events {
		if event.ID == "" || strings.EqualFold(event.Status, eventStatusCancelled) {
			continue
		}

		m := MeetingFromEvent(event)
		ok, err := i.meetings.CreateIfAbsent(ctx, m)
		if err != nil {
			return created, fmt.Errorf("upsert event %s: %w", event.ID, err)
		}
		if ok {
			created++
			i.logger.Debug("meeting created", "meeting_id", m.ID, "event_id", event.ID, "company", m.Company)
		}
	}

	span.SetAttributes(attribute.Int("meetings.new", created))
	return created, nil
}

// MeetingFromEvent maps a calendar event onto a New meeting.
func MeetingFromEvent(event domain.CalendarEvent) *domain.Meeting {
	attendees := make([]domain.Attendee, 0, len(event.Attendees))
	attendees = append(attendees, event.Attendees...)

	return &domain.Meeting{
		CalendarEventID: event.ID,
		Title:           event.Title,
		ScheduledAt:     ParseEventStart(event.Start),
		Attendees:       attendees,
		Company:         InferCompany(attendees),
		Role:            domain.UnknownValue,
		Status:          domain.StatusNew,
	}
}

// ParseEventStart accepts a date, an RFC 3339 timestamp or a timestamp without
// offset (read as UTC). Anything else yields nil.
func ParseEventStart(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		utc := t.UTC()
		return &utc
	}
	for _, layout := range offsetlessLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// InferCompany returns the lowercased domain of the first attendee with a
// valid address, or the Unknown placeholder.
func InferCompany(attendees []domain.Attendee) string {
	for _, a := range attendees {
		addr, err := mail.ParseAddress(strings.TrimSpace(a.Email))
		if err != nil {
			continue
		}
		at := strings.LastIndex(addr.Address, "@")
		if at < 0 || at == len(addr.Address)-1 {
			continue
		}
		return strings.ToLower(addr.Address[at+1:])
	}
	return domain.UnknownValue
}
