package composio

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

const calendarListSlug = "GOOGLECALENDAR_EVENTS_LIST"

// Calendar lists Google Calendar events through Composio.
type Calendar struct {
	client *Client
}

var _ ports.CalendarSource = (*Calendar)(nil)

// NewCalendar returns a calendar source backed by the Google Calendar toolkit.
func NewCalendar(client *Client) *Calendar {
	return &Calendar{client: client}
}

type googleEvent struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Status  string `json:"status"`
	Start   struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"start"`
	Attendees []struct {
		Email          string `json:"email"`
		DisplayName    string `json:"displayName"`
		ResponseStatus string `json:"responseStatus"`
	} `json:"attendees"`
	Organizer struct {
		Email string `json:"email"`
	} `json:"organizer"`
}

// ListEvents returns single events ordered by start time within [timeMin, timeMax].
func (c *Calendar) ListEvents(ctx context.Context, timeMin, timeMax time.Time, calendarID string, maxResults int) ([]domain.CalendarEvent, error) {
	data, err := c.client.Execute(ctx, calendarListSlug, map[string]any{
		"calendarId":   calendarID,
		"timeMin":      timeMin.UTC().Format(time.RFC3339),
		"timeMax":      timeMax.UTC().Format(time.RFC3339),
		"singleEvents": true,
		"orderBy":      "startTime",
		"maxResults":   maxResults,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Items []googleEvent `json:"items"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode calendar events: %w", err)
		}
	}

	events := make([]domain.CalendarEvent, 0, len(payload.Items))
	for _, item := range payload.Items {
		event := domain.CalendarEvent{
			ID:             item.ID,
			Title:          item.Summary,
			Start:          item.Start.DateTime,
			OrganizerEmail: item.Organizer.Email,
			Status:         item.Status,
		}
		if event.Start == "" {
			event.Start = item.Start.Date
		}
		for _, a := range item.Attendees {
			event.Attendees = append(event.Attendees, domain.Attendee{
				Email:          a.Email,
				Name:           a.DisplayName,
				ResponseStatus: a.ResponseStatus,
			})
		}
		events = append(events, event)
	}
	return events, nil
}
