package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStaleState        = errors.New("meeting state changed concurrently")
	ErrInvalidFeedback   = errors.New("feedback score must be 0 or 1")
	ErrVersionConflict   = errors.New("steering profile version conflict")
)

// MeetingStatus enumerates pipeline milestones.
type MeetingStatus string

const (
	StatusNew           MeetingStatus = "New"
	StatusEnriching     MeetingStatus = "Enriching"
	StatusEnriched      MeetingStatus = "Enriched"
	StatusDrafted       MeetingStatus = "Drafted"
	StatusFeedbackGiven MeetingStatus = "FeedbackGiven"
	StatusError         MeetingStatus = "Error"
)

var transitions = map[MeetingStatus][]MeetingStatus{
	StatusNew:           {StatusEnriching},
	StatusEnriching:     {StatusEnriched, StatusError},
	StatusEnriched:      {StatusDrafted, StatusError},
	StatusDrafted:       {StatusFeedbackGiven},
	StatusFeedbackGiven: nil,
	StatusError:         nil,
}

// Valid reports whether s is one of the known statuses.
func (s MeetingStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether the automated pipeline never moves s forward.
func (s MeetingStatus) Terminal() bool {
	return s == StatusError || s == StatusFeedbackGiven
}

// CanTransition reports whether the pipeline may move a meeting from one status to another.
func CanTransition(from, to MeetingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Attendee is a single calendar invitee.
type Attendee struct {
	Email          string `json:"email"`
	Name           string `json:"name,omitempty"`
	ResponseStatus string `json:"response_status,omitempty"`
}

// Insight is one prioritized talking point; priority 1 is the highest.
type Insight struct {
	Text     string `json:"text"`
	Why      string `json:"why"`
	Priority int    `json:"priority"`
}

// Hook is a personalization hook grounded in a cited source.
type Hook struct {
	Hook   string `json:"hook"`
	Source string `json:"source"`
}

// CompetitorNote summarizes how a competitor is positioned.
type CompetitorNote struct {
	Name        string `json:"name"`
	Positioning string `json:"positioning"`
}

// Meeting is the aggregate advanced by the preparation pipeline.
type Meeting struct {
	ID              int64            `json:"id"`
	CalendarEventID string           `json:"calendar_event_id"`
	Title           string           `json:"title"`
	ScheduledAt     *time.Time       `json:"datetime_utc"`
	Attendees       []Attendee       `json:"attendees"`
	Company         string           `json:"company"`
	Role            string           `json:"role"`
	Status          MeetingStatus    `json:"status"`
	Insights        []Insight        `json:"insights"`
	Hooks           []Hook           `json:"hooks"`
	Competitors     []CompetitorNote `json:"competitors"`
	DraftIDs        []string         `json:"draft_ids"`
	NotionPageID    *string          `json:"notion_page_id"`
	FeedbackScore   *int             `json:"feedback_score"`
	FeedbackNotes   *string          `json:"feedback_notes"`
	SteeringVersion *int             `json:"steering_version"`
	ErrorMessage    *string          `json:"error_message"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Advance moves the meeting to the next status if the transition is allowed.
func (m *Meeting) Advance(to MeetingStatus) error {
	if !CanTransition(m.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, to)
	}
	m.Status = to
	return nil
}

// Fail moves an in-progress meeting to Error, records the reason and drops
// any artifacts left from an earlier run.
func (m *Meeting) Fail(reason string) error {
	if err := m.Advance(StatusError); err != nil {
		return err
	}
	m.ErrorMessage = &reason
	m.clearArtifacts()
	return nil
}

// Reset returns a meeting to New for an explicit re-run and drops the previous
// outcome. The Notion page id is kept so the next upsert targets the same page.
func (m *Meeting) Reset() {
	m.Status = StatusNew
	m.ErrorMessage = nil
	m.clearArtifacts()
}

func (m *Meeting) clearArtifacts() {
	m.Insights = nil
	m.Hooks = nil
	m.Competitors = nil
	m.DraftIDs = nil
}

// PrimaryEmail returns the first attendee address, or "" if there is none.
func (m *Meeting) PrimaryEmail() string {
	if len(m.Attendees) == 0 {
		return ""
	}
	return m.Attendees[0].Email
}

// CompanyOrUnknown substitutes the placeholder used when inference failed.
func (m *Meeting) CompanyOrUnknown() string {
	return orUnknown(m.Company)
}

// RoleOrUnknown substitutes the placeholder used when no role is known.
func (m *Meeting) RoleOrUnknown() string {
	return orUnknown(m.Role)
}

func orUnknown(v string) string {
	if v == "" {
		return UnknownValue
	}
	return v
}

// UnknownValue is stored when a company or role cannot be inferred.
const UnknownValue = "Unknown"

// CalendarEvent is the normalized shape handed over by the calendar collaborator.
type CalendarEvent struct {
	ID             string
	Title          string
	Start          string
	Attendees      []Attendee
	OrganizerEmail string
	Status         string
}
