package ports

import (
	"context"
	"time"

	"MeetingPrep/internal/domain"
)

// MeetingRepository persists meetings. Every mutating call that takes an
// expected status only succeeds while the stored row still has that status.
type MeetingRepository interface {
	CreateIfAbsent(ctx context.Context, m *domain.Meeting) (bool, error)
	Get(ctx context.Context, id int64) (*domain.Meeting, error)
	List(ctx context.Context) ([]*domain.Meeting, error)
	ListByStatus(ctx context.Context, status domain.MeetingStatus) ([]*domain.Meeting, error)
	Claim(ctx context.Context, id int64, steeringVersion int) (bool, error)
	Update(ctx context.Context, m *domain.Meeting, expected domain.MeetingStatus) error
	RequeueStale(ctx context.Context, before time.Time) (int, error)
}

// SteeringRepository is the append-only steering profile store.
type SteeringRepository interface {
	Current(ctx context.Context) (*domain.SteeringProfile, error)
	Append(ctx context.Context, p domain.SteeringProfile) (*domain.SteeringProfile, error)
	History(ctx context.Context) ([]*domain.SteeringProfile, error)
}

// CalendarSource lists upcoming events from the calendar collaborator.
type CalendarSource interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time, calendarID string, maxResults int) ([]domain.CalendarEvent, error)
}

// SearchProvider runs one web search. Failures are *domain.SearchError.
type SearchProvider interface {
	Search(ctx context.Context, query string, count int, freshness string) ([]domain.SearchResult, error)
}

// SynthesisRunner invokes the LLM collaborator once.
type SynthesisRunner interface {
	Run(ctx context.Context, instructions, payload string) (domain.SynthesisResult, error)
}

// NoteFields are the columns written to the notes database row.
type NoteFields struct {
	Title   string
	Company string
	Role    string
	Status  string
}

// NotesStore upserts a meeting row in the workspace notes database.
type NotesStore interface {
	UpsertRow(ctx context.Context, fields NoteFields, existingPageID string) (string, error)
}

// MailDrafter creates a draft email and returns its identifier.
type MailDrafter interface {
	CreateDraft(ctx context.Context, recipient, subject, body string) (string, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
