package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MeetingPrep/internal/config"
	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/infrastructure/storage"
	"MeetingPrep/internal/ports"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeCalendar struct {
	events []domain.CalendarEvent
	err    error
	calls  int
}

func (f *fakeCalendar) ListEvents(_ context.Context, _, _ time.Time, _ string, _ int) ([]domain.CalendarEvent, error) {
	f.calls++
	return f.events, f.err
}

type fakeSearch struct {
	mu      sync.Mutex
	queries map[string]string
	fn      func(query, freshness string) ([]domain.SearchResult, error)
	ctxFn   func(ctx context.Context, query string) ([]domain.SearchResult, error)
}

func (f *fakeSearch) Search(ctx context.Context, query string, _ int, freshness string) ([]domain.SearchResult, error) {
	f.mu.Lock()
	if f.queries == nil {
		f.queries = map[string]string{}
	}
	f.queries[query] = freshness
	f.mu.Unlock()

	if f.ctxFn != nil {
		return f.ctxFn(ctx, query)
	}
	if f.fn != nil {
		return f.fn(query, freshness)
	}
	return []domain.SearchResult{{Title: "Acme raises Series B", URL: "https://news.example/acme", Snippet: "Acme raised"}}, nil
}

type fakeRunner struct {
	result       domain.SynthesisResult
	err          error
	calls        int
	instructions string
	payload      string
}

func (f *fakeRunner) Run(_ context.Context, instructions, payload string) (domain.SynthesisResult, error) {
	f.calls++
	f.instructions = instructions
	f.payload = payload
	return f.result, f.err
}

func sampleSynthesis() domain.SynthesisResult {
	return domain.SynthesisResult{
		Insights: []domain.Insight{
			{Text: "Series B means new tooling budget", Why: "Fresh funding", Priority: 7},
			{Text: "Hiring SDRs", Why: "Outbound push", Priority: 1},
		},
		Hooks:           []domain.Hook{{Hook: "Congrats on the Series B", Source: "https://news.example/acme"}},
		Competitors:     []domain.CompetitorNote{{Name: "CompetitorX", Positioning: "Manual research"}},
		PreMeetingDraft: domain.EmailDraft{Subject: "Ahead of our call", Body: "Hi Jane"},
		FollowUpDraft:   domain.EmailDraft{Subject: "Thanks for the time", Body: "Hi Jane, [recap]"},
	}
}

type fakeNotes struct {
	pageID string
	err    error
	calls  []ports.NoteFields
	pages  []string
}

func (f *fakeNotes) UpsertRow(_ context.Context, fields ports.NoteFields, existing string) (string, error) {
	f.calls = append(f.calls, fields)
	f.pages = append(f.pages, existing)
	if f.err != nil {
		return "", f.err
	}
	return f.pageID, nil
}

type fakeMail struct {
	err        error
	recipients []string
	subjects   []string
}

func (f *fakeMail) CreateDraft(_ context.Context, recipient, subject, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.recipients = append(f.recipients, recipient)
	f.subjects = append(f.subjects, subject)
	return fmt.Sprintf("draft-%d", len(f.subjects)), nil
}

// failingInserts rejects every insert and delegates the rest.
type failingInserts struct {
	ports.MeetingRepository
	err error
}

func (f failingInserts) CreateIfAbsent(context.Context, *domain.Meeting) (bool, error) {
	return false, f.err
}

// failingAppends rejects every new steering version.
type failingAppends struct {
	ports.SteeringRepository
	err error
}

func (f failingAppends) Append(context.Context, domain.SteeringProfile) (*domain.SteeringProfile, error) {
	return nil, f.err
}

type harness struct {
	meetings *storage.MeetingRepository
	steering *SteeringService
	pipeline *Pipeline
	service  *MeetingService
	calendar *fakeCalendar
	search   *fakeSearch
	runner   *fakeRunner
	notes    *fakeNotes
	mail     *fakeMail
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(ctx, config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "pipeline.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	h := &harness{
		meetings: storage.NewMeetingRepository(db),
		calendar: &fakeCalendar{events: []domain.CalendarEvent{{
			ID:        "evt1",
			Title:     "Intro with Acme",
			Start:     "2026-10-20T15:00:00Z",
			Attendees: []domain.Attendee{{Email: "jane@acme.com", Name: "Jane"}},
			Status:    "confirmed",
		}}},
		search: &fakeSearch{},
		runner: &fakeRunner{result: sampleSynthesis()},
		notes:  &fakeNotes{pageID: "page-1"},
		mail:   &fakeMail{},
	}
	h.steering = NewSteeringService(storage.NewSteeringRepository(db), discardLogger)
	h.pipeline = NewPipeline(PipelineDeps{
		Ingest:             NewCalendarIngest(h.calendar, h.meetings, 25, discardLogger),
		Enricher:           NewEnricher(h.search, 5, time.Second, discardLogger),
		Synthesizer:        NewSynthesizer(h.runner, time.Second, discardLogger),
		Publisher:          NewPublisher(h.notes, h.mail, discardLogger),
		Steering:           h.steering,
		Meetings:           h.meetings,
		CalendarID:         "primary",
		LookaheadDays:      7,
		StaleAfter:         30 * time.Minute,
		PublicationTimeout: time.Second,
		Logger:             discardLogger,
	})
	h.service = NewMeetingService(h.meetings, h.steering, h.pipeline, discardLogger)
	return h
}

func (h *harness) onlyMeeting(t *testing.T) *domain.Meeting {
	t.Helper()
	all, err := h.meetings.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	return all[0]
}
