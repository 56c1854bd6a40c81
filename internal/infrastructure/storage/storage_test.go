package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MeetingPrep/internal/config"
	"MeetingPrep/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func newMeeting(eventID string) *domain.Meeting {
	at := time.Date(2026, time.October, 20, 15, 0, 0, 0, time.UTC)
	return &domain.Meeting{
		CalendarEventID: eventID,
		Title:           "Intro",
		ScheduledAt:     &at,
		Attendees:       []domain.Attendee{{Email: "a@acme.com", Name: "Ann"}},
		Company:         "acme.com",
		Status:          domain.StatusNew,
	}
}

func TestCreateIfAbsentDeduplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMeetingRepository(openTestDB(t))

	m := newMeeting("evt1")
	created, err := repo.CreateIfAbsent(ctx, m)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, m.ID)

	created, err = repo.CreateIfAbsent(ctx, newMeeting("evt1"))
	require.NoError(t, err)
	assert.False(t, created)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	got := all[0]
	assert.Equal(t, "evt1", got.CalendarEventID)
	assert.Equal(t, "acme.com", got.Company)
	assert.Equal(t, domain.StatusNew, got.Status)
	require.NotNil(t, got.ScheduledAt)
	assert.True(t, got.ScheduledAt.Equal(*m.ScheduledAt))
	assert.Equal(t, []domain.Attendee{{Email: "a@acme.com", Name: "Ann"}}, got.Attendees)
	assert.Nil(t, got.SteeringVersion)
	assert.Nil(t, got.NotionPageID)
}

func TestClaimIsCompareAndSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMeetingRepository(openTestDB(t))

	m := newMeeting("evt-claim")
	_, err := repo.CreateIfAbsent(ctx, m)
	require.NoError(t, err)

	ok, err := repo.Claim(ctx, m.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Claim(ctx, m.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	got, err := repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnriching, got.Status)
	require.NotNil(t, got.SteeringVersion)
	assert.Equal(t, 3, *got.SteeringVersion)
}

func TestUpdateGuardsExpectedStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMeetingRepository(openTestDB(t))

	m := newMeeting("evt-update")
	_, err := repo.CreateIfAbsent(ctx, m)
	require.NoError(t, err)
	_, err = repo.Claim(ctx, m.ID, 1)
	require.NoError(t, err)

	m, err = repo.Get(ctx, m.ID)
	require.NoError(t, err)
	m.Insights = []domain.Insight{{Text: "Raised a round", Why: "budget", Priority: 1}}
	require.NoError(t, m.Advance(domain.StatusEnriched))
	require.NoError(t, repo.Update(ctx, m, domain.StatusEnriching))

	err = repo.Update(ctx, m, domain.StatusEnriching)
	assert.ErrorIs(t, err, domain.ErrStaleState)

	got, err := repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnriched, got.Status)
	assert.Equal(t, m.Insights, got.Insights)

	missing := &domain.Meeting{ID: 999, Status: domain.StatusDrafted}
	assert.ErrorIs(t, repo.Update(ctx, missing, domain.StatusEnriched), domain.ErrNotFound)
}

func TestRequeueStale(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewMeetingRepository(openTestDB(t))

	base := time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }

	stuck := newMeeting("evt-stuck")
	_, err := repo.CreateIfAbsent(ctx, stuck)
	require.NoError(t, err)
	_, err = repo.Claim(ctx, stuck.ID, 1)
	require.NoError(t, err)

	fresh := newMeeting("evt-fresh")
	_, err = repo.CreateIfAbsent(ctx, fresh)
	require.NoError(t, err)
	repo.now = func() time.Time { return base.Add(time.Hour) }
	_, err = repo.Claim(ctx, fresh.ID, 1)
	require.NoError(t, err)

	n, err := repo.RequeueStale(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	news, err := repo.ListByStatus(ctx, domain.StatusNew)
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Equal(t, "evt-stuck", news[0].CalendarEventID)
}

func TestSteeringAppendOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewSteeringRepository(openTestDB(t))

	_, err := repo.Current(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	now := time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)
	first, err := repo.Append(ctx, domain.DefaultSteeringProfile(now))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	_, err = repo.Append(ctx, domain.DefaultSteeringProfile(now))
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	second := first.Next(now.Add(time.Minute))
	second.AddRule(domain.SpecificityRule)
	_, err = repo.Append(ctx, second)
	require.NoError(t, err)

	current, err := repo.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)
	assert.Contains(t, current.SpecificityRules, domain.SpecificityRule)
	assert.Equal(t, first.KeyPains, current.KeyPains)
	assert.InDelta(t, 0.34, current.WeightNews, 1e-9)

	history, err := repo.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].Version)
	assert.Equal(t, 1, history[1].Version)
	assert.NotContains(t, history[1].SpecificityRules, domain.SpecificityRule)
}

func TestDialectFor(t *testing.T) {
	t.Parallel()

	d, err := dialectFor("postgresql")
	require.NoError(t, err)
	assert.Equal(t, "pgx", d.DriverName)

	_, err = dialectFor("oracle")
	assert.Error(t, err)
}
