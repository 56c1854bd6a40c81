package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MeetingPrep/internal/domain"
)

func TestPipelineEndToEnd(t *testing.T) {
	h := newHarness(t)

	result, err := h.pipeline.RunOnce(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, RunResult{NewMeetings: 1, Processed: 1}, result)

	m := h.onlyMeeting(t)
	assert.Equal(t, "evt1", m.CalendarEventID)
	assert.Equal(t, "acme.com", m.Company)
	assert.Equal(t, domain.StatusDrafted, m.Status)
	require.NotNil(t, m.ScheduledAt)
	assert.Equal(t, "2026-10-20T15:00:00Z", m.ScheduledAt.Format("2006-01-02T15:04:05Z07:00"))
	require.NotNil(t, m.SteeringVersion)
	assert.Equal(t, 1, *m.SteeringVersion)
	require.NotNil(t, m.NotionPageID)
	assert.Equal(t, "page-1", *m.NotionPageID)
	assert.Equal(t, []string{"draft-1", "draft-2"}, m.DraftIDs)
	assert.Nil(t, m.ErrorMessage)

	require.Len(t, m.Insights, 2)
	assert.Equal(t, 1, m.Insights[0].Priority)
	assert.Equal(t, 5, m.Insights[1].Priority)
	assert.Len(t, m.Hooks, 1)
	assert.Len(t, m.Competitors, 1)

	require.Len(t, h.notes.calls, 1)
	assert.Equal(t, "Enriched", h.notes.calls[0].Status)
	assert.Equal(t, []string{"jane@acme.com", "jane@acme.com"}, h.mail.recipients)
	assert.Equal(t, []string{"Ahead of our call", "Thanks for the time"}, h.mail.subjects)

	assert.Contains(t, h.runner.instructions, "- Weights: news=0.34, role_pains=0.33, competitors=0.33")
	assert.Contains(t, h.runner.payload, `"company":"acme.com"`)
	assert.Len(t, h.search.queries, 3)

	again, err := h.pipeline.RunOnce(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, RunResult{}, again)
	assert.Equal(t, 1, h.runner.calls)
}

func TestPipelineSynthesisFailureMarksError(t *testing.T) {
	h := newHarness(t)
	h.runner.err = errors.New("upstream 500")

	result, err := h.pipeline.RunOnce(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	m := h.onlyMeeting(t)
	assert.Equal(t, domain.StatusError, m.Status)
	require.NotNil(t, m.ErrorMessage)
	assert.Equal(t, "Unexpected error: upstream 500", *m.ErrorMessage)
	assert.Empty(t, m.Insights)
	assert.Empty(t, m.Hooks)
	assert.Empty(t, m.Competitors)
	assert.Empty(t, m.DraftIDs)
	assert.Empty(t, h.notes.calls)
	assert.Empty(t, h.mail.recipients)
}

func TestPipelinePublicationFailuresAreTolerated(t *testing.T) {
	h := newHarness(t)
	h.notes.err = errors.New("notion down")
	h.mail.err = errors.New("gmail down")

	_, err := h.pipeline.RunOnce(context.Background(), true)
	require.NoError(t, err)

	m := h.onlyMeeting(t)
	assert.Equal(t, domain.StatusDrafted, m.Status)
	assert.Nil(t, m.NotionPageID)
	assert.Empty(t, m.DraftIDs)
	assert.NotEmpty(t, m.Insights)
}

func TestPipelineCalendarOutageYieldsNothingNew(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline.RunOnce(context.Background(), true)
	require.NoError(t, err)

	m := h.onlyMeeting(t)
	_, err = h.service.SubmitFeedback(context.Background(), m.ID, 1, nil)
	require.NoError(t, err)

	h.calendar.err = errors.New("composio unavailable")
	result, err := h.pipeline.RunOnce(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, RunResult{}, result)
}

func TestPipelineIngestStoreFailureStillDrainsBacklog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	backlog := MeetingFromEvent(domain.CalendarEvent{
		ID:        "evt0",
		Title:     "Follow-up with Beta",
		Attendees: []domain.Attendee{{Email: "sam@beta.io"}},
	})
	_, err := h.meetings.CreateIfAbsent(ctx, backlog)
	require.NoError(t, err)

	h.pipeline.ingest = NewCalendarIngest(h.calendar, failingInserts{
		MeetingRepository: h.meetings,
		err:               errors.New("disk I/O error"),
	}, 25, discardLogger)

	result, err := h.pipeline.RunOnce(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, RunResult{NewMeetings: 0, Processed: 1}, result)

	m := h.onlyMeeting(t)
	assert.Equal(t, "evt0", m.CalendarEventID)
	assert.Equal(t, domain.StatusDrafted, m.Status)
}

func TestRerunRecoversErroredMeeting(t *testing.T) {
	h := newHarness(t)
	h.runner.err = errors.New("timeout")
	_, err := h.pipeline.RunOnce(context.Background(), true)
	require.NoError(t, err)

	m := h.onlyMeeting(t)
	require.Equal(t, domain.StatusError, m.Status)

	h.runner.err = nil
	rerun, err := h.service.Rerun(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDrafted, rerun.Status)
	assert.Nil(t, rerun.ErrorMessage)
	assert.Equal(t, 1, h.calendar.calls)
}

func TestRerunSynthesisFailureClearsArtifacts(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline.RunOnce(context.Background(), true)
	require.NoError(t, err)

	m := h.onlyMeeting(t)
	require.Equal(t, domain.StatusDrafted, m.Status)
	require.NotEmpty(t, m.Insights)

	h.runner.err = errors.New("upstream 500")
	rerun, err := h.service.Rerun(context.Background(), m.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusError, rerun.Status)
	require.NotNil(t, rerun.ErrorMessage)
	assert.Contains(t, *rerun.ErrorMessage, "upstream 500")
	assert.Empty(t, rerun.Insights)
	assert.Empty(t, rerun.Hooks)
	assert.Empty(t, rerun.Competitors)
	assert.Empty(t, rerun.DraftIDs)
	require.NotNil(t, rerun.NotionPageID)
	assert.Equal(t, "page-1", *rerun.NotionPageID)
}

func TestRerunMissingMeeting(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.Rerun(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
