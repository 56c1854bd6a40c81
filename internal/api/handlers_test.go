package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/usecase"
)

type fakeMeetings struct {
	meetings map[int64]*domain.Meeting
	reruns   []int64
	feedback []int
}

func (f *fakeMeetings) List(context.Context) ([]*domain.Meeting, error) {
	out := make([]*domain.Meeting, 0, len(f.meetings))
	for _, m := range f.meetings {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMeetings) Get(_ context.Context, id int64) (*domain.Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return nil, fmt.Errorf("meeting %d: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

func (f *fakeMeetings) Rerun(ctx context.Context, id int64) (*domain.Meeting, error) {
	f.reruns = append(f.reruns, id)
	return f.Get(ctx, id)
}

func (f *fakeMeetings) SubmitFeedback(ctx context.Context, id int64, score int, notes *string) (*domain.Meeting, error) {
	if score != 0 && score != 1 {
		return nil, domain.ErrInvalidFeedback
	}
	m, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.Advance(domain.StatusFeedbackGiven); err != nil {
		return nil, err
	}
	f.feedback = append(f.feedback, score)
	m.FeedbackScore = &score
	m.FeedbackNotes = notes
	return m, nil
}

type fakeSteering struct {
	profile domain.SteeringProfile
	history []*domain.SteeringProfile
}

func (f *fakeSteering) Current(context.Context) (domain.SteeringProfile, error) {
	return f.profile, nil
}

func (f *fakeSteering) Update(_ context.Context, patch domain.SteeringPatch) (domain.SteeringProfile, error) {
	next := patch.Apply(f.profile, time.Now())
	f.history = append([]*domain.SteeringProfile{&next}, f.history...)
	f.profile = next
	return next, nil
}

func (f *fakeSteering) History(context.Context) ([]*domain.SteeringProfile, error) {
	return f.history, nil
}

type fakeTrigger struct {
	result usecase.RunResult
	err    error
	polls  []bool
}

func (f *fakeTrigger) RunOnce(_ context.Context, poll bool) (usecase.RunResult, error) {
	f.polls = append(f.polls, poll)
	return f.result, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type testAPI struct {
	server   *httptest.Server
	meetings *fakeMeetings
	steering *fakeSteering
	trigger  *fakeTrigger
}

func newTestAPI(t *testing.T, store Pinger) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	at := time.Date(2026, time.October, 20, 15, 0, 0, 0, time.UTC)

	api := &testAPI{
		meetings: &fakeMeetings{meetings: map[int64]*domain.Meeting{
			1: {ID: 1, CalendarEventID: "evt1", Title: "Intro", ScheduledAt: &at, Company: "acme.com", Role: "Unknown", Status: domain.StatusDrafted},
			2: {ID: 2, CalendarEventID: "evt2", Title: "Sync", Status: domain.StatusNew},
		}},
		steering: &fakeSteering{profile: domain.DefaultSteeringProfile(at)},
		trigger:  &fakeTrigger{result: usecase.RunResult{NewMeetings: 2, Processed: 1}},
	}
	handlers := NewHandlers(api.meetings, api.steering, api.trigger, store, logger)
	api.server = httptest.NewServer(NewRouter(handlers, logger))
	t.Cleanup(api.server.Close)
	return api
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, fakePinger{})
	resp, body := api.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","version":"0.1.0"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	down := newTestAPI(t, fakePinger{err: errors.New("db gone")})
	resp, _ = down.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetMeeting(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, body := api.do(t, http.MethodGet, "/meetings/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "evt1", got["calendar_event_id"])
	assert.Equal(t, "2026-10-20T15:00:00Z", got["datetime_utc"])
	assert.Equal(t, []any{}, got["insights"])
	assert.Nil(t, got["notion_page_id"])

	resp, _ = api.do(t, http.MethodGet, "/meetings/99", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = api.do(t, http.MethodGet, "/meetings/abc", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListMeetings(t *testing.T) {
	api := newTestAPI(t, nil)
	resp, body := api.do(t, http.MethodGet, "/meetings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []MeetingListItem
	require.NoError(t, json.Unmarshal(body, &items))
	assert.Len(t, items, 2)
}

func TestFeedbackEndpoint(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, _ := api.do(t, http.MethodPost, "/meetings/1/feedback", `{"score": 3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPost, "/meetings/1/feedback", `{"notes": "x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPost, "/meetings/2/feedback", `{"score": 1}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body := api.do(t, http.MethodPost, "/meetings/1/feedback", `{"score": 0, "notes": "too generic"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got domain.Meeting
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, domain.StatusFeedbackGiven, got.Status)
	assert.Equal(t, []int{0}, api.meetings.feedback)
}

func TestRunMeetingEndpoint(t *testing.T) {
	api := newTestAPI(t, nil)
	resp, _ := api.do(t, http.MethodPost, "/meetings/2/run", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{2}, api.meetings.reruns)
}

func TestSteeringEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, body := api.do(t, http.MethodGet, "/steering", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"version":1`)

	resp, body = api.do(t, http.MethodPut, "/steering", `{"icp": "Seed-stage CTOs", "weight_news": 2, "weight_role_pains": 1, "weight_competitors": 1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated domain.SteeringProfile
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Seed-stage CTOs", updated.ICP)
	assert.InDelta(t, 0.5, updated.WeightNews, 1e-9)

	resp, _ = api.do(t, http.MethodPut, "/steering", `{"unknown": true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = api.do(t, http.MethodGet, "/steering/versions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []domain.SteeringProfile
	require.NoError(t, json.Unmarshal(body, &history))
	assert.Len(t, history, 1)
}

func TestTriggerPoll(t *testing.T) {
	api := newTestAPI(t, nil)
	resp, body := api.do(t, http.MethodPost, "/trigger-poll", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"new_meetings":2,"processed_meetings":1}`, string(body))
	assert.Equal(t, []bool{true}, api.trigger.polls)

	api.trigger.err = errors.New("database is locked")
	resp, body = api.do(t, http.MethodPost, "/trigger-poll", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, string(body), "locked")
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
