package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/usecase"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// MeetingService is the meeting surface the handlers need.
type MeetingService interface {
	List(ctx context.Context) ([]*domain.Meeting, error)
	Get(ctx context.Context, id int64) (*domain.Meeting, error)
	Rerun(ctx context.Context, id int64) (*domain.Meeting, error)
	SubmitFeedback(ctx context.Context, id int64, score int, notes *string) (*domain.Meeting, error)
}

// SteeringService is the steering surface the handlers need.
type SteeringService interface {
	Current(ctx context.Context) (domain.SteeringProfile, error)
	Update(ctx context.Context, patch domain.SteeringPatch) (domain.SteeringProfile, error)
	History(ctx context.Context) ([]*domain.SteeringProfile, error)
}

// Trigger runs the poll-and-process path.
type Trigger interface {
	RunOnce(ctx context.Context, poll bool) (usecase.RunResult, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers serves the HTTP API.
type Handlers struct {
	meetings MeetingService
	steering SteeringService
	trigger  Trigger
	store    Pinger
	logger   *slog.Logger
}

// NewHandlers wires the handlers; store may be nil.
func NewHandlers(meetings MeetingService, steering SteeringService, trigger Trigger, store Pinger, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{meetings: meetings, steering: steering, trigger: trigger, store: store, logger: logger.With("component", "api")}
}

// MeetingListItem is the summary row returned by GET /meetings.
type MeetingListItem struct {
	ID          int64                `json:"id"`
	Title       string               `json:"title"`
	ScheduledAt *time.Time           `json:"datetime_utc"`
	Company     string               `json:"company"`
	Role        string               `json:"role"`
	Status      domain.MeetingStatus `json:"status"`
}

// FeedbackRequest is the body of POST /meetings/{id}/feedback.
type FeedbackRequest struct {
	Score *int    `json:"score"`
	Notes *string `json:"notes"`
}

// Health reports service and database liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "version": Version})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
}

// ListMeetings returns a summary of every meeting.
func (h *Handlers) ListMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := h.meetings.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items := make([]MeetingListItem, 0, len(meetings))
	for _, m := range meetings {
		items = append(items, MeetingListItem{
			ID:          m.ID,
			Title:       m.Title,
			ScheduledAt: m.ScheduledAt,
			Company:     m.Company,
			Role:        m.Role,
			Status:      m.Status,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// GetMeeting returns one meeting with its artifacts.
func (h *Handlers) GetMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := meetingID(w, r)
	if !ok {
		return
	}
	m, err := h.meetings.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withEmptyLists(m))
}

// RunMeeting resets a meeting and runs the pipeline without polling.
func (h *Handlers) RunMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := meetingID(w, r)
	if !ok {
		return
	}
	m, err := h.meetings.Rerun(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withEmptyLists(m))
}

// SubmitFeedback records a score on a drafted meeting.
func (h *Handlers) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := meetingID(w, r)
	if !ok {
		return
	}

	var req FeedbackRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Score == nil {
		writeError(w, http.StatusBadRequest, "score is required")
		return
	}

	m, err := h.meetings.SubmitFeedback(r.Context(), id, *req.Score, req.Notes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withEmptyLists(m))
}

// GetSteering returns the current steering profile.
func (h *Handlers) GetSteering(w http.ResponseWriter, r *http.Request) {
	profile, err := h.steering.Current(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateSteering applies a partial edit as a new profile version.
func (h *Handlers) UpdateSteering(w http.ResponseWriter, r *http.Request) {
	var patch domain.SteeringPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := h.steering.Update(r.Context(), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// SteeringVersions lists every stored profile version.
func (h *Handlers) SteeringVersions(w http.ResponseWriter, r *http.Request) {
	history, err := h.steering.History(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if history == nil {
		history = []*domain.SteeringProfile{}
	}
	writeJSON(w, http.StatusOK, history)
}

// TriggerPoll polls the calendar and processes pending meetings.
func (h *Handlers) TriggerPoll(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("trigger-poll requested", "request_id", RequestIDFrom(r.Context()))
	result, err := h.trigger.RunOnce(r.Context(), true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "request_id", RequestIDFrom(r.Context()), "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	if errors.Is(err, domain.ErrNotFound) {
		message = "Meeting not found"
	}
	writeError(w, status, message)
}

func meetingID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid meeting id")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func withEmptyLists(m *domain.Meeting) *domain.Meeting {
	out := *m
	if out.Attendees == nil {
		out.Attendees = []domain.Attendee{}
	}
	if out.Insights == nil {
		out.Insights = []domain.Insight{}
	}
	if out.Hooks == nil {
		out.Hooks = []domain.Hook{}
	}
	if out.Competitors == nil {
		out.Competitors = []domain.CompetitorNote{}
	}
	if out.DraftIDs == nil {
		out.DraftIDs = []string{}
	}
	return &out
}
