package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

var meetingColumns = []string{
	"id", "calendar_event_id", "title", "scheduled_at", "attendees", "company", "role", "status",
	"insights", "hooks", "competitors", "draft_ids", "notion_page_id", "feedback_score",
	"feedback_notes", "steering_version", "error_message", "created_at", "updated_at",
}

// MeetingRepository persists meetings in a relational store.
type MeetingRepository struct {
	db  *DB
	now func() time.Time
}

var _ ports.MeetingRepository = (*MeetingRepository)(nil)

// NewMeetingRepository wires the repository to an open database.
func NewMeetingRepository(db *DB) *MeetingRepository {
	return &MeetingRepository{db: db, now: time.Now}
}

// CreateIfAbsent inserts m unless a meeting with the same calendar event id exists.
// On insert m.ID and timestamps are filled in.
func (r *MeetingRepository) CreateIfAbsent(ctx context.Context, m *domain.Meeting) (bool, error) {
	now := r.now().UTC()
	attendees, err := encodeJSON(m.Attendees)
	if err != nil {
		return false, err
	}

	query, args, err := r.db.sb.Insert("meetings").
		Columns("calendar_event_id", "title", "scheduled_at", "attendees", "company", "role", "status", "created_at", "updated_at").
		Values(m.CalendarEventID, m.Title, nullableTime(m.ScheduledAt), attendees, m.Company, m.Role, string(m.Status), now.UnixMilli(), now.UnixMilli()).
		Suffix("ON CONFLICT (calendar_event_id) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert meeting: %w", err)
	}

	var id int64
	err = r.db.conn.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert meeting %s: %w", m.CalendarEventID, err)
	}

	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return true, nil
}

// Get loads a meeting by internal id.
func (r *MeetingRepository) Get(ctx context.Context, id int64) (*domain.Meeting, error) {
	query, args, err := r.db.sb.Select(meetingColumns...).From("meetings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select meeting: %w", err)
	}

	m, err := scanMeeting(r.db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meeting %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select meeting %d: %w", id, err)
	}
	return m, nil
}

// List returns all meetings, latest scheduled first and unscheduled at the end.
func (r *MeetingRepository) List(ctx context.Context) ([]*domain.Meeting, error) {
	return r.query(ctx, r.db.sb.Select(meetingColumns...).From("meetings").
		OrderBy("scheduled_at IS NULL", "scheduled_at DESC", "id DESC"))
}

// ListByStatus returns meetings at status in insertion order.
func (r *MeetingRepository) ListByStatus(ctx context.Context, status domain.MeetingStatus) ([]*domain.Meeting, error) {
	return r.query(ctx, r.db.sb.Select(meetingColumns...).From("meetings").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("id ASC"))
}

// Claim atomically moves a New meeting to Enriching and stamps the steering version.
// It returns false when another writer moved the meeting first.
func (r *MeetingRepository) Claim(ctx context.Context, id int64, steeringVersion int) (bool, error) {
	query, args, err := r.db.sb.Update("meetings").
		Set("status", string(domain.StatusEnriching)).
		Set("steering_version", steeringVersion).
		Set("updated_at", r.now().UTC().UnixMilli()).
		Where(sq.Eq{"id": id, "status": string(domain.StatusNew)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim: %w", err)
	}

	res, err := r.db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim meeting %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim meeting %d: %w", id, err)
	}
	return affected == 1, nil
}

// Update writes every mutable field of m provided the stored status is still expected.
func (r *MeetingRepository) Update(ctx context.Context, m *domain.Meeting, expected domain.MeetingStatus) error {
	now := r.now().UTC()
	fields, err := mutableFields(m)
	if err != nil {
		return err
	}
	fields["updated_at"] = now.UnixMilli()

	query, args, err := r.db.sb.Update("meetings").
		SetMap(fields).
		Where(sq.Eq{"id": m.ID, "status": string(expected)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update meeting: %w", err)
	}

	res, err := r.db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update meeting %d: %w", m.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update meeting %d: %w", m.ID, err)
	}
	if affected == 0 {
		if _, getErr := r.Get(ctx, m.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("meeting %d not at %s: %w", m.ID, expected, domain.ErrStaleState)
	}

	m.UpdatedAt = now
	return nil
}

// RequeueStale moves meetings stuck in an in-progress status since before back to New.
func (r *MeetingRepository) RequeueStale(ctx context.Context, before time.Time) (int, error) {
	query, args, err := r.db.sb.Update("meetings").
		Set("status", string(domain.StatusNew)).
		Set("updated_at", r.now().UTC().UnixMilli()).
		Where(sq.Eq{"status": []string{string(domain.StatusEnriching), string(domain.StatusEnriched)}}).
		Where(sq.Lt{"updated_at": before.UTC().UnixMilli()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build requeue: %w", err)
	}

	res, err := r.db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("requeue stale meetings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue stale meetings: %w", err)
	}
	return int(affected), nil
}

func (r *MeetingRepository) query(ctx context.Context, builder sq.SelectBuilder) ([]*domain.Meeting, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select meetings: %w", err)
	}

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query meetings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*domain.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*domain.Meeting, error) {
	var (
		m                                   domain.Meeting
		status                              string
		scheduledAt                         sql.NullInt64
		attendees, insights, hooks, comps   string
		draftIDs                            string
		pageID, feedbackNotes, errorMessage sql.NullString
		feedbackScore, steeringVersion      sql.NullInt64
		createdAt, updatedAt                int64
	)

	err := row.Scan(
		&m.ID, &m.CalendarEventID, &m.Title, &scheduledAt, &attendees, &m.Company, &m.Role, &status,
		&insights, &hooks, &comps, &draftIDs, &pageID, &feedbackScore,
		&feedbackNotes, &steeringVersion, &errorMessage, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Status = domain.MeetingStatus(status)
	m.CreatedAt = time.UnixMilli(createdAt).UTC()
	m.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if scheduledAt.Valid {
		t := time.UnixMilli(scheduledAt.Int64).UTC()
		m.ScheduledAt = &t
	}
	m.NotionPageID = stringPtr(pageID)
	m.FeedbackNotes = stringPtr(feedbackNotes)
	m.ErrorMessage = stringPtr(errorMessage)
	m.FeedbackScore = intPtr(feedbackScore)
	m.SteeringVersion = intPtr(steeringVersion)

	for _, col := range []struct {
		raw  string
		dest any
	}{
		{attendees, &m.Attendees},
		{insights, &m.Insights},
		{hooks, &m.Hooks},
		{comps, &m.Competitors},
		{draftIDs, &m.DraftIDs},
	} {
		if err := decodeJSON(col.raw, col.dest); err != nil {
			return nil, err
		}
	}

	return &m, nil
}

func mutableFields(m *domain.Meeting) (map[string]any, error) {
	fields := map[string]any{
		"title":            m.Title,
		"scheduled_at":     nullableTime(m.ScheduledAt),
		"company":          m.Company,
		"role":             m.Role,
		"status":           string(m.Status),
		"notion_page_id":   nullableString(m.NotionPageID),
		"feedback_score":   nullableInt(m.FeedbackScore),
		"feedback_notes":   nullableString(m.FeedbackNotes),
		"steering_version": nullableInt(m.SteeringVersion),
		"error_message":    nullableString(m.ErrorMessage),
	}

	for col, v := range map[string]any{
		"attendees":   m.Attendees,
		"insights":    m.Insights,
		"hooks":       m.Hooks,
		"competitors": m.Competitors,
		"draft_ids":   m.DraftIDs,
	} {
		encoded, err := encodeJSON(v)
		if err != nil {
			return nil, err
		}
		fields[col] = encoded
	}

	return fields, nil
}

func encodeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	if string(raw) == "null" {
		return "[]", nil
	}
	return string(raw), nil
}

func decodeJSON(raw string, dest any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return int64(*i)
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
