package usecase

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

// Publication is what the publish step managed to create.
type Publication struct {
	NotionPageID string
	DraftIDs     []string
}

// Publisher mirrors a synthesized meeting into the notes store and mail drafts.
// Every failure is logged and tolerated.
type Publisher struct {
	notes  ports.NotesStore
	mail   ports.MailDrafter
	logger *slog.Logger
}

// NewPublisher wires the publish step; either collaborator may be nil.
func NewPublisher(notes ports.NotesStore, mail ports.MailDrafter, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{notes: notes, mail: mail, logger: logger.With("component", "publication")}
}

// Publish upserts the notes row, then creates the pre-meeting and follow-up drafts
// for the first attendee. The existing page id is kept when the upsert fails.
func (p *Publisher) Publish(ctx context.Context, m *domain.Meeting, synthesis domain.SynthesisResult) Publication {
	ctx, span := tracer.Start(ctx, "publication.publish")
	defer span.End()

	out := Publication{DraftIDs: []string{}}
	if m.NotionPageID != nil {
		out.NotionPageID = *m.NotionPageID
	}

	if p.notes != nil {
		pageID, err := p.notes.UpsertRow(ctx, ports.NoteFields{
			Title:   m.Title,
			Company: m.Company,
			Role:    m.Role,
			Status:  string(m.Status),
		}, out.NotionPageID)
		switch {
		case err != nil:
			p.logger.Warn("notes upsert failed", "meeting_id", m.ID, "error", err)
		case pageID != "":
			out.NotionPageID = pageID
		}
	}

	recipient := m.PrimaryEmail()
	if p.mail == nil || recipient == "" {
		p.logger.Info("skipping drafts", "meeting_id", m.ID, "has_recipient", recipient != "")
		return out
	}

	for _, draft := range []domain.EmailDraft{synthesis.PreMeetingDraft, synthesis.FollowUpDraft} {
		id, err := p.mail.CreateDraft(ctx, recipient, draft.Subject, draft.Body)
		if err != nil {
			p.logger.Warn("draft creation failed", "meeting_id", m.ID, "subject", draft.Subject, "error", err)
			continue
		}
		if id != "" {
			out.DraftIDs = append(out.DraftIDs, id)
		}
	}

	span.SetAttributes(attribute.Int("publication.drafts", len(out.DraftIDs)))
	return out
}
