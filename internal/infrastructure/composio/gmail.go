package composio

import (
	"context"
	"encoding/json"
	"fmt"

	"MeetingPrep/internal/ports"
)

const gmailDraftSlug = "GMAIL_CREATE_EMAIL_DRAFT"

// Mail creates Gmail drafts through Composio.
type Mail struct {
	client *Client
}

var _ ports.MailDrafter = (*Mail)(nil)

// NewMail returns a draft sink backed by the Gmail toolkit.
func NewMail(client *Client) *Mail {
	return &Mail{client: client}
}

// CreateDraft returns the draft id; it may be empty when the gateway omits it.
func (m *Mail) CreateDraft(ctx context.Context, recipient, subject, body string) (string, error) {
	data, err := m.client.Execute(ctx, gmailDraftSlug, map[string]any{
		"recipient_email": recipient,
		"subject":         subject,
		"body":            body,
	})
	if err != nil {
		return "", err
	}

	var draft struct {
		ID           string `json:"id"`
		ResponseData struct {
			ID string `json:"id"`
		} `json:"response_data"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &draft); err != nil {
			return "", fmt.Errorf("decode gmail draft: %w", err)
		}
	}
	if draft.ID != "" {
		return draft.ID, nil
	}
	return draft.ResponseData.ID, nil
}
