package composio

import (
	"context"
	"encoding/json"
	"fmt"

	"MeetingPrep/internal/ports"
)

const (
	notionInsertSlug = "NOTION_INSERT_ROW_DATABASE"
	notionUpdateSlug = "NOTION_UPDATE_ROW_DATABASE"
)

// Notes mirrors meetings into a Notion database through Composio.
type Notes struct {
	client     *Client
	databaseID string
}

var _ ports.NotesStore = (*Notes)(nil)

// NewNotes binds the notes adapter to one Notion database.
func NewNotes(client *Client, databaseID string) *Notes {
	return &Notes{client: client, databaseID: databaseID}
}

// UpsertRow updates existingPageID when set, otherwise inserts a new row.
// The returned id falls back to existingPageID when the gateway omits it.
func (n *Notes) UpsertRow(ctx context.Context, fields ports.NoteFields, existingPageID string) (string, error) {
	if n.databaseID == "" {
		return "", fmt.Errorf("notion database id: %w", ErrNotConfigured)
	}

	status := fields.Status
	if status == "" {
		status = "Drafted"
	}
	args := map[string]any{
		"database_id": n.databaseID,
		"properties": map[string]any{
			"Title":   map[string]any{"title": richText(fields.Title)},
			"Company": map[string]any{"rich_text": richText(fields.Company)},
			"Role":    map[string]any{"rich_text": richText(fields.Role)},
			"Status":  map[string]any{"select": map[string]string{"name": status}},
		},
	}

	slug := notionInsertSlug
	if existingPageID != "" {
		slug = notionUpdateSlug
		args["page_id"] = existingPageID
	}

	data, err := n.client.Execute(ctx, slug, args)
	if err != nil {
		return "", err
	}

	var page struct {
		ID string `json:"id"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &page); err != nil {
			return "", fmt.Errorf("decode notion page: %w", err)
		}
	}
	if page.ID == "" {
		return existingPageID, nil
	}
	return page.ID, nil
}

func richText(content string) []map[string]any {
	return []map[string]any{{"text": map[string]string{"content": content}}}
}
