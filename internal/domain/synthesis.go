package domain

// EmailDraft is a plaintext email proposal.
type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SynthesisResult is produced by the synthesis stage. A non-nil Error marks
// a soft failure; the lists are then empty and the drafts are placeholders.
type SynthesisResult struct {
	Insights        []Insight        `json:"insights"`
	Hooks           []Hook           `json:"hooks"`
	Competitors     []CompetitorNote `json:"competitors"`
	PreMeetingDraft EmailDraft       `json:"pre_meeting_draft"`
	FollowUpDraft   EmailDraft       `json:"follow_up_draft"`
	Error           *string          `json:"error,omitempty"`
}

// Failed reports whether synthesis soft-failed.
func (r SynthesisResult) Failed() bool {
	return r.Error != nil
}

// FallbackSynthesis is the placeholder returned whenever synthesis cannot run.
func FallbackSynthesis(reason string) SynthesisResult {
	return SynthesisResult{
		Insights:    []Insight{},
		Hooks:       []Hook{},
		Competitors: []CompetitorNote{},
		PreMeetingDraft: EmailDraft{
			Subject: "(placeholder) Pre-meeting note",
			Body:    "(placeholder) Synthesis is not configured yet.",
		},
		FollowUpDraft: EmailDraft{
			Subject: "(placeholder) Follow-up",
			Body:    "(placeholder) Synthesis is not configured yet.",
		},
		Error: &reason,
	}
}

// MeetingContext is the meeting-level grounding handed to synthesis.
type MeetingContext struct {
	Title     string     `json:"title"`
	Company   string     `json:"company"`
	Role      string     `json:"role"`
	Attendees []Attendee `json:"attendees"`
}
