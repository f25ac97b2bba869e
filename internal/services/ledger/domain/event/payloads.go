package event

// MeetingCreatedPayload announces a meeting; the aggregate id is the meeting id.
type MeetingCreatedPayload struct {
	Title            string `json:"title"`
	MeetingDate      string `json:"meeting_date"`
	ParticipantCount int    `json:"participant_count"`
}

// TranscriptParsedPayload carries transcript metadata only; utterances are
// ingested through a separate path.
type TranscriptParsedPayload struct {
	UtteranceCount  int     `json:"utterance_count"`
	SpeakerCount    int     `json:"speaker_count"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type ActionItemExtractedPayload struct {
	MeetingID    string  `json:"meeting_id"`
	ActionItemID string  `json:"action_item_id"`
	Description  string  `json:"description"`
	AssigneeName string  `json:"assignee_name,omitempty"`
	DueDate      string  `json:"due_date,omitempty"`
	Confidence   float64 `json:"confidence"`
}

type DecisionExtractedPayload struct {
	MeetingID   string  `json:"meeting_id"`
	DecisionID  string  `json:"decision_id"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

type RiskExtractedPayload struct {
	MeetingID   string  `json:"meeting_id"`
	RiskID      string  `json:"risk_id"`
	Description string  `json:"description"`
	Severity    string  `json:"severity"`
	Confidence  float64 `json:"confidence"`
}

type IssueExtractedPayload struct {
	MeetingID   string  `json:"meeting_id"`
	IssueID     string  `json:"issue_id"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Confidence  float64 `json:"confidence"`
}

// RaidItemStatusChangedPayload records an explicit status change (for example
// closing an item) so it survives a projection rebuild.
type RaidItemStatusChangedPayload struct {
	ItemID string `json:"item_id"`
	Status string `json:"status"`
}
