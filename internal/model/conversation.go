package model

import "time"

// ProcessingStatus represents the state of a conversation's async analysis.
type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "PENDING"
	ProcessingStatusProcessing ProcessingStatus = "PROCESSING"
	ProcessingStatusCompleted  ProcessingStatus = "COMPLETED"
	ProcessingStatusFailed     ProcessingStatus = "FAILED"
)

// Terminal reports whether the status accepts no further transitions
// through the callback pipeline.
func (s ProcessingStatus) Terminal() bool {
	return s == ProcessingStatusCompleted || s == ProcessingStatusFailed
}

// Conversation is a single recorded sales interaction, scoped to one tenant.
type Conversation struct {
	ID               string           `json:"id"`
	TenantID         string           `json:"tenant_id"`
	UserID           string           `json:"user_id"`
	DealID           *string          `json:"deal_id,omitempty"`
	ContactID        *string          `json:"contact_id,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	ErrorReason      *string          `json:"error_reason,omitempty"`
	Transcription    string           `json:"transcription"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Insight holds the AI analysis attached one-to-one to a conversation.
// Repeated callbacks fully replace the row; lists default to empty, never nil
// in the store.
type Insight struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	Interests       []string  `json:"interests"`
	Objections      []string  `json:"objections"`
	Commitments     []string  `json:"commitments"`
	ProgressSignals []string  `json:"progress_signals"`
	RiskSignals     []string  `json:"risk_signals"`
	NextActions     []string  `json:"next_actions"`
	Summary         string    `json:"summary"`
	ExtractedData   []byte    `json:"extracted_data,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
