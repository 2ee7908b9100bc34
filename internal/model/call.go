package model

import "time"

// CallIntent classifies why the caller rang, as reported by the voice
// assistant's structured output.
type CallIntent string

const (
	IntentWarrantyIssue   CallIntent = "warranty_issue"
	IntentGeneralQuestion CallIntent = "general_question"
	IntentSolicitation    CallIntent = "solicitation"
)

// ParseIntent maps a raw structured-output value onto a known intent.
// Unknown values default to general_question so a schema drift upstream
// never drops a call on the floor.
func ParseIntent(raw string) CallIntent {
	switch CallIntent(raw) {
	case IntentWarrantyIssue, IntentGeneralQuestion, IntentSolicitation:
		return CallIntent(raw)
	default:
		return IntentGeneralQuestion
	}
}

// ExtractedFields holds the structured data pulled from an end-of-call report.
// Any field may be empty; extraction never fails a call.
type ExtractedFields struct {
	PropertyAddress  string     `json:"property_address,omitempty"`
	HomeownerName    string     `json:"homeowner_name,omitempty"`
	PhoneNumber      string     `json:"phone_number,omitempty"`
	IssueDescription string     `json:"issue_description,omitempty"`
	Intent           CallIntent `json:"intent"`
	IsUrgent         bool       `json:"is_urgent"`
}

// CallRecord is the persisted outcome of one inbound call. Exactly one row
// exists per ExternalCallID regardless of how many webhook deliveries arrive.
type CallRecord struct {
	ID                  string          `json:"id"`
	ExternalCallID      string          `json:"external_call_id"`
	CallerPhone         string          `json:"caller_phone"`
	Extracted           ExtractedFields `json:"extracted"`
	ResolvedHomeownerID string          `json:"resolved_homeowner_id,omitempty"`
	ClaimID             string          `json:"claim_id,omitempty"`
	Similarity          float64         `json:"similarity,omitempty"`
	IsVerified          bool            `json:"is_verified"`
	IsUrgent            bool            `json:"is_urgent"`
	Transcript          string          `json:"transcript,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// CallFilter specifies criteria for listing call records.
type CallFilter struct {
	Verified *bool  `json:"verified,omitempty"`
	Intent   string `json:"intent,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
