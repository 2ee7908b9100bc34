package model

import "time"

// ClaimStatus represents the lifecycle state of a warranty claim. Intake only
// ever writes StatusIntake; everything after that belongs to the claims
// management subsystem.
type ClaimStatus string

const (
	ClaimStatusIntake     ClaimStatus = "intake"
	ClaimStatusInReview   ClaimStatus = "in_review"
	ClaimStatusScheduled  ClaimStatus = "scheduled"
	ClaimStatusClosed     ClaimStatus = "closed"
)

// OpenStatuses are the claim states that count as in-flight for the purposes
// of the dedup window.
func OpenStatuses() []string {
	return []string{
		string(ClaimStatusIntake),
		string(ClaimStatusInReview),
		string(ClaimStatusScheduled),
	}
}

// Claim is a warranty claim created at intake time. ClaimNumber is sequential
// within a single homeowner and assigned atomically at the store layer.
type Claim struct {
	ID           string      `json:"id"`
	HomeownerID  string      `json:"homeowner_id"`
	ClaimNumber  int64       `json:"claim_number"`
	Status       ClaimStatus `json:"status"`
	Description  string      `json:"description,omitempty"`
	IsUrgent     bool        `json:"is_urgent"`
	SourceCallID string      `json:"source_call_id"`
	CreatedAt    time.Time   `json:"created_at"`
}
