package model

import "time"

// Contact is an allowlist entry populated by the external contact-sync
// process. Lookup is exact-match on the E.164 number, never fuzzy.
type Contact struct {
	PhoneE164   string    `json:"phone_e164"`
	OwnerID     string    `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	SyncedAt    time.Time `json:"synced_at"`
}

// Homeowner is a read-only projection of the CRM homeowner record, carrying
// just what address resolution and notification need.
type Homeowner struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Address        string    `json:"address"`
	City           string    `json:"city,omitempty"`
	State          string    `json:"state,omitempty"`
	ZipCode        string    `json:"zip_code,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at"`
}
