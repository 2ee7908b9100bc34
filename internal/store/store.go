// Package store persists call records, claims, and the caller allowlist.
package store

import (
	"context"
	"time"

	"github.com/sells-group/warranty-intake/internal/model"
)

// Store defines the persistence interface for the intake pipeline.
//
// Concurrency-sensitive operations (call-record upsert, claim numbering) are
// enforced at the database layer: handlers are stateless and may run in
// parallel for the same caller.
type Store interface {
	// Allowlist (read-only; populated by the external contact sync)
	ContactByPhone(ctx context.Context, phoneE164 string) (*model.Contact, error)

	// Call records
	UpsertCallRecord(ctx context.Context, rec *model.CallRecord) (*model.CallRecord, error)
	AttachResolution(ctx context.Context, externalCallID, homeownerID string, similarity float64, verified bool) error
	AttachClaim(ctx context.Context, externalCallID, claimID string) error
	ListCallRecords(ctx context.Context, filter model.CallFilter) ([]model.CallRecord, error)

	// Homeowners (read-only projection)
	HomeownerCandidates(ctx context.Context, hint string) ([]model.Homeowner, error)

	// Claims
	OpenClaimSince(ctx context.Context, homeownerID string, since time.Time) (*model.Claim, error)
	NextClaimNumber(ctx context.Context, homeownerID string) (int64, error)
	CreateClaim(ctx context.Context, claim *model.Claim) (*model.Claim, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
