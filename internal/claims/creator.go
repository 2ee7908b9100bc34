// Package claims decides whether a resolved call becomes a new warranty claim.
package claims

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/warranty-intake/internal/model"
	"github.com/sells-group/warranty-intake/internal/store"
)

// DefaultDedupWindow is how long repeat calls from one homeowner are treated
// as referring to the same underlying issue.
const DefaultDedupWindow = 24 * time.Hour

// Creator creates deduplicated claims with store-assigned sequential numbers.
type Creator struct {
	store       store.Store
	dedupWindow time.Duration
	now         func() time.Time
}

// NewCreator builds a Creator. A non-positive window falls back to
// DefaultDedupWindow.
func NewCreator(s store.Store, dedupWindow time.Duration) *Creator {
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}
	return &Creator{store: s, dedupWindow: dedupWindow, now: time.Now}
}

// MaybeCreate creates a claim for the homeowner unless an open claim already
// exists inside the dedup window. Returns nil, nil when creation is skipped.
//
// The claim number comes from a single atomic store operation; two concurrent
// calls for the same homeowner always receive distinct numbers.
func (c *Creator) MaybeCreate(ctx context.Context, homeownerID string, rec *model.CallRecord) (*model.Claim, error) {
	since := c.now().UTC().Add(-c.dedupWindow)
	existing, err := c.store.OpenClaimSince(ctx, homeownerID, since)
	if err != nil {
		return nil, eris.Wrap(err, "claims: dedup lookup")
	}
	if existing != nil {
		zap.L().Info("claims: open claim inside dedup window, skipping create",
			zap.String("homeowner_id", homeownerID),
			zap.String("existing_claim_id", existing.ID),
			zap.String("call_id", rec.ExternalCallID),
		)
		return nil, nil
	}

	number, err := c.store.NextClaimNumber(ctx, homeownerID)
	if err != nil {
		return nil, eris.Wrap(err, "claims: next claim number")
	}

	claim, err := c.store.CreateClaim(ctx, &model.Claim{
		HomeownerID:  homeownerID,
		ClaimNumber:  number,
		Status:       model.ClaimStatusIntake,
		Description:  rec.Extracted.IssueDescription,
		IsUrgent:     rec.IsUrgent,
		SourceCallID: rec.ExternalCallID,
	})
	if err != nil {
		return nil, eris.Wrap(err, "claims: create")
	}

	zap.L().Info("claims: created",
		zap.String("claim_id", claim.ID),
		zap.String("homeowner_id", homeownerID),
		zap.Int64("claim_number", claim.ClaimNumber),
		zap.Bool("urgent", claim.IsUrgent),
	)
	return claim, nil
}
