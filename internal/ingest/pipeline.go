// Package ingest turns end-of-call webhook reports into call records and,
// when the caller is a verifiable homeowner with a warranty issue, claims.
package ingest

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/warranty-intake/internal/claims"
	"github.com/sells-group/warranty-intake/internal/model"
	"github.com/sells-group/warranty-intake/internal/notify"
	"github.com/sells-group/warranty-intake/internal/phone"
	"github.com/sells-group/warranty-intake/internal/resolve"
	"github.com/sells-group/warranty-intake/internal/store"
	"github.com/sells-group/warranty-intake/pkg/vapi"
)

// ErrUnauthorized is returned when the shared-secret header is missing or
// wrong. It is the only failure the webhook handler surfaces to the vendor.
var ErrUnauthorized = eris.New("ingest: unauthorized")

// Config controls webhook authentication and the fallback fetch.
type Config struct {
	SharedSecret  string        `yaml:"shared_secret" mapstructure:"shared_secret"`
	FallbackDelay time.Duration `yaml:"fallback_delay" mapstructure:"fallback_delay"`
}

const defaultFallbackDelay = 2 * time.Second

// Pipeline runs the end-of-call intake: extract, persist, resolve, create,
// notify. One invocation per webhook delivery; invocations share no state
// beyond the store.
type Pipeline struct {
	store      store.Store
	vendor     vapi.Client
	resolver   *resolve.Resolver
	creator    *claims.Creator
	dispatcher notify.Dispatcher
	cfg        Config

	// sleep is swapped out in tests to avoid real fallback delays.
	sleep func(ctx context.Context, d time.Duration)
}

// NewPipeline wires the intake pipeline. vendor may be nil, which disables
// the fallback fetch.
func NewPipeline(s store.Store, vendor vapi.Client, resolver *resolve.Resolver, creator *claims.Creator, dispatcher notify.Dispatcher, cfg Config) *Pipeline {
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = defaultFallbackDelay
	}
	if dispatcher == nil {
		dispatcher = notify.Nop{}
	}
	return &Pipeline{
		store:      s,
		vendor:     vendor,
		resolver:   resolver,
		creator:    creator,
		dispatcher: dispatcher,
		cfg:        cfg,
		sleep:      sleepCtx,
	}
}

// Authenticate checks the shared-secret header.
func (p *Pipeline) Authenticate(header http.Header) error {
	if p.cfg.SharedSecret == "" || header.Get("X-Shared-Secret") != p.cfg.SharedSecret {
		return ErrUnauthorized
	}
	return nil
}

// Process handles one authenticated end-of-call payload. Its error is for
// logging only: the webhook handler answers success to the vendor regardless,
// because a vendor retry storm is worse than a partially-processed call.
func (p *Pipeline) Process(ctx context.Context, body []byte) error {
	report := Extract(body)
	if report.ExternalCallID == "" {
		return eris.New("ingest: payload carries no call id")
	}

	log := zap.L().With(zap.String("call_id", report.ExternalCallID))

	if report.Fields.PropertyAddress == "" && p.vendor != nil {
		report.Fields = p.fallbackFetch(ctx, log, report.ExternalCallID, report.Fields)
	}

	callerPhone := report.CallerPhone
	if e164, err := phone.NormalizeE164(callerPhone); err == nil {
		callerPhone = e164
	}

	rec, err := p.store.UpsertCallRecord(ctx, &model.CallRecord{
		ExternalCallID: report.ExternalCallID,
		CallerPhone:    callerPhone,
		Extracted:      report.Fields,
		IsUrgent:       report.Fields.IsUrgent,
		Transcript:     report.Transcript,
	})
	if err != nil {
		return eris.Wrap(err, "ingest: persist call record")
	}

	if report.Fields.Intent != model.IntentWarrantyIssue {
		log.Info("ingest: non-warranty call recorded",
			zap.String("intent", string(report.Fields.Intent)),
		)
		return nil
	}

	return p.resolveAndCreate(ctx, log, rec)
}

// fallbackFetch waits out the vendor's eventual consistency, then refetches
// the call detail exactly once and merges anything the local payload missed.
func (p *Pipeline) fallbackFetch(ctx context.Context, log *zap.Logger, callID string, local model.ExtractedFields) model.ExtractedFields {
	log.Info("ingest: no address in payload, refetching call detail",
		zap.Duration("delay", p.cfg.FallbackDelay),
	)
	p.sleep(ctx, p.cfg.FallbackDelay)

	detail, err := p.vendor.GetCall(ctx, callID)
	if err != nil {
		log.Warn("ingest: fallback fetch failed, continuing with local fields", zap.Error(err))
		return local
	}
	return Merge(local, extractFields(detail.Raw))
}

func (p *Pipeline) resolveAndCreate(ctx context.Context, log *zap.Logger, rec *model.CallRecord) error {
	candidates, err := p.store.HomeownerCandidates(ctx, candidateHint(rec.Extracted.PropertyAddress))
	if err != nil {
		return eris.Wrap(err, "ingest: load homeowner candidates")
	}

	match := p.resolver.Resolve(rec.Extracted.PropertyAddress, candidates)
	if match == nil {
		log.Info("ingest: no homeowner matched, routing to manual review",
			zap.String("address", rec.Extracted.PropertyAddress),
		)
		p.dispatcher.Notify(ctx, notify.Event{
			Scenario:   notify.ScenarioUnmatched,
			CallRecord: rec,
		})
		return nil
	}

	log.Info("ingest: homeowner resolved",
		zap.String("homeowner_id", match.Homeowner.ID),
		zap.Float64("similarity", match.Similarity),
	)
	if err := p.store.AttachResolution(ctx, rec.ExternalCallID, match.Homeowner.ID, match.Similarity, true); err != nil {
		return eris.Wrap(err, "ingest: attach resolution")
	}
	rec.ResolvedHomeownerID = match.Homeowner.ID
	rec.Similarity = match.Similarity
	rec.IsVerified = true

	claim, err := p.creator.MaybeCreate(ctx, match.Homeowner.ID, rec)
	if err != nil {
		return eris.Wrap(err, "ingest: create claim")
	}

	if claim == nil {
		p.dispatcher.Notify(ctx, notify.Event{
			Scenario:   notify.ScenarioMatchedNoClaim,
			CallRecord: rec,
			Homeowner:  &match.Homeowner,
		})
		return nil
	}

	if err := p.store.AttachClaim(ctx, rec.ExternalCallID, claim.ID); err != nil {
		log.Error("ingest: claim created but not linked to call record", zap.Error(err))
	}
	rec.ClaimID = claim.ID

	p.dispatcher.Notify(ctx, notify.Event{
		Scenario:   notify.ScenarioClaimCreated,
		CallRecord: rec,
		Homeowner:  &match.Homeowner,
		Claim:      claim,
	})
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
