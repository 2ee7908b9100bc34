package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/warranty-intake/internal/model"
)

func claimEvent() Event {
	return Event{
		Scenario:   ScenarioClaimCreated,
		CallRecord: &model.CallRecord{ExternalCallID: "call-123", IsVerified: true},
		Homeowner:  &model.Homeowner{ID: "hw-1", Name: "Dana Brooks"},
		Claim:      &model.Claim{ID: "claim-9", ClaimNumber: 4},
	}
}

func TestNotify_DeliversEvent(t *testing.T) {
	t.Parallel()

	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewWebhook(Config{WebhookURL: srv.URL})
	d.Notify(context.Background(), claimEvent())

	assert.Equal(t, ScenarioClaimCreated, got.Scenario)
	require.NotNil(t, got.Claim)
	assert.Equal(t, int64(4), got.Claim.ClaimNumber)
	assert.False(t, got.Timestamp.IsZero())
}

func TestNotify_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewWebhook(Config{WebhookURL: srv.URL})
	d.Notify(context.Background(), claimEvent())
	assert.Equal(t, int32(2), calls.Load())
}

func TestNotify_FailureIsSwallowed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewWebhook(Config{WebhookURL: srv.URL})

	// Must not panic or propagate anything.
	d.Notify(context.Background(), Event{Scenario: ScenarioUnmatched, CallRecord: &model.CallRecord{}})
}

func TestNotify_NoURLConfigured(t *testing.T) {
	t.Parallel()

	d := NewWebhook(Config{})
	d.Notify(context.Background(), claimEvent())
}
