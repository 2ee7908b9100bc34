package gatekeeper

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/warranty-intake/internal/model"
)

type fakeContacts struct {
	byPhone map[string]*model.Contact
	err     error
	delay   time.Duration
	calls   int
}

func (f *fakeContacts) ContactByPhone(ctx context.Context, e164 string) (*model.Contact, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.byPhone[e164], nil
}

func testConfig() Config {
	return Config{
		SharedSecret:   "hook-secret",
		TransferNumber: "+15550001111",
	}
}

func secretHeader() http.Header {
	h := http.Header{}
	h.Set("X-Shared-Secret", "hook-secret")
	return h
}

func bearerHeader() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer hook-secret")
	return h
}

func TestDecide_RejectsBadCredentials(t *testing.T) {
	t.Parallel()

	g := New(&fakeContacts{}, testConfig())

	for name, h := range map[string]http.Header{
		"no headers":   {},
		"wrong secret": {"X-Shared-Secret": []string{"nope"}},
		"wrong bearer": {"Authorization": []string{"Bearer nope"}},
		"basic auth":   {"Authorization": []string{"Basic aG9vaw=="}},
	} {
		d, err := g.Decide(context.Background(), []byte(`{}`), h)
		require.ErrorIs(t, err, ErrUnauthorized, name)
		assert.Nil(t, d, name)
	}
}

func TestDecide_KnownCallerTransfers(t *testing.T) {
	t.Parallel()

	contacts := &fakeContacts{byPhone: map[string]*model.Contact{
		"+15551234567": {PhoneE164: "+15551234567", OwnerID: "owner-1"},
	}}
	g := New(contacts, testConfig())

	// Any common formatting of an allowlisted number must transfer.
	payloads := []string{
		`{"message":{"call":{"customer":{"number":"(555) 123-4567"}}}}`,
		`{"call":{"customer":{"number":"555-123-4567"}}}`,
		`{"customer":{"number":"+15551234567"}}`,
	}
	for _, body := range payloads {
		d, err := g.Decide(context.Background(), []byte(body), secretHeader())
		require.NoError(t, err, body)
		require.Equal(t, model.DirectiveTransfer, d.Kind, body)
		require.NotNil(t, d.Transfer, body)
		assert.Equal(t, "+15550001111", d.Transfer.Number, body)
		assert.Empty(t, d.Transfer.Message, "transfer must be silent")
		assert.Nil(t, d.Assistant, "transfer never carries an assistant config")
	}
}

func TestDecide_UnknownCallerScreens(t *testing.T) {
	t.Parallel()

	g := New(&fakeContacts{}, testConfig())

	d, err := g.Decide(context.Background(),
		[]byte(`{"customer":{"number":"+15559999999"}}`), bearerHeader())
	require.NoError(t, err)
	require.Equal(t, model.DirectiveScreen, d.Kind)
	require.NotNil(t, d.Assistant)
	assert.Nil(t, d.Transfer)
	assert.NotEmpty(t, d.Assistant.FirstMessage)
	assert.Contains(t, d.Assistant.Model.SystemPrompt, "soliciting")
	assert.InDelta(t, 0.3, d.Assistant.Model.Temperature, 0.001)
	assert.Greater(t, d.Assistant.Model.MaxTokens, 0)
}

func TestDecide_MissingCallerNumberScreens(t *testing.T) {
	t.Parallel()

	contacts := &fakeContacts{}
	g := New(contacts, testConfig())

	d, err := g.Decide(context.Background(), []byte(`{"event":"call.started"}`), secretHeader())
	require.NoError(t, err)
	assert.Equal(t, model.DirectiveScreen, d.Kind)
	assert.Zero(t, contacts.calls, "no lookup without a usable number")
}

func TestDecide_StoreErrorFailsOpen(t *testing.T) {
	t.Parallel()

	contacts := &fakeContacts{err: errors.New("connection refused")}
	g := New(contacts, testConfig())

	d, err := g.Decide(context.Background(),
		[]byte(`{"customer":{"number":"+15551234567"}}`), secretHeader())
	require.NoError(t, err)
	assert.Equal(t, model.DirectiveScreen, d.Kind)
}

func TestDecide_SlowStoreFailsOpen(t *testing.T) {
	t.Parallel()

	contacts := &fakeContacts{
		byPhone: map[string]*model.Contact{"+15551234567": {OwnerID: "owner-1"}},
		delay:   200 * time.Millisecond,
	}
	cfg := testConfig()
	cfg.LookupTimeout = 20 * time.Millisecond
	g := New(contacts, cfg)

	d, err := g.Decide(context.Background(),
		[]byte(`{"customer":{"number":"+15551234567"}}`), secretHeader())
	require.NoError(t, err)
	assert.Equal(t, model.DirectiveScreen, d.Kind)
}

func TestDecide_CachesLookups(t *testing.T) {
	t.Parallel()

	contacts := &fakeContacts{byPhone: map[string]*model.Contact{
		"+15551234567": {PhoneE164: "+15551234567", OwnerID: "owner-1"},
	}}
	g := New(contacts, testConfig())

	body := []byte(`{"customer":{"number":"(555) 123-4567"}}`)
	for i := 0; i < 3; i++ {
		d, err := g.Decide(context.Background(), body, secretHeader())
		require.NoError(t, err)
		assert.Equal(t, model.DirectiveTransfer, d.Kind)
	}
	assert.Equal(t, 1, contacts.calls)
}
