// Package gatekeeper answers call-start webhooks: known callers are silently
// transferred to the office line, unknown callers get the screening assistant.
package gatekeeper

import (
	"context"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/warranty-intake/internal/model"
	"github.com/sells-group/warranty-intake/internal/phone"
)

// ErrUnauthorized is returned when neither accepted credential scheme matches.
// No directive is issued for unauthenticated requests.
var ErrUnauthorized = eris.New("gatekeeper: unauthorized")

// callerPaths are the payload locations probed for the caller's number, in
// order. The vendor has moved this field between schema revisions.
var callerPaths = []string{
	"message.call.customer.number",
	"call.customer.number",
	"customer.number",
	"caller.phoneNumber",
}

// ContactLookup is the slice of the store the gatekeeper needs.
type ContactLookup interface {
	ContactByPhone(ctx context.Context, phoneE164 string) (*model.Contact, error)
}

// Config controls authentication, routing, and the screening assistant.
type Config struct {
	SharedSecret   string        `yaml:"shared_secret" mapstructure:"shared_secret"`
	TransferNumber string        `yaml:"transfer_number" mapstructure:"transfer_number"`
	LookupTimeout  time.Duration `yaml:"lookup_timeout" mapstructure:"lookup_timeout"`
	CacheTTL       time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	FirstMessage   string        `yaml:"first_message" mapstructure:"first_message"`
	SystemPrompt   string        `yaml:"system_prompt" mapstructure:"system_prompt"`
	ModelProvider  string        `yaml:"model_provider" mapstructure:"model_provider"`
	Model          string        `yaml:"model" mapstructure:"model"`
}

const (
	defaultLookupTimeout = 1500 * time.Millisecond
	defaultCacheTTL      = 60 * time.Second

	defaultFirstMessage = "Thanks for calling. Who am I speaking with, and what can I help you with today?"
	defaultSystemPrompt = "You are a call screener for a home warranty company. " +
		"Collect the caller's name, property address, and the issue they are reporting. " +
		"If the caller is selling something, offering marketing or SEO services, or otherwise " +
		"soliciting, end the conversation politely but firmly. Do not transfer solicitors. " +
		"Keep every response under two sentences."
)

// Gatekeeper decides the routing directive for an inbound call.
type Gatekeeper struct {
	contacts ContactLookup
	cfg      Config
	cache    *gocache.Cache
}

// cachedLookup carries both positive and negative allowlist answers so the
// cache can short-circuit either way. TTL stays short: a stale entry delays
// allowlist changes by at most CacheTTL.
type cachedLookup struct {
	contact *model.Contact
}

// New builds a Gatekeeper over the given contact lookup.
func New(contacts ContactLookup, cfg Config) *Gatekeeper {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.FirstMessage == "" {
		cfg.FirstMessage = defaultFirstMessage
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.ModelProvider == "" {
		cfg.ModelProvider = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &Gatekeeper{
		contacts: contacts,
		cfg:      cfg,
		cache:    gocache.New(cfg.CacheTTL, 5*time.Minute),
	}
}

// Decide authenticates the request and returns the routing directive. The
// only error it returns is ErrUnauthorized: lookup failures fail open to the
// screening branch so call setup is never blocked on the store.
func (g *Gatekeeper) Decide(ctx context.Context, body []byte, header http.Header) (*model.Directive, error) {
	if !g.authenticated(header) {
		return nil, ErrUnauthorized
	}

	caller := extractCaller(body)
	if caller == "" {
		zap.L().Warn("gatekeeper: no usable caller number in payload, screening")
		return g.screen(), nil
	}

	contact := g.lookup(ctx, caller)
	if contact == nil {
		zap.L().Info("gatekeeper: unknown caller, screening", zap.String("caller", caller))
		return g.screen(), nil
	}

	zap.L().Info("gatekeeper: known caller, transferring",
		zap.String("caller", caller),
		zap.String("owner_id", contact.OwnerID),
	)
	return g.transfer(), nil
}

// authenticated accepts either the shared-secret header or a Bearer token
// carrying the same secret.
func (g *Gatekeeper) authenticated(header http.Header) bool {
	if g.cfg.SharedSecret == "" {
		return false
	}
	if header.Get("X-Shared-Secret") == g.cfg.SharedSecret {
		return true
	}
	auth := header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == g.cfg.SharedSecret
}

// extractCaller probes the known payload locations and normalizes the first
// hit to E.164. Returns "" when nothing usable is present.
func extractCaller(body []byte) string {
	for _, path := range callerPaths {
		raw := gjson.GetBytes(body, path).String()
		if raw == "" {
			continue
		}
		e164, err := phone.NormalizeE164(raw)
		if err != nil {
			zap.L().Warn("gatekeeper: unparseable caller number",
				zap.String("path", path),
				zap.String("raw", raw),
			)
			continue
		}
		return e164
	}
	return ""
}

// lookup checks the TTL cache, then the store under a bounded timeout. Any
// store failure is treated as "unknown caller".
func (g *Gatekeeper) lookup(ctx context.Context, e164 string) *model.Contact {
	if v, ok := g.cache.Get(e164); ok {
		return v.(cachedLookup).contact
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.cfg.LookupTimeout)
	defer cancel()

	contact, err := g.contacts.ContactByPhone(lookupCtx, e164)
	if err != nil {
		zap.L().Error("gatekeeper: contact lookup failed, failing open to screen",
			zap.String("caller", e164),
			zap.Error(err),
		)
		return nil
	}

	g.cache.Set(e164, cachedLookup{contact: contact}, g.cfg.CacheTTL)
	return contact
}

func (g *Gatekeeper) transfer() *model.Directive {
	return &model.Directive{
		Kind: model.DirectiveTransfer,
		Transfer: &model.TransferTarget{
			Type:   "number",
			Number: g.cfg.TransferNumber,
		},
	}
}

func (g *Gatekeeper) screen() *model.Directive {
	return &model.Directive{
		Kind: model.DirectiveScreen,
		Assistant: &model.AssistantConfig{
			FirstMessage: g.cfg.FirstMessage,
			Model: model.AssistantModel{
				Provider:     g.cfg.ModelProvider,
				Model:        g.cfg.Model,
				SystemPrompt: g.cfg.SystemPrompt,
				Temperature:  0.3,
				MaxTokens:    150,
			},
		},
	}
}
