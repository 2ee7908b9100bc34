package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/warranty-intake/internal/db"
	"github.com/sells-group/warranty-intake/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// candidateLimit bounds the homeowner slice handed to the resolver so a weak
// prefilter hint never turns into a full-table fuzzy scan.
const candidateLimit = 500

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot webhook paths.
var preparedStatements = map[string]string{
	"contact_by_phone": `SELECT phone_e164, owner_id, display_name, synced_at FROM contacts WHERE phone_e164 = $1`,
	"upsert_call_record": `INSERT INTO call_records (id, external_call_id, caller_phone, extracted, is_verified, is_urgent, transcript, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (external_call_id) DO UPDATE SET
			caller_phone = EXCLUDED.caller_phone,
			extracted    = EXCLUDED.extracted,
			is_urgent    = EXCLUDED.is_urgent,
			transcript   = EXCLUDED.transcript,
			updated_at   = EXCLUDED.updated_at
		RETURNING id, created_at`,
	"attach_resolution": `UPDATE call_records SET resolved_homeowner_id = $1, similarity = $2, is_verified = $3, updated_at = now() WHERE external_call_id = $4`,
	"attach_claim":      `UPDATE call_records SET claim_id = $1, updated_at = now() WHERE external_call_id = $2`,
	"open_claim_since": `SELECT id, homeowner_id, claim_number, status, description, is_urgent, source_call_id, created_at
		FROM claims WHERE homeowner_id = $1 AND created_at >= $2 AND status = ANY($3)
		ORDER BY created_at DESC LIMIT 1`,
	"next_claim_number": `INSERT INTO claim_counters (homeowner_id, n) VALUES ($1, 1)
		ON CONFLICT (homeowner_id) DO UPDATE SET n = claim_counters.n + 1
		RETURNING n`,
	"insert_claim": `INSERT INTO claims (id, homeowner_id, claim_number, status, description, is_urgent, source_call_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	phone_e164   TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	synced_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS homeowners (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	email            TEXT NOT NULL DEFAULT '',
	address          TEXT NOT NULL,
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	zip_code         TEXT NOT NULL DEFAULT '',
	last_activity_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_homeowners_zip ON homeowners (zip_code);
CREATE INDEX IF NOT EXISTS idx_homeowners_activity ON homeowners (last_activity_at DESC);

CREATE TABLE IF NOT EXISTS call_records (
	id                    TEXT PRIMARY KEY,
	external_call_id      TEXT NOT NULL UNIQUE,
	caller_phone          TEXT NOT NULL DEFAULT '',
	extracted             JSONB NOT NULL DEFAULT '{}',
	resolved_homeowner_id TEXT,
	claim_id              TEXT,
	similarity            DOUBLE PRECISION,
	is_verified           BOOLEAN NOT NULL DEFAULT false,
	is_urgent             BOOLEAN NOT NULL DEFAULT false,
	transcript            TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_call_records_verified ON call_records (is_verified, created_at DESC);

CREATE TABLE IF NOT EXISTS claims (
	id             TEXT PRIMARY KEY,
	homeowner_id   TEXT NOT NULL,
	claim_number   BIGINT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'intake',
	description    TEXT NOT NULL DEFAULT '',
	is_urgent      BOOLEAN NOT NULL DEFAULT false,
	source_call_id TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (homeowner_id, claim_number)
);
CREATE INDEX IF NOT EXISTS idx_claims_homeowner_created ON claims (homeowner_id, created_at DESC);

CREATE TABLE IF NOT EXISTS claim_counters (
	homeowner_id TEXT PRIMARY KEY,
	n            BIGINT NOT NULL DEFAULT 0
);
`

// Migrate applies the schema. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// ContactByPhone looks up an allowlist entry by exact E.164 number. Returns
// nil when the caller is unknown.
func (s *PostgresStore) ContactByPhone(ctx context.Context, phoneE164 string) (*model.Contact, error) {
	var c model.Contact
	err := s.pool.QueryRow(ctx,
		`SELECT phone_e164, owner_id, display_name, synced_at FROM contacts WHERE phone_e164 = $1`,
		phoneE164,
	).Scan(&c.PhoneE164, &c.OwnerID, &c.DisplayName, &c.SyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: contact by phone")
	}
	return &c, nil
}

// UpsertCallRecord inserts or refreshes the record keyed by external_call_id.
// Repeated webhook deliveries land on the same row; resolution fields set by
// a prior delivery are left untouched.
func (s *PostgresStore) UpsertCallRecord(ctx context.Context, rec *model.CallRecord) (*model.CallRecord, error) {
	extracted, err := json.Marshal(rec.Extracted)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal extracted fields")
	}

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	out := *rec
	err = s.pool.QueryRow(ctx,
		`INSERT INTO call_records (id, external_call_id, caller_phone, extracted, is_verified, is_urgent, transcript, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (external_call_id) DO UPDATE SET
			caller_phone = EXCLUDED.caller_phone,
			extracted    = EXCLUDED.extracted,
			is_urgent    = EXCLUDED.is_urgent,
			transcript   = EXCLUDED.transcript,
			updated_at   = EXCLUDED.updated_at
		RETURNING id, created_at`,
		id, rec.ExternalCallID, rec.CallerPhone, extracted, rec.IsVerified, rec.IsUrgent, rec.Transcript, now, now,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert call record %s", rec.ExternalCallID)
	}
	out.UpdatedAt = now
	return &out, nil
}

// AttachResolution records the resolver outcome on a call record.
func (s *PostgresStore) AttachResolution(ctx context.Context, externalCallID, homeownerID string, similarity float64, verified bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE call_records SET resolved_homeowner_id = $1, similarity = $2, is_verified = $3, updated_at = now() WHERE external_call_id = $4`,
		nullable(homeownerID), similarity, verified, externalCallID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: attach resolution %s", externalCallID)
	}
	return nil
}

// AttachClaim links a created claim back to its source call record.
func (s *PostgresStore) AttachClaim(ctx context.Context, externalCallID, claimID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE call_records SET claim_id = $1, updated_at = now() WHERE external_call_id = $2`,
		claimID, externalCallID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: attach claim %s", externalCallID)
	}
	return nil
}

// ListCallRecords returns call records matching the filter, newest first.
func (s *PostgresStore) ListCallRecords(ctx context.Context, filter model.CallFilter) ([]model.CallRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, external_call_id, caller_phone, extracted, resolved_homeowner_id, claim_id, similarity, is_verified, is_urgent, transcript, created_at, updated_at
		FROM call_records
		WHERE ($1::boolean IS NULL OR is_verified = $1)
		  AND ($2::text = '' OR extracted->>'intent' = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		filter.Verified, filter.Intent, limit, filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list call records")
	}
	defer rows.Close()

	var records []model.CallRecord
	for rows.Next() {
		rec, err := scanCallRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: call record rows")
	}
	return records, nil
}

// HomeownerCandidates returns the coarse-filtered slice handed to the fuzzy
// resolver. A non-empty hint (zip or city token) narrows the scan; without
// one, the most recently active homeowners are considered.
func (s *PostgresStore) HomeownerCandidates(ctx context.Context, hint string) ([]model.Homeowner, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, address, city, state, zip_code, last_activity_at
		FROM homeowners
		WHERE $1 = '' OR zip_code = $1 OR city ILIKE $1 OR state ILIKE $1
		ORDER BY last_activity_at DESC
		LIMIT $2`,
		hint, candidateLimit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: homeowner candidates")
	}
	defer rows.Close()

	var out []model.Homeowner
	for rows.Next() {
		var h model.Homeowner
		if err := rows.Scan(&h.ID, &h.Name, &h.Email, &h.Address, &h.City, &h.State, &h.ZipCode, &h.LastActivityAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan homeowner")
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: homeowner rows")
	}
	return out, nil
}

// OpenClaimSince returns the newest open claim for the homeowner created at
// or after `since`, or nil when the dedup window is clear.
func (s *PostgresStore) OpenClaimSince(ctx context.Context, homeownerID string, since time.Time) (*model.Claim, error) {
	var c model.Claim
	err := s.pool.QueryRow(ctx,
		`SELECT id, homeowner_id, claim_number, status, description, is_urgent, source_call_id, created_at
		FROM claims WHERE homeowner_id = $1 AND created_at >= $2 AND status = ANY($3)
		ORDER BY created_at DESC LIMIT 1`,
		homeownerID, since, model.OpenStatuses(),
	).Scan(&c.ID, &c.HomeownerID, &c.ClaimNumber, &c.Status, &c.Description, &c.IsUrgent, &c.SourceCallID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: open claim since for %s", homeownerID)
	}
	return &c, nil
}

// NextClaimNumber atomically increments and returns the per-homeowner claim
// counter. The single INSERT ... ON CONFLICT ... RETURNING statement is the
// whole point: concurrent calls for the same homeowner serialize inside the
// database and can never observe the same value.
func (s *PostgresStore) NextClaimNumber(ctx context.Context, homeownerID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO claim_counters (homeowner_id, n) VALUES ($1, 1)
		ON CONFLICT (homeowner_id) DO UPDATE SET n = claim_counters.n + 1
		RETURNING n`,
		homeownerID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: next claim number for %s", homeownerID)
	}
	return n, nil
}

// CreateClaim inserts a new claim row.
func (s *PostgresStore) CreateClaim(ctx context.Context, claim *model.Claim) (*model.Claim, error) {
	out := *claim
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.Status == "" {
		out.Status = model.ClaimStatusIntake
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO claims (id, homeowner_id, claim_number, status, description, is_urgent, source_call_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		out.ID, out.HomeownerID, out.ClaimNumber, string(out.Status), out.Description, out.IsUrgent, out.SourceCallID, out.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create claim for %s", claim.HomeownerID)
	}
	return &out, nil
}

// scanCallRecord reads one call_records row, unpacking the extracted JSONB.
func scanCallRecord(rows pgx.Rows) (model.CallRecord, error) {
	var (
		rec         model.CallRecord
		extracted   []byte
		homeownerID *string
		claimID     *string
		similarity  *float64
	)
	err := rows.Scan(&rec.ID, &rec.ExternalCallID, &rec.CallerPhone, &extracted,
		&homeownerID, &claimID, &similarity, &rec.IsVerified, &rec.IsUrgent,
		&rec.Transcript, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return rec, eris.Wrap(err, "postgres: scan call record")
	}
	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &rec.Extracted); err != nil {
			return rec, eris.Wrap(err, "postgres: unmarshal extracted fields")
		}
	}
	if homeownerID != nil {
		rec.ResolvedHomeownerID = *homeownerID
	}
	if claimID != nil {
		rec.ClaimID = *claimID
	}
	if similarity != nil {
		rec.Similarity = *similarity
	}
	return rec, nil
}

// nullable maps the empty string to a SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
