package invite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the invite ledger in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: "vobee").
func WithSchema(schema string) StoreOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return ErrInvalidInput
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "vobee"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, ErrInvalidInput
	}
	return st, nil
}

// Insert adds a new ledger row. An existing code yields ErrCodeExists; the
// row is never overwritten.
func (s *PostgresStore) Insert(ctx context.Context, inv Invite) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !CodePattern.MatchString(inv.Code) {
		return ErrInvalidInput
	}

	codes := pgIdent(s.schema, "invite_codes")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+codes+` (
		     code, batch_id, issued_to, status, created_at, expires_at, used_by, used_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		inv.Code,
		nullIfEmpty(inv.BatchID),
		nullIfEmpty(inv.IssuedTo),
		inv.Status,
		inv.CreatedAt,
		inv.ExpiresAt,
		inv.UsedBy,
		inv.UsedAt,
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return ErrCodeExists
		}
		return err
	}
	return nil
}

// Get fetches an invite by code.
func (s *PostgresStore) Get(ctx context.Context, code string) (Invite, error) {
	if s == nil || s.pool == nil {
		return Invite{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}
	code = NormalizeCode(code)
	if code == "" {
		return Invite{}, ErrInvalidInput
	}

	codes := pgIdent(s.schema, "invite_codes")
	var out Invite
	var batchID, issuedTo *string
	err := s.pool.QueryRow(ctx,
		`SELECT code, batch_id, issued_to, status, created_at, expires_at, used_by, used_at
		   FROM `+codes+`
		  WHERE code = $1`,
		code,
	).Scan(
		&out.Code,
		&batchID,
		&issuedTo,
		&out.Status,
		&out.CreatedAt,
		&out.ExpiresAt,
		&out.UsedBy,
		&out.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invite{}, ErrNotFound
		}
		return Invite{}, err
	}
	out.BatchID = deref(batchID)
	out.IssuedTo = deref(issuedTo)
	return out, nil
}

// Redeem marks the code used in a single conditional update. Exactly one
// concurrent caller can win; everyone else is told why they lost.
func (s *PostgresStore) Redeem(ctx context.Context, code, usedBy string, now time.Time) (Invite, error) {
	if s == nil || s.pool == nil {
		return Invite{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}
	code = NormalizeCode(code)
	if code == "" || strings.TrimSpace(usedBy) == "" {
		return Invite{}, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	codes := pgIdent(s.schema, "invite_codes")
	var out Invite
	var batchID, issuedTo *string
	err := s.pool.QueryRow(ctx,
		`UPDATE `+codes+`
		    SET used_by = $1,
		        used_at = $2,
		        status = 'used'
		  WHERE code = $3
		    AND status = 'active'
		    AND used_at IS NULL
		    AND expires_at > $2
		RETURNING code, batch_id, issued_to, status, created_at, expires_at, used_by, used_at`,
		usedBy,
		now,
		code,
	).Scan(
		&out.Code,
		&batchID,
		&issuedTo,
		&out.Status,
		&out.CreatedAt,
		&out.ExpiresAt,
		&out.UsedBy,
		&out.UsedAt,
	)
	if err == nil {
		out.BatchID = deref(batchID)
		out.IssuedTo = deref(issuedTo)
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Invite{}, err
	}

	// The conditional update matched nothing; classify why.
	cur, selErr := s.Get(ctx, code)
	if selErr != nil {
		return Invite{}, selErr
	}
	if cur.UsedAt != nil || cur.Status == StatusUsed {
		return Invite{}, ErrAlreadyUsed
	}
	if !now.Before(cur.ExpiresAt) || cur.Status == StatusExpired {
		return Invite{}, ErrExpired
	}
	return Invite{}, ErrAlreadyUsed
}

// Count returns ledger totals.
func (s *PostgresStore) Count(ctx context.Context) (Counts, error) {
	if s == nil || s.pool == nil {
		return Counts{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}

	codes := pgIdent(s.schema, "invite_codes")
	var c Counts
	err := s.pool.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'active'),
		        count(*) FILTER (WHERE status = 'used')
		   FROM `+codes,
	).Scan(&c.Total, &c.Active, &c.Used)
	if err != nil {
		return Counts{}, err
	}
	return c, nil
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
