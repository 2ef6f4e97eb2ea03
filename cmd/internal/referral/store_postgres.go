package referral

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists referrals in PostgreSQL.
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

// Insert records a referral.
func (s *PostgresStore) Insert(ctx context.Context, r Referral) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" || r.InviterEmail == "" || r.InvitedEmail == "" {
		return ErrInvalidInput
	}

	referrals := refIdent(s.schema, "referrals")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+referrals+` (
		     id, inviter_email, invited_email, invite_code, status, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID,
		r.InviterEmail,
		r.InvitedEmail,
		refNullIfEmpty(r.InviteCode),
		r.Status,
		r.CreatedAt,
	)
	return err
}

// ListByInviter returns an inviter's referrals, newest first.
func (s *PostgresStore) ListByInviter(ctx context.Context, inviter string) ([]Referral, error) {
	if s == nil || s.pool == nil {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	referrals := refIdent(s.schema, "referrals")
	rows, err := s.pool.Query(ctx,
		`SELECT id, inviter_email, invited_email, invite_code, status, created_at
		   FROM `+referrals+`
		  WHERE inviter_email = $1
		  ORDER BY created_at DESC`,
		inviter,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Referral
	for rows.Next() {
		var r Referral
		var code *string
		if err := rows.Scan(&r.ID, &r.InviterEmail, &r.InvitedEmail, &code, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		if code != nil {
			r.InviteCode = *code
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClaimTier marks a reward tier claimed exactly once per inviter.
func (s *PostgresStore) ClaimTier(ctx context.Context, inviter, tier string, at time.Time) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if inviter == "" || tier == "" {
		return ErrInvalidInput
	}

	claims := refIdent(s.schema, "referral_reward_claims")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+claims+` (inviter_email, tier, claimed_at) VALUES ($1, $2, $3)`,
		inviter,
		tier,
		at,
	)
	if err != nil {
		if refIsUniqueViolation(err) {
			return ErrAlreadyClaimed
		}
		return err
	}
	return nil
}

// ClaimedTiers returns the tiers an inviter already claimed.
func (s *PostgresStore) ClaimedTiers(ctx context.Context, inviter string) (map[string]bool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims := refIdent(s.schema, "referral_reward_claims")
	rows, err := s.pool.Query(ctx,
		`SELECT tier FROM `+claims+` WHERE inviter_email = $1`,
		inviter,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var tier string
		if err := rows.Scan(&tier); err != nil {
			return nil, err
		}
		out[tier] = true
	}
	return out, rows.Err()
}

func refIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

func refIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}

func refNullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
