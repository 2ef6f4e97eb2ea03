package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists accounts in PostgreSQL.
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

// Insert adds a new account. A registered email yields ErrEmailExists.
func (s *PostgresStore) Insert(ctx context.Context, a Account) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.Email == "" {
		return ErrInvalidInput
	}

	accounts := acctIdent(s.schema, "user_accounts")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+accounts+` (
		     email, tier, created_at, trial_started_at, active_days_count,
		     last_active_at, referral_codes_earned, referral_codes_available, password_hash
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.Email,
		a.Tier,
		a.CreatedAt,
		a.TrialStartedAt,
		a.ActiveDaysCount,
		a.LastActiveAt,
		a.ReferralCodesEarned,
		a.ReferralCodesAvailable,
		a.PasswordHash,
	)
	if err != nil {
		if acctIsUniqueViolation(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// Get fetches an account by email.
func (s *PostgresStore) Get(ctx context.Context, email string) (Account, error) {
	if s == nil || s.pool == nil {
		return Account{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	accounts := acctIdent(s.schema, "user_accounts")
	var a Account
	err := s.pool.QueryRow(ctx,
		`SELECT email, tier, created_at, trial_started_at, active_days_count,
		        last_active_at, referral_codes_earned, referral_codes_available, password_hash
		   FROM `+accounts+`
		  WHERE email = $1`,
		email,
	).Scan(
		&a.Email,
		&a.Tier,
		&a.CreatedAt,
		&a.TrialStartedAt,
		&a.ActiveDaysCount,
		&a.LastActiveAt,
		&a.ReferralCodesEarned,
		&a.ReferralCodesAvailable,
		&a.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// ConsumeReferralCode spends one available code in a single conditional
// update, so the balance can never go negative under concurrency.
func (s *PostgresStore) ConsumeReferralCode(ctx context.Context, email string) (int, error) {
	if s == nil || s.pool == nil {
		return 0, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	accounts := acctIdent(s.schema, "user_accounts")
	var remaining int
	err := s.pool.QueryRow(ctx,
		`UPDATE `+accounts+`
		    SET referral_codes_available = referral_codes_available - 1
		  WHERE email = $1 AND referral_codes_available > 0
		RETURNING referral_codes_available`,
		email,
	).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// Nothing matched; distinguish a missing account from an empty balance.
	if _, getErr := s.Get(ctx, email); getErr != nil {
		return 0, getErr
	}
	return 0, ErrNotEligible
}

// TouchActivity records activity, counting at most one active day per UTC
// calendar day.
func (s *PostgresStore) TouchActivity(ctx context.Context, email string, now time.Time) (int, error) {
	if s == nil || s.pool == nil {
		return 0, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now = now.UTC()

	accounts := acctIdent(s.schema, "user_accounts")
	var activeDays int
	err := s.pool.QueryRow(ctx,
		`UPDATE `+accounts+`
		    SET active_days_count = active_days_count + CASE
		          WHEN last_active_at IS NULL
		            OR (last_active_at AT TIME ZONE 'UTC')::date < ($2 AT TIME ZONE 'UTC')::date
		          THEN 1 ELSE 0 END,
		        last_active_at = $2
		  WHERE email = $1
		RETURNING active_days_count`,
		email,
		now,
	).Scan(&activeDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return activeDays, nil
}

func acctIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

func acctIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}
