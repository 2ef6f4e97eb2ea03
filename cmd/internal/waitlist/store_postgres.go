package waitlist

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists waitlist entries in PostgreSQL.
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

// Insert adds a new entry. A registered email yields ErrEmailExists.
func (s *PostgresStore) Insert(ctx context.Context, e Entry) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Email == "" {
		return ErrInvalidInput
	}

	entries := wlIdent(s.schema, "waitlist_entries")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+entries+` (
		     email, email_hash, use_case, persona, priority_score, status, created_at, invited_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.Email,
		e.EmailHash,
		e.UseCase,
		e.Persona,
		e.PriorityScore,
		e.Status,
		e.CreatedAt,
		e.InvitedAt,
	)
	if err != nil {
		if wlIsUniqueViolation(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches an entry by address.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (Entry, error) {
	if s == nil || s.pool == nil {
		return Entry{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	entries := wlIdent(s.schema, "waitlist_entries")
	var out Entry
	err := s.pool.QueryRow(ctx,
		`SELECT email, email_hash, use_case, persona, priority_score, status, created_at, invited_at
		   FROM `+entries+`
		  WHERE email = $1`,
		email,
	).Scan(
		&out.Email,
		&out.EmailHash,
		&out.UseCase,
		&out.Persona,
		&out.PriorityScore,
		&out.Status,
		&out.CreatedAt,
		&out.InvitedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return out, nil
}

// Position ranks a score against the rest of the list. Ties share a
// position.
func (s *PostgresStore) Position(ctx context.Context, score float64) (int, error) {
	if s == nil || s.pool == nil {
		return 0, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	entries := wlIdent(s.schema, "waitlist_entries")
	var ahead int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM `+entries+` WHERE priority_score > $1`,
		score,
	).Scan(&ahead)
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// CountPending returns the number of entries still waiting.
func (s *PostgresStore) CountPending(ctx context.Context) (int, error) {
	if s == nil || s.pool == nil {
		return 0, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	entries := wlIdent(s.schema, "waitlist_entries")
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM `+entries+` WHERE status = 'pending'`,
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// TopPending returns the n highest-scored pending entries. Older signups
// win score ties.
func (s *PostgresStore) TopPending(ctx context.Context, n int) ([]Entry, error) {
	if s == nil || s.pool == nil {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, ErrInvalidInput
	}

	entries := wlIdent(s.schema, "waitlist_entries")
	rows, err := s.pool.Query(ctx,
		`SELECT email, email_hash, use_case, persona, priority_score, status, created_at, invited_at
		   FROM `+entries+`
		  WHERE status = 'pending'
		  ORDER BY priority_score DESC, created_at ASC
		  LIMIT $1`,
		n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.Email,
			&e.EmailHash,
			&e.UseCase,
			&e.Persona,
			&e.PriorityScore,
			&e.Status,
			&e.CreatedAt,
			&e.InvitedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkInvited moves a pending entry to invited.
func (s *PostgresStore) MarkInvited(ctx context.Context, email string, at time.Time) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entries := wlIdent(s.schema, "waitlist_entries")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+entries+`
		    SET status = 'invited', invited_at = $1
		  WHERE email = $2 AND status = 'pending'`,
		at,
		email,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkJoined moves an entry to joined once its invite is redeemed. A
// missing entry is not an error: redemptions are not required to come
// through the waitlist.
func (s *PostgresStore) MarkJoined(ctx context.Context, email string) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entries := wlIdent(s.schema, "waitlist_entries")
	_, err := s.pool.Exec(ctx,
		`UPDATE `+entries+` SET status = 'joined' WHERE email = $1`,
		email,
	)
	return err
}

// Stats aggregates the whole list in one round trip per dimension.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	if s == nil || s.pool == nil {
		return Stats{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	entries := wlIdent(s.schema, "waitlist_entries")
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'pending'),
		        count(*) FILTER (WHERE status = 'invited'),
		        count(*) FILTER (WHERE status = 'joined'),
		        coalesce(avg(priority_score), 0)
		   FROM `+entries,
	).Scan(&st.Total, &st.Pending, &st.Invited, &st.Joined, &st.AvgPriorityScore)
	if err != nil {
		return Stats{}, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT persona, count(*), coalesce(avg(priority_score), 0)
		   FROM `+entries+`
		  GROUP BY persona`,
	)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	st.ByPersona = make(map[string]PersonaStats)
	for rows.Next() {
		var persona string
		var ps PersonaStats
		if err := rows.Scan(&persona, &ps.Count, &ps.AvgScore); err != nil {
			return Stats{}, err
		}
		st.ByPersona[persona] = ps
	}
	return st, rows.Err()
}

func wlIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

func wlIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}
