package invite

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are enabled when VOBEE_DATABASE_URL is set.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresLedger_IssueValidateRedeem(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyLedgerSchema(t, pool, schema)

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	service, err := NewService(store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx := context.Background()

	batchID, invites, err := service.GenerateBatch(ctx, 5, "")
	if err != nil {
		t.Fatalf("generate batch: %v", err)
	}
	if len(invites) != 5 {
		t.Fatalf("expected 5 invites, got %d", len(invites))
	}

	valid, inv, err := service.Validate(ctx, invites[0].Code)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !valid || inv.BatchID != batchID {
		t.Fatalf("expected valid code in batch %q, got valid=%v batch=%q", batchID, valid, inv.BatchID)
	}

	redeemed, err := service.Redeem(ctx, invites[0].Code, "first@example.com")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redeemed.Status != StatusUsed || redeemed.UsedAt == nil {
		t.Fatalf("expected used invite, got %+v", redeemed)
	}

	if _, err := service.Redeem(ctx, invites[0].Code, "second@example.com"); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("second redeem err = %v, want ErrAlreadyUsed", err)
	}
	if _, err := service.Redeem(ctx, "VOBEE-000000000000", "x@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown code err = %v, want ErrNotFound", err)
	}
}

func TestPostgresLedger_InsertIfAbsent(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyLedgerSchema(t, pool, schema)

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	inv := NewInvite("VOBEE-0123456789AB", "", "", now)

	if err := store.Insert(ctx, inv); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := store.Insert(ctx, inv); !errors.Is(err, ErrCodeExists) {
		t.Fatalf("duplicate insert err = %v, want ErrCodeExists", err)
	}
}

func TestPostgresLedger_ConcurrentRedeem_OneWinner(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyLedgerSchema(t, pool, schema)

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	service, err := NewService(store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx := context.Background()
	inv, err := service.Issue(ctx, "", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	wg.Add(attempts)
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, err := service.Redeem(ctx, inv.Code, fmt.Sprintf("racer-%d@example.com", i))
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrAlreadyUsed) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 success, got %d", success)
	}
}

// ---- helpers ----

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("VOBEE_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: VOBEE_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse VOBEE_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (VOBEE_DATABASE_URL set): %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host") {
		return true
	}
	return false
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "vobee_invite_it_" + strings.ToLower(newTestULID(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
}

func mustApplyLedgerSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	codes := pgIdent(schema, "invite_codes")
	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  code TEXT PRIMARY KEY,
  batch_id TEXT NULL,
  issued_to TEXT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at TIMESTAMPTZ NOT NULL,
  used_by TEXT NULL,
  used_at TIMESTAMPTZ NULL,
  CONSTRAINT chk_invite_codes_code CHECK (code ~ '^VOBEE-[0-9A-F]{12}$'),
  CONSTRAINT chk_invite_codes_status CHECK (status IN ('active', 'used', 'expired'))
);
`, codes)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func newTestULID(t *testing.T) string {
	t.Helper()
	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), ulid.Monotonic(rand.Reader, 0)).String()
	if len(id) != 26 {
		t.Fatalf("expected ULID length 26, got %d", len(id))
	}
	return id
}
