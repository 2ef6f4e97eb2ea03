package waitlist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vobee/cmd/internal/invite"
)

const validUseCase = "I want to automate my agency workflow for client projects"

func newTestWaitlistService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func newTestIssuer(t *testing.T) *invite.Service {
	t.Helper()
	svc, err := invite.NewService(invite.NewMemoryStore())
	if err != nil {
		t.Fatalf("invite.NewService: %v", err)
	}
	return svc
}

func TestJoin_HappyPath(t *testing.T) {
	svc, store := newTestWaitlistService(t)
	ctx := context.Background()

	res, err := svc.Join(ctx, "Founder@Example.com", validUseCase, "solo_founder")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if res.Position != 1 {
		t.Fatalf("position = %d, want 1", res.Position)
	}
	if res.TotalWaiting != 1 {
		t.Fatalf("total_waiting = %d, want 1", res.TotalWaiting)
	}
	if res.EstimatedWait == "" {
		t.Fatal("expected a wait estimate")
	}

	e, err := store.GetByEmail(ctx, "founder@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if e.Status != StatusPending {
		t.Fatalf("status = %q, want pending", e.Status)
	}
	if e.EmailHash == "" || e.EmailHash == e.Email {
		t.Fatalf("email hash not set: %q", e.EmailHash)
	}
	if e.PriorityScore != res.PriorityScore {
		t.Fatalf("stored score %v != reported %v", e.PriorityScore, res.PriorityScore)
	}
}

func TestJoin_DuplicateEmail(t *testing.T) {
	svc, _ := newTestWaitlistService(t)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "dup@example.com", validUseCase, "other"); err != nil {
		t.Fatalf("first Join: %v", err)
	}
	_, err := svc.Join(ctx, "DUP@example.com", validUseCase, "agency")
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("err = %v, want ErrEmailExists", err)
	}
}

func TestJoin_Validation(t *testing.T) {
	svc, _ := newTestWaitlistService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		email   string
		useCase string
		persona string
		want    error
	}{
		{"missing email", "", validUseCase, "other", ErrInvalidInput},
		{"bad email format", "not-an-email", validUseCase, "other", ErrInvalidInput},
		{"short use case", "a@example.com", "too short", "other", ErrInvalidInput},
		{"bad persona", "a@example.com", validUseCase, "ceo", ErrInvalidInput},
		{"disposable domain", "a@mailinator.com", validUseCase, "other", ErrDisposableEmail},
		{"disposable pattern", "a@my-tempmail.io", validUseCase, "other", ErrDisposableEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Join(ctx, tt.email, tt.useCase, tt.persona)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestJoin_SanitizesUseCase(t *testing.T) {
	svc, store := newTestWaitlistService(t)
	ctx := context.Background()

	raw := `<script>bad</script> I want to automate my agency workflow for clients`
	if _, err := svc.Join(ctx, "clean@example.com", raw, "agency"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	e, err := store.GetByEmail(ctx, "clean@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if strings.ContainsAny(e.UseCase, `<>"'&`) {
		t.Fatalf("use case not sanitized: %q", e.UseCase)
	}
}

func TestJoin_PositionReflectsScore(t *testing.T) {
	svc, _ := newTestWaitlistService(t)
	ctx := context.Background()

	low, err := svc.Join(ctx, "low@example.com", validUseCase, "other")
	if err != nil {
		t.Fatalf("Join low: %v", err)
	}
	high, err := svc.Join(ctx, "high@example.com", validUseCase, "agency")
	if err != nil {
		t.Fatalf("Join high: %v", err)
	}
	if high.Position != 1 {
		t.Fatalf("high scorer position = %d, want 1", high.Position)
	}
	if low.Position != 1 {
		// The low scorer joined an empty list.
		t.Fatalf("low scorer initial position = %d, want 1", low.Position)
	}
}

func TestReleaseBatch_PromotesTopScorers(t *testing.T) {
	svc, store := newTestWaitlistService(t)
	issuer := newTestIssuer(t)
	ctx := context.Background()

	emails := map[string]string{
		"solo@example.com":   "solo_founder",
		"agency@example.com": "agency",
		"team@example.com":   "small_team",
	}
	for email, persona := range emails {
		if _, err := svc.Join(ctx, email, validUseCase, persona); err != nil {
			t.Fatalf("Join %s: %v", email, err)
		}
	}

	batchID, released, err := svc.ReleaseBatch(ctx, 2, issuer)
	if err != nil {
		t.Fatalf("ReleaseBatch: %v", err)
	}
	if batchID == "" {
		t.Fatal("expected a batch id")
	}
	if len(released) != 2 {
		t.Fatalf("released = %d, want 2", len(released))
	}
	if released[0].Email != "agency@example.com" || released[1].Email != "team@example.com" {
		t.Fatalf("unexpected release order: %+v", released)
	}

	for _, rel := range released {
		if rel.Code == "" || rel.ExpiresAt.IsZero() {
			t.Fatalf("incomplete release record: %+v", rel)
		}
		e, err := store.GetByEmail(ctx, rel.Email)
		if err != nil {
			t.Fatalf("GetByEmail %s: %v", rel.Email, err)
		}
		if e.Status != StatusInvited || e.InvitedAt == nil {
			t.Fatalf("entry %s not promoted: %+v", rel.Email, e)
		}
		valid, inv, err := issuer.Validate(ctx, rel.Code)
		if err != nil || !valid {
			t.Fatalf("issued code %s invalid: valid=%v err=%v", rel.Code, valid, err)
		}
		if inv.IssuedTo != rel.Email || inv.BatchID != batchID {
			t.Fatalf("code attribution wrong: %+v", inv)
		}
	}

	// The remaining entry is still pending.
	e, err := store.GetByEmail(ctx, "solo@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if e.Status != StatusPending {
		t.Fatalf("lowest scorer promoted early: %+v", e)
	}
}

func TestReleaseBatch_EmptyList(t *testing.T) {
	svc, _ := newTestWaitlistService(t)
	issuer := newTestIssuer(t)

	_, _, err := svc.ReleaseBatch(context.Background(), 10, issuer)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReleaseBatch_SkipsNewlyDisposableDomains(t *testing.T) {
	svc, store := newTestWaitlistService(t)
	issuer := newTestIssuer(t)
	ctx := context.Background()

	// An entry that slipped in before its domain was denylisted.
	bad := NewEntry("late@yopmail.com", validUseCase, "agency", 20, time.Now())
	if err := store.Insert(ctx, bad); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := svc.Join(ctx, "good@example.com", validUseCase, "other"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	_, released, err := svc.ReleaseBatch(ctx, 10, issuer)
	if err != nil {
		t.Fatalf("ReleaseBatch: %v", err)
	}
	if len(released) != 1 || released[0].Email != "good@example.com" {
		t.Fatalf("unexpected release set: %+v", released)
	}
}

func TestMarkJoined(t *testing.T) {
	svc, store := newTestWaitlistService(t)
	issuer := newTestIssuer(t)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "joiner@example.com", validUseCase, "small_team"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, _, err := svc.ReleaseBatch(ctx, 1, issuer); err != nil {
		t.Fatalf("ReleaseBatch: %v", err)
	}
	if err := svc.MarkJoined(ctx, "Joiner@Example.com"); err != nil {
		t.Fatalf("MarkJoined: %v", err)
	}

	e, err := store.GetByEmail(ctx, "joiner@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if e.Status != StatusJoined {
		t.Fatalf("status = %q, want joined", e.Status)
	}

	// Unknown emails are ignored; redemptions need not originate here.
	if err := svc.MarkJoined(ctx, "stranger@example.com"); err != nil {
		t.Fatalf("MarkJoined stranger: %v", err)
	}
}

func TestStats(t *testing.T) {
	svc, _ := newTestWaitlistService(t)
	issuer := newTestIssuer(t)
	ctx := context.Background()

	personas := map[string]string{
		"a@example.com": "agency",
		"b@example.com": "agency",
		"c@example.com": "solo_founder",
	}
	for email, persona := range personas {
		if _, err := svc.Join(ctx, email, validUseCase, persona); err != nil {
			t.Fatalf("Join %s: %v", email, err)
		}
	}
	if _, _, err := svc.ReleaseBatch(ctx, 1, issuer); err != nil {
		t.Fatalf("ReleaseBatch: %v", err)
	}

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 3 || st.Pending != 2 || st.Invited != 1 || st.Joined != 0 {
		t.Fatalf("unexpected totals: %+v", st)
	}
	if st.ByPersona["agency"].Count != 2 || st.ByPersona["solo_founder"].Count != 1 {
		t.Fatalf("unexpected persona breakdown: %+v", st.ByPersona)
	}
	if st.AvgPriorityScore <= 0 {
		t.Fatalf("avg score = %v, want > 0", st.AvgPriorityScore)
	}
}
