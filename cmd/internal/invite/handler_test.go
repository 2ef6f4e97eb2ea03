package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vobee/cmd/internal/api"
	"vobee/cmd/internal/metrics"
)

type recordingAccounts struct {
	created []string
	err     error
}

func (a *recordingAccounts) CreateFromInvite(_ context.Context, email, _ string) error {
	if a.err != nil {
		return a.err
	}
	a.created = append(a.created, email)
	return nil
}

func newTestHandler(t *testing.T, accounts AccountCreator) (*Handler, *Service) {
	t.Helper()
	svc, _ := newTestService(t)
	h := NewHandler(nil, svc, api.NewAdminAuth("test-admin-token"), accounts, metrics.New())
	return h, svc
}

func serve(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func TestRegister_FreshMux(t *testing.T) {
	// ServeMux panics at registration on conflicting patterns, so a bad
	// route shape would take the server down at startup.
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Register panicked: %v", r)
		}
	}()
	h, _ := newTestHandler(t, nil)
	h.Register(http.NewServeMux())
}

func TestHandleGenerate_RequiresAdmin(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	mux := serve(h)

	req := httptest.NewRequest(http.MethodPost, "/api/invites/generate", strings.NewReader(`{"batch_size":3}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandleGenerate_Batch(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	mux := serve(h)

	req := httptest.NewRequest(http.MethodPost, "/api/invites/generate", strings.NewReader(`{"batch_size":5}`))
	req.Header.Set("Authorization", "Bearer test-admin-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		BatchID   string   `json:"batch_id"`
		Generated int      `json:"generated"`
		Codes     []string `json:"codes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Generated != 5 || len(resp.Codes) != 5 || resp.BatchID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	for _, c := range resp.Codes {
		if !CodePattern.MatchString(c) {
			t.Errorf("malformed code %q", c)
		}
	}
}

func TestHandleGenerate_RejectsBadSize(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	mux := serve(h)

	for _, body := range []string{`{"batch_size":0}`, `{"batch_size":1001}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/invites/generate", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer test-admin-token")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestHandleGenerate_RejectsUnknownFields(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	mux := serve(h)

	req := httptest.NewRequest(http.MethodPost, "/api/invites/generate", strings.NewReader(`{"batch_size":3,"bogus":true}`))
	req.Header.Set("Authorization", "Bearer test-admin-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRedeem_HappyPath(t *testing.T) {
	accounts := &recordingAccounts{}
	h, svc := newTestHandler(t, accounts)
	mux := serve(h)

	inv, err := svc.Issue(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	body := `{"code":"` + inv.Code + `","email":"New@Example.com","password":"longenough"}`
	req := httptest.NewRequest(http.MethodPost, "/api/invites/redeem", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(accounts.created) != 1 || accounts.created[0] != "new@example.com" {
		t.Fatalf("account creation = %v, want normalized email", accounts.created)
	}
}

func TestHandleRedeem_ErrorMapping(t *testing.T) {
	h, svc := newTestHandler(t, nil)
	mux := serve(h)

	used, err := svc.Issue(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Redeem(context.Background(), used.Code, "first@example.com"); err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown code", `{"code":"VOBEE-FFFFFFFFFFFF","email":"a@b.com","password":"longenough"}`, http.StatusNotFound},
		{"already used", `{"code":"` + used.Code + `","email":"a@b.com","password":"longenough"}`, http.StatusConflict},
		{"short password", `{"code":"` + used.Code + `","email":"a@b.com","password":"short"}`, http.StatusBadRequest},
		{"missing email", `{"code":"` + used.Code + `","email":"","password":"longenough"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/invites/redeem", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHandleRedeem_EmailTaken(t *testing.T) {
	h, svc := newTestHandler(t, &recordingAccounts{err: fmt.Errorf("provision: %w", ErrEmailTaken)})
	mux := serve(h)

	inv, err := svc.Issue(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	body := `{"code":"` + inv.Code + `","email":"dup@example.com","password":"longenough"}`
	req := httptest.NewRequest(http.MethodPost, "/api/invites/redeem", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleRedeem_AccountFailureSurfaces(t *testing.T) {
	h, svc := newTestHandler(t, &recordingAccounts{err: errors.New("provisioning down")})
	mux := serve(h)

	inv, err := svc.Issue(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	body := `{"code":"` + inv.Code + `","email":"a@b.com","password":"longenough"}`
	req := httptest.NewRequest(http.MethodPost, "/api/invites/redeem", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	h, svc := newTestHandler(t, nil)
	mux := serve(h)

	inv, err := svc.Issue(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/invites/"+inv.Code+"/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Valid  bool   `json:"valid"`
		Status string `json:"status"`
		Used   bool   `json:"used"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Valid || resp.Status != StatusActive || resp.Used {
		t.Fatalf("unexpected status payload: %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/invites/VOBEE-111111111111/status", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown code status = %d, want 404", rec.Code)
	}
}

func TestHandleValidate(t *testing.T) {
	h, svc := newTestHandler(t, nil)
	mux := serve(h)

	inv, err := svc.Issue(context.Background(), "", "vip@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/invites/"+inv.Code+"/validate", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp validateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Valid || resp.IssuedTo != "vip@example.com" {
		t.Fatalf("unexpected validate payload: %+v", resp)
	}
}
