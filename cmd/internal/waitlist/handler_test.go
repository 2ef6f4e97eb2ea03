package waitlist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"vobee/cmd/internal/api"
	"vobee/cmd/internal/gate"
	"vobee/cmd/internal/metrics"
)

type fixedGate struct {
	eval gate.Evaluation
}

func (g fixedGate) Evaluate() gate.Evaluation { return g.eval }

func newTestWaitlistHandler(t *testing.T, gateEval GateEvaluator) (*Handler, *Service) {
	t.Helper()
	svc, _ := newTestWaitlistService(t)
	issuer := newTestIssuer(t)
	h := NewHandler(nil, svc, api.NewAdminAuth("test-admin-token"), gateEval, issuer, metrics.New())
	return h, svc
}

func serveWaitlist(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func joinBody(email string) string {
	return `{"email":"` + email + `","use_case":"` + validUseCase + `","persona":"solo_founder"}`
}

func TestHandleJoin(t *testing.T) {
	h, _ := newTestWaitlistHandler(t, nil)
	mux := serveWaitlist(h)

	req := httptest.NewRequest(http.MethodPost, "/api/waitlist/join", strings.NewReader(joinBody("a@example.com")))
	req.RemoteAddr = "198.51.100.1:1234"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var resp joinResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Position != 1 || resp.EstimatedWait == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleJoin_ErrorMapping(t *testing.T) {
	h, svc := newTestWaitlistHandler(t, nil)
	mux := serveWaitlist(h)

	if _, err := svc.Join(context.Background(), "taken@example.com", validUseCase, "other"); err != nil {
		t.Fatalf("seed Join: %v", err)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate", joinBody("taken@example.com"), http.StatusConflict},
		{"disposable", joinBody("a@mailinator.com"), http.StatusBadRequest},
		{"short use case", `{"email":"b@example.com","use_case":"short","persona":"other"}`, http.StatusBadRequest},
		{"bad persona", `{"email":"b@example.com","use_case":"` + validUseCase + `","persona":"boss"}`, http.StatusBadRequest},
		{"unknown field", `{"email":"b@example.com","use_case":"` + validUseCase + `","persona":"other","x":1}`, http.StatusBadRequest},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/waitlist/join", strings.NewReader(tt.body))
			req.RemoteAddr = "198.51.100." + strconv.Itoa(2+i) + ":1234"
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHandleJoin_RateLimited(t *testing.T) {
	h, _ := newTestWaitlistHandler(t, nil)
	mux := serveWaitlist(h)

	var last int
	for i := 0; i < 11; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/waitlist/join", strings.NewReader(`{}`))
		req.RemoteAddr = "203.0.113.9:4000"
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("11th request status = %d, want 429", last)
	}

	// A different client is unaffected.
	req := httptest.NewRequest(http.MethodPost, "/api/waitlist/join", strings.NewReader(joinBody("fresh@example.com")))
	req.RemoteAddr = "203.0.113.10:4000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("other client status = %d, want 201", rec.Code)
	}
}

func TestHandleStats_AdminOnly(t *testing.T) {
	h, _ := newTestWaitlistHandler(t, nil)
	mux := serveWaitlist(h)

	req := httptest.NewRequest(http.MethodGet, "/api/waitlist/stats", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/waitlist/stats", nil)
	req.Header.Set("Authorization", "Bearer test-admin-token")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleReleaseBatch_GatePaused(t *testing.T) {
	paused := fixedGate{eval: gate.Evaluation{InvitesAllowed: false, TrustScore: 0.4}}
	h, svc := newTestWaitlistHandler(t, paused)
	mux := serveWaitlist(h)

	if _, err := svc.Join(context.Background(), "a@example.com", validUseCase, "agency"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/invites/release-batch", strings.NewReader(`{"batch_size":5}`))
	req.Header.Set("Authorization", "Bearer test-admin-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusLocked {
		t.Fatalf("status = %d, want 423: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleReleaseBatch_Healthy(t *testing.T) {
	open := fixedGate{eval: gate.Evaluation{InvitesAllowed: true, TrustScore: 1}}
	h, svc := newTestWaitlistHandler(t, open)
	mux := serveWaitlist(h)

	if _, err := svc.Join(context.Background(), "a@example.com", validUseCase, "agency"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/invites/release-batch", strings.NewReader(`{"batch_size":5}`))
	req.Header.Set("Authorization", "Bearer test-admin-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var resp releaseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Generated != 1 || len(resp.Codes) != 1 || resp.BatchID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// An empty queue on the next release is a 404.
	req = httptest.NewRequest(http.MethodPost, "/api/invites/release-batch", strings.NewReader(`{"batch_size":5}`))
	req.Header.Set("Authorization", "Bearer test-admin-token")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty queue status = %d, want 404", rec.Code)
	}
}
