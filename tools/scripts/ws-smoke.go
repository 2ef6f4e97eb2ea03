// Package main provides a CI-friendly smoke test for the alert feed.
//
// It validates:
//   - handshake + subprotocol selection on /ws/alerts
//   - the retained gate state arrives on connect
//   - a forced evaluation (POST /api/quality/evaluate-gate) fans out
//     to a connected subscriber with a well-formed event
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	feedSubprotocol = "vobee.alerts.v1"
	maxReadBytes    = 1 << 20 // 1MiB
)

// feedEvent mirrors the alert feed wire format.
type feedEvent struct {
	Type           string    `json:"type"`
	ID             string    `json:"id"`
	TS             time.Time `json:"ts"`
	InvitesAllowed bool      `json:"invites_allowed"`
	TrustScore     float64   `json:"trust_score"`
	Health         string    `json:"health"`
	Alerts         []struct {
		ID       string  `json:"id"`
		Severity string  `json:"severity"`
		Metric   string  `json:"metric"`
		Value    float64 `json:"value"`
	} `json:"alerts"`
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws/alerts", "WebSocket URL of the alert feed")
		apiURL  = flag.String("api", "http://127.0.0.1:8080", "HTTP base URL for triggering an evaluation")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()

	conn := mustConnect(root, *wsURL, *origin, *timeout)
	defer closeWS(conn)

	// The hub replays the retained state; a fresh server may not have
	// evaluated yet, so the first read is allowed to time out.
	if ev, ok := tryReadEvent(root, conn, 1500*time.Millisecond); ok {
		if *verbose {
			fmt.Printf("retained: id=%s health=%s trust=%.2f\n", ev.ID, ev.Health, ev.TrustScore)
		}
		assertEvent(ev)
	}

	mustTriggerEvaluation(root, *apiURL, *timeout)

	ev, ok := tryReadEvent(root, conn, *timeout)
	if !ok {
		fatalf("no event received after forcing an evaluation")
	}
	assertEvent(ev)

	fmt.Printf("OK: event_id=%s health=%s trust_score=%.2f invites_allowed=%v alerts=%d\n",
		ev.ID, ev.Health, ev.TrustScore, ev.InvitesAllowed, len(ev.Alerts))
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, wsURL, origin string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{feedSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}

	if got := conn.Subprotocol(); got != feedSubprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, feedSubprotocol)
	}

	conn.SetReadLimit(maxReadBytes)
	return conn
}

func tryReadEvent(parent context.Context, conn *websocket.Conn, timeout time.Duration) (feedEvent, bool) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return feedEvent{}, false
		}
		fatalf("read: %v", err)
	}

	var ev feedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		fatalf("unmarshal event: %v", err)
	}
	return ev, true
}

func assertEvent(ev feedEvent) {
	if ev.Type != "gate.evaluation" {
		fatalf("unexpected event type: %q", ev.Type)
	}
	if strings.TrimSpace(ev.ID) == "" {
		fatalf("event missing id")
	}
	if ev.TS.IsZero() {
		fatalf("event missing ts")
	}
	if ev.TrustScore < 0 || ev.TrustScore > 1 {
		fatalf("trust score out of range: %v", ev.TrustScore)
	}
	switch ev.Health {
	case "healthy", "warning", "critical":
	default:
		fatalf("unexpected health: %q", ev.Health)
	}
}

func mustTriggerEvaluation(parent context.Context, apiURL string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(apiURL, "/")+"/api/quality/evaluate-gate", nil)
	if err != nil {
		fatalf("build evaluate request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("evaluate-gate: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fatalf("evaluate-gate: unexpected status %d", resp.StatusCode)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "SMOKE FAIL: "+format+"\n", args...)
	os.Exit(1)
}
