// Package app wires the vobee server runtime: config, logging, storage,
// HTTP routes, and the alert feed gateway.
//
// It is intentionally small and deterministic to keep CI gates strict and behavior predictable.
package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vobee/cmd/internal/account"
	"vobee/cmd/internal/alertfeed"
	"vobee/cmd/internal/api"
	"vobee/cmd/internal/gate"
	"vobee/cmd/internal/invite"
	"vobee/cmd/internal/metrics"
	"vobee/cmd/internal/referral"
	"vobee/cmd/internal/waitlist"
	"vobee/cmd/security/password"
)

// App is the server runtime: it owns the HTTP wiring and the lifecycle of
// the shared DB pool.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	stats *metrics.Metrics
	feed  *alertfeed.Gateway

	gateH     *gate.Handler
	inviteH   *invite.Handler
	waitlistH *waitlist.Handler
	referralH *referral.Handler
	accountH  *account.Handler
}

// stores groups the per-domain persistence backends so the memory and
// postgres paths construct the same shape.
type stores struct {
	invites  invite.Store
	waitlist waitlist.Store
	referral referral.Store
	accounts account.Store
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	thresholds := gate.Thresholds{
		TrustScore: cfg.GateTrustThreshold,
		ChurnRate:  cfg.GateChurnThreshold,
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	st, dbPool, dbEnabled, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	inviteSvc, err := invite.NewService(st.invites)
	if err != nil {
		return nil, err
	}
	waitlistSvc, err := waitlist.NewService(st.waitlist,
		waitlist.WithLogger(log),
		waitlist.WithEmailSender(waitlist.NewLogEmailSender(log)),
	)
	if err != nil {
		return nil, err
	}
	referralSvc, err := referral.NewService(st.referral, referral.WithLogger(log))
	if err != nil {
		return nil, err
	}
	accountSvc, err := account.NewService(st.accounts,
		account.WithLogger(log),
		account.WithPasswordConfig(pwCfg),
		account.WithWaitlistMarker(waitlistSvc),
	)
	if err != nil {
		return nil, err
	}

	stats := metrics.New()
	admin := api.NewAdminAuth(cfg.AdminToken)

	feed := alertfeed.NewGateway(log, alertfeed.NewHub(log))

	snapshots := gate.NewSnapshotStore(gate.DefaultSnapshot())
	gateH := gate.NewHandler(log, snapshots, thresholds, evaluationSink{stats: stats, next: feed.Hub()})

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		stats:     stats,
		feed:      feed,
		gateH:     gateH,
		inviteH:   invite.NewHandler(log, inviteSvc, admin, accountSvc, stats),
		waitlistH: waitlist.NewHandler(log, waitlistSvc, admin, gateH, inviteSvc, stats),
		referralH: referral.NewHandler(log, referralSvc, inviteSvc, stats),
		accountH:  account.NewHandler(log, accountSvc, inviteSvc, referralSvc),
	}, nil
}

// evaluationSink moves the Prometheus counters on every gate evaluation
// before handing the event to the websocket feed.
type evaluationSink struct {
	stats *metrics.Metrics
	next  gate.Feed
}

func (s evaluationSink) Publish(ev gate.Evaluation) {
	s.stats.RecordGateEvaluation(ev.InvitesAllowed, ev.TrustScore)
	s.next.Publish(ev)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a)

	var handler http.Handler = mux
	handler = WithSecurityHeaders(handler)
	handler = WithCORS(handler, a.cfg, a.log)
	handler = WithRequestLogging(handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"base_url", base,
		"alert_feed", wsBaseURL(base)+"/ws/alerts",
		"db_enabled", a.dbEnabled,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

// newStores decides between Postgres-backed persistence and the in-memory dev stores.
func newStores(ctx context.Context, cfg Config, log Logger) (stores, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_stores")
		return stores{
			invites:  invite.NewMemoryStore(),
			waitlist: waitlist.NewMemoryStore(),
			referral: referral.NewMemoryStore(),
			accounts: account.NewMemoryStore(),
		}, nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return stores{}, nil, false, err
	}

	log.Info("db.enabled.postgres_stores", "schema", cfg.DBSchema)

	inviteStore, err := invite.NewPostgresStore(pool, invite.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return stores{}, nil, false, err
	}
	waitlistStore, err := waitlist.NewPostgresStore(pool, waitlist.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return stores{}, nil, false, err
	}
	referralStore, err := referral.NewPostgresStore(pool, referral.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return stores{}, nil, false, err
	}
	accountStore, err := account.NewPostgresStore(pool, account.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return stores{}, nil, false, err
	}

	return stores{
		invites:  inviteStore,
		waitlist: waitlistStore,
		referral: referralStore,
		accounts: accountStore,
	}, pool, true, nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL turns a listen address into a URL a local operator can
// open. Wildcard binds map to loopback.
func runtimeBaseURL(addr string) string {
	host, port, err := splitHostPortLoose(addr)
	if err != nil {
		return "http://" + addr
	}

	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return "http://" + host + ":" + port
}

func splitHostPortLoose(addr string) (string, string, error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", "", errors.New("no port")
	}
	host := addr[:i]
	port := addr[i+1:]
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	return host, port, nil
}

// wsBaseURL derives the websocket scheme from an HTTP base URL.
func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
