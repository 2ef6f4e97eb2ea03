package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// AdminToken protects the operator endpoints (metrics push, batch
	// release, stats). Empty means those endpoints refuse all requests.
	AdminToken string

	// Admission gate pause cutoffs.
	GateTrustThreshold float64
	GateChurnThreshold float64

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, VOBEE_ADMIN_TOKEN MUST be set (>= 16 bytes) or startup fails.
	RequireAdminToken bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("VOBEE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("VOBEE_LOG_LEVEL", "info"),
		LogFormat: EnvString("VOBEE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("VOBEE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("VOBEE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("VOBEE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("VOBEE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("VOBEE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("VOBEE_DATABASE_URL", ""),
		DBSchema:    EnvString("VOBEE_DB_SCHEMA", "vobee"),
		DBMaxConns:  EnvInt32("VOBEE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("VOBEE_DB_MIN_CONNS", 0),

		AdminToken: EnvString("VOBEE_ADMIN_TOKEN", ""),

		GateTrustThreshold: EnvFloat("VOBEE_GATE_TRUST_THRESHOLD", 0.7),
		GateChurnThreshold: EnvFloat("VOBEE_GATE_CHURN_THRESHOLD", 0.2),

		CORSAllowedOrigins:   EnvCSV("VOBEE_CORS_ALLOWED_ORIGINS", ""),
		CORSAllowCredentials: EnvBool("VOBEE_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("VOBEE_CORS_MAX_AGE_SECONDS", 600),

		ReadinessRequireDB: EnvBool("VOBEE_READINESS_REQUIRE_DB", false),

		RequireAdminToken: EnvBool("VOBEE_REQUIRE_ADMIN_TOKEN", false),
	}
}
