package app

import "errors"

const minAdminTokenBytes = 16

// ValidateSecurityConfig enforces the deployment security policy at startup.
//
// Fail-fast is intentional: a production deployment that silently runs
// with an unset or guessable admin token would expose batch release and
// metrics push to anyone.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireAdminToken {
		return nil
	}

	// Bytes, not runes: the token is compared as raw bytes.
	if cfg.AdminToken == "" {
		return errors.New("security policy: VOBEE_REQUIRE_ADMIN_TOKEN=true but VOBEE_ADMIN_TOKEN is missing")
	}
	if len(cfg.AdminToken) < minAdminTokenBytes {
		return errors.New("security policy: VOBEE_REQUIRE_ADMIN_TOKEN=true but VOBEE_ADMIN_TOKEN is too short (min 16 bytes)")
	}

	return nil
}
