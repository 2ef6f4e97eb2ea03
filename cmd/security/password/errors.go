package password

import "errors"

// Sentinel errors surfaced to the signup and verification paths.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("password too weak")
	ErrInvalidHash      = errors.New("malformed password hash")
)
