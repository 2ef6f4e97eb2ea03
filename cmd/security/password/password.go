package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// phcVersion is argon2.Version (0x13) as it appears in the encoded string.
const phcVersion = 19

// Hash derives an Argon2id hash of password and encodes it as
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<key_b64>.
// The encoded string is what gets stored on the account row.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		c.Params.Iterations,
		c.Params.MemoryKiB,
		c.Params.Parallelism,
		c.Params.KeyLength,
	)

	b64 := base64.RawStdEncoding
	enc := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcVersion,
		c.Params.MemoryKiB,
		c.Params.Iterations,
		c.Params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	)
	return enc, nil
}

// Verify reports whether password matches the stored encoded hash.
// (true, nil) on match, (false, nil) on mismatch, (false, ErrInvalidHash)
// when the stored string is malformed or carries unverifiable parameters.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	params, salt, expected, err := parseHash(encodedHash)
	if err != nil {
		return false, err
	}

	// The stored string is untrusted input. Refuse parameters far above our
	// own configuration so a crafted row cannot force pathological work.
	if !verifiable(params, c.Params) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(len(expected)), // #nosec G115 -- length bounded by verifiable().
	)

	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

// verifiable accepts hashes minted under older, cheaper settings but
// rejects anything more than twice our configured costs.
func verifiable(got Argon2idParams, limits Argon2idParams) bool {
	switch {
	case got.MemoryKiB > limits.MemoryKiB*2:
		return false
	case got.Iterations > limits.Iterations*2:
		return false
	case got.Parallelism > limits.Parallelism*2:
		return false
	case got.SaltLength < 8 || got.SaltLength > 64:
		return false
	case got.KeyLength < 16 || got.KeyLength > 128:
		return false
	}
	return true
}

// parseHash splits the encoded form back into parameters, salt and key.
func parseHash(encoded string) (Argon2idParams, []byte, []byte, error) {
	bad := func() (Argon2idParams, []byte, []byte, error) {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return bad()
	}
	if parts[2] != fmt.Sprintf("v=%d", phcVersion) {
		return bad()
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return bad()
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return bad()
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return bad()
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return bad()
	}

	params := Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by verifiable().
		KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by verifiable().
	}
	return params, salt, key, nil
}
