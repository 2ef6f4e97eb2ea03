package password

import (
	"errors"
	"testing"
)

// cheapConfig keeps argon2 affordable in tests.
func cheapConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	return cfg
}

func TestHashRoundTrip(t *testing.T) {
	cfg := cheapConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	ok, err := cfg.Verify(h, "this is a strong password 123!")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("correct password did not verify")
	}

	ok, err = cfg.Verify(h, "wrong password")
	if err != nil {
		t.Fatalf("Verify wrong: %v", err)
	}
	if ok {
		t.Fatal("wrong password verified")
	}
}

func TestValidate_Lengths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("err = %v, want ErrPasswordTooShort", err)
	}
	if err := cfg.Validate("this password is definitely too long"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("err = %v, want ErrPasswordTooLong", err)
	}
	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	cfg := DefaultConfig()

	for _, encoded := range []string{
		"not-a-hash",
		"$argon2i$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=3,p=1$c2FsdA$aGFzaA",
	} {
		ok, err := cfg.Verify(encoded, "whatever")
		if !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("Verify(%q) err = %v, want ErrInvalidHash", encoded, err)
		}
		if ok {
			t.Fatalf("Verify(%q) = true for malformed hash", encoded)
		}
	}
}

func TestVerify_RefusesInflatedCosts(t *testing.T) {
	cfg := cheapConfig()

	h, err := cfg.Hash("a perfectly fine password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	// Verification under a config whose ceilings sit far below the hash's
	// recorded costs must refuse rather than do the work.
	small := cfg
	small.Params.MemoryKiB = cfg.Params.MemoryKiB / 4
	if _, err := small.Verify(h, "a perfectly fine password"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("err = %v, want ErrInvalidHash for oversized params", err)
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true
	cfg.Policy.MinLength = 8

	for _, pw := range []string{"password", "11111111", "12345678901"} {
		if err := cfg.Validate(pw); !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("Validate(%q) = %v, want ErrWeakPassword", pw, err)
		}
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
