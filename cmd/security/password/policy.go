package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate applies the signup password policy. Lengths are measured in
// runes so multibyte characters count once.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	if c.Policy.RejectVeryWeak && looksVeryWeak(password) {
		return ErrWeakPassword
	}
	return nil
}

// looksVeryWeak catches only the obviously throwaway choices. Anything
// resembling real strength estimation is out of scope here.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	runs := 0
	digitsOnly := true
	var prev rune
	for i, r := range s {
		if i == 0 || r != prev {
			runs++
		}
		prev = r
		if !unicode.IsDigit(r) {
			digitsOnly = false
		}
	}

	// A single repeated character, or a short PIN-like digit string.
	if runs == 1 {
		return true
	}
	if digitsOnly && utf8.RuneCountInString(s) < 12 {
		return true
	}

	switch strings.ToLower(s) {
	case "password", "password123", "123456", "123456789", "qwerty", "qwerty123", "11111111":
		return true
	}
	return false
}
