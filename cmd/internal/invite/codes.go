package invite

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	codePrefix    = "VOBEE-"
	codeHexDigits = 12
)

// CodePattern matches a well-formed invite code.
var CodePattern = regexp.MustCompile(`^VOBEE-[0-9A-F]{12}$`)

// NewCode returns a fresh invite code: VOBEE- plus 12 uppercase hex digits
// from a cryptographically secure source.
func NewCode() (string, error) {
	b := make([]byte, codeHexDigits/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("invite: code entropy: %w", err)
	}
	return codePrefix + strings.ToUpper(hex.EncodeToString(b)), nil
}

// NormalizeCode canonicalizes caller-supplied codes for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewBatchID returns a sortable batch identifier.
func NewBatchID(now time.Time) string {
	return "BATCH-" + ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
