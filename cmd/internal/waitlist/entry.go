package waitlist

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Lifecycle of a waitlist entry.
const (
	StatusPending = "pending"
	StatusInvited = "invited"
	StatusJoined  = "joined"
)

const maxUseCaseBytes = 1000

// Entry is one signup waiting for access.
type Entry struct {
	Email         string     `json:"email"`
	EmailHash     string     `json:"email_hash"`
	UseCase       string     `json:"use_case"`
	Persona       string     `json:"persona"`
	PriorityScore float64    `json:"priority_score"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	InvitedAt     *time.Time `json:"invited_at,omitempty"`
}

// NewEntry builds a pending entry. The email hash lets reporting queries
// avoid handling the raw address.
func NewEntry(email, useCase, persona string, score float64, now time.Time) Entry {
	sum := sha256.Sum256([]byte(email))
	return Entry{
		Email:         email,
		EmailHash:     hex.EncodeToString(sum[:]),
		UseCase:       useCase,
		Persona:       persona,
		PriorityScore: score,
		Status:        StatusPending,
		CreatedAt:     now.UTC(),
	}
}

var validPersonas = map[string]struct{}{
	"solo_founder":    {},
	"small_team":      {},
	"agency":          {},
	"content_creator": {},
	"other":           {},
}

// ValidPersona reports whether the persona is one the product recognizes.
func ValidPersona(p string) bool {
	_, ok := validPersonas[p]
	return ok
}

// SanitizeUseCase strips markup-significant characters from free-form user
// text and caps its length.
func SanitizeUseCase(text string) string {
	text = strings.TrimSpace(text)
	replacer := strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "&", "")
	text = replacer.Replace(text)
	if len(text) > maxUseCaseBytes {
		text = text[:maxUseCaseBytes]
	}
	return text
}
