package waitlist

import (
	"regexp"
	"strings"
)

// Persona base weights. Unknown personas fall back to the "other" weight.
var personaWeights = map[string]int{
	"agency":          20,
	"small_team":      15,
	"solo_founder":    10,
	"content_creator": 8,
	"other":           5,
}

const fallbackPersonaWeight = 5

// Keywords that signal serious intent, English and Czech.
var highIntentKeywords = []string{
	"business", "client", "customer", "production", "team", "workflow",
	"automate", "scale", "revenue", "productivity", "professional",
	"enterprise", "agency", "company", "startup", "project", "management",
	"klient", "zákazník", "tým", "produkce", "automatizace", "firma",
	"podnikání", "projekt", "profesionální",
}

var disposableDomains = map[string]struct{}{
	"tempmail.com":       {},
	"throwaway.email":    {},
	"10minutemail.com":   {},
	"guerrillamail.com":  {},
	"mailinator.com":     {},
	"maildrop.cc":        {},
	"temp-mail.org":      {},
	"yopmail.com":        {},
	"fakeinbox.com":      {},
	"trashmail.com":      {},
	"mailnesia.com":      {},
	"mintemail.com":      {},
	"sharklasers.com":    {},
	"guerrillamail.info": {},
	"spam4.me":           {},
}

var disposablePatterns = []*regexp.Regexp{
	regexp.MustCompile(`temp.*mail`),
	regexp.MustCompile(`fake.*mail`),
	regexp.MustCompile(`trash.*mail`),
	regexp.MustCompile(`\.tk$`),
}

var emailFormatRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ScoreResult is the outcome of priority scoring a signup.
type ScoreResult struct {
	Score       float64        `json:"score"`
	Breakdown   map[string]int `json:"breakdown"`
	DomainValid bool           `json:"domain_valid"`
}

// CalculatePriorityScore ranks a signup by persona, use-case quality and
// email domain. The breakdown records each contributing component so the
// result can be explained to operators.
func CalculatePriorityScore(persona, useCase, email string) ScoreResult {
	breakdown := make(map[string]int)

	personaScore, ok := personaWeights[persona]
	if !ok {
		personaScore = fallbackPersonaWeight
	}
	breakdown["persona"] = personaScore
	score := personaScore

	// Longer descriptions tend to come from people who thought it through.
	wordCount := len(strings.Fields(useCase))
	switch {
	case wordCount >= 30:
		breakdown["detailed_use_case"] = 10
		score += 10
	case wordCount >= 15:
		breakdown["detailed_use_case"] = 5
		score += 5
	}

	lower := strings.ToLower(useCase)
	matches := 0
	for _, kw := range highIntentKeywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}
	switch {
	case matches >= 3:
		breakdown["high_intent_keywords"] = 5
		score += 5
	case matches >= 1:
		breakdown["high_intent_keywords"] = 3
		score += 3
	}

	breakdown["total"] = score

	return ScoreResult{
		Score:       float64(score),
		Breakdown:   breakdown,
		DomainValid: ValidateEmailDomain(email),
	}
}

// ValidateEmailDomain reports whether the email's domain looks like a real
// mailbox rather than a disposable address.
func ValidateEmailDomain(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	domain := strings.ToLower(email[at+1:])

	if _, bad := disposableDomains[domain]; bad {
		return false
	}
	for _, re := range disposablePatterns {
		if re.MatchString(domain) {
			return false
		}
	}
	return true
}

// ValidateEmailFormat checks the basic shape of an email address.
func ValidateEmailFormat(email string) bool {
	return emailFormatRe.MatchString(email)
}

// weeklyInviteRate is the assumed cadence of batch releases.
const weeklyInviteRate = 50

// EstimateWaitTime buckets a queue position into a human-readable estimate.
// Labels are bilingual to match the product's Czech/English audience.
func EstimateWaitTime(position int) string {
	weeks := float64(position) / weeklyInviteRate
	switch {
	case weeks < 1:
		return "méně než týden / less than a week"
	case weeks < 2:
		return "1-2 týdny / 1-2 weeks"
	case weeks < 4:
		return "2-4 týdny / 2-4 weeks"
	case weeks < 8:
		return "1-2 měsíce / 1-2 months"
	default:
		return "2+ měsíce / 2+ months"
	}
}
