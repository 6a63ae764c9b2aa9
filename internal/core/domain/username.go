package domain

import (
	"fmt"
	"strings"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 30
)

// ValidationReason identifies why a candidate username was rejected.
type ValidationReason string

const (
	ReasonTooShort          ValidationReason = "too_short"
	ReasonTooLong           ValidationReason = "too_long"
	ReasonInvalidCharacters ValidationReason = "invalid_characters"
	ReasonEdgeHyphen        ValidationReason = "leading_or_trailing_hyphen"
	ReasonConsecutiveHyphen ValidationReason = "consecutive_hyphens"
	ReasonReserved          ValidationReason = "reserved"
)

// ValidationError reports a malformed username candidate. It is user-correctable.
type ValidationError struct {
	Candidate string
	Reason    ValidationReason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("username %q is invalid: %s", e.Candidate, e.Reason)
}

// Message returns a human readable explanation suitable for form feedback.
func (e *ValidationError) Message() string {
	switch e.Reason {
	case ReasonTooShort:
		return fmt.Sprintf("Username must be at least %d characters", UsernameMinLength)
	case ReasonTooLong:
		return fmt.Sprintf("Username must be at most %d characters", UsernameMaxLength)
	case ReasonInvalidCharacters:
		return "Username can only contain lowercase letters, numbers, and hyphens"
	case ReasonEdgeHyphen:
		return "Username cannot start or end with a hyphen"
	case ReasonConsecutiveHyphen:
		return "Username cannot contain consecutive hyphens"
	case ReasonReserved:
		return "This username is reserved"
	default:
		return "Username is invalid"
	}
}

// reservedUsernames are subdomains used for platform routing.
var reservedUsernames = map[string]struct{}{
	"app":     {},
	"auth":    {},
	"api":     {},
	"admin":   {},
	"cdn":     {},
	"img":     {},
	"static":  {},
	"www":     {},
	"support": {},
	"status":  {},
	"mail":    {},
	"m":       {},
	"dev":     {},
	"test":    {},
	"stage":   {},
}

// IsReservedUsername reports whether the name is held back for platform routing.
func IsReservedUsername(name string) bool {
	_, ok := reservedUsernames[strings.ToLower(name)]
	return ok
}

// NormalizeUsername lowercases raw input, drops characters outside [a-z0-9-],
// collapses hyphen runs and trims hyphens from both ends.
func NormalizeUsername(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	lastHyphen := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == '-':
			if !lastHyphen {
				b.WriteRune(r)
			}
			lastHyphen = true
		}
	}

	return strings.Trim(b.String(), "-")
}

// ValidateUsername checks a candidate against the username rules. It does not normalize.
func ValidateUsername(candidate string) error {
	reject := func(reason ValidationReason) error {
		return &ValidationError{Candidate: candidate, Reason: reason}
	}

	if len(candidate) < UsernameMinLength {
		return reject(ReasonTooShort)
	}
	if len(candidate) > UsernameMaxLength {
		return reject(ReasonTooLong)
	}
	for i := 0; i < len(candidate); i++ {
		c := candidate[i]
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '-' {
			return reject(ReasonInvalidCharacters)
		}
	}
	if strings.HasPrefix(candidate, "-") || strings.HasSuffix(candidate, "-") {
		return reject(ReasonEdgeHyphen)
	}
	if strings.Contains(candidate, "--") {
		return reject(ReasonConsecutiveHyphen)
	}
	if IsReservedUsername(candidate) {
		return reject(ReasonReserved)
	}

	return nil
}
