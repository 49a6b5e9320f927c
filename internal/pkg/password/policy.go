package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinLength is the inclusive lower bound on password length, counted in characters.
const MinLength = 7

// SpecialCharacters is the set a password must draw at least one character from.
const SpecialCharacters = `!@#$%^&*()_+=-{}:;"'<>,.?/|[]\`

// PolicyError describes why a password was rejected.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

// CheckStrength returns nil when pwd satisfies the password policy, otherwise a
// *PolicyError naming the first unmet rule. No maximum length is enforced here.
func CheckStrength(pwd string) error {
	if utf8.RuneCountInString(pwd) < MinLength {
		return &PolicyError{Reason: "password must be at least 7 characters long"}
	}
	if !strings.ContainsAny(pwd, SpecialCharacters) {
		return &PolicyError{Reason: "password must include at least one special character"}
	}
	if !strings.ContainsFunc(pwd, unicode.IsUpper) {
		return &PolicyError{Reason: "password must include at least one uppercase letter"}
	}
	return nil
}

// IsStrong is CheckStrength as a predicate.
func IsStrong(pwd string) bool {
	return CheckStrength(pwd) == nil
}
