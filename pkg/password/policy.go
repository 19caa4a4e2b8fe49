// Package password enforces the credential policy at creation time and
// hashes/verifies password digests. Login never re-validates the policy,
// it only compares hashes.
package password

import (
	"strings"
	"unicode"

	"github.com/veridian-id/veridian/pkg/config"
)

const specialChars = `!@#$%^&*()_+-=[]{}|;:,.<>?~`

// Policy is the single canonical password-policy shape for the whole
// codebase.
type Policy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
	MinUniqueChars   int
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:        8,
		MaxLength:        128,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   true,
		MinUniqueChars:   4,
	}
}

// PolicyFromConfig builds a policy from the loaded configuration.
func PolicyFromConfig(cfg config.PasswordConfig) Policy {
	return Policy{
		MinLength:        cfg.MinLength,
		MaxLength:        cfg.MaxLength,
		RequireUppercase: cfg.RequireUppercase,
		RequireLowercase: cfg.RequireLowercase,
		RequireDigit:     cfg.RequireDigit,
		RequireSpecial:   cfg.RequireSpecial,
		MinUniqueChars:   cfg.MinUniqueChars,
	}
}

// Violation identifies one failed policy rule.
type Violation string

const (
	ViolationTooShort         Violation = "too_short"
	ViolationTooLong          Violation = "too_long"
	ViolationMissingUppercase Violation = "missing_uppercase"
	ViolationMissingLowercase Violation = "missing_lowercase"
	ViolationMissingDigit     Violation = "missing_digit"
	ViolationMissingSpecial   Violation = "missing_special_char"
	ViolationWhitespace       Violation = "contains_whitespace"
	ViolationTooFewUnique     Violation = "too_few_unique_chars"
)

// Validate checks raw against the policy and returns every failed rule.
// An empty result means the password is acceptable.
func (p Policy) Validate(raw string) []Violation {
	var violations []Violation

	if len(raw) < p.MinLength {
		violations = append(violations, ViolationTooShort)
	}
	if p.MaxLength > 0 && len(raw) > p.MaxLength {
		violations = append(violations, ViolationTooLong)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial, hasSpace bool
	unique := make(map[rune]struct{}, len(raw))
	for _, r := range raw {
		unique[r] = struct{}{}
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSpace(r):
			hasSpace = true
		}
		if strings.ContainsRune(specialChars, r) {
			hasSpecial = true
		}
	}

	if p.RequireUppercase && !hasUpper {
		violations = append(violations, ViolationMissingUppercase)
	}
	if p.RequireLowercase && !hasLower {
		violations = append(violations, ViolationMissingLowercase)
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, ViolationMissingDigit)
	}
	if p.RequireSpecial && !hasSpecial {
		violations = append(violations, ViolationMissingSpecial)
	}
	if hasSpace {
		violations = append(violations, ViolationWhitespace)
	}
	if p.MinUniqueChars > 0 && len(unique) < p.MinUniqueChars {
		violations = append(violations, ViolationTooFewUnique)
	}

	return violations
}
