// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	digitPattern   = regexp.MustCompile(`[0-9]`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?]`)
	domainPattern  = regexp.MustCompile(`^([a-z0-9]([a-z0-9\-]*[a-z0-9])?\.)+[a-z]{2,}$`)
)

// ValidatePassword checks that the shared test password would also be accepted
// by the backend's signup rules, so seeded accounts stay usable for login.
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("password must be at least 12 characters long")
	}

	if len(password) > 72 {
		// bcrypt ignores everything past 72 bytes
		return fmt.Errorf("password must not exceed 72 bytes")
	}

	hasUpper, hasLower := false, false
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}

	if !digitPattern.MatchString(password) {
		return fmt.Errorf("password must contain at least one digit")
	}

	if !specialPattern.MatchString(password) {
		return fmt.Errorf("password must contain at least one special character (!@#$%%^&*)")
	}

	return nil
}

// ValidateEmailDomain checks the suffix appended to generated usernames.
func ValidateEmailDomain(domain string) error {
	if strings.HasPrefix(domain, "@") {
		return fmt.Errorf("email domain must not start with '@'")
	}
	if len(domain) > 253 {
		return fmt.Errorf("email domain must not exceed 253 characters")
	}
	if !domainPattern.MatchString(domain) {
		return fmt.Errorf("invalid email domain %q", domain)
	}
	return nil
}
