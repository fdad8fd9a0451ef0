// Package validation provides request validation built on go-playground/validator
// plus the account rules shared by signup and profile updates.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 64
	minUsernameLen = 3
	maxUsernameLen = 30
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	specialChars  = `!@#$%^&*()_+-=[]{};':"\|,.<>/?~` + "`"
)

type rule struct {
	ok  func(string) bool
	msg string
}

func containsRune(pred func(rune) bool) func(string) bool {
	return func(s string) bool { return strings.IndexFunc(s, pred) >= 0 }
}

// Checked in order; the first failing rule is reported.
var passwordRules = []rule{
	{func(s string) bool { return len(s) >= minPasswordLen }, "password must be at least 8 characters long"},
	{func(s string) bool { return len(s) <= maxPasswordLen }, "password must not exceed 64 characters"},
	{containsRune(unicode.IsUpper), "password must contain at least one uppercase letter"},
	{containsRune(unicode.IsLower), "password must contain at least one lowercase letter"},
	{containsRune(unicode.IsDigit), "password must contain at least one digit"},
	{func(s string) bool { return strings.ContainsAny(s, specialChars) }, "password must contain at least one special character (!@#$%^&*)"},
}

var usernameRules = []rule{
	{func(s string) bool { return len(s) >= minUsernameLen }, "username must be at least 3 characters long"},
	{func(s string) bool { return len(s) <= maxUsernameLen }, "username must not exceed 30 characters"},
	{usernameRegex.MatchString, "username can only contain letters, numbers, underscores, and hyphens"},
	{func(s string) bool {
		return !strings.ContainsAny(s[:1], "_-") && !strings.ContainsAny(s[len(s)-1:], "_-")
	}, "username cannot start or end with underscore or hyphen"},
}

func check(rules []rule, s string) error {
	for _, r := range rules {
		if !r.ok(s) {
			return errors.New(r.msg)
		}
	}
	return nil
}

// ValidatePassword checks the signup password policy.
func ValidatePassword(password string) error {
	return check(passwordRules, password)
}

// ValidateUsername checks length, charset and edge characters of a handle.
func ValidateUsername(username string) error {
	return check(usernameRules, username)
}
