// Package validation provides input validation rules for user-supplied fields.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 128
	minUsernameLen = 3
	maxUsernameLen = 30
	maxBioLen      = 160
	minDisplayName = 3
	maxDisplayName = 50
)

var (
	usernameRe = regexp.MustCompile(`^[a-z0-9_]+$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	websiteRe  = regexp.MustCompile(`^(https?://)?([\w-]+\.)+[a-z]{2,}(/\S*)?$`)
)

// ValidateUsername checks length and character set. Usernames are stored
// lowercase; callers should normalize before validating.
func ValidateUsername(username string) error {
	if len(username) < minUsernameLen {
		return fmt.Errorf("username must be at least %d characters", minUsernameLen)
	}
	if len(username) > maxUsernameLen {
		return fmt.Errorf("username must not exceed %d characters", maxUsernameLen)
	}
	if !usernameRe.MatchString(username) {
		return fmt.Errorf("username may only contain lowercase letters, digits and underscores")
	}
	return nil
}

// ValidateEmail checks the address shape, not deliverability.
func ValidateEmail(email string) error {
	if !emailRe.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePassword enforces the minimum credential policy.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return fmt.Errorf("password must not exceed %d characters", maxPasswordLen)
	}
	return nil
}

// ValidateDisplayName checks the optional profile display name. Limits are
// in characters, not bytes.
func ValidateDisplayName(name string) error {
	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) < minDisplayName {
		return fmt.Errorf("display name must be at least %d characters", minDisplayName)
	}
	if utf8.RuneCountInString(trimmed) > maxDisplayName {
		return fmt.Errorf("display name must not exceed %d characters", maxDisplayName)
	}
	return nil
}

// ValidateBio checks the profile bio length in characters.
func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > maxBioLen {
		return fmt.Errorf("bio must not exceed %d characters", maxBioLen)
	}
	return nil
}

// ValidateWebsite checks the optional website URL. Empty is allowed.
func ValidateWebsite(website string) error {
	if website == "" {
		return nil
	}
	if !websiteRe.MatchString(strings.ToLower(website)) {
		return fmt.Errorf("invalid website URL")
	}
	return nil
}
