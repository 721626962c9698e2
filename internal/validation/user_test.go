package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid", "alice_01", false},
		{"min length", "abc", false},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 31), true},
		{"uppercase rejected", "Alice", true},
		{"spaces rejected", "a b c", true},
		{"dots rejected", "a.b.c", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("user@example.com"))
	assert.NoError(t, ValidateEmail("first.last@sub.domain.io"))
	assert.Error(t, ValidateEmail("missing-at.example.com"))
	assert.Error(t, ValidateEmail("spaces in@example.com"))
	assert.Error(t, ValidateEmail("user@nodot"))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("password1"))
	assert.NoError(t, ValidatePassword("12345678"))
	assert.Error(t, ValidatePassword("seven77"))
	assert.Error(t, ValidatePassword(strings.Repeat("x", 129)))
}

func TestValidateDisplayName(t *testing.T) {
	assert.NoError(t, ValidateDisplayName("Alice"))
	assert.Error(t, ValidateDisplayName("ab"))
	assert.Error(t, ValidateDisplayName("  a  "))
	assert.Error(t, ValidateDisplayName(strings.Repeat("n", 51)))

	// Two multibyte characters are still two characters, not four bytes.
	assert.Error(t, ValidateDisplayName("üü"))
	assert.NoError(t, ValidateDisplayName(strings.Repeat("ü", 50)))
}

func TestValidateBio(t *testing.T) {
	assert.NoError(t, ValidateBio(""))
	assert.NoError(t, ValidateBio(strings.Repeat("b", 160)))
	assert.Error(t, ValidateBio(strings.Repeat("b", 161)))

	// Limits count characters, not bytes.
	assert.NoError(t, ValidateBio(strings.Repeat("ü", 160)))
	assert.Error(t, ValidateBio(strings.Repeat("ü", 161)))
}

func TestValidateWebsite(t *testing.T) {
	assert.NoError(t, ValidateWebsite(""))
	assert.NoError(t, ValidateWebsite("https://example.com"))
	assert.NoError(t, ValidateWebsite("example.com/path"))
	assert.Error(t, ValidateWebsite("not a url"))
}
