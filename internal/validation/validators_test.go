package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSessionName(t *testing.T) {
	valid := []string{"a", "demo", "feature-123", "my_session", strings.Repeat("x", 64)}
	for _, name := range valid {
		assert.NoError(t, ValidateSessionName(name), "expected %q to be valid", name)
	}

	invalid := []string{"", "has space", "has/slash", strings.Repeat("x", 65), "weird!char"}
	for _, name := range invalid {
		assert.Error(t, ValidateSessionName(name), "expected %q to be invalid", name)
	}
}

func TestValidateBranchName(t *testing.T) {
	valid := []string{"para/demo", "feature/foo-bar", "main"}
	for _, name := range valid {
		assert.NoError(t, ValidateBranchName(name), "expected %q to be valid", name)
	}

	invalid := []string{
		"", "-leading-dash", ".leading-dot", "trailing-slash/",
		"has..dots", "has@{at", "has//double", "has/.dotslash",
		"has space", "has~tilde", "has^caret", "has:colon",
		"has?question", "has*star", "has[bracket", "has\\backslash", "has@at",
	}
	for _, name := range invalid {
		assert.Error(t, ValidateBranchName(name), "expected %q to be invalid", name)
	}
}

func TestValidatePathSafeID(t *testing.T) {
	assert.NoError(t, ValidatePathSafeID("abc123-DEF_456"))
	assert.Error(t, ValidatePathSafeID(""))
	assert.Error(t, ValidatePathSafeID("../etc/passwd"))
	assert.Error(t, ValidatePathSafeID("has/slash"))
}
