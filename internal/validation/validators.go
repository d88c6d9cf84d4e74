// Package validation provides input validation for identifiers that end up
// embedded in file paths or passed to git. This package has no internal
// dependencies, to avoid import cycles with the packages that call it.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// sessionNameRegex matches the allowed session-name charset: [A-Za-z0-9_-], length 1..64.
var sessionNameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateSessionName enforces the charset and length rule for session names.
func ValidateSessionName(name string) error {
	if name == "" {
		return fmt.Errorf("session name cannot be empty")
	}
	if !sessionNameRegex.MatchString(name) {
		return fmt.Errorf("invalid session name %q: must match [A-Za-z0-9_-]{1,64}", name)
	}
	return nil
}

// branchInvalidSequences lists substrings forbidden anywhere in a branch name.
var branchInvalidSequences = []string{"..", "@{", "//", "/."}

// branchInvalidChars lists individual characters forbidden in a branch name.
const branchInvalidChars = " ~^:?*[\\@"

// ValidateBranchName enforces the allowed git branch-name rules:
// no leading '-' or '.'; no trailing '/'; none of the forbidden sequences;
// no space or any of ~ ^ : ? * [ \ @.
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid branch name %q: cannot start with '-' or '.'", name)
	}
	if strings.HasSuffix(name, "/") {
		return fmt.Errorf("invalid branch name %q: cannot end with '/'", name)
	}
	for _, seq := range branchInvalidSequences {
		if strings.Contains(name, seq) {
			return fmt.Errorf("invalid branch name %q: must not contain %q", name, seq)
		}
	}
	if strings.ContainsAny(name, branchInvalidChars) {
		return fmt.Errorf("invalid branch name %q: must not contain spaces or any of %s", name, branchInvalidChars)
	}
	return nil
}

// pathSafeRegex matches alphanumeric characters, underscores, and hyphens only.
var pathSafeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidatePathSafeID validates that an identifier is safe to embed directly
// into a file path (used for log file names).
func ValidatePathSafeID(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !pathSafeRegex.MatchString(id) {
		return fmt.Errorf("invalid identifier %q: must be alphanumeric with underscores/hyphens only", id)
	}
	return nil
}
