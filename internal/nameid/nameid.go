// Package nameid implements the Name & ID Service (C3): generating
// human-friendly, collision-checked session names, and validating
// session/branch identifiers. A tight package with its own random-suffix
// fallback and no dependency beyond validation.
package nameid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/para-dev/para/internal/validation"
)

// maxCollisionRetries bounds how many adjective_noun draws are attempted
// before falling back to a random suffix.
const maxCollisionRetries = 20

// Exists is satisfied by the session store: probes whether a name is
// already taken, active or archived, so the generator can retry on
// collision without importing the store package (avoids an import cycle).
type Exists func(name string) (bool, error)

// Generate draws "{adjective}_{noun}_{YYYYMMDD-HHMMSS}" from fixed word
// lists, retrying on collision up to maxCollisionRetries times, then
// appending a random hex suffix as a deterministic fallback.
func Generate(exists Exists) (string, error) {
	now := time.Now().UTC()
	stamp := now.Format("20060102-150405")

	for i := 0; i < maxCollisionRetries; i++ {
		adj := adjectives[secureIndex(len(adjectives))]
		noun := nouns[secureIndex(len(nouns))]
		candidate := fmt.Sprintf("%s_%s_%s", adj, noun, stamp)

		taken, err := exists(candidate)
		if err != nil {
			return "", fmt.Errorf("checking name collision: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}

	suffix, err := randomSuffix(4)
	if err != nil {
		return "", fmt.Errorf("generating fallback suffix: %w", err)
	}
	adj := adjectives[secureIndex(len(adjectives))]
	noun := nouns[secureIndex(len(nouns))]
	return fmt.Sprintf("%s_%s_%s_%s", adj, noun, stamp, suffix), nil
}

// ValidateSessionName re-exports the charset/length rule for callers that
// only need the Name & ID Service surface.
func ValidateSessionName(name string) error {
	return validation.ValidateSessionName(name)
}

// ValidateBranchName re-exports the git branch-name rule.
func ValidateBranchName(name string) error {
	return validation.ValidateBranchName(name)
}

// BranchForSession derives the branch name for a session given the
// configured prefix.
func BranchForSession(prefix, name string) string {
	if prefix == "" {
		prefix = "para"
	}
	return prefix + "/" + name
}

// ArchivedBranchName derives the archive-namespace branch name for a
// cancelled/finished session.
func ArchivedBranchName(prefix string, timestamp time.Time, name string) string {
	if prefix == "" {
		prefix = "para"
	}
	return fmt.Sprintf("%s/archived/%s/%s", prefix, timestamp.UTC().Format("20060102150405"), name)
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// secureIndex returns a random index in [0, n) using crypto/rand. If the
// system RNG is unavailable it returns 0 rather than failing.
func secureIndex(n int) int {
	if n <= 0 {
		return 0
	}
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return 0
	}
	v := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	return int(v % uint32(n))
}
