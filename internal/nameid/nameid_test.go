package nameid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNoCollision(t *testing.T) {
	name, err := Generate(func(string) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.NoError(t, ValidateSessionName(name))
}

func TestGenerateRetriesOnCollision(t *testing.T) {
	calls := 0
	name, err := Generate(func(string) (bool, error) {
		calls++
		return calls <= 3, nil // first 3 draws collide, 4th is free
	})
	require.NoError(t, err)
	assert.NoError(t, ValidateSessionName(name))
	assert.Equal(t, 4, calls)
}

func TestGenerateFallsBackAfterMaxRetries(t *testing.T) {
	name, err := Generate(func(string) (bool, error) { return true, nil })
	require.NoError(t, err)
	assert.NoError(t, ValidateSessionName(name))
}

func TestGeneratePropagatesExistsError(t *testing.T) {
	_, err := Generate(func(string) (bool, error) { return false, assert.AnError })
	assert.Error(t, err)
}

func TestBranchForSession(t *testing.T) {
	assert.Equal(t, "para/demo", BranchForSession("", "demo"))
	assert.Equal(t, "work/demo", BranchForSession("work", "demo"))
}

func TestArchivedBranchName(t *testing.T) {
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "para/archived/20260731120000/demo", ArchivedBranchName("", ts, "demo"))
}
