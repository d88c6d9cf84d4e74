package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/para-dev/para/internal/config"
)

func TestResolveDispatchArgsNoArgsFails(t *testing.T) {
	_, _, err := resolveDispatchArgs(nil, "")
	require.Error(t, err)
}

func TestResolveDispatchArgsPromptOnly(t *testing.T) {
	prompt, name, err := resolveDispatchArgs([]string{"fix the bug"}, "")
	require.NoError(t, err)
	require.Equal(t, "fix the bug", prompt)
	require.Empty(t, name)
}

func TestResolveDispatchArgsNameAndPrompt(t *testing.T) {
	prompt, name, err := resolveDispatchArgs([]string{"my-session", "fix the bug"}, "")
	require.NoError(t, err)
	require.Equal(t, "fix the bug", prompt)
	require.Equal(t, "my-session", name)
}

func TestResolveDispatchArgsFileOverridesPrompt(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(file, []byte("do the thing"), 0o644))

	prompt, name, err := resolveDispatchArgs([]string{"my-session"}, file)
	require.NoError(t, err)
	require.Equal(t, "do the thing", prompt)
	require.Equal(t, "my-session", name)
}

func TestParseTodosEmpty(t *testing.T) {
	done, total, err := parseTodos("")
	require.NoError(t, err)
	require.Zero(t, done)
	require.Zero(t, total)
}

func TestParseTodosWellFormed(t *testing.T) {
	done, total, err := parseTodos("3/7")
	require.NoError(t, err)
	require.Equal(t, 3, done)
	require.Equal(t, 7, total)
}

func TestParseTodosMalformed(t *testing.T) {
	_, _, err := parseTodos("not-a-fraction")
	require.Error(t, err)
}

func TestTestResultFromFlag(t *testing.T) {
	require.EqualValues(t, "Passed", testResultFromFlag("Passed"))
	require.EqualValues(t, "Failed", testResultFromFlag("Failed"))
	require.EqualValues(t, "Unknown", testResultFromFlag("garbage"))
}

func TestConfidenceFromFlag(t *testing.T) {
	require.EqualValues(t, "Low", confidenceFromFlag("Low"))
	require.EqualValues(t, "High", confidenceFromFlag("High"))
	require.EqualValues(t, "Medium", confidenceFromFlag("garbage"))
}

func TestResolveEditorCommandFallbackChain(t *testing.T) {
	cmd, args := resolveEditorCommand(config.IDEConfig{Wrapper: "code --wait ."})
	require.Equal(t, "code", cmd)
	require.Equal(t, []string{"--wait", "."}, args)

	cmd, args = resolveEditorCommand(config.IDEConfig{Command: "vim"})
	require.Equal(t, "vim", cmd)
	require.Empty(t, args)

	cmd, args = resolveEditorCommand(config.IDEConfig{Name: "cursor"})
	require.Equal(t, "cursor", cmd)
	require.Empty(t, args)

	cmd, args = resolveEditorCommand(config.IDEConfig{})
	require.Equal(t, "bash", cmd)
	require.Empty(t, args)
}
