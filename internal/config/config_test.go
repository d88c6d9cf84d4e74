package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFromDirMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	require.Equal(t, "para", cfg.Git.BranchPrefix)
	require.True(t, cfg.Git.AutoStage)
	require.False(t, cfg.Git.AutoCommit)
	require.Equal(t, 3, cfg.Session.ArchiveKeep)
	require.Equal(t, DefaultImage, cfg.Docker.DefaultImage)
	require.Equal(t, 3, cfg.Docker.PoolMax)
	require.False(t, cfg.Telemetry.Enabled)
}

func TestLoadFromDirReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := `{
		"ide": {"name": "vscode", "command": "code"},
		"git": {"branchPrefix": "dev", "autoCommit": true},
		"session": {"archiveKeep": 7},
		"docker": {"enabled": true, "defaultImage": "custom:latest", "poolMax": 5}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o644))

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	require.Equal(t, "vscode", cfg.IDE.Name)
	require.Equal(t, "code", cfg.IDE.Command)
	require.Equal(t, "dev", cfg.Git.BranchPrefix)
	require.True(t, cfg.Git.AutoCommit)
	require.True(t, cfg.Git.AutoStage, "unset fields still take their default")
	require.Equal(t, 7, cfg.Session.ArchiveKeep)
	require.True(t, cfg.Docker.Enabled)
	require.Equal(t, "custom:latest", cfg.Docker.DefaultImage)
	require.Equal(t, 5, cfg.Docker.PoolMax)
}

func TestLoadFromDirMalformedJSONFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0o644))

	_, err := LoadFromDir(dir)
	require.Error(t, err)
}

func TestLoadFromDirEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PARA_GIT_BRANCHPREFIX", "envprefix")

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	require.Equal(t, "envprefix", cfg.Git.BranchPrefix)
}

func TestNormalizeRejectsZeroOrNegativeArchiveKeep(t *testing.T) {
	dir := t.TempDir()
	content := `{"session": {"archiveKeep": 0}, "docker": {"poolMax": -1}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o644))

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Session.ArchiveKeep)
	require.Equal(t, 3, cfg.Docker.PoolMax)
}
