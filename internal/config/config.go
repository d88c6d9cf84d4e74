// Package config loads the per-user configuration file documented as
// read-only to the core: ide, directories, git, session, and docker
// sections. Loading goes through viper so environment overrides and
// defaults compose the same way other services built on this stack
// configure themselves.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/para-dev/para/internal/paths"
)

// Config mirrors the documented per-user configuration schema.
type Config struct {
	IDE         IDEConfig         `mapstructure:"ide"`
	Directories DirectoriesConfig `mapstructure:"directories"`
	Git         GitConfig         `mapstructure:"git"`
	Session     SessionConfig     `mapstructure:"session"`
	Docker      DockerConfig      `mapstructure:"docker"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// IDEConfig configures the editor `resume` opens.
type IDEConfig struct {
	Name    string `mapstructure:"name"`
	Command string `mapstructure:"command"`
	Wrapper string `mapstructure:"wrapper"`
}

// DirectoriesConfig overrides where per-repository state lives.
type DirectoriesConfig struct {
	SubtreesDir string `mapstructure:"subtreesDir"`
	StateDir    string `mapstructure:"stateDir"`
}

// GitConfig configures branch naming and integration defaults.
type GitConfig struct {
	BranchPrefix               string `mapstructure:"branchPrefix"`
	AutoStage                  bool   `mapstructure:"autoStage"`
	AutoCommit                 bool   `mapstructure:"autoCommit"`
	DefaultIntegrationStrategy string `mapstructure:"defaultIntegrationStrategy"`
}

// SessionConfig configures session lifecycle behavior.
type SessionConfig struct {
	PreserveOnFinish bool `mapstructure:"preserveOnFinish"`
	AutoCleanupDays  int  `mapstructure:"autoCleanupDays"`
	ArchiveKeep      int  `mapstructure:"archiveKeep"`
}

// DockerConfig configures the Isolation Launcher's container flavor.
type DockerConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	DefaultImage     string   `mapstructure:"defaultImage"`
	ForwardEnvKeys   []string `mapstructure:"forwardEnvKeys"`
	ExtraMounts      []string `mapstructure:"extraMounts"`
	NetworkIsolation bool     `mapstructure:"networkIsolation"`
	AllowedDomains   []string `mapstructure:"allowedDomains"`
	SetupScript      string   `mapstructure:"setupScript"`
	PoolMax          int      `mapstructure:"poolMax"`
}

// TelemetryConfig opts into anonymous, best-effort command and session
// event tracking. Disabled unless explicitly turned on.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultImage is used when no image is configured anywhere in the
// CLI-flag > config > built-in-default chain.
const DefaultImage = "para-authenticated:latest"

func setDefaults(v *viper.Viper) {
	v.SetDefault("ide.name", "")
	v.SetDefault("ide.command", "")
	v.SetDefault("ide.wrapper", "")

	v.SetDefault("directories.subtreesDir", "")
	v.SetDefault("directories.stateDir", "")

	v.SetDefault("git.branchPrefix", paths.DefaultBranchPrefix)
	v.SetDefault("git.autoStage", true)
	v.SetDefault("git.autoCommit", false)
	v.SetDefault("git.defaultIntegrationStrategy", "Squash")

	v.SetDefault("session.preserveOnFinish", false)
	v.SetDefault("session.autoCleanupDays", 30)
	v.SetDefault("session.archiveKeep", 3)

	v.SetDefault("docker.enabled", false)
	v.SetDefault("docker.defaultImage", DefaultImage)
	v.SetDefault("docker.forwardEnvKeys", []string{"TERM", "LANG", "EDITOR"})
	v.SetDefault("docker.extraMounts", []string{})
	v.SetDefault("docker.networkIsolation", false)
	v.SetDefault("docker.allowedDomains", []string{})
	v.SetDefault("docker.setupScript", ".para/setup.sh")
	v.SetDefault("docker.poolMax", 3)

	v.SetDefault("telemetry.enabled", false)
}

// Load reads ~/.config/para/config.json (or the OS-conventional
// equivalent), applying defaults for anything unset. A missing file is
// not an error: defaults apply as-is.
func Load() (*Config, error) {
	dir, err := paths.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolving config directory: %w", err)
	}
	return LoadFromDir(dir)
}

// LoadFromDir is Load with an explicit config directory, used by tests
// and by callers that already resolved a non-default location.
func LoadFromDir(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PARA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	normalize(&cfg)
	return &cfg, nil
}

func normalize(cfg *Config) {
	if cfg.Git.BranchPrefix == "" {
		cfg.Git.BranchPrefix = paths.DefaultBranchPrefix
	}
	if cfg.Session.ArchiveKeep <= 0 {
		cfg.Session.ArchiveKeep = 3
	}
	if cfg.Docker.DefaultImage == "" {
		cfg.Docker.DefaultImage = DefaultImage
	}
	if cfg.Docker.PoolMax <= 0 {
		cfg.Docker.PoolMax = 3
	}
	if cfg.Directories.StateDir == "" {
		cfg.Directories.StateDir = defaultStateDirHint()
	}
}

// defaultStateDirHint mirrors the platform-aware default-path pattern used
// elsewhere in the stack, for display purposes only — actual path
// resolution always goes through internal/paths.
func defaultStateDirHint() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "para")
	}
	return filepath.Join("~", ".para")
}
