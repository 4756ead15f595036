package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// LocalConfigName is the per-repository config file searched for upwards
// from the working directory
const LocalConfigName = ".recipe-orch.toml"

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Build         BuildConfig         `toml:"build"`
	Test          TestConfig          `toml:"test"`
	Upload        UploadConfig        `toml:"upload"`
	EnvMatrix     map[string][]string `toml:"env_matrix"`
	Notifications NotificationsConfig `toml:"notifications"`
	Coordinator   CoordinatorConfig   `toml:"coordinator"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	RecipeDir    string `toml:"recipe_dir"`
	BldDir       string `toml:"bld_dir"`
	DatabasePath string `toml:"database_path"`
	Debug        bool   `toml:"debug"`
}

// BuildConfig holds build collaborator settings
type BuildConfig struct {
	Command     []string `toml:"command"`
	Channels    []string `toml:"channels"`
	Blacklists  []string `toml:"blacklists"`
	DockerImage string   `toml:"docker_image"`
}

// TestConfig holds the container test collaborator settings
type TestConfig struct {
	Command []string `toml:"command"`
}

// UploadConfig holds artifact upload settings
type UploadConfig struct {
	Command  []string `toml:"command"`
	TokenEnv string   `toml:"token_env"`
	Publish  bool     `toml:"publish"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	SlackWebhook string `toml:"slack_webhook"`
}

// CoordinatorConfig holds shard hand-out settings
type CoordinatorConfig struct {
	Port int `toml:"port"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			RecipeDir:    "recipes",
			BldDir:       filepath.Join(home, ".recipe-orch", "bld"),
			DatabasePath: filepath.Join(home, ".recipe-orch", "runs.db"),
		},
		Build: BuildConfig{
			Command: []string{"conda", "build"},
		},
		Test: TestConfig{
			Command: []string{"mulled-build", "test"},
		},
		Upload: UploadConfig{
			Command:  []string{"anaconda", "upload"},
			TokenEnv: "ANACONDA_TOKEN",
		},
		EnvMatrix: map[string][]string{},
		Coordinator: CoordinatorConfig{
			Port: 8081,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.General.RecipeDir = ExpandPath(cfg.General.RecipeDir)
	cfg.General.BldDir = ExpandPath(cfg.General.BldDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	for i, p := range cfg.Build.Blacklists {
		cfg.Build.Blacklists[i] = ExpandPath(p)
	}

	return cfg, nil
}

// LoadWithLocalFallback loads the explicit path if given, otherwise a
// local config found by walking up from the working directory, otherwise
// the default config location
func LoadWithLocalFallback(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if local := FindLocalConfig(); local != "" {
		return Load(local)
	}
	return Load(DefaultConfigPath())
}

// FindLocalConfig walks up from the working directory looking for
// LocalConfigName. Returns "" when none is found.
func FindLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, LocalConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "recipe-orch", "config.toml")
}

// ExpandEnvMatrix expands the env matrix into the concrete environment
// combinations, iterating keys in sorted order so the expansion is
// deterministic. An empty matrix yields one empty environment.
func (c *Config) ExpandEnvMatrix() []map[string]string {
	keys := make([]string, 0, len(c.EnvMatrix))
	for k := range c.EnvMatrix {
		if len(c.EnvMatrix[k]) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	envs := []map[string]string{{}}
	for _, k := range keys {
		var next []map[string]string
		for _, env := range envs {
			for _, val := range c.EnvMatrix[k] {
				combined := make(map[string]string, len(env)+1)
				for ek, ev := range env {
					combined[ek] = ev
				}
				combined[k] = val
				next = append(next, combined)
			}
		}
		envs = next
	}
	return envs
}
