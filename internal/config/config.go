// Package config handles configuration loading and management for jobforge.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/jobforge/internal/jobtypes"
	"github.com/ShayCichocki/jobforge/internal/orchestrator/policy"
)

// EnvPrefix is the prefix of environment overrides, e.g. JOBFORGE_ENGINE_POLICY.
const EnvPrefix = "JOBFORGE"

// ProjectConfigName is the file searched for in the working directory and its parents.
const ProjectConfigName = ".jobforge.yaml"

// Config holds all configuration for jobforge.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Run      RunConfig      `mapstructure:"run"`
	JobTypes JobTypesConfig `mapstructure:"jobtypes"`
	Log      LogConfig      `mapstructure:"log"`
	State    StateConfig    `mapstructure:"state"`
	TUI      TUIConfig      `mapstructure:"tui"`
}

// EngineConfig holds the scheduling and progression tunables.
type EngineConfig struct {
	// Policy is the board ordering: priority, fifo or lifo.
	Policy              string  `mapstructure:"policy"`
	BaseRate            float64 `mapstructure:"base_rate"`
	MinIncrement        float64 `mapstructure:"min_increment"`
	RequiredProgress    float64 `mapstructure:"required_progress"`
	AgingFactor         uint64  `mapstructure:"aging_factor"`
	ShortageBoost       int64   `mapstructure:"shortage_boost"`
	SpecializationBonus float64 `mapstructure:"specialization_bonus"`
}

// RunConfig holds tick loop settings.
type RunConfig struct {
	// Ticks is the number of ticks to run. Zero runs until interrupted.
	Ticks uint64 `mapstructure:"ticks"`
	// TPS paces the loop in ticks per second. Zero runs unpaced.
	TPS float64 `mapstructure:"tps"`
	// SnapshotEvery is the tick interval between world snapshots.
	SnapshotEvery uint64 `mapstructure:"snapshot_every"`
}

// JobTypesConfig holds job type definition discovery settings.
type JobTypesConfig struct {
	Dir     string `mapstructure:"dir"`
	Pattern string `mapstructure:"pattern"`
	Watch   bool   `mapstructure:"watch"`
}

// LogConfig holds debug log settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// StateConfig holds run persistence settings.
type StateConfig struct {
	// Driver is the database/sql driver name: sqlite or sqlite3.
	Driver string `mapstructure:"driver"`
	// Path is the database file. Empty means the project database.
	Path string `mapstructure:"path"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load reads configuration from all sources with proper precedence.
// Order (later overrides earlier):
//  1. Built-in defaults
//  2. User config (~/.config/jobforge/config.yaml)
//  3. Project config (.jobforge.yaml in current or parent directories)
//  4. Environment variables (JOBFORGE_*)
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path on top of the
// defaults. Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.JobTypes.Dir = expandEnv(cfg.JobTypes.Dir)
	cfg.Log.File = expandEnv(cfg.Log.File)
	cfg.State.Path = expandEnv(cfg.State.Path)
	return cfg, nil
}

// bindEnv maps JOBFORGE_SECTION_KEY variables onto section.key.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range Keys() {
		_ = v.BindEnv(key)
	}
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	return SaveTo(cfg, GetUserConfigPath())
}

// SaveTo writes the configuration to path, creating its directory.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	for _, key := range Keys() {
		val, _ := Get(cfg, key)
		v.Set(key, val)
	}

	return v.WriteConfigAs(path)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// PolicyConfig converts the engine and run sections into orchestrator tunables.
func (c *Config) PolicyConfig() *policy.Config {
	p := policy.Default()
	p.Scheduling.Policy = c.Engine.Policy
	p.Aging.Factor = c.Engine.AgingFactor
	p.Aging.ShortageBoost = c.Engine.ShortageBoost
	p.Assignment.SpecializationBonus = c.Engine.SpecializationBonus
	p.Progress.BaseRate = c.Engine.BaseRate
	p.Progress.MinIncrement = c.Engine.MinIncrement
	p.Progress.RequiredProgress = c.Engine.RequiredProgress
	p.Loop.TicksPerSecond = c.Run.TPS
	p.Loop.SnapshotEvery = c.Run.SnapshotEvery
	return p
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := policy.Default()

	// Engine defaults
	v.SetDefault("engine.policy", d.Scheduling.Policy)
	v.SetDefault("engine.base_rate", d.Progress.BaseRate)
	v.SetDefault("engine.min_increment", d.Progress.MinIncrement)
	v.SetDefault("engine.required_progress", d.Progress.RequiredProgress)
	v.SetDefault("engine.aging_factor", d.Aging.Factor)
	v.SetDefault("engine.shortage_boost", d.Aging.ShortageBoost)
	v.SetDefault("engine.specialization_bonus", d.Assignment.SpecializationBonus)

	// Run defaults
	v.SetDefault("run.ticks", 100)
	v.SetDefault("run.tps", 0.0)
	v.SetDefault("run.snapshot_every", 10)

	// Job type defaults
	v.SetDefault("jobtypes.dir", "")
	v.SetDefault("jobtypes.pattern", jobtypes.DefaultPattern)
	v.SetDefault("jobtypes.watch", false)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)

	// State defaults
	v.SetDefault("state.driver", "sqlite")
	v.SetDefault("state.path", "")

	// TUI defaults
	v.SetDefault("tui.refresh_rate", "250ms")
}

// getUserConfigDir returns the XDG config directory for jobforge.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "jobforge")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "jobforge")
	}
	return filepath.Join(home, ".config", "jobforge")
}

// findProjectConfig searches for .jobforge.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	d := policy.Default()
	return &Config{
		Engine: EngineConfig{
			Policy:              d.Scheduling.Policy,
			BaseRate:            d.Progress.BaseRate,
			MinIncrement:        d.Progress.MinIncrement,
			RequiredProgress:    d.Progress.RequiredProgress,
			AgingFactor:         d.Aging.Factor,
			ShortageBoost:       d.Aging.ShortageBoost,
			SpecializationBonus: d.Assignment.SpecializationBonus,
		},
		Run: RunConfig{
			Ticks:         100,
			SnapshotEvery: 10,
		},
		JobTypes: JobTypesConfig{
			Pattern: jobtypes.DefaultPattern,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		State: StateConfig{
			Driver: "sqlite",
		},
		TUI: TUIConfig{
			RefreshRate: 250 * time.Millisecond,
		},
	}
}
