package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrUnknownKey is returned for a key that is not part of the configuration.
var ErrUnknownKey = errors.New("unknown config key")

// keyOrder lists every dotted key in display order.
var keyOrder = []string{
	"engine.policy",
	"engine.base_rate",
	"engine.min_increment",
	"engine.required_progress",
	"engine.aging_factor",
	"engine.shortage_boost",
	"engine.specialization_bonus",
	"run.ticks",
	"run.tps",
	"run.snapshot_every",
	"jobtypes.dir",
	"jobtypes.pattern",
	"jobtypes.watch",
	"log.level",
	"log.file",
	"log.max_size_mb",
	"log.max_backups",
	"state.driver",
	"state.path",
	"tui.refresh_rate",
}

// Keys returns every configuration key in display order.
func Keys() []string {
	out := make([]string, len(keyOrder))
	copy(out, keyOrder)
	return out
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Get returns the value of key in cfg. Durations are returned as strings.
func Get(cfg *Config, key string) (any, error) {
	switch key {
	case "engine.policy":
		return cfg.Engine.Policy, nil
	case "engine.base_rate":
		return cfg.Engine.BaseRate, nil
	case "engine.min_increment":
		return cfg.Engine.MinIncrement, nil
	case "engine.required_progress":
		return cfg.Engine.RequiredProgress, nil
	case "engine.aging_factor":
		return cfg.Engine.AgingFactor, nil
	case "engine.shortage_boost":
		return cfg.Engine.ShortageBoost, nil
	case "engine.specialization_bonus":
		return cfg.Engine.SpecializationBonus, nil
	case "run.ticks":
		return cfg.Run.Ticks, nil
	case "run.tps":
		return cfg.Run.TPS, nil
	case "run.snapshot_every":
		return cfg.Run.SnapshotEvery, nil
	case "jobtypes.dir":
		return cfg.JobTypes.Dir, nil
	case "jobtypes.pattern":
		return cfg.JobTypes.Pattern, nil
	case "jobtypes.watch":
		return cfg.JobTypes.Watch, nil
	case "log.level":
		return cfg.Log.Level, nil
	case "log.file":
		return cfg.Log.File, nil
	case "log.max_size_mb":
		return cfg.Log.MaxSizeMB, nil
	case "log.max_backups":
		return cfg.Log.MaxBackups, nil
	case "state.driver":
		return cfg.State.Driver, nil
	case "state.path":
		return cfg.State.Path, nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// Set parses value for key and stores it in cfg.
func Set(cfg *Config, key, value string) error {
	var err error
	switch key {
	case "engine.policy":
		cfg.Engine.Policy = value
	case "engine.base_rate":
		cfg.Engine.BaseRate, err = strconv.ParseFloat(value, 64)
	case "engine.min_increment":
		cfg.Engine.MinIncrement, err = strconv.ParseFloat(value, 64)
	case "engine.required_progress":
		cfg.Engine.RequiredProgress, err = strconv.ParseFloat(value, 64)
	case "engine.aging_factor":
		cfg.Engine.AgingFactor, err = strconv.ParseUint(value, 10, 64)
	case "engine.shortage_boost":
		cfg.Engine.ShortageBoost, err = strconv.ParseInt(value, 10, 64)
	case "engine.specialization_bonus":
		cfg.Engine.SpecializationBonus, err = strconv.ParseFloat(value, 64)
	case "run.ticks":
		cfg.Run.Ticks, err = strconv.ParseUint(value, 10, 64)
	case "run.tps":
		cfg.Run.TPS, err = strconv.ParseFloat(value, 64)
	case "run.snapshot_every":
		cfg.Run.SnapshotEvery, err = strconv.ParseUint(value, 10, 64)
	case "jobtypes.dir":
		cfg.JobTypes.Dir = value
	case "jobtypes.pattern":
		cfg.JobTypes.Pattern = value
	case "jobtypes.watch":
		cfg.JobTypes.Watch, err = strconv.ParseBool(value)
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.max_size_mb":
		cfg.Log.MaxSizeMB, err = strconv.Atoi(value)
	case "log.max_backups":
		cfg.Log.MaxBackups, err = strconv.Atoi(value)
	case "state.driver":
		cfg.State.Driver = value
	case "state.path":
		cfg.State.Path = value
	case "tui.refresh_rate":
		cfg.TUI.RefreshRate, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
	return nil
}

// KeySource represents where a configuration value was loaded from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceProject KeySource = "project_file"
	KeySourceUser    KeySource = "user_file"
	KeySourceDefault KeySource = "default"
)

// GetKeySource returns the highest-precedence source that sets key.
func GetKeySource(key string) KeySource {
	if os.Getenv(EnvName(key)) != "" {
		return KeySourceEnv
	}
	if fileSets(GetProjectConfigPath(), key) {
		return KeySourceProject
	}
	if fileSets(GetUserConfigPath(), key) {
		return KeySourceUser
	}
	return KeySourceDefault
}

func fileSets(path, key string) bool {
	if path == "" {
		return false
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return false
	}
	return v.IsSet(key)
}
