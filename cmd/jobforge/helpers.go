package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/jobforge/internal/config"
	"github.com/ShayCichocki/jobforge/internal/orchestrator"
	"github.com/ShayCichocki/jobforge/internal/state"
)

// loadConfig reads --config when given, otherwise the user and project files.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// resolveDBPath picks the state database: --db, then state.path, then the
// project database in the working directory.
func resolveDBPath(cfg *config.Config) (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	if cfg.State.Path != "" {
		return cfg.State.Path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return state.ProjectDBPath(cwd), nil
}

// openState opens and migrates the state database.
func openState(cfg *config.Config) (*state.DB, error) {
	path, err := resolveDBPath(cfg)
	if err != nil {
		return nil, err
	}
	db, err := state.OpenWithDriver(cfg.State.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// newLogger builds the debug logger from the log section. With --verbose and
// no log file configured, it writes under .jobforge/logs in the working directory.
func newLogger(cfg *config.Config) (*orchestrator.DebugLogger, error) {
	if cfg.Log.File == "" && verbose {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		return orchestrator.NewDebugLoggerForDir(cwd), nil
	}
	return orchestrator.NewDebugLogger(orchestrator.LogOptions{
		Path:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
}

// printStatus prints a coloured symbol followed by message.
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

// statusColor maps a run status to its display colour.
func statusColor(s state.RunStatus) *color.Color {
	switch s {
	case state.RunCompleted:
		return color.New(color.FgGreen)
	case state.RunFailed:
		return color.New(color.FgRed)
	case state.RunInterrupted, state.RunCanceled:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

// shortID returns the first 8 characters of a run id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
