package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/jobforge/internal/config"
)

var configProject bool

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Show or change configuration",
	Long: `Show or change jobforge configuration.

With no arguments, lists every key with its effective value and where the
value comes from. With a key, prints its value. With a key and a value,
writes the value to the user config file (or the project file with
--project).

Environment variables override files: engine.policy is read from
JOBFORGE_ENGINE_POLICY, and so on.

Examples:
  jobforge config
  jobforge config engine.policy
  jobforge config engine.policy aging
  jobforge config --project run.tps 20`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configProject, "project", false, "Write to "+config.ProjectConfigName+" in the working directory")
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	switch len(args) {
	case 2:
		return setConfigValue(cmd, args[0], args[1])
	case 1:
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		v, err := config.Get(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "User config: %s\n", config.GetUserConfigPath())
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Fprintf(out, "Project config: %s\n", p)
	}
	fmt.Fprintln(out)
	dim := color.New(color.Faint)
	for _, key := range config.Keys() {
		v, err := config.Get(cfg, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-28s %-24v %s\n", key, v, dim.Sprint(config.GetKeySource(key)))
	}
	return nil
}

// setConfigValue updates one key in the target file, leaving the others as
// that file already had them.
func setConfigValue(cmd *cobra.Command, key, value string) error {
	path := configPath
	if path == "" {
		path = config.GetUserConfigPath()
		if configProject {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			path = filepath.Join(cwd, config.ProjectConfigName)
		}
	}

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.LoadFromPath(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		cfg = loaded
	}
	if err := config.Set(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.PolicyConfig().Validate(); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("Set %s = %s in %s", key, value, path), color.FgGreen)
	return nil
}
