package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage modsync configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/modsync/config.yaml (if set)
  2. ~/.config/modsync/config.yaml

Environment variables can override config file settings using the MODSYNC_ prefix:
  MODSYNC_MODS_DIR=~/mods
  MODSYNC_HTTP_RETRIES=5
  MODSYNC_BACKUP_KEEP=false`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after files and environment are applied.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by $VISUAL, then $EDITOR, then 'vi'.
If the config file doesn't exist, a default one is created first.`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

type setting struct {
	key   string
	value string
}

func settings(c *config.Config) []setting {
	return []setting{
		{"game", c.Game},
		{"mods_dir", c.ModsDir},
		{"staging_dir", c.StagingDir},
		{"min_free_space", c.MinFreeSpace},
		{"backup.dir", c.Backup.Dir},
		{"backup.keep", fmt.Sprint(c.Backup.Keep)},
		{"backup.retention_days", fmt.Sprint(c.Backup.RetentionDays)},
		{"http.timeout", c.HTTP.Timeout.String()},
		{"http.retries", fmt.Sprint(c.HTTP.Retries)},
		{"http.user_agent", c.HTTP.UserAgent},
		{"hash_cache.enabled", fmt.Sprint(c.HashCache.Enabled)},
		{"hash_cache.path", c.HashCache.Path},
		{"history.enabled", fmt.Sprint(c.History.Enabled)},
		{"history.path", c.History.Path},
		{"history.retention_days", fmt.Sprint(c.History.RetentionDays)},
		{"library.path", c.Library.Path},
		{"logging.level", c.Logging.Level},
		{"logging.path", c.Logging.Path},
		{"logging.console", c.Logging.Console},
	}
}

// envName maps a dotted key to its MODSYNC_ variable.
func envName(key string) string {
	out := []byte("MODSYNC_")
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c == '.':
			c = '_'
		case c >= 'a' && c <= 'z':
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	path, err := config.ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fmt.Fprintf(out, "Config file: %s\n\n", path)
		} else {
			fmt.Fprintln(out, "Config file: (using defaults, no file found)")
			fmt.Fprintln(out)
		}
	}
	if cfgFile != "" {
		fmt.Fprintf(out, "Explicit config: %s\n\n", cfgFile)
	}

	fmt.Fprintln(out, "Current Configuration:")
	fmt.Fprintln(out, "----------------------")
	all := settings(cfg)
	for _, s := range all {
		fmt.Fprintf(out, "%-24s %s\n", s.key+":", s.value)
	}

	fmt.Fprintln(out, "\nEnvironment Overrides:")
	fmt.Fprintln(out, "----------------------")
	anyOverrides := false
	for _, s := range all {
		name := envName(s.key)
		if val := os.Getenv(name); val != "" {
			fmt.Fprintf(out, "%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Fprintln(out, "(none)")
	}
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'modsync config edit' to modify it.")
		return nil
	}

	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	printInfo("Created default config file: %s", configPath)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}
	return nil
}
