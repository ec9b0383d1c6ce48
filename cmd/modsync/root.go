package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/config"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/output"
)

var (
	cfgFile      string
	outputFormat string
	quiet        bool
	verbose      bool
	noColor      bool

	// cfg is loaded before any command runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "modsync",
		Short: "Keep a mods directory in sync with a manifest",
		Long: `modsync reconciles a mods directory with a manifest: it downloads
missing files, replaces stale ones and leaves correct ones alone, checking
every download against the SHA-256 and size the manifest declares.

Examples:
  modsync plan pack.json ~/mods        # Show what would change
  modsync install pack.json ~/mods     # Bring the directory in sync
  modsync export ~/mods --name "Farm" --base-url https://cdn.example.com/mods
  modsync diff old.json new.json       # Compare two manifest revisions
  modsync history                      # Recent install runs`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logging.Close()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/modsync/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "pretty", "output format: "+fmt.Sprint(output.Available()))
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration and starts logging for every command.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.LoadFrom(cfgFile)
	if err != nil {
		if !isConfigCommand(cmd) {
			return err
		}
		printError("Failed to load configuration: %v", err)
		loaded = config.Defaults()
	}
	cfg = loaded

	lc, err := cfg.Logging.ToLogging()
	if err != nil {
		return err
	}
	if verbose {
		lc.ConsoleLevel = "debug"
	}
	if err := logging.Init(lc); err != nil {
		printVerbose("Logging disabled: %v", err)
	}

	if noColor || os.Getenv("NO_COLOR") != "" {
		output.DisableColor()
	}
	if !cmd.Flags().Changed("output") && !isTerminal(os.Stdout) {
		outputFormat = "plain"
	}
	if _, err := output.Get(outputFormat); err != nil {
		return err
	}
	return nil
}

func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == configCmd {
			return true
		}
	}
	return false
}

// render writes r to stdout in the selected format. Quiet mode suppresses
// the human-oriented formats.
func render(r *output.Report) error {
	if quiet && (outputFormat == "pretty" || outputFormat == "plain") {
		return nil
	}
	return renderTo(rootCmd.OutOrStdout(), r)
}

func renderTo(w io.Writer, r *output.Report) error {
	f, err := output.Get(outputFormat)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := f.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// errUnsuccessful makes the process exit non-zero after output has already
// explained what went wrong.
var errUnsuccessful = errors.New("operation did not complete successfully")

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stderr if quiet mode is not enabled.
// Stdout is reserved for rendered reports.
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
