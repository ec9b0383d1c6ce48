package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate <manifest-file>...",
	Short: "Check manifest files for problems",
	Long: `Check each manifest file against the manifest JSON schema and the
rules an install enforces: unique ids, well-formed hashes, positive sizes,
http(s) source URLs and safe filenames.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := false
	for _, path := range args {
		problems, err := validateFile(path)
		if err != nil {
			printError("%s: %v", path, err)
			failed = true
			continue
		}
		if len(problems) > 0 {
			printError("%s: %d problem(s)", path, len(problems))
			printValidationErrors(problems)
			failed = true
			continue
		}
		printInfo("%s: valid", path)
	}
	if failed {
		return errUnsuccessful
	}
	return nil
}

// validateFile runs the schema check first; rule checks only make sense on a
// document that decodes.
func validateFile(path string) ([]manifest.ValidationError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	problems, err := manifest.CheckSchema(data)
	if err != nil {
		return nil, fmt.Errorf("schema check: %w", err)
	}
	if len(problems) > 0 {
		return problems, nil
	}
	_, problems, err = manifest.Load(data)
	return problems, err
}
