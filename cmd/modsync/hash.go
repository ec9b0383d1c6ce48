package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/install"
	"github.com/jamesainslie/modsync/pkg/modsync/verify"
)

var hashCmd = &cobra.Command{
	Use:   "hash <file>...",
	Short: "Print the SHA-256 of files",
	Long:  `Print the lowercase hex SHA-256 of each file, in the form a manifest expects.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHash,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <file> <sha256>",
	Short: "Check a file against a SHA-256",
	Long:  `Exit zero when the file's SHA-256 matches the given digest, ignoring case.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runHash(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := false
	for _, path := range args {
		sum, err := install.ComputeFileHash(path)
		if err != nil {
			printError("%v", err)
			failed = true
			continue
		}
		if len(args) == 1 {
			fmt.Fprintln(out, sum)
		} else {
			fmt.Fprintf(out, "%s  %s\n", sum, path)
		}
	}
	if failed {
		return errUnsuccessful
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	path, expected := args[0], args[1]
	if len(expected) != verify.DigestLen {
		return fmt.Errorf("%q is not a SHA-256 hex digest", expected)
	}
	ok, err := install.VerifyFileHash(path, expected)
	if err != nil {
		return err
	}
	if !ok {
		printInfo("%s: MISMATCH", path)
		return errUnsuccessful
	}
	printInfo("%s: OK", path)
	return nil
}
