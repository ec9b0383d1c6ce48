// Package main provides the entry point for the modsync CLI.
package main

import (
	"errors"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		if !errors.Is(err, errUnsuccessful) {
			printError("%v", err)
		}
		os.Exit(1)
	}
}
