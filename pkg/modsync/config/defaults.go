// Package config provides configuration management for modsync.
package config

import "time"

// Default configuration values for modsync.
const (
	// DefaultGame is the game assumed when a command needs one and none is given.
	DefaultGame = "fs25"

	// DefaultBackupRetentionDays is how long backup runs are kept.
	DefaultBackupRetentionDays = 30

	// DefaultHistoryRetentionDays is how long install run records are kept.
	DefaultHistoryRetentionDays = 90

	// DefaultHTTPTimeout bounds a single download request.
	DefaultHTTPTimeout = 30 * time.Minute

	// DefaultHTTPRetries is the number of retries for a failed request.
	DefaultHTTPRetries = 3

	// DefaultMinFreeSpace is the headroom kept free on the target volume.
	DefaultMinFreeSpace = "100MB"

	// DefaultUserAgent identifies modsync to mod hosts.
	DefaultUserAgent = "modsync"
)
