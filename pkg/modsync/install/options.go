package install

import (
	"time"

	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/verify"
)

// Option configures an Installer.
type Option func(*Installer)

// WithStagingDir sets the directory downloads are staged in. Each run works
// in its own subdirectory, removed when the run ends. The default is
// <target>/.modsync/staging.
func WithStagingDir(dir string) Option {
	return func(in *Installer) {
		in.stagingDir = dir
	}
}

// WithBackupDir sets the root for backups of replaced files. The default is
// <target>/.modsync/backups.
func WithBackupDir(dir string) Option {
	return func(in *Installer) {
		in.backupDir = dir
	}
}

// WithVerifier sets the verifier used for planning.
func WithVerifier(v verify.Verifier) Option {
	return func(in *Installer) {
		if v != nil {
			in.verifier = v
		}
	}
}

// WithClock sets the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(in *Installer) {
		if now != nil {
			in.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(in *Installer) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithMinFreeSpace sets the number of bytes that must remain free on the
// target volume once every planned download has landed.
func WithMinFreeSpace(bytes uint64) Option {
	return func(in *Installer) {
		in.minFree = bytes
	}
}

// WithKeepBackups controls whether a successful run keeps its backup
// directory. Backups of failed or cancelled runs are always kept.
func WithKeepBackups(keep bool) Option {
	return func(in *Installer) {
		in.keepBackups = keep
	}
}
