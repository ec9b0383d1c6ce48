package install

import (
	"time"

	"github.com/jamesainslie/modsync/pkg/modsync/events"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/plan"
)

// Status is what happened to a single entry during a run.
type Status string

const (
	StatusInstalled         Status = "installed"
	StatusReplaced          Status = "replaced"
	StatusUpToDate          Status = "up-to-date"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
	StatusNotStarted        Status = "not-started"
	StatusVerificationError Status = "verification-error"
)

// ItemResult is the per-entry line of an Outcome.
type ItemResult struct {
	Index    int
	Entry    manifest.Entry
	Status   Status
	Category Category // set when Status is StatusFailed
	Message  string
	Path     string
	Backup   string // backup copy of the replaced file, if one was taken
}

// Outcome summarises an install run.
type Outcome struct {
	ManifestID       string
	ManifestRevision int
	Dir              string

	Success   bool
	Cancelled bool
	Phase     events.Phase

	Installed int
	Replaced  int
	Skipped   int
	Failed    int

	Failures           []Failure
	Items              []ItemResult
	VerificationErrors []plan.Item

	BackupDir        string
	Backups          []string
	BytesTransferred int64

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took.
func (o *Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// NotStarted returns the number of actionable entries that were never begun.
func (o *Outcome) NotStarted() int {
	n := 0
	for _, it := range o.Items {
		if it.Status == StatusNotStarted {
			n++
		}
	}
	return n
}
