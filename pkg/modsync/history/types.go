package history

import (
	"time"

	"github.com/jamesainslie/modsync/pkg/modsync/install"
)

// Record is the persisted summary of one install run.
type Record struct {
	ID               string          `json:"id"`
	Timestamp        time.Time       `json:"timestamp"`
	ManifestID       string          `json:"manifest_id"`
	ManifestName     string          `json:"manifest_name,omitempty"`
	ManifestRevision int             `json:"manifest_revision"`
	Dir              string          `json:"dir"`
	Phase            string          `json:"phase"`
	Success          bool            `json:"success"`
	Cancelled        bool            `json:"cancelled,omitempty"`
	Summary          Summary         `json:"summary"`
	Failures         []FailureRecord `json:"failures,omitempty"`
	BackupDir        string          `json:"backup_dir,omitempty"`
	DurationMS       int64           `json:"duration_ms"`
}

// Summary holds the counts of a run.
type Summary struct {
	Installed          int   `json:"installed"`
	Replaced           int   `json:"replaced"`
	Skipped            int   `json:"skipped"`
	Failed             int   `json:"failed"`
	NotStarted         int   `json:"not_started,omitempty"`
	VerificationErrors int   `json:"verification_errors,omitempty"`
	BytesTransferred   int64 `json:"bytes_transferred"`
}

// FailureRecord is one failed entry.
type FailureRecord struct {
	EntryID  string `json:"entry_id"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// FromOutcome builds a record for o. ID and Timestamp are filled in by Log.
func FromOutcome(o *install.Outcome, manifestName string) Record {
	rec := Record{
		ManifestID:       o.ManifestID,
		ManifestName:     manifestName,
		ManifestRevision: o.ManifestRevision,
		Dir:              o.Dir,
		Phase:            o.Phase.String(),
		Success:          o.Success,
		Cancelled:        o.Cancelled,
		BackupDir:        o.BackupDir,
		DurationMS:       o.Duration().Milliseconds(),
		Summary: Summary{
			Installed:          o.Installed,
			Replaced:           o.Replaced,
			Skipped:            o.Skipped,
			Failed:             o.Failed,
			NotStarted:         o.NotStarted(),
			VerificationErrors: len(o.VerificationErrors),
			BytesTransferred:   o.BytesTransferred,
		},
	}
	for _, f := range o.Failures {
		rec.Failures = append(rec.Failures, FailureRecord{
			EntryID:  f.Entry.ID,
			Category: string(f.Category),
			Message:  f.Message,
		})
	}
	return rec
}
