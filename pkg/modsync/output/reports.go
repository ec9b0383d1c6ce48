package output

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/modsync/pkg/modsync/backup"
	"github.com/jamesainslie/modsync/pkg/modsync/history"
	"github.com/jamesainslie/modsync/pkg/modsync/install"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/plan"
)

type planDoc struct {
	ManifestID   string        `json:"manifest_id" yaml:"manifest_id"`
	ManifestName string        `json:"manifest_name" yaml:"manifest_name"`
	Revision     int           `json:"revision" yaml:"revision"`
	Dir          string        `json:"dir" yaml:"dir"`
	InSync       bool          `json:"in_sync" yaml:"in_sync"`
	TotalBytes   int64         `json:"total_bytes" yaml:"total_bytes"`
	Counts       planCounts    `json:"counts" yaml:"counts"`
	Items        []planItemDoc `json:"items" yaml:"items"`
}

type planCounts struct {
	Download           int `json:"download" yaml:"download"`
	Replace            int `json:"replace" yaml:"replace"`
	UpToDate           int `json:"up_to_date" yaml:"up_to_date"`
	VerificationErrors int `json:"verification_errors" yaml:"verification_errors"`
}

type planItemDoc struct {
	ID        string `json:"id" yaml:"id"`
	Action    string `json:"action" yaml:"action"`
	Filename  string `json:"filename" yaml:"filename"`
	Path      string `json:"path" yaml:"path"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// FromPlan describes what installing m into p.Dir would do.
func FromPlan(m *manifest.Manifest, p *plan.Plan) *Report {
	doc := planDoc{
		ManifestID:   m.ID,
		ManifestName: m.Name,
		Revision:     m.Revision,
		Dir:          p.Dir,
		InSync:       p.InSync(),
		TotalBytes:   p.TotalBytes(),
		Counts: planCounts{
			Download:           len(p.ToDownload),
			Replace:            len(p.ToReplace),
			UpToDate:           len(p.UpToDate),
			VerificationErrors: len(p.VerificationErrors),
		},
		Items: []planItemDoc{},
	}

	r := &Report{
		Kind:    "plan",
		Title:   fmt.Sprintf("%s (revision %d)", m.Name, m.Revision),
		Columns: []string{"ACTION", "ID", "FILE", "SIZE", "DETAIL"},
		Empty:   "Manifest has no entries",
		Data:    &doc,
	}

	for _, it := range p.Items() {
		item := planItemDoc{
			ID:        it.Entry.ID,
			Action:    string(it.Kind),
			Filename:  filepath.Base(it.TargetPath),
			Path:      it.TargetPath,
			SizeBytes: it.Entry.SizeBytes,
		}
		row := Row{Cells: []string{string(it.Kind), it.Entry.ID, item.Filename, humanize.IBytes(uint64(it.Entry.SizeBytes)), ""}}
		switch it.Kind {
		case plan.Replace:
			row.Tone = ToneWarning
			row.Cells[4] = "content differs"
		case plan.UpToDate:
			row.Tone = ToneMuted
		case plan.VerificationError:
			row.Tone = ToneDanger
			item.Error = it.Err.Error()
			row.Cells[4] = item.Error
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %s", it.Entry.ID, item.Error))
		}
		doc.Items = append(doc.Items, item)
		r.Rows = append(r.Rows, row)
	}

	status := Field{Label: "Status", Value: "in sync", Tone: ToneSuccess}
	if !doc.InSync {
		status = Field{Label: "Status", Value: "out of sync", Tone: ToneWarning}
	}
	r.Summary = []Field{
		{Label: "Directory", Value: p.Dir},
		status,
		{Label: "Download", Value: strconv.Itoa(doc.Counts.Download)},
		{Label: "Replace", Value: strconv.Itoa(doc.Counts.Replace)},
		{Label: "Up to date", Value: strconv.Itoa(doc.Counts.UpToDate)},
		{Label: "Transfer", Value: humanize.IBytes(uint64(doc.TotalBytes))},
	}
	if doc.Counts.VerificationErrors > 0 {
		r.Summary = append(r.Summary, Field{Label: "Errors", Value: strconv.Itoa(doc.Counts.VerificationErrors), Tone: ToneDanger})
	}
	return r
}

type outcomeDoc struct {
	ManifestID       string           `json:"manifest_id" yaml:"manifest_id"`
	Revision         int              `json:"revision" yaml:"revision"`
	Dir              string           `json:"dir" yaml:"dir"`
	Phase            string           `json:"phase" yaml:"phase"`
	Success          bool             `json:"success" yaml:"success"`
	Cancelled        bool             `json:"cancelled" yaml:"cancelled"`
	Installed        int              `json:"installed" yaml:"installed"`
	Replaced         int              `json:"replaced" yaml:"replaced"`
	Skipped          int              `json:"skipped" yaml:"skipped"`
	Failed           int              `json:"failed" yaml:"failed"`
	NotStarted       int              `json:"not_started" yaml:"not_started"`
	BytesTransferred int64            `json:"bytes_transferred" yaml:"bytes_transferred"`
	Duration         string           `json:"duration" yaml:"duration"`
	BackupDir        string           `json:"backup_dir,omitempty" yaml:"backup_dir,omitempty"`
	Items            []outcomeItemDoc `json:"items" yaml:"items"`
}

type outcomeItemDoc struct {
	ID       string `json:"id" yaml:"id"`
	Status   string `json:"status" yaml:"status"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
	Path     string `json:"path" yaml:"path"`
	Backup   string `json:"backup,omitempty" yaml:"backup,omitempty"`
}

// FromOutcome describes a finished install run.
func FromOutcome(o *install.Outcome) *Report {
	doc := outcomeDoc{
		ManifestID:       o.ManifestID,
		Revision:         o.ManifestRevision,
		Dir:              o.Dir,
		Phase:            o.Phase.String(),
		Success:          o.Success,
		Cancelled:        o.Cancelled,
		Installed:        o.Installed,
		Replaced:         o.Replaced,
		Skipped:          o.Skipped,
		Failed:           o.Failed,
		NotStarted:       o.NotStarted(),
		BytesTransferred: o.BytesTransferred,
		Duration:         o.Duration().Round(time.Millisecond).String(),
		BackupDir:        o.BackupDir,
		Items:            []outcomeItemDoc{},
	}

	r := &Report{
		Kind:    "install",
		Title:   "Install " + o.Phase.String(),
		Columns: []string{"STATUS", "ID", "FILE", "DETAIL"},
		Empty:   "Manifest has no entries",
		Data:    &doc,
	}

	for _, it := range o.Items {
		doc.Items = append(doc.Items, outcomeItemDoc{
			ID:       it.Entry.ID,
			Status:   string(it.Status),
			Category: string(it.Category),
			Message:  it.Message,
			Path:     it.Path,
			Backup:   it.Backup,
		})

		detail := it.Message
		if it.Category != "" {
			detail = string(it.Category) + ": " + it.Message
		}
		row := Row{Cells: []string{string(it.Status), it.Entry.ID, filepath.Base(it.Path), detail}}
		switch it.Status {
		case install.StatusInstalled, install.StatusReplaced:
			row.Tone = ToneSuccess
		case install.StatusFailed, install.StatusVerificationError:
			row.Tone = ToneDanger
		case install.StatusCancelled, install.StatusNotStarted:
			row.Tone = ToneWarning
		default:
			row.Tone = ToneMuted
		}
		r.Rows = append(r.Rows, row)
	}

	result := Field{Label: "Result", Value: o.Phase.String(), Tone: ToneSuccess}
	if !o.Success {
		result.Tone = ToneDanger
		if o.Cancelled {
			result.Tone = ToneWarning
		}
	}
	r.Summary = []Field{
		result,
		{Label: "Installed", Value: strconv.Itoa(o.Installed)},
		{Label: "Replaced", Value: strconv.Itoa(o.Replaced)},
		{Label: "Up to date", Value: strconv.Itoa(o.Skipped)},
		{Label: "Failed", Value: strconv.Itoa(o.Failed), Tone: toneIf(o.Failed > 0, ToneDanger)},
		{Label: "Transferred", Value: humanize.IBytes(uint64(o.BytesTransferred))},
		{Label: "Took", Value: doc.Duration},
	}
	if n := doc.NotStarted; n > 0 {
		r.Summary = append(r.Summary, Field{Label: "Not started", Value: strconv.Itoa(n), Tone: ToneWarning})
	}
	if o.BackupDir != "" {
		r.Summary = append(r.Summary, Field{Label: "Backups", Value: o.BackupDir, Tone: ToneMuted})
	}
	for _, it := range o.VerificationErrors {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %v", it.Entry.ID, it.Err))
	}
	return r
}

type diffDoc struct {
	RevisionDelta int           `json:"revision_delta" yaml:"revision_delta"`
	Added         []string      `json:"added" yaml:"added"`
	Removed       []string      `json:"removed" yaml:"removed"`
	Changed       []diffChanged `json:"changed" yaml:"changed"`
	Unchanged     int           `json:"unchanged" yaml:"unchanged"`
}

type diffChanged struct {
	ID         string `json:"id" yaml:"id"`
	OldVersion string `json:"old_version,omitempty" yaml:"old_version,omitempty"`
	NewVersion string `json:"new_version,omitempty" yaml:"new_version,omitempty"`
	Direction  string `json:"direction" yaml:"direction"`
}

// FromDiff describes the difference between two manifests.
func FromDiff(d *manifest.Diff) *Report {
	doc := diffDoc{
		RevisionDelta: d.RevisionDelta,
		Added:         []string{},
		Removed:       []string{},
		Changed:       []diffChanged{},
		Unchanged:     len(d.Unchanged),
	}
	r := &Report{
		Kind:    "diff",
		Title:   "Manifest changes",
		Columns: []string{"CHANGE", "ID", "VERSION", "SIZE"},
		Empty:   "No changes",
		Data:    &doc,
	}

	for _, e := range d.Added {
		doc.Added = append(doc.Added, e.ID)
		r.Rows = append(r.Rows, Row{Tone: ToneSuccess, Cells: []string{"added", e.ID, e.Version, humanize.IBytes(uint64(e.SizeBytes))}})
	}
	for _, c := range d.Changed {
		dir := c.VersionChange()
		doc.Changed = append(doc.Changed, diffChanged{ID: c.New.ID, OldVersion: c.Old.Version, NewVersion: c.New.Version, Direction: string(dir)})
		version := c.New.Version
		if c.Old.Version != "" || c.New.Version != "" {
			version = orDash(c.Old.Version) + " -> " + orDash(c.New.Version)
		}
		tone := ToneWarning
		if dir == manifest.VersionDowngrade {
			tone = ToneDanger
		}
		r.Rows = append(r.Rows, Row{Tone: tone, Cells: []string{"changed (" + string(dir) + ")", c.New.ID, version, humanize.IBytes(uint64(c.New.SizeBytes))}})
	}
	for _, e := range d.Removed {
		doc.Removed = append(doc.Removed, e.ID)
		r.Rows = append(r.Rows, Row{Tone: ToneDanger, Cells: []string{"removed", e.ID, e.Version, humanize.IBytes(uint64(e.SizeBytes))}})
	}

	r.Summary = []Field{
		{Label: "Added", Value: strconv.Itoa(len(d.Added))},
		{Label: "Changed", Value: strconv.Itoa(len(d.Changed))},
		{Label: "Removed", Value: strconv.Itoa(len(d.Removed))},
		{Label: "Unchanged", Value: strconv.Itoa(len(d.Unchanged)), Tone: ToneMuted},
		{Label: "Revision", Value: fmt.Sprintf("%+d", d.RevisionDelta)},
	}
	return r
}

// FromHistory lists install run records.
func FromHistory(records []history.Record) *Report {
	r := &Report{
		Kind:    "history",
		Title:   "Install history",
		Columns: []string{"ID", "WHEN", "MANIFEST", "REV", "RESULT", "INSTALLED", "REPLACED", "FAILED", "BYTES"},
		Empty:   "No install runs recorded",
		Data:    records,
	}
	for _, rec := range records {
		name := rec.ManifestName
		if name == "" {
			name = rec.ManifestID
		}
		tone := ToneSuccess
		if !rec.Success {
			tone = ToneDanger
		}
		r.Rows = append(r.Rows, Row{Tone: tone, Cells: []string{
			rec.ID,
			humanize.Time(rec.Timestamp),
			name,
			strconv.Itoa(rec.ManifestRevision),
			rec.Phase,
			strconv.Itoa(rec.Summary.Installed),
			strconv.Itoa(rec.Summary.Replaced),
			strconv.Itoa(rec.Summary.Failed),
			humanize.IBytes(uint64(rec.Summary.BytesTransferred)),
		}})
	}
	r.Summary = []Field{{Label: "Runs", Value: strconv.Itoa(len(records))}}
	return r
}

// FromRecord details one install run. Rows are the failed entries.
func FromRecord(rec *history.Record) *Report {
	name := rec.ManifestName
	if name == "" {
		name = rec.ManifestID
	}
	r := &Report{
		Kind:    "record",
		Title:   "Install run " + rec.ID,
		Columns: []string{"ENTRY", "CATEGORY", "MESSAGE"},
		Empty:   "No failures",
		Data:    rec,
	}
	r.Summary = []Field{
		{Label: "When", Value: rec.Timestamp.Local().Format("2006-01-02 15:04:05 MST")},
		{Label: "Manifest", Value: fmt.Sprintf("%s (revision %d)", name, rec.ManifestRevision)},
		{Label: "Directory", Value: rec.Dir},
		{Label: "Result", Value: rec.Phase, Tone: toneIf(!rec.Success, ToneDanger)},
		{Label: "Installed", Value: strconv.Itoa(rec.Summary.Installed)},
		{Label: "Replaced", Value: strconv.Itoa(rec.Summary.Replaced)},
		{Label: "Up to date", Value: strconv.Itoa(rec.Summary.Skipped)},
		{Label: "Failed", Value: strconv.Itoa(rec.Summary.Failed), Tone: toneIf(rec.Summary.Failed > 0, ToneDanger)},
		{Label: "Transferred", Value: humanize.IBytes(uint64(rec.Summary.BytesTransferred))},
		{Label: "Duration", Value: (time.Duration(rec.DurationMS) * time.Millisecond).String()},
	}
	if rec.Summary.NotStarted > 0 {
		r.Summary = append(r.Summary, Field{Label: "Not started", Value: strconv.Itoa(rec.Summary.NotStarted), Tone: ToneWarning})
	}
	if rec.BackupDir != "" {
		r.Summary = append(r.Summary, Field{Label: "Backups", Value: rec.BackupDir})
	}
	for _, f := range rec.Failures {
		r.Rows = append(r.Rows, Row{Tone: ToneDanger, Cells: []string{f.EntryID, f.Category, f.Message}})
	}
	return r
}

type backupDoc struct {
	Name  string    `json:"name" yaml:"name"`
	Dir   string    `json:"dir" yaml:"dir"`
	Time  time.Time `json:"time" yaml:"time"`
	Files []string  `json:"files" yaml:"files"`
	Bytes int64     `json:"bytes" yaml:"bytes"`
}

// FromBackups lists backup runs.
func FromBackups(root string, runs []backup.RunInfo) *Report {
	docs := make([]backupDoc, 0, len(runs))
	r := &Report{
		Kind:    "backups",
		Title:   "Backups in " + root,
		Columns: []string{"NAME", "WHEN", "FILES", "SIZE"},
		Empty:   "No backups",
	}
	var total int64
	for _, run := range runs {
		docs = append(docs, backupDoc(run))
		total += run.Bytes
		r.Rows = append(r.Rows, Row{Cells: []string{
			run.Name,
			humanize.Time(run.Time),
			strconv.Itoa(len(run.Files)),
			humanize.IBytes(uint64(run.Bytes)),
		}})
	}
	r.Data = docs
	r.Summary = []Field{
		{Label: "Runs", Value: strconv.Itoa(len(runs))},
		{Label: "Total", Value: humanize.IBytes(uint64(total))},
	}
	return r
}

type manifestSummaryDoc struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Game        string    `json:"game" yaml:"game"`
	Revision    int       `json:"revision" yaml:"revision"`
	Entries     int       `json:"entries" yaml:"entries"`
	TotalBytes  int64     `json:"total_bytes" yaml:"total_bytes"`
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`
}

// FromManifests lists saved manifests.
func FromManifests(ms []*manifest.Manifest) *Report {
	docs := make([]manifestSummaryDoc, 0, len(ms))
	r := &Report{
		Kind:    "manifests",
		Title:   "Manifest library",
		Columns: []string{"ID", "NAME", "GAME", "REV", "ENTRIES", "SIZE", "UPDATED"},
		Empty:   "Library is empty",
	}
	for _, m := range ms {
		docs = append(docs, manifestSummaryDoc{
			ID: m.ID, Name: m.Name, Game: string(m.Game), Revision: m.Revision,
			Entries: len(m.Entries), TotalBytes: m.TotalBytes(), LastUpdated: m.LastUpdated,
		})
		r.Rows = append(r.Rows, Row{Cells: []string{
			m.ID, m.Name, string(m.Game), strconv.Itoa(m.Revision),
			strconv.Itoa(len(m.Entries)), humanize.IBytes(uint64(m.TotalBytes())), humanize.Time(m.LastUpdated),
		}})
	}
	r.Data = docs
	r.Summary = []Field{{Label: "Manifests", Value: strconv.Itoa(len(ms))}}
	return r
}

// FromManifest lists the entries of one manifest. Data is the manifest
// itself so json output round-trips through manifest.Load.
func FromManifest(m *manifest.Manifest) *Report {
	r := &Report{
		Kind:    "manifest",
		Title:   fmt.Sprintf("%s (revision %d)", m.Name, m.Revision),
		Columns: []string{"ID", "FILE", "VERSION", "SIZE", "HASH"},
		Empty:   "Manifest has no entries",
		Data:    m,
	}
	for _, e := range m.Entries {
		hash := e.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		r.Rows = append(r.Rows, Row{Cells: []string{e.ID, e.EffectiveFilename(), e.Version, humanize.IBytes(uint64(e.SizeBytes)), hash}})
	}
	r.Summary = []Field{
		{Label: "ID", Value: m.ID},
		{Label: "Game", Value: string(m.Game)},
		{Label: "Entries", Value: strconv.Itoa(len(m.Entries))},
		{Label: "Total", Value: humanize.IBytes(uint64(m.TotalBytes()))},
		{Label: "Updated", Value: m.LastUpdated.UTC().Format(time.RFC3339)},
	}
	return r
}

func toneIf(cond bool, t Tone) Tone {
	if cond {
		return t
	}
	return ToneNormal
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
