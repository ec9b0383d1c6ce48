// Package plan compares a manifest with the contents of a directory and
// decides, per entry, whether the file must be downloaded, replaced or left
// alone.
package plan

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/verify"
)

// Kind names the bucket an entry was placed in.
type Kind string

const (
	Download          Kind = "download"
	Replace           Kind = "replace"
	UpToDate          Kind = "up-to-date"
	VerificationError Kind = "verification-error"
)

// Item is one planned entry.
type Item struct {
	Index        int // position in the manifest
	Entry        manifest.Entry
	Kind         Kind
	TargetPath   string
	ExistingPath string // set for Replace
	Err          error  // set for VerificationError
}

// Plan is the per-entry reconciliation of a manifest against a directory.
// Every bucket keeps manifest order.
type Plan struct {
	Dir                string
	ToDownload         []Item
	ToReplace          []Item
	UpToDate           []Item
	VerificationErrors []Item
}

// TotalBytes is the number of bytes that installing the plan transfers.
func (p *Plan) TotalBytes() int64 {
	var n int64
	for _, it := range p.ToDownload {
		n += it.Entry.SizeBytes
	}
	for _, it := range p.ToReplace {
		n += it.Entry.SizeBytes
	}
	return n
}

// ActionCount is the number of entries that need a download.
func (p *Plan) ActionCount() int {
	return len(p.ToDownload) + len(p.ToReplace)
}

// Actions returns the download and replace items merged in manifest order.
func (p *Plan) Actions() []Item {
	out := make([]Item, 0, p.ActionCount())
	d, r := 0, 0
	for d < len(p.ToDownload) || r < len(p.ToReplace) {
		if r >= len(p.ToReplace) || (d < len(p.ToDownload) && p.ToDownload[d].Index < p.ToReplace[r].Index) {
			out = append(out, p.ToDownload[d])
			d++
		} else {
			out = append(out, p.ToReplace[r])
			r++
		}
	}
	return out
}

// Items returns every planned item in manifest order.
func (p *Plan) Items() []Item {
	out := make([]Item, 0, len(p.ToDownload)+len(p.ToReplace)+len(p.UpToDate)+len(p.VerificationErrors))
	out = append(out, p.ToDownload...)
	out = append(out, p.ToReplace...)
	out = append(out, p.UpToDate...)
	out = append(out, p.VerificationErrors...)
	slices.SortFunc(out, func(a, b Item) int { return cmp.Compare(a.Index, b.Index) })
	return out
}

// InSync reports whether the directory already matches the manifest.
func (p *Plan) InSync() bool {
	return p.ActionCount() == 0 && len(p.VerificationErrors) == 0
}

// Planner computes plans using a Verifier.
type Planner struct {
	Verifier verify.Verifier
}

// New returns a Planner using v, or verify.Default when v is nil.
func New(v verify.Verifier) *Planner {
	if v == nil {
		v = verify.Default
	}
	return &Planner{Verifier: v}
}

// Compute is shorthand for New(nil).Plan with a background context.
func Compute(m *manifest.Manifest, dir string) (*Plan, error) {
	return New(nil).Plan(context.Background(), m, dir)
}

// Plan places every entry of m in exactly one bucket. It performs no network
// I/O and never modifies dir. The context is checked between entries.
func (pl *Planner) Plan(ctx context.Context, m *manifest.Manifest, dir string) (*Plan, error) {
	v := pl.Verifier
	if v == nil {
		v = verify.Default
	}

	p := &Plan{Dir: dir}
	for i, e := range m.Entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("planning cancelled: %w", err)
		}

		target := filepath.Join(dir, e.EffectiveFilename())
		it := Item{Index: i, Entry: e, TargetPath: target}

		info, err := os.Stat(target)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			it.Kind = Download
			p.ToDownload = append(p.ToDownload, it)
			continue
		case err != nil:
			it.Kind = VerificationError
			it.Err = err
			p.VerificationErrors = append(p.VerificationErrors, it)
			continue
		case info.IsDir():
			it.Kind = VerificationError
			it.Err = fmt.Errorf("%s is a directory", target)
			p.VerificationErrors = append(p.VerificationErrors, it)
			continue
		}

		ok, err := v.VerifyFile(target, e.Hash)
		switch {
		case err != nil:
			it.Kind = VerificationError
			it.Err = err
			p.VerificationErrors = append(p.VerificationErrors, it)
		case ok:
			it.Kind = UpToDate
			p.UpToDate = append(p.UpToDate, it)
		default:
			it.Kind = Replace
			it.ExistingPath = target
			p.ToReplace = append(p.ToReplace, it)
		}
	}
	return p, nil
}
