package manifest

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Diff is the entry-level difference between two manifests.
type Diff struct {
	Added         []Entry
	Removed       []Entry
	Changed       []ChangedEntry
	Unchanged     []Entry
	RevisionDelta int
}

// ChangedEntry pairs the old and new form of an entry whose content hash
// differs.
type ChangedEntry struct {
	Old Entry
	New Entry
}

// VersionDirection classifies how an entry's declared version moved.
type VersionDirection string

const (
	VersionUpgrade   VersionDirection = "upgrade"
	VersionDowngrade VersionDirection = "downgrade"
	VersionSame      VersionDirection = "same"
	VersionUnknown   VersionDirection = "unknown"
)

// VersionChange compares the declared versions of the pair. Missing or
// unparsable versions give VersionUnknown.
func (c ChangedEntry) VersionChange() VersionDirection {
	if c.Old.Version == "" || c.New.Version == "" {
		return VersionUnknown
	}
	oldV, err := semver.NewVersion(c.Old.Version)
	if err != nil {
		return VersionUnknown
	}
	newV, err := semver.NewVersion(c.New.Version)
	if err != nil {
		return VersionUnknown
	}
	switch newV.Compare(oldV) {
	case 1:
		return VersionUpgrade
	case -1:
		return VersionDowngrade
	default:
		return VersionSame
	}
}

// HasChanges reports whether any entry was added, removed or changed.
func (d *Diff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// Compare matches entries of oldM and newM by id, ignoring case. Added,
// changed and unchanged entries follow newM's order; removed entries follow
// oldM's order.
func Compare(oldM, newM *Manifest) *Diff {
	d := &Diff{RevisionDelta: newM.Revision - oldM.Revision}

	oldByID := make(map[string]Entry, len(oldM.Entries))
	for _, e := range oldM.Entries {
		key := strings.ToLower(e.ID)
		if _, seen := oldByID[key]; !seen {
			oldByID[key] = e
		}
	}

	inNew := make(map[string]bool, len(newM.Entries))
	for _, e := range newM.Entries {
		key := strings.ToLower(e.ID)
		inNew[key] = true

		prev, ok := oldByID[key]
		switch {
		case !ok:
			d.Added = append(d.Added, e)
		case strings.EqualFold(prev.Hash, e.Hash):
			d.Unchanged = append(d.Unchanged, e)
		default:
			d.Changed = append(d.Changed, ChangedEntry{Old: prev, New: e})
		}
	}

	for _, e := range oldM.Entries {
		if !inNew[strings.ToLower(e.ID)] {
			d.Removed = append(d.Removed, e)
		}
	}

	return d
}
