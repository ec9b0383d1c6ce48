package manifest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var hashPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ValidationError describes one invariant violation. Index is the offending
// entry's position, or -1 for manifest-level problems.
type ValidationError struct {
	Index   int
	EntryID string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.EntryID != "" {
		return fmt.Sprintf("entries[%d] (%s).%s: %s", e.Index, e.EntryID, e.Field, e.Message)
	}
	return fmt.Sprintf("entries[%d].%s: %s", e.Index, e.Field, e.Message)
}

// Validate checks every manifest and entry invariant and returns all
// violations found, in document order. A nil result means m is valid.
func Validate(m *Manifest) []ValidationError {
	if m == nil {
		return []ValidationError{{Index: -1, Field: "manifest", Message: "is missing"}}
	}

	var errs []ValidationError
	top := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Index: -1, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if m.SchemaVersion < 1 || m.SchemaVersion > CurrentSchemaVersion {
		top("schema_version", "unsupported version %d (supported: 1..%d)", m.SchemaVersion, CurrentSchemaVersion)
	}
	if strings.TrimSpace(m.ID) == "" {
		top("id", "is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		top("name", "is required")
	}
	if !m.Game.Valid() {
		top("game", "unsupported game %q", m.Game)
	}
	if m.Revision < 1 {
		top("revision", "must be at least 1, got %d", m.Revision)
	}
	if m.LastUpdated.IsZero() {
		top("last_updated", "is required")
	}
	if len(m.Entries) == 0 {
		top("entries", "at least one entry is required")
	}

	ids := make(map[string]int, len(m.Entries))
	names := make(map[string]int, len(m.Entries))
	for i, e := range m.Entries {
		errs = append(errs, validateEntry(i, e)...)

		if e.ID != "" {
			key := strings.ToLower(e.ID)
			if first, dup := ids[key]; dup {
				errs = append(errs, ValidationError{
					Index: i, EntryID: e.ID, Field: "id",
					Message: fmt.Sprintf("duplicates entries[%d]", first),
				})
			} else {
				ids[key] = i
			}
		}

		name := strings.ToLower(e.EffectiveFilename())
		if first, dup := names[name]; dup {
			errs = append(errs, ValidationError{
				Index: i, EntryID: e.ID, Field: "filename",
				Message: fmt.Sprintf("%q is also the target of entries[%d]", e.EffectiveFilename(), first),
			})
		} else {
			names[name] = i
		}
	}

	return errs
}

func validateEntry(i int, e Entry) []ValidationError {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Index: i, EntryID: e.ID, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(e.ID) == "" {
		add("id", "is required")
	}
	if !hashPattern.MatchString(e.Hash) {
		add("hash", "must be 64 hexadecimal characters")
	}
	if e.SizeBytes <= 0 {
		add("size_bytes", "must be greater than zero, got %d", e.SizeBytes)
	}
	if err := checkSourceURL(e.SourceURL); err != nil {
		add("source_url", "%v", err)
	}
	if e.Filename != "" && !isBareName(e.Filename) {
		add("filename", "%q must be a plain file name", e.Filename)
	}
	if e.Version != "" {
		if _, err := semver.NewVersion(e.Version); err != nil {
			add("version", "%q is not a semantic version", e.Version)
		}
	}
	return errs
}

func checkSourceURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("cannot be parsed: %w", err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%q must be an absolute http or https URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
