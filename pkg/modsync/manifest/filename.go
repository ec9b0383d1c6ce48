package manifest

import (
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultExtension is appended to filenames derived from an entry id.
const DefaultExtension = ".zip"

// packageExtensions are the suffixes that mark a URL path segment as naming
// an installable package.
var packageExtensions = map[string]bool{
	".zip": true,
	".7z":  true,
	".rar": true,
	".pak": true,
	".dlc": true,
}

// IsPackageFile reports whether name ends in a recognised package extension.
func IsPackageFile(name string) bool {
	return packageExtensions[strings.ToLower(path.Ext(name))]
}

// EffectiveFilename is the name the entry's file has inside the target
// directory: the explicit filename, else the source URL's last segment when
// it names a package file, else the sanitized id plus DefaultExtension.
func (e Entry) EffectiveFilename() string {
	if e.Filename != "" {
		return e.Filename
	}
	if name := urlFilename(e.SourceURL); name != "" {
		return name
	}
	name := SanitizeFilename(e.ID)
	if IsPackageFile(name) {
		return name
	}
	return name + DefaultExtension
}

func urlFilename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return ""
	}
	seg := path.Base(u.Path)
	if !isBareName(seg) || !IsPackageFile(seg) {
		return ""
	}
	return seg
}

var foldAccents = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// SanitizeFilename folds accents and replaces every character outside
// [A-Za-z0-9._-] with an underscore.
func SanitizeFilename(s string) string {
	folded, _, err := transform.String(foldAccents, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "entry"
	}
	return out
}

// isBareName reports whether name can be used as a single path element.
func isBareName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
