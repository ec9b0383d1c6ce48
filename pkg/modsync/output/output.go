// Package output renders plans, install outcomes, manifest diffs and the
// history and backup listings in various formats (pretty, plain, json, yaml,
// table, tsv, csv, markdown).
//
// Every command builds a Report with one of the From* helpers and hands it
// to a formatter looked up by name:
//
//	f, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := f.Format(&buf, output.FromPlan(m, p)); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Tone selects how a row or value is highlighted by the pretty formatter.
type Tone int

const (
	ToneNormal Tone = iota
	ToneSuccess
	ToneWarning
	ToneDanger
	ToneMuted
)

// Field is one labelled summary value.
type Field struct {
	Label string
	Value string
	Tone  Tone
}

// Row is one table line. Cells line up with Report.Columns.
type Row struct {
	Cells []string
	Tone  Tone
}

// Report is what every formatter renders. Text formatters use the summary
// and table; json and yaml encode Data.
type Report struct {
	Kind     string // plan, install, diff, history, backups, manifests
	Title    string
	Summary  []Field
	Columns  []string
	Rows     []Row
	Warnings []string
	Empty    string // shown by pretty when there are no rows

	Data any
}

// Formatter renders a Report.
type Formatter interface {
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory creates a Formatter.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds a factory, replacing any formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the registered names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns the formatter names in the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// DisableColor turns off ANSI styling for everything rendered with lipgloss.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
