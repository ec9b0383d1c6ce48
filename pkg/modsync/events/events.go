// Package events carries installer progress to whoever is listening.
//
// The installer publishes to a single Sink. Listeners never influence the
// outcome of a run: a nil sink is allowed and Safe recovers from panicking
// listeners.
package events

import (
	"time"
)

// Kind identifies the notification channel an Event belongs to.
type Kind int

const (
	ItemStarted Kind = iota
	ItemCompleted
	DownloadProgress
	Snapshot
)

func (k Kind) String() string {
	switch k {
	case ItemStarted:
		return "item-started"
	case ItemCompleted:
		return "item-completed"
	case DownloadProgress:
		return "download-progress"
	case Snapshot:
		return "snapshot"
	}
	return "unknown"
}

// Phase is the installer's state as reported in snapshots.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAnalyzing
	PhaseDownloading
	PhaseVerifying
	PhaseBackingUp
	PhaseInstalling
	PhaseComplete
	PhaseCancelled
	PhaseFailedPartially
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:            "idle",
	PhaseAnalyzing:       "analyzing",
	PhaseDownloading:     "downloading",
	PhaseVerifying:       "verifying",
	PhaseBackingUp:       "backing-up",
	PhaseInstalling:      "installing",
	PhaseComplete:        "complete",
	PhaseCancelled:       "cancelled",
	PhaseFailedPartially: "failed-partially",
	PhaseFailed:          "failed",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

// Terminal reports whether p ends a run.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseComplete, PhaseCancelled, PhaseFailedPartially, PhaseFailed:
		return true
	}
	return false
}

// Event is a single notification. Which fields are meaningful depends on
// Kind:
//
//   - ItemStarted: Index, Total, EntryID
//   - ItemCompleted: Index, Total, EntryID, Success, Err
//   - DownloadProgress: EntryID, BytesReceived, BytesTotal
//   - Snapshot: Phase, Index, Total, OverallPercent, CurrentPercent, Status
//
// Index is 1-based.
type Event struct {
	Kind           Kind
	Phase          Phase
	Index          int
	Total          int
	EntryID        string
	Success        bool
	Err            error
	BytesReceived  int64
	BytesTotal     int64
	OverallPercent float64
	CurrentPercent float64
	Status         string
	Time           time.Time
}

// Sink receives events. Publish must not block for long.
type Sink interface {
	Publish(Event)
}

// Nop discards every event.
var Nop Sink = nopSink{}

type nopSink struct{}

func (nopSink) Publish(Event) {}

// Funcs adapts plain callbacks to a Sink. Nil fields are skipped.
type Funcs struct {
	OnItemStarted      func(Event)
	OnItemCompleted    func(Event)
	OnDownloadProgress func(Event)
	OnSnapshot         func(Event)
}

// Publish dispatches ev to the callback for its kind.
func (f Funcs) Publish(ev Event) {
	var fn func(Event)
	switch ev.Kind {
	case ItemStarted:
		fn = f.OnItemStarted
	case ItemCompleted:
		fn = f.OnItemCompleted
	case DownloadProgress:
		fn = f.OnDownloadProgress
	case Snapshot:
		fn = f.OnSnapshot
	}
	if fn != nil {
		fn(ev)
	}
}

// Safe wraps s so that a nil sink is a no-op and a panicking listener is
// contained.
func Safe(s Sink) Sink {
	if s == nil {
		return Nop
	}
	if _, ok := s.(safeSink); ok {
		return s
	}
	return safeSink{s}
}

type safeSink struct {
	s Sink
}

func (s safeSink) Publish(ev Event) {
	defer func() { _ = recover() }()
	s.s.Publish(ev)
}

// Multi fans an event out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, Safe(s))
		}
	}
	return out
}

type multi []Sink

func (m multi) Publish(ev Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}
