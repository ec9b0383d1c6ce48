package main

import (
	"bytes"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/modsync/pkg/modsync/events"
)

func send(t *testing.T, m installModel, ev events.Event) (installModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(eventMsg(ev))
	im, ok := next.(installModel)
	require.True(t, ok)
	return im, cmd
}

func TestInstallModelTracksDownload(t *testing.T) {
	m := newInstallModel()

	m, _ = send(t, m, events.Event{Kind: events.Snapshot, Phase: events.PhaseDownloading, Total: 2, OverallPercent: 25, Status: "Downloading Tractor"})
	m, _ = send(t, m, events.Event{Kind: events.ItemStarted, Index: 1, Total: 2, EntryID: "tractor"})
	m, cmd := send(t, m, events.Event{Kind: events.DownloadProgress, Index: 1, Total: 2, EntryID: "tractor", BytesReceived: 1024, BytesTotal: 2048})
	assert.Nil(t, cmd)

	view := m.View()
	assert.Contains(t, view, "Downloading Tractor")
	assert.Contains(t, view, "1/2")
	assert.Contains(t, view, "tractor")
	assert.Contains(t, view, "1.0 KiB / 2.0 KiB")
}

func TestInstallModelUnknownSize(t *testing.T) {
	m := newInstallModel()
	m, _ = send(t, m, events.Event{Kind: events.ItemStarted, Index: 1, Total: 1, EntryID: "plow"})

	assert.Contains(t, m.View(), "0 B / ?")
}

func TestInstallModelPrintsFinishedEntries(t *testing.T) {
	m := newInstallModel()
	m, _ = send(t, m, events.Event{Kind: events.ItemStarted, Index: 1, Total: 2, EntryID: "tractor"})

	m, cmd := send(t, m, events.Event{Kind: events.ItemCompleted, Index: 1, Total: 2, EntryID: "tractor", Success: true})
	require.NotNil(t, cmd)
	assert.NotContains(t, m.View(), "tractor")

	_, cmd = send(t, m, events.Event{Kind: events.ItemCompleted, Index: 2, Total: 2, EntryID: "plow", Err: errors.New("boom")})
	assert.NotNil(t, cmd)
}

func TestInstallModelQuitsOnTerminalPhase(t *testing.T) {
	m := newInstallModel()

	m, cmd := send(t, m, events.Event{Kind: events.Snapshot, Phase: events.PhaseComplete, OverallPercent: 100})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestLineSink(t *testing.T) {
	var buf bytes.Buffer
	sink := lineSink(&buf)

	sink.Publish(events.Event{Kind: events.ItemStarted, Index: 1, Total: 2, EntryID: "tractor"})
	sink.Publish(events.Event{Kind: events.DownloadProgress, Index: 1, Total: 2, EntryID: "tractor", BytesReceived: 10})
	sink.Publish(events.Event{Kind: events.ItemCompleted, Index: 1, Total: 2, EntryID: "tractor", Success: true})
	sink.Publish(events.Event{Kind: events.ItemCompleted, Index: 2, Total: 2, EntryID: "plow", Err: errors.New("boom")})

	assert.Equal(t, "[1/2] tractor\n[2/2] plow failed: boom\n", buf.String())
}
