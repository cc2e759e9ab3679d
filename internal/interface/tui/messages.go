package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/ccjournal/internal/core/stats"
)

type errMsg struct {
	err error
}

type entriesLoadedMsg struct {
	entries []stats.EntryInfo
}

func loadEntries(source Source) tea.Cmd {
	return func() tea.Msg {
		entries, err := source.RecentEntries(maxEntries)
		if err != nil {
			return errMsg{err}
		}
		return entriesLoadedMsg{entries: entries}
	}
}
