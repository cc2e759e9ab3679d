// Package tui is a terminal browser for journal entries
package tui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/ccjournal/internal/core/stats"
)

// Source supplies entries to browse. *journaling.Service satisfies it.
type Source interface {
	RecentEntries(limit int) ([]stats.EntryInfo, error)
}

type viewMode int

const (
	listView viewMode = iota
	detailView
	helpView
)

// maxEntries bounds how many entries the browser loads
const maxEntries = 500

type Model struct {
	source   Source
	mode     viewMode
	list     list.Model
	viewport viewport.Model
	width    int
	height   int
	err      error
	status   string
	loaded   bool

	entries      []stats.EntryInfo
	currentEntry *stats.EntryInfo
}

func New(source Source) Model {
	return Model{
		source: source,
		mode:   listView,
	}
}

func (m Model) Init() tea.Cmd {
	return loadEntries(m.source)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.loaded {
			m.list.SetSize(msg.Width, msg.Height-1)
		}
		if m.currentEntry != nil {
			m.viewport = createViewport(*m.currentEntry, m.width, m.height)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		// Typed keys belong to the filter input while filtering
		if m.mode == listView && m.loaded && m.list.FilterState() == list.Filtering {
			return m.updateList(msg)
		}

		switch msg.String() {
		case "q":
			if m.mode == listView {
				return m, tea.Quit
			}
			// In other views, go back to list
			m.mode = listView
			return m, nil

		case "?":
			if m.mode != helpView {
				m.mode = helpView
				return m, nil
			}
		}

		// Mode-specific key handling
		switch m.mode {
		case listView:
			return m.updateList(msg)
		case detailView:
			return m.updateDetail(msg)
		case helpView:
			return m.updateHelp(msg)
		}

	case entriesLoadedMsg:
		m.entries = msg.entries
		m.list = createEntryList(msg.entries, m.width, m.height)
		m.loaded = true
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.err != nil {
		return "Error: " + m.err.Error() + "\n\nPress q to quit"
	}

	switch m.mode {
	case listView:
		return m.viewList()
	case detailView:
		return m.viewDetail()
	case helpView:
		return m.viewHelp()
	}

	return ""
}
