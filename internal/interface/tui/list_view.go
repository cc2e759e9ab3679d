package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/neilberkman/ccjournal/internal/core/stats"
)

type entryListItem struct {
	entry stats.EntryInfo
}

func (i entryListItem) FilterValue() string {
	return i.entry.Title + " " + strings.Join(i.entry.Tags, " ")
}

func (i entryListItem) Title() string {
	return i.entry.Title
}

func (i entryListItem) Description() string {
	parts := []string{i.entry.Date}
	if len(i.entry.Tags) > 0 {
		parts = append(parts, strings.Join(i.entry.Tags, ", "))
	}
	if i.entry.Mood != 0 {
		parts = append(parts, fmt.Sprintf("mood %d", i.entry.Mood))
	}
	parts = append(parts, fmt.Sprintf("%d words", i.entry.WordCount), humanize.Time(i.entry.ModTime))
	return strings.Join(parts, " | ")
}

type entryDelegate struct {
	list.DefaultDelegate
}

func (d entryDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	e, ok := item.(entryListItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	title := e.Title()
	desc := e.Description()
	if index == m.Index() {
		title = selectedItemStyle.Render(title)
		desc = selectedItemStyle.Faint(true).Render(desc)
	} else {
		title = itemStyle.Render(title)
		desc = itemStyle.Render(desc)
	}

	fmt.Fprintf(w, "%s\n%s", title, desc)
}

func createEntryList(entries []stats.EntryInfo, width, height int) list.Model {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = entryListItem{entry: e}
	}

	delegate := entryDelegate{DefaultDelegate: list.NewDefaultDelegate()}

	l := list.New(items, delegate, width, height-1) // Reserve 1 line for help text
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	return l
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.loaded {
		return m, nil
	}

	// Keys go to the filter input while filtering
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "enter":
		if selected, ok := m.list.SelectedItem().(entryListItem); ok {
			entry := selected.entry
			m.currentEntry = &entry
			m.viewport = createViewport(entry, m.width, m.height)
			m.mode = detailView
			m.status = ""
		}
		return m, nil

	case "r":
		return m, loadEntries(m.source)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) viewList() string {
	helpText := helpStyle.Render("↑/k up • ↓/j down • / filter • enter open • r reload • q quit • ? more")

	if len(m.entries) == 0 {
		return "No journal entries yet.\n\n" + helpText
	}

	return m.list.View() + "\n" + helpText
}
