package tui

import (
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/ccjournal/internal/core/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	entries []stats.EntryInfo
	err     error
}

func (f fakeSource) RecentEntries(limit int) ([]stats.EntryInfo, error) {
	return f.entries, f.err
}

const sampleContent = `---
date: "2025-03-14"
tags: [work]
---
# Journal Entry - March 14, 2025

**Date:** March 14, 2025
**Tags:** work

## Conversation

**You (18:30)**: How was my day?

**Assistant (18:30)**: Tell me more.
`

func loaded(t *testing.T, src Source) Model {
	t.Helper()
	var m tea.Model = New(src)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	msg := New(src).Init()()
	m, _ = m.Update(msg)
	return m.(Model)
}

func TestModel_OpenAndBack(t *testing.T) {
	src := fakeSource{entries: []stats.EntryInfo{{
		Path:    "/j/journal_2025-03-14.md",
		Name:    "journal_2025-03-14.md",
		Title:   "Journal Entry - March 14, 2025",
		Date:    "2025-03-14",
		Tags:    []string{"work"},
		ModTime: time.Now(),
		Content: sampleContent,
	}}}

	m := loaded(t, src)
	require.Len(t, m.entries, 1)
	assert.Contains(t, m.View(), "Journal Entry - March 14, 2025")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.Equal(t, detailView, m.mode)
	require.NotNil(t, m.currentEntry)

	view := m.View()
	assert.Contains(t, view, "journal_2025-03-14.md")
	assert.Contains(t, view, "How was my day?")
	assert.NotContains(t, view, "tags: [work]")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.Equal(t, listView, m.mode)
	assert.Nil(t, m.currentEntry)
}

func TestModel_Empty(t *testing.T) {
	m := loaded(t, fakeSource{})
	assert.Contains(t, m.View(), "No journal entries yet.")
}

func TestModel_LoadError(t *testing.T) {
	m := loaded(t, fakeSource{err: errors.New("boom")})
	assert.Contains(t, m.View(), "Error: boom")
}

func TestModel_HelpToggle(t *testing.T) {
	m := loaded(t, fakeSource{})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	m = next.(Model)
	assert.Equal(t, helpView, m.mode)
	assert.Contains(t, m.View(), "Journal Browser - Help")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, listView, next.(Model).mode)

	// ? closes help as well
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	require.Equal(t, helpView, next.(Model).mode)
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.Equal(t, listView, next.(Model).mode)
}

func TestModel_FilterTakesTypedKeys(t *testing.T) {
	m := loaded(t, fakeSource{entries: []stats.EntryInfo{{
		Path:    "/j/journal_2025-03-14.md",
		Name:    "journal_2025-03-14.md",
		Title:   "Journal Entry - March 14, 2025",
		Date:    "2025-03-14",
		ModTime: time.Now(),
		Content: sampleContent,
	}}})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	m = next.(Model)
	require.Equal(t, list.Filtering, m.list.FilterState())

	for _, r := range "q?" {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}

	assert.Equal(t, listView, m.mode)
	assert.Equal(t, list.Filtering, m.list.FilterState())
	assert.Equal(t, "q?", m.list.FilterValue())
}
