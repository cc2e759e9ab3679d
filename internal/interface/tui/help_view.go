package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "?":
		m.mode = listView
		return m, nil
	}

	return m, nil
}

func (m Model) viewHelp() string {
	help := `
Journal Browser - Help
══════════════════════

ENTRY LIST
──────────
  ↑/↓, j/k     Navigate entries
  Enter        Read entry
  /            Filter by title or tag
  r            Reload entries
  ?            Show this help
  q            Quit

ENTRY VIEW
──────────
  j/k          Scroll line by line
  d/u          Scroll half page
  g/G          Jump to top/bottom
  c            Copy entry path to clipboard
  esc          Back to entry list
  q            Back to entry list

Press esc or ? to return to the entry list
`

	return helpStyle.Render(help)
}
