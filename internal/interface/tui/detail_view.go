package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/neilberkman/ccjournal/internal/core/journal"
	"github.com/neilberkman/ccjournal/internal/core/stats"
)

func createViewport(entry stats.EntryInfo, width, height int) viewport.Model {
	vp := viewport.New(width, max(height-4, 1))
	vp.SetContent(renderEntry(entry, width))
	return vp
}

// renderEntry styles the entry body. The front matter is dropped since the
// header lines repeat it.
func renderEntry(entry stats.EntryInfo, width int) string {
	wrap := lipgloss.NewStyle().Width(max(width-2, 20))

	var sb strings.Builder
	for _, line := range strings.Split(journal.StripFrontMatter(entry.Content), "\n") {
		switch {
		case strings.HasPrefix(line, "# "):
			sb.WriteString(titleStyle.Render(strings.TrimPrefix(line, "# ")))
		case strings.HasPrefix(line, "## "):
			sb.WriteString(sectionStyle.Render(strings.TrimPrefix(line, "## ")))
		case strings.HasPrefix(line, "**You ("):
			label, text, _ := strings.Cut(line, "**: ")
			sb.WriteString(userStyle.Render(strings.TrimPrefix(label, "**")) + " " + wrap.Render(text))
		case strings.HasPrefix(line, "**Assistant ("):
			label, text, _ := strings.Cut(line, "**: ")
			sb.WriteString(assistantStyle.Render(strings.TrimPrefix(label, "**")) + " " + wrap.Render(text))
		case strings.HasPrefix(line, "*Word count:"):
			sb.WriteString(metaStyle.Render(strings.Trim(line, "*")))
		default:
			sb.WriteString(wrap.Render(line))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = listView
		m.currentEntry = nil
		return m, nil

	case "c":
		if m.currentEntry != nil {
			if err := clipboard.WriteAll(m.currentEntry.Path); err != nil {
				m.status = "copy failed: " + err.Error()
			} else {
				m.status = "copied " + m.currentEntry.Path
			}
		}
		return m, nil

	case "g":
		m.viewport.GotoTop()
		return m, nil
	case "G":
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) viewDetail() string {
	if m.currentEntry == nil {
		return ""
	}

	header := headerStyle.Render(m.currentEntry.Name)
	footer := fmt.Sprintf("%3.f%% • c copy path • g/G top/bottom • esc back • q quit", m.viewport.ScrollPercent()*100)
	if m.status != "" {
		footer = m.status
	}

	return header + "\n\n" + m.viewport.View() + "\n" + helpStyle.Render(footer)
}
