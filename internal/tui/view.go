package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"envman/internal/envfile"
	"envman/internal/model"
	"envman/internal/registry"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	dimmedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	adviceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")) // Orange

	dimColor    = lipgloss.Color("240")
	activeColor = lipgloss.Color("205")
	borderColor = lipgloss.Color("63")
)

func (m AppModel) View() string {
	if m.Loading {
		return fmt.Sprintf("\n  Scanning %s for .env files... please wait.\n", m.ScanRoot)
	}
	if m.ShowHelp {
		return m.renderHelpDialog()
	}

	// Subtracting 6 for horizontal margin (borders x2 + buffer)
	// Subtracting 8 for vertical margin (title, footer, borders + buffer)
	width := m.WindowSize.Width
	height := m.WindowSize.Height

	netWidth := width - 6
	if netWidth < 20 {
		netWidth = 20
	}

	leftWidth := netWidth * 2 / 5
	rightWidth := netWidth - leftWidth

	boxHeight := height - 6
	if boxHeight < 6 {
		boxHeight = 6
	}

	// Interior height (excluding borders)
	interiorHeight := boxHeight - 2
	if interiorHeight < 2 {
		interiorHeight = 2
	}

	left := m.renderFiles(leftWidth, interiorHeight)
	right := m.renderVariables(rightWidth, interiorHeight)

	// Footer
	help := "Files: ↑/↓: Navigate • Enter: Open • b: Backup • o: Open path • r: Rescan • Tab: Variables • ?: Help • q: Quit"
	if m.RightFocus {
		help = "Variables: ↑/↓: Navigate • e: Edit • a: Add • x: Delete • c: Context • s: Save • Tab: Files • ?: Help • q: Quit"
	}

	var footer strings.Builder
	footer.WriteString("\n")
	switch {
	case m.Err != nil:
		footer.WriteString(errorStyle.Render("Error: " + model.Message(m.Err)))
	case m.Status != "":
		footer.WriteString(m.Status)
	}
	footer.WriteString("\n")
	if m.InputMode != InputNone {
		footer.WriteString(inputLabel(m.InputMode) + m.InputBuffer.View())
	} else {
		footer.WriteString(dimmedStyle.Render(help))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, left, right) + footer.String()
}

func (m AppModel) renderFiles(width, interiorHeight int) string {
	var view strings.Builder
	view.WriteString(titleStyle.Render(fmt.Sprintf("Env Files (%d)", len(m.Files))))
	view.WriteString("\n\n")

	if len(m.Files) == 0 {
		view.WriteString(dimmedStyle.Render("No .env files registered.\nPress o to add one or r to rescan."))
	}

	// Header is 2 lines (Title + 1 blank line)
	start, end := window(len(m.Files), m.SelectedIdx, interiorHeight-2)
	for i := start; i < end; i++ {
		f := m.Files[i]

		statusIcon := model.IconLoaded
		if m.Missing[f.ID] {
			statusIcon = model.IconMissing
		} else if m.Session != nil && m.Session.ID() == f.ID {
			switch m.Session.State() {
			case envfile.StateDirty:
				statusIcon = model.IconDirty
			case envfile.StateSaved:
				statusIcon = model.IconSaved
			}
		}

		line := fmt.Sprintf("%2d. %s %s", i+1, statusIcon, f.RelativePath)
		if envfile.IsBackupName(f.Name) {
			line += " (backup)"
		}
		line = truncate(line, width-2)

		style := normalStyle
		switch {
		case i == m.SelectedIdx && !m.RightFocus:
			style = selectedStyle
		case i == m.SelectedIdx:
			style = titleStyle
		case envfile.IsBackupName(f.Name) || m.Missing[f.ID]:
			style = dimmedStyle
		}
		view.WriteString(style.Render(line))
		view.WriteString("\n")
	}

	border := borderColor
	if !m.RightFocus {
		border = activeColor
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(border).
		Render(strings.TrimSuffix(view.String(), "\n"))
}

func (m AppModel) renderVariables(width, interiorHeight int) string {
	var view strings.Builder

	border := dimColor
	if m.Session != nil {
		border = borderColor
	}
	if m.RightFocus {
		border = activeColor
	}

	if m.Session == nil || m.Session.Document() == nil {
		view.WriteString(titleStyle.Render("Variables"))
		view.WriteString("\n\n")
		view.WriteString(dimmedStyle.Render("Select a file and press Enter."))
		return lipgloss.NewStyle().
			Width(width).
			Height(interiorHeight).
			Border(lipgloss.NormalBorder()).
			BorderForeground(border).
			Render(view.String())
	}

	file := m.Session.File()
	doc := m.Session.Document()
	title := fmt.Sprintf("Variables: %s [%s]", file.Name, m.Session.State())
	view.WriteString(titleStyle.Render(truncate(title, width-2)))
	view.WriteString("\n")
	view.WriteString(dimmedStyle.Render(truncate(file.Path, width-2)))
	view.WriteString("\n\n")

	// Reserve room for the context block when it is shown
	listHeight := interiorHeight - 3
	if m.ShowContext {
		listHeight -= 8
	}
	if listHeight < 1 {
		listHeight = 1
	}

	if len(m.Keys) == 0 {
		view.WriteString(dimmedStyle.Render("No variables. Press a to add one."))
	}

	start, end := window(len(m.Keys), m.VarSelectedIdx, listHeight)
	for i := start; i < end; i++ {
		key := m.Keys[i]
		entry, _ := doc.Variables.Get(key)
		isRowSelected := m.RightFocus && i == m.VarSelectedIdx

		value := entry.Value
		icon := " "
		if envfile.LooksSecret(key) {
			icon = model.IconSecret
			if !isRowSelected {
				value = registry.Mask(value)
			}
		}
		if m.Added[key] {
			icon = model.IconNew
		}

		lineNo := "    "
		if entry.LineNumber > 0 {
			lineNo = fmt.Sprintf("%4d", entry.LineNumber)
		}

		line := truncate(fmt.Sprintf("%s %s %s=%s", lineNo, icon, key, value), width-2)

		style := normalStyle
		if isRowSelected {
			style = selectedStyle
		}
		view.WriteString(style.Render(line))
		view.WriteString("\n")
	}

	if m.ShowContext {
		view.WriteString(m.renderContext(width))
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(border).
		Render(strings.TrimSuffix(view.String(), "\n"))
}

func (m AppModel) renderContext(width int) string {
	var b strings.Builder
	b.WriteString("\n--- Source ---")

	key, ok := m.SelectedKey()
	if !ok {
		return b.String()
	}
	entry, _ := m.Session.Document().Variables.Get(key)
	if entry.LineNumber == 0 {
		b.WriteString("\n" + adviceStyle.Render("Not in the file yet; it will be appended on save."))
		return b.String()
	}

	lineContext := model.GetLineContext(m.Session.File().Path, entry.LineNumber)
	if lineContext.ErrorMsg != "" {
		b.WriteString("\n" + errorStyle.Render(lineContext.ErrorMsg))
		return b.String()
	}

	if lineContext.HasBefore2 {
		b.WriteString(fmt.Sprintf("\n  %4d  %s", lineContext.LineNumber-2, lineContext.Before2))
	}
	if lineContext.HasBefore1 {
		b.WriteString(fmt.Sprintf("\n  %4d  %s", lineContext.LineNumber-1, lineContext.Before1))
	}
	b.WriteString(fmt.Sprintf("\n%s %4d  %s", model.IconSelected, lineContext.LineNumber, lineContext.Target))
	if lineContext.HasAfter1 {
		b.WriteString(fmt.Sprintf("\n  %4d  %s", lineContext.LineNumber+1, lineContext.After1))
	}
	if lineContext.HasAfter2 {
		b.WriteString(fmt.Sprintf("\n  %4d  %s", lineContext.LineNumber+2, lineContext.After2))
	}

	lines := strings.Split(b.String(), "\n")
	for i, l := range lines {
		lines[i] = truncate(l, width-2)
	}
	return strings.Join(lines, "\n")
}

func (m *AppModel) renderHelpDialog() string {
	w, h := m.WindowSize.Width, m.WindowSize.Height
	if w < 20 || h < 10 {
		return "Window too small"
	}

	helpWidth := w * 80 / 100
	if helpWidth < 40 {
		helpWidth = 40
	}
	if helpWidth > w-4 {
		helpWidth = w - 4
	}
	helpHeight := h - 6
	if helpHeight < 5 {
		helpHeight = 5
	}

	lines := strings.Split(m.HelpContent, "\n")
	// Adjust height for title and border
	contentHeight := helpHeight - 2

	startY := m.HelpScrollY
	if startY > len(lines)-contentHeight {
		startY = len(lines) - contentHeight
	}
	if startY < 0 {
		startY = 0
	}
	m.HelpScrollY = startY // Correct it back

	endY := startY + contentHeight
	if endY > len(lines) {
		endY = len(lines)
	}

	content := strings.Join(lines[startY:endY], "\n")

	dialog := lipgloss.NewStyle().
		Width(helpWidth).
		Height(helpHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(0, 1).
		Render(content)

	return lipgloss.Place(w, h,
		lipgloss.Center, lipgloss.Center,
		dialog,
	)
}

// window returns the visible [start, end) slice of n rows that keeps the
// cursor roughly centred.
func window(n, cursor, visible int) (int, int) {
	if visible < 1 {
		visible = 1
	}
	if n <= visible {
		return 0, n
	}
	start := 0
	if cursor >= visible/2 {
		start = cursor - visible/2
	}
	if start+visible > n {
		start = n - visible
	}
	return start, start + visible
}

func truncate(s string, width int) string {
	if width < 4 {
		width = 4
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

func inputLabel(p InputPurpose) string {
	switch p {
	case InputEdit:
		return "New value: "
	case InputAdd:
		return "Add: "
	case InputOpen:
		return "Register file: "
	}
	return ""
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, ScanCmd(m.Registry, m.ScanRoot, m.ScanOptions))
}
