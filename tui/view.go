package tui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/samaelod/callsim/types"
)

type stepItem struct {
	index int
	step  types.ScriptedEvent
}

func (s stepItem) Title() string {
	return fmt.Sprintf("%02d +%dms %s", s.index+1, s.step.Delay, s.step.Type)
}
func (s stepItem) Description() string { return "" }
func (s stepItem) FilterValue() string { return s.Title() }

type callItem struct {
	id    string
	steps int
}

func (c callItem) label() string {
	if c.id == "" {
		return "(generated ids)"
	}
	return c.id
}

func (c callItem) replayName() string {
	return "call " + c.label()
}

func (c callItem) Title() string       { return fmt.Sprintf("%s (%d)", c.label(), c.steps) }
func (c callItem) Description() string { return "" }
func (c callItem) FilterValue() string { return c.label() }

func renderScrollbar(vp viewport.Model, height int) string {
	total := vp.TotalLineCount()
	visible := vp.VisibleLineCount()

	if total <= visible {
		return ""
	}

	trackHeight := height
	if trackHeight < 1 {
		trackHeight = visible
	}

	scrollPercent := vp.ScrollPercent()

	thumbPos := int(float64(trackHeight-1) * scrollPercent)
	if thumbPos < 0 {
		thumbPos = 0
	}
	if thumbPos > trackHeight-1 {
		thumbPos = trackHeight - 1
	}

	var sb strings.Builder
	for i := 0; i < trackHeight; i++ {
		if i == thumbPos {
			sb.WriteString(scrollbarThumb.Render("█"))
		} else {
			sb.WriteString(scrollbarTrack.Render("│"))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderListRow draws one single-line list entry with the selection marker.
func renderListRow(w io.Writer, str string, selected bool) {
	if selected {
		fmt.Fprint(w, styleSelected.Render("> "+str))
		return
	}
	fmt.Fprint(w, lipgloss.NewStyle().Foreground(colorText).Render("  "+str))
}

type stepsDelegate struct{}

func (d stepsDelegate) Height() int                               { return 1 }
func (d stepsDelegate) Spacing() int                              { return 0 }
func (d stepsDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d stepsDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(stepItem)
	if !ok {
		return
	}
	renderListRow(w, i.Title(), index == m.Index())
}

type callsDelegate struct{}

func (d callsDelegate) Height() int                               { return 1 }
func (d callsDelegate) Spacing() int                              { return 0 }
func (d callsDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d callsDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(callItem)
	if !ok {
		return
	}
	renderListRow(w, i.Title(), index == m.Index())
}

func (m Model) appTitle(width int) string {
	return styleAppTitle.Width(width).Render("CALLSIM " + m.version)
}

func (m Model) View() string {
	var content string

	// Calculate inner dimensions
	// Window border (2) + padding (2) + margin (2) = ~6 vertical space used by chrome
	windowWidth := m.width - 4
	windowHeight := m.height - 4

	if windowWidth < minWindowWidth || windowHeight < minWindowHeight {
		return styleScreenTooSmall.
			Width(m.width).
			Height(m.height).
			Render("Terminal window is too small.\nPlease resize.")
	}

	switch m.screen {

	case screenSourceSelect:
		menuTitle := styleTitle.Render("Select Source")

		cards := make([]string, 0, len(sources))
		for i, src := range sources {
			if i == m.menuCursor {
				cards = append(cards, styleMenuItemSelected.Render(src.label))
			} else {
				cards = append(cards, styleMenuItem.Render(src.label))
			}
		}

		menuContent := lipgloss.JoinVertical(lipgloss.Center,
			menuTitle,
			"\n",
			lipgloss.JoinHorizontal(lipgloss.Center, cards...),
		)

		// Title at top, menu centered in remaining space
		content = lipgloss.JoinVertical(lipgloss.Top,
			m.appTitle(windowWidth),
			lipgloss.Place(
				windowWidth, windowHeight-1,
				lipgloss.Center, lipgloss.Center,
				styleMenuContainer.Render(menuContent),
			),
		)

	case screenFilePicker:
		// Split View: Browser (1/3) | Preview (2/3)
		listWidth := windowWidth / 3
		previewWidth := windowWidth - listWidth
		panelHeight := windowHeight - 1 // -1 for title

		browserColor := colorSecondary
		if m.fileBrowser.HasValidFilesInDir(m.fileBrowser.CurrentDir) {
			browserColor = colorSuccess
		}

		previewColor := colorSecondary
		if fi, ok := m.fileBrowser.List.SelectedItem().(fileItem); ok && !fi.isDir {
			if m.fileBrowser.allows(fi.name) {
				previewColor = colorSuccess
			} else {
				previewColor = colorError
			}
		}

		browserTitle := styleTitle.MarginBottom(1).Render("Select File")
		browserView := stylePanelTitled.
			BorderForeground(browserColor).
			Width(listWidth - 4).
			Height(panelHeight).
			Render(browserTitle + "\n" + m.fileBrowser.View())

		previewTitle := styleTitle.MarginBottom(1).Render("File Preview")

		// Truncate content to fit panel
		contentHeight := panelHeight - 5 // -2 border, -1 title, -1 margin, -1 dots
		previewLines := strings.Split(m.fileBrowser.PreviewContent, "\n")
		if contentHeight > 1 && len(previewLines) > contentHeight {
			previewLines = previewLines[:contentHeight-1]
			previewLines = append(previewLines, "...")
		}

		previewView := stylePanelTitled.
			BorderForeground(previewColor).
			Width(previewWidth).
			Height(panelHeight).
			Render(previewTitle + "\n" + strings.Join(previewLines, "\n"))

		content = lipgloss.Place(
			windowWidth, windowHeight,
			lipgloss.Center, lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Top,
				m.appTitle(windowWidth),
				lipgloss.JoinHorizontal(lipgloss.Top, browserView, previewView),
			),
		)

	case screenLoading:
		var status string
		if m.err != nil {
			status = styleError.Render("Error: "+m.err.Error()) + "\n\n" +
				styleSubtext.Render("esc to pick another file • q to quit")
		} else {
			status = "Loading..."
		}

		content = lipgloss.Place(
			windowWidth, windowHeight,
			lipgloss.Center, lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center,
				m.appTitle(windowWidth),
				"\n",
				status,
			),
		)

	case screenViewScript:
		content = m.viewScript(windowWidth, windowHeight)
	}

	// Apply global window style
	return styleWindow.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m Model) viewScript(windowWidth, windowHeight int) string {
	// Layout: Left (Steps / Calls) | Right (Details / Logs)
	availWidth := windowWidth
	availHeight := windowHeight - 1 - footerHeight // title and footer

	listWidth := defaultListWidth
	if listWidth > availWidth/3 {
		listWidth = availWidth / 3
	}
	if listWidth < minListWidth {
		listWidth = minListWidth
	}

	rightWidth := availWidth - listWidth
	if rightWidth < 0 {
		rightWidth = 0
	}

	var logsHeight int
	if m.activeView == 1 {
		logsHeight = (availHeight * 70) / 100
	} else {
		logsHeight = (availHeight * 40) / 100
	}

	detailsHeight := availHeight - logsHeight
	if detailsHeight < 10 {
		detailsHeight = 10
		logsHeight = availHeight - detailsHeight
	}

	// Left column: Steps over Calls
	listHeight := (availHeight - 6) / 2 // -6 for borders and spacing
	m.stepList.SetSize(listWidth-4, listHeight)
	m.callList.SetSize(listWidth-4, listHeight)

	listPanel := func(title string, l list.Model, focused bool) string {
		color := colorSubtext
		if m.activeView == 0 && focused {
			color = colorSecondary
		}
		return stylePanelTitled.
			BorderForeground(color).
			Width(listWidth - 4).
			Height(listHeight + 2). // +2 for border
			Render(styleTitle.MarginBottom(1).Render(title) + "\n" + l.View())
	}
	leftColumn := lipgloss.JoinVertical(lipgloss.Top,
		listPanel("Steps", m.stepList, m.activeListPanel == panelSteps),
		listPanel("Calls", m.callList, m.activeListPanel == panelCalls),
	)

	// Right top: details
	detailsContentHeight := detailsHeight - 3
	if detailsContentHeight < 4 {
		detailsContentHeight = 4
	}
	detailsContent := renderDetails(m, rightWidth-4, detailsContentHeight)
	detailsTitle := styleTitle.MarginBottom(1).Render("Simulator")

	detailsBorderColor := colorSubtext
	if m.player != nil {
		if name, _, ok := m.selectedReplay(); ok {
			switch m.player.Status(name) {
			case types.ReplayRunning:
				detailsBorderColor = colorSecondary
			case types.ReplayCompleted:
				detailsBorderColor = colorSuccess
			case types.ReplayError:
				detailsBorderColor = colorError
			}
		}
	}

	rightTop := stylePanelTitled.
		BorderForeground(detailsBorderColor).
		Width(rightWidth).
		Height(detailsHeight).
		Render(detailsTitle + "\n" + detailsContent)

	// Right bottom: logs
	logsContentHeight := logsHeight - 6
	if logsContentHeight < 2 {
		logsContentHeight = 2
	}

	m.logViewport.Width = rightWidth - 7 // Width minus padding, border, and scrollbar
	m.logViewport.Height = logsContentHeight

	logsColor := colorSubtext
	if m.activeView == 1 {
		logsColor = colorSecondary
	}

	logsTitle := styleTitle.MarginBottom(1).Render("Logs")
	scrollbar := renderScrollbar(m.logViewport, logsContentHeight)
	scrollbarCol := scrollbarTrack.Width(1).Render(scrollbar)
	logsContent := logsTitle + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, m.logViewport.View(), scrollbarCol)

	rightBottom := stylePanelTitled.
		BorderForeground(logsColor).
		Width(rightWidth).
		Height(logsHeight - 2). // -2 for thick border
		Render(logsContent)

	rightColumn := lipgloss.JoinVertical(lipgloss.Top, rightTop, rightBottom)
	topArea := lipgloss.JoinHorizontal(lipgloss.Top, leftColumn, rightColumn)

	footerView := lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(colorSubtext).
		Padding(0, 1).
		Width(windowWidth - 2).
		Render(m.footer())

	return lipgloss.JoinVertical(lipgloss.Top,
		m.appTitle(windowWidth),
		lipgloss.JoinVertical(lipgloss.Top, topArea, footerView),
	)
}

func (m Model) footer() string {
	keyStyle := lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(colorSubtext)
	sep := descStyle.Render(" • ")

	hint := func(key, desc string) string {
		return keyStyle.Render(key) + descStyle.Render(" "+desc)
	}

	var hints []string
	if m.activeView == 0 {
		connect := "connect"
		if m.sim != nil && m.sim.IsConnected() {
			connect = "disconnect"
		}
		hints = []string{
			hint("<tab>", "switch focus"), hint("←/→", "steps/calls"),
			hint("c", connect), hint("r", "run"), hint("s", "stop"),
			hint("x", "clear log"), hint("R", "reset"),
			hint("e", "edit"), hint("u", "reload"), hint("q", "quit"),
		}
	} else {
		hints = []string{
			hint("<tab>", "switch focus"), hint("e", "editor"),
			hint("g", "top"), hint("G", "bottom"), hint("q", "quit"),
		}
	}
	return strings.Join(hints, sep)
}

func renderDetails(m Model, width, height int) string {
	if m.sim == nil || m.script == nil {
		return "No script loaded"
	}

	contentWidth := width - 2
	if contentWidth < 0 {
		contentWidth = 0
	}

	// Label width 10. Gap 1.
	valueMaxWidth := contentWidth - 10 - 1
	if valueMaxWidth < 5 {
		valueMaxWidth = 5
	}

	row := func(label, value string) string {
		if len(value) > valueMaxWidth {
			value = value[:valueMaxWidth-1] + "…"
		}
		return lipgloss.JoinHorizontal(lipgloss.Left,
			styleLabel.Render(label),
			styleValue.Render(value),
		)
	}

	status := m.sim.ConnectionStatus()
	conn := styleError.Render("disconnected")
	switch {
	case m.connecting:
		conn = styleSelected.Render("connecting...")
	case status.Connected:
		conn = styleSuccess.Render("connected")
		if status.ConnectedAt != nil {
			conn += styleSubtext.Render(" since " + status.ConnectedAt.Format("15:04:05"))
		}
	}

	stats := m.sim.Stats()
	var byType []string
	for _, t := range types.KnownEventTypes {
		if n := stats.EventsByType[t]; n > 0 {
			byType = append(byType, fmt.Sprintf("%s=%d", t, n))
		}
	}
	counts := "none"
	if len(byType) > 0 {
		counts = strings.Join(byType, " ")
	}

	rows := []string{
		row("Script:", fmt.Sprintf("%s (%s, %d steps, %.1fs)", m.script.Globals.Name,
			m.script.Globals.Source, len(m.script.Events), float64(m.script.TotalDelay())/1000)),
		row("Status:", conn),
		row("Events:", fmt.Sprintf("%d processed, %d/%d in log, %d listener failures",
			stats.EventsProcessed, stats.LogSize, m.sim.Options().MaxLogSize, stats.ListenerFailures)),
		row("By type:", counts),
	}

	if name, _, ok := m.selectedReplay(); ok && m.player != nil {
		rows = append(rows, row("Replay:", fmt.Sprintf("%s: %s", name, m.player.Status(name))))
	}
	if m.err != nil {
		rows = append(rows, row("Error:", styleError.Render(m.err.Error())))
	}

	selection := lipgloss.NewStyle().
		MarginTop(1).
		Foreground(colorSecondary).
		Bold(true)

	var body []string
	if m.activeListPanel == panelSteps {
		body = append(body, selection.Render("Step"))
		if item, ok := m.stepList.SelectedItem().(stepItem); ok {
			body = append(body, describeStep(item.step)...)
		}
	} else {
		body = append(body, selection.Render("Recent events for call"))
		if item, ok := m.callList.SelectedItem().(callItem); ok {
			events := m.sim.EventsByCallID(item.id)
			if len(events) == 0 {
				body = append(body, styleSubtext.Render("No events emitted for this call yet."))
			}
			for _, ev := range events {
				body = append(body, ev.Timestamp.Format("15:04:05.000")+" "+ev.String())
			}
		}
	}

	// Pad or cut to exactly height lines
	lines := strings.Split(lipgloss.JoinVertical(lipgloss.Left, append(rows, body...)...), "\n")
	for i, line := range lines {
		lines[i] = ansi.Truncate(line, contentWidth, "…")
	}
	if len(lines) > height {
		lines = append(lines[:height-1], styleSubtext.Render("... and more ..."))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

func describeStep(step types.ScriptedEvent) []string {
	lines := []string{fmt.Sprintf("%s after %dms", step.Type, step.Delay)}
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("  %-12s %s", label, value))
		}
	}
	add("call id", step.CallID)
	add("from", step.From)
	add("to", step.To)
	add("direction", string(step.Direction))
	add("state", string(step.State))
	if step.Duration > 0 {
		add("duration", fmt.Sprintf("%ds", step.Duration))
	}
	add("transfer to", step.TransferTo)
	for _, k := range sortedKeys(step.Payload) {
		add("payload."+k, fmt.Sprint(step.Payload[k]))
	}
	return lines
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
