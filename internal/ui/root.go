package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dori/kardo/internal/app"
	"github.com/dori/kardo/internal/ticket"
	"github.com/dori/kardo/internal/ui/theme"
	"github.com/dori/kardo/internal/ui/views"
)

// Debug logging (enable by setting KARDO_DEBUG=1)
var rootDebugLog *os.File

func init() {
	if os.Getenv("KARDO_DEBUG") == "1" {
		rootDebugLog, _ = os.OpenFile("/tmp/kardo-root-debug.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	}
}

func rootDebugf(format string, args ...interface{}) {
	if rootDebugLog != nil {
		fmt.Fprintf(rootDebugLog, format+"\n", args...)
		rootDebugLog.Sync()
	}
}

// RootModel is the main application model that manages views
type RootModel struct {
	app    *app.App
	syncer *ticket.Syncer
	keys   KeyMap
	help   help.Model
	width  int
	height int

	currentView View
	boardView   views.BoardView
	metricsView views.MetricsView
	helpVisible bool

	// Status message
	statusMsg string
	errorMsg  string
}

// NewRootModel creates a new root model. syncer may be nil when no
// ticket system is configured.
func NewRootModel(application *app.App, syncer *ticket.Syncer) RootModel {
	h := help.New()
	h.ShowAll = false

	return RootModel{
		app:         application,
		syncer:      syncer,
		keys:        DefaultKeyMap(),
		help:        h,
		currentView: ViewBoard,
		boardView:   views.NewBoardView(application.DB, application.Ledger, application.Notifier, application.Config.States),
		metricsView: views.NewMetricsView(application.Metrics),
	}
}

// WithView sets the view shown on startup
func (m RootModel) WithView(v View) RootModel {
	m.currentView = v
	return m
}

// Init initializes the model
func (m RootModel) Init() tea.Cmd {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewMetrics:
		cmd = m.metricsView.Init()
	default:
		cmd = m.boardView.Init()
	}
	rootDebugf("RootModel.Init() returning cmd: %v", cmd != nil)
	return tea.Batch(cmd, m.checkBlocked())
}

// checkBlocked alerts once at startup for cards sitting blocked
// longer than two days.
func (m RootModel) checkBlocked() tea.Cmd {
	return func() tea.Msg {
		entries, err := m.app.Metrics.OpenBlocked()
		if err != nil {
			return ErrorMsg{Err: err}
		}
		now := time.Now()
		stale := 0
		for _, e := range entries {
			if e.BlockedAt == nil {
				continue
			}
			if blockedFor := now.Sub(*e.BlockedAt); blockedFor > 48*time.Hour {
				card, err := m.app.DB.GetCard(e.CardID)
				if err != nil || card == nil {
					continue
				}
				m.app.Notifier.SendBlockedTooLong(card.Key, blockedFor)
				stale++
			}
		}
		if stale > 0 {
			return StatusMsg{Message: fmt.Sprintf("%d cards blocked for over 2 days", stale)}
		}
		return nil
	}
}

// Update handles messages
func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	rootDebugf("RootModel.Update received msg type: %T", msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

		// Update child views with new size
		// Reserve space for header (2 lines) and footer (2 lines)
		contentHeight := m.height - 4
		m.boardView = m.boardView.SetSize(m.width, contentHeight)
		m.metricsView = m.metricsView.SetSize(m.width, contentHeight)

	case tea.KeyMsg:
		// Clear status/error on any keypress
		m.statusMsg = ""
		m.errorMsg = ""

		// Check if current view is in input mode
		isInputMode := false
		switch m.currentView {
		case ViewBoard:
			isInputMode = m.boardView.IsInputMode()
		case ViewMetrics:
			isInputMode = m.metricsView.IsInputMode()
		}

		// Global keybindings
		switch {
		case key.Matches(msg, m.keys.Quit):
			// ctrl+c always quits, but 'q' only quits when not in input mode
			if msg.String() == "ctrl+c" || !isInputMode {
				return m, tea.Quit
			}
			// Otherwise, let the view handle 'q' as a character

		case key.Matches(msg, m.keys.ThemeCycle):
			// ctrl+t always works (unlikely to type)
			m.cycleTheme()
			return m, nil

		case key.Matches(msg, m.keys.Sync):
			return m, m.runSync()
		}

		// Skip other global keys when in input mode
		if isInputMode {
			break // Fall through to view delegation
		}

		// These only work when NOT in input mode
		switch {
		case key.Matches(msg, m.keys.Help):
			m.helpVisible = !m.helpVisible
			m.help.ShowAll = m.helpVisible
			return m, nil

		// View switching
		case key.Matches(msg, m.keys.BoardView):
			m.currentView = ViewBoard
			return m, m.boardView.Init() // Reload cards when switching back
		case key.Matches(msg, m.keys.MetricsView):
			m.currentView = ViewMetrics
			return m, m.metricsView.Init()
		}

	case ErrorMsg:
		m.errorMsg = msg.Err.Error()
		return m, nil

	case StatusMsg:
		m.statusMsg = msg.Message
		return m, nil

	case ThemeChangedMsg:
		m.statusMsg = fmt.Sprintf("Theme: %s", msg.ThemeName)
		return m, nil

	case SyncFinishedMsg:
		if msg.Err != nil {
			m.errorMsg = msg.Err.Error()
		} else {
			m.statusMsg = fmt.Sprintf("Sync: %d refreshed, %d failed", msg.Refreshed, msg.Failed)
			m.app.Notifier.SendSyncSummary(msg.Refreshed, msg.Failed)
		}
		// Refresh whichever view is showing
		switch m.currentView {
		case ViewBoard:
			return m, m.boardView.Init()
		case ViewMetrics:
			return m, m.metricsView.Init()
		}
		return m, nil
	}

	// Delegate to current view
	rootDebugf("Delegating to view: %v", m.currentView)
	switch m.currentView {
	case ViewBoard:
		newBoardView, cmd := m.boardView.Update(msg)
		m.boardView = newBoardView.(views.BoardView)
		cmds = append(cmds, cmd)
	case ViewMetrics:
		newMetricsView, cmd := m.metricsView.Update(msg)
		m.metricsView = newMetricsView.(views.MetricsView)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// runSync kicks off a ticket-system sweep in the background
func (m RootModel) runSync() tea.Cmd {
	if m.syncer == nil {
		return func() tea.Msg {
			return StatusMsg{Message: "No ticket system configured"}
		}
	}
	syncer := m.syncer
	return func() tea.Msg {
		stats, err := syncer.QueueUpdates(context.Background())
		if err != nil {
			return SyncFinishedMsg{Err: err}
		}
		return SyncFinishedMsg{Refreshed: stats.Refreshed, Failed: stats.Failed}
	}
}

// View renders the UI
func (m RootModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	styles := theme.Current.Styles
	var sections []string

	// Header
	header := m.renderHeader()
	sections = append(sections, header)

	// Content area
	// Reserve: 1 line for header + 3 lines for footer (status + 2 hint lines)
	contentHeight := m.height - 4
	if m.errorMsg != "" || m.statusMsg != "" {
		contentHeight-- // Extra line for status message
	}
	var content string

	if m.helpVisible {
		content = m.renderHelp(contentHeight)
	} else {
		switch m.currentView {
		case ViewBoard:
			content = m.boardView.View()
		case ViewMetrics:
			content = m.metricsView.View()
		default:
			content = styles.Panel.Render("View not implemented")
		}
	}

	// Ensure content fills available space
	contentLines := strings.Count(content, "\n") + 1
	if contentLines < contentHeight {
		content += strings.Repeat("\n", contentHeight-contentLines)
	}
	sections = append(sections, content)

	// Footer
	footer := m.renderFooter()
	sections = append(sections, footer)

	return strings.Join(sections, "\n")
}

// renderHeader renders the header bar
func (m RootModel) renderHeader() string {
	styles := theme.Current.Styles
	t := theme.Current.Theme

	title := styles.Header.Render("kardo")

	// View indicator
	viewStyle := lipgloss.NewStyle().
		Foreground(t.Subtle).
		Padding(0, 1)
	viewIndicator := viewStyle.Render(fmt.Sprintf("[%s]", m.currentView.String()))

	// Theme indicator
	themeIndicator := viewStyle.Render(fmt.Sprintf("theme: %s", t.Name))

	// Combine header elements
	leftSide := lipgloss.JoinHorizontal(lipgloss.Center, title, viewIndicator)
	rightSide := themeIndicator

	gap := m.width - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if gap < 0 {
		gap = 0
	}

	header := leftSide + strings.Repeat(" ", gap) + rightSide
	return header
}

// renderFooter renders the footer/status bar
func (m RootModel) renderFooter() string {
	styles := theme.Current.Styles
	t := theme.Current.Theme

	// Helper to format key hints
	key := func(k, desc string) string {
		return styles.HelpKey.Render(k) + styles.HelpDesc.Render(" "+desc)
	}
	sep := styles.HelpSeparator.Render(" │ ")

	// Show error or status message on first line if present
	var statusLine string
	if m.errorMsg != "" {
		statusLine = lipgloss.NewStyle().Foreground(t.Error).Render(m.errorMsg)
	} else if m.statusMsg != "" {
		statusLine = lipgloss.NewStyle().Foreground(t.Info).Render(m.statusMsg)
	}

	// Build context-aware hint lines
	var line1, line2 string

	switch m.currentView {
	case ViewBoard:
		if m.boardView.IsInputMode() {
			line1 = key("enter", "confirm") + sep + key("esc", "cancel")
			line2 = ""
		} else {
			line1 = key("h/l", "columns") + sep +
				key("j/k", "navigate") + sep +
				key("H/L", "move card") + sep +
				key("a", "add") + sep +
				key("b", "block") + sep +
				key("d", "del")
			line2 = key("/", "search") + sep +
				key("1-2", "views") + sep +
				key("C-s", "sync") + sep +
				key("C-t", "theme") + sep +
				key("?", "help")
		}

	case ViewMetrics:
		line1 = key("h/l", "±day") + sep +
			key("H/L", "±week") + sep +
			key("m/M", "±month") + sep +
			key("t", "today")
		line2 = key("1-2", "views") + sep +
			key("C-s", "sync") + sep +
			key("C-t", "theme") + sep +
			key("?", "help")

	default:
		line1 = key("1-2", "views") + sep + key("?", "help")
	}

	// Build footer
	var lines []string

	// Status/error line (if present)
	if statusLine != "" {
		lines = append(lines, statusLine)
	}

	// Hint lines
	if line1 != "" {
		lines = append(lines, line1)
	}
	if line2 != "" {
		lines = append(lines, line2)
	}

	return strings.Join(lines, "\n")
}

// renderHelp renders the help overlay
func (m RootModel) renderHelp(height int) string {
	t := theme.Current.Theme

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		MarginBottom(1)

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Secondary).
		MarginTop(1)

	keyStyle := lipgloss.NewStyle().
		Foreground(t.Foreground).
		Bold(true).
		Width(12)

	descStyle := lipgloss.NewStyle().
		Foreground(t.Subtle)

	var b strings.Builder

	// Title
	b.WriteString(titleStyle.Render("Kardo Help"))
	b.WriteString("\n\n")

	// Navigation section
	b.WriteString(sectionStyle.Render("Navigation"))
	b.WriteString("\n")
	navKeys := [][]string{
		{"↑/k ↓/j", "Navigate up/down"},
		{"←/h →/l", "Switch columns"},
		{"g / G", "Go to top/bottom"},
	}
	for _, kv := range navKeys {
		b.WriteString(keyStyle.Render(kv[0]))
		b.WriteString(descStyle.Render(kv[1]))
		b.WriteString("\n")
	}

	// Card Actions section
	b.WriteString(sectionStyle.Render("Card Actions"))
	b.WriteString("\n")
	actionKeys := [][]string{
		{"a", "Add card (KEY title)"},
		{"enter", "Edit card title"},
		{"H / L", "Move card left/right"},
		{"b", "Block or unblock card"},
		{"d", "Delete card"},
	}
	for _, kv := range actionKeys {
		b.WriteString(keyStyle.Render(kv[0]))
		b.WriteString(descStyle.Render(kv[1]))
		b.WriteString("\n")
	}

	// Metrics section
	b.WriteString(sectionStyle.Render("Metrics"))
	b.WriteString("\n")
	metricsKeys := [][]string{
		{"h/l H/L", "Shift report date by day/week"},
		{"m / M", "Shift report date by month"},
		{"t", "Back to today"},
	}
	for _, kv := range metricsKeys {
		b.WriteString(keyStyle.Render(kv[0]))
		b.WriteString(descStyle.Render(kv[1]))
		b.WriteString("\n")
	}

	// Views section
	b.WriteString(sectionStyle.Render("Views"))
	b.WriteString("\n")
	viewKeys := [][]string{
		{"1", "Board"},
		{"2", "Metrics"},
		{"/", "Search/filter cards"},
		{"?", "Toggle this help"},
	}
	for _, kv := range viewKeys {
		b.WriteString(keyStyle.Render(kv[0]))
		b.WriteString(descStyle.Render(kv[1]))
		b.WriteString("\n")
	}

	// System section
	b.WriteString(sectionStyle.Render("System"))
	b.WriteString("\n")
	sysKeys := [][]string{
		{"ctrl+s", "Sync with ticket system"},
		{"ctrl+t", "Cycle theme"},
		{"q / ctrl+c", "Quit"},
	}
	for _, kv := range sysKeys {
		b.WriteString(keyStyle.Render(kv[0]))
		b.WriteString(descStyle.Render(kv[1]))
		b.WriteString("\n")
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(descStyle.Render("Press ? or esc to close"))

	return b.String()
}

// cycleTheme cycles through available themes
func (m *RootModel) cycleTheme() {
	themes := theme.Available()
	current := theme.Current.Theme.Name

	for i, t := range themes {
		if t.Name == current {
			next := themes[(i+1)%len(themes)]
			theme.SetTheme(next)
			m.statusMsg = fmt.Sprintf("Theme: %s", next.Name)
			return
		}
	}
}
