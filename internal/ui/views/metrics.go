package views

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dori/kardo/internal/metrics"
	"github.com/dori/kardo/internal/model"
	"github.com/dori/kardo/internal/ui/theme"
)

// Local message types for metrics view
type metricsErrorMsg struct{ err error }

// MetricsView shows flow metrics as of a chosen date. Shifting the
// date back answers "what did the board look like then".
type MetricsView struct {
	engine *metrics.Engine
	width  int
	height int

	// Report date; metrics are computed as of this day
	asOf time.Time

	// Metrics data
	inProgress   int
	blocked      []model.StateLogEntry
	doneInMonth  int
	movingCycle  int
	movingLead   int
	wipByState   map[string]int
	weeklyCounts []metrics.WeekCount

	// Status message
	statusMsg string
}

// NewMetricsView creates a new metrics view
func NewMetricsView(engine *metrics.Engine) MetricsView {
	return MetricsView{
		engine:     engine,
		asOf:       time.Now(),
		wipByState: make(map[string]int),
	}
}

// Init initializes the metrics view
func (v MetricsView) Init() tea.Cmd {
	return v.loadMetrics()
}

// SetSize sets the view dimensions
func (v MetricsView) SetSize(width, height int) MetricsView {
	v.width = width
	v.height = height
	return v
}

type metricsLoadedMsg struct {
	inProgress   int
	blocked      []model.StateLogEntry
	doneInMonth  int
	movingCycle  int
	movingLead   int
	wipByState   map[string]int
	weeklyCounts []metrics.WeekCount
}

// loadMetrics computes all report numbers as of the selected date
func (v MetricsView) loadMetrics() tea.Cmd {
	asOf := v.asOf
	return func() tea.Msg {
		wip, err := v.engine.InProgress(asOf)
		if err != nil {
			return metricsErrorMsg{err: err}
		}

		done, err := v.engine.DoneInMonth(asOf.Year(), asOf.Month())
		if err != nil {
			return metricsErrorMsg{err: err}
		}

		cycle, err := v.engine.MovingCycleTime(asOf.Year(), asOf.Month(), asOf.Day())
		if err != nil {
			return metricsErrorMsg{err: err}
		}

		lead, err := v.engine.MovingLeadTime(asOf.Year(), asOf.Month(), asOf.Day())
		if err != nil {
			return metricsErrorMsg{err: err}
		}

		byState, err := v.engine.WIPByState()
		if err != nil {
			return metricsErrorMsg{err: err}
		}

		blocked, err := v.engine.OpenBlocked()
		if err != nil {
			return metricsErrorMsg{err: err}
		}

		weekly, err := v.engine.WeeklyThroughput(asOf, 8)
		if err != nil {
			return metricsErrorMsg{err: err}
		}

		return metricsLoadedMsg{
			inProgress:   len(wip),
			blocked:      blocked,
			doneInMonth:  len(done),
			movingCycle:  cycle,
			movingLead:   lead,
			wipByState:   byState,
			weeklyCounts: weekly,
		}
	}
}

// Update handles messages
func (v MetricsView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case metricsLoadedMsg:
		v.inProgress = msg.inProgress
		v.blocked = msg.blocked
		v.doneInMonth = msg.doneInMonth
		v.movingCycle = msg.movingCycle
		v.movingLead = msg.movingLead
		v.wipByState = msg.wipByState
		v.weeklyCounts = msg.weeklyCounts
		return v, nil

	case cardUpdatedMsg:
		return v, v.loadMetrics()

	case metricsErrorMsg:
		v.statusMsg = msg.err.Error()
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "h", "left":
			v.asOf = v.asOf.AddDate(0, 0, -1)
			return v, v.loadMetrics()
		case "l", "right":
			v.asOf = v.asOf.AddDate(0, 0, 1)
			return v, v.loadMetrics()
		case "H":
			v.asOf = v.asOf.AddDate(0, 0, -7)
			return v, v.loadMetrics()
		case "L":
			v.asOf = v.asOf.AddDate(0, 0, 7)
			return v, v.loadMetrics()
		case "m":
			v.asOf = v.asOf.AddDate(0, -1, 0)
			return v, v.loadMetrics()
		case "M":
			v.asOf = v.asOf.AddDate(0, 1, 0)
			return v, v.loadMetrics()
		case "t":
			v.asOf = time.Now()
			return v, v.loadMetrics()
		case "r":
			return v, v.loadMetrics()
		}
	}

	return v, nil
}

// View renders the metrics view
func (v MetricsView) View() string {
	if v.width == 0 || v.height == 0 {
		return "Loading..."
	}

	t := theme.Current.Theme

	var sections []string

	// Title with the report date
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	sections = append(sections, titleStyle.Render(
		fmt.Sprintf("Flow Metrics ─ %s", v.asOf.Format("Mon Jan 2, 2006"))))
	sections = append(sections, "")

	// Summary cards
	cardStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 2).
		Width(18)

	valueStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	labelStyle := lipgloss.NewStyle().Foreground(t.Subtle)

	wipCard := cardStyle.Render(
		valueStyle.Render(fmt.Sprintf("%d", v.inProgress)) + "\n" +
			labelStyle.Render("In Progress"))

	doneCard := cardStyle.Render(
		valueStyle.Render(fmt.Sprintf("%d", v.doneInMonth)) + "\n" +
			labelStyle.Render("Done ("+v.asOf.Format("Jan")+")"))

	cycleCard := cardStyle.Render(
		valueStyle.Render(fmt.Sprintf("%dd", v.movingCycle)) + "\n" +
			labelStyle.Render("Cycle Time"))

	leadCard := cardStyle.Render(
		valueStyle.Render(fmt.Sprintf("%dd", v.movingLead)) + "\n" +
			labelStyle.Render("Lead Time"))

	blockedStyle := valueStyle
	if len(v.blocked) > 0 {
		blockedStyle = lipgloss.NewStyle().Bold(true).Foreground(t.Blocked)
	}
	blockedCard := cardStyle.Render(
		blockedStyle.Render(fmt.Sprintf("%d", len(v.blocked))) + "\n" +
			labelStyle.Render("Blocked"))

	cardRow := lipgloss.JoinHorizontal(lipgloss.Top, wipCard, doneCard, cycleCard, leadCard, blockedCard)
	sections = append(sections, cardRow)
	sections = append(sections, "")

	// Weekly throughput chart
	sections = append(sections, v.renderThroughputChart())
	sections = append(sections, "")

	// WIP by state
	if len(v.wipByState) > 0 {
		sections = append(sections, v.renderWIPByState())
	}

	// Footer hints
	hints := lipgloss.NewStyle().Foreground(t.Subtle).Render(
		"h/l: ±day • H/L: ±week • m/M: ±month • t: today • r: refresh",
	)
	if v.statusMsg != "" {
		hints = lipgloss.NewStyle().Foreground(t.Error).Render(v.statusMsg) + "  " + hints
	}
	sections = append(sections, hints)

	return strings.Join(sections, "\n")
}

// renderThroughputChart renders the weekly completion bar chart
func (v MetricsView) renderThroughputChart() string {
	t := theme.Current.Theme

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Secondary)

	var lines []string
	lines = append(lines, headerStyle.Render(
		fmt.Sprintf("Throughput (Last %d Weeks)", len(v.weeklyCounts))))

	if len(v.weeklyCounts) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(t.Subtle).Render("(no data)"))
		return strings.Join(lines, "\n")
	}

	// Find max for scaling
	maxCount := 1
	for _, wc := range v.weeklyCounts {
		if wc.Count > maxCount {
			maxCount = wc.Count
		}
	}

	chartHeight := 5
	barWidth := 6

	for row := chartHeight; row >= 1; row-- {
		var rowStr strings.Builder
		threshold := float64(row) / float64(chartHeight)

		for i, wc := range v.weeklyCounts {
			ratio := float64(wc.Count) / float64(maxCount)

			var block string
			if ratio >= threshold {
				block = lipgloss.NewStyle().Foreground(t.Success).Render(strings.Repeat("█", barWidth))
			} else if ratio >= threshold-0.2 && ratio > 0 {
				block = lipgloss.NewStyle().Foreground(t.Info).Render(strings.Repeat("▄", barWidth))
			} else {
				block = strings.Repeat(" ", barWidth)
			}

			rowStr.WriteString(block)
			if i < len(v.weeklyCounts)-1 {
				rowStr.WriteString(" ")
			}
		}
		lines = append(lines, rowStr.String())
	}

	// Week start labels
	var labelStr strings.Builder
	for i, wc := range v.weeklyCounts {
		label := wc.Start.Format("01/02")
		labelStr.WriteString(lipgloss.NewStyle().Foreground(t.Subtle).Width(barWidth).Align(lipgloss.Center).Render(label))
		if i < len(v.weeklyCounts)-1 {
			labelStr.WriteString(" ")
		}
	}
	lines = append(lines, labelStr.String())

	// Count labels
	var countStr strings.Builder
	for i, wc := range v.weeklyCounts {
		countLabel := fmt.Sprintf("%d", wc.Count)
		countStr.WriteString(lipgloss.NewStyle().Foreground(t.Foreground).Width(barWidth).Align(lipgloss.Center).Render(countLabel))
		if i < len(v.weeklyCounts)-1 {
			countStr.WriteString(" ")
		}
	}
	lines = append(lines, countStr.String())

	return strings.Join(lines, "\n")
}

// renderWIPByState renders current open intervals per workflow state
func (v MetricsView) renderWIPByState() string {
	t := theme.Current.Theme

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Secondary)

	var lines []string
	lines = append(lines, headerStyle.Render("WIP by State (now)"))

	maxCount := 1
	for _, count := range v.wipByState {
		if count > maxCount {
			maxCount = count
		}
	}

	barMaxWidth := 30
	for name, count := range v.wipByState {
		ratio := float64(count) / float64(maxCount)
		barWidth := int(ratio * float64(barMaxWidth))
		if barWidth < 1 && count > 0 {
			barWidth = 1
		}

		bar := lipgloss.NewStyle().Foreground(t.Info).Render(strings.Repeat("█", barWidth))
		line := fmt.Sprintf("%-15s %s %d", name, bar, count)
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// IsInputMode returns whether the view is in input mode
func (v MetricsView) IsInputMode() bool {
	return false
}
