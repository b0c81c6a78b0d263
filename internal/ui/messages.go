package ui

// View represents the current active view
type View int

const (
	ViewBoard View = iota
	ViewMetrics
	ViewHelp
)

// String returns the display name for a view
func (v View) String() string {
	switch v {
	case ViewBoard:
		return "Board"
	case ViewMetrics:
		return "Metrics"
	case ViewHelp:
		return "Help"
	default:
		return "Unknown"
	}
}

// Messages for inter-component communication

// SwitchViewMsg requests a view change
type SwitchViewMsg struct {
	View View
}

// ErrorMsg contains an error to display
type ErrorMsg struct {
	Err error
}

// StatusMsg contains a status message to display
type StatusMsg struct {
	Message string
}

// ThemeChangedMsg indicates the theme was changed
type ThemeChangedMsg struct {
	ThemeName string
}

// RefreshMsg requests data refresh
type RefreshMsg struct{}

// SyncFinishedMsg reports a completed ticket-system sweep
type SyncFinishedMsg struct {
	Refreshed int64
	Failed    int64
	Err       error
}
