package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dori/kardo/internal/db"
	"github.com/dori/kardo/internal/ledger"
	"github.com/dori/kardo/internal/model"
	"github.com/dori/kardo/internal/notify"
	"github.com/dori/kardo/internal/ui/theme"
)

// Local message types for board view
type boardErrorMsg struct{ err error }

// cardUpdatedMsg signals that board data is stale and should reload
type cardUpdatedMsg struct{}

// BoardMode represents the current input mode
type BoardMode int

const (
	BoardModeNormal BoardMode = iota
	BoardModeAdd
	BoardModeEdit
	BoardModeBlock
	BoardModeSearch
	BoardModeConfirmDelete
)

// BoardView renders cards in workflow-state columns
type BoardView struct {
	db       *db.DB
	ledger   *ledger.Ledger
	notifier *notify.Notifier
	states   []string
	width    int
	height   int

	// Cards organized by column, one column per workflow state
	columns [][]model.Card

	// Open state-log entries keyed by card ID
	open map[string]*model.StateLogEntry

	// Navigation state
	currentColumn int
	cursorRow     int

	// Per-column scroll offset
	columnScroll []int

	// Status message
	statusMsg string

	// Input mode
	mode      BoardMode
	textInput textinput.Model

	// For editing
	editCardID string

	// For blocking
	blockCardID string

	// For delete confirmation
	deleteCardID string

	// Filtering
	searchFilter string
}

// NewBoardView creates a new board view
func NewBoardView(database *db.DB, ldg *ledger.Ledger, notifier *notify.Notifier, states []string) BoardView {
	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 256

	return BoardView{
		db:           database,
		ledger:       ldg,
		notifier:     notifier,
		states:       states,
		columns:      make([][]model.Card, len(states)),
		columnScroll: make([]int, len(states)),
		open:         make(map[string]*model.StateLogEntry),
		textInput:    ti,
	}
}

// Init initializes the board view
func (v BoardView) Init() tea.Cmd {
	return v.loadCards()
}

// SetSize sets the view dimensions
func (v BoardView) SetSize(width, height int) BoardView {
	v.width = width
	v.height = height
	return v
}

type boardLoadedMsg struct {
	columns [][]model.Card
	open    map[string]*model.StateLogEntry
}

// stateIndex maps a workflow state name to its column
func (v BoardView) stateIndex(state string) int {
	for i, s := range v.states {
		if s == state {
			return i
		}
	}
	return 0
}

// loadCards loads cards and their open ledger intervals, then buckets
// each card into the column of the state it currently occupies
func (v BoardView) loadCards() tea.Cmd {
	return func() tea.Msg {
		cards, err := v.db.GetCards()
		if err != nil {
			return boardErrorMsg{err: err}
		}

		entries, err := v.db.OpenStateLogs()
		if err != nil {
			return boardErrorMsg{err: err}
		}
		open := make(map[string]*model.StateLogEntry, len(entries))
		for i := range entries {
			open[entries[i].CardID] = &entries[i]
		}

		columns := make([][]model.Card, len(v.states))
		last := len(v.states) - 1
		for _, c := range cards {
			col := 0
			switch {
			case c.DoneDate != nil:
				col = last
			case open[c.ID] != nil:
				col = v.stateIndex(open[c.ID].State)
			}
			columns[col] = append(columns[col], c)
		}

		return boardLoadedMsg{columns: columns, open: open}
	}
}

// Update handles messages
func (v BoardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case boardLoadedMsg:
		v.columns = msg.columns
		v.open = msg.open
		v.clampCursor()
		return v, nil

	case cardUpdatedMsg:
		return v, v.loadCards()

	case boardErrorMsg:
		v.statusMsg = msg.err.Error()
		return v, nil

	case tea.KeyMsg:
		switch v.mode {
		case BoardModeAdd:
			return v.handleAddMode(msg)
		case BoardModeEdit:
			return v.handleEditMode(msg)
		case BoardModeBlock:
			return v.handleBlockMode(msg)
		case BoardModeSearch:
			return v.handleSearchMode(msg)
		case BoardModeConfirmDelete:
			return v.handleConfirmDeleteMode(msg)
		default:
			return v.handleNormalMode(msg)
		}
	}

	// Update text input if in input mode
	if v.IsInputMode() {
		var cmd tea.Cmd
		v.textInput, cmd = v.textInput.Update(msg)
		return v, cmd
	}

	return v, nil
}

// handleNormalMode handles keys in normal mode
func (v BoardView) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	// Column navigation
	case "h", "left":
		if v.currentColumn > 0 {
			v.currentColumn--
			v.clampCursor()
		}
		return v, nil

	case "l", "right":
		if v.currentColumn < len(v.states)-1 {
			v.currentColumn++
			v.clampCursor()
		}
		return v, nil

	// Row navigation
	case "j", "down":
		col := v.filteredColumn(v.currentColumn)
		if v.cursorRow < len(col)-1 {
			v.cursorRow++
			v.ensureCursorVisible()
		}
		return v, nil

	case "k", "up":
		if v.cursorRow > 0 {
			v.cursorRow--
			v.ensureCursorVisible()
		}
		return v, nil

	// Move card between states
	case "H":
		return v, v.moveCard(-1)

	case "L":
		return v, v.moveCard(1)

	case "g":
		v.cursorRow = 0
		v.columnScroll[v.currentColumn] = 0
		return v, nil

	case "G":
		col := v.filteredColumn(v.currentColumn)
		if len(col) > 0 {
			v.cursorRow = len(col) - 1
			v.ensureCursorVisible()
		}
		return v, nil

	// Add card
	case "a":
		v.mode = BoardModeAdd
		v.textInput.SetValue("")
		v.textInput.Placeholder = "KEY-123 Title..."
		v.textInput.Focus()
		return v, nil

	// Edit card title
	case "enter":
		col := v.filteredColumn(v.currentColumn)
		if len(col) > 0 && v.cursorRow < len(col) {
			card := col[v.cursorRow]
			v.mode = BoardModeEdit
			v.editCardID = card.ID
			v.textInput.SetValue(card.Title)
			v.textInput.Placeholder = ""
			v.textInput.Focus()
			v.textInput.CursorEnd()
		}
		return v, nil

	// Block or unblock
	case "b":
		col := v.filteredColumn(v.currentColumn)
		if len(col) > 0 && v.cursorRow < len(col) {
			card := col[v.cursorRow]
			entry := v.open[card.ID]
			if entry == nil {
				v.statusMsg = "Card has no open interval"
				return v, nil
			}
			if entry.IsBlocked() {
				return v, v.unblockCard(entry)
			}
			v.mode = BoardModeBlock
			v.blockCardID = card.ID
			v.textInput.SetValue("")
			v.textInput.Placeholder = "Blocked because..."
			v.textInput.Focus()
		}
		return v, nil

	// Delete card
	case "d":
		col := v.filteredColumn(v.currentColumn)
		if len(col) > 0 && v.cursorRow < len(col) {
			card := col[v.cursorRow]
			v.deleteCardID = card.ID
			v.mode = BoardModeConfirmDelete
		}
		return v, nil

	// Search
	case "/":
		v.mode = BoardModeSearch
		v.textInput.SetValue(v.searchFilter)
		v.textInput.Placeholder = "Search..."
		v.textInput.Focus()
		return v, nil

	// Clear filters
	case "esc":
		if v.searchFilter != "" {
			v.searchFilter = ""
			v.statusMsg = "Filter cleared"
		}
		return v, nil
	}

	return v, nil
}

// handleAddMode handles keys in add mode
func (v BoardView) handleAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		input := strings.TrimSpace(v.textInput.Value())
		if input != "" {
			v.mode = BoardModeNormal
			v.textInput.Blur()
			return v, v.createCard(input)
		}
		return v, nil
	case "esc":
		v.mode = BoardModeNormal
		v.textInput.Blur()
		return v, nil
	}

	var cmd tea.Cmd
	v.textInput, cmd = v.textInput.Update(msg)
	return v, cmd
}

// handleEditMode handles keys in edit mode
func (v BoardView) handleEditMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		title := strings.TrimSpace(v.textInput.Value())
		if title != "" && v.editCardID != "" {
			v.mode = BoardModeNormal
			v.textInput.Blur()
			cardID := v.editCardID
			v.editCardID = ""
			return v, v.updateCardTitle(cardID, title)
		}
		return v, nil
	case "esc":
		v.mode = BoardModeNormal
		v.textInput.Blur()
		v.editCardID = ""
		return v, nil
	}

	var cmd tea.Cmd
	v.textInput, cmd = v.textInput.Update(msg)
	return v, cmd
}

// handleBlockMode handles keys while entering a block reason
func (v BoardView) handleBlockMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		message := strings.TrimSpace(v.textInput.Value())
		if v.blockCardID != "" {
			v.mode = BoardModeNormal
			v.textInput.Blur()
			cardID := v.blockCardID
			v.blockCardID = ""
			return v, v.blockCard(cardID, message)
		}
		return v, nil
	case "esc":
		v.mode = BoardModeNormal
		v.textInput.Blur()
		v.blockCardID = ""
		return v, nil
	}

	var cmd tea.Cmd
	v.textInput, cmd = v.textInput.Update(msg)
	return v, cmd
}

// handleSearchMode handles keys in search mode
func (v BoardView) handleSearchMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		v.searchFilter = strings.TrimSpace(v.textInput.Value())
		v.mode = BoardModeNormal
		v.textInput.Blur()
		v.cursorRow = 0
		for i := range v.columnScroll {
			v.columnScroll[i] = 0
		}
		return v, nil
	}

	var cmd tea.Cmd
	v.textInput, cmd = v.textInput.Update(msg)
	return v, cmd
}

// handleConfirmDeleteMode handles keys in delete confirmation mode
func (v BoardView) handleConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.mode = BoardModeNormal
		cardID := v.deleteCardID
		v.deleteCardID = ""
		return v, v.deleteCard(cardID)
	case "n", "N", "esc":
		v.mode = BoardModeNormal
		v.deleteCardID = ""
		return v, nil
	}
	return v, nil
}

// clampCursor ensures cursor is valid for current column
func (v *BoardView) clampCursor() {
	col := v.filteredColumn(v.currentColumn)
	if v.cursorRow >= len(col) {
		if len(col) > 0 {
			v.cursorRow = len(col) - 1
		} else {
			v.cursorRow = 0
		}
	}
	v.ensureCursorVisible()
}

// ensureCursorVisible adjusts scroll to keep cursor in view
func (v *BoardView) ensureCursorVisible() {
	visibleItems := v.visibleItemCount()
	if visibleItems <= 0 {
		visibleItems = 5
	}

	col := v.currentColumn

	if v.cursorRow >= v.columnScroll[col]+visibleItems {
		v.columnScroll[col] = v.cursorRow - visibleItems + 1
	}

	if v.cursorRow < v.columnScroll[col] {
		v.columnScroll[col] = v.cursorRow
	}
}

// visibleItemCount returns how many items fit in the column height
func (v *BoardView) visibleItemCount() int {
	// Header row, borders and scroll indicators eat seven lines
	availableHeight := v.height - 7
	if availableHeight < 1 {
		return 1
	}
	return availableHeight
}

// moveCard transitions the current card to an adjacent workflow state
func (v BoardView) moveCard(direction int) tea.Cmd {
	col := v.filteredColumn(v.currentColumn)
	if len(col) == 0 || v.cursorRow >= len(col) {
		return nil
	}

	newColumn := v.currentColumn + direction
	if newColumn < 0 || newColumn >= len(v.states) {
		return nil
	}

	card := col[v.cursorRow]
	target := v.states[newColumn]
	last := len(v.states) - 1

	return func() tea.Msg {
		now := time.Now()
		if _, err := v.ledger.Transition(card.ID, target, now); err != nil {
			return boardErrorMsg{err: err}
		}

		// Lifecycle dates follow the board position. Cached durations
		// are frozen at first completion and survive a move back.
		changed := false
		if newColumn > 0 && card.StartDate == nil {
			card.StartDate = &now
			changed = true
		}
		if newColumn == last && card.DoneDate == nil {
			card.DoneDate = &now
			changed = true
		}
		if newColumn < last && card.DoneDate != nil {
			card.DoneDate = nil
			changed = true
		}
		if changed {
			if err := v.db.SaveCard(&card); err != nil {
				return boardErrorMsg{err: err}
			}
			if newColumn == last && v.notifier != nil {
				if ct := card.CycleTime(); ct != nil {
					v.notifier.SendCardDone(card.Key, *ct)
				}
			}
		}

		return cardUpdatedMsg{}
	}
}

// filteredColumn returns cards for a column after applying the search filter
func (v *BoardView) filteredColumn(colIndex int) []model.Card {
	cards := v.columns[colIndex]
	if v.searchFilter == "" {
		return cards
	}

	var filtered []model.Card
	searchLower := strings.ToLower(v.searchFilter)

	for _, card := range cards {
		if strings.Contains(strings.ToLower(card.Title), searchLower) ||
			strings.Contains(strings.ToLower(card.Key), searchLower) {
			filtered = append(filtered, card)
		}
	}
	return filtered
}

// createCard quick-adds a card into the current column. The first
// word of the input is the card key, the rest is the title.
func (v BoardView) createCard(input string) tea.Cmd {
	column := v.currentColumn

	return func() tea.Msg {
		key, title, _ := strings.Cut(input, " ")
		title = strings.TrimSpace(title)
		if title == "" {
			title = key
		}

		card, err := model.NewCard(key, title, "", time.Now())
		if err != nil {
			return boardErrorMsg{err: err}
		}
		if err := v.db.CreateCard(card); err != nil {
			return boardErrorMsg{err: err}
		}
		if _, err := v.ledger.OpenInterval(card.ID, v.states[column], time.Now()); err != nil {
			return boardErrorMsg{err: err}
		}
		return cardUpdatedMsg{}
	}
}

// updateCardTitle updates a card's title
func (v BoardView) updateCardTitle(cardID, title string) tea.Cmd {
	return func() tea.Msg {
		card, err := v.db.GetCard(cardID)
		if err != nil {
			return boardErrorMsg{err: err}
		}
		if card == nil {
			return cardUpdatedMsg{}
		}
		card.Title = title
		if err := v.db.SaveCard(card); err != nil {
			return boardErrorMsg{err: err}
		}
		return cardUpdatedMsg{}
	}
}

// blockCard marks the card's open interval as blocked
func (v BoardView) blockCard(cardID, message string) tea.Cmd {
	return func() tea.Msg {
		entry, err := v.db.OpenStateLog(cardID)
		if err != nil {
			return boardErrorMsg{err: err}
		}
		if entry == nil {
			return cardUpdatedMsg{}
		}
		if err := v.ledger.MarkBlocked(entry, time.Now(), message); err != nil {
			return boardErrorMsg{err: err}
		}
		return cardUpdatedMsg{}
	}
}

// unblockCard clears the blocked flag on an open interval
func (v BoardView) unblockCard(entry *model.StateLogEntry) tea.Cmd {
	return func() tea.Msg {
		if err := v.ledger.MarkUnblocked(entry, time.Now()); err != nil {
			return boardErrorMsg{err: err}
		}
		return cardUpdatedMsg{}
	}
}

// deleteCard deletes a card
func (v BoardView) deleteCard(cardID string) tea.Cmd {
	return func() tea.Msg {
		if err := v.db.DeleteCard(cardID); err != nil {
			return boardErrorMsg{err: err}
		}
		return cardUpdatedMsg{}
	}
}

// View renders the board
func (v BoardView) View() string {
	if v.width == 0 || v.height == 0 {
		return "Loading..."
	}

	t := theme.Current.Theme

	// Column colors: queue, active states, done
	colColor := func(i int) lipgloss.Color {
		switch {
		case i == 0:
			return t.StateQueue
		case i == len(v.states)-1:
			return t.StateDone
		default:
			return t.StateActive
		}
	}

	// Responsive layout: show 2 columns when narrow
	numVisibleCols := len(v.states)
	if v.width < 40*len(v.states) && numVisibleCols > 2 {
		numVisibleCols = 2
	}

	// Calculate which columns to show (window containing current column)
	startCol := 0
	if numVisibleCols < len(v.states) {
		startCol = v.currentColumn - numVisibleCols + 1
		if startCol < 0 {
			startCol = 0
		}
		if v.currentColumn < startCol {
			startCol = v.currentColumn
		}
	}
	endCol := startCol + numVisibleCols
	if endCol > len(v.states) {
		endCol = len(v.states)
	}

	colWidth := (v.width - 4) / numVisibleCols
	if colWidth < 25 {
		colWidth = 25
	}

	headerStyle := func(i int, active bool) lipgloss.Style {
		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(colColor(i)).
			Width(colWidth).
			Align(lipgloss.Center)
		if active {
			s = s.Background(t.Highlight)
		}
		return s
	}

	columnStyle := lipgloss.NewStyle().
		Width(colWidth).
		Height(v.height - 3).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Border)

	// Render headers
	var headers []string
	for i := startCol; i < endCol; i++ {
		cards := v.filteredColumn(i)
		total := len(v.columns[i])
		header := fmt.Sprintf("%s (%d)", v.states[i], len(cards))
		if len(cards) != total {
			header = fmt.Sprintf("%s (%d/%d)", v.states[i], len(cards), total)
		}
		headers = append(headers, headerStyle(i, i == v.currentColumn).Render(header))
	}
	headerRow := lipgloss.JoinHorizontal(lipgloss.Top, headers...)

	// Render columns
	visibleItems := v.visibleItemCount()
	var cols []string
	for i := startCol; i < endCol; i++ {
		cards := v.filteredColumn(i)
		isActiveCol := i == v.currentColumn
		scrollOffset := v.columnScroll[i]

		startIdx := scrollOffset
		endIdx := scrollOffset + visibleItems
		if startIdx > len(cards) {
			startIdx = len(cards)
		}
		if endIdx > len(cards) {
			endIdx = len(cards)
		}

		var items []string

		if scrollOffset > 0 {
			scrollIndicator := lipgloss.NewStyle().
				Foreground(t.Subtle).
				Width(colWidth - 4).
				Align(lipgloss.Center).
				Render(fmt.Sprintf("↑ %d more", scrollOffset))
			items = append(items, scrollIndicator)
		}

		for j := startIdx; j < endIdx; j++ {
			card := cards[j]
			isSelected := isActiveCol && j == v.cursorRow

			cardStyle := lipgloss.NewStyle().
				Width(colWidth - 4).
				Padding(0, 1).
				Foreground(t.Foreground)
			if isSelected {
				cardStyle = cardStyle.Background(t.Highlight)
			}

			// Blocked indicator
			var blockedStr string
			if entry := v.open[card.ID]; entry != nil && entry.IsBlocked() {
				blockedStr = lipgloss.NewStyle().Foreground(t.Blocked).Render("⊘ ")
			}

			// Cycle time tag for finished cards
			var cycleStr string
			if ct := card.CycleTime(); ct != nil {
				cycleStr = lipgloss.NewStyle().Foreground(t.Subtle).Render(fmt.Sprintf(" %dd", *ct))
			}

			keyStyle := lipgloss.NewStyle().Foreground(t.Secondary)
			keyStr := keyStyle.Render(card.Key)

			title := card.Title
			maxTitleLen := colWidth - 8 - len(card.Key) - len(cycleStr)
			if maxTitleLen < 10 {
				maxTitleLen = 10
			}
			if len(title) > maxTitleLen {
				title = title[:maxTitleLen-3] + "..."
			}

			cardContent := fmt.Sprintf("%s%s %s%s", blockedStr, keyStr, title, cycleStr)
			items = append(items, cardStyle.Render(cardContent))
		}

		if endIdx < len(cards) {
			scrollIndicator := lipgloss.NewStyle().
				Foreground(t.Subtle).
				Width(colWidth - 4).
				Align(lipgloss.Center).
				Render(fmt.Sprintf("↓ %d more", len(cards)-endIdx))
			items = append(items, scrollIndicator)
		}

		content := strings.Join(items, "\n")
		if len(cards) == 0 {
			content = lipgloss.NewStyle().
				Foreground(t.Subtle).
				Italic(true).
				Render("(empty)")
		}

		cs := columnStyle
		if isActiveCol {
			cs = cs.BorderForeground(t.Primary)
		}

		cols = append(cols, cs.Render(content))
	}
	columnsRow := lipgloss.JoinHorizontal(lipgloss.Top, cols...)

	// Build footer based on mode
	var footer string
	inputStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(0, 1).
		Width(v.width - 4)

	switch v.mode {
	case BoardModeAdd:
		footer = inputStyle.Render("Add card: " + v.textInput.View())
	case BoardModeEdit:
		footer = inputStyle.Render("Edit: " + v.textInput.View())
	case BoardModeBlock:
		footer = inputStyle.Render("Block reason: " + v.textInput.View())
	case BoardModeSearch:
		footer = inputStyle.Render("Search: " + v.textInput.View())
	case BoardModeConfirmDelete:
		cardKey := ""
		col := v.filteredColumn(v.currentColumn)
		if v.cursorRow < len(col) {
			cardKey = col[v.cursorRow].Key
		}
		confirmStyle := lipgloss.NewStyle().
			Foreground(t.Error).
			Bold(true)
		footer = confirmStyle.Render(fmt.Sprintf("Delete '%s'? (y/n)", cardKey))
	default:
		var filterStatus string
		if v.searchFilter != "" {
			filterStatus = lipgloss.NewStyle().Foreground(t.Info).
				Render(fmt.Sprintf("[Search: %s] ", v.searchFilter))
		}

		hints := "h/l: column • j/k: nav • H/L: move • a: add • b: block • enter: edit • d: del • /: search"
		if filterStatus != "" {
			hints = filterStatus + "esc: clear"
		}
		footer = lipgloss.NewStyle().Foreground(t.Subtle).Render(hints)
		if v.statusMsg != "" {
			footer = lipgloss.NewStyle().Foreground(t.Info).Render(v.statusMsg) + "  " + footer
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, headerRow, columnsRow, footer)
}

// IsInputMode returns whether the view is in input mode
func (v BoardView) IsInputMode() bool {
	return v.mode == BoardModeAdd ||
		v.mode == BoardModeEdit ||
		v.mode == BoardModeBlock ||
		v.mode == BoardModeSearch ||
		v.mode == BoardModeConfirmDelete
}
