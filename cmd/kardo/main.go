package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dori/kardo/internal/app"
	"github.com/dori/kardo/internal/calendar"
	"github.com/dori/kardo/internal/db"
	"github.com/dori/kardo/internal/metrics"
	"github.com/dori/kardo/internal/model"
	"github.com/dori/kardo/internal/ticket"
	"github.com/dori/kardo/internal/ui"
	"github.com/dori/kardo/internal/ui/theme"
)

var (
	version = "0.1.0"
)

func main() {
	// Subcommand handling
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "add":
			handleAdd(os.Args[2:])
			return
		case "report":
			handleReport(os.Args[2:])
			return
		case "sync":
			handleSync(os.Args[2:])
			return
		case "version":
			fmt.Printf("kardo v%s\n", version)
			return
		case "help", "-h", "--help":
			printHelp()
			return
		}
	}

	// Parse flags for TUI mode
	viewFlag := flag.String("view", "board", "Starting view (board, metrics)")
	themeFlag := flag.String("theme", "", "Theme name (nord, dracula)")
	flag.Parse()

	// Run TUI
	if err := runTUI(*viewFlag, *themeFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	help := `kardo - kanban flow tracking with business-day metrics

Usage:
  kardo                     Start the TUI
  kardo add <card>          Quick add a card
  kardo report              Print a flow report
  kardo sync                Refresh cards from a tracker snapshot
  kardo version             Show version
  kardo help                Show this help

Quick Add Syntax:
  kardo add CMSAD-1 "Fix the login page"
  kardo add CMSAD-2 "Ship search #Feature backlog:2026-08-01"

  First word:  card key (unique)
  Category:    #Bug #Feature #Improvement
  Backlog:     backlog:today backlog:2026-08-01

Report Options:
  --date <date>     Report as of this date (default today)

Sync Options:
  --file <path>     Tracker snapshot JSON (default <data dir>/tickets.json)

TUI Options:
  --view <name>     Starting view (board, metrics)
  --theme <name>    Theme (nord, dracula)

Keybindings:
  Board:        h/l           Switch columns
                j/k           Move cursor
                H/L           Move card between states
                a             Add card
                b             Block/unblock card
                d             Delete (with confirm)

  Metrics:      h/l H/L m/M   Shift report date
                t             Back to today

  Views:        1-2           Switch views
                ctrl+s        Sync
                ?             Help
                q             Quit

For more info: https://github.com/dori/kardo`

	fmt.Println(help)
}

func handleAdd(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: kardo add <key> <title>")
		fmt.Fprintln(os.Stderr, "Example: kardo add CMSAD-1 \"Fix the login page #Bug backlog:today\"")
		os.Exit(1)
	}

	// Join all args as the card text
	text := strings.Join(args, " ")

	key, title, category, backlogDate := parseQuickAdd(text)

	card, err := model.NewCard(key, title, category, backlogDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Open database (no lock needed for quick add - just insert)
	database, err := db.Open(db.DefaultDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.CreateCard(card); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating card: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created: %s %s\n", card.Key, card.Title)
	if card.Category != "" {
		fmt.Printf("Category: %s\n", card.Category)
	}
	fmt.Printf("Backlog: %s\n", card.BacklogDate.Format("Mon, Jan 2 2006"))
}

// parseQuickAdd splits "KEY title words #category backlog:date" into
// its parts. The first plain word is the key, the rest the title.
func parseQuickAdd(text string) (key, title, category string, backlogDate time.Time) {
	backlogDate = time.Now()

	var titleParts []string
	for _, word := range strings.Fields(text) {
		switch {
		// Category (#Bug, #Feature, etc.)
		case strings.HasPrefix(word, "#"):
			category = strings.TrimPrefix(word, "#")

		// Backlog date (backlog:today, backlog:2026-08-01)
		case strings.HasPrefix(strings.ToLower(word), "backlog:"):
			dateStr := strings.TrimPrefix(strings.ToLower(word), "backlog:")
			if parsed := parseNaturalDate(dateStr); parsed != nil {
				backlogDate = *parsed
			} else {
				titleParts = append(titleParts, word)
			}

		case key == "":
			key = word

		default:
			titleParts = append(titleParts, word)
		}
	}

	title = strings.Join(titleParts, " ")
	return key, title, category, backlogDate
}

func parseNaturalDate(s string) *time.Time {
	now := time.Now()
	today := calendar.Day(now)

	switch strings.ToLower(s) {
	case "today":
		return &today
	case "yesterday":
		t := today.AddDate(0, 0, -1)
		return &t
	}

	// Try parsing as date
	formats := []string{
		"2006-01-02",
		"01/02/2006",
		"01-02-2006",
		"Jan 2, 2006",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return &t
		}
	}

	return nil
}

func handleReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dateFlag := fs.String("date", "", "Report as of this date (2006-01-02, default today)")
	fs.Parse(args)

	asOf := time.Now()
	if *dateFlag != "" {
		parsed := parseNaturalDate(*dateFlag)
		if parsed == nil {
			fmt.Fprintf(os.Stderr, "Error: cannot parse date %q\n", *dateFlag)
			os.Exit(1)
		}
		asOf = *parsed
	}

	database, err := db.Open(db.DefaultDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cfg := app.DefaultConfig()
	engine := metrics.New(database, metrics.Config{WeekStart: cfg.WeekStart})

	wip, err := engine.InProgress(asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	done, err := engine.DoneInMonth(asOf.Year(), asOf.Month())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cycle, err := engine.MovingCycleTime(asOf.Year(), asOf.Month(), asOf.Day())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	lead, err := engine.MovingLeadTime(asOf.Year(), asOf.Month(), asOf.Day())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	blocked, err := engine.OpenBlocked()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	weekly, err := engine.WeeklyThroughput(asOf, 4)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Flow report as of %s\n\n", asOf.Format("Mon, Jan 2 2006"))
	fmt.Printf("  In progress:        %d\n", len(wip))
	fmt.Printf("  Blocked:            %d\n", len(blocked))
	fmt.Printf("  Done in %s:       %d\n", asOf.Format("Jan"), len(done))
	fmt.Printf("  Moving cycle time:  %d days\n", cycle)
	fmt.Printf("  Moving lead time:   %d days\n", lead)

	fmt.Println("\n  Weekly throughput:")
	for _, wc := range weekly {
		fmt.Printf("    %s - %s  %d\n",
			wc.Start.Format("Jan 02"), wc.End.Format("Jan 02"), wc.Count)
	}

	if len(done) > 0 {
		fmt.Printf("\n  Done in %s:\n", asOf.Format("January"))
		for _, c := range done {
			ct := "-"
			if v := c.CycleTime(); v != nil {
				ct = fmt.Sprintf("%dd", *v)
			}
			fmt.Printf("    %-14s %-5s %s\n", c.Key, ct, c.Title)
		}
	}
}

func handleSync(args []string) {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	fileFlag := fs.String("file", filepath.Join(cfg.DataDir, "tickets.json"), "Tracker snapshot JSON")
	fs.Parse(args)

	snapshot, err := ticket.LoadSnapshot(*fileFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	database, err := db.Open(db.DefaultDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	syncer := ticket.New(database, snapshot, cfg.Sync)
	stats, err := syncer.QueueUpdates(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Queued: %d new, %d active, %d done\n", stats.New, stats.Active, stats.Done)
	fmt.Printf("Refreshed: %d, skipped: %d, failed: %d\n", stats.Refreshed, stats.Skipped, stats.Failed)
}

func runTUI(startView, themeName string) error {
	// Create application
	application, err := app.New(nil)
	if err != nil {
		return err
	}
	defer application.Close()

	// Set theme if specified
	if themeName != "" {
		if t, ok := theme.ByName(themeName); ok {
			theme.SetTheme(t)
		} else {
			return fmt.Errorf("unknown theme %q", themeName)
		}
	}

	// Wire the tracker snapshot if one is present
	var syncer *ticket.Syncer
	snapshotPath := filepath.Join(application.Config.DataDir, "tickets.json")
	if snapshot, err := ticket.LoadSnapshot(snapshotPath); err == nil {
		syncer = ticket.New(application.DB, snapshot, application.Config.Sync)
	}

	// Create root model
	model := ui.NewRootModel(application, syncer)
	if startView == "metrics" {
		model = model.WithView(ui.ViewMetrics)
	}

	// Create and run program
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err = p.Run()
	return err
}
