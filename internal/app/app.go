package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/dori/kardo/internal/db"
	"github.com/dori/kardo/internal/ledger"
	"github.com/dori/kardo/internal/metrics"
	"github.com/dori/kardo/internal/notify"
	"github.com/dori/kardo/internal/ticket"
)

// Config holds application configuration
type Config struct {
	DataDir string
	DBPath  string

	// States is the workflow, in order. Cards move through these
	// left to right.
	States []string

	// WeekStart anchors reporting weeks.
	WeekStart time.Weekday

	// Sync tunes the ticket-system refresh scheduler.
	Sync ticket.Config
}

// DefaultConfig returns the default application configuration
func DefaultConfig() *Config {
	dataDir := db.DefaultDataDir()
	return &Config{
		DataDir:   dataDir,
		DBPath:    filepath.Join(dataDir, "kardo.db"),
		States:    []string{"Todo", "Doing", "Done"},
		WeekStart: time.Sunday,
		Sync:      ticket.DefaultConfig(),
	}
}

// App holds the application state and dependencies
type App struct {
	Config   *Config
	DB       *db.DB
	Ledger   *ledger.Ledger
	Metrics  *metrics.Engine
	Notifier *notify.Notifier
	lockFile *flock.Flock
}

// New creates a new application instance
func New(cfg *Config) (*App, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	app := &App{
		Config:   cfg,
		Notifier: notify.NewNotifier(),
	}

	// Acquire lock to ensure single instance
	if err := app.acquireLock(); err != nil {
		return nil, err
	}

	// Open database
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		app.releaseLock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	app.DB = database
	app.Ledger = ledger.New(database)
	app.Metrics = metrics.New(database, metrics.Config{WeekStart: cfg.WeekStart})

	return app, nil
}

// acquireLock acquires an exclusive file lock to prevent multiple instances
func (a *App) acquireLock() error {
	lockPath := filepath.Join(a.Config.DataDir, "kardo.lock")
	a.lockFile = flock.New(lockPath)

	locked, err := a.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !locked {
		return fmt.Errorf("another instance of kardo is already running")
	}

	return nil
}

// releaseLock releases the file lock
func (a *App) releaseLock() {
	if a.lockFile != nil {
		a.lockFile.Unlock()
	}
}

// Close cleans up application resources
func (a *App) Close() error {
	var errs []error

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	a.releaseLock()

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
