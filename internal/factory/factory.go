// Package factory wires the application graph.
package factory

import (
	"io"
	"log/slog"

	"github.com/zt1106/baodatui3/internal/command"
	"github.com/zt1106/baodatui3/internal/dependencies/clock"
	"github.com/zt1106/baodatui3/internal/dependencies/random"
	"github.com/zt1106/baodatui3/internal/dispatch"
	"github.com/zt1106/baodatui3/internal/services/room"
	"github.com/zt1106/baodatui3/internal/services/user"
	"github.com/zt1106/baodatui3/internal/settings"
)

// App contains all wired application components
type App struct {
	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Runtime-tunable settings
	Settings *settings.Settings

	// Services
	Users *user.Service
	Rooms *room.Manager

	// Command table, fully registered
	Registry *dispatch.Registry
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// Settings overrides the runtime defaults (optional)
	Settings *settings.Settings
}

// New creates a new application with all dependencies wired
func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	st := cfg.Settings
	if st == nil {
		st = settings.New()
	}

	return newWithDependencies(clock.New(), random.New(), st, logger)
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(clk clock.Clock, rnd random.Random, st *settings.Settings, logger *slog.Logger) *App {
	users := user.NewService(clk, rnd, logger)
	rooms := room.NewManager(users, st, logger)

	registry := dispatch.NewRegistry(logger)
	command.Register(registry, command.Deps{
		Users:    users,
		Rooms:    rooms,
		Settings: st,
		Logger:   logger,
	})

	return &App{
		Clock:    clk,
		Random:   rnd,
		Settings: st,
		Users:    users,
		Rooms:    rooms,
		Registry: registry,
	}
}
