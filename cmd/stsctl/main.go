// Command stsctl inspects and adjusts a StreamToSite workspace using the
// same configuration and storage as the server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/DukeRupert/streamtosite/internal"
	"github.com/DukeRupert/streamtosite/internal/gate"
	"github.com/DukeRupert/streamtosite/internal/store"
	"github.com/DukeRupert/streamtosite/internal/usage"
)

// workspace is the state a command operates on.
type workspace struct {
	store *store.Store
	gate  *gate.Gate
	close func() error
}

// openWorkspace loads the configured workspace. Logs go to stderr so
// command output stays clean.
func openWorkspace(ctx context.Context) (*workspace, error) {
	cfg, err := internal.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := newCLILogger(os.Stderr, cfg.Env)

	backend, closeStorage, err := internal.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	st, err := internal.OpenStore(ctx, cfg, backend, logger)
	if err != nil {
		closeStorage()
		return nil, err
	}
	return newWorkspace(st, closeStorage), nil
}

// newCLILogger logs warnings and errors only, whatever LOG_LEVEL the server
// runs with, so command output is not buried in request-level logs.
func newCLILogger(w io.Writer, env string) *slog.Logger {
	return internal.NewLogger(w, env, "warn")
}

func newWorkspace(st *store.Store, closeFn func() error) *workspace {
	logger := internal.NewLogger(io.Discard, "production", "error")
	tracker := usage.NewTracker(st, time.Now, logger)
	return &workspace{
		store: st,
		gate:  gate.New(st, tracker, logger),
		close: closeFn,
	}
}

func main() {
	root := newRootCommand(openWorkspace)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
