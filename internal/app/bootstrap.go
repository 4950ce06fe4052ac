package app

import (
	"github.com/dshills/luadbg/internal/config"
	"github.com/dshills/luadbg/internal/debug"
	"github.com/dshills/luadbg/internal/event"
	"github.com/dshills/luadbg/internal/repl"
)

// InitError reports which component failed during startup.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// bootstrap initializes components in dependency order: configuration,
// bus, manager, sessions, watcher, front-end. Session loading failures
// are fatal here; at the prompt the load command reports them and moves
// on.
func (app *Application) bootstrap(opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.cfg = cfg

	app.bus = event.NewBus()
	app.manager = debug.NewManager(app.bus, debug.WithHostOptions(cfg.HostOptions()...))

	for _, script := range opts.Scripts {
		if _, err := app.manager.Load(debug.Source{Path: script}); err != nil {
			return &InitError{Component: "sessions", Err: err}
		}
	}

	if cfg.Watcher.Enabled && !opts.NoWatch {
		watcher, err := repl.NewSourceWatcher(app.bus, app.manager)
		if err != nil {
			return &InitError{Component: "watcher", Err: err}
		}
		app.watcher = watcher
	}

	replOpts := repl.Options{
		Color:          cfg.REPL.Color && !opts.NoColor,
		StackDepth:     cfg.REPL.StackDepth,
		HistoryFile:    cfg.REPL.HistoryFile,
		BreakpointFile: cfg.REPL.BreakpointFile,
		ScriptArgs:     opts.ScriptArgs,
	}
	if app.watcher != nil {
		replOpts.Watcher = app.watcher
	}
	app.repl = repl.New(app.manager, app.bus, replOpts)
	return nil
}
