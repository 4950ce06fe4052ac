// Package app assembles the debugger: configuration, notification bus,
// session manager, source watcher, and the interactive front-end,
// initialized in dependency order and torn down in reverse.
package app

import (
	"github.com/dshills/luadbg/internal/config"
	"github.com/dshills/luadbg/internal/debug"
	"github.com/dshills/luadbg/internal/event"
	"github.com/dshills/luadbg/internal/repl"
)

// Options configures application startup.
type Options struct {
	// ConfigPath overrides the default configuration file location.
	ConfigPath string
	// Scripts are loaded as sessions before the prompt appears; the
	// first loaded becomes the active session.
	Scripts []string
	// ScriptArgs are handed to the run command when it has no arguments
	// of its own.
	ScriptArgs []string
	// NoColor disables styled output regardless of configuration.
	NoColor bool
	// NoWatch disables source file watching regardless of configuration.
	NoWatch bool
}

// Application owns every long-lived component of the debugger.
type Application struct {
	cfg     *config.Config
	bus     *event.Bus
	manager *debug.Manager
	watcher *repl.SourceWatcher
	repl    *repl.REPL
}

// New builds an application. On failure the error is an *InitError
// naming the component that could not start, and everything already
// started is shut down again.
func New(opts Options) (*Application, error) {
	app := &Application{}
	if err := app.bootstrap(opts); err != nil {
		app.Shutdown()
		return nil, err
	}
	return app, nil
}

// Run drives the interactive prompt until the user quits.
func (app *Application) Run() error {
	return app.repl.Interact()
}

// Shutdown releases components in reverse initialization order. Safe to
// call on a partially initialized application and more than once.
func (app *Application) Shutdown() {
	if app.repl != nil {
		app.repl.Close()
		app.repl = nil
	}
	if app.watcher != nil {
		_ = app.watcher.Close()
		app.watcher = nil
	}
	if app.manager != nil {
		app.manager.Shutdown()
		app.manager = nil
	}
}

// Config returns the assembled configuration.
func (app *Application) Config() *config.Config { return app.cfg }

// Bus returns the notification bus.
func (app *Application) Bus() *event.Bus { return app.bus }

// Manager returns the session manager.
func (app *Application) Manager() *debug.Manager { return app.manager }

// Watcher returns the source watcher, nil when watching is disabled.
func (app *Application) Watcher() *repl.SourceWatcher { return app.watcher }
