package repl

import "errors"

var (
	// ErrQuit signals that the user asked to leave the debugger.
	ErrQuit = errors.New("quit requested")

	// ErrUnknownCommand is returned for input matching no command name
	// or alias.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNoExecution is returned by run-control and inspection commands
	// when no script is executing.
	ErrNoExecution = errors.New("no script is executing")

	// ErrNotPaused is returned by inspection commands while the script
	// runs free.
	ErrNotPaused = errors.New("script is not paused")

	// ErrWatcherClosed is returned when registering paths on a closed
	// source watcher.
	ErrWatcherClosed = errors.New("source watcher is closed")
)
