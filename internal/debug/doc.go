// Package debug implements a source-level debugging engine for Lua
// scripts: session management, line breakpoints, run control with
// statement-level stepping, stack capture, and scalar variable
// inspection and mutation at pause points.
//
// The engine runs each script on its own goroutine. At every traced
// statement the script parks inside the trace hook until the controlling
// goroutine issues a command, so observers only ever touch interpreter
// state while the script is provably not progressing. Notifications are
// published synchronously on the engine's event bus at every state
// transition.
package debug
