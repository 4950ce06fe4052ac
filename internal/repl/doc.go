// Package repl is the interactive front-end of the debugger: a
// line-oriented command prompt, rendering for engine notifications, a
// sidecar file that persists breakpoints between runs, and a file
// watcher that reports on-disk edits to loaded scripts.
//
// The prompt goroutine owns all run control. Engine notifications
// arrive on the script's goroutine and only render; they never steer
// the execution.
package repl
