package debug

import "sort"

// BreakpointSet holds the line breakpoints of one session along with
// per-line hit counts. Lines need not be executable; a breakpoint on a
// blank or comment line is stored but never hit.
//
// The set is not safe for concurrent use. Run-control sequencing makes
// that sufficient: mutate it only while the owning session has no live
// execution or while its execution is paused.
type BreakpointSet struct {
	lines map[int]int // line -> hit count
}

// NewBreakpointSet returns an empty set.
func NewBreakpointSet() *BreakpointSet {
	return &BreakpointSet{lines: make(map[int]int)}
}

// Toggle flips the breakpoint on line and reports whether the line now
// carries one (false = removed). Non-positive lines are ignored.
func (s *BreakpointSet) Toggle(line int) bool {
	if line <= 0 {
		return false
	}
	if _, ok := s.lines[line]; ok {
		delete(s.lines, line)
		return false
	}
	s.lines[line] = 0
	return true
}

// Contains reports whether line carries a breakpoint.
func (s *BreakpointSet) Contains(line int) bool {
	_, ok := s.lines[line]
	return ok
}

// Lines returns all breakpoint lines in ascending order.
func (s *BreakpointSet) Lines() []int {
	out := make([]int, 0, len(s.lines))
	for line := range s.lines {
		out = append(out, line)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of breakpoints.
func (s *BreakpointSet) Len() int {
	return len(s.lines)
}

// Clear removes every breakpoint.
func (s *BreakpointSet) Clear() {
	s.lines = make(map[int]int)
}

// HitCount returns how many times the breakpoint on line has paused the
// current (or most recent) execution. Zero for lines without one.
func (s *BreakpointSet) HitCount(line int) int {
	return s.lines[line]
}

// ResetHits zeroes all hit counts. Called when a new execution starts.
func (s *BreakpointSet) ResetHits() {
	for line := range s.lines {
		s.lines[line] = 0
	}
}

func (s *BreakpointSet) recordHit(line int) {
	if _, ok := s.lines[line]; ok {
		s.lines[line]++
	}
}
