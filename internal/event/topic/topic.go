// Package topic provides hierarchical topic naming and pattern matching
// for event routing.
package topic

import "strings"

// Topic represents a hierarchical event topic such as "debug.session.paused".
type Topic string

// Wildcard and separator constants for topic patterns.
const (
	// WildcardSingle matches exactly one topic segment.
	WildcardSingle = "*"
	// WildcardMulti matches zero or more topic segments.
	WildcardMulti = "**"
	// Separator divides topic segments.
	Separator = "."
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the individual segments of the topic.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Parent returns the parent topic, or empty if the topic has no parent.
// For "debug.session.paused" the parent is "debug.session".
func (t Topic) Parent() Topic {
	idx := strings.LastIndex(string(t), Separator)
	if idx < 0 {
		return ""
	}
	return t[:idx]
}

// Base returns the final segment of the topic.
func (t Topic) Base() string {
	idx := strings.LastIndex(string(t), Separator)
	if idx < 0 {
		return string(t)
	}
	return string(t[idx+1:])
}

// IsWildcard reports whether the topic contains wildcard segments and is
// therefore a pattern rather than a concrete topic.
func (t Topic) IsWildcard() bool {
	for _, seg := range t.Segments() {
		if seg == WildcardSingle || seg == WildcardMulti {
			return true
		}
	}
	return false
}

// IsValid reports whether the topic is well formed: non-empty, no empty
// segments, and no leading or trailing separator.
func (t Topic) IsValid() bool {
	if t == "" {
		return false
	}
	for _, seg := range t.Segments() {
		if seg == "" {
			return false
		}
	}
	return true
}

// Matches reports whether the topic matches the given pattern. The pattern
// may contain "*" (exactly one segment) and "**" (zero or more segments).
// A concrete pattern matches only itself.
func (t Topic) Matches(pattern Topic) bool {
	if t == pattern {
		return true
	}
	return matchSegments(t.Segments(), pattern.Segments())
}

func matchSegments(topic, pattern []string) bool {
	if len(pattern) == 0 {
		return len(topic) == 0
	}
	switch pattern[0] {
	case WildcardMulti:
		// Try consuming zero segments, then one, and so on.
		for i := 0; i <= len(topic); i++ {
			if matchSegments(topic[i:], pattern[1:]) {
				return true
			}
		}
		return false
	case WildcardSingle:
		if len(topic) == 0 {
			return false
		}
		return matchSegments(topic[1:], pattern[1:])
	default:
		if len(topic) == 0 || topic[0] != pattern[0] {
			return false
		}
		return matchSegments(topic[1:], pattern[1:])
	}
}

// Join combines segments into a topic.
func Join(segments ...string) Topic {
	return Topic(strings.Join(segments, Separator))
}
