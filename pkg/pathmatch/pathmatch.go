// Package pathmatch implements the segment-wise glob matching used by
// PATH rules. Patterns and paths are compared segment by segment; a bare
// "*" segment spans zero or more whole segments, resolved by
// backtracking.
package pathmatch

import (
	"regexp"
	"strings"
)

// Matches reports whether path satisfies pattern.
//
// Both sides are normalized by splitting on "/" and dropping empty
// segments, so leading and trailing slashes are insignificant. A pattern
// segment that is exactly "*" consumes zero or more path segments; a
// segment containing "*" or "?" elsewhere is an in-segment wildcard that
// must consume exactly one segment; anything else must match a segment
// byte for byte.
func Matches(pattern, path string) bool {
	return matchSegments(splitSegments(pattern), splitSegments(path))
}

func splitSegments(s string) []string {
	parts := strings.Split(s, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}

	if pattern[0] == "*" {
		// Try consuming zero segments first, then one and recurse.
		if matchSegments(pattern[1:], path) {
			return true
		}
		if len(path) > 0 {
			return matchSegments(pattern, path[1:])
		}
		return false
	}

	if len(path) == 0 {
		return false
	}

	if matchSegment(pattern[0], path[0]) {
		return matchSegments(pattern[1:], path[1:])
	}
	return false
}

func matchSegment(pattern, segment string) bool {
	if !strings.ContainsAny(pattern, "*?") {
		return pattern == segment
	}

	re, err := segmentRegexp(pattern)
	if err != nil {
		// A pattern that won't compile can never match.
		return false
	}
	return re.MatchString(segment)
}

// segmentRegexp translates an in-segment wildcard pattern to an anchored
// regular expression: "*" spans any run of characters, "?" exactly one.
func segmentRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
