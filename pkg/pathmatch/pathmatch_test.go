package pathmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	testCases := []struct {
		pattern  string
		path     string
		expected bool
	}{
		// Full-segment wildcard consumes zero or more segments.
		{"/api/*", "/api/v1/users", true},
		{"/api/*", "/api", true},
		{"/api/*", "/api/", true},
		{"/a/*/c", "/a/b/x/c", true},
		{"/a/*/c", "/a/c", true},
		{"/a/*/c", "/a/b/c/d", false},
		{"*", "/anything/at/all", true},
		{"*", "/", true},
		{"/*/*", "/x", true},

		// Exact segments.
		{"/a/b", "/a/b", true},
		{"/a/b", "/a/b/c", false},
		{"/a/b/c", "/a/b", false},
		{"a/b", "/a/b/", true},

		// In-segment wildcards must consume exactly one segment.
		{"/files/*.txt", "/files/notes.txt", true},
		{"/files/*.txt", "/files/sub/notes.txt", false},
		{"/v?", "/v1", true},
		{"/v?", "/v10", false},
		{"/img-??", "/img-01", true},

		// Regex metacharacters in segments are literal.
		{"/a.b", "/a.b", true},
		{"/a.b", "/axb", false},
		{"/a+b", "/a+b", true},

		// Empty pattern only matches empty path.
		{"", "", true},
		{"/", "/", true},
		{"", "/a", false},

		// Trailing wildcards may all consume nothing.
		{"/a/*/*", "/a", true},
		{"/a/*/b", "/a", false},
	}

	for _, tc := range testCases {
		t.Run(tc.pattern+"|"+tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, Matches(tc.pattern, tc.path))
		})
	}
}

func TestMatchesBacktracking(t *testing.T) {
	// The wildcard has to retry longer spans before the fixed tail lines up.
	assert.True(t, Matches("/a/*/b/c", "/a/x/b/y/b/c"))
	assert.True(t, Matches("/*/z", "/a/b/c/z"))
	assert.False(t, Matches("/*/z", "/a/b/c"))
}
