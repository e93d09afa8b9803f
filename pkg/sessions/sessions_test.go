package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
	"github.com/doorman-proxy/doorman/pkg/cache"
	"github.com/doorman-proxy/doorman/pkg/clock"
)

func TestSelectCookie(t *testing.T) {
	testCases := []struct {
		name     string
		cookies  map[string]string
		tls      bool
		expected string
		found    bool
	}{
		{
			name:     "PlainName",
			cookies:  map[string]string{"p_session": "tok-a"},
			expected: "tok-a",
			found:    true,
		},
		{
			name:     "GreatestTimestampWins",
			cookies:  map[string]string{"p_session.100": "old", "p_session.250": "new", "p_session.9": "older"},
			expected: "new",
			found:    true,
		},
		{
			name:     "TimestampBeatsPlain",
			cookies:  map[string]string{"p_session": "plain", "p_session.5": "stamped"},
			expected: "stamped",
			found:    true,
		},
		{
			name:     "SecureVariantOnTLS",
			cookies:  map[string]string{"p_session_s": "secure"},
			tls:      true,
			expected: "secure",
			found:    true,
		},
		{
			name:    "SecureVariantIgnoredWithoutTLS",
			cookies: map[string]string{"p_session_s": "secure"},
			found:   false,
		},
		{
			name:     "SecureVariantWithTimestamp",
			cookies:  map[string]string{"p_session.10": "plain", "p_session_s.20": "secure"},
			tls:      true,
			expected: "secure",
			found:    true,
		},
		{
			name:    "NonNumericSuffixIgnored",
			cookies: map[string]string{"p_session.abc": "bad"},
			found:   false,
		},
		{
			name:    "UnrelatedCookiesIgnored",
			cookies: map[string]string{"other": "x", "p_session_extra": "y"},
			found:   false,
		},
		{
			name:    "Empty",
			cookies: nil,
			found:   false,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			value, found := SelectCookie(tc.cookies, "p_session", tc.tls)
			assert.Equal(t, tc.found, found)
			if tc.found {
				assert.Equal(t, tc.expected, value)
			}
		})
	}
}

type fakeSessionStore struct {
	resources.Store
	sessions map[string]*resources.ResourceSession
	err      error
	calls    int
}

func (s *fakeSessionStore) SessionByToken(_ context.Context, token string) (*resources.ResourceSession, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if sess, ok := s.sessions[token]; ok {
		return sess, nil
	}
	return nil, resources.ErrNotFound
}

func TestLoaderLoad(t *testing.T) {
	store := &fakeSessionStore{sessions: map[string]*resources.ResourceSession{
		"tok-1": {Token: "tok-1", ResourceID: "res-1", PincodeID: "pin-1"},
	}}
	loader := NewLoader(store, cache.NewMemoryStore())

	session, err := loader.Load(context.Background(), "tok-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "res-1", session.ResourceID)
	assert.Equal(t, "pin-1", session.PincodeID)

	// Second load comes from cache.
	_, err = loader.Load(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
}

func TestLoaderLoadUnknownTokenCachedNegative(t *testing.T) {
	store := &fakeSessionStore{}
	loader := NewLoader(store, cache.NewMemoryStore())

	for i := 0; i < 3; i++ {
		session, err := loader.Load(context.Background(), "dead-token")
		require.NoError(t, err)
		assert.Nil(t, session)
	}
	assert.Equal(t, 1, store.calls)
}

func TestLoaderLoadStoreError(t *testing.T) {
	store := &fakeSessionStore{err: errors.New("connection reset")}
	loader := NewLoader(store, cache.NewMemoryStore())

	_, err := loader.Load(context.Background(), "tok-1")
	assert.Error(t, err)
}

func TestCheckUserSession(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock.Set(now)
	defer clock.Reset()

	ssoSession := &resources.ResourceSession{Token: "t", UserSessionID: "us-1"}
	pinSession := &resources.ResourceSession{Token: "t", PincodeID: "pin-1"}
	org := &resources.Org{ID: "org-1", MaxSessionLength: time.Hour}

	testCases := []struct {
		name        string
		session     *resources.ResourceSession
		userSession *resources.UserSession
		org         *resources.Org
		expected    bool
	}{
		{"FreshSSOSession", ssoSession, &resources.UserSession{CreatedAt: now.Add(-30 * time.Minute)}, org, true},
		{"ExpiredSSOSession", ssoSession, &resources.UserSession{CreatedAt: now.Add(-2 * time.Hour)}, org, false},
		{"ExactBoundaryAllowed", ssoSession, &resources.UserSession{CreatedAt: now.Add(-time.Hour)}, org, true},
		{"NonSSOSessionExempt", pinSession, nil, org, true},
		{"NoPolicyConfigured", ssoSession, &resources.UserSession{CreatedAt: now.Add(-100 * time.Hour)}, &resources.Org{ID: "org-1"}, true},
		{"MissingUserSessionFails", ssoSession, nil, org, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CheckUserSession(tc.session, tc.userSession, tc.org))
		})
	}
}
