package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
	"github.com/doorman-proxy/doorman/pkg/clock"
)

type fakeTokenStore struct {
	resources.Store
	tokens map[string]*resources.AccessToken
	err    error
}

func (s *fakeTokenStore) AccessTokenByID(_ context.Context, tokenID string) (*resources.AccessToken, error) {
	if s.err != nil {
		return nil, s.err
	}
	if tok, ok := s.tokens[tokenID]; ok {
		return tok, nil
	}
	return nil, resources.ErrNotFound
}

func TestVerify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock.Set(now)
	defer clock.Reset()

	hash, err := bcrypt.GenerateFromPassword([]byte("token-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	store := &fakeTokenStore{tokens: map[string]*resources.AccessToken{
		"tok-1": {ID: "tok-1", ResourceID: "res-1", Title: "CI deploy", SecretHash: string(hash), Enabled: true},
		"tok-disabled": {ID: "tok-disabled", ResourceID: "res-1", SecretHash: string(hash), Enabled: false},
		"tok-expired": {ID: "tok-expired", ResourceID: "res-1", SecretHash: string(hash), Enabled: true,
			ExpiresAt: now.Add(-time.Minute)},
		"tok-future": {ID: "tok-future", ResourceID: "res-1", Title: "share", SecretHash: string(hash), Enabled: true,
			ExpiresAt: now.Add(time.Hour)},
		"tok-other-resource": {ID: "tok-other-resource", ResourceID: "res-2", SecretHash: string(hash), Enabled: true},
	}}
	verifier := NewStoreVerifier(store)

	testCases := []struct {
		name     string
		tokenID  string
		secret   string
		valid    bool
		expTitle string
	}{
		{"Valid", "tok-1", "token-secret", true, "CI deploy"},
		{"ValidNotYetExpired", "tok-future", "token-secret", true, "share"},
		{"WrongSecret", "tok-1", "nope", false, ""},
		{"UnknownID", "tok-missing", "token-secret", false, ""},
		{"Disabled", "tok-disabled", "token-secret", false, ""},
		{"Expired", "tok-expired", "token-secret", false, ""},
		{"WrongResource", "tok-other-resource", "token-secret", false, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := verifier.Verify(context.Background(), "res-1", tc.tokenID, tc.secret)
			require.NoError(t, result.Error)
			assert.Equal(t, tc.valid, result.Valid)
			if tc.valid {
				assert.Equal(t, tc.tokenID, result.Token.ID)
				assert.Equal(t, tc.expTitle, result.Token.Title)
			}
		})
	}
}

func TestVerifyStoreError(t *testing.T) {
	store := &fakeTokenStore{err: errors.New("timeout")}
	verifier := NewStoreVerifier(store)

	result := verifier.Verify(context.Background(), "res-1", "tok-1", "secret")
	assert.False(t, result.Valid)
	assert.Error(t, result.Error)
}
