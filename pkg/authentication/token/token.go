// Package token verifies resource access tokens presented via the
// access-token header or query parameters.
package token

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
	"github.com/doorman-proxy/doorman/pkg/clock"
	"github.com/doorman-proxy/doorman/pkg/logger"
)

// Token is the public identity of a verified access token.
type Token struct {
	ID    string
	Title string
}

// Result reports the outcome of a verification. Error is set only for
// dependency failures; an invalid credential is Valid=false, Error=nil.
type Result struct {
	Valid bool
	Error error
	Token Token
}

// Verifier checks a tokenID/secret pair against a resource.
type Verifier interface {
	Verify(ctx context.Context, resourceID, tokenID, secret string) Result
}

type storeVerifier struct {
	store resources.Store
}

// NewStoreVerifier builds a Verifier backed by the resource store.
func NewStoreVerifier(store resources.Store) Verifier {
	return &storeVerifier{store: store}
}

// Verify loads the token by ID and checks resource scope, the enabled
// flag, expiry and the bcrypt secret hash, in that order.
func (v *storeVerifier) Verify(ctx context.Context, resourceID, tokenID, secret string) Result {
	accessToken, err := v.store.AccessTokenByID(ctx, tokenID)
	if err != nil {
		if err == resources.ErrNotFound {
			return Result{}
		}
		logger.Errorf("error loading access token %s: %v", tokenID, err)
		return Result{Error: err}
	}

	if accessToken.ResourceID != resourceID {
		return Result{}
	}
	if !accessToken.Enabled {
		return Result{}
	}
	if !accessToken.ExpiresAt.IsZero() && !clock.Now().Before(accessToken.ExpiresAt) {
		return Result{}
	}
	if bcrypt.CompareHashAndPassword([]byte(accessToken.SecretHash), []byte(secret)) != nil {
		return Result{}
	}

	return Result{
		Valid: true,
		Token: Token{
			ID:    accessToken.ID,
			Title: accessToken.Title,
		},
	}
}
