// Package basic validates resource-level HTTP Basic credentials against
// the shared secret configured on the resource.
package basic

import (
	"context"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
	"github.com/doorman-proxy/doorman/pkg/cache"
	"github.com/doorman-proxy/doorman/pkg/logger"
)

// storeValidator compares the Basic password against the resource's
// bcrypt secret hash. Successful raw credentials are cached briefly so
// repeated requests skip the bcrypt work.
type storeValidator struct {
	store resources.Store
	cache cache.Store
}

// NewStoreValidator builds a Validator over the given store and cache.
func NewStoreValidator(store resources.Store, cacheStore cache.Store) Validator {
	return &storeValidator{
		store: store,
		cache: cacheStore,
	}
}

func (v *storeValidator) Validate(ctx context.Context, resource *resources.Resource, authorization string) bool {
	password, ok := decodeBasic(authorization)
	if !ok {
		return false
	}

	key := cache.HeaderAuthCredentialKey(resource.ID, authorization)
	if packed, found, err := v.cache.Get(ctx, key); err == nil && found {
		var valid bool
		if ok, err := cache.Unmarshal(packed, &valid); err == nil && ok && valid {
			return true
		}
	}

	headerAuth, err := v.store.HeaderAuthForResource(ctx, resource.ID)
	if err != nil {
		if err != resources.ErrNotFound {
			logger.Errorf("error loading header auth for resource %s: %v", resource.ID, err)
		}
		return false
	}

	if bcrypt.CompareHashAndPassword([]byte(headerAuth.SecretHash), []byte(password)) != nil {
		return false
	}

	if packed, err := cache.Marshal(true); err == nil {
		_ = v.cache.Set(ctx, key, packed, cache.HeaderAuthTTL)
	}
	return true
}

// decodeBasic extracts the password from an "Basic base64(user:pass)"
// header value. A payload without a colon is treated as a bare password.
func decodeBasic(authorization string) (string, bool) {
	const prefix = "Basic "
	if len(authorization) <= len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return "", false
	}
	payload, err := base64.StdEncoding.DecodeString(strings.TrimSpace(authorization[len(prefix):]))
	if err != nil {
		return "", false
	}
	decoded := string(payload)
	if i := strings.IndexByte(decoded, ':'); i >= 0 {
		return decoded[i+1:], true
	}
	return decoded, true
}
