package sessions

import (
	"context"
	"fmt"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
	"github.com/doorman-proxy/doorman/pkg/cache"
)

// Loader resolves raw resource-session tokens through the shared cache.
// Misses, including "no such session", are cached for the session TTL so
// a burst of requests with a dead cookie does not hammer the store.
type Loader struct {
	store resources.Store
	cache cache.Store
}

// NewLoader builds a Loader over the given store and cache.
func NewLoader(store resources.Store, cacheStore cache.Store) *Loader {
	return &Loader{
		store: store,
		cache: cacheStore,
	}
}

// Load resolves a session token. A nil session with a nil error means
// the token is unknown.
func (l *Loader) Load(ctx context.Context, token string) (*resources.ResourceSession, error) {
	key := cache.SessionByTokenKey(token)

	if packed, found, err := l.cache.Get(ctx, key); err == nil && found {
		var session resources.ResourceSession
		ok, err := cache.Unmarshal(packed, &session)
		if err == nil {
			if !ok {
				return nil, nil
			}
			return &session, nil
		}
	}

	session, err := l.store.SessionByToken(ctx, token)
	if err != nil {
		if err == resources.ErrNotFound {
			if packed, err := cache.Marshal(nil); err == nil {
				_ = l.cache.Set(ctx, key, packed, cache.SessionTTL)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("error loading session: %w", err)
	}

	if packed, err := cache.Marshal(session); err == nil {
		_ = l.cache.Set(ctx, key, packed, cache.SessionTTL)
	}
	return session, nil
}
