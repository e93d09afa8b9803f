// Package userauth decides whether the user behind an SSO session may
// reach a resource, and assembles the user data forwarded on success.
package userauth

import (
	"context"
	"fmt"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
	"github.com/doorman-proxy/doorman/pkg/cache"
)

// Resolver walks the user/role/org joins behind an SSO session. Results,
// including denials, are cached per user+resource so the join chain runs
// at most once per TTL window.
type Resolver struct {
	store resources.Store
	cache cache.Store

	// RequireVerifiedEmail rejects users whose email is unverified.
	RequireVerifiedEmail bool
}

// NewResolver builds a Resolver over the given store and cache.
func NewResolver(store resources.Store, cacheStore cache.Store) *Resolver {
	return &Resolver{
		store: store,
		cache: cacheStore,
	}
}

// Resolve returns the user data to forward for an authorized user, nil
// when the user may not access the resource, and an error only on
// dependency failure.
func (r *Resolver) Resolve(ctx context.Context, userSessionID string, resource *resources.Resource, org *resources.Org) (*resources.BasicUserData, error) {
	userSession, err := r.store.UserSessionByID(ctx, userSessionID)
	if err != nil {
		if err == resources.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error loading user session: %w", err)
	}

	key := cache.UserAccessKey(userSession.UserID, resource.ID)
	if packed, found, err := r.cache.Get(ctx, key); err == nil && found {
		var data resources.BasicUserData
		ok, err := cache.Unmarshal(packed, &data)
		if err == nil {
			if !ok {
				return nil, nil
			}
			return &data, nil
		}
	}

	data, err := r.resolve(ctx, userSession, resource, org)
	if err != nil {
		return nil, err
	}

	var toPack interface{}
	if data != nil {
		toPack = data
	}
	if packed, err := cache.Marshal(toPack); err == nil {
		_ = r.cache.Set(ctx, key, packed, cache.UserAccessTTL)
	}
	return data, nil
}

func (r *Resolver) resolve(ctx context.Context, userSession *resources.UserSession, resource *resources.Resource, org *resources.Org) (*resources.BasicUserData, error) {
	// A resource whose org row is gone has nothing to authorize against.
	if org == nil {
		return nil, nil
	}

	user, err := r.store.UserByID(ctx, userSession.UserID)
	if err != nil {
		if err == resources.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if r.RequireVerifiedEmail && !user.EmailVerified {
		return nil, nil
	}

	role, err := r.store.RoleForUser(ctx, user.ID, org.ID)
	if err != nil {
		if err == resources.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error loading role: %w", err)
	}

	allowed, err := r.store.OrgPassesAccessPolicy(ctx, user.ID, org.ID)
	if err != nil {
		return nil, fmt.Errorf("error checking org access policy: %w", err)
	}
	if !allowed {
		return nil, nil
	}

	roleGrant, err := r.store.RoleHasResource(ctx, role.ID, resource.ID)
	if err != nil {
		return nil, fmt.Errorf("error checking role grant: %w", err)
	}
	if !roleGrant {
		userGrant, err := r.store.UserHasResource(ctx, user.ID, resource.ID)
		if err != nil {
			return nil, fmt.Errorf("error checking user grant: %w", err)
		}
		if !userGrant {
			return nil, nil
		}
	}

	return &resources.BasicUserData{
		Username: user.Username,
		Email:    user.Email,
		Name:     user.Name,
		Role:     role.Name,
	}, nil
}
