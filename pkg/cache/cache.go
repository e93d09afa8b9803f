// Package cache provides the short-TTL shared cache fronting the store on
// the hot path of every verify call. Lookups are read-through: a miss is
// reported distinctly from a cached empty value, and duplicate concurrent
// loads after a miss are tolerated (last writer wins).
package cache

import (
	"context"
	"fmt"
	"time"
)

// TTLs for the hot lookups. These are deliberately short: the store is the
// source of truth and the cache only has to absorb per-request fan-out.
const (
	ResourceTTL   = 5 * time.Second
	RulesTTL      = 5 * time.Second
	SessionTTL    = 5 * time.Second
	UserAccessTTL = 5 * time.Second
	HeaderAuthTTL = 5 * time.Second
	GeoIPTTL      = 300 * time.Second
)

// Store is a keyed byte store with per-entry TTL. The boolean result of
// Get distinguishes "not cached" from "cached empty value"; callers must
// never treat a nil value as a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error

	// Ping verifies connectivity for readiness checks.
	Ping(ctx context.Context) error
}

// Typed key constructors. Every call site goes through one of these so
// the keyspace stays enumerable.

func ResourceByHostKey(host string) string {
	return fmt.Sprintf("doorman:resource:%s", host)
}

func RulesByResourceKey(resourceID string) string {
	return fmt.Sprintf("doorman:rules:%s", resourceID)
}

func SessionByTokenKey(token string) string {
	return fmt.Sprintf("doorman:session:%s", token)
}

func UserAccessKey(userID, resourceID string) string {
	return fmt.Sprintf("doorman:useraccess:%s:%s", userID, resourceID)
}

func HeaderAuthCredentialKey(resourceID, credential string) string {
	return fmt.Sprintf("doorman:headerauth:%s:%s", resourceID, credential)
}

func GeoIPKey(ip string) string {
	return fmt.Sprintf("doorman:geoip:%s", ip)
}
