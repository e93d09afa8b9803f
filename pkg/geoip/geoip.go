// Package geoip resolves a client IP to an ISO 3166-1 alpha-2 country
// code. The resolution itself is an opaque collaborator to the decision
// engine; this package supplies a static file-backed provider and a
// caching decorator for whichever provider is configured.
package geoip

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/doorman-proxy/doorman/pkg/cache"
	"github.com/doorman-proxy/doorman/pkg/ip"
)

// Provider looks up the country for an IP. An empty code with a nil
// error means "unknown"; errors are reserved for lookup failures.
type Provider interface {
	CountryCode(ctx context.Context, addr net.IP) (string, error)
}

// StaticProvider answers lookups from an in-memory CIDR table loaded
// from a YAML database file of the shape:
//
//	countries:
//	  DE:
//	    - 10.1.0.0/16
//	  US:
//	    - 203.0.113.0/24
type StaticProvider struct {
	countries map[string]*ip.NetSet
}

type staticDatabase struct {
	Countries map[string][]string `json:"countries"`
}

// NewStaticProvider loads a static GeoIP database from the file at path.
func NewStaticProvider(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("could not read geoip database: %w", err)
	}

	var db staticDatabase
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("could not parse geoip database: %w", err)
	}

	p := &StaticProvider{countries: make(map[string]*ip.NetSet)}
	for code, cidrs := range db.Countries {
		set := ip.NewNetSet()
		for _, cidr := range cidrs {
			ipNet := ip.ParseIPNet(cidr)
			if ipNet == nil {
				return nil, fmt.Errorf("invalid network %q for country %q", cidr, code)
			}
			set.AddIPNet(*ipNet)
		}
		p.countries[strings.ToUpper(code)] = set
	}

	return p, nil
}

// CountryCode returns the country containing addr, or "" when no entry
// matches.
func (p *StaticProvider) CountryCode(_ context.Context, addr net.IP) (string, error) {
	if addr == nil {
		return "", nil
	}
	for code, set := range p.countries {
		if set.Has(addr) {
			return code, nil
		}
	}
	return "", nil
}

// CachedProvider memoizes lookups of an inner Provider in the shared
// cache. GeoIP data changes slowly, so entries live far longer than the
// hot store lookups.
type CachedProvider struct {
	inner Provider
	cache cache.Store
}

// NewCachedProvider wraps a provider with the shared cache.
func NewCachedProvider(inner Provider, store cache.Store) *CachedProvider {
	return &CachedProvider{inner: inner, cache: store}
}

// CountryCode resolves through the cache, falling back to the inner
// provider on a miss. Cached lookups include negative answers.
func (p *CachedProvider) CountryCode(ctx context.Context, addr net.IP) (string, error) {
	if addr == nil {
		return "", nil
	}

	key := cache.GeoIPKey(addr.String())
	if packed, found, err := p.cache.Get(ctx, key); err == nil && found {
		var code string
		if ok, err := cache.Unmarshal(packed, &code); err == nil {
			if !ok {
				return "", nil
			}
			return code, nil
		}
	}

	code, err := p.inner.CountryCode(ctx, addr)
	if err != nil {
		return "", err
	}

	var packed []byte
	if code == "" {
		packed, err = cache.Marshal(nil)
	} else {
		packed, err = cache.Marshal(code)
	}
	if err == nil {
		// Last writer wins; concurrent misses may race harmlessly.
		_ = p.cache.Set(ctx, key, packed, cache.GeoIPTTL)
	}

	return code, nil
}
