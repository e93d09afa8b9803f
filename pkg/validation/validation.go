package validation

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/doorman-proxy/doorman/pkg/apis/options"
	"github.com/doorman-proxy/doorman/pkg/ip"
)

// Validate checks that required options are set and validates those that they
// are of the correct format.
func Validate(o *options.Options) error {
	msgs := validateVerify(o.Verify)
	msgs = append(msgs, validateCache(o.Cache)...)
	msgs = append(msgs, validateStore(o.Store)...)
	msgs = append(msgs, validateGeoIP(o.GeoIP)...)

	if o.Server.HTTPAddress == "" {
		msgs = append(msgs, "missing setting: http-address")
	}

	if len(msgs) != 0 {
		return fmt.Errorf("invalid configuration:\n  %s",
			strings.Join(msgs, "\n  "))
	}
	return nil
}

func validateVerify(o options.Verify) []string {
	msgs := []string{}

	if o.DashboardURL == "" {
		msgs = append(msgs, "missing setting: dashboard-url")
	} else {
		parsed, err := url.Parse(o.DashboardURL)
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("error parsing dashboard-url=%q %v", o.DashboardURL, err))
		} else if !parsed.IsAbs() || parsed.Host == "" {
			msgs = append(msgs, fmt.Sprintf("dashboard-url=%q must be an absolute URL", o.DashboardURL))
		}
	}

	if o.CookieName == "" {
		msgs = append(msgs, "missing setting: cookie-name")
	}

	msgs = append(msgs, validateIPSets(o.IPSets)...)
	return msgs
}

// validateIPSets checks each entry is of the form "name=cidr[,cidr...]".
func validateIPSets(sets []string) []string {
	msgs := []string{}
	seen := map[string]struct{}{}
	for _, entry := range sets {
		name, cidrs, found := strings.Cut(entry, "=")
		if !found || name == "" || cidrs == "" {
			msgs = append(msgs, fmt.Sprintf("ip-set %q must be of the form name=cidr[,cidr...]", entry))
			continue
		}
		if _, ok := seen[name]; ok {
			msgs = append(msgs, fmt.Sprintf("duplicate ip-set name %q", name))
			continue
		}
		seen[name] = struct{}{}
		for _, cidr := range strings.Split(cidrs, ",") {
			if ip.ParseIPNet(strings.TrimSpace(cidr)) == nil {
				msgs = append(msgs, fmt.Sprintf("ip-set %q contains unparseable network %q", name, cidr))
			}
		}
	}
	return msgs
}

func validateCache(o options.Cache) []string {
	msgs := []string{}
	switch o.Type {
	case options.CacheTypeMemory:
	case options.CacheTypeRedis:
		if o.RedisConnectionURL == "" {
			msgs = append(msgs, "missing setting: redis-connection-url is required when cache-type is redis")
		} else if !strings.HasPrefix(o.RedisConnectionURL, "redis://") && !strings.HasPrefix(o.RedisConnectionURL, "rediss://") {
			msgs = append(msgs, fmt.Sprintf("redis-connection-url=%q must use the redis:// or rediss:// scheme", o.RedisConnectionURL))
		}
	default:
		msgs = append(msgs, fmt.Sprintf("cache-type %q is not one of memory, redis", o.Type))
	}
	return msgs
}

func validateStore(o options.Store) []string {
	msgs := []string{}
	if o.File == "" {
		msgs = append(msgs, "missing setting: store-file")
	} else if _, err := os.Stat(o.File); err != nil {
		msgs = append(msgs, fmt.Sprintf("could not read store-file %q: %v", o.File, err))
	}
	return msgs
}

func validateGeoIP(o options.GeoIP) []string {
	msgs := []string{}
	if o.File != "" {
		if _, err := os.Stat(o.File); err != nil {
			msgs = append(msgs, fmt.Sprintf("could not read geoip-file %q: %v", o.File, err))
		}
	}
	return msgs
}
