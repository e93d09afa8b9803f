// Package options defines the user-facing configuration surface and its
// flag/config-file/environment loading.
package options

import (
	"github.com/spf13/pflag"
)

// Options holds the full verifier configuration.
type Options struct {
	Server  Server  `cfg:",squash"`
	Verify  Verify  `cfg:",squash"`
	Cache   Cache   `cfg:",squash"`
	Store   Store   `cfg:",squash"`
	GeoIP   GeoIP   `cfg:",squash"`
	Logging Logging `cfg:",squash"`
}

// Server configures the HTTP listener.
type Server struct {
	HTTPAddress string `cfg:"http_address" flag:"http-address"`
}

// Verify configures the decision engine's request shape.
type Verify struct {
	CookieName           string `cfg:"cookie_name" flag:"cookie-name"`
	TokenIDHeader        string `cfg:"access_token_id_header" flag:"access-token-id-header"`
	TokenSecretHeader    string `cfg:"access_token_header" flag:"access-token-header"`
	TokenQueryParam      string `cfg:"access_token_query_param" flag:"access-token-query-param"`
	DashboardURL         string `cfg:"dashboard_url" flag:"dashboard-url"`
	RequireVerifiedEmail bool   `cfg:"require_verified_email" flag:"require-verified-email"`

	// IPSets are named IP sets for IP_SET rules, each "name=cidr,cidr".
	IPSets []string `cfg:"ip_set" flag:"ip-set"`
}

const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Cache selects the shared short-TTL cache backend.
type Cache struct {
	// Type is "memory" or "redis".
	Type               string `cfg:"cache_type" flag:"cache-type"`
	RedisConnectionURL string `cfg:"redis_connection_url" flag:"redis-connection-url"`
}

// Store points at the resource dataset.
type Store struct {
	// File is a YAML snapshot watched for changes.
	File string `cfg:"store_file" flag:"store-file"`
}

// GeoIP points at the country database for COUNTRY rules.
type GeoIP struct {
	// File is a YAML country-to-CIDR map; empty disables GeoIP.
	File string `cfg:"geoip_file" flag:"geoip-file"`
}

// NewOptions constructs the Options with defaults.
func NewOptions() *Options {
	return &Options{
		Server: Server{
			HTTPAddress: "127.0.0.1:4180",
		},
		Verify: Verify{
			CookieName:        "p_session",
			TokenIDHeader:     "P-Access-Token-Id",
			TokenSecretHeader: "P-Access-Token",
			TokenQueryParam:   "p_token",
		},
		Cache: Cache{
			Type: CacheTypeMemory,
		},
		Logging: loggingDefaults(),
	}
}

// NewFlagSet creates a new FlagSet with all of the flags required by Options.
func NewFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("doorman", pflag.ExitOnError)

	flagSet.String("http-address", "127.0.0.1:4180", "[http://]<addr>:<port> or unix://<path> to listen on for HTTP clients")
	flagSet.String("cookie-name", "p_session", "base name of the resource-session cookie")
	flagSet.String("access-token-id-header", "P-Access-Token-Id", "header carrying an access token id")
	flagSet.String("access-token-header", "P-Access-Token", "header carrying an access token secret")
	flagSet.String("access-token-query-param", "p_token", "query parameter carrying an \"id.secret\" access token")
	flagSet.String("dashboard-url", "", "absolute URL of the dashboard, used as the login redirect target")
	flagSet.Bool("require-verified-email", false, "require SSO users to have a verified email")
	flagSet.StringArray("ip-set", []string{}, "named IP set for IP_SET rules, formatted \"name=cidr,cidr\" (may be given multiple times)")
	flagSet.String("cache-type", "memory", "cache backend: memory or redis")
	flagSet.String("redis-connection-url", "", "URL of redis server for the redis cache (eg: redis://[USER[:PASSWORD]@]HOST[:PORT])")
	flagSet.String("store-file", "", "path to the YAML resource dataset, watched for changes")
	flagSet.String("geoip-file", "", "path to the YAML country database for COUNTRY rules")

	loggingFlagSet(flagSet)

	return flagSet
}
