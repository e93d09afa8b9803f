package options

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	opts := NewOptions()
	flagSet := NewFlagSet()
	require.NoError(t, flagSet.Parse([]string{}))

	require.NoError(t, Load("", flagSet, opts))

	assert.Equal(t, "127.0.0.1:4180", opts.Server.HTTPAddress)
	assert.Equal(t, "p_session", opts.Verify.CookieName)
	assert.Equal(t, "memory", opts.Cache.Type)
	assert.True(t, opts.Logging.RequestEnabled)
	assert.Equal(t, "X-Request-Id", opts.Logging.RequestIDHeader)
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	opts := NewOptions()
	flagSet := NewFlagSet()
	require.NoError(t, flagSet.Parse([]string{
		"--http-address=0.0.0.0:8080",
		"--cookie-name=session",
		"--cache-type=redis",
		"--redis-connection-url=redis://localhost:6379",
		"--ip-set=office=10.0.0.0/8,192.168.0.0/16",
	}))

	require.NoError(t, Load("", flagSet, opts))

	assert.Equal(t, "0.0.0.0:8080", opts.Server.HTTPAddress)
	assert.Equal(t, "session", opts.Verify.CookieName)
	assert.Equal(t, "redis", opts.Cache.Type)
	assert.Equal(t, "redis://localhost:6379", opts.Cache.RedisConnectionURL)
	assert.Equal(t, []string{"office=10.0.0.0/8,192.168.0.0/16"}, opts.Verify.IPSets)
}

func TestLoadRepeatedIPSetFlags(t *testing.T) {
	opts := NewOptions()
	flagSet := NewFlagSet()
	require.NoError(t, flagSet.Parse([]string{
		"--ip-set=office=203.0.113.0/24,198.51.100.0/24",
		"--ip-set=vpn=10.8.0.0/16",
	}))

	require.NoError(t, Load("", flagSet, opts))

	// Commas stay inside an entry; repetition separates sets.
	assert.Equal(t, []string{
		"office=203.0.113.0/24,198.51.100.0/24",
		"vpn=10.8.0.0/16",
	}, opts.Verify.IPSets)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "doorman.toml")
	config := `
http_address = "0.0.0.0:9000"
dashboard_url = "https://dash.example.com"
request_logging = false
`
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))

	opts := NewOptions()
	flagSet := NewFlagSet()
	require.NoError(t, flagSet.Parse([]string{}))

	require.NoError(t, Load(configPath, flagSet, opts))

	assert.Equal(t, "0.0.0.0:9000", opts.Server.HTTPAddress)
	assert.Equal(t, "https://dash.example.com", opts.Verify.DashboardURL)
	assert.False(t, opts.Logging.RequestEnabled)
	// Untouched values keep their defaults.
	assert.Equal(t, "p_session", opts.Verify.CookieName)
}

func TestLoadUnknownOptionFails(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "doorman.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("no_such_option = true\n"), 0o600))

	opts := NewOptions()
	flagSet := NewFlagSet()
	require.NoError(t, flagSet.Parse([]string{}))

	assert.Error(t, Load(configPath, flagSet, opts))
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DOORMAN_COOKIE_NAME", "env_session")

	opts := NewOptions()
	flagSet := NewFlagSet()
	require.NoError(t, flagSet.Parse([]string{}))

	require.NoError(t, Load("", flagSet, opts))
	assert.Equal(t, "env_session", opts.Verify.CookieName)
}
