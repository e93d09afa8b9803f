package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
)

const snapshotYAML = `
orgs:
  - id: org-1
    tier: premium
    maxSessionLength: 24h
    supportsCustomDomains: true
  - id: org-2
    tier: free
    denyAccess: true
loginPages:
  - orgId: org-1
    fullDomain: login.acme.io
resources:
  - id: res-1
    orgId: org-1
    fullDomain: app.acme.io
    enabled: true
    applyRules: true
    sso: true
    headersTemplate: '{"X-User":"{{username}}"}'
rules:
  - id: rule-1
    resourceId: res-1
    enabled: true
    priority: 1
    match: CIDR
    value: 10.0.0.0/8
    action: ACCEPT
sessions:
  - token: sess-token-1
    resourceId: res-1
    userSessionId: us-1
accessTokens:
  - id: tok-1
    resourceId: res-1
    orgId: org-1
    title: deploy key
    secretHash: "$2a$04$notarealhash"
    enabled: true
headerAuths:
  - resourceId: res-1
    secretHash: "$2a$04$notarealhash"
userSessions:
  - id: us-1
    userId: u-1
users:
  - id: u-1
    username: jdoe
    email: jdoe@example.com
    name: J. Doe
    emailVerified: true
    resourceIds: [res-direct]
roles:
  - id: role-1
    orgId: org-1
    name: Member
    userIds: [u-1]
    resourceIds: [res-1]
`

func newStoreFromYAML(t *testing.T, raw string) *InMemory {
	t.Helper()
	snapshot, err := ParseSnapshot([]byte(raw))
	require.NoError(t, err)
	s, err := NewInMemory(snapshot)
	require.NoError(t, err)
	return s
}

func TestInMemoryLookups(t *testing.T) {
	s := newStoreFromYAML(t, snapshotYAML)
	ctx := context.Background()

	resource, err := s.ResourceByDomain(ctx, "app.acme.io")
	require.NoError(t, err)
	assert.Equal(t, "res-1", resource.ID)
	assert.True(t, resource.SSOEnabled)
	assert.True(t, resource.ApplyRules)

	_, err = s.ResourceByDomain(ctx, "nope.acme.io")
	assert.ErrorIs(t, err, resources.ErrNotFound)

	rules, err := s.RulesForResource(ctx, "res-1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, resources.MatchCIDR, rules[0].Match)
	assert.Equal(t, resources.ActionAccept, rules[0].Action)

	session, err := s.SessionByToken(ctx, "sess-token-1")
	require.NoError(t, err)
	assert.Equal(t, "us-1", session.UserSessionID)

	org, err := s.OrgByID(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, org.MaxSessionLength)

	page, err := s.LoginPageForOrg(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "login.acme.io", page.FullDomain)

	tok, err := s.AccessTokenByID(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "deploy key", tok.Title)

	ha, err := s.HeaderAuthForResource(ctx, "res-1")
	require.NoError(t, err)
	assert.NotEmpty(t, ha.SecretHash)
}

func TestInMemoryAuthorizationJoins(t *testing.T) {
	s := newStoreFromYAML(t, snapshotYAML)
	ctx := context.Background()

	role, err := s.RoleForUser(ctx, "u-1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, "Member", role.Name)

	_, err = s.RoleForUser(ctx, "u-1", "org-2")
	assert.ErrorIs(t, err, resources.ErrNotFound)

	roleGrant, err := s.RoleHasResource(ctx, "role-1", "res-1")
	require.NoError(t, err)
	assert.True(t, roleGrant)

	userGrant, err := s.UserHasResource(ctx, "u-1", "res-direct")
	require.NoError(t, err)
	assert.True(t, userGrant)

	userGrant, err = s.UserHasResource(ctx, "u-1", "res-1")
	require.NoError(t, err)
	assert.False(t, userGrant)

	pass, err := s.OrgPassesAccessPolicy(ctx, "u-1", "org-1")
	require.NoError(t, err)
	assert.True(t, pass)

	pass, err = s.OrgPassesAccessPolicy(ctx, "u-1", "org-2")
	require.NoError(t, err)
	assert.False(t, pass)

	custom, err := s.OrgSupportsCustomDomains(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, custom)

	custom, err = s.OrgSupportsCustomDomains(ctx, "org-2")
	require.NoError(t, err)
	assert.False(t, custom)
}

func TestParseSnapshotRejectsGarbage(t *testing.T) {
	_, err := ParseSnapshot([]byte(":\n  - not yaml"))
	assert.Error(t, err)
}

func TestSnapshotRejectsBadDuration(t *testing.T) {
	_, err := ParseSnapshot([]byte("orgs:\n  - id: org-1\n"))
	require.NoError(t, err)

	snapshot, err := ParseSnapshot([]byte("orgs:\n  - id: org-1\n    maxSessionLength: sometimes\n"))
	require.NoError(t, err)
	_, err = NewInMemory(snapshot)
	assert.Error(t, err)
}

func TestSwapReplacesDataset(t *testing.T) {
	s := newStoreFromYAML(t, snapshotYAML)
	ctx := context.Background()

	next, err := ParseSnapshot([]byte("resources:\n  - id: res-2\n    orgId: org-1\n    fullDomain: other.acme.io\n    enabled: true\n"))
	require.NoError(t, err)
	require.NoError(t, s.Swap(next))

	_, err = s.ResourceByDomain(ctx, "app.acme.io")
	assert.ErrorIs(t, err, resources.ErrNotFound)

	resource, err := s.ResourceByDomain(ctx, "other.acme.io")
	require.NoError(t, err)
	assert.Equal(t, "res-2", resource.ID)
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")
	require.NoError(t, os.WriteFile(path, []byte(snapshotYAML), 0o600))

	s, err := NewFromFile(path)
	require.NoError(t, err)

	resource, err := s.ResourceByDomain(context.Background(), "app.acme.io")
	require.NoError(t, err)
	assert.Equal(t, "res-1", resource.ID)
}

func TestNewFromFileReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")
	require.NoError(t, os.WriteFile(path, []byte(snapshotYAML), 0o600))

	s, err := NewFromFile(path)
	require.NoError(t, err)

	updated := "resources:\n  - id: res-9\n    orgId: org-1\n    fullDomain: reloaded.acme.io\n    enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	require.Eventually(t, func() bool {
		_, err := s.ResourceByDomain(context.Background(), "reloaded.acme.io")
		return err == nil
	}, 2*time.Second, 50*time.Millisecond)
}
