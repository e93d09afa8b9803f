package resources

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store implementations when the requested
// record does not exist. Callers treat it as "unknown", never as a
// dependency failure.
var ErrNotFound = errors.New("resources: not found")

// RuleMatch is the match kind of a ResourceRule.
type RuleMatch string

const (
	MatchCIDR    RuleMatch = "CIDR"
	MatchIP      RuleMatch = "IP"
	MatchPath    RuleMatch = "PATH"
	MatchCountry RuleMatch = "COUNTRY"
	// MatchIPSet references a named IP set configured on the verifier;
	// the rule value is the set name.
	MatchIPSet RuleMatch = "IP_SET"
)

// RuleAction is the action taken when a ResourceRule matches.
type RuleAction string

const (
	ActionAccept RuleAction = "ACCEPT"
	ActionDrop   RuleAction = "DROP"
	// ActionPass stops rule evaluation and continues to the auth checks.
	// It is distinct from "no rule matched".
	ActionPass RuleAction = "PASS"
)

// Resource identifies a proxied destination. Read-mostly on the request
// path and cached by hostname.
type Resource struct {
	ID          string
	OrgID       string
	FullDomain  string
	Enabled     bool
	BlockAccess bool
	ApplyRules  bool

	SSOEnabled            bool
	PincodeEnabled        bool
	PasswordEnabled       bool
	HeaderAuthEnabled     bool
	EmailWhitelistEnabled bool

	// HeadersTemplate is the raw JSON header template, either an array of
	// {name, value} objects or a flat object. Empty means no extra headers.
	HeadersTemplate string

	SSL bool
}

// AuthConfigured reports whether any authentication mechanism is enabled
// on the resource.
func (r *Resource) AuthConfigured() bool {
	return r.SSOEnabled || r.PincodeEnabled || r.PasswordEnabled ||
		r.HeaderAuthEnabled || r.EmailWhitelistEnabled
}

// ResourceRule belongs to one Resource and is evaluated in ascending
// priority order while the rule is enabled and resource.ApplyRules is set.
type ResourceRule struct {
	ID         string
	ResourceID string
	Enabled    bool
	Priority   int
	Match      RuleMatch
	Value      string
	Action     RuleAction
}

// Org owns Resources. Tier gates premium features such as custom login
// domains. MaxSessionLength 0 means no session-length policy.
type Org struct {
	ID               string
	Tier             string
	MaxSessionLength time.Duration
}

// LoginPage is an org's custom login domain. Only honoured on a premium
// tier.
type LoginPage struct {
	OrgID      string
	FullDomain string
}

// AccessToken is a resource-scoped share/API token, verified by an
// opaque collaborator against its stored secret hash.
type AccessToken struct {
	ID         string
	ResourceID string
	OrgID      string
	Title      string
	SecretHash string
	Enabled    bool
	// ExpiresAt zero means the token never expires.
	ExpiresAt time.Time
}

// HeaderAuth is a resource-level shared secret compared against a
// client-presented HTTP Basic credential.
type HeaderAuth struct {
	ResourceID string
	SecretHash string
}

// ResourceSession is an opaque session token bound to a Resource. Exactly
// one of the credential references is set.
type ResourceSession struct {
	Token      string
	ResourceID string

	PincodeID     string
	PasswordID    string
	WhitelistID   string
	AccessTokenID string
	// AccessTokenTitle travels with AccessTokenID for audit output.
	AccessTokenTitle string
	UserSessionID    string

	// IsRequestToken marks a transient exchange token. It must never
	// grant access.
	IsRequestToken bool
	CreatedAt      time.Time
}

// UserSession is an SSO-origin session for a dashboard user.
type UserSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// User is a dashboard user referenced from SSO sessions.
type User struct {
	ID            string
	Username      string
	Email         string
	Name          string
	EmailVerified bool
}

// Role is an org-level role a user may hold.
type Role struct {
	ID    string
	OrgID string
	Name  string
}

// BasicUserData is assembled at decision time from the user/session/role
// join. It is derived and never persisted.
type BasicUserData struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// Store is the persistent query interface consumed by the decision
// engine. Implementations return ErrNotFound for missing records and
// reserve non-nil errors for genuine dependency failures.
type Store interface {
	// ResourceByDomain looks a Resource up by its full hostname.
	ResourceByDomain(ctx context.Context, domain string) (*Resource, error)

	// RulesForResource returns all rules of a resource, enabled or not,
	// in storage order.
	RulesForResource(ctx context.Context, resourceID string) ([]ResourceRule, error)

	// SessionByToken resolves a raw resource-session token.
	SessionByToken(ctx context.Context, token string) (*ResourceSession, error)

	// AccessTokenByID resolves an access token by its public ID.
	AccessTokenByID(ctx context.Context, tokenID string) (*AccessToken, error)

	// HeaderAuthForResource returns the resource's header-auth secret,
	// if one is configured.
	HeaderAuthForResource(ctx context.Context, resourceID string) (*HeaderAuth, error)

	OrgByID(ctx context.Context, orgID string) (*Org, error)
	LoginPageForOrg(ctx context.Context, orgID string) (*LoginPage, error)

	UserSessionByID(ctx context.Context, sessionID string) (*UserSession, error)
	UserByID(ctx context.Context, userID string) (*User, error)

	// RoleForUser returns the user's role in the org, or ErrNotFound when
	// the user is not an org member.
	RoleForUser(ctx context.Context, userID, orgID string) (*Role, error)

	// RoleHasResource reports a role-level grant on the resource.
	RoleHasResource(ctx context.Context, roleID, resourceID string) (bool, error)

	// UserHasResource reports a direct user-level grant on the resource.
	UserHasResource(ctx context.Context, userID, resourceID string) (bool, error)

	// OrgPassesAccessPolicy runs the org's tier/seat/suspension checks for
	// a user. The policy internals are opaque to the decision engine.
	OrgPassesAccessPolicy(ctx context.Context, userID, orgID string) (bool, error)

	// OrgSupportsCustomDomains reports whether the org's billing tier
	// allows a custom login domain.
	OrgSupportsCustomDomains(ctx context.Context, orgID string) (bool, error)
}
