// Package store provides resources.Store implementations: an in-memory
// snapshot store and a YAML file store with hot reload.
package store

import (
	"fmt"
	"time"

	"github.com/ghodss/yaml"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
)

// Snapshot is the serialized form of the full decision dataset. The file
// store unmarshals one of these per reload; the in-memory store serves
// reads from the most recent one.
type Snapshot struct {
	Orgs          []OrgEntry          `json:"orgs"`
	LoginPages    []LoginPageEntry    `json:"loginPages"`
	Resources     []ResourceEntry     `json:"resources"`
	Rules         []RuleEntry         `json:"rules"`
	Sessions      []SessionEntry      `json:"sessions"`
	AccessTokens  []AccessTokenEntry  `json:"accessTokens"`
	HeaderAuths   []HeaderAuthEntry   `json:"headerAuths"`
	UserSessions  []UserSessionEntry  `json:"userSessions"`
	Users         []UserEntry         `json:"users"`
	Roles         []RoleEntry         `json:"roles"`
}

type OrgEntry struct {
	ID                    string `json:"id"`
	Tier                  string `json:"tier"`
	MaxSessionLength      string `json:"maxSessionLength"`
	SupportsCustomDomains bool   `json:"supportsCustomDomains"`
	// DenyAccess fails the org access policy for every user, modelling a
	// suspended org.
	DenyAccess bool `json:"denyAccess"`
}

type LoginPageEntry struct {
	OrgID      string `json:"orgId"`
	FullDomain string `json:"fullDomain"`
}

type ResourceEntry struct {
	ID                    string `json:"id"`
	OrgID                 string `json:"orgId"`
	FullDomain            string `json:"fullDomain"`
	Enabled               bool   `json:"enabled"`
	BlockAccess           bool   `json:"blockAccess"`
	ApplyRules            bool   `json:"applyRules"`
	SSOEnabled            bool   `json:"sso"`
	PincodeEnabled        bool   `json:"pincode"`
	PasswordEnabled       bool   `json:"password"`
	HeaderAuthEnabled     bool   `json:"headerAuth"`
	EmailWhitelistEnabled bool   `json:"emailWhitelist"`
	HeadersTemplate       string `json:"headersTemplate"`
	SSL                   bool   `json:"ssl"`
}

type RuleEntry struct {
	ID         string `json:"id"`
	ResourceID string `json:"resourceId"`
	Enabled    bool   `json:"enabled"`
	Priority   int    `json:"priority"`
	Match      string `json:"match"`
	Value      string `json:"value"`
	Action     string `json:"action"`
}

type SessionEntry struct {
	Token            string    `json:"token"`
	ResourceID       string    `json:"resourceId"`
	PincodeID        string    `json:"pincodeId"`
	PasswordID       string    `json:"passwordId"`
	WhitelistID      string    `json:"whitelistId"`
	AccessTokenID    string    `json:"accessTokenId"`
	AccessTokenTitle string    `json:"accessTokenTitle"`
	UserSessionID    string    `json:"userSessionId"`
	IsRequestToken   bool      `json:"isRequestToken"`
	CreatedAt        time.Time `json:"createdAt"`
}

type AccessTokenEntry struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resourceId"`
	OrgID      string    `json:"orgId"`
	Title      string    `json:"title"`
	SecretHash string    `json:"secretHash"`
	Enabled    bool      `json:"enabled"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type HeaderAuthEntry struct {
	ResourceID string `json:"resourceId"`
	SecretHash string `json:"secretHash"`
}

type UserSessionEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserEntry struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	EmailVerified bool     `json:"emailVerified"`
	// ResourceIDs are direct user-level grants.
	ResourceIDs []string `json:"resourceIds"`
}

type RoleEntry struct {
	ID          string   `json:"id"`
	OrgID       string   `json:"orgId"`
	Name        string   `json:"name"`
	UserIDs     []string `json:"userIds"`
	ResourceIDs []string `json:"resourceIds"`
}

// ParseSnapshot unmarshals a YAML (or JSON) snapshot document.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	snapshot := &Snapshot{}
	if err := yaml.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("error parsing store snapshot: %w", err)
	}
	return snapshot, nil
}

func (e *OrgEntry) org() (*resources.Org, error) {
	org := &resources.Org{
		ID:   e.ID,
		Tier: e.Tier,
	}
	if e.MaxSessionLength != "" {
		d, err := time.ParseDuration(e.MaxSessionLength)
		if err != nil {
			return nil, fmt.Errorf("org %s: bad maxSessionLength %q: %w", e.ID, e.MaxSessionLength, err)
		}
		org.MaxSessionLength = d
	}
	return org, nil
}

func (e *ResourceEntry) resource() *resources.Resource {
	return &resources.Resource{
		ID:                    e.ID,
		OrgID:                 e.OrgID,
		FullDomain:            e.FullDomain,
		Enabled:               e.Enabled,
		BlockAccess:           e.BlockAccess,
		ApplyRules:            e.ApplyRules,
		SSOEnabled:            e.SSOEnabled,
		PincodeEnabled:        e.PincodeEnabled,
		PasswordEnabled:       e.PasswordEnabled,
		HeaderAuthEnabled:     e.HeaderAuthEnabled,
		EmailWhitelistEnabled: e.EmailWhitelistEnabled,
		HeadersTemplate:       e.HeadersTemplate,
		SSL:                   e.SSL,
	}
}

func (e *RuleEntry) rule() resources.ResourceRule {
	return resources.ResourceRule{
		ID:         e.ID,
		ResourceID: e.ResourceID,
		Enabled:    e.Enabled,
		Priority:   e.Priority,
		Match:      resources.RuleMatch(e.Match),
		Value:      e.Value,
		Action:     resources.RuleAction(e.Action),
	}
}

func (e *SessionEntry) session() *resources.ResourceSession {
	return &resources.ResourceSession{
		Token:            e.Token,
		ResourceID:       e.ResourceID,
		PincodeID:        e.PincodeID,
		PasswordID:       e.PasswordID,
		WhitelistID:      e.WhitelistID,
		AccessTokenID:    e.AccessTokenID,
		AccessTokenTitle: e.AccessTokenTitle,
		UserSessionID:    e.UserSessionID,
		IsRequestToken:   e.IsRequestToken,
		CreatedAt:        e.CreatedAt,
	}
}

func (e *AccessTokenEntry) accessToken() *resources.AccessToken {
	return &resources.AccessToken{
		ID:         e.ID,
		ResourceID: e.ResourceID,
		OrgID:      e.OrgID,
		Title:      e.Title,
		SecretHash: e.SecretHash,
		Enabled:    e.Enabled,
		ExpiresAt:  e.ExpiresAt,
	}
}

func (e *UserEntry) user() *resources.User {
	return &resources.User{
		ID:            e.ID,
		Username:      e.Username,
		Email:         e.Email,
		Name:          e.Name,
		EmailVerified: e.EmailVerified,
	}
}

func (e *RoleEntry) role() *resources.Role {
	return &resources.Role{
		ID:    e.ID,
		OrgID: e.OrgID,
		Name:  e.Name,
	}
}
