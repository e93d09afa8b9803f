package store

import (
	"context"
	"sync"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
)

// InMemory serves resources.Store queries from an indexed Snapshot. Swap
// replaces the whole dataset atomically, which is how the file store
// applies hot reloads.
type InMemory struct {
	mu   sync.RWMutex
	data *indexed
}

// indexed is a snapshot reshaped for lookup.
type indexed struct {
	resourcesByDomain map[string]*resources.Resource
	rulesByResource   map[string][]resources.ResourceRule
	sessionsByToken   map[string]*resources.ResourceSession
	accessTokens      map[string]*resources.AccessToken
	headerAuths       map[string]*resources.HeaderAuth
	orgs              map[string]*resources.Org
	orgDeny           map[string]bool
	orgCustomDomains  map[string]bool
	loginPages        map[string]*resources.LoginPage
	userSessions      map[string]*resources.UserSession
	users             map[string]*resources.User
	rolesByOrgUser    map[string]map[string]*resources.Role
	roleResources     map[string]map[string]bool
	userResources     map[string]map[string]bool
}

// NewInMemory builds a store from the given snapshot.
func NewInMemory(snapshot *Snapshot) (*InMemory, error) {
	s := &InMemory{}
	if err := s.Swap(snapshot); err != nil {
		return nil, err
	}
	return s, nil
}

// Swap atomically replaces the served dataset. A snapshot that fails to
// index leaves the previous dataset in place.
func (s *InMemory) Swap(snapshot *Snapshot) error {
	data, err := index(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func index(snapshot *Snapshot) (*indexed, error) {
	data := &indexed{
		resourcesByDomain: map[string]*resources.Resource{},
		rulesByResource:   map[string][]resources.ResourceRule{},
		sessionsByToken:   map[string]*resources.ResourceSession{},
		accessTokens:      map[string]*resources.AccessToken{},
		headerAuths:       map[string]*resources.HeaderAuth{},
		orgs:              map[string]*resources.Org{},
		orgDeny:           map[string]bool{},
		orgCustomDomains:  map[string]bool{},
		loginPages:        map[string]*resources.LoginPage{},
		userSessions:      map[string]*resources.UserSession{},
		users:             map[string]*resources.User{},
		rolesByOrgUser:    map[string]map[string]*resources.Role{},
		roleResources:     map[string]map[string]bool{},
		userResources:     map[string]map[string]bool{},
	}

	for i := range snapshot.Orgs {
		entry := &snapshot.Orgs[i]
		org, err := entry.org()
		if err != nil {
			return nil, err
		}
		data.orgs[org.ID] = org
		data.orgDeny[org.ID] = entry.DenyAccess
		data.orgCustomDomains[org.ID] = entry.SupportsCustomDomains
	}
	for i := range snapshot.LoginPages {
		entry := &snapshot.LoginPages[i]
		data.loginPages[entry.OrgID] = &resources.LoginPage{
			OrgID:      entry.OrgID,
			FullDomain: entry.FullDomain,
		}
	}
	for i := range snapshot.Resources {
		resource := snapshot.Resources[i].resource()
		data.resourcesByDomain[resource.FullDomain] = resource
	}
	for i := range snapshot.Rules {
		rule := snapshot.Rules[i].rule()
		data.rulesByResource[rule.ResourceID] = append(data.rulesByResource[rule.ResourceID], rule)
	}
	for i := range snapshot.Sessions {
		session := snapshot.Sessions[i].session()
		data.sessionsByToken[session.Token] = session
	}
	for i := range snapshot.AccessTokens {
		accessToken := snapshot.AccessTokens[i].accessToken()
		data.accessTokens[accessToken.ID] = accessToken
	}
	for i := range snapshot.HeaderAuths {
		entry := &snapshot.HeaderAuths[i]
		data.headerAuths[entry.ResourceID] = &resources.HeaderAuth{
			ResourceID: entry.ResourceID,
			SecretHash: entry.SecretHash,
		}
	}
	for i := range snapshot.UserSessions {
		entry := &snapshot.UserSessions[i]
		data.userSessions[entry.ID] = &resources.UserSession{
			ID:        entry.ID,
			UserID:    entry.UserID,
			CreatedAt: entry.CreatedAt,
		}
	}
	for i := range snapshot.Users {
		entry := &snapshot.Users[i]
		data.users[entry.ID] = entry.user()
		grants := map[string]bool{}
		for _, resourceID := range entry.ResourceIDs {
			grants[resourceID] = true
		}
		data.userResources[entry.ID] = grants
	}
	for i := range snapshot.Roles {
		entry := &snapshot.Roles[i]
		role := entry.role()

		byUser := data.rolesByOrgUser[entry.OrgID]
		if byUser == nil {
			byUser = map[string]*resources.Role{}
			data.rolesByOrgUser[entry.OrgID] = byUser
		}
		for _, userID := range entry.UserIDs {
			byUser[userID] = role
		}

		grants := map[string]bool{}
		for _, resourceID := range entry.ResourceIDs {
			grants[resourceID] = true
		}
		data.roleResources[role.ID] = grants
	}

	return data, nil
}

func (s *InMemory) snapshot() *indexed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *InMemory) ResourceByDomain(_ context.Context, domain string) (*resources.Resource, error) {
	if r, ok := s.snapshot().resourcesByDomain[domain]; ok {
		return r, nil
	}
	return nil, resources.ErrNotFound
}

func (s *InMemory) RulesForResource(_ context.Context, resourceID string) ([]resources.ResourceRule, error) {
	return s.snapshot().rulesByResource[resourceID], nil
}

func (s *InMemory) SessionByToken(_ context.Context, token string) (*resources.ResourceSession, error) {
	if sess, ok := s.snapshot().sessionsByToken[token]; ok {
		return sess, nil
	}
	return nil, resources.ErrNotFound
}

func (s *InMemory) AccessTokenByID(_ context.Context, tokenID string) (*resources.AccessToken, error) {
	if tok, ok := s.snapshot().accessTokens[tokenID]; ok {
		return tok, nil
	}
	return nil, resources.ErrNotFound
}

func (s *InMemory) HeaderAuthForResource(_ context.Context, resourceID string) (*resources.HeaderAuth, error) {
	if ha, ok := s.snapshot().headerAuths[resourceID]; ok {
		return ha, nil
	}
	return nil, resources.ErrNotFound
}

func (s *InMemory) OrgByID(_ context.Context, orgID string) (*resources.Org, error) {
	if org, ok := s.snapshot().orgs[orgID]; ok {
		return org, nil
	}
	return nil, resources.ErrNotFound
}

func (s *InMemory) LoginPageForOrg(_ context.Context, orgID string) (*resources.LoginPage, error) {
	if page, ok := s.snapshot().loginPages[orgID]; ok {
		return page, nil
	}
	return nil, resources.ErrNotFound
}

func (s *InMemory) UserSessionByID(_ context.Context, sessionID string) (*resources.UserSession, error) {
	if us, ok := s.snapshot().userSessions[sessionID]; ok {
		return us, nil
	}
	return nil, resources.ErrNotFound
}

func (s *InMemory) UserByID(_ context.Context, userID string) (*resources.User, error) {
	if u, ok := s.snapshot().users[userID]; ok {
		return u, nil
	}
	return nil, resources.ErrNotFound
}

func (s *InMemory) RoleForUser(_ context.Context, userID, orgID string) (*resources.Role, error) {
	if byUser, ok := s.snapshot().rolesByOrgUser[orgID]; ok {
		if role, ok := byUser[userID]; ok {
			return role, nil
		}
	}
	return nil, resources.ErrNotFound
}

func (s *InMemory) RoleHasResource(_ context.Context, roleID, resourceID string) (bool, error) {
	return s.snapshot().roleResources[roleID][resourceID], nil
}

func (s *InMemory) UserHasResource(_ context.Context, userID, resourceID string) (bool, error) {
	return s.snapshot().userResources[userID][resourceID], nil
}

func (s *InMemory) OrgPassesAccessPolicy(_ context.Context, _, orgID string) (bool, error) {
	data := s.snapshot()
	if _, ok := data.orgs[orgID]; !ok {
		return false, nil
	}
	return !data.orgDeny[orgID], nil
}

func (s *InMemory) OrgSupportsCustomDomains(_ context.Context, orgID string) (bool, error) {
	return s.snapshot().orgCustomDomains[orgID], nil
}
