// Package verify holds the per-request decision engine: rule evaluation,
// the ordered authentication resolvers and response shaping.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
	"github.com/doorman-proxy/doorman/pkg/apis/verdict"
	"github.com/doorman-proxy/doorman/pkg/app/redirect"
	"github.com/doorman-proxy/doorman/pkg/audit"
	"github.com/doorman-proxy/doorman/pkg/authentication/basic"
	"github.com/doorman-proxy/doorman/pkg/authentication/token"
	"github.com/doorman-proxy/doorman/pkg/authorization"
	"github.com/doorman-proxy/doorman/pkg/cache"
	"github.com/doorman-proxy/doorman/pkg/geoip"
	"github.com/doorman-proxy/doorman/pkg/header"
	"github.com/doorman-proxy/doorman/pkg/ip"
	"github.com/doorman-proxy/doorman/pkg/logger"
	"github.com/doorman-proxy/doorman/pkg/sessions"
	"github.com/doorman-proxy/doorman/pkg/userauth"
)

// ErrMalformedRequest marks a request that failed structural validation.
// The HTTP layer maps it to a 400; nothing is audited.
var ErrMalformedRequest = errors.New("malformed verify request")

// Config carries the request-shape knobs the engine needs.
type Config struct {
	// CookieName is the resource-session cookie base name.
	CookieName string

	// TokenIDHeader and TokenSecretHeader carry a header-presented access
	// token.
	TokenIDHeader     string
	TokenSecretHeader string

	// TokenQueryParam carries an "id.secret" access token in the query
	// string.
	TokenQueryParam string
}

// Verifier is the decision engine. One Verify call per proxied request.
type Verifier struct {
	store     resources.Store
	cache     cache.Store
	rules     *authorization.Engine
	geo       geoip.Provider
	basicAuth basic.Validator
	tokens    token.Verifier
	sessions  *sessions.Loader
	users     *userauth.Resolver
	redirects *redirect.Builder
	recorder  audit.Recorder
	config    Config
}

// NewVerifier wires the engine. geo may be nil when no GeoIP database is
// configured; COUNTRY rules then never match.
func NewVerifier(
	store resources.Store,
	cacheStore cache.Store,
	rules *authorization.Engine,
	geo geoip.Provider,
	basicAuth basic.Validator,
	tokens token.Verifier,
	sessionLoader *sessions.Loader,
	users *userauth.Resolver,
	redirects *redirect.Builder,
	recorder audit.Recorder,
	config Config,
) *Verifier {
	return &Verifier{
		store:     store,
		cache:     cacheStore,
		rules:     rules,
		geo:       geo,
		basicAuth: basicAuth,
		tokens:    tokens,
		sessions:  sessionLoader,
		users:     users,
		redirects: redirects,
		recorder:  recorder,
		config:    config,
	}
}

// request is the per-call evaluation state shared by the resolvers.
type request struct {
	req      *verdict.VerifyRequest
	resource *resources.Resource
	clientIP net.IP
	country  string

	// org is resolved lazily; orgLoaded guards a nil result.
	org       *resources.Org
	orgLoaded bool
}

// decision is a terminal outcome produced by a resolver.
type decision struct {
	reason   audit.Reason
	redirect bool

	user    *resources.BasicUserData
	headers map[string]string

	tokenID    string
	tokenTitle string
}

// resolver is one step of the ordered authentication chain. A nil
// decision with a nil error means "continue to the next resolver".
type resolver func(ctx context.Context, r *request) (*decision, error)

// Verify runs the full decision flow and returns the structured verdict.
// Dependency failures return an error and are never audited; every
// policy outcome is audited exactly once.
func (v *Verifier) Verify(ctx context.Context, req *verdict.VerifyRequest) (*verdict.VerifyResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	resource, err := v.resourceByHost(ctx, req.Host)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		// The org is unknown, so there is nothing to audit and nowhere
		// to redirect to.
		logger.Printf("no resource found for host %s", req.Host)
		return verdict.Deny(""), nil
	}

	r := &request{req: req, resource: resource}
	r.clientIP = ip.ParseClientIP(req.RequestIP)
	r.country = v.countryCode(ctx, r.clientIP)

	if !resource.Enabled {
		return v.deny(ctx, r, &decision{reason: audit.ReasonResourceNotFound})
	}
	if resource.BlockAccess {
		return v.deny(ctx, r, &decision{reason: audit.ReasonResourceBlocked})
	}

	if resource.ApplyRules {
		ruleVerdict, err := v.rules.Evaluate(ctx, authorization.EvalInput{
			ResourceID:  resource.ID,
			ClientIP:    r.clientIP,
			Path:        req.Path,
			CountryCode: r.country,
		})
		if err != nil {
			return nil, err
		}
		switch ruleVerdict {
		case authorization.Accept:
			return v.allow(ctx, r, &decision{reason: audit.ReasonAllowedByRule})
		case authorization.Drop:
			return v.deny(ctx, r, &decision{reason: audit.ReasonDroppedByRule})
		}
		// Pass and NoVerdict both continue into the auth chain.
	}

	for _, resolve := range v.chain() {
		d, err := resolve(ctx, r)
		if err != nil {
			return nil, err
		}
		if d == nil {
			continue
		}
		if d.reason.Allowed() {
			return v.allow(ctx, r, d)
		}
		return v.deny(ctx, r, d)
	}

	return v.deny(ctx, r, &decision{reason: audit.ReasonNoMoreAuthMethods, redirect: true})
}

// chain is the fixed resolver priority order.
func (v *Verifier) chain() []resolver {
	return []resolver{
		v.resolveNoAuth,
		v.resolveHeaderToken,
		v.resolveQueryToken,
		v.resolveBasicAuth,
		v.resolveSession,
	}
}

// resolveNoAuth allows immediately when the resource configures no
// authentication mechanism at all.
func (v *Verifier) resolveNoAuth(_ context.Context, r *request) (*decision, error) {
	if r.resource.AuthConfigured() {
		return nil, nil
	}
	return &decision{reason: audit.ReasonAllowedNoAuth}, nil
}

// resolveHeaderToken checks the id/secret access-token header pair.
func (v *Verifier) resolveHeaderToken(ctx context.Context, r *request) (*decision, error) {
	if v.config.TokenIDHeader == "" || v.config.TokenSecretHeader == "" {
		return nil, nil
	}
	tokenID := r.req.Header(v.config.TokenIDHeader)
	secret := r.req.Header(v.config.TokenSecretHeader)
	if tokenID == "" || secret == "" {
		return nil, nil
	}
	return v.verifyToken(ctx, r, tokenID, secret)
}

// resolveQueryToken checks the "id.secret" access-token query parameter.
func (v *Verifier) resolveQueryToken(ctx context.Context, r *request) (*decision, error) {
	if v.config.TokenQueryParam == "" {
		return nil, nil
	}
	raw := r.req.QueryParam(v.config.TokenQueryParam)
	if raw == "" {
		return nil, nil
	}
	tokenID, secret, ok := strings.Cut(raw, ".")
	if !ok || tokenID == "" || secret == "" {
		return nil, nil
	}
	return v.verifyToken(ctx, r, tokenID, secret)
}

func (v *Verifier) verifyToken(ctx context.Context, r *request, tokenID, secret string) (*decision, error) {
	result := v.tokens.Verify(ctx, r.resource.ID, tokenID, secret)
	if result.Error != nil {
		return nil, fmt.Errorf("error verifying access token: %w", result.Error)
	}
	if !result.Valid {
		return nil, nil
	}
	return &decision{
		reason:     audit.ReasonAllowedAccessToken,
		tokenID:    result.Token.ID,
		tokenTitle: result.Token.Title,
	}, nil
}

// resolveBasicAuth checks the resource's shared-secret Basic credential.
// When header auth is the only configured mechanism a failure is
// terminal and carries no redirect, because there is no login flow that
// could ever satisfy it.
func (v *Verifier) resolveBasicAuth(ctx context.Context, r *request) (*decision, error) {
	if !r.resource.HeaderAuthEnabled {
		return nil, nil
	}

	credential := r.req.Header("Authorization")
	if credential != "" && v.basicAuth.Validate(ctx, r.resource, credential) {
		return &decision{reason: audit.ReasonAllowedHeaderAuth}, nil
	}

	if v.headerAuthOnly(r.resource) {
		return &decision{reason: audit.ReasonNoMoreAuthMethods}, nil
	}
	return nil, nil
}

func (v *Verifier) headerAuthOnly(resource *resources.Resource) bool {
	return resource.HeaderAuthEnabled &&
		!resource.SSOEnabled && !resource.PincodeEnabled &&
		!resource.PasswordEnabled && !resource.EmailWhitelistEnabled
}

// resolveSession covers steps 5 and 6 of the chain: pick the session
// cookie, resolve the session, and map its credential kind to a
// decision.
func (v *Verifier) resolveSession(ctx context.Context, r *request) (*decision, error) {
	tokenValue, found := sessions.SelectCookie(r.req.Sessions, v.config.CookieName, r.req.TLS)
	if !found {
		return &decision{reason: audit.ReasonNoSessions, redirect: true}, nil
	}

	session, err := v.sessions.Load(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	if session == nil || session.ResourceID != r.resource.ID {
		return nil, nil
	}

	if session.IsRequestToken {
		return &decision{reason: audit.ReasonRequestToken, redirect: true}, nil
	}

	switch {
	case session.PincodeID != "" && r.resource.PincodeEnabled:
		return &decision{reason: audit.ReasonAllowedPincode}, nil
	case session.PasswordID != "" && r.resource.PasswordEnabled:
		return &decision{reason: audit.ReasonAllowedPassword}, nil
	case session.WhitelistID != "" && r.resource.EmailWhitelistEnabled:
		return &decision{reason: audit.ReasonAllowedWhitelist}, nil
	case session.AccessTokenID != "":
		return &decision{
			reason:     audit.ReasonAllowedAccessToken,
			tokenID:    session.AccessTokenID,
			tokenTitle: session.AccessTokenTitle,
		}, nil
	case session.UserSessionID != "" && r.resource.SSOEnabled:
		return v.resolveSSO(ctx, r, session)
	}

	return nil, nil
}

// resolveSSO enforces the org session policy and then the user's
// authorization on the resource. A policy failure denies with a redirect
// so the user can re-authenticate; a missing grant falls through.
func (v *Verifier) resolveSSO(ctx context.Context, r *request, session *resources.ResourceSession) (*decision, error) {
	org, err := v.org(ctx, r)
	if err != nil {
		return nil, err
	}

	userSession, err := v.store.UserSessionByID(ctx, session.UserSessionID)
	if err != nil && err != resources.ErrNotFound {
		return nil, fmt.Errorf("error loading user session: %w", err)
	}

	if !sessions.CheckUserSession(session, userSession, org) {
		return &decision{reason: audit.ReasonNoMoreAuthMethods, redirect: true}, nil
	}
	if userSession == nil {
		return nil, nil
	}

	user, err := v.users.Resolve(ctx, session.UserSessionID, r.resource, org)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	headers, ok := header.Interpolate(r.resource.HeadersTemplate, user)
	if !ok {
		headers = nil
	}
	return &decision{
		reason:  audit.ReasonAllowedSSO,
		user:    user,
		headers: headers,
	}, nil
}

func (v *Verifier) allow(ctx context.Context, r *request, d *decision) (*verdict.VerifyResponse, error) {
	v.record(ctx, r, d, true)
	return verdict.Allow(d.user, d.headers), nil
}

func (v *Verifier) deny(ctx context.Context, r *request, d *decision) (*verdict.VerifyResponse, error) {
	var redirectURL string
	if d.redirect {
		org, err := v.org(ctx, r)
		if err != nil {
			return nil, err
		}
		redirectURL = v.redirects.LoginRedirect(ctx, org, r.req.OriginalRequestURL)
	}
	v.record(ctx, r, d, false)
	return verdict.Deny(redirectURL), nil
}

func (v *Verifier) record(_ context.Context, r *request, d *decision, valid bool) {
	record := &audit.Record{
		Valid:       valid,
		Reason:      d.reason,
		ResourceID:  r.resource.ID,
		OrgID:       r.resource.OrgID,
		Host:        r.req.Host,
		Method:      r.req.Method,
		Path:        r.req.Path,
		Scheme:      r.req.Scheme,
		ClientIP:    r.clientIP,
		CountryCode: r.country,
		TokenID:     d.tokenID,
		TokenTitle:  d.tokenTitle,
	}
	if d.user != nil {
		record.Username = d.user.Username
		record.Email = d.user.Email
	}
	v.recorder.Record(record)
}

// org resolves the resource's org once per request. A missing org row is
// tolerated: redirects fall back to the dashboard host and the session
// policy is skipped.
func (v *Verifier) org(ctx context.Context, r *request) (*resources.Org, error) {
	if r.orgLoaded {
		return r.org, nil
	}
	org, err := v.store.OrgByID(ctx, r.resource.OrgID)
	if err != nil {
		if err != resources.ErrNotFound {
			return nil, fmt.Errorf("error loading org: %w", err)
		}
		org = nil
	}
	r.org = org
	r.orgLoaded = true
	return org, nil
}

// resourceByHost resolves the resource for a hostname through the cache,
// negative results included. A nil resource with a nil error means the
// host is unknown.
func (v *Verifier) resourceByHost(ctx context.Context, host string) (*resources.Resource, error) {
	key := cache.ResourceByHostKey(host)

	if packed, found, err := v.cache.Get(ctx, key); err == nil && found {
		var resource resources.Resource
		ok, err := cache.Unmarshal(packed, &resource)
		if err == nil {
			if !ok {
				return nil, nil
			}
			return &resource, nil
		}
	}

	resource, err := v.store.ResourceByDomain(ctx, host)
	if err != nil {
		if err == resources.ErrNotFound {
			if packed, err := cache.Marshal(nil); err == nil {
				_ = v.cache.Set(ctx, key, packed, cache.ResourceTTL)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("error loading resource for host %q: %w", host, err)
	}

	if packed, err := cache.Marshal(resource); err == nil {
		_ = v.cache.Set(ctx, key, packed, cache.ResourceTTL)
	}
	return resource, nil
}

// countryCode resolves the client country. GeoIP trouble means "no
// country" rather than a failed request; COUNTRY rules then simply do
// not match.
func (v *Verifier) countryCode(ctx context.Context, clientIP net.IP) string {
	if v.geo == nil || clientIP == nil {
		return ""
	}
	code, err := v.geo.CountryCode(ctx, clientIP)
	if err != nil {
		logger.Errorf("error resolving country for %s: %v", clientIP, err)
		return ""
	}
	return code
}
