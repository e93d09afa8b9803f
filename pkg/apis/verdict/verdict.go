// Package verdict defines the wire contract between the reverse-proxy
// tier and the decision engine: one VerifyRequest per forwarded request,
// one VerifyResponse per decision.
package verdict

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
)

// VerifyRequest is the payload the proxy forwards for every inbound
// request it fronts.
type VerifyRequest struct {
	Sessions map[string]string `json:"sessions,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Query    map[string]string `json:"query,omitempty"`

	OriginalRequestURL string `json:"originalRequestURL"`
	Scheme             string `json:"scheme"`
	Host               string `json:"host"`
	Path               string `json:"path"`
	Method             string `json:"method"`
	TLS                bool   `json:"tls"`

	// RequestIP may carry a port suffix; IPv6 may be bracketed.
	RequestIP string `json:"requestIp,omitempty"`
}

// Validate checks the request for structural problems. A failure here is
// a 400-equivalent: the decision engine is never reached and nothing is
// audited.
func (r *VerifyRequest) Validate() error {
	if r.OriginalRequestURL == "" {
		return fmt.Errorf("originalRequestURL is required")
	}
	if u, err := url.Parse(r.OriginalRequestURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("originalRequestURL %q is not a valid absolute URL", r.OriginalRequestURL)
	}
	if r.Host == "" {
		return fmt.Errorf("host is required")
	}
	if r.Scheme == "" {
		return fmt.Errorf("scheme is required")
	}
	if r.Path == "" {
		return fmt.Errorf("path is required")
	}
	if r.Method == "" {
		return fmt.Errorf("method is required")
	}
	return nil
}

// Header returns a header value by name. Lookup is case-insensitive
// because proxies disagree on header casing.
func (r *VerifyRequest) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// QueryParam returns a query parameter value by name, tolerating missing
// maps.
func (r *VerifyRequest) QueryParam(name string) string {
	if r.Query == nil {
		return ""
	}
	return r.Query[name]
}

// VerifyResponse is the structured verdict returned to the proxy. Access
// denials are carried here with Valid=false, not as HTTP errors.
type VerifyResponse struct {
	Valid       bool                     `json:"valid"`
	RedirectURL string                   `json:"redirectUrl,omitempty"`
	UserData    *resources.BasicUserData `json:"userData,omitempty"`
	Headers     map[string]string        `json:"headers,omitempty"`
}

// Allow builds an allow response.
func Allow(user *resources.BasicUserData, headers map[string]string) *VerifyResponse {
	return &VerifyResponse{Valid: true, UserData: user, Headers: headers}
}

// Deny builds a deny response, optionally carrying a login redirect.
func Deny(redirectURL string) *VerifyResponse {
	return &VerifyResponse{Valid: false, RedirectURL: redirectURL}
}
