// Package redirect builds the login URL an unauthenticated client is
// sent to, honouring an org's custom login domain where the billing tier
// allows it.
package redirect

import (
	"context"
	"fmt"
	"net/url"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
	"github.com/doorman-proxy/doorman/pkg/logger"
)

// Builder assembles login redirect URLs. DashboardURL is the default
// login host for every org without a usable custom domain.
type Builder struct {
	store        resources.Store
	dashboardURL *url.URL
}

// NewBuilder parses the dashboard base URL once. The URL must carry a
// scheme and host.
func NewBuilder(store resources.Store, dashboardURL string) (*Builder, error) {
	parsed, err := url.Parse(dashboardURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing dashboard URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("dashboard URL %q must be absolute", dashboardURL)
	}
	return &Builder{
		store:        store,
		dashboardURL: parsed,
	}, nil
}

// LoginRedirect returns the full login URL for the org, with the
// original request URL carried in the "redirect" query parameter. The
// org's custom login domain is used only when its tier supports custom
// domains; any lookup failure falls back to the dashboard host.
func (b *Builder) LoginRedirect(ctx context.Context, org *resources.Org, originalRequestURL string) string {
	target := url.URL{
		Scheme: b.dashboardURL.Scheme,
		Host:   b.dashboardURL.Host,
		Path:   "/auth/login",
	}

	if host := b.customLoginHost(ctx, org); host != "" {
		target.Host = host
	}

	if originalRequestURL != "" {
		q := url.Values{}
		q.Set("redirect", originalRequestURL)
		target.RawQuery = q.Encode()
	}
	return target.String()
}

func (b *Builder) customLoginHost(ctx context.Context, org *resources.Org) string {
	if org == nil {
		return ""
	}

	supported, err := b.store.OrgSupportsCustomDomains(ctx, org.ID)
	if err != nil {
		logger.Errorf("error checking custom domain support for org %s: %v", org.ID, err)
		return ""
	}
	if !supported {
		return ""
	}

	page, err := b.store.LoginPageForOrg(ctx, org.ID)
	if err != nil {
		if err != resources.ErrNotFound {
			logger.Errorf("error loading login page for org %s: %v", org.ID, err)
		}
		return ""
	}
	if page.FullDomain == "" {
		return ""
	}
	return page.FullDomain
}
