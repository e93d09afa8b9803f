package sessions

import (
	"github.com/doorman-proxy/doorman/pkg/apis/resources"
	"github.com/doorman-proxy/doorman/pkg/clock"
)

// CheckUserSession applies the org's maximum session length to an
// SSO-origin session. Sessions created by pincode, password, whitelist
// or access token are not subject to the policy. A zero MaxSessionLength
// disables it entirely.
func CheckUserSession(session *resources.ResourceSession, userSession *resources.UserSession, org *resources.Org) bool {
	if session == nil || session.UserSessionID == "" {
		return true
	}
	if org == nil || org.MaxSessionLength <= 0 {
		return true
	}
	if userSession == nil {
		return false
	}
	return clock.Since(userSession.CreatedAt) <= org.MaxSessionLength
}
