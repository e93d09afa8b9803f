// Package header renders a resource's extra-header template with the
// authenticated user's identity.
package header

import (
	"strings"

	simplejson "github.com/bitly/go-simplejson"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
	"github.com/doorman-proxy/doorman/pkg/logger"
)

// Interpolate renders the raw JSON header template for the given user.
// Two template shapes are accepted: an array of {"name", "value"}
// objects, or a flat object of name to value. The placeholders
// {{username}}, {{email}}, {{name}} and {{role}} expand to the user's
// fields, empty when the user is nil.
//
// CR and LF are stripped from every rendered value so a crafted identity
// field can never split an HTTP header. A malformed template returns
// (nil, false) and the caller forwards no extra headers.
func Interpolate(rawTemplate string, user *resources.BasicUserData) (map[string]string, bool) {
	rawTemplate = strings.TrimSpace(rawTemplate)
	if rawTemplate == "" {
		return nil, true
	}

	parsed, err := simplejson.NewJson([]byte(rawTemplate))
	if err != nil {
		logger.Errorf("error parsing header template: %v", err)
		return nil, false
	}

	expand := expander(user)
	headers := map[string]string{}

	if items, err := parsed.Array(); err == nil {
		for i := range items {
			item := parsed.GetIndex(i)
			name, nameErr := item.Get("name").String()
			value, valueErr := item.Get("value").String()
			if nameErr != nil || valueErr != nil || name == "" {
				logger.Errorf("error parsing header template: entry %d lacks name/value", i)
				return nil, false
			}
			headers[name] = expand(value)
		}
		return headers, true
	}

	obj, err := parsed.Map()
	if err != nil {
		logger.Errorf("error parsing header template: neither array nor object")
		return nil, false
	}
	for name := range obj {
		value, err := parsed.Get(name).String()
		if err != nil || name == "" {
			logger.Errorf("error parsing header template: value of %q is not a string", name)
			return nil, false
		}
		headers[name] = expand(value)
	}
	return headers, true
}

func expander(user *resources.BasicUserData) func(string) string {
	var username, email, name, role string
	if user != nil {
		username = sanitize(user.Username)
		email = sanitize(user.Email)
		name = sanitize(user.Name)
		role = sanitize(user.Role)
	}
	r := strings.NewReplacer(
		"{{username}}", username,
		"{{email}}", email,
		"{{name}}", name,
		"{{role}}", role,
	)
	return func(value string) string {
		return sanitize(r.Replace(value))
	}
}

// sanitize drops CR and LF so substituted values cannot terminate a
// header line.
func sanitize(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
