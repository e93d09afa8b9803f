// Package sessions resolves resource sessions from request cookies and
// applies org session policies.
package sessions

import (
	"strconv"
	"strings"
)

// SelectCookie picks the resource-session token from the request's
// cookie map. The plain base name and, on TLS requests, its "_s" variant
// are both candidates. Cookies split by the dashboard carry a trailing
// ".<timestamp>" on the name; the numerically greatest timestamp wins.
// Between equal timestamps the pick is unspecified.
func SelectCookie(cookies map[string]string, baseName string, tls bool) (string, bool) {
	names := []string{baseName}
	if tls {
		names = append(names, baseName+"_s")
	}

	var (
		bestValue string
		bestStamp int64 = -1
		found     bool
	)
	for name, value := range cookies {
		for _, candidate := range names {
			if name == candidate {
				if bestStamp <= 0 {
					bestValue = value
					bestStamp = 0
					found = true
				}
				continue
			}
			suffix, ok := strings.CutPrefix(name, candidate+".")
			if !ok {
				continue
			}
			stamp, err := strconv.ParseInt(suffix, 10, 64)
			if err != nil || stamp < 0 {
				continue
			}
			if stamp >= bestStamp {
				bestValue = value
				bestStamp = stamp
				found = true
			}
		}
	}
	return bestValue, found
}
