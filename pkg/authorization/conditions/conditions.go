// Package conditions holds the match predicates evaluated by the rule
// engine. Each ResourceRule compiles to exactly one Condition; malformed
// rule values compile to a condition that never matches rather than an
// error, so a bad rule can never break the decision path.
package conditions

import (
	"net"
	"strings"

	"github.com/doorman-proxy/doorman/pkg/ip"
	"github.com/doorman-proxy/doorman/pkg/pathmatch"
)

// Input carries the request facts a condition may test.
type Input struct {
	// ClientIP is nil when the proxy did not report a usable address.
	ClientIP net.IP

	// Path is the request path, possibly empty.
	Path string

	// CountryCode is the uppercased ISO country code, empty when unknown.
	CountryCode string
}

// Condition is a single match predicate.
type Condition interface {
	Match(in Input) bool
}

type conditionFunc func(in Input) bool

func (f conditionFunc) Match(in Input) bool { return f(in) }

// neverMatch is what malformed rule values degrade to.
var neverMatch = conditionFunc(func(Input) bool { return false })

// NewNetwork builds a condition testing the client IP against a bare
// address or CIDR value. An absent client IP never matches.
func NewNetwork(value string) Condition {
	ipNet := ip.ParseIPNet(value)
	if ipNet == nil {
		return neverMatch
	}
	return conditionFunc(func(in Input) bool {
		if in.ClientIP == nil {
			return false
		}
		return ipNet.Contains(in.ClientIP)
	})
}

// NewIPSet builds a condition testing the client IP against a compiled
// named set. A nil set (unknown name) never matches.
func NewIPSet(set *ip.NetSet) Condition {
	if set == nil {
		return neverMatch
	}
	return conditionFunc(func(in Input) bool {
		if in.ClientIP == nil {
			return false
		}
		return set.Has(in.ClientIP)
	})
}

// NewPath builds a condition matching the request path against a segment
// glob pattern.
func NewPath(pattern string) Condition {
	return conditionFunc(func(in Input) bool {
		return pathmatch.Matches(pattern, in.Path)
	})
}

// NewCountry builds a condition comparing ISO country codes. The literal
// value "ALL" matches every request, including those with no resolved
// country.
func NewCountry(value string) Condition {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return neverMatch
	}
	if value == "ALL" {
		return conditionFunc(func(Input) bool { return true })
	}
	return conditionFunc(func(in Input) bool {
		return in.CountryCode != "" && strings.ToUpper(in.CountryCode) == value
	})
}
