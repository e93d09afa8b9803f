// Package authorization implements the ordered network/path rule engine
// evaluated ahead of the authentication resolvers on every verify call.
package authorization

import (
	"context"
	"fmt"
	"net"
	"sort"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
	"github.com/doorman-proxy/doorman/pkg/authorization/conditions"
	"github.com/doorman-proxy/doorman/pkg/cache"
	"github.com/doorman-proxy/doorman/pkg/ip"
)

// EvalInput carries the request facts the engine evaluates rules against.
type EvalInput struct {
	ResourceID  string
	ClientIP    net.IP
	Path        string
	CountryCode string
}

// Engine evaluates a resource's ordered rule list and yields a Verdict.
type Engine struct {
	store  resources.Store
	cache  cache.Store
	ipSets map[string]*ip.NetSet
}

// NewEngine builds a rule engine over the given store and cache. ipSets
// holds the compiled named IP sets referenced by IP_SET rules; it may be
// nil.
func NewEngine(store resources.Store, cacheStore cache.Store, ipSets map[string]*ip.NetSet) *Engine {
	return &Engine{
		store:  store,
		cache:  cacheStore,
		ipSets: ipSets,
	}
}

// Evaluate fetches the resource's rules (cache-or-load) and walks them in
// ascending priority order. The first enabled rule whose predicate
// matches decides: its action is returned verbatim. When no rule matches
// the result is NoVerdict.
//
// Only store failures surface as errors. A malformed rule value degrades
// to non-matching and is indistinguishable from "no match".
func (e *Engine) Evaluate(ctx context.Context, in EvalInput) (Verdict, error) {
	rules, err := e.rulesForResource(ctx, in.ResourceID)
	if err != nil {
		return NoVerdict, err
	}
	if len(rules) == 0 {
		return NoVerdict, nil
	}

	// Stable sort: ties keep storage order, which callers must not rely on.
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})

	condInput := conditions.Input{
		ClientIP:    in.ClientIP,
		Path:        in.Path,
		CountryCode: in.CountryCode,
	}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if !e.condition(rule).Match(condInput) {
			continue
		}

		switch rule.Action {
		case resources.ActionAccept:
			return Accept, nil
		case resources.ActionDrop:
			return Drop, nil
		case resources.ActionPass:
			return Pass, nil
		default:
			// An unknown action cannot decide anything; keep walking.
			continue
		}
	}

	return NoVerdict, nil
}

// condition compiles a rule's match kind and value into a predicate.
func (e *Engine) condition(rule resources.ResourceRule) conditions.Condition {
	switch rule.Match {
	case resources.MatchCIDR, resources.MatchIP:
		return conditions.NewNetwork(rule.Value)
	case resources.MatchPath:
		return conditions.NewPath(rule.Value)
	case resources.MatchCountry:
		return conditions.NewCountry(rule.Value)
	case resources.MatchIPSet:
		return conditions.NewIPSet(e.ipSets[rule.Value])
	default:
		return conditions.NewIPSet(nil)
	}
}

// rulesForResource reads the rule set through the shared cache with a
// short TTL. Duplicate concurrent loads after a miss are tolerated.
func (e *Engine) rulesForResource(ctx context.Context, resourceID string) ([]resources.ResourceRule, error) {
	key := cache.RulesByResourceKey(resourceID)

	if packed, found, err := e.cache.Get(ctx, key); err == nil && found {
		var rules []resources.ResourceRule
		if ok, err := cache.Unmarshal(packed, &rules); err == nil && ok {
			return rules, nil
		}
	}

	rules, err := e.store.RulesForResource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("error loading rules for resource %q: %w", resourceID, err)
	}

	if packed, err := cache.Marshal(rules); err == nil {
		_ = e.cache.Set(ctx, key, packed, cache.RulesTTL)
	}

	return rules, nil
}
