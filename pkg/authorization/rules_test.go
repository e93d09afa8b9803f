package authorization

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorman-proxy/doorman/pkg/apis/resources"
	"github.com/doorman-proxy/doorman/pkg/cache"
	"github.com/doorman-proxy/doorman/pkg/ip"
)

type fakeRuleStore struct {
	resources.Store
	rules map[string][]resources.ResourceRule
	err   error
	calls int
}

func (s *fakeRuleStore) RulesForResource(_ context.Context, resourceID string) ([]resources.ResourceRule, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.rules[resourceID], nil
}

func newTestEngine(t *testing.T, rules []resources.ResourceRule) (*Engine, *fakeRuleStore) {
	t.Helper()
	store := &fakeRuleStore{rules: map[string][]resources.ResourceRule{"res-1": rules}}
	sets := map[string]*ip.NetSet{}

	office := ip.NewNetSet()
	office.AddIPNet(*ip.ParseIPNet("203.0.113.0/24"))
	sets["office"] = office

	return NewEngine(store, cache.NewMemoryStore(), sets), store
}

func TestEvaluateNoRules(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	verdict, err := engine.Evaluate(context.Background(), EvalInput{
		ResourceID: "res-1",
		ClientIP:   net.ParseIP("10.0.0.1"),
		Path:       "/",
	})
	require.NoError(t, err)
	assert.Equal(t, NoVerdict, verdict)
}

func TestEvaluatePriorityOrder(t *testing.T) {
	// Stored out of order on purpose. The priority 1 DROP must win over
	// the priority 5 ACCEPT even though ACCEPT is listed first.
	rules := []resources.ResourceRule{
		{ID: "r-accept", Priority: 5, Enabled: true, Action: resources.ActionAccept, Match: resources.MatchCIDR, Value: "10.0.0.0/8"},
		{ID: "r-drop", Priority: 1, Enabled: true, Action: resources.ActionDrop, Match: resources.MatchIP, Value: "10.0.0.7"},
	}
	engine, _ := newTestEngine(t, rules)

	verdict, err := engine.Evaluate(context.Background(), EvalInput{
		ResourceID: "res-1",
		ClientIP:   net.ParseIP("10.0.0.7"),
	})
	require.NoError(t, err)
	assert.Equal(t, Drop, verdict)

	// A client outside the IP rule falls through to the CIDR accept.
	verdict, err = engine.Evaluate(context.Background(), EvalInput{
		ResourceID: "res-1",
		ClientIP:   net.ParseIP("10.0.0.8"),
	})
	require.NoError(t, err)
	assert.Equal(t, Accept, verdict)
}

func TestEvaluateDisabledRuleSkipped(t *testing.T) {
	rules := []resources.ResourceRule{
		{ID: "r-1", Priority: 1, Enabled: false, Action: resources.ActionDrop, Match: resources.MatchCIDR, Value: "0.0.0.0/0"},
		{ID: "r-2", Priority: 2, Enabled: true, Action: resources.ActionAccept, Match: resources.MatchCIDR, Value: "0.0.0.0/0"},
	}
	engine, _ := newTestEngine(t, rules)

	verdict, err := engine.Evaluate(context.Background(), EvalInput{
		ResourceID: "res-1",
		ClientIP:   net.ParseIP("1.2.3.4"),
	})
	require.NoError(t, err)
	assert.Equal(t, Accept, verdict)
}

func TestEvaluatePathAndCountry(t *testing.T) {
	rules := []resources.ResourceRule{
		{ID: "r-path", Priority: 1, Enabled: true, Action: resources.ActionPass, Match: resources.MatchPath, Value: "/public/*"},
		{ID: "r-country", Priority: 2, Enabled: true, Action: resources.ActionDrop, Match: resources.MatchCountry, Value: "KP"},
	}
	engine, _ := newTestEngine(t, rules)

	verdict, err := engine.Evaluate(context.Background(), EvalInput{
		ResourceID: "res-1",
		Path:       "/public/assets/logo.png",
	})
	require.NoError(t, err)
	assert.Equal(t, Pass, verdict)

	verdict, err = engine.Evaluate(context.Background(), EvalInput{
		ResourceID:  "res-1",
		Path:        "/private",
		CountryCode: "KP",
	})
	require.NoError(t, err)
	assert.Equal(t, Drop, verdict)

	verdict, err = engine.Evaluate(context.Background(), EvalInput{
		ResourceID:  "res-1",
		Path:        "/private",
		CountryCode: "SE",
	})
	require.NoError(t, err)
	assert.Equal(t, NoVerdict, verdict)
}

func TestEvaluateIPSet(t *testing.T) {
	rules := []resources.ResourceRule{
		{ID: "r-set", Priority: 1, Enabled: true, Action: resources.ActionAccept, Match: resources.MatchIPSet, Value: "office"},
		{ID: "r-missing-set", Priority: 2, Enabled: true, Action: resources.ActionDrop, Match: resources.MatchIPSet, Value: "no-such-set"},
	}
	engine, _ := newTestEngine(t, rules)

	verdict, err := engine.Evaluate(context.Background(), EvalInput{
		ResourceID: "res-1",
		ClientIP:   net.ParseIP("203.0.113.44"),
	})
	require.NoError(t, err)
	assert.Equal(t, Accept, verdict)

	// Unknown set name degrades to non-matching, never to a decision.
	verdict, err = engine.Evaluate(context.Background(), EvalInput{
		ResourceID: "res-1",
		ClientIP:   net.ParseIP("9.9.9.9"),
	})
	require.NoError(t, err)
	assert.Equal(t, NoVerdict, verdict)
}

func TestEvaluateMalformedRuleDegrades(t *testing.T) {
	rules := []resources.ResourceRule{
		{ID: "r-bad-cidr", Priority: 1, Enabled: true, Action: resources.ActionDrop, Match: resources.MatchCIDR, Value: "garbage"},
		{ID: "r-bad-kind", Priority: 2, Enabled: true, Action: resources.ActionDrop, Match: resources.RuleMatch("REGEX"), Value: ".*"},
		{ID: "r-bad-action", Priority: 3, Enabled: true, Action: resources.RuleAction("REJECT"), Match: resources.MatchCIDR, Value: "0.0.0.0/0"},
		{ID: "r-ok", Priority: 4, Enabled: true, Action: resources.ActionAccept, Match: resources.MatchCIDR, Value: "0.0.0.0/0"},
	}
	engine, _ := newTestEngine(t, rules)

	verdict, err := engine.Evaluate(context.Background(), EvalInput{
		ResourceID: "res-1",
		ClientIP:   net.ParseIP("5.6.7.8"),
	})
	require.NoError(t, err)
	assert.Equal(t, Accept, verdict)
}

func TestEvaluateStoreErrorPropagates(t *testing.T) {
	store := &fakeRuleStore{err: errors.New("connection refused")}
	engine := NewEngine(store, cache.NewMemoryStore(), nil)

	_, err := engine.Evaluate(context.Background(), EvalInput{ResourceID: "res-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEvaluateUsesCache(t *testing.T) {
	rules := []resources.ResourceRule{
		{ID: "r-1", Priority: 1, Enabled: true, Action: resources.ActionAccept, Match: resources.MatchCIDR, Value: "0.0.0.0/0"},
	}
	engine, store := newTestEngine(t, rules)

	for i := 0; i < 3; i++ {
		verdict, err := engine.Evaluate(context.Background(), EvalInput{
			ResourceID: "res-1",
			ClientIP:   net.ParseIP("1.1.1.1"),
		})
		require.NoError(t, err)
		assert.Equal(t, Accept, verdict)
	}
	assert.Equal(t, 1, store.calls)
}
