package authorization

// Verdict is the tri-state-plus-none outcome of rule evaluation. It is an
// explicit tagged value: "no rule matched" is a first-class state, never
// an overloaded zero string.
type Verdict int

const (
	// NoVerdict means no enabled rule matched; the caller proceeds to the
	// auth checks.
	NoVerdict Verdict = iota
	// Accept allows the request outright.
	Accept
	// Drop denies the request outright.
	Drop
	// Pass stops rule evaluation and proceeds to the auth checks. It is
	// distinct from NoVerdict in that a rule explicitly matched.
	Pass
)

// String implements fmt.Stringer for log output.
func (v Verdict) String() string {
	switch v {
	case Accept:
		return "ACCEPT"
	case Drop:
		return "DROP"
	case Pass:
		return "PASS"
	default:
		return "NO_VERDICT"
	}
}
