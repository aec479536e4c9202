package domain

// DecisionKind enumerates the four outcomes of an entitlement check.
type DecisionKind string

const (
	DecisionAvailable            DecisionKind = "available"
	DecisionSignupRequired       DecisionKind = "signup_required"
	DecisionVerificationRequired DecisionKind = "verification_required"
	DecisionUpgradeRequired      DecisionKind = "upgrade_required"
)

// Decision is the answer to "may this caller invoke a metered feature now".
// A denial is an ordinary value, never an exception: user-visible behaviour
// is driven entirely by the variant, not by error text.
type Decision struct {
	Kind DecisionKind `json:"kind"`

	// Remaining invocations in the current window. Only meaningful when
	// Kind == DecisionAvailable.
	Remaining int `json:"remaining"`

	// SuggestedTier is the tier an over-quota caller should be offered.
	// Only set when Kind == DecisionUpgradeRequired.
	SuggestedTier Tier `json:"suggested_tier,omitempty"`
}

// Allowed reports whether the gated action may proceed.
func (d Decision) Allowed() bool {
	return d.Kind == DecisionAvailable
}

func Available(remaining int) Decision {
	return Decision{Kind: DecisionAvailable, Remaining: remaining}
}

func SignupRequired() Decision {
	return Decision{Kind: DecisionSignupRequired}
}

func VerificationRequired() Decision {
	return Decision{Kind: DecisionVerificationRequired}
}

func UpgradeRequired(suggested Tier) Decision {
	return Decision{Kind: DecisionUpgradeRequired, SuggestedTier: suggested}
}
