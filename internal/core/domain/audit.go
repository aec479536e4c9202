package domain

import "time"

// TierOverride records an explicit administrative tier change. Every
// override carries an operator and lands in the audit trail.
type TierOverride struct {
	PrincipalID string
	FromTier    Tier
	ToTier      Tier
	Operator    string
	Note        string
	Timestamp   time.Time
}
