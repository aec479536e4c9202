package ports

import (
	"context"
	"time"

	"github.com/presetstudio/entitlements/internal/core/domain"
)

// PrincipalRepository defines the persistence interface for accounts.
type PrincipalRepository interface {
	Create(ctx context.Context, p *domain.Principal) (*domain.Principal, error)
	FindByID(ctx context.Context, id string) (*domain.Principal, error)
	FindByEmail(ctx context.Context, email string) (*domain.Principal, error)
	FindByVerificationToken(ctx context.Context, token string) (*domain.Principal, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Principal, error)
	Update(ctx context.Context, p *domain.Principal) error

	// IncrementUsage atomically increments monthly_usage by one, but only
	// while the current value is below limit, and stamps the last-feature
	// fields. It returns the post-increment usage. A counter already at the
	// limit yields domain.ErrQuotaExhausted; an unknown principal yields
	// domain.ErrPrincipalNotFound. This is the compare-and-increment that
	// keeps concurrent consumers from both spending the last unit.
	IncrementUsage(ctx context.Context, id string, limit int, feature string, now time.Time) (int, error)

	// AdvanceCycle moves the billing cycle boundary from prev (nil when no
	// boundary is set yet) to next, zeroing monthly_usage when resetUsage is
	// true. The write is conditional on the stored boundary still equalling
	// prev; it reports false when another writer advanced the cycle first,
	// in which case the caller should re-read rather than retry.
	AdvanceCycle(ctx context.Context, id string, prev *time.Time, next time.Time, resetUsage bool, now time.Time) (bool, error)
}
