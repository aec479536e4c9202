package ports

import (
	"context"

	"github.com/presetstudio/entitlements/internal/core/domain"
)

// AuditRepository persists administrative actions to an append-only trail.
type AuditRepository interface {
	InsertTierOverride(ctx context.Context, entry *domain.TierOverride) error
}
