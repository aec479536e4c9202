package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/presetstudio/entitlements/internal/core/domain"
)

const auditCollection = "admin_audit"

// MongoAuditRepository appends administrative actions to an audit collection.
type MongoAuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *MongoAuditRepository {
	return &MongoAuditRepository{coll: db.Collection(auditCollection)}
}

type mongoTierOverride struct {
	PrincipalID string `bson:"principal_id"`
	FromTier    string `bson:"from_tier"`
	ToTier      string `bson:"to_tier"`
	Operator    string `bson:"operator"`
	Note        string `bson:"note,omitempty"`
	Timestamp   int64  `bson:"timestamp"`
}

func (r *MongoAuditRepository) InsertTierOverride(ctx context.Context, entry *domain.TierOverride) error {
	doc := mongoTierOverride{
		PrincipalID: entry.PrincipalID,
		FromTier:    string(entry.FromTier),
		ToTier:      string(entry.ToTier),
		Operator:    entry.Operator,
		Note:        entry.Note,
		Timestamp:   entry.Timestamp.Unix(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
