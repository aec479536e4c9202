package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/presetstudio/entitlements/internal/core/domain"
)

const principalCollection = "principals"

type MongoPrincipalRepository struct {
	coll *mongo.Collection
}

func NewPrincipalRepository(db *mongo.Database) *MongoPrincipalRepository {
	return &MongoPrincipalRepository{coll: db.Collection(principalCollection)}
}

// principalIndexModels lists the indexes Create and the lookup methods rely
// on. Email is globally unique; verification tokens and subscription IDs are
// unique only while present, so those two are partial to keep documents
// without the field from colliding.
func principalIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "verification_token", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"verification_token": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "subscription.id", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"subscription.id": bson.M{"$exists": true}}),
		},
	}
}

// EnsureIndexes creates the indexes on the principals collection. Without the
// unique email index, Create's duplicate-key rejection never fires.
func (r *MongoPrincipalRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := r.coll.Indexes().CreateMany(ctx, principalIndexModels()); err != nil {
		return fmt.Errorf("ensure principal indexes: %w", err)
	}
	return nil
}

type mongoSubscription struct {
	ID                 string `bson:"id"`
	Plan               string `bson:"plan"`
	Status             string `bson:"status"`
	BillingCycle       string `bson:"billing_cycle"`
	CurrentPeriodStart int64  `bson:"current_period_start"`
	CurrentPeriodEnd   int64  `bson:"current_period_end"`
	CancelledAt        int64  `bson:"cancelled_at,omitempty"`
}

type mongoPrincipal struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	Email             string             `bson:"email"`
	EmailVerified     bool               `bson:"email_verified"`
	PasswordHash      string             `bson:"password_hash"`
	Tier              string             `bson:"tier"`
	MonthlyUsage      int                `bson:"monthly_usage"`
	BillingCycleEnd   int64              `bson:"billing_cycle_end,omitempty"`
	LastUsageReset    int64              `bson:"last_usage_reset,omitempty"`
	LastFeatureUsed   string             `bson:"last_feature_used,omitempty"`
	LastFeatureUsedAt int64              `bson:"last_feature_used_at,omitempty"`
	VerificationToken string             `bson:"verification_token,omitempty"`
	Subscription      *mongoSubscription `bson:"subscription,omitempty"`
	CreatedAt         int64              `bson:"created_at"`
	UpdatedAt         int64              `bson:"updated_at"`
}

func (r *MongoPrincipalRepository) Create(ctx context.Context, p *domain.Principal) (*domain.Principal, error) {
	doc := toMongoPrincipal(p)

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrPrincipalExists
		}
		return nil, fmt.Errorf("insert principal: %w", err)
	}

	oid, _ := res.InsertedID.(primitive.ObjectID)
	created := *p
	created.ID = oid.Hex()
	return &created, nil
}

func (r *MongoPrincipalRepository) FindByID(ctx context.Context, id string) (*domain.Principal, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrPrincipalNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoPrincipalRepository) FindByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoPrincipalRepository) FindByVerificationToken(ctx context.Context, token string) (*domain.Principal, error) {
	return r.findOne(ctx, bson.M{"verification_token": token})
}

func (r *MongoPrincipalRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Principal, error) {
	return r.findOne(ctx, bson.M{"subscription.id": subscriptionID})
}

func (r *MongoPrincipalRepository) findOne(ctx context.Context, filter bson.M) (*domain.Principal, error) {
	var mp mongoPrincipal
	if err := r.coll.FindOne(ctx, filter).Decode(&mp); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("find principal: %w", err)
	}
	return fromMongoPrincipal(&mp), nil
}

func (r *MongoPrincipalRepository) Update(ctx context.Context, p *domain.Principal) error {
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return domain.ErrPrincipalNotFound
	}

	doc := toMongoPrincipal(p)
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return fmt.Errorf("update principal: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrPrincipalNotFound
	}
	return nil
}

// AdvanceCycle moves the billing cycle boundary from prev to next, resetting
// the usage counter when requested. The filter pins the boundary the caller
// observed, so a rollover computed from a stale snapshot misses instead of
// overwriting increments that landed after the read. It reports whether the
// update applied.
func (r *MongoPrincipalRepository) AdvanceCycle(ctx context.Context, id string, prev *time.Time, next time.Time, resetUsage bool, now time.Time) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, domain.ErrPrincipalNotFound
	}

	filter := bson.M{"_id": oid}
	if prev != nil {
		filter["billing_cycle_end"] = prev.Unix()
	} else {
		filter["billing_cycle_end"] = bson.M{"$exists": false}
	}

	set := bson.M{
		"billing_cycle_end": next.Unix(),
		"updated_at":        now.Unix(),
	}
	if resetUsage {
		set["monthly_usage"] = 0
		set["last_usage_reset"] = now.Unix()
	}

	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("advance billing cycle: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// IncrementUsage performs the conditional compare-and-increment in a single
// findAndModify: the filter admits only a counter still below the limit, so
// concurrent consumers serialize on the document and the last unit is spent
// exactly once.
func (r *MongoPrincipalRepository) IncrementUsage(ctx context.Context, id string, limit int, feature string, now time.Time) (int, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, domain.ErrPrincipalNotFound
	}

	filter := bson.M{"_id": oid, "monthly_usage": bson.M{"$lt": limit}}
	update := bson.M{
		"$inc": bson.M{"monthly_usage": 1},
		"$set": bson.M{
			"last_feature_used":    feature,
			"last_feature_used_at": now.Unix(),
			"updated_at":           now.Unix(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var mp mongoPrincipal
	err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&mp)
	if err == nil {
		return mp.MonthlyUsage, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("increment usage: %w", err)
	}

	// The filter missed: either the principal is gone or the counter is at
	// the limit. One extra read tells them apart.
	if _, findErr := r.findOne(ctx, bson.M{"_id": oid}); findErr != nil {
		return 0, findErr
	}
	return 0, domain.ErrQuotaExhausted
}

func toMongoPrincipal(p *domain.Principal) *mongoPrincipal {
	mp := &mongoPrincipal{
		Email:             p.Email,
		EmailVerified:     p.EmailVerified,
		PasswordHash:      p.PasswordHash,
		Tier:              string(p.Tier),
		MonthlyUsage:      p.MonthlyUsage,
		BillingCycleEnd:   unixOrZero(p.BillingCycleEnd),
		LastUsageReset:    unixOrZero(p.LastUsageReset),
		LastFeatureUsed:   p.LastFeatureUsed,
		LastFeatureUsedAt: unixOrZero(p.LastFeatureUsedAt),
		VerificationToken: p.VerificationToken,
		CreatedAt:         p.CreatedAt.Unix(),
		UpdatedAt:         p.UpdatedAt.Unix(),
	}
	if p.Subscription != nil {
		mp.Subscription = &mongoSubscription{
			ID:                 p.Subscription.ID,
			Plan:               string(p.Subscription.Plan),
			Status:             string(p.Subscription.Status),
			BillingCycle:       string(p.Subscription.BillingCycle),
			CurrentPeriodStart: p.Subscription.CurrentPeriodStart.Unix(),
			CurrentPeriodEnd:   p.Subscription.CurrentPeriodEnd.Unix(),
			CancelledAt:        unixOrZero(p.Subscription.CancelledAt),
		}
	}
	return mp
}

func fromMongoPrincipal(mp *mongoPrincipal) *domain.Principal {
	p := &domain.Principal{
		ID:                mp.ID.Hex(),
		Email:             mp.Email,
		EmailVerified:     mp.EmailVerified,
		PasswordHash:      mp.PasswordHash,
		Tier:              domain.Tier(mp.Tier),
		MonthlyUsage:      mp.MonthlyUsage,
		BillingCycleEnd:   timeOrNil(mp.BillingCycleEnd),
		LastUsageReset:    timeOrNil(mp.LastUsageReset),
		LastFeatureUsed:   mp.LastFeatureUsed,
		LastFeatureUsedAt: timeOrNil(mp.LastFeatureUsedAt),
		VerificationToken: mp.VerificationToken,
		CreatedAt:         unixToTime(mp.CreatedAt),
		UpdatedAt:         unixToTime(mp.UpdatedAt),
	}
	if mp.Subscription != nil {
		p.Subscription = &domain.Subscription{
			ID:                 mp.Subscription.ID,
			Plan:               domain.Tier(mp.Subscription.Plan),
			Status:             domain.SubscriptionStatus(mp.Subscription.Status),
			BillingCycle:       domain.BillingCycle(mp.Subscription.BillingCycle),
			CurrentPeriodStart: unixToTime(mp.Subscription.CurrentPeriodStart),
			CurrentPeriodEnd:   unixToTime(mp.Subscription.CurrentPeriodEnd),
			CancelledAt:        timeOrNil(mp.Subscription.CancelledAt),
		}
	}
	return p
}

func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}

func timeOrNil(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
