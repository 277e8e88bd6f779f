package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	paymentCollectionName        = "payments"
	membershipPlanCollectionName = "membership_plans"
)

type mongoPaymentRepository struct {
	collection *mongo.Collection
}

func NewMongoPaymentRepository(db *mongo.Database) repository.PaymentRepository {
	return &mongoPaymentRepository{
		collection: db.Collection(paymentCollectionName),
	}
}

func (r *mongoPaymentRepository) Create(ctx context.Context, p *domain.Payment) (primitive.ObjectID, error) {
	if p.UserID.IsZero() || p.PlanID.IsZero() || !p.Provider.Valid() {
		return primitive.NilObjectID, errors.New("payment requires userId, planId and a known provider")
	}
	p.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = domain.PaymentPending
	}

	result, err := r.collection.InsertOne(ctx, p)
	if err != nil {
		return primitive.NilObjectID, mapWriteError(err)
	}
	return insertedObjectID(result)
}

func (r *mongoPaymentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Payment, error) {
	return decodeOne[domain.Payment](ctx, r.collection, bson.M{"_id": id})
}

func (r *mongoPaymentRepository) GetByExternalRef(ctx context.Context, provider domain.PaymentProvider, ref string) (*domain.Payment, error) {
	return decodeOne[domain.Payment](ctx, r.collection, bson.M{"provider": provider, "externalRef": ref})
}

func (r *mongoPaymentRepository) SetGatewayRef(ctx context.Context, id primitive.ObjectID, ref, redirectURL string) error {
	update := bson.M{"$set": bson.M{
		"externalRef": ref,
		"redirectUrl": redirectURL,
		"updatedAt":   time.Now().UTC(),
	}}
	return requireMatch(r.collection.UpdateOne(ctx, bson.M{"_id": id}, update))
}

// Finish is a compare-and-set on status "pending" so that the webhook and a
// client-side verify cannot both extend the membership.
func (r *mongoPaymentRepository) Finish(ctx context.Context, id primitive.ObjectID, status domain.PaymentStatus, reason string, at time.Time) error {
	set := bson.M{"status": status, "updatedAt": at}
	if status == domain.PaymentCompleted {
		set["completedAt"] = at
	}
	if reason != "" {
		set["failReason"] = reason
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": domain.PaymentPending}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return repository.ErrStateConflict
	}
	return nil
}

func (r *mongoPaymentRepository) MarkMembershipApplied(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	filter := bson.M{
		"_id":                 id,
		"status":              domain.PaymentCompleted,
		"membershipAppliedAt": bson.M{"$exists": false},
	}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"membershipAppliedAt": at, "updatedAt": at}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return repository.ErrStateConflict
	}
	return nil
}

func (r *mongoPaymentRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Payment, error) {
	return findAll[domain.Payment](ctx, r.collection, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *mongoPaymentRepository) List(ctx context.Context, status domain.PaymentStatus) ([]domain.Payment, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return findAll[domain.Payment](ctx, r.collection, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *mongoPaymentRepository) RevenueByCurrency(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": domain.PaymentCompleted}}},
		{{Key: "$group", Value: bson.M{"_id": "$currency", "total": bson.M{"$sum": "$amount"}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Currency string `bson:"_id"`
		Total    int64  `bson:"total"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Currency] = row.Total
	}
	return out, nil
}

func EnsurePaymentIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "provider", Value: 1}, {Key: "externalRef", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"externalRef": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

type mongoMembershipPlanRepository struct {
	collection *mongo.Collection
}

func NewMongoMembershipPlanRepository(db *mongo.Database) repository.MembershipPlanRepository {
	return &mongoMembershipPlanRepository{
		collection: db.Collection(membershipPlanCollectionName),
	}
}

func (r *mongoMembershipPlanRepository) Create(ctx context.Context, p *domain.MembershipPlan) (primitive.ObjectID, error) {
	p.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, p)
	if err != nil {
		return primitive.NilObjectID, mapWriteError(err)
	}
	return insertedObjectID(result)
}

func (r *mongoMembershipPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MembershipPlan, error) {
	return decodeOne[domain.MembershipPlan](ctx, r.collection, bson.M{"_id": id})
}

// List returns plans ordered by price.
func (r *mongoMembershipPlanRepository) List(ctx context.Context, activeOnly bool) ([]domain.MembershipPlan, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	return findAll[domain.MembershipPlan](ctx, r.collection, filter,
		options.Find().SetSort(bson.D{{Key: "price", Value: 1}}))
}

func (r *mongoMembershipPlanRepository) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	update := bson.M{"$set": bson.M{"active": active, "updatedAt": time.Now().UTC()}}
	return requireMatch(r.collection.UpdateOne(ctx, bson.M{"_id": id}, update))
}

// EnsureMembershipPlanIndexes makes plan names unique, ignoring case.
func EnsureMembershipPlanIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "name", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
		{
			Keys: bson.D{{Key: "active", Value: 1}, {Key: "price", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
