package mongo

import (
	"context"
	"time"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const planRequestCollectionName = "plan_requests"

type mongoPlanRequestRepository struct {
	collection *mongo.Collection
}

func NewMongoPlanRequestRepository(db *mongo.Database) repository.PlanRequestRepository {
	return &mongoPlanRequestRepository{
		collection: db.Collection(planRequestCollectionName),
	}
}

// Create inserts a pending request. The partial unique index on pending
// requests makes a second concurrent request fail with ErrDuplicate.
func (r *mongoPlanRequestRepository) Create(ctx context.Context, req *domain.PlanRequest) (primitive.ObjectID, error) {
	req.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = domain.RequestPending
	}

	result, err := r.collection.InsertOne(ctx, req)
	if err != nil {
		return primitive.NilObjectID, mapWriteError(err)
	}
	return insertedObjectID(result)
}

func (r *mongoPlanRequestRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanRequest, error) {
	return decodeOne[domain.PlanRequest](ctx, r.collection, bson.M{"_id": id})
}

func (r *mongoPlanRequestRepository) GetPendingByUser(ctx context.Context, userID primitive.ObjectID) (*domain.PlanRequest, error) {
	return decodeOne[domain.PlanRequest](ctx, r.collection, bson.M{"userId": userID, "status": domain.RequestPending})
}

// ListByTrainer returns the trainer's requests, oldest first so the queue reads in arrival order.
// An empty status returns every request.
func (r *mongoPlanRequestRepository) ListByTrainer(ctx context.Context, trainerID primitive.ObjectID, status domain.PlanRequestStatus) ([]domain.PlanRequest, error) {
	filter := bson.M{"trainerId": trainerID}
	if status != "" {
		filter["status"] = status
	}
	return findAll[domain.PlanRequest](ctx, r.collection, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (r *mongoPlanRequestRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanRequest, error) {
	return findAll[domain.PlanRequest](ctx, r.collection, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *mongoPlanRequestRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.PlanRequestStatus, reason string) error {
	set := bson.M{"status": to, "updatedAt": time.Now().UTC()}
	if reason != "" {
		set["rejectReason"] = reason
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Distinguish a missing request from one that moved on.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return repository.ErrStateConflict
	}
	return nil
}

// CountByStatus counts requests in status, optionally for a single trainer.
func (r *mongoPlanRequestRepository) CountByStatus(ctx context.Context, trainerID *primitive.ObjectID, status domain.PlanRequestStatus) (int64, error) {
	filter := bson.M{"status": status}
	if trainerID != nil {
		filter["trainerId"] = *trainerID
	}
	return r.collection.CountDocuments(ctx, filter)
}

func EnsurePlanRequestIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// One pending request per user.
			Keys: bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.RequestPending}).
				SetName("userId_pending_unique"),
		},
		{
			Keys: bson.D{{Key: "trainerId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
