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

const assignmentCollectionName = "trainee_assignments"

// mongoAssignmentRepository implements repository.AssignmentRepository
type mongoAssignmentRepository struct {
	collection *mongo.Collection
}

// NewMongoAssignmentRepository creates a new Assignment repository backed by MongoDB.
func NewMongoAssignmentRepository(db *mongo.Database) repository.AssignmentRepository {
	return &mongoAssignmentRepository{
		collection: db.Collection(assignmentCollectionName),
	}
}

// Create inserts a new assignment into the database.
func (r *mongoAssignmentRepository) Create(ctx context.Context, assignment *domain.TraineeAssignment) (primitive.ObjectID, error) {
	if assignment.TrainerID.IsZero() || assignment.UserID.IsZero() {
		return primitive.NilObjectID, errors.New("assignment requires trainerId and userId")
	}

	assignment.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	assignment.StartedAt = now
	assignment.UpdatedAt = now
	if assignment.Status == "" {
		assignment.Status = domain.AssignmentActive
	}

	result, err := r.collection.InsertOne(ctx, assignment)
	if err != nil {
		return primitive.NilObjectID, mapWriteError(err)
	}
	return insertedObjectID(result)
}

// GetByID retrieves an assignment by its ID.
func (r *mongoAssignmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TraineeAssignment, error) {
	return decodeOne[domain.TraineeAssignment](ctx, r.collection, bson.M{"_id": id})
}

func (r *mongoAssignmentRepository) GetActiveByUser(ctx context.Context, userID primitive.ObjectID) (*domain.TraineeAssignment, error) {
	return decodeOne[domain.TraineeAssignment](ctx, r.collection, bson.M{"userId": userID, "status": domain.AssignmentActive})
}

func (r *mongoAssignmentRepository) ListActiveByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.TraineeAssignment, error) {
	filter := bson.M{"trainerId": trainerID, "status": domain.AssignmentActive}
	return findAll[domain.TraineeAssignment](ctx, r.collection, filter,
		options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}}))
}

// End marks an active assignment ended. Ending an already ended assignment is ErrStateConflict.
func (r *mongoAssignmentRepository) End(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	filter := bson.M{"_id": id, "status": domain.AssignmentActive}
	update := bson.M{"$set": bson.M{
		"status":    domain.AssignmentEnded,
		"endedAt":   at,
		"updatedAt": time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
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

// Reopen undoes End, clearing endedAt.
func (r *mongoAssignmentRepository) Reopen(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id, "status": domain.AssignmentEnded}
	update := bson.M{
		"$set":   bson.M{"status": domain.AssignmentActive, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"endedAt": ""},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return mapWriteError(err)
	}
	if result.MatchedCount == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return repository.ErrStateConflict
	}
	return nil
}

func (r *mongoAssignmentRepository) CountActiveByTrainer(ctx context.Context, trainerID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"trainerId": trainerID, "status": domain.AssignmentActive})
}

// EnsureAssignmentIndexes creates indexes for the trainee_assignments collection.
func EnsureAssignmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// A member has at most one active trainer.
			Keys: bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.AssignmentActive}).
				SetName("userId_active_unique"),
		},
		{
			Keys: bson.D{{Key: "trainerId", Value: 1}, {Key: "status", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
