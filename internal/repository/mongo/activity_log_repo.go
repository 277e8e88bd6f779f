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

const logCollectionName = "logs"

type mongoActivityLogRepository struct {
	collection *mongo.Collection
}

func NewMongoActivityLogRepository(db *mongo.Database) repository.ActivityLogRepository {
	return &mongoActivityLogRepository{
		collection: db.Collection(logCollectionName),
	}
}

func (r *mongoActivityLogRepository) Create(ctx context.Context, l *domain.ActivityLog) (primitive.ObjectID, error) {
	if l.UserID.IsZero() {
		return primitive.NilObjectID, errors.New("log requires userId")
	}
	l.ID = primitive.NewObjectID()
	l.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, l)
	if err != nil {
		return primitive.NilObjectID, mapWriteError(err)
	}
	return insertedObjectID(result)
}

func (r *mongoActivityLogRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ActivityLog, error) {
	return decodeOne[domain.ActivityLog](ctx, r.collection, bson.M{"_id": id})
}

// List returns logs matching filter, most recent day first. From and To are inclusive.
func (r *mongoActivityLogRepository) List(ctx context.Context, filter repository.LogFilter) ([]domain.ActivityLog, error) {
	query := bson.M{"userId": filter.UserID}
	if filter.Kind != "" {
		query["kind"] = filter.Kind
	}
	dateRange := bson.M{}
	if !filter.From.IsZero() {
		dateRange["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		dateRange["$lte"] = filter.To
	}
	if len(dateRange) > 0 {
		query["date"] = dateRange
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}})
	return findAll[domain.ActivityLog](ctx, r.collection, query, opts)
}

func (r *mongoActivityLogRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return repository.ErrDeleteFailed
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func EnsureActivityLogIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "kind", Value: 1}, {Key: "date", Value: -1}},
	})
	return err
}
