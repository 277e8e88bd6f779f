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

const uploadCollectionName = "uploads"

// mongoUploadRepository implements repository.UploadRepository
type mongoUploadRepository struct {
	collection *mongo.Collection
}

// NewMongoUploadRepository creates a new Upload repository backed by MongoDB.
func NewMongoUploadRepository(db *mongo.Database) repository.UploadRepository {
	return &mongoUploadRepository{
		collection: db.Collection(uploadCollectionName),
	}
}

// Create inserts new upload metadata into the database.
func (r *mongoUploadRepository) Create(ctx context.Context, upload *domain.Upload) (primitive.ObjectID, error) {
	if upload.UserID.IsZero() || upload.S3ObjectKey == "" {
		return primitive.NilObjectID, errors.New("upload requires userId and s3ObjectKey")
	}

	upload.ID = primitive.NewObjectID()
	upload.UploadedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, upload)
	if err != nil {
		// s3ObjectKey is unique: confirming the same object twice is a duplicate
		return primitive.NilObjectID, mapWriteError(err)
	}
	return insertedObjectID(result)
}

// GetByID retrieves upload metadata by its ID.
func (r *mongoUploadRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Upload, error) {
	return decodeOne[domain.Upload](ctx, r.collection, bson.M{"_id": id})
}

// ListByUser returns the member's photos, newest first.
func (r *mongoUploadRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Upload, error) {
	return findAll[domain.Upload](ctx, r.collection, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}}))
}

func (r *mongoUploadRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return repository.ErrDeleteFailed
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureUploadIndexes creates indexes for the uploads collection.
func EnsureUploadIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "uploadedAt", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "s3ObjectKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
