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

const noticeCollectionName = "notices"

type mongoNoticeRepository struct {
	collection *mongo.Collection
}

func NewMongoNoticeRepository(db *mongo.Database) repository.NoticeRepository {
	return &mongoNoticeRepository{
		collection: db.Collection(noticeCollectionName),
	}
}

func (r *mongoNoticeRepository) Create(ctx context.Context, n *domain.Notice) (primitive.ObjectID, error) {
	n.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, n)
	if err != nil {
		return primitive.NilObjectID, mapWriteError(err)
	}
	return insertedObjectID(result)
}

func (r *mongoNoticeRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Notice, error) {
	return decodeOne[domain.Notice](ctx, r.collection, bson.M{"_id": id})
}

// Update replaces the editable fields of a notice.
func (r *mongoNoticeRepository) Update(ctx context.Context, n *domain.Notice) error {
	n.UpdatedAt = time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"title":        n.Title,
		"body":         n.Body,
		"audience":     n.Audience,
		"pinned":       n.Pinned,
		"visibleFrom":  n.VisibleFrom,
		"visibleUntil": n.VisibleUntil,
		"updatedAt":    n.UpdatedAt,
	}}
	return requireMatch(r.collection.UpdateOne(ctx, bson.M{"_id": n.ID}, update))
}

func (r *mongoNoticeRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return repository.ErrDeleteFailed
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoNoticeRepository) List(ctx context.Context) ([]domain.Notice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "pinned", Value: -1}, {Key: "createdAt", Value: -1}})
	return findAll[domain.Notice](ctx, r.collection, bson.M{}, opts)
}

func EnsureNoticeIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "pinned", Value: -1}, {Key: "createdAt", Value: -1}},
	})
	return err
}
