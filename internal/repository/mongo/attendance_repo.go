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

const attendanceCollectionName = "attendance"

type mongoAttendanceRepository struct {
	collection *mongo.Collection
}

func NewMongoAttendanceRepository(db *mongo.Database) repository.AttendanceRepository {
	return &mongoAttendanceRepository{
		collection: db.Collection(attendanceCollectionName),
	}
}

func (r *mongoAttendanceRepository) Create(ctx context.Context, a *domain.Attendance) (primitive.ObjectID, error) {
	a.ID = primitive.NewObjectID()
	result, err := r.collection.InsertOne(ctx, a)
	if err != nil {
		return primitive.NilObjectID, mapWriteError(err)
	}
	return insertedObjectID(result)
}

func (r *mongoAttendanceRepository) GetByUserAndDay(ctx context.Context, userID primitive.ObjectID, day string) (*domain.Attendance, error) {
	return decodeOne[domain.Attendance](ctx, r.collection, bson.M{"userId": userID, "day": day})
}

func (r *mongoAttendanceRepository) CheckOut(ctx context.Context, id primitive.ObjectID, at time.Time, tokenID string) error {
	filter := bson.M{"_id": id, "checkOutAt": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"checkOutAt": at, "checkOutTokenId": tokenID}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, getErr := decodeOne[domain.Attendance](ctx, r.collection, bson.M{"_id": id}); getErr != nil {
			return getErr
		}
		return repository.ErrStateConflict
	}
	return nil
}

// ListByUser returns records between fromDay and toDay inclusive (YYYY-MM-DD
// strings sort chronologically). Empty bounds are open.
func (r *mongoAttendanceRepository) ListByUser(ctx context.Context, userID primitive.ObjectID, fromDay, toDay string) ([]domain.Attendance, error) {
	filter := bson.M{"userId": userID}
	dayRange := bson.M{}
	if fromDay != "" {
		dayRange["$gte"] = fromDay
	}
	if toDay != "" {
		dayRange["$lte"] = toDay
	}
	if len(dayRange) > 0 {
		filter["day"] = dayRange
	}
	return findAll[domain.Attendance](ctx, r.collection, filter,
		options.Find().SetSort(bson.D{{Key: "day", Value: -1}}))
}

func (r *mongoAttendanceRepository) ListByDay(ctx context.Context, day string) ([]domain.Attendance, error) {
	return findAll[domain.Attendance](ctx, r.collection, bson.M{"day": day},
		options.Find().SetSort(bson.D{{Key: "checkInAt", Value: 1}}))
}

func (r *mongoAttendanceRepository) CountByDay(ctx context.Context, day string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"day": day})
}

func EnsureAttendanceIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "day", Value: -1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "day", Value: 1}, {Key: "checkInAt", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
