package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"alcyxob/gym-app/internal/repository"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Ping the primary separately: Connect succeeds lazily even when the server is down.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// NewRepositories builds the MongoDB-backed repository set for db.
func NewRepositories(db *mongo.Database) repository.Set {
	return repository.Set{
		Users:           NewMongoUserRepository(db),
		PlanRequests:    NewMongoPlanRequestRepository(db),
		Assignments:     NewMongoAssignmentRepository(db),
		PlanVersions:    NewMongoPlanVersionRepository(db),
		Logs:            NewMongoActivityLogRepository(db),
		Notices:         NewMongoNoticeRepository(db),
		MembershipPlans: NewMongoMembershipPlanRepository(db),
		Payments:        NewMongoPaymentRepository(db),
		Attendance:      NewMongoAttendanceRepository(db),
		Uploads:         NewMongoUploadRepository(db),
	}
}

// EnsureIndexes creates the indexes of every collection. Failures are
// logged, not fatal: the service still works, only slower or with weaker
// uniqueness guarantees.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger zerolog.Logger) {
	steps := []struct {
		collection string
		ensure     func(context.Context, *mongo.Collection) error
	}{
		{userCollectionName, EnsureUserIndexes},
		{planRequestCollectionName, EnsurePlanRequestIndexes},
		{assignmentCollectionName, EnsureAssignmentIndexes},
		{planVersionCollectionName, EnsurePlanVersionIndexes},
		{logCollectionName, EnsureActivityLogIndexes},
		{noticeCollectionName, EnsureNoticeIndexes},
		{paymentCollectionName, EnsurePaymentIndexes},
		{membershipPlanCollectionName, EnsureMembershipPlanIndexes},
		{attendanceCollectionName, EnsureAttendanceIndexes},
		{uploadCollectionName, EnsureUploadIndexes},
	}
	for _, s := range steps {
		if err := s.ensure(ctx, db.Collection(s.collection)); err != nil {
			logger.Warn().Err(err).Str("collection", s.collection).Msg("failed to create indexes")
			continue
		}
		logger.Debug().Str("collection", s.collection).Msg("indexes ensured")
	}
}

// mapWriteError converts driver errors into repository errors.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

// decodeOne runs FindOne and maps ErrNoDocuments to repository.ErrNotFound.
func decodeOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOneOptions) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter, opts...).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// findAll runs Find and decodes every document. It never returns a nil slice.
func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// insertedObjectID extracts the ObjectID from an InsertOne result.
func insertedObjectID(result *mongo.InsertOneResult) (primitive.ObjectID, error) {
	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return id, nil
}

// requireMatch turns an update that matched nothing into repository.ErrNotFound.
func requireMatch(result *mongo.UpdateResult, err error) error {
	if err != nil {
		return mapWriteError(err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
