package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userCollectionName = "users"

// mongoUserRepository implements the repository.UserRepository interface using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
// It expects a connected *mongo.Database instance.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// Create inserts a new user into the database.
func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}

	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		// unique index on email
		return primitive.NilObjectID, mapWriteError(err)
	}
	return insertedObjectID(result)
}

// GetByEmail retrieves a user by their email address.
func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return decodeOne[domain.User](ctx, r.collection, bson.M{"email": email})
}

// GetByID retrieves a user by their MongoDB ObjectID.
func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return decodeOne[domain.User](ctx, r.collection, bson.M{"_id": id})
}

func (r *mongoUserRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	return findAll[domain.User](ctx, r.collection, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

// List returns users matching filter, newest first.
func (r *mongoUserRepository) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.Query != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Query), Options: "i"}
		query["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	if filter.Skip > 0 {
		opts.SetSkip(filter.Skip)
	}
	return findAll[domain.User](ctx, r.collection, query, opts)
}

func (r *mongoUserRepository) Count(ctx context.Context, role domain.Role) (int64, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	return r.collection.CountDocuments(ctx, filter)
}

// CountActiveMembers counts members whose membership has not expired at the given time.
func (r *mongoUserRepository) CountActiveMembers(ctx context.Context, at time.Time) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{
		"role":                 domain.RoleUser,
		"membership.expiresAt": bson.M{"$gt": at},
	})
}

func (r *mongoUserRepository) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updatedAt"] = time.Now().UTC()
	return requireMatch(r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields}))
}

func (r *mongoUserRepository) SetOTP(ctx context.Context, id primitive.ObjectID, otp *domain.OTP) error {
	if otp == nil {
		update := bson.M{
			"$unset": bson.M{"otp": ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		}
		return requireMatch(r.collection.UpdateOne(ctx, bson.M{"_id": id}, update))
	}
	return r.set(ctx, id, bson.M{"otp": otp})
}

// ClaimOTPAttempt increments the attempt counter only while it is below max,
// so concurrent guesses cannot use more attempts than allowed.
func (r *mongoUserRepository) ClaimOTPAttempt(ctx context.Context, id primitive.ObjectID, max int) (int, error) {
	filter := bson.M{"_id": id, "otp.attempts": bson.M{"$lt": max}}
	update := bson.M{"$inc": bson.M{"otp.attempts": 1}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"otp.attempts": 1})

	var claimed struct {
		OTP struct {
			Attempts int `bson:"attempts"`
		} `bson:"otp"`
	}
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&claimed)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return 0, getErr
		}
		return 0, repository.ErrStateConflict
	}
	if err != nil {
		return 0, err
	}
	return claimed.OTP.Attempts, nil
}

func (r *mongoUserRepository) MarkEmailVerified(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{
		"$set":   bson.M{"emailVerified": true, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"otp": ""},
	}
	return requireMatch(r.collection.UpdateOne(ctx, bson.M{"_id": id}, update))
}

func (r *mongoUserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	return r.set(ctx, id, bson.M{"passwordHash": passwordHash})
}

func (r *mongoUserRepository) UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.set(ctx, id, bson.M{"lastLogin": at})
}

func (r *mongoUserRepository) CompleteOnboarding(ctx context.Context, id primitive.ObjectID, profile domain.Profile) error {
	return r.set(ctx, id, bson.M{"profile": profile, "onboardingCompleted": true})
}

// SetTrainer sets or clears (nil trainerID) the member's current trainer.
func (r *mongoUserRepository) SetTrainer(ctx context.Context, userID primitive.ObjectID, trainerID *primitive.ObjectID) error {
	if trainerID == nil {
		update := bson.M{
			"$unset": bson.M{"trainerId": ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		}
		return requireMatch(r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update))
	}
	return r.set(ctx, userID, bson.M{"trainerId": *trainerID})
}

// ExtendMembership computes the new expiry inside the update pipeline, so two
// payments completing together both count. The payment id filter makes a
// retried extension a no-op.
func (r *mongoUserRepository) ExtendMembership(ctx context.Context, id primitive.ObjectID, ext repository.MembershipExtension) (*domain.User, error) {
	start := bson.M{"$max": bson.A{"$membership.expiresAt", ext.At}}
	days := int64(ext.Days) * int64(24*time.Hour/time.Millisecond)
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"membership.expiresAt": bson.M{"$add": bson.A{start, days}},
			"membership.planId":    ext.PlanID,
			"membership.planName":  bson.M{"$literal": ext.PlanName},
			"membership.paymentIds": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$membership.paymentIds", bson.A{}}},
				bson.A{ext.PaymentID},
			}},
			"updatedAt": time.Now().UTC(),
		}}},
	}
	filter := bson.M{"_id": id, "membership.paymentIds": bson.M{"$ne": ext.PaymentID}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user domain.User
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, repository.ErrStateConflict
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *mongoUserRepository) SetRole(ctx context.Context, id primitive.ObjectID, role domain.Role) error {
	return r.set(ctx, id, bson.M{"role": role})
}

func (r *mongoUserRepository) SetDisabled(ctx context.Context, id primitive.ObjectID, disabled bool) error {
	return r.set(ctx, id, bson.M{"disabled": disabled})
}

// EnsureUserIndexes creates necessary indexes for the users collection.
// Call this once during application startup.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}},
			Options: options.Index().SetSparse(true), // Sparse because not all users have trainerId
		},
		{
			Keys:    bson.D{{Key: "membership.expiresAt", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
