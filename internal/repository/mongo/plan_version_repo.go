package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	planVersionCollectionName = "plan_versions"

	// maxVersionAttempts bounds the retries when two writers race for the same version number.
	maxVersionAttempts = 5

	// codeIllegalOperation is returned by standalone servers for transactional commands.
	codeIllegalOperation = 20
)

type mongoPlanVersionRepository struct {
	collection *mongo.Collection
}

func NewMongoPlanVersionRepository(db *mongo.Database) repository.PlanVersionRepository {
	return &mongoPlanVersionRepository{
		collection: db.Collection(planVersionCollectionName),
	}
}

// Create allocates max(version)+1 for the user and kind and inserts v.
// The unique {userId, kind, version} index turns a lost race into a duplicate
// key error, in which case the number is recomputed.
func (r *mongoPlanVersionRepository) Create(ctx context.Context, v *domain.PlanVersion) (primitive.ObjectID, error) {
	if v.UserID.IsZero() || !v.Kind.Valid() {
		return primitive.NilObjectID, errors.New("plan version requires userId and a valid kind")
	}

	for attempt := 0; attempt < maxVersionAttempts; attempt++ {
		next, err := r.nextVersion(ctx, v.UserID, v.Kind)
		if err != nil {
			return primitive.NilObjectID, err
		}

		v.ID = primitive.NewObjectID()
		v.Version = next
		now := time.Now().UTC()
		v.CreatedAt = now
		v.UpdatedAt = now

		result, err := r.collection.InsertOne(ctx, v)
		if err == nil {
			return insertedObjectID(result)
		}
		if !mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, err
		}
	}
	return primitive.NilObjectID, fmt.Errorf("allocating plan version: %w", repository.ErrDuplicate)
}

func (r *mongoPlanVersionRepository) nextVersion(ctx context.Context, userID primitive.ObjectID, kind domain.PlanKind) (int, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "version", Value: -1}}).
		SetProjection(bson.M{"version": 1})
	latest, err := decodeOne[domain.PlanVersion](ctx, r.collection, bson.M{"userId": userID, "kind": kind}, opts)
	if errors.Is(err, repository.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return latest.Version + 1, nil
}

func (r *mongoPlanVersionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanVersion, error) {
	return decodeOne[domain.PlanVersion](ctx, r.collection, bson.M{"_id": id})
}

func (r *mongoPlanVersionRepository) GetActive(ctx context.Context, userID primitive.ObjectID, kind domain.PlanKind) (*domain.PlanVersion, error) {
	filter := bson.M{"userId": userID, "kind": kind, "status": domain.PlanActive}
	return decodeOne[domain.PlanVersion](ctx, r.collection, filter)
}

// List returns every version for the user, newest version first. An empty kind lists both kinds.
func (r *mongoPlanVersionRepository) List(ctx context.Context, userID primitive.ObjectID, kind domain.PlanKind) ([]domain.PlanVersion, error) {
	filter := bson.M{"userId": userID}
	if kind != "" {
		filter["kind"] = kind
	}
	opts := options.Find().SetSort(bson.D{{Key: "kind", Value: 1}, {Key: "version", Value: -1}})
	return findAll[domain.PlanVersion](ctx, r.collection, filter, opts)
}

// UpdateContent replaces the body of a draft.
func (r *mongoPlanVersionRepository) UpdateContent(ctx context.Context, id primitive.ObjectID, content domain.PlanContent) error {
	filter := bson.M{"_id": id, "status": domain.PlanDraft}
	update := bson.M{"$set": bson.M{"content": content, "updatedAt": time.Now().UTC()}}
	return r.conditional(ctx, id, filter, update)
}

func (r *mongoPlanVersionRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.PlanStatus) error {
	filter := bson.M{"_id": id, "status": from}
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now().UTC()}}
	return r.conditional(ctx, id, filter, update)
}

func (r *mongoPlanVersionRepository) conditional(ctx context.Context, id primitive.ObjectID, filter, update bson.M) error {
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

// Activate flips the active version of (userId, kind) inside a transaction.
// Standalone servers reject transactions; there the same steps run in order
// and the previous version is restored if the second step fails. The partial
// unique index on active versions holds the one-active rule either way.
func (r *mongoPlanVersionRepository) Activate(ctx context.Context, id primitive.ObjectID, at time.Time) (*domain.PlanVersion, error) {
	target, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.Status != domain.PlanDraft && target.Status != domain.PlanSubmitted {
		return nil, repository.ErrStateConflict
	}

	session, err := r.collection.Database().Client().StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		_, err := r.activateSteps(sessCtx, target, at)
		return nil, err
	})
	if isTransactionUnsupported(err) {
		return r.activateWithCompensation(ctx, target, at)
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// activateSteps deactivates the current active version and activates target.
// It returns the id of the version it deactivated, if any.
func (r *mongoPlanVersionRepository) activateSteps(ctx context.Context, target *domain.PlanVersion, at time.Time) (*primitive.ObjectID, error) {
	var previousID *primitive.ObjectID
	current, err := r.GetActive(ctx, target.UserID, target.Kind)
	switch {
	case err == nil:
		previousID = &current.ID
		_, err = r.collection.UpdateOne(ctx,
			bson.M{"_id": current.ID, "status": domain.PlanActive},
			bson.M{"$set": bson.M{"status": domain.PlanInactive, "updatedAt": at}})
		if err != nil {
			return nil, err
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": target.ID, "status": bson.M{"$in": bson.A{domain.PlanDraft, domain.PlanSubmitted}}},
		bson.M{"$set": bson.M{"status": domain.PlanActive, "activatedAt": at, "updatedAt": at}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Someone else activated another version in between.
			return previousID, repository.ErrStateConflict
		}
		return previousID, err
	}
	if result.MatchedCount == 0 {
		return previousID, repository.ErrStateConflict
	}
	return previousID, nil
}

func (r *mongoPlanVersionRepository) activateWithCompensation(ctx context.Context, target *domain.PlanVersion, at time.Time) (*domain.PlanVersion, error) {
	steps := func(ctx context.Context) (*primitive.ObjectID, error) {
		return r.activateSteps(ctx, target, at)
	}
	if err := runCompensated(ctx, steps, r.restoreActive); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, target.ID)
}

// runCompensated runs steps and, if they fail after deactivating a version,
// calls restore on that version so the member is never left without a plan.
func runCompensated(
	ctx context.Context,
	steps func(context.Context) (*primitive.ObjectID, error),
	restore func(context.Context, primitive.ObjectID) error,
) error {
	previousID, err := steps(ctx)
	if err == nil || previousID == nil {
		return err
	}
	if restoreErr := restore(ctx, *previousID); restoreErr != nil {
		return fmt.Errorf("activate failed (%v) and restoring previous version failed: %w", err, restoreErr)
	}
	return err
}

func (r *mongoPlanVersionRepository) restoreActive(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": domain.PlanInactive}, restoreActiveUpdate(time.Now().UTC()))
	return err
}

func restoreActiveUpdate(at time.Time) bson.M {
	return bson.M{"$set": bson.M{"status": domain.PlanActive, "updatedAt": at}}
}

func isTransactionUnsupported(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(codeIllegalOperation)
}

func (r *mongoPlanVersionRepository) CountByAuthor(ctx context.Context, authorID primitive.ObjectID, status domain.PlanStatus) (int64, error) {
	filter := bson.M{"authorId": authorID}
	if status != "" {
		filter["status"] = status
	}
	return r.collection.CountDocuments(ctx, filter)
}

// EnsurePlanVersionIndexes creates the indexes that back version numbering and the one-active rule.
func EnsurePlanVersionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "kind", Value: 1}, {Key: "version", Value: -1}},
			Options: options.Index().SetUnique(true).SetName("userId_kind_version_unique"),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "kind", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.PlanActive}).
				SetName("userId_kind_active_unique"),
		},
		{
			Keys:    bson.D{{Key: "authorId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
