package mongo

import (
	"context"
	"errors"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

// UserCollection is the collection users are stored in.
const UserCollection = "users"

// UserStore implements store.UserStore on a MongoDB collection.
type UserStore struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

// NewUserStore creates a UserStore on db.users.
func NewUserStore(db *mongo.Database, logger *slog.Logger) *UserStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserStore{
		coll:   db.Collection(UserCollection),
		logger: logger.With(slog.String("component", "mongo_user_store")),
	}
}

var _ store.UserStore = (*UserStore)(nil)

// EnsureIndexes creates the unique email index CreateIfAbsent relies on.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return MapError(err)
}

// CreateIfAbsent upserts on email with $setOnInsert, so an existing user is
// left untouched and concurrent creates converge on one document.
func (s *UserStore) CreateIfAbsent(ctx context.Context, user *domain.User) (bool, error) {
	if err := user.Validate(); err != nil {
		return false, err
	}

	doc := userDocument{
		Email:     user.Email,
		Name:      user.Name,
		Image:     user.Image,
		IsAdmin:   user.IsAdmin,
		CreatedAt: user.CreatedAt,
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"email": user.Email},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return false, store.NewStoreError("user", "create", "upsert failed", MapError(err))
	}

	existing, getErr := s.GetByEmail(ctx, user.Email)
	if getErr != nil {
		return false, getErr
	}
	user.ID = existing.ID
	return err == nil && res.UpsertedCount == 1, nil
}

// GetByEmail implements store.UserStore.GetByEmail
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrUserNotFound
		}
		return nil, store.NewStoreError("user", "get", "find failed", MapError(err))
	}
	return doc.toDomain(), nil
}
