package mongo

import (
	"context"
	"errors"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "accounts"

type accountDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name"`
	PasswordHash string             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
}

func (d accountDoc) toModel() model.Account {
	return model.Account{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}

type MongoAccountRepo struct {
	collection *mongo.Collection
}

func NewMongoAccountRepo(c *mongo.Collection) *MongoAccountRepo {
	return &MongoAccountRepo{collection: c}
}

// EnsureIndexes creates the unique email index that Insert depends on.
func (m *MongoAccountRepo) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	if err != nil {
		return customErrors.WrapStoreUnavailable(err, "EnsureIndexes")
	}
	return nil
}

func (m *MongoAccountRepo) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	var d accountDoc
	err := m.collection.FindOne(ctx, bson.M{"email": email}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Account{}, customErrors.ErrNotFound
	}
	if err != nil {
		return model.Account{}, customErrors.WrapStoreUnavailable(err, "FindByEmail")
	}
	return d.toModel(), nil
}

func (m *MongoAccountRepo) Insert(ctx context.Context, email, name, passwordHash string) (model.Account, error) {
	d := accountDoc{
		ID:           primitive.NewObjectID(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	if _, err := m.collection.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Account{}, customErrors.ErrConflict
		}
		return model.Account{}, customErrors.WrapStoreUnavailable(err, "Insert")
	}
	return d.toModel(), nil
}

// Ping reports whether the deployment answers.
func (m *MongoAccountRepo) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, nil)
}
