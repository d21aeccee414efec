package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"visitethiopia/api/internal/models"
)

const usersCollection = "users"

type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique email index and lookup indexes for the
// single-use token hashes.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "emailVerificationToken", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("email_verification_token"),
		},
		{
			Keys:    bson.D{{Key: "passwordResetToken", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("password_reset_token"),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *MongoUserRepository) Create(ctx context.Context, user models.User) error {
	user.Email = NormalizeEmail(user.Email)
	user.Version = 1
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// Save replaces the document only if nobody wrote it since it was read.
func (r *MongoUserRepository) Save(ctx context.Context, user models.User) (models.User, error) {
	expected := user.Version
	user.Email = NormalizeEmail(user.Email)
	user.Version++

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": user.ID, "version": expected}, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, user.ID); err != nil {
			return models.User{}, err
		}
		return models.User{}, ErrStaleUser
	}
	return user, nil
}

// ConsumeVerificationToken matches and clears the hash in one
// findAndModify, so a token can only be spent once.
func (r *MongoUserRepository) ConsumeVerificationToken(ctx context.Context, hash string, now time.Time) (models.User, error) {
	filter := bson.M{
		"emailVerificationToken":   hash,
		"emailVerificationExpires": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": now},
		"$unset": bson.M{"emailVerificationToken": "", "emailVerificationExpires": ""},
		"$inc":   bson.M{"version": 1},
	}
	return r.consume(ctx, filter, update, bson.M{"emailVerificationToken": hash})
}

func (r *MongoUserRepository) ConsumeResetToken(ctx context.Context, hash string, now time.Time, passwordHash []byte) (models.User, error) {
	filter := bson.M{
		"passwordResetToken":   hash,
		"passwordResetExpires": bson.M{"$gt": now},
		"active":               true,
	}
	update := bson.M{
		"$set": bson.M{
			"password":          passwordHash,
			"passwordChangedAt": now,
			"isVerified":        true,
			"updatedAt":         now,
		},
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
		"$inc":   bson.M{"version": 1},
	}
	return r.consume(ctx, filter, update, bson.M{"passwordResetToken": hash})
}

func (r *MongoUserRepository) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	verify, err := r.coll.UpdateMany(ctx,
		bson.M{"emailVerificationExpires": bson.M{"$lte": now}},
		bson.M{
			"$unset": bson.M{"emailVerificationToken": "", "emailVerificationExpires": ""},
			"$inc":   bson.M{"version": 1},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("purge verification tokens: %w", err)
	}

	reset, err := r.coll.UpdateMany(ctx,
		bson.M{"passwordResetExpires": bson.M{"$lte": now}},
		bson.M{
			"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
			"$inc":   bson.M{"version": 1},
		},
	)
	if err != nil {
		return verify.ModifiedCount, fmt.Errorf("purge reset tokens: %w", err)
	}

	return verify.ModifiedCount + reset.ModifiedCount, nil
}

func (r *MongoUserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	if offset < 0 {
		return []models.User{}, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// consume applies update when filter matches. On a miss, probe tells an
// expired token apart from one that never existed.
func (r *MongoUserRepository) consume(ctx context.Context, filter, update, probe bson.M) (models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, err
	}

	found, err := r.findOne(ctx, probe)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrTokenNotFound
		}
		return models.User{}, err
	}
	if _, resetProbe := probe["passwordResetToken"]; resetProbe && !found.Active {
		return models.User{}, ErrTokenNotFound
	}
	return models.User{}, ErrTokenExpired
}
