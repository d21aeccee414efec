package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"visitethiopia/api/internal/models"
)

const mockNS = "visitethiopia.users"

func mockUserDoc(t testing.TB, user models.User) bson.D {
	t.Helper()
	raw, err := bson.Marshal(user)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

// consumed is a findAndModify reply carrying the updated document.
func consumed(doc bson.D) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc})
}

// noMatch is a findAndModify reply where the filter matched nothing.
func noMatch() bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil})
}

func probeResult(docs ...bson.D) bson.D {
	return mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch, docs...)
}

func commandFilter(mt *mtest.T, name string) bson.Raw {
	mt.Helper()
	evt := mt.GetStartedEvent()
	require.NotNil(mt, evt)
	require.Equal(mt, name, evt.CommandName)
	key := "query"
	if name == "find" {
		key = "filter"
	}
	return evt.Command.Lookup(key).Document()
}

func TestMongoConsumeVerificationToken(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	expires := testNow.Add(time.Hour)
	pending := models.User{
		ID:                       "u1",
		Email:                    "hana@example.com",
		Role:                     models.UserRoleUser,
		Active:                   true,
		EmailVerificationToken:   "hash-1",
		EmailVerificationExpires: &expires,
		Version:                  1,
	}
	verified := pending
	verified.IsVerified = true
	verified.EmailVerificationToken = ""
	verified.EmailVerificationExpires = nil
	verified.Version = 2

	mt.Run("consumes once", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(consumed(mockUserDoc(mt, verified)))

		user, err := repo.ConsumeVerificationToken(context.Background(), "hash-1", testNow)
		require.NoError(mt, err)
		assert.True(mt, user.IsVerified)
		assert.Empty(mt, user.EmailVerificationToken)
		assert.Equal(mt, int64(2), user.Version)

		filter := commandFilter(mt, "findAndModify")
		assert.Equal(mt, "hash-1", filter.Lookup("emailVerificationToken").StringValue())
	})

	mt.Run("second use is not found", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(noMatch(), probeResult())

		_, err := repo.ConsumeVerificationToken(context.Background(), "hash-1", testNow)
		assert.ErrorIs(mt, err, ErrTokenNotFound)
	})

	mt.Run("expired", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(noMatch(), probeResult(mockUserDoc(mt, pending)))

		_, err := repo.ConsumeVerificationToken(context.Background(), "hash-1", expires.Add(time.Second))
		assert.ErrorIs(mt, err, ErrTokenExpired)

		commandFilter(mt, "findAndModify")
		probe := commandFilter(mt, "find")
		assert.Equal(mt, "hash-1", probe.Lookup("emailVerificationToken").StringValue())
	})
}

func TestMongoConsumeResetToken(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	expires := testNow.Add(10 * time.Minute)
	pending := models.User{
		ID:                   "u2",
		Email:                "dawit@example.com",
		Role:                 models.UserRoleGuide,
		Active:               true,
		PasswordResetToken:   "reset-hash",
		PasswordResetExpires: &expires,
		Version:              3,
	}
	changed := testNow
	reset := pending
	reset.PasswordHash = []byte("new-hash")
	reset.PasswordChangedAt = &changed
	reset.IsVerified = true
	reset.PasswordResetToken = ""
	reset.PasswordResetExpires = nil
	reset.Version = 4

	mt.Run("consumes once", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(consumed(mockUserDoc(mt, reset)))

		user, err := repo.ConsumeResetToken(context.Background(), "reset-hash", testNow, []byte("new-hash"))
		require.NoError(mt, err)
		assert.Equal(mt, []byte("new-hash"), user.PasswordHash)
		assert.True(mt, user.IsVerified)
		require.NotNil(mt, user.PasswordChangedAt)

		filter := commandFilter(mt, "findAndModify")
		assert.Equal(mt, "reset-hash", filter.Lookup("passwordResetToken").StringValue())
		assert.True(mt, filter.Lookup("active").Boolean())
	})

	mt.Run("second use is not found", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(noMatch(), probeResult())

		_, err := repo.ConsumeResetToken(context.Background(), "reset-hash", testNow, []byte("other"))
		assert.ErrorIs(mt, err, ErrTokenNotFound)
	})

	mt.Run("expired", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(noMatch(), probeResult(mockUserDoc(mt, pending)))

		_, err := repo.ConsumeResetToken(context.Background(), "reset-hash", expires.Add(time.Minute), []byte("other"))
		assert.ErrorIs(mt, err, ErrTokenExpired)
	})

	mt.Run("inactive account", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		inactive := pending
		inactive.Active = false
		mt.AddMockResponses(noMatch(), probeResult(mockUserDoc(mt, inactive)))

		_, err := repo.ConsumeResetToken(context.Background(), "reset-hash", testNow, []byte("other"))
		assert.ErrorIs(mt, err, ErrTokenNotFound)
	})
}

func TestMongoListNegativeOffsetIsEmpty(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("no query sent", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)

		users, err := repo.List(context.Background(), 20, -20)
		require.NoError(mt, err)
		assert.Empty(mt, users)
		assert.Nil(mt, mt.GetStartedEvent())
	})
}
