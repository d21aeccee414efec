package service

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitethiopia/api/internal/apperror"
	"visitethiopia/api/internal/models"
)

func strPtr(s string) *string { return &s }

func TestUpdateProfileNames(t *testing.T) {
	f := newFixture(t)
	user := f.verifiedUser(t, "selam@example.com")

	updated, err := f.users.UpdateProfile(context.Background(), user.ID, ProfileInput{FirstName: strPtr(" Hanna ")})
	require.NoError(t, err)
	assert.Equal(t, "Hanna", updated.FirstName)
	assert.Equal(t, "Bekele", updated.LastName)
	assert.True(t, updated.IsVerified)
}

func TestUpdateProfileEmailRequiresVerification(t *testing.T) {
	f := newFixture(t)
	user := f.verifiedUser(t, "selam@example.com")

	updated, err := f.users.UpdateProfile(context.Background(), user.ID, ProfileInput{Email: strPtr("Hanna@Example.com")})
	require.NoError(t, err)
	assert.Equal(t, "hanna@example.com", updated.Email)
	assert.False(t, updated.IsVerified)

	_, _, err = f.auth.Login(context.Background(), "hanna@example.com", "lalibela-2026")
	assert.Equal(t, msgUnverified, apperror.MessageOf(err))

	_, err = f.auth.VerifyEmail(context.Background(), f.mailer.lastSecret(t, "verify"))
	require.NoError(t, err)
	_, _, err = f.auth.Login(context.Background(), "hanna@example.com", "lalibela-2026")
	assert.NoError(t, err)
}

func TestUpdateProfileEmailTaken(t *testing.T) {
	f := newFixture(t)
	f.verifiedUser(t, "taken@example.com")
	user := f.verifiedUser(t, "selam@example.com")

	_, err := f.users.UpdateProfile(context.Background(), user.ID, ProfileInput{Email: strPtr("taken@example.com")})
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
}

func TestUpdateProfileRejectsEmptyName(t *testing.T) {
	f := newFixture(t)
	user := f.verifiedUser(t, "selam@example.com")

	_, err := f.users.UpdateProfile(context.Background(), user.ID, ProfileInput{LastName: strPtr("")})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestUpdateRole(t *testing.T) {
	f := newFixture(t)
	user := f.verifiedUser(t, "selam@example.com")

	updated, err := f.users.UpdateRole(context.Background(), user.ID, "guide")
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleGuide, updated.Role)

	_, err = f.users.UpdateRole(context.Background(), user.ID, "superuser")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = f.users.UpdateRole(context.Background(), "missing", "guide")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestListPaginates(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.verifiedUser(t, fmt.Sprintf("user%d@example.com", i))
	}

	page, err := f.users.List(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	last, err := f.users.List(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Len(t, last, 1)
}

func TestListPageBeyondRangeIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.verifiedUser(t, "selam@example.com")

	users, err := f.users.List(context.Background(), math.MaxInt/2, 20)
	require.NoError(t, err)
	assert.Empty(t, users)

	users, err = f.users.List(context.Background(), math.MaxInt, maxPageSize)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestGetUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.Get(context.Background(), "missing")
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	assert.Equal(t, msgNoUserWithID, apperror.MessageOf(err))
}
