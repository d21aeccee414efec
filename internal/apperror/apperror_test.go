package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfWrapped(t *testing.T) {
	base := NotFound("There is no user with that email address.")
	wrapped := fmt.Errorf("forgot password: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.Equal(t, "There is no user with that email address.", MessageOf(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "Something went wrong!", MessageOf(err))
	assert.False(t, Is(nil, KindInternal))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("mongo: timeout")
	err := Internal(cause, "could not load user")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "mongo: timeout")
	assert.Equal(t, "could not load user", MessageOf(err))
}
