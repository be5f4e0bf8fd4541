package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hashed, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hashed)
	assert.True(t, CheckPassword("s3cret-pass", hashed))
	assert.False(t, CheckPassword("wrong", hashed))
	assert.False(t, CheckPassword("s3cret-pass", ""))
}

func TestHashPasswordSalted(t *testing.T) {
	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPasswordTooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestIDs(t *testing.T) {
	id := NewID()
	assert.True(t, IsID(id))
	assert.False(t, IsID("9999"))
	assert.NotEqual(t, id, NewID())
}
