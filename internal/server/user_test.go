package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/roomlog/internal/apperror"
)

func TestNormalizeUsername(t *testing.T) {
	name, err := NormalizeUsername("  alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	_, err = NormalizeUsername("   ")
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = NormalizeUsername(strings.Repeat("é", maxUsernameLength))
	assert.NoError(t, err)
	_, err = NormalizeUsername(strings.Repeat("é", maxUsernameLength+1))
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

func TestUserManager(t *testing.T) {
	um := NewUserManager()
	assert.Equal(t, 0, um.Count())

	alice, existed, err := um.GetOrCreateUserByUsername("alice")
	require.NoError(t, err)
	assert.False(t, existed)
	assert.NotEmpty(t, alice.ID)

	again, existed, err := um.GetOrCreateUserByUsername(" alice")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Same(t, alice, again)

	bob, _, err := um.GetOrCreateUserByUsername("bob")
	require.NoError(t, err)
	assert.NotEqual(t, alice.ID, bob.ID)

	assert.Equal(t, 2, um.Count())

	_, _, err = um.GetOrCreateUserByUsername("")
	assert.Error(t, err)
}
