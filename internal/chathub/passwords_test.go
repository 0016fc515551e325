package chathub_test

import (
	"strings"
	"testing"

	"driftchat/backend/internal/chathub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainPasswords(t *testing.T) {
	sealer := chathub.PlainPasswords{}

	sealed, err := sealer.Seal("secret")

	require.NoError(t, err)
	assert.True(t, sealer.Verify(sealed, "secret"))
	assert.False(t, sealer.Verify(sealed, "Secret"))
	assert.False(t, sealer.Verify(sealed, ""))
}

// TestArgon2PasswordsRoundTrip verifies the encoded hash verifies only its own password
// and that two seals of the same password differ by salt.
func TestArgon2PasswordsRoundTrip(t *testing.T) {
	// Arrange
	sealer := chathub.Argon2Passwords{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	// Act
	first, err := sealer.Seal("secret")
	require.NoError(t, err)
	second, err := sealer.Seal("secret")
	require.NoError(t, err)

	// Assert
	assert.True(t, strings.HasPrefix(first, "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.NotEqual(t, first, second)
	assert.True(t, sealer.Verify(first, "secret"))
	assert.True(t, sealer.Verify(second, "secret"))
	assert.False(t, sealer.Verify(first, "wrong"))
}

func TestArgon2PasswordsRejectsGarbage(t *testing.T) {
	sealer := chathub.DefaultArgon2()

	assert.False(t, sealer.Verify("secret", "secret"))
	assert.False(t, sealer.Verify("$argon2id$v=19$m=x$salt$hash", "secret"))
	assert.False(t, sealer.Verify("$argon2id$v=19$m=1,t=1,p=1$!!!$hash", "secret"))
}
