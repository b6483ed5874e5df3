package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.NoError(t, Verify(hash, "correct horse battery staple"))
	assert.ErrorIs(t, Verify(hash, "wrong password"), ErrMismatch)
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("same input")
	require.NoError(t, err)
	second, err := Hash("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NoError(t, Verify(first, "same input"))
	assert.NoError(t, Verify(second, "same input"))
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	assert.ErrorIs(t, Verify("plaintext-from-2009", "anything"), ErrInvalidHash)
	assert.ErrorIs(t, Verify("$bcrypt$whatever$x$y$z", "anything"), ErrInvalidHash)
	assert.ErrorIs(t, Verify("$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA", "anything"), ErrIncompatibleVersion)
}

func TestIsHashed(t *testing.T) {
	hash, err := Hash("secret")
	require.NoError(t, err)

	assert.True(t, IsHashed(hash))
	assert.False(t, IsHashed("secret"))
	assert.False(t, IsHashed(""))
}
