package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, expiresAt, err := issuer.Issue(42, "owner@acme.example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	tc, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), tc.TenantID)
	assert.Equal(t, "owner@acme.example.com", tc.Email)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)

	token, _, err := issuer.Issue(7, "late@example.com")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	token, _, err := NewTokenIssuer("key-one", time.Hour).Issue(7, "a@example.com")
	require.NoError(t, err)

	_, err = NewTokenIssuer("key-two", time.Hour).Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	_, err := issuer.Verify("not.a.token")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
	assert.False(t, CheckPassword("not-a-hash", "hunter2"))
}
