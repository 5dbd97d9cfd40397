package security_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatspark/internal/security"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := security.NewTokenService("secret", time.Hour)

	token, err := svc.CreateForUser(42)
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)

	id, err := security.UserID(claims)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := security.NewTokenService("one", time.Hour).CreateForUser(1)
	require.NoError(t, err)

	_, err = security.NewTokenService("two", time.Hour).Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := security.NewTokenService("secret", -time.Minute).CreateForUser(1)
	require.NoError(t, err)

	_, err = security.NewTokenService("secret", time.Hour).Parse(token)
	assert.Error(t, err)
}
