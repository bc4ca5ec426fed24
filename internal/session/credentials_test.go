package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, subject string, expires time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestCredentialsFromToken(t *testing.T) {
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, "user-42", expires)

	creds := CredentialsFromToken(token)
	require.Equal(t, token, creds.Token)
	require.Equal(t, "user-42", creds.UserID)
	require.WithinDuration(t, expires, creds.ExpiresAt, time.Second)
}

func TestCredentialsFromOpaqueToken(t *testing.T) {
	creds := CredentialsFromToken("not-a-jwt")
	require.Equal(t, "not-a-jwt", creds.Token)
	require.True(t, creds.ExpiresAt.IsZero())
}

func TestCredentialsValidity(t *testing.T) {
	now := time.Now()

	require.False(t, Credentials{}.Valid(now), "empty token")
	require.True(t, Credentials{Token: "t"}.Valid(now), "no expiry recorded")
	require.True(t, Credentials{Token: "t", ExpiresAt: now.Add(time.Minute)}.Valid(now))
	// An expiry in the past means the session is already over on load.
	require.False(t, Credentials{Token: "t", ExpiresAt: now.Add(-time.Minute)}.Valid(now))
}

func TestCredentialsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "credentials.json")

	creds := Credentials{
		Token:     "tok",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	require.NoError(t, SaveCredentials(path, creds))

	loaded, err := LoadCredentials(path)
	require.NoError(t, err)
	require.Equal(t, creds, loaded)

	require.NoError(t, ClearCredentials(path))
	loaded, err = LoadCredentials(path)
	require.NoError(t, err)
	require.Empty(t, loaded.Token, "cleared credentials load as logged out")

	// Clearing twice is fine.
	require.NoError(t, ClearCredentials(path))
}
