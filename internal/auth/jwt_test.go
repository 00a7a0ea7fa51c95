package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	tokens, err := Issue("user-1", RoleStaff, "classtrack", "test-key", time.Minute, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	claims, err := Parse(tokens.AccessToken, "test-key", "classtrack")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, RoleStaff, claims.Role)
}

func TestParseRejectsBadInput(t *testing.T) {
	tokens, err := Issue("user-1", RoleStudent, "classtrack", "test-key", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(tokens.AccessToken, "other-key", "classtrack")
	assert.Error(t, err, "wrong signing key")

	_, err = Parse(tokens.AccessToken, "test-key", "someone-else")
	assert.Error(t, err, "issuer mismatch")

	expired, err := Issue("user-1", RoleStudent, "classtrack", "test-key", -time.Minute, time.Hour)
	require.NoError(t, err)
	_, err = Parse(expired.AccessToken, "test-key", "classtrack")
	assert.Error(t, err, "expired token")
}
