package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken(t *testing.T) {
	raw, err := GenerateAccessToken("user-1", "organizer", "secret", time.Minute)
	require.NoError(t, err)

	claims, err := ParseAccessToken(raw, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "organizer", claims.Role)

	_, err = ParseAccessToken(raw, "other")
	assert.Error(t, err)

	expired, err := GenerateAccessToken("user-1", "organizer", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseAccessToken(expired, "secret")
	assert.Error(t, err)
}
