package jwthelper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("secret", 42, 7, "adherent", time.Hour)
	require.NoError(t, err)

	memberID, claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), memberID)
	assert.Equal(t, uint(7), claims.AssociationID)
	assert.Equal(t, "adherent", claims.Role)
}

func TestParseToken_WrongKey(t *testing.T) {
	token, err := GenerateToken("secret", 1, 1, "association", time.Hour)
	require.NoError(t, err)

	_, _, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_Expired(t *testing.T) {
	token, err := GenerateToken("secret", 1, 1, "association", -time.Minute)
	require.NoError(t, err)

	_, _, err = ParseToken("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
