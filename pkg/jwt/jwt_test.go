package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	token, err := Sign("s3cret", 7, "pastor@grace.church", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := Parse("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.ID)
	assert.Equal(t, "pastor@grace.church", claims.Email)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestParse_Rejects(t *testing.T) {
	token, err := Sign("s3cret", 7, "pastor@grace.church", RoleAdmin, time.Hour)
	require.NoError(t, err)

	_, err = Parse("other", token)
	assert.Error(t, err)

	expired, err := Sign("s3cret", 7, "pastor@grace.church", RoleAdmin, -time.Minute)
	require.NoError(t, err)
	_, err = Parse("s3cret", expired)
	assert.Error(t, err)

	_, err = Parse("s3cret", "not-a-token")
	assert.Error(t, err)

	_, err = Sign("", 1, "a@x.com", RoleAdmin, time.Hour)
	assert.Error(t, err)
}
