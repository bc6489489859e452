package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "da02e221bc331c9875c5e1299fa8d765"

func TestComputeHmac256(t *testing.T) {
	a, err := ComputeHmac256("foo@gmail.com", secret)
	require.NoError(t, err)
	b, err := ComputeHmac256("foo@gmail.com", secret)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := ComputeHmac256("foo@gmail.com", "another")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestVerifyUnsubscribe(t *testing.T) {
	h, err := SignUnsubscribe("a@x.com", "events", secret)
	require.NoError(t, err)

	ok, err := VerifyUnsubscribe("a@x.com", "events", h, secret)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyUnsubscribe("a@x.com", "daily_verse", h, secret)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifyUnsubscribe("b@x.com", "events", h, secret)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyUnsubscribe("a@x.com", "events", h, "")
	assert.Error(t, err)
}
