package httpmiddleware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenBucketExhaustsPerClient(t *testing.T) {
	l := NewTokenBucket(2, 2)

	require.True(t, l.take("10.0.0.1"))
	require.True(t, l.take("10.0.0.1"))
	require.False(t, l.take("10.0.0.1"))

	// Other clients have their own budget.
	require.True(t, l.take("10.0.0.2"))
}

func TestTokenBucketDefaultsCapacity(t *testing.T) {
	l := NewTokenBucket(0, 3)
	require.Equal(t, 3, l.capacity)
}
