package presence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	ok, err := s.Contains(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, 1))
	require.NoError(t, s.Add(ctx, 1)) // membership, not a counter
	require.NoError(t, s.Add(ctx, 2))

	ok, err = s.Contains(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.Remove(ctx, 1))
	ok, err = s.Contains(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
