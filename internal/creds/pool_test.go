package creds

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// namedSource returns its own name as the token, so tests can observe which
// identity is active.
type namedSource string

func (s namedSource) Token() (string, error) {
	return string(s), nil
}

func newTestPool(t *testing.T, n int) *Pool {
	t.Helper()

	sources := make([]Source, n)
	for i := range sources {
		sources[i] = namedSource(fmt.Sprintf("sa-%d", i))
	}

	pool, err := NewPool(sources, slog.Default())
	require.NoError(t, err)

	return pool
}

func TestNewPool_Empty(t *testing.T) {
	_, err := NewPool(nil, slog.Default())
	require.Error(t, err)
}

func TestPool_TokenDelegatesToActive(t *testing.T) {
	pool := newTestPool(t, 3)

	tok, err := pool.Token()
	require.NoError(t, err)
	assert.Equal(t, "sa-0", tok)

	require.NoError(t, pool.Rotate())

	tok, err = pool.Token()
	require.NoError(t, err)
	assert.Equal(t, "sa-1", tok)
}

func TestPool_RotationBudgetEqualsPoolSize(t *testing.T) {
	pool := newTestPool(t, 3)

	// Capacity N allows exactly N rotations.
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Rotate(), "rotation %d should succeed", i+1)
	}

	err := pool.Rotate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)

	// Exhaustion is permanent.
	assert.ErrorIs(t, pool.Rotate(), ErrExhausted)
	assert.Equal(t, 3, pool.Used())
	assert.Equal(t, 3, pool.Capacity())
}

func TestPool_RotationWrapsAround(t *testing.T) {
	pool := newTestPool(t, 2)

	require.NoError(t, pool.Rotate())
	require.NoError(t, pool.Rotate())

	// Two rotations over two identities returns to the first.
	tok, err := pool.Token()
	require.NoError(t, err)
	assert.Equal(t, "sa-0", tok)
}

func TestPool_CanRotate(t *testing.T) {
	assert.True(t, newTestPool(t, 2).CanRotate())
	assert.True(t, newTestPool(t, 5).CanRotate())
}

func TestNewSingle_RotationDisabled(t *testing.T) {
	pool := NewSingle(namedSource("only"), slog.Default())

	assert.False(t, pool.CanRotate())
	assert.ErrorIs(t, pool.Rotate(), ErrExhausted)

	tok, err := pool.Token()
	require.NoError(t, err)
	assert.Equal(t, "only", tok)
}
