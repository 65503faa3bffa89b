package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSet(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx := context.Background()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "token", "abc", time.Hour))
	v, err := m.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, m.Delete(ctx, "token"))
	_, err = m.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_Expiration(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))

	now = now.Add(59 * time.Second)
	_, err := m.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	m.cleanup()
	assert.Equal(t, 0, m.Len())
}

func TestMemory_SetNX(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := m.SetNX(ctx, "lease", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetNX(ctx, "lease", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held key must not be overwritten")

	now = now.Add(2 * time.Minute)
	ok, err = m.SetNX(ctx, "lease", "c", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired key can be taken again")
}

func TestMemory_CompareAndDelete(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "lease", "owner-1", time.Minute))

	require.NoError(t, m.CompareAndDelete(ctx, "lease", "owner-2"))
	v, err := m.Get(ctx, "lease")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", v)

	require.NoError(t, m.CompareAndDelete(ctx, "lease", "owner-1"))
	_, err = m.Get(ctx, "lease")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_ConcurrentSetNX(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.SetNX(ctx, "run-1", "x", time.Minute)
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestMemory_CloseIsIdempotent(t *testing.T) {
	m := NewMemory()
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestNew_WithoutAddrUsesMemory(t *testing.T) {
	c := New(context.Background(), nil, Config{})
	defer c.Close()

	_, ok := c.(*Memory)
	assert.True(t, ok)
}
