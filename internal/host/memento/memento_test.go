package memento

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/puppetext/internal/host"
)

func TestBolt_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "global.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, false, store.Get("SuppressUpdateNotice", false))
	require.NoError(t, store.Update(ctx, "SuppressUpdateNotice", true))
	require.NoError(t, store.Update(ctx, "lastVersion", "0.14.0"))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	assert.True(t, host.BoolValue(reopened, "SuppressUpdateNotice", false))
	assert.Equal(t, "0.14.0", reopened.Get("lastVersion", ""))
}

func TestBolt_NilDeletes(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "global.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Update(ctx, "k", 3))
	assert.Equal(t, float64(3), store.Get("k", nil))

	require.NoError(t, store.Update(ctx, "k", nil))
	assert.Equal(t, "def", store.Get("k", "def"))
}

func TestBolt_UpdateAfterClose(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "global.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Update(context.Background(), "k", true), ErrClosed)
	assert.Equal(t, "def", store.Get("k", "def"))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	assert.False(t, host.BoolValue(m, "flag", false))
	require.NoError(t, m.Update(ctx, "flag", true))
	assert.True(t, host.BoolValue(m, "flag", false))

	require.NoError(t, m.Update(ctx, "flag", "not a bool"))
	assert.False(t, host.BoolValue(m, "flag", false))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, m.Update(cancelled, "flag", true))
}
