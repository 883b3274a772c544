// Package syncflagtest checks syncflag.Store implementations against the
// shared contract.
package syncflagtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-cache/internal/syncflag"
)

// Run exercises newStore with the behaviour every backend must provide.
func Run(t *testing.T, newStore func(t *testing.T) syncflag.Store) {
	ctx := context.Background()
	t1 := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	t.Run("defaults", func(t *testing.T) {
		s := newStore(t)

		synced, err := s.IsSynced(ctx, syncflag.GamesImported)
		require.NoError(t, err)
		assert.False(t, synced)

		at, ok, err := s.LastSyncedAt(ctx, syncflag.GamesImported)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, at.IsZero())
	})

	t.Run("mark is read back immediately", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.MarkSynced(ctx, syncflag.GamesImported, t1))

		synced, err := s.IsSynced(ctx, syncflag.GamesImported)
		require.NoError(t, err)
		assert.True(t, synced)

		at, ok, err := s.LastSyncedAt(ctx, syncflag.GamesImported)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, t1.Equal(at), "want %v got %v", t1, at)
	})

	t.Run("mark overwrites", func(t *testing.T) {
		s := newStore(t)
		t2 := t1.Add(time.Hour)

		require.NoError(t, s.MarkSynced(ctx, syncflag.GamesImported, t1))
		require.NoError(t, s.MarkSynced(ctx, syncflag.GamesImported, t2))

		at, ok, err := s.LastSyncedAt(ctx, syncflag.GamesImported)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, t2.Equal(at))
	})

	t.Run("reset clears both fields", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.MarkSynced(ctx, syncflag.GamesImported, t1))
		require.NoError(t, s.Reset(ctx, syncflag.GamesImported))

		synced, err := s.IsSynced(ctx, syncflag.GamesImported)
		require.NoError(t, err)
		assert.False(t, synced)

		_, ok, err := s.LastSyncedAt(ctx, syncflag.GamesImported)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Reset(ctx, "never-set"), "resetting an unknown flag is a no-op")
	})

	t.Run("flags are independent", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.MarkSynced(ctx, "games", t1))

		synced, err := s.IsSynced(ctx, "users")
		require.NoError(t, err)
		assert.False(t, synced)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.MarkSynced(ctx, "  ", t1), syncflag.ErrNameRequired)
	})
}
