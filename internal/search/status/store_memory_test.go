package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prisoner-search/internal/search/models"
	"prisoner-search/pkg/platform/sentinel"
)

func TestStore_Transitions(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("initial state is slot A idle", func(t *testing.T) {
		store := NewInMemory()
		st, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.IndexA, st.CurrentIndex)
		assert.False(t, st.InProgress)
	})

	t.Run("start build sets in progress and start time", func(t *testing.T) {
		store := NewInMemory()
		require.NoError(t, store.StartBuild(ctx, now))

		st, err := store.Get(ctx)
		require.NoError(t, err)
		assert.True(t, st.InProgress)
		require.NotNil(t, st.StartTime)
		assert.Equal(t, now, *st.StartTime)
		assert.Nil(t, st.EndTime)
	})

	t.Run("second start build conflicts without mutating", func(t *testing.T) {
		store := NewInMemory()
		require.NoError(t, store.StartBuild(ctx, now))

		err := store.StartBuild(ctx, now.Add(time.Minute))
		require.Error(t, err)
		assert.True(t, errors.Is(err, sentinel.ErrConflict))

		st, getErr := store.Get(ctx)
		require.NoError(t, getErr)
		assert.True(t, st.InProgress)
		assert.Equal(t, now, *st.StartTime, "losing caller must not touch the row")
	})

	t.Run("complete build while idle conflicts", func(t *testing.T) {
		store := NewInMemory()
		err := store.CompleteBuild(ctx, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, sentinel.ErrConflict))
	})

	t.Run("switch flips the live slot", func(t *testing.T) {
		store := NewInMemory()
		current, err := store.Switch(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.IndexB, current)

		current, err = store.Switch(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.IndexA, current)
	})

	t.Run("switch while building conflicts", func(t *testing.T) {
		store := NewInMemory()
		require.NoError(t, store.StartBuild(ctx, now))

		_, err := store.Switch(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, sentinel.ErrConflict))

		st, getErr := store.Get(ctx)
		require.NoError(t, getErr)
		assert.Equal(t, models.IndexA, st.CurrentIndex, "rejected switch must not move the pointer")
	})

	t.Run("full cycle", func(t *testing.T) {
		store := NewInMemory()
		require.NoError(t, store.StartBuild(ctx, now))
		require.NoError(t, store.CompleteBuild(ctx, now.Add(time.Hour)))

		current, err := store.Switch(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.IndexB, current)

		st, getErr := store.Get(ctx)
		require.NoError(t, getErr)
		assert.False(t, st.InProgress)
		require.NotNil(t, st.EndTime)
	})
}
