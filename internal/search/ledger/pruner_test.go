package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPruneOnce(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

	_, err := store.UpsertIfChanged(ctx, "A1234AA", "hash-a", now.Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = store.UpsertIfChanged(ctx, "B2345BB", "hash-b", now.Add(-time.Hour))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pruner := NewPruner(store, 24*time.Hour, time.Minute, func() time.Time { return now }, logger)

	require.NoError(t, pruner.PruneOnce(ctx))

	t.Run("rows beyond retention are gone", func(t *testing.T) {
		_, ok := store.Get("A1234AA")
		assert.False(t, ok)
	})

	t.Run("recent rows survive", func(t *testing.T) {
		_, ok := store.Get("B2345BB")
		assert.True(t, ok)
	})
}
