package modelstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axilent/sharrock"
	"github.com/axilent/sharrock/modelstore"
)

func stores(t *testing.T) map[string]sharrock.Store {
	t.Helper()

	lite, err := modelstore.OpenSQLite(context.Background(), ":memory:", "users")
	require.NoError(t, err)
	t.Cleanup(func() { lite.Close() })

	return map[string]sharrock.Store{
		"memory": modelstore.NewMemory(),
		"sqlite": lite,
	}
}

func TestStore_CRUD(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			records, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, records)

			id, err := store.Create(ctx, map[string]any{"username": "loren"})
			require.NoError(t, err)
			require.NotEmpty(t, id)

			got, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "loren", got["username"])
			assert.Equal(t, id, got["id"])

			require.NoError(t, store.Update(ctx, id, map[string]any{"email": "loren@example.com"}))
			got, err = store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "loren", got["username"])
			assert.Equal(t, "loren@example.com", got["email"])

			records, err = store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, records, 1)

			require.NoError(t, store.Delete(ctx, id))
			_, err = store.Get(ctx, id)
			assert.ErrorIs(t, err, sharrock.ErrNotFound)
		})
	}
}

func TestStore_Errors(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			_, err := store.Create(ctx, map[string]any{"id": "7", "username": "a"})
			require.NoError(t, err)

			_, err = store.Create(ctx, map[string]any{"id": "7", "username": "b"})
			assert.ErrorIs(t, err, sharrock.ErrConflict)
			assert.Equal(t, 409, sharrock.ErrorStatus(err))

			err = store.Update(ctx, "missing", map[string]any{"a": 1})
			assert.True(t, errors.Is(err, sharrock.ErrNotFound))

			err = store.Delete(ctx, "missing")
			assert.Equal(t, 404, sharrock.ErrorStatus(err))
		})
	}
}

func TestMemory_SequentialIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := modelstore.NewMemory()

	_, err := store.Create(ctx, map[string]any{"id": 2.0})
	require.NoError(t, err)

	first, err := store.Create(ctx, map[string]any{})
	require.NoError(t, err)
	second, err := store.Create(ctx, map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, "1", first)
	assert.Equal(t, "3", second)

	records, err := store.List(ctx)
	require.NoError(t, err)
	ids := make([]any, len(records))
	for i, r := range records {
		ids[i] = r["id"]
	}
	assert.Equal(t, []any{"1", "2", "3"}, ids)
}

func TestSQLite_RejectsBadTableName(t *testing.T) {
	t.Parallel()

	_, err := modelstore.OpenSQLite(context.Background(), ":memory:", "users; drop")
	assert.Error(t, err)
}
