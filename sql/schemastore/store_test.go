package schemastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsql/engine/sql/schema"
	"github.com/docsql/engine/sql/types"
)

func TestMemoryStoreAppendOnlyVersioning(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s1 := &schema.Schema{Name: "_default", Tables: map[types.TableID]*schema.Table{}}
	v1, err := store.Write(ctx, s1)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	s2 := &schema.Schema{Name: "_default", Tables: map[types.TableID]*schema.Table{}}
	v2, err := store.Write(ctx, s2)
	require.NoError(t, err)
	assert.Equal(t, 2, v2)

	got, err := store.Read(ctx, "_default", Latest)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)

	got1, err := store.Read(ctx, "_default", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got1.Version)
}

func TestMemoryStoreMissingSchema(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Read(context.Background(), "nope", Latest)
	require.Error(t, err)
}

func TestMemoryStoreVersionsAscending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := store.Write(ctx, &schema.Schema{Name: "s", Tables: map[types.TableID]*schema.Table{}})
		require.NoError(t, err)
	}
	versions, err := store.Versions(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, versions)
}
