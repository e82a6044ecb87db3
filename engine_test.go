package docsql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsql/engine/sql/docclient"
	"github.com/docsql/engine/sql/docvalue"
	"github.com/docsql/engine/sql/plan"
	"github.com/docsql/engine/sql/schemastore"
)

func seedPeople(client *docclient.FakeClient) {
	client.Insert("people",
		docvalue.Object(
			docvalue.Field{Name: "_id", Value: docvalue.ObjectID("507f1f77bcf86cd799439011")},
			docvalue.Field{Name: "name", Value: docvalue.String("ada")},
		),
		docvalue.Object(
			docvalue.Field{Name: "_id", Value: docvalue.ObjectID("507f1f77bcf86cd799439012")},
			docvalue.Field{Name: "name", Value: docvalue.String("grace")},
		),
	)
}

func TestRefreshSchemaPersistsNewVersion(t *testing.T) {
	client := docclient.NewFakeClient()
	seedPeople(client)
	e := NewDefault(client)

	version, err := e.RefreshSchema(context.Background(), "default", "people")
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	s, err := e.Schema(context.Background(), "default", schemastore.Latest)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Version)
	_, ok := s.TableByName("people")
	assert.True(t, ok)
}

func TestRunCompilesAndExecutesScan(t *testing.T) {
	client := docclient.NewFakeClient()
	seedPeople(client)
	e := NewDefault(client)

	_, err := e.RefreshSchema(context.Background(), "default", "people")
	require.NoError(t, err)
	s, err := e.Schema(context.Background(), "default", schemastore.Latest)
	require.NoError(t, err)

	table, ok := s.TableByName("people")
	require.True(t, ok)

	cur, err := e.Run(context.Background(), plan.Scan(table), nil)
	require.NoError(t, err)
	defer cur.Close(context.Background())

	batch, err := cur.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Len(t, batch.Rows, 2)
}

func TestRefreshSchemaOnEmptyCollectionOmitsTable(t *testing.T) {
	client := docclient.NewFakeClient()
	e := NewDefault(client)

	version, err := e.RefreshSchema(context.Background(), "default", "empty")
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	s, err := e.Schema(context.Background(), "default", schemastore.Latest)
	require.NoError(t, err)
	_, ok := s.TableByName("empty")
	assert.False(t, ok)
}
