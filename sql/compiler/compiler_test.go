package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsql/engine/sql/expression"
	"github.com/docsql/engine/sql/plan"
	"github.com/docsql/engine/sql/schema"
	"github.com/docsql/engine/sql/types"
)

func table() *schema.Table {
	pk := types.ColumnID(1)
	return &schema.Table{
		ID: 1, SQLName: "coll", SourceCollection: "coll", Kind: schema.KindRoot,
		Columns: []types.Column{
			{ID: pk, Name: "coll__id", Type: types.VARCHAR, IsPrimaryKey: true, SourceFieldPath: "_id"},
		},
		PrimaryKey: []types.ColumnID{pk},
	}
}

func TestCompileScanProducesQueryContext(t *testing.T) {
	qctx, err := Compile(plan.Scan(table()), expression.EnglishLocale())
	require.NoError(t, err)
	assert.Equal(t, "coll", qctx.Collection)
	require.Len(t, qctx.OutputColumns, 1)
	assert.Equal(t, "coll__id", qctx.OutputColumns[0].Name)
}

func TestCompileCrossCollectionJoinFails(t *testing.T) {
	left := table()
	right := &schema.Table{
		ID: 2, SQLName: "other", SourceCollection: "other", Kind: schema.KindRoot,
		Columns: []types.Column{{ID: 9, Name: "other__id", Type: types.VARCHAR, IsPrimaryKey: true}},
	}
	cond := expression.Call(expression.OpEq, expression.Col(&left.Columns[0]), expression.Col(&right.Columns[0]))
	tree := plan.Join(plan.Scan(left), plan.Scan(right), plan.JoinInner, cond)

	_, err := Compile(tree, expression.EnglishLocale())
	require.Error(t, err)
}
