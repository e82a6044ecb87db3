package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsql/engine/sql/docvalue"
	"github.com/docsql/engine/sql/expression"
	"github.com/docsql/engine/sql/schema"
	"github.com/docsql/engine/sql/types"
)

func rootTable() *schema.Table {
	pk := types.ColumnID(1)
	return &schema.Table{
		ID: 100, SQLName: "coll", SourceCollection: "coll", Kind: schema.KindRoot,
		Columns: []types.Column{
			{ID: pk, Name: "coll__id", Type: types.VARCHAR, IsPrimaryKey: true, SourceFieldPath: "_id"},
			{ID: 2, Name: "fieldA", Type: types.INTEGER, SourceFieldPath: "fieldA"},
		},
		PrimaryKey: []types.ColumnID{pk},
	}
}

func TestScanEmitsProjectOverDeclaredColumns(t *testing.T) {
	tr := New(expression.New(expression.EnglishLocale()))
	op := Scan(rootTable())
	out, err := tr.Translate(op)
	require.NoError(t, err)
	require.Len(t, out.Visible, 2)

	last := out.Stages[len(out.Stages)-1]
	assert.Equal(t, "$project", last.Op)
	spec := last.Spec.(map[string]interface{})
	assert.Equal(t, "$fieldA", spec["fieldA"])
}

func TestFilterWithMatchFormEmitsMatchOnly(t *testing.T) {
	tr := New(expression.New(expression.EnglishLocale()))
	table := rootTable()
	op := Filter(Scan(table), expression.Call(expression.OpEq, expression.Col(&table.Columns[1]), expression.Lit(docvalue.Int32(1))))
	out, err := tr.Translate(op)
	require.NoError(t, err)
	last := out.Stages[len(out.Stages)-1]
	assert.Equal(t, "$match", last.Op)
}

func TestFilterWithoutMatchFormUsesFlagStateMachine(t *testing.T) {
	tr := New(expression.New(expression.EnglishLocale()))
	table := rootTable()
	col := expression.Col(&table.Columns[1])
	pred := expression.Call(expression.OpNot, expression.Call(expression.OpIsNull, col))
	op := Filter(Scan(table), pred)
	out, err := tr.Translate(op)
	require.NoError(t, err)

	ops := make([]string, len(out.Stages))
	for i, s := range out.Stages {
		ops[i] = s.Op
	}
	assert.Contains(t, ops, "$addFields")
	assert.Contains(t, ops, "$match")
	// The trailing $project must drop the flag, not the table's columns.
	last := out.Stages[len(out.Stages)-1]
	assert.Equal(t, "$project", last.Op)
	dropped := last.Spec.(map[string]interface{})
	for k := range dropped {
		assert.Contains(t, k, "__filter_flag_")
	}
}

func TestLimitEmitsSkipBeforeLimit(t *testing.T) {
	tr := New(expression.New(expression.EnglishLocale()))
	table := rootTable()
	n, offset := 10, 5
	op := Limit(Scan(table), &n, &offset)
	out, err := tr.Translate(op)
	require.NoError(t, err)

	var skipIdx, limitIdx int
	for i, s := range out.Stages {
		if s.Op == "$skip" {
			skipIdx = i
		}
		if s.Op == "$limit" {
			limitIdx = i
		}
	}
	assert.Less(t, skipIdx, limitIdx)
}

func TestSortNullsLastAscending(t *testing.T) {
	// §4.5: Mongo's native ascending $sort puts nulls first;
	// an ascending SQL sort needs them last, so the null-rank flag for an
	// ASC key must sort ahead of it with dir 1 (nulls, ranked 1, come after
	// non-nulls, ranked 0).
	tr := New(expression.New(expression.EnglishLocale()))
	table := rootTable()
	op := Sort(Scan(table), []SortKey{{Name: "fieldA", Desc: false}})
	out, err := tr.Translate(op)
	require.NoError(t, err)

	var sortStage *SortField
	var fields []SortField
	for _, s := range out.Stages {
		if s.Op == "$sort" {
			fields = s.Spec.([]SortField)
			sortStage = &fields[0]
		}
	}
	require.NotNil(t, sortStage)
	require.Len(t, fields, 2)
	assert.Equal(t, "__null_rank_0", fields[0].Name)
	assert.Equal(t, 1, fields[0].Dir)
	assert.Equal(t, "fieldA", fields[1].Name)
	assert.Equal(t, 1, fields[1].Dir)
}

func TestSortMultiKeyOrderPreserved(t *testing.T) {
	// §3: ties on an earlier ORDER BY key must break by a later one, which
	// only holds if the compound $sort document preserves key order.
	tr := New(expression.New(expression.EnglishLocale()))
	table := rootTable()
	op := Sort(Scan(table), []SortKey{
		{Name: "fieldA", Desc: true},
		{Name: "coll__id", Desc: false},
	})
	out, err := tr.Translate(op)
	require.NoError(t, err)

	var fields []SortField
	for _, s := range out.Stages {
		if s.Op == "$sort" {
			fields = s.Spec.([]SortField)
		}
	}
	require.Len(t, fields, 4)
	assert.Equal(t, []string{"__null_rank_0", "fieldA", "__null_rank_1", "coll__id"}, []string{
		fields[0].Name, fields[1].Name, fields[2].Name, fields[3].Name,
	})
	assert.Equal(t, -1, fields[0].Dir, "DESC key wants nulls first, so its flag sorts with dir -1")
	assert.Equal(t, -1, fields[1].Dir)
	assert.Equal(t, 1, fields[2].Dir)
	assert.Equal(t, 1, fields[3].Dir)
}

func TestAggregateCountStarEqualsSumOne(t *testing.T) {
	// §8 property 5: SUM(1) == COUNT(*) — both reduce to the same
	// `$sum: 1` accumulator shape.
	tr := New(expression.New(expression.EnglishLocale()))
	table := rootTable()
	one := expression.Lit(docvalue.Int32(1))
	op := Aggregate(Scan(table), nil, []AggExprItem{
		{Name: "c", Func: AggCountAll},
		{Name: "s", Func: AggSum, Arg: &one},
	})
	out, err := tr.Translate(op)
	require.NoError(t, err)

	var group map[string]interface{}
	for _, s := range out.Stages {
		if s.Op == "$group" {
			group = s.Spec.(map[string]interface{})
		}
	}
	require.NotNil(t, group)
	cAccum := group["c"].(map[string]interface{})
	sAccum := group["s"].(map[string]interface{})
	assert.EqualValues(t, 1, cAccum["$sum"])
	sLit := sAccum["$sum"].(map[string]interface{})["$literal"]
	assert.EqualValues(t, 1, sLit)
}

