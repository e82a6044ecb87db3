// Package compiler implements the PlanCompiler (§4.6): orchestrating
// OperatorTranslator bottom-up over a logical tree into a QueryContext.
package compiler

import (
	"fmt"

	"github.com/docsql/engine/sql/coreerr"
	"github.com/docsql/engine/sql/docclient"
	"github.com/docsql/engine/sql/expression"
	"github.com/docsql/engine/sql/plan"
	"github.com/docsql/engine/sql/types"
)

// OutputColumn is one entry of a QueryContext's declared result shape
// (§4.6: "output_columns: [(name, sql_type, nullable)]").
type OutputColumn struct {
	Name     string
	Type     types.ColumnType
	Nullable bool
}

// QueryContext is PlanCompiler's sole output (§6.2): a fully resolved,
// ready-to-run pipeline against a single source collection. Compilation
// never executes the query.
type QueryContext struct {
	Collection    string
	Stages        []docclient.Stage
	OutputColumns []OutputColumn
}

// String renders an EXPLAIN-equivalent view of the compiled pipeline, one
// stage operator per line, for diagnostics.
func (q *QueryContext) String() string {
	out := "collection: " + q.Collection + "\n"
	for i, s := range q.Stages {
		out += fmt.Sprintf("%2d: %s\n", i, s.Op)
	}
	return out
}

// Compile walks tree bottom-up via OperatorTranslator, producing a single
// QueryContext or a single structured error naming the offending
// construct — compilation is all-or-nothing, never a partial pipeline
// (§4.6).
func Compile(tree *plan.Operator, locale expression.Locale) (*QueryContext, error) {
	collection, err := collectionOf(tree)
	if err != nil {
		return nil, err
	}

	translator := plan.New(expression.New(locale))
	result, err := translator.Translate(tree)
	if err != nil {
		return nil, err
	}

	cols := make([]OutputColumn, 0, len(result.Visible))
	for _, v := range result.Visible {
		col := OutputColumn{Name: v.Name, Type: types.VARCHAR, Nullable: true}
		if v.Column != nil {
			col.Type = v.Column.Type
			col.Nullable = v.Column.Nullable
		}
		cols = append(cols, col)
	}

	return &QueryContext{Collection: collection, Stages: result.Stages, OutputColumns: cols}, nil
}

// collectionOf finds the single source collection every Scan in tree
// reads from, failing with InvalidQuery if the tree has no Scan and with
// UNSUPPORTED_JOIN_TYPE if it reads more than one collection. It runs
// before translation, so it is what rejects a cross-collection join in
// Compile, with the same error Join's own validation gives.
func collectionOf(op *plan.Operator) (string, error) {
	collections := map[string]bool{}
	collectCollections(op, collections)
	switch len(collections) {
	case 0:
		return "", coreerr.ErrInvalidQuery.New("plan contains no table scan")
	case 1:
		for c := range collections {
			return c, nil
		}
	}
	return "", coreerr.UnsupportedJoinType("cross-collection join")
}

func collectCollections(op *plan.Operator, out map[string]bool) {
	if op == nil {
		return
	}
	if op.Kind == plan.KindScan && op.Table != nil {
		out[op.Table.SourceCollection] = true
	}
	collectCollections(op.Input, out)
	collectCollections(op.Left, out)
	collectCollections(op.Right, out)
}
