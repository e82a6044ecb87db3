// Package plan implements the Operator tagged variant and the
// OperatorTranslator (§4.5, §6.3): per-operator pipeline-stage emission
// over the logical relational tree PlanCompiler walks.
package plan

import (
	"github.com/docsql/engine/sql/expression"
	"github.com/docsql/engine/sql/schema"
	"github.com/docsql/engine/sql/types"
)

// OperatorKind tags the logical-tree variant (§6.3: "A tagged variant
// over Scan/Filter/Project/Aggregate/Sort/Limit/Join").
type OperatorKind int

const (
	KindScan OperatorKind = iota
	KindFilter
	KindProject
	KindAggregate
	KindSort
	KindLimit
	KindJoin
)

// JoinKind restricts §9's "only inner and left" decision.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
)

// ProjectExpr is one output column of a Project operator. OutputType/
// Nullable are supplied by the (out-of-scope, §1) logical optimizer that
// produced this tree — by the time PlanCompiler sees a Project node, every
// expression has already been type-checked.
type ProjectExpr struct {
	Name       string
	Expr       expression.Expr
	OutputType types.ColumnType
	Nullable   bool
}

// AggFunc names a supported Aggregate function (§4.5).
type AggFunc string

const (
	AggSum      AggFunc = "SUM"
	AggAvg      AggFunc = "AVG"
	AggMin      AggFunc = "MIN"
	AggMax      AggFunc = "MAX"
	AggCountAll AggFunc = "COUNT_STAR"
	AggCountCol AggFunc = "COUNT_COL"
)

// AggExprItem is one aggregate output: Arg is nil for COUNT(*).
type AggExprItem struct {
	Name string
	Func AggFunc
	Arg  *expression.Expr
}

// SortKey is one ORDER BY key; nulls sort last for ASC, first for DESC,
// matching SQL default (§4.5).
type SortKey struct {
	Name string
	Desc bool
}

// Operator is the single tagged-variant logical-tree node (Design Notes
// §9). Only the fields relevant to Kind are meaningful.
type Operator struct {
	Kind OperatorKind

	Input *Operator // Filter, Project, Aggregate, Sort, Limit
	Left  *Operator // Join
	Right *Operator // Join

	Table *schema.Table // Scan

	Predicate expression.Expr // Filter

	Projects []ProjectExpr // Project

	GroupKeys []string      // Aggregate
	Aggs      []AggExprItem // Aggregate

	SortKeys []SortKey // Sort

	Limit  *int // Limit
	Offset *int // Limit

	JoinKind      JoinKind        // Join
	JoinCondition expression.Expr // Join
}

func Scan(table *schema.Table) *Operator { return &Operator{Kind: KindScan, Table: table} }

func Filter(input *Operator, pred expression.Expr) *Operator {
	return &Operator{Kind: KindFilter, Input: input, Predicate: pred}
}

func Project(input *Operator, exprs []ProjectExpr) *Operator {
	return &Operator{Kind: KindProject, Input: input, Projects: exprs}
}

func Aggregate(input *Operator, groupKeys []string, aggs []AggExprItem) *Operator {
	return &Operator{Kind: KindAggregate, Input: input, GroupKeys: groupKeys, Aggs: aggs}
}

func Sort(input *Operator, keys []SortKey) *Operator {
	return &Operator{Kind: KindSort, Input: input, SortKeys: keys}
}

func Limit(input *Operator, n, offset *int) *Operator {
	return &Operator{Kind: KindLimit, Input: input, Limit: n, Offset: offset}
}

func Join(left, right *Operator, kind JoinKind, cond expression.Expr) *Operator {
	return &Operator{Kind: KindJoin, Left: left, Right: right, JoinKind: kind, JoinCondition: cond}
}

// VisibleColumn is one entry of the incoming/outgoing `visible_columns`
// set an OperatorTranslator threads through the tree (§4.5).
type VisibleColumn struct {
	Name   string
	Column *types.Column
}
