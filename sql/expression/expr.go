// Package expression implements the Expr tagged variant and the
// ExpressionTranslator (§4.4): converting scalar expressions into a pair
// of an aggregation-stage form (always available) and, where possible, a
// match-stage form (index-friendly).
package expression

import (
	"github.com/docsql/engine/sql/docvalue"
	"github.com/docsql/engine/sql/types"
)

// Op names a Call's operator. Kept as a string rather than an int enum so
// translate.go's dispatch switch doubles as documentation of every
// supported construct.
type Op string

const (
	OpAdd    Op = "+"
	OpSub    Op = "-"
	OpMul    Op = "*"
	OpDiv    Op = "/"
	OpMod    Op = "mod"
	OpIntDiv Op = "intdiv"

	OpEq Op = "="
	OpNe Op = "<>"
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="

	OpAnd Op = "AND"
	OpOr  Op = "OR"
	OpNot Op = "NOT"

	OpIsNull    Op = "IS NULL"
	OpIsNotNull Op = "IS NOT NULL"

	OpCase Op = "CASE"
	OpCast Op = "CAST"

	OpSubstring Op = "SUBSTRING"

	OpTimestampAdd  Op = "TIMESTAMPADD"
	OpTimestampDiff Op = "TIMESTAMPDIFF"
	OpFloor         Op = "FLOOR"
	OpExtractQuarter Op = "EXTRACT_QUARTER"
	OpDayName       Op = "DAYNAME"
	OpMonthName     Op = "MONTHNAME"
)

// ExprKind tags the variant a given Expr node holds (Design Notes §9:
// "Expression trees map to a tagged-variant Expr").
type ExprKind int

const (
	KindLiteral ExprKind = iota
	KindColumnRef
	KindCall
)

// Expr is the single tagged-variant expression node. Only the fields
// relevant to Kind are meaningful; Call nodes additionally use CastTarget
// (OpCast only) and Unit (the date/time operators only).
type Expr struct {
	Kind ExprKind

	Literal docvalue.Value
	Column  *types.Column

	Op   Op
	Args []Expr

	CastTarget types.ColumnType
	Unit       string
}

func Lit(v docvalue.Value) Expr { return Expr{Kind: KindLiteral, Literal: v} }

func Col(c *types.Column) Expr { return Expr{Kind: KindColumnRef, Column: c} }

func Call(op Op, args ...Expr) Expr { return Expr{Kind: KindCall, Op: op, Args: args} }

func Cast(e Expr, target types.ColumnType) Expr {
	return Expr{Kind: KindCall, Op: OpCast, Args: []Expr{e}, CastTarget: target}
}

// DateCall builds a date/time operator call carrying its unit (DAY, WEEK,
// QUARTER, ...) alongside its operand expressions.
func DateCall(op Op, unit string, args ...Expr) Expr {
	return Expr{Kind: KindCall, Op: op, Args: args, Unit: unit}
}

// Case builds a CASE expression from (condition, result) pairs plus an
// optional trailing default (odd-length args has a default, even-length
// falls through to SQL NULL when no branch matches).
func Case(branches []Expr, deflt *Expr) Expr {
	args := append([]Expr(nil), branches...)
	if deflt != nil {
		args = append(args, *deflt)
	}
	return Expr{Kind: KindCall, Op: OpCase, Args: args}
}
