package expression

import (
	"fmt"

	"github.com/docsql/engine/sql/coreerr"
	"github.com/docsql/engine/sql/docvalue"
	"github.com/docsql/engine/sql/types"
)

func intLiteral(i int64) docvalue.Value { return docvalue.Int64(i) }

// AggExpr is an aggregation-pipeline expression document: always producible,
// works inside $project/$group/$match alike. Kept as interface{} rather than
// a typed tree because the document client's wire shape (mirrored by
// docclient.Stage.Spec) is itself untyped — there is no benefit to typing
// one side of that boundary and not the other.
type AggExpr = interface{}

// MatchExpr is a $match-stage filter document, produced only when the
// source Expr has the shape `field OP literal` (or the reverse) or a
// conjunction/disjunction of such (§4.4).
type MatchExpr = interface{}

// Translator is the ExpressionTranslator (§4.4). It is stateless except
// for the caller-supplied Locale used by DAYNAME/MONTHNAME (§9: "require
// the caller to pass a locale to the compiler... never capture it
// statically").
type Translator struct {
	Locale Locale
}

func New(locale Locale) *Translator {
	return &Translator{Locale: locale}
}

// Translate produces the (AggExpr, MatchExpr) pair for e. match is nil
// when e has no index-friendly match-stage form.
func (t *Translator) Translate(e Expr) (AggExpr, MatchExpr, error) {
	agg, err := t.agg(e)
	if err != nil {
		return nil, nil, err
	}
	match, _ := t.match(e)
	return agg, match, nil
}

func (t *Translator) agg(e Expr) (AggExpr, error) {
	switch e.Kind {
	case KindLiteral:
		return literalExpr(rawValue(e.Literal)), nil
	case KindColumnRef:
		return fieldRef(e.Column), nil
	case KindCall:
		return t.aggCall(e)
	default:
		return nil, coreerr.ErrUnsupported.New(fmt.Sprintf("expression kind %d", e.Kind))
	}
}

func (t *Translator) aggArgs(args []Expr) ([]AggExpr, error) {
	out := make([]AggExpr, 0, len(args))
	for _, a := range args {
		v, err := t.agg(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (t *Translator) aggCall(e Expr) (AggExpr, error) {
	switch e.Op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return t.arithmetic(e)
	case OpIntDiv:
		return t.integerDivide(e)
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return t.comparison(e)
	case OpAnd:
		return t.kleeneAnd(e.Args)
	case OpOr:
		return t.kleeneOr(e.Args)
	case OpNot:
		return t.kleeneNot(e.Args[0])
	case OpIsNull:
		return t.isNull(e.Args[0], true)
	case OpIsNotNull:
		return t.isNull(e.Args[0], false)
	case OpCase:
		return t.caseExpr(e)
	case OpCast:
		return t.cast(e)
	case OpSubstring:
		return t.substring(e)
	case OpTimestampAdd:
		return t.timestampAdd(e)
	case OpTimestampDiff:
		return t.timestampDiff(e)
	case OpFloor:
		return t.floorToUnit(e)
	case OpExtractQuarter:
		return t.extractQuarter(e)
	case OpDayName:
		return t.dayName(e)
	case OpMonthName:
		return t.monthName(e)
	default:
		return nil, coreerr.ErrUnsupported.New(fmt.Sprintf("operator %q", e.Op))
	}
}

var mongoArith = map[Op]string{
	OpAdd: "$add", OpSub: "$subtract", OpMul: "$multiply", OpDiv: "$divide", OpMod: "$mod",
}

func (t *Translator) arithmetic(e Expr) (AggExpr, error) {
	args, err := t.aggArgs(e.Args)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{mongoArith[e.Op]: args}, nil
}

// integerDivide implements §4.4's `(v - (v mod d)) / d` identity so the
// quotient truncates toward zero the way SQL integer division does.
func (t *Translator) integerDivide(e Expr) (AggExpr, error) {
	v, d := e.Args[0], e.Args[1]
	truncated := Call(OpSub, v, Call(OpMod, v, d))
	return t.agg(Call(OpDiv, truncated, d))
}

var mongoCmp = map[Op]string{
	OpEq: "$eq", OpNe: "$ne", OpLt: "$lt", OpLe: "$lte", OpGt: "$gt", OpGe: "$gte",
}

// comparison wraps every comparison in three-valued logic (§4.4): if
// either operand is missing or null, the result is null, not false or
// true. ObjectId specialization (§4.4) is applied for `=`/`<>` when one
// side names an ObjectId-typed column.
func (t *Translator) comparison(e Expr) (AggExpr, error) {
	if spec, ok := t.objectIDSpecialization(e); ok {
		return spec, nil
	}
	lhs, err := t.agg(e.Args[0])
	if err != nil {
		return nil, err
	}
	rhs, err := t.agg(e.Args[1])
	if err != nil {
		return nil, err
	}
	cmp := map[string]interface{}{mongoCmp[e.Op]: []AggExpr{lhs, rhs}}
	return wrapNullable([]AggExpr{lhs, rhs}, cmp), nil
}

// wrapNullable implements the `cond(any-null, null, inner)` pattern every
// comparison goes through.
func wrapNullable(operands []AggExpr, inner AggExpr) AggExpr {
	checks := make([]AggExpr, 0, len(operands))
	for _, op := range operands {
		checks = append(checks, map[string]interface{}{"$eq": []AggExpr{op, nil}})
	}
	var anyNull AggExpr
	if len(checks) == 1 {
		anyNull = checks[0]
	} else {
		anyNull = map[string]interface{}{"$or": checks}
	}
	return map[string]interface{}{"$cond": map[string]interface{}{
		"if": anyNull, "then": nil, "else": inner,
	}}
}

// kleeneAnd implements AND's Kleene truth table: false if any operand is
// false, else null if any is null, else true (§4.4).
func (t *Translator) kleeneAnd(args []Expr) (AggExpr, error) {
	aggs, err := t.aggArgs(args)
	if err != nil {
		return nil, err
	}
	anyFalse := orOf(eqEach(aggs, false))
	anyNull := orOf(eqEach(aggs, nil))
	return map[string]interface{}{"$cond": map[string]interface{}{
		"if": anyFalse, "then": false,
		"else": map[string]interface{}{"$cond": map[string]interface{}{
			"if": anyNull, "then": nil, "else": true,
		}},
	}}, nil
}

// kleeneOr implements OR's Kleene truth table: true if any operand is
// true, else null if any is null, else false.
func (t *Translator) kleeneOr(args []Expr) (AggExpr, error) {
	aggs, err := t.aggArgs(args)
	if err != nil {
		return nil, err
	}
	anyTrue := orOf(eqEach(aggs, true))
	anyNull := orOf(eqEach(aggs, nil))
	return map[string]interface{}{"$cond": map[string]interface{}{
		"if": anyTrue, "then": true,
		"else": map[string]interface{}{"$cond": map[string]interface{}{
			"if": anyNull, "then": nil, "else": false,
		}},
	}}, nil
}

func (t *Translator) kleeneNot(arg Expr) (AggExpr, error) {
	v, err := t.agg(arg)
	if err != nil {
		return nil, err
	}
	return wrapNullable([]AggExpr{v}, map[string]interface{}{"$not": []AggExpr{v}}), nil
}

func eqEach(aggs []AggExpr, want interface{}) []AggExpr {
	out := make([]AggExpr, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, map[string]interface{}{"$eq": []AggExpr{a, want}})
	}
	return out
}

func orOf(checks []AggExpr) AggExpr {
	if len(checks) == 1 {
		return checks[0]
	}
	return map[string]interface{}{"$or": checks}
}

// isNull implements §9's documented `$lte null` / `$gt null` mapping,
// relying on the document engine's type-ordering convention to conflate
// missing and null (flagged as an Open Question in DESIGN.md: any engine
// where that conflation differs needs an explicit $or of existence checks
// instead).
func (t *Translator) isNull(arg Expr, isNull bool) (AggExpr, error) {
	v, err := t.agg(arg)
	if err != nil {
		return nil, err
	}
	op := "$lte"
	if !isNull {
		op = "$gt"
	}
	return map[string]interface{}{op: []AggExpr{v, nil}}, nil
}

// caseExpr translates to $switch; an even-length Args list has no default
// and falls through to SQL NULL when no branch matches.
func (t *Translator) caseExpr(e Expr) (AggExpr, error) {
	hasDefault := len(e.Args)%2 == 1
	n := len(e.Args)
	if hasDefault {
		n--
	}
	branches := make([]interface{}, 0, n/2)
	for i := 0; i+1 < n; i += 2 {
		cond, err := t.agg(e.Args[i])
		if err != nil {
			return nil, err
		}
		result, err := t.agg(e.Args[i+1])
		if err != nil {
			return nil, err
		}
		branches = append(branches, map[string]interface{}{"case": cond, "then": result})
	}
	sw := map[string]interface{}{"branches": branches}
	if hasDefault {
		d, err := t.agg(e.Args[len(e.Args)-1])
		if err != nil {
			return nil, err
		}
		sw["default"] = d
	} else {
		sw["default"] = nil
	}
	return map[string]interface{}{"$switch": sw}, nil
}

var mongoConvertTarget = map[types.ColumnType]string{
	types.TINYINT: "int", types.SMALLINT: "int", types.INTEGER: "int",
	types.BIGINT: "long", types.DOUBLE: "double", types.DECIMAL: "decimal",
}

// cast implements §4.4's CAST rule: numeric<->numeric supported via
// $convert; everything else (string<->date in particular) is an explicit
// Unsupported, per §9's "a clear Unsupported error rather than silent
// wrong results."
func (t *Translator) cast(e Expr) (AggExpr, error) {
	target, ok := mongoConvertTarget[e.CastTarget]
	if !ok {
		return nil, coreerr.UnsupportedConversion(fmt.Sprintf("CAST to %s", e.CastTarget))
	}
	v, err := t.agg(e.Args[0])
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"$convert": map[string]interface{}{"input": v, "to": target}}, nil
}

// substring converts SQL's 1-indexed start to the engine's 0-indexed
// $substrCP start (§4.4).
func (t *Translator) substring(e Expr) (AggExpr, error) {
	str, err := t.agg(e.Args[0])
	if err != nil {
		return nil, err
	}
	startExpr := e.Args[1]
	zeroIndexed := Call(OpSub, startExpr, Lit(intLiteral(1)))
	start, err := t.agg(zeroIndexed)
	if err != nil {
		return nil, err
	}
	if len(e.Args) == 2 {
		return map[string]interface{}{"$substrCP": []AggExpr{str, start, map[string]interface{}{"$strLenCP": str}}}, nil
	}
	length, err := t.agg(e.Args[2])
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"$substrCP": []AggExpr{str, start, length}}, nil
}
