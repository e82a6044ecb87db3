package expression

import "github.com/docsql/engine/sql/types"

// match attempts to produce the index-friendly $match-stage form of e:
// `field OP literal` (or the reverse), or a conjunction/disjunction of
// such (§4.4). The bool return is false when no match form exists, in
// which case the filter falls back to OperatorTranslator's flag-column
// path (§4.5). Comparisons that take the ObjectId specialization have no
// match form, so a filter on them uses the specialized aggregation form.
func (t *Translator) match(e Expr) (MatchExpr, bool) {
	if e.Kind != KindCall {
		return nil, false
	}
	switch e.Op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return t.matchComparison(e)
	case OpAnd:
		return t.matchConjunction(e.Args, "$and")
	case OpOr:
		return t.matchConjunction(e.Args, "$or")
	default:
		return nil, false
	}
}

func (t *Translator) matchComparison(e Expr) (MatchExpr, bool) {
	if _, special := t.objectIDSpecialization(e); special {
		return nil, false
	}
	lhs, rhs := e.Args[0], e.Args[1]
	op := e.Op
	field, lit, ok := fieldLiteralPair(lhs, rhs)
	if !ok {
		field, lit, ok = fieldLiteralPair(rhs, lhs)
		if ok {
			op = flip(op)
		}
	}
	if !ok {
		return nil, false
	}
	mop, known := mongoCmp[op]
	if !known {
		return nil, false
	}
	return map[string]interface{}{matchFieldName(field.Column): map[string]interface{}{mop: rawValue(lit.Literal)}}, true
}

// matchFieldName returns the bare (unprefixed) field path a $match stage
// key uses, as opposed to fieldRef's "$"-prefixed aggregation-expression
// reference.
func matchFieldName(c *types.Column) string {
	if c.SourceFieldPath != "" {
		return c.SourceFieldPath
	}
	return c.Name
}

func fieldLiteralPair(a, b Expr) (col Expr, lit Expr, ok bool) {
	if a.Kind == KindColumnRef && b.Kind == KindLiteral {
		return a, b, true
	}
	return Expr{}, Expr{}, false
}

func flip(op Op) Op {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return op
	}
}

func (t *Translator) matchConjunction(args []Expr, mongoOp string) (MatchExpr, bool) {
	parts := make([]interface{}, 0, len(args))
	for _, a := range args {
		m, ok := t.match(a)
		if !ok {
			return nil, false
		}
		parts = append(parts, m)
	}
	return map[string]interface{}{mongoOp: parts}, true
}
