package expression

import (
	"regexp"

	"github.com/docsql/engine/sql/docvalue"
)

var hexObjectID = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// objectIDSpecialization implements §4.4: when one side of an = / <>
// comparison is a field whose declared document type is ObjectId and the
// other is a literal that could represent one (24-char hex string or
// 12-byte binary), emit an OR of two branches — one comparing against
// {$oid: hex}, one comparing against the literal as-is — so the query
// matches regardless of which representation the client sent.
func (t *Translator) objectIDSpecialization(e Expr) (AggExpr, bool) {
	if e.Op != OpEq && e.Op != OpNe {
		return nil, false
	}
	col, lit, ok := objectIDPair(e.Args[0], e.Args[1])
	if !ok {
		return nil, false
	}
	hex, ok := objectIDHex(lit.Literal)
	if !ok {
		return nil, false
	}

	field := fieldRef(col.Column)
	asOid := map[string]interface{}{mongoCmp[e.Op]: []AggExpr{field, literalExpr(map[string]interface{}{"$oid": hex})}}
	asLiteral := map[string]interface{}{mongoCmp[e.Op]: []AggExpr{field, literalExpr(rawValue(lit.Literal))}}
	or := map[string]interface{}{"$or": []interface{}{asOid, asLiteral}}
	return wrapNullable([]AggExpr{field}, or), true
}

func objectIDPair(a, b Expr) (col Expr, lit Expr, ok bool) {
	if a.Kind == KindColumnRef && a.Column.IsObjectID && b.Kind == KindLiteral {
		return a, b, true
	}
	if b.Kind == KindColumnRef && b.Column.IsObjectID && a.Kind == KindLiteral {
		return b, a, true
	}
	return Expr{}, Expr{}, false
}

func objectIDHex(v docvalue.Value) (string, bool) {
	switch v.Kind() {
	case docvalue.KindObjectID:
		return v.AsObjectIDHex(), true
	case docvalue.KindString:
		if hexObjectID.MatchString(v.AsString()) {
			return v.AsString(), true
		}
	case docvalue.KindBinary:
		if len(v.AsBinary()) == 12 {
			return hexEncode(v.AsBinary()), true
		}
	}
	return "", false
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}
