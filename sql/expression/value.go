package expression

import (
	"github.com/docsql/engine/sql/docvalue"
	"github.com/docsql/engine/sql/types"
)

// rawValue lowers a docvalue.Value into the plain Go value the document
// client's wire encoding expects inside a $literal or as a $match
// comparison operand — the same shapes docclient.Stage.Spec carries elsewhere.
func rawValue(v docvalue.Value) interface{} {
	switch v.Kind() {
	case docvalue.KindNull:
		return nil
	case docvalue.KindBool:
		return v.AsBool()
	case docvalue.KindInt32, docvalue.KindInt64:
		return v.AsInt()
	case docvalue.KindDouble:
		return v.AsDouble()
	case docvalue.KindDecimal128:
		return map[string]interface{}{"$numberDecimal": v.AsDecimalText()}
	case docvalue.KindString:
		return v.AsString()
	case docvalue.KindBinary:
		return v.AsBinary()
	case docvalue.KindObjectID:
		return map[string]interface{}{"$oid": v.AsObjectIDHex()}
	case docvalue.KindDateTime:
		return v.AsDateTime()
	case docvalue.KindTimestamp:
		ts := v.AsTimestamp()
		return map[string]interface{}{"$timestamp": map[string]interface{}{"t": ts.Seconds, "i": ts.Ordinal}}
	case docvalue.KindMinKey:
		return "MinKey"
	case docvalue.KindMaxKey:
		return "MaxKey"
	case docvalue.KindArray:
		out := make([]interface{}, 0, len(v.AsArray()))
		for _, e := range v.AsArray() {
			out = append(out, rawValue(e))
		}
		return out
	case docvalue.KindObject:
		out := map[string]interface{}{}
		for _, f := range v.AsObject() {
			out[f.Name] = rawValue(f.Value)
		}
		return out
	default:
		return nil
	}
}

// literalExpr wraps a raw value as an aggregation-expression literal.
func literalExpr(raw interface{}) interface{} {
	return map[string]interface{}{"$literal": raw}
}

// fieldRef returns the "$dotted.path" aggregation-expression field
// reference for a virtual column, falling back to its bare name for
// synthetic columns with no document-side path (e.g. array_index_lvl_N).
func fieldRef(c *types.Column) string {
	if c.SourceFieldPath != "" {
		return "$" + c.SourceFieldPath
	}
	return "$" + c.Name
}
