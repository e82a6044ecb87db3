package rowexec

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cast"

	"github.com/docsql/engine/sql/compiler"
	"github.com/docsql/engine/sql/coreerr"
	"github.com/docsql/engine/sql/docvalue"
	"github.com/docsql/engine/sql/types"
)

// coerceRow implements §4.7's per-row type coercion: numeric widening,
// DateTime -> TIMESTAMP, Binary -> VARBINARY, Object/Array -> VARCHAR
// (canonical extended-JSON, field order preserved from source), MinKey/
// MaxKey -> the literal strings "MinKey"/"MaxKey". Per §7's
// DataTypeConflict policy, coercion failure is row-level but not
// row-fatal: the offending column becomes NULL and the error comes back
// as a warning; the row itself is still returned.
func coerceRow(doc docvalue.Value, cols []compiler.OutputColumn) (Row, []error) {
	values := make([]docvalue.Value, len(cols))
	var warnings []error
	for i, c := range cols {
		v, present := doc.Field(c.Name)
		if !present || v.IsNullish() {
			values[i] = docvalue.Null()
			if !c.Nullable {
				warnings = append(warnings, coreerr.ErrDataTypeConflict.New(c.Name, c.Type.String()))
			}
			continue
		}
		coerced, err := coerceValue(v, c.Type)
		if err != nil {
			values[i] = docvalue.Null()
			warnings = append(warnings, err)
			continue
		}
		values[i] = coerced
	}
	return Row{Values: values}, warnings
}

func coerceValue(v docvalue.Value, target types.ColumnType) (docvalue.Value, error) {
	switch v.Kind() {
	case docvalue.KindObject, docvalue.KindArray:
		return docvalue.String(v.CanonicalJSON()), nil
	case docvalue.KindMinKey:
		return docvalue.String("MinKey"), nil
	case docvalue.KindMaxKey:
		return docvalue.String("MaxKey"), nil
	}

	// A lattice conflict (§4.1) can declare a column VARCHAR while a given
	// document's raw value is still some other scalar kind — every such
	// value must render to its VARCHAR text form, not pass through with its
	// original Kind(), or the row's value stops matching the column's
	// declared type (§6.5).
	if target == types.VARCHAR && v.Kind() != docvalue.KindString {
		return docvalue.String(varcharText(v)), nil
	}

	if target.IsNumeric() {
		return coerceNumeric(v, target)
	}
	return v, nil
}

// varcharText renders a scalar document value to the text a VARCHAR
// column holds for it: numeric literal text, "true"/"false", decimal
// text as stored, hex for binary/ObjectId, extended-JSON for dates.
func varcharText(v docvalue.Value) string {
	switch v.Kind() {
	case docvalue.KindBool:
		return strconv.FormatBool(v.AsBool())
	case docvalue.KindInt32, docvalue.KindInt64:
		return strconv.FormatInt(v.AsInt(), 10)
	case docvalue.KindDouble:
		return strconv.FormatFloat(v.AsDouble(), 'g', -1, 64)
	case docvalue.KindDecimal128:
		return v.AsDecimalText()
	case docvalue.KindBinary:
		return hex.EncodeToString(v.AsBinary())
	case docvalue.KindObjectID:
		return v.AsObjectIDHex()
	default:
		// DateTime/Timestamp and anything else fall back to the same
		// canonical extended-JSON form Object/Array columns use.
		return v.CanonicalJSON()
	}
}

func coerceNumeric(v docvalue.Value, target types.ColumnType) (docvalue.Value, error) {
	var raw interface{}
	switch v.Kind() {
	case docvalue.KindInt32, docvalue.KindInt64:
		raw = v.AsInt()
	case docvalue.KindDouble:
		raw = v.AsDouble()
	case docvalue.KindDecimal128:
		raw = v.AsDecimalText()
	case docvalue.KindString:
		raw = v.AsString()
	default:
		return docvalue.Value{}, coreerr.ErrDataTypeConflict.New(fmt.Sprintf("<%s>", v.Kind()), target.String())
	}

	switch target {
	case types.TINYINT, types.SMALLINT, types.INTEGER:
		i, err := cast.ToInt32E(raw)
		if err != nil {
			return docvalue.Value{}, coreerr.ErrDataTypeConflict.New(fmt.Sprintf("%v", raw), target.String())
		}
		return docvalue.Int32(i), nil
	case types.BIGINT:
		i, err := cast.ToInt64E(raw)
		if err != nil {
			return docvalue.Value{}, coreerr.ErrDataTypeConflict.New(fmt.Sprintf("%v", raw), target.String())
		}
		return docvalue.Int64(i), nil
	case types.DOUBLE:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return docvalue.Value{}, coreerr.ErrDataTypeConflict.New(fmt.Sprintf("%v", raw), target.String())
		}
		return docvalue.Double(f), nil
	case types.DECIMAL:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return docvalue.Value{}, coreerr.ErrDataTypeConflict.New(fmt.Sprintf("%v", raw), target.String())
		}
		return docvalue.Decimal128(s), nil
	default:
		return v, nil
	}
}
