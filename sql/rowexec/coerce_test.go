package rowexec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsql/engine/sql/docvalue"
	"github.com/docsql/engine/sql/types"
)

// TestCoerceValueVarcharRendersLatticeConflictScalars grounds §8 scenario
// S1: array elements observed as objects in one document and as numbers
// in another lattice-join to VARCHAR (§4.1), but individual
// documents still hold their original scalar Kind. Every such value must
// come back through coerceValue as the VARCHAR text form, not its
// original numeric/bool/etc. Kind.
func TestCoerceValueVarcharRendersLatticeConflictScalars(t *testing.T) {
	cases := []struct {
		name string
		in   docvalue.Value
		want string
	}{
		{"int32", docvalue.Int32(1), "1"},
		{"int64", docvalue.Int64(2), "2"},
		{"double", docvalue.Double(3.5), "3.5"},
		{"decimal", docvalue.Decimal128("4.20"), "4.20"},
		{"bool", docvalue.Bool(true), "true"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, err := coerceValue(c.in, types.VARCHAR)
			require.NoError(t, err)
			assert.Equal(t, docvalue.KindString, out.Kind())
			assert.Equal(t, c.want, out.AsString())
		})
	}
}

func TestCoerceValueVarcharPassesThroughStrings(t *testing.T) {
	out, err := coerceValue(docvalue.String("already a string"), types.VARCHAR)
	require.NoError(t, err)
	assert.Equal(t, "already a string", out.AsString())
}

func TestCoerceValueVarcharRendersObjectIDAsHex(t *testing.T) {
	out, err := coerceValue(docvalue.ObjectID("507f1f77bcf86cd799439011"), types.VARCHAR)
	require.NoError(t, err)
	assert.Equal(t, docvalue.KindString, out.Kind())
	assert.Equal(t, "507f1f77bcf86cd799439011", out.AsString())
}

func TestCoerceValueVarcharRendersBinaryAsHex(t *testing.T) {
	out, err := coerceValue(docvalue.Binary([]byte{0xde, 0xad, 0xbe, 0xef}), types.VARCHAR)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", out.AsString())
}

func TestCoerceValueVarcharRendersDateTimeAsExtendedJSON(t *testing.T) {
	dt := docvalue.DateTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	out, err := coerceValue(dt, types.VARCHAR)
	require.NoError(t, err)
	assert.Equal(t, dt.CanonicalJSON(), out.AsString())
}

func TestCoerceValueNonVarcharDateTimePassesThrough(t *testing.T) {
	// A TIMESTAMP-declared column keeps DateTime identity; only a VARCHAR
	// target triggers text rendering.
	dt := docvalue.DateTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	out, err := coerceValue(dt, types.TIMESTAMP)
	require.NoError(t, err)
	assert.Equal(t, docvalue.KindDateTime, out.Kind())
}
