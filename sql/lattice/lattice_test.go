package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docsql/engine/sql/docvalue"
	"github.com/docsql/engine/sql/types"
)

func TestJoinPromotions(t *testing.T) {
	tests := []struct {
		name string
		obs  []docvalue.Kind
		want types.ColumnType
	}{
		{"int32 alone", []docvalue.Kind{docvalue.KindInt32}, types.INTEGER},
		{"int32 then int64 widens to bigint", []docvalue.Kind{docvalue.KindInt32, docvalue.KindInt64}, types.BIGINT},
		{"int widens to double", []docvalue.Kind{docvalue.KindInt32, docvalue.KindDouble}, types.DOUBLE},
		{"double widens to decimal", []docvalue.Kind{docvalue.KindDouble, docvalue.KindDecimal128}, types.DECIMAL},
		{"date joins timestamp", []docvalue.Kind{docvalue.KindDateTime, docvalue.KindTimestamp}, types.TIMESTAMP},
		{"date joins non-temporal to varchar", []docvalue.Kind{docvalue.KindDateTime, docvalue.KindString}, types.VARCHAR},
		{"bool never mixes with numeric", []docvalue.Kind{docvalue.KindBool, docvalue.KindInt32}, types.VARCHAR},
		{"object conflicts with scalar", []docvalue.Kind{docvalue.KindObject, docvalue.KindString}, types.VARCHAR},
		{"array conflicts with scalar", []docvalue.Kind{docvalue.KindArray, docvalue.KindInt32}, types.VARCHAR},
		{"object vs array", []docvalue.Kind{docvalue.KindObject, docvalue.KindArray}, types.VARCHAR},
		{"minkey poisons anything", []docvalue.Kind{docvalue.KindMinKey, docvalue.KindInt32}, types.VARCHAR},
		{"binary poisons anything", []docvalue.Kind{docvalue.KindBinary, docvalue.KindString}, types.VARCHAR},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var s State
			for _, o := range tc.obs {
				s = s.Join(o)
			}
			assert.Equal(t, tc.want, s.Resolved())
		})
	}
}

func TestJoinWithNullNeverChangesType(t *testing.T) {
	var s State
	s = s.Join(docvalue.KindInt32)
	before := s.Resolved()
	s = s.Join(docvalue.KindNull)
	assert.Equal(t, before, s.Resolved())
	assert.True(t, s.Nullable)
}

// TestMonotonicity asserts §8 property 2: adding an observation can only
// move a type up the lattice, never down, and VARCHAR is a fixed point.
func TestMonotonicity(t *testing.T) {
	rank := map[types.ColumnType]int{
		types.NULLTYPE: 0, types.BOOLEAN: 1, types.INTEGER: 1, types.BIGINT: 2,
		types.DOUBLE: 3, types.DECIMAL: 4, types.TIMESTAMP: 1, types.VARCHAR: 100,
	}
	kinds := []docvalue.Kind{
		docvalue.KindInt32, docvalue.KindInt64, docvalue.KindDouble, docvalue.KindDecimal128,
		docvalue.KindString, docvalue.KindBool, docvalue.KindDateTime, docvalue.KindObject, docvalue.KindArray,
	}
	for _, start := range kinds {
		s := State{}.Join(start)
		for _, next := range kinds {
			before := rank[s.Resolved()]
			after := rank[s.Join(next).Resolved()]
			assert.GreaterOrEqual(t, after, before, "join must never move down the lattice")
		}
	}
	// VARCHAR is absorbing.
	s := State{}.Join(docvalue.KindObject).Join(docvalue.KindString)
	assert.Equal(t, types.VARCHAR, s.Resolved())
	for _, next := range kinds {
		assert.Equal(t, types.VARCHAR, s.Join(next).Resolved())
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
