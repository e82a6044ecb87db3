// Package lattice implements the TypeLattice (§4.1): the monotonic join
// rule set that folds a stream of observed document field types into a
// single relational column type.
package lattice

import (
	"github.com/docsql/engine/sql/docvalue"
	"github.com/docsql/engine/sql/types"
)

// Observation is one sighting of a field's document type, used as the
// lattice's join operand. Object/Array observations carry no extra data
// here — SchemaInference tracks their sub-structure separately and only
// feeds this lattice the shape tag.
type Observation = docvalue.Kind

// State is the lattice element accumulated across observations for one
// field: a resolved column type plus whether a Null/missing observation
// was ever seen (nullable).
type State struct {
	resolved types.ColumnType
	set      bool
	Nullable bool
}

// Join folds one more observation into the running State, returning the
// updated State. Join never fails: the worst case is VARCHAR, the
// lattice's top element (§4.1 "Failure").
func (s State) Join(obs Observation) State {
	if obs == docvalue.KindNull {
		s.Nullable = true
		return s
	}
	incoming := baseType(obs)
	if !s.set {
		s.resolved = incoming
		s.set = true
		return s
	}
	s.resolved = join(s.resolved, incoming)
	return s
}

// Resolved returns the column type accumulated so far; an empty State (no
// non-null observation yet) resolves to NULLTYPE per §3's NULL column type.
func (s State) Resolved() types.ColumnType {
	if !s.set {
		return types.NULLTYPE
	}
	return s.resolved
}

// baseType maps a single document Kind to its "natural" unjoined column
// type, prior to any promotion against a second observation.
func baseType(k docvalue.Kind) types.ColumnType {
	switch k {
	case docvalue.KindBool:
		return types.BOOLEAN
	case docvalue.KindInt32:
		return types.INTEGER
	case docvalue.KindInt64:
		return types.BIGINT
	case docvalue.KindDouble:
		return types.DOUBLE
	case docvalue.KindDecimal128:
		return types.DECIMAL
	case docvalue.KindString:
		return types.VARCHAR
	case docvalue.KindBinary:
		return types.VARBINARY
	case docvalue.KindObjectID:
		return types.VARCHAR
	case docvalue.KindDateTime:
		return types.TIMESTAMP
	case docvalue.KindTimestamp:
		return types.TIMESTAMP
	case docvalue.KindMinKey, docvalue.KindMaxKey:
		return types.VARCHAR
	case docvalue.KindArray, docvalue.KindObject:
		return types.VARCHAR
	default:
		return types.NULLTYPE
	}
}

// shapeOf buckets a column type into the coarse category the §4.1 rules
// discriminate on: numeric, temporal, textual(varchar/varbinary), boolean,
// or "structural" (object/array, which base-type as VARCHAR but are
// tracked distinctly only by SchemaInference, not here).
type shape int

const (
	shapeNumeric shape = iota
	shapeTemporal
	shapeBoolean
	shapeText
)

func shapeOf(t types.ColumnType) shape {
	switch t {
	case types.TINYINT, types.SMALLINT, types.INTEGER, types.BIGINT, types.DECIMAL, types.DOUBLE:
		return shapeNumeric
	case types.DATE, types.TIME, types.TIMESTAMP:
		return shapeTemporal
	case types.BOOLEAN:
		return shapeBoolean
	default:
		return shapeText
	}
}

// numericRank orders numeric types by safety of conversion, least to most
// general: INTEGER < BIGINT < DOUBLE < DECIMAL. TINYINT/SMALLINT never
// arise from document observation (no document type maps to them), so they
// are treated as INTEGER-rank here; they only appear as a declared column
// type when schemas are hand-authored outside of inference.
func numericRank(t types.ColumnType) int {
	switch t {
	case types.TINYINT, types.SMALLINT, types.INTEGER:
		return 0
	case types.BIGINT:
		return 1
	case types.DOUBLE:
		return 2
	case types.DECIMAL:
		return 3
	default:
		return -1
	}
}

// join implements the §4.1 promotion table for two already-resolved,
// non-null column types.
func join(a, b types.ColumnType) types.ColumnType {
	if a == b {
		return a
	}

	sa, sb := shapeOf(a), shapeOf(b)

	// Bool never mixes with numeric: Bool ⊔ numeric = VARCHAR.
	if (sa == shapeBoolean && sb == shapeNumeric) || (sb == shapeBoolean && sa == shapeNumeric) {
		return types.VARCHAR
	}

	// Date ⊔ Timestamp = TIMESTAMP; Date/Timestamp ⊔ anything else non-temporal = VARCHAR.
	if sa == shapeTemporal && sb == shapeTemporal {
		return types.TIMESTAMP
	}
	if sa == shapeTemporal || sb == shapeTemporal {
		return types.VARCHAR
	}

	// Numeric ⊔ numeric: widen by rank. Int* ⊔ Double = DOUBLE;
	// Int*|Double ⊔ Decimal128 = DECIMAL.
	if sa == shapeNumeric && sb == shapeNumeric {
		ra, rb := numericRank(a), numericRank(b)
		if ra > rb {
			return a
		}
		return b
	}

	// Anything else (object/array/text mixed with numeric, bool with
	// text, structural with scalar) collapses to the lattice's top.
	return types.VARCHAR
}

// Top is the lattice's top element: every unresolved conflict lands here.
const Top = types.VARCHAR
