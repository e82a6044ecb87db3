// Package types defines the relational (SQL) column type system that
// virtual tables expose, as distinct from the document value kinds in
// docvalue.
package types

// ColumnType is the SQL type a virtual column is declared to carry.
type ColumnType int

const (
	BOOLEAN ColumnType = iota
	TINYINT
	SMALLINT
	INTEGER
	BIGINT
	DECIMAL
	DOUBLE
	VARCHAR
	VARBINARY
	DATE
	TIME
	TIMESTAMP
	NULLTYPE
)

func (t ColumnType) String() string {
	switch t {
	case BOOLEAN:
		return "BOOLEAN"
	case TINYINT:
		return "TINYINT"
	case SMALLINT:
		return "SMALLINT"
	case INTEGER:
		return "INTEGER"
	case BIGINT:
		return "BIGINT"
	case DECIMAL:
		return "DECIMAL"
	case DOUBLE:
		return "DOUBLE"
	case VARCHAR:
		return "VARCHAR"
	case VARBINARY:
		return "VARBINARY"
	case DATE:
		return "DATE"
	case TIME:
		return "TIME"
	case TIMESTAMP:
		return "TIMESTAMP"
	case NULLTYPE:
		return "NULL"
	default:
		return "UNKNOWN"
	}
}

// IsNumeric reports whether t is one of the numeric widenings the lattice
// can promote between (used by the executor's numeric coercion).
func (t ColumnType) IsNumeric() bool {
	switch t {
	case TINYINT, SMALLINT, INTEGER, BIGINT, DECIMAL, DOUBLE:
		return true
	default:
		return false
	}
}

// TableID is a stable hash of (schema_name, collection, path) — a pure
// function of semantic identity, never a generated sequence number (§4.2).
type TableID uint64

// ColumnID is a stable hash of (table_id, field_name).
type ColumnID uint64

// ForeignKey names a single referenced column in a parent/related table.
type ForeignKey struct {
	Column    ColumnID
	RefTable  TableID
	RefColumn ColumnID
}

// Column is one relational column of a virtual table.
type Column struct {
	ID              ColumnID
	Name            string
	Type            ColumnType
	Nullable        bool
	IsPrimaryKey    bool
	IsIndex         bool
	ForeignKey      *ForeignKey
	SourceFieldPath string // dotted path, empty for synthetic columns (e.g. array_index_lvl_N)

	// IsObjectID records that every non-null observation of this field
	// during inference was a document ObjectId, even though its declared
	// SQL type is VARCHAR (§3 has no dedicated ObjectId SQL type). The
	// ExpressionTranslator's ObjectId specialization (§4.4) needs this to
	// distinguish an ObjectId-typed field from an ordinary string field.
	IsObjectID bool
}
