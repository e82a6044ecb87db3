// Package coreerr registers the seven §7 error kinds as
// gopkg.in/src-d/go-errors.v1 Kinds, the same pattern the teacher's auth
// package uses for ErrNotAuthorized/ErrUnknownPermission/etc.
package coreerr

import "gopkg.in/src-d/go-errors.v1"

var (
	// ErrInvalidQuery: SQL refers to an unknown column/table, aggregates a
	// non-grouped column, etc. Always fatal to the query.
	ErrInvalidQuery = errors.NewKind("invalid query: %s")

	// ErrUnsupported: an operator/function/cast the core cannot translate.
	// The message names the construct, per §4.6's failure semantics.
	ErrUnsupported = errors.NewKind("unsupported construct: %s")

	// ErrSchemaMissing: the requested (schema_name, version) is absent
	// from the SchemaStore.
	ErrSchemaMissing = errors.NewKind("schema not found: %s version %d")

	// ErrDataTypeConflict: a value could not be coerced to its declared
	// column type at execution time. Row-level — recorded as a cursor
	// warning, never fatal on its own.
	ErrDataTypeConflict = errors.NewKind("cannot coerce value for column %q to %s")

	// ErrTransport: the document-client reported a network/protocol
	// failure.
	ErrTransport = errors.NewKind("document client transport error: %s")

	// ErrCancelled: the query was cancelled.
	ErrCancelled = errors.NewKind("query cancelled")

	// ErrTimeout: the query exceeded its wall-clock budget.
	ErrTimeout = errors.NewKind("query exceeded timeout")
)

// UnsupportedJoinType is the specific Unsupported instance named in §4.5
// for cross-collection joins and §9 for outer joins over more than two
// virtual tables.
func UnsupportedJoinType(detail string) error {
	return ErrUnsupported.New("UNSUPPORTED_JOIN_TYPE: " + detail)
}

// UnsupportedConversion is the specific Unsupported instance §4.4 names
// for TIMESTAMPADD(YEAR/MONTH/QUARTER, ...) and unimplemented CAST paths.
func UnsupportedConversion(detail string) error {
	return ErrUnsupported.New("UNSUPPORTED_CONVERSION: " + detail)
}
