package schema

import (
	"github.com/mitchellh/hashstructure"

	"github.com/docsql/engine/sql/types"
)

// tableIdentity and columnIdentity are the exact structural keys §4.2 step
// 4 defines stable IDs over: table_id is a pure function of
// (schema_name, collection, path); column_id is a pure function of (table_id,
// field_name). hashstructure.Hash gives a deterministic structural hash
// with no dependency on map/slice iteration order within these flat
// structs, which is what "byte-identical across runs" (§4.2 Guarantees)
// requires.
type tableIdentity struct {
	SchemaName string
	Collection string
	Path       string
}

type columnIdentity struct {
	Table types.TableID
	Field string
}

// HashTableID computes table_id = hash(schema_name, collection, path).
func HashTableID(schemaName, collection, path string) types.TableID {
	h, err := hashstructure.Hash(tableIdentity{schemaName, collection, path}, nil)
	if err != nil {
		// hashstructure only fails on unhashable types (channels, funcs);
		// tableIdentity is plain strings, so this is unreachable.
		panic(err)
	}
	return types.TableID(h)
}

// HashColumnID computes column_id = hash(table_id, field_name).
func HashColumnID(table types.TableID, fieldName string) types.ColumnID {
	h, err := hashstructure.Hash(columnIdentity{table, fieldName}, nil)
	if err != nil {
		panic(err)
	}
	return types.ColumnID(h)
}
