// Package schema implements the virtual-table model (§3) and
// SchemaInference (§4.2): sampling a collection and deriving a stable,
// deterministic relational schema over it.
package schema

import "github.com/docsql/engine/sql/types"

// TableKind distinguishes the three virtual-table shapes named in §3.
type TableKind int

const (
	KindRoot TableKind = iota
	KindDocumentChild
	KindArrayChild
)

// Table is one virtual table: one per collection (Root), one per
// consistently-object path (DocumentChild), one per ever-array path
// (ArrayChild).
type Table struct {
	ID               types.TableID
	SQLName          string
	SourceCollection string
	PathFromRoot     string // dotted path, "[]" marks array levels, empty for Root
	Kind             TableKind
	Columns          []types.Column
	PrimaryKey       []types.ColumnID
	ForeignKeys      []types.ForeignKey
}

// ColumnByID finds a column by its stable ID, used when resolving foreign
// keys and path references.
func (t *Table) ColumnByID(id types.ColumnID) (*types.Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].ID == id {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ColumnByName finds a column by its SQL name.
func (t *Table) ColumnByName(name string) (*types.Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Schema is an immutable, versioned set of virtual tables derived from one
// inference run. Once persisted through a SchemaStore, a Schema is never
// mutated — refresh always produces a new version (§3 Lifecycle).
type Schema struct {
	Name    string
	Version int
	Tables  map[types.TableID]*Table
}

// Table looks up a virtual table by stable ID.
func (s *Schema) Table(id types.TableID) (*Table, bool) {
	t, ok := s.Tables[id]
	return t, ok
}

// TableByName looks up a virtual table by its SQL name — the form the
// logical tree's Scan{table_id} ultimately resolves from a parsed SQL
// identifier before compilation begins.
func (s *Schema) TableByName(name string) (*Table, bool) {
	for _, t := range s.Tables {
		if t.SQLName == name {
			return t, true
		}
	}
	return nil, false
}
