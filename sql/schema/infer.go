package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/docsql/engine/sql/docclient"
	"github.com/docsql/engine/sql/docvalue"
	"github.com/docsql/engine/sql/lattice"
	"github.com/docsql/engine/sql/types"
)

var log = logrus.WithField("component", "schema-inference")

// node accumulates every observation made at one field path across the
// sample, before the post-order sweep turns it into either a plain column,
// a document-child table, or an array-child table (§4.2 step 3).
type node struct {
	state      lattice.State
	sawObject  bool
	sawArray   bool
	sawScalar  bool
	children   map[string]*node
	childOrder []string // first-seen order, keeps materialization deterministic for a fixed sample
	arrayElem  *node    // node for path+"[]"

	// scalarKind/scalarKindSet/scalarConflict track whether every scalar
	// observation at this path was the same docvalue.Kind, which is how
	// the ObjectId specialization (§4.4) recognizes a pure-ObjectId field.
	scalarKind     docvalue.Kind
	scalarKindSet  bool
	scalarConflict bool
}

func newNode() *node { return &node{children: map[string]*node{}} }

func (n *node) child(name string) *node {
	c, ok := n.children[name]
	if !ok {
		c = newNode()
		n.children[name] = c
		n.childOrder = append(n.childOrder, name)
	}
	return c
}

func (n *node) elem() *node {
	if n.arrayElem == nil {
		n.arrayElem = newNode()
	}
	return n.arrayElem
}

// walk descends one document value into the node tree rooted at n.
func walk(n *node, v docvalue.Value) {
	switch v.Kind() {
	case docvalue.KindNull:
		n.state = n.state.Join(docvalue.KindNull)
	case docvalue.KindObject:
		n.state = n.state.Join(docvalue.KindObject)
		n.sawObject = true
		for _, f := range v.AsObject() {
			walk(n.child(f.Name), f.Value)
		}
	case docvalue.KindArray:
		n.state = n.state.Join(docvalue.KindArray)
		n.sawArray = true
		for _, e := range v.AsArray() {
			walk(n.elem(), e)
		}
	default:
		n.state = n.state.Join(v.Kind())
		n.sawScalar = true
		if !n.scalarKindSet {
			n.scalarKind = v.Kind()
			n.scalarKindSet = true
		} else if n.scalarKind != v.Kind() {
			n.scalarConflict = true
		}
	}
}

// isObjectDominant implements §4.2 step 3's "object-dominant" predicate:
// the only non-null observations at this path are Object (never a scalar,
// never an array).
func (n *node) isObjectDominant() bool {
	return n.sawObject && !n.sawArray && !n.sawScalar
}

// Infer implements SchemaInference.infer (§4.2, §6.2): draws a sample,
// walks every document, and materializes a deterministic virtual-table
// set. Two calls over the same sample produce byte-identical Schemas
// (same Version argument aside) because node.childOrder preserves
// first-seen field order and all stable IDs are pure hashes of
// (schema_name, collection, path) / (table_id, field_name).
func Infer(ctx context.Context, client docclient.Client, schemaName, collection string, sampleLimit int, strategy docclient.SampleStrategy, version int) (*Schema, error) {
	iter, err := client.Sample(ctx, collection, sampleLimit, strategy)
	if err != nil {
		return nil, err
	}
	defer iter.Close(ctx)

	root := newNode()
	var merr *multierror.Error
	count := 0
	for {
		doc, ok, err := iter.Next(ctx)
		if err != nil {
			// A malformed document is reported up but sampling continues
			// with the remaining documents (§4.2 Failure semantics).
			merr = multierror.Append(merr, fmt.Errorf("document %d: %w", count, err))
			continue
		}
		if !ok {
			break
		}
		walk(root, doc)
		count++
	}
	if merr != nil {
		log.WithField("collection", collection).WithField("errors", merr.Len()).
			Warn("malformed documents encountered during sampling")
	}

	// Zero samples -> the collection is absent from the schema, not an
	// empty schema (§4.2 Failure semantics).
	if count == 0 {
		return &Schema{Name: schemaName, Version: version, Tables: map[types.TableID]*Table{}}, merr.ErrorOrNil()
	}

	tables := map[types.TableID]*Table{}
	rootID := HashTableID(schemaName, collection, "")
	rootPK := HashColumnID(rootID, collection+"__id")
	rootTable := &Table{
		ID:               rootID,
		SQLName:          collection,
		SourceCollection: collection,
		PathFromRoot:     "",
		Kind:             KindRoot,
		Columns: []types.Column{{
			ID: rootPK, Name: collection + "__id", Type: types.VARCHAR,
			Nullable: false, IsPrimaryKey: true, IsIndex: true, SourceFieldPath: "_id",
		}},
		PrimaryKey: []types.ColumnID{rootPK},
	}
	tables[rootID] = rootTable

	m := &materializer{schemaName: schemaName, collection: collection, tables: tables}
	m.materializeFields(root, rootTable, "", []types.ColumnID{rootPK})

	// Mirror every table-level foreign key onto its column, where join
	// validation (types.Column.ForeignKey) looks for it.
	for _, tbl := range tables {
		for _, fk := range tbl.ForeignKeys {
			if col, ok := tbl.ColumnByID(fk.Column); ok {
				fk := fk
				col.ForeignKey = &fk
			}
		}
	}

	return &Schema{Name: schemaName, Version: version, Tables: tables}, merr.ErrorOrNil()
}

type materializer struct {
	schemaName string
	collection string
	tables     map[types.TableID]*Table
}

// materializeFields walks n's children (an object-shaped level, either the
// root document or a document-child/array-document-child table body),
// appending plain columns to dst and creating child tables as needed.
// parentPK is the full primary-key column list new child tables inherit.
func (m *materializer) materializeFields(n *node, dst *Table, pathPrefix string, parentPK []types.ColumnID) {
	names := append([]string(nil), n.childOrder...)
	for _, name := range names {
		c := n.children[name]
		path := name
		if pathPrefix != "" {
			path = pathPrefix + "." + name
		}

		switch {
		case c.sawArray:
			m.materializeArray(c, dst, path, name, parentPK, 0)
		case c.isObjectDominant():
			m.materializeDocumentChild(c, dst, path, name, parentPK)
		default:
			colID := HashColumnID(dst.ID, name)
			isObjectID := c.scalarKindSet && !c.scalarConflict && c.scalarKind == docvalue.KindObjectID
			dst.Columns = append(dst.Columns, types.Column{
				ID: colID, Name: name, Type: c.state.Resolved(),
				Nullable:        c.state.Nullable || c.state.Resolved() == types.NULLTYPE,
				SourceFieldPath: path,
				IsObjectID:      isObjectID,
			})
		}
	}
}

// materializeDocumentChild creates a Document-child table (§3): it shares
// the root's primary key and recurses into its own object fields.
func (m *materializer) materializeDocumentChild(c *node, parent *Table, path, fieldName string, parentPK []types.ColumnID) {
	tableID := HashTableID(m.schemaName, m.collection, path)
	tbl := &Table{
		ID: tableID, SQLName: m.collection + "_" + sqlSafe(path), SourceCollection: m.collection,
		PathFromRoot: path, Kind: KindDocumentChild, PrimaryKey: append([]types.ColumnID(nil), parentPK...),
	}
	for _, pkCol := range parentPK {
		if col, ok := parent.ColumnByID(pkCol); ok {
			tbl.Columns = append(tbl.Columns, *col)
			tbl.ForeignKeys = append(tbl.ForeignKeys, types.ForeignKey{Column: pkCol, RefTable: parent.ID, RefColumn: pkCol})
		}
	}
	m.tables[tableID] = tbl
	m.materializeFields(c, tbl, path, tbl.PrimaryKey)
}

// materializeArray creates an Array-child table (§3, §4.2 step 3): if the
// array's element type resolves object-dominant, a document-shaped child
// with index columns; otherwise a scalar {parent_pk, array_index_lvl_N,
// value} table. Nested arrays add another index level and recurse.
func (m *materializer) materializeArray(c *node, parent *Table, path, fieldName string, parentPK []types.ColumnID, level int) {
	elem := c.arrayElem
	if elem == nil {
		elem = newNode()
	}
	indexColName := fmt.Sprintf("array_index_lvl_%d", level)
	tableID := HashTableID(m.schemaName, m.collection, path)
	arrayPK := append([]types.ColumnID(nil), parentPK...)
	indexColID := HashColumnID(tableID, indexColName)
	arrayPK = append(arrayPK, indexColID)

	tbl := &Table{
		ID: tableID, SQLName: m.collection + "_" + sqlSafe(path), SourceCollection: m.collection,
		PathFromRoot: path, Kind: KindArrayChild, PrimaryKey: arrayPK,
	}
	for _, pkCol := range parentPK {
		if col, ok := findColumnAcrossTables(m.tables, pkCol); ok {
			tbl.Columns = append(tbl.Columns, *col)
			tbl.ForeignKeys = append(tbl.ForeignKeys, types.ForeignKey{Column: pkCol, RefTable: parent.ID, RefColumn: pkCol})
		}
	}
	tbl.Columns = append(tbl.Columns, types.Column{
		ID: indexColID, Name: indexColName, Type: types.INTEGER, Nullable: false, IsPrimaryKey: true,
	})
	m.tables[tableID] = tbl

	switch {
	case elem.sawArray:
		// Nested array: add another index level under the same table path.
		m.materializeArray(elem, tbl, path+"[]", fieldName, arrayPK, level+1)
	case elem.isObjectDominant():
		m.materializeFields(elem, tbl, path+"[]", arrayPK)
	default:
		valID := HashColumnID(tableID, "value")
		tbl.Columns = append(tbl.Columns, types.Column{
			ID: valID, Name: "value", Type: elem.state.Resolved(), Nullable: elem.state.Nullable,
		})
	}
}

func findColumnAcrossTables(tables map[types.TableID]*Table, id types.ColumnID) (*types.Column, bool) {
	for _, t := range tables {
		if col, ok := t.ColumnByID(id); ok {
			return col, true
		}
	}
	return nil, false
}

// sqlSafe turns a dotted/bracketed path into a SQL-identifier-safe suffix.
func sqlSafe(path string) string {
	out := make([]rune, 0, len(path))
	for _, r := range path {
		switch {
		case r == '.' || r == '[' || r == ']':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	// collapse doubled underscores left by "[]" -> "__"
	s := string(out)
	for hasDoubleUnderscore(s) {
		s = collapseDoubleUnderscore(s)
	}
	return s
}

func hasDoubleUnderscore(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '_' && s[i+1] == '_' {
			return true
		}
	}
	return false
}

func collapseDoubleUnderscore(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if i+1 < len(s) && s[i] == '_' && s[i+1] == '_' {
			b = append(b, '_')
			i++
			continue
		}
		b = append(b, s[i])
	}
	return string(b)
}

// sortedTableIDs returns table IDs in ascending order, useful anywhere a
// deterministic iteration over a Schema's tables is needed (e.g. printing,
// SchemaStore descriptor writes).
func sortedTableIDs(tables map[types.TableID]*Table) []types.TableID {
	ids := make([]types.TableID, 0, len(tables))
	for id := range tables {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
