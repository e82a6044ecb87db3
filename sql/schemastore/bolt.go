package schemastore

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/boltdb/bolt"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/docsql/engine/sql/coreerr"
	"github.com/docsql/engine/sql/schema"
	"github.com/docsql/engine/sql/types"
)

var boltLog = logrus.WithField("component", "schemastore-bolt")

// schemaDescriptorRecord and schemaTableRecord mirror the §6.4 key layout
// (schema_descriptor{schema_name, version, table_ids[]} and
// schema_table{schema_name, version, table_id, columns[]}), serialized as
// YAML values inside bolt. BoltStore keeps both records together per
// version for simplicity; a production SchemaStore implementation (out of
// scope per §1) would fetch schema_table records lazily by ID as §6.4
// describes — this reference backend trades that laziness for a single
// read/write round trip, which is an acceptable simplification for a
// non-canonical backend.
type schemaDescriptorRecord struct {
	SchemaName string   `yaml:"schema_name"`
	Version    int      `yaml:"version"`
	TableIDs   []uint64 `yaml:"table_ids"`
}

type columnRecord struct {
	ID              uint64          `yaml:"id"`
	Name            string          `yaml:"name"`
	Type            int             `yaml:"type"`
	Nullable        bool            `yaml:"nullable"`
	IsPrimaryKey    bool            `yaml:"is_primary_key"`
	IsIndex         bool            `yaml:"is_index"`
	ForeignKey      *foreignKeyYAML `yaml:"foreign_key,omitempty"`
	SourceFieldPath string          `yaml:"source_field_path,omitempty"`
}

type foreignKeyYAML struct {
	Column    uint64 `yaml:"column"`
	RefTable  uint64 `yaml:"ref_table"`
	RefColumn uint64 `yaml:"ref_column"`
}

type schemaTableRecord struct {
	SchemaName       string         `yaml:"schema_name"`
	Version          int            `yaml:"version"`
	TableID          uint64         `yaml:"table_id"`
	SQLName          string         `yaml:"sql_name"`
	SourceCollection string         `yaml:"source_collection"`
	PathFromRoot     string         `yaml:"path_from_root"`
	Kind             int            `yaml:"kind"`
	Columns          []columnRecord `yaml:"columns"`
	PrimaryKey       []uint64       `yaml:"primary_key"`
}

var bucketSchemas = []byte("schemas")

// BoltStore is the reference on-disk SchemaStore backend: bolt buckets
// nested schema_name -> version -> YAML blob, matching the (schema_name,
// version) key that §6.4 and §5 ("Writers must not mutate an existing
// (schema_name, version) record") both describe.
type BoltStore struct {
	db *bolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bolt schema store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSchemas)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Close() error { return b.db.Close() }

func (b *BoltStore) Read(ctx context.Context, schemaName string, version int) (*schema.Schema, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "docsql.schemastore.read")
	defer span.Finish()

	var out *schema.Schema
	err := b.db.View(func(tx *bolt.Tx) error {
		nameBucket := tx.Bucket(bucketSchemas).Bucket([]byte(schemaName))
		if nameBucket == nil {
			return coreerr.ErrSchemaMissing.New(schemaName, version)
		}
		v := version
		if v < 0 {
			v = latestVersionInBucket(nameBucket)
			if v == 0 {
				return coreerr.ErrSchemaMissing.New(schemaName, version)
			}
		}
		blob := nameBucket.Get(versionKey(v))
		if blob == nil {
			return coreerr.ErrSchemaMissing.New(schemaName, v)
		}
		s, err := decodeSchema(blob)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BoltStore) Write(ctx context.Context, s *schema.Schema) (int, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "docsql.schemastore.write")
	defer span.Finish()

	var version int
	err := b.db.Update(func(tx *bolt.Tx) error {
		top := tx.Bucket(bucketSchemas)
		nameBucket, err := top.CreateBucketIfNotExists([]byte(s.Name))
		if err != nil {
			return err
		}
		version = latestVersionInBucket(nameBucket) + 1
		s.Version = version
		blob, err := encodeSchema(s)
		if err != nil {
			return err
		}
		// Append-only: refuse to overwrite an existing version key.
		if nameBucket.Get(versionKey(version)) != nil {
			return fmt.Errorf("schema store: version %d of %q already exists", version, s.Name)
		}
		return nameBucket.Put(versionKey(version), blob)
	})
	if err != nil {
		return 0, err
	}
	boltLog.WithField("schema", s.Name).WithField("version", version).Info("wrote schema version")
	return version, nil
}

func (b *BoltStore) Versions(ctx context.Context, schemaName string) ([]int, error) {
	var out []int
	err := b.db.View(func(tx *bolt.Tx) error {
		nameBucket := tx.Bucket(bucketSchemas).Bucket([]byte(schemaName))
		if nameBucket == nil {
			return nil
		}
		return nameBucket.ForEach(func(k, _ []byte) error {
			v, err := strconv.Atoi(string(k))
			if err != nil {
				return nil
			}
			out = append(out, v)
			return nil
		})
	})
	sort.Ints(out)
	return out, err
}

func versionKey(v int) []byte { return []byte(strconv.Itoa(v)) }

func latestVersionInBucket(bucket *bolt.Bucket) int {
	max := 0
	_ = bucket.ForEach(func(k, _ []byte) error {
		if v, err := strconv.Atoi(string(k)); err == nil && v > max {
			max = v
		}
		return nil
	})
	return max
}

func encodeSchema(s *schema.Schema) ([]byte, error) {
	doc := struct {
		Descriptor schemaDescriptorRecord `yaml:"descriptor"`
		Tables     []schemaTableRecord    `yaml:"tables"`
	}{}
	doc.Descriptor = schemaDescriptorRecord{SchemaName: s.Name, Version: s.Version}
	for id, t := range s.Tables {
		doc.Descriptor.TableIDs = append(doc.Descriptor.TableIDs, uint64(id))
		rec := schemaTableRecord{
			SchemaName: s.Name, Version: s.Version, TableID: uint64(t.ID),
			SQLName: t.SQLName, SourceCollection: t.SourceCollection,
			PathFromRoot: t.PathFromRoot, Kind: int(t.Kind),
		}
		for _, pk := range t.PrimaryKey {
			rec.PrimaryKey = append(rec.PrimaryKey, uint64(pk))
		}
		for _, c := range t.Columns {
			cr := columnRecord{
				ID: uint64(c.ID), Name: c.Name, Type: int(c.Type), Nullable: c.Nullable,
				IsPrimaryKey: c.IsPrimaryKey, IsIndex: c.IsIndex, SourceFieldPath: c.SourceFieldPath,
			}
			if c.ForeignKey != nil {
				cr.ForeignKey = &foreignKeyYAML{
					Column: uint64(c.ForeignKey.Column), RefTable: uint64(c.ForeignKey.RefTable),
					RefColumn: uint64(c.ForeignKey.RefColumn),
				}
			}
			rec.Columns = append(rec.Columns, cr)
		}
		doc.Tables = append(doc.Tables, rec)
	}
	return yaml.Marshal(doc)
}

func decodeSchema(blob []byte) (*schema.Schema, error) {
	var doc struct {
		Descriptor schemaDescriptorRecord `yaml:"descriptor"`
		Tables     []schemaTableRecord    `yaml:"tables"`
	}
	if err := yaml.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("decoding schema store record: %w", err)
	}
	s := &schema.Schema{
		Name: doc.Descriptor.SchemaName, Version: doc.Descriptor.Version,
		Tables: map[types.TableID]*schema.Table{},
	}
	for _, rec := range doc.Tables {
		tbl := &schema.Table{
			ID: types.TableID(rec.TableID), SQLName: rec.SQLName, SourceCollection: rec.SourceCollection,
			PathFromRoot: rec.PathFromRoot, Kind: schema.TableKind(rec.Kind),
		}
		for _, pk := range rec.PrimaryKey {
			tbl.PrimaryKey = append(tbl.PrimaryKey, types.ColumnID(pk))
		}
		for _, cr := range rec.Columns {
			col := types.Column{
				ID: types.ColumnID(cr.ID), Name: cr.Name, Type: types.ColumnType(cr.Type), Nullable: cr.Nullable,
				IsPrimaryKey: cr.IsPrimaryKey, IsIndex: cr.IsIndex, SourceFieldPath: cr.SourceFieldPath,
			}
			if cr.ForeignKey != nil {
				col.ForeignKey = &types.ForeignKey{
					Column: types.ColumnID(cr.ForeignKey.Column), RefTable: types.TableID(cr.ForeignKey.RefTable),
					RefColumn: types.ColumnID(cr.ForeignKey.RefColumn),
				}
			}
			if col.ForeignKey != nil {
				tbl.ForeignKeys = append(tbl.ForeignKeys, *col.ForeignKey)
			}
			tbl.Columns = append(tbl.Columns, col)
		}
		s.Tables[tbl.ID] = tbl
	}
	return s, nil
}
