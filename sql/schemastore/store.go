// Package schemastore implements the SchemaStore external collaborator
// (§6.4): a versioned, append-only persistent map from (schema_name,
// version) to Schema. The interface is part of the core's contract; the
// concrete backends here (MemoryStore, BoltStore) are reference
// implementations, not a mandated persistence layer (§1).
package schemastore

import (
	"context"
	"sort"
	"sync"

	opentracing "github.com/opentracing/opentracing-go"

	"github.com/docsql/engine/sql/coreerr"
	"github.com/docsql/engine/sql/schema"
)

// Store is the SchemaStore contract (§6.2, §6.4). Writers must not mutate
// an existing (schema_name, version) record; they append a new version.
// Readers take a consistent snapshot for a query's lifetime (§5).
type Store interface {
	// Read returns the schema at the given version, or the latest version
	// if version < 0. Returns coreerr.ErrSchemaMissing when absent.
	Read(ctx context.Context, schemaName string, version int) (*schema.Schema, error)
	// Write appends a new version and returns it. The version number is
	// monotonically increasing per schema_name.
	Write(ctx context.Context, s *schema.Schema) (int, error)
	// Versions lists the known versions for a schema name, ascending.
	Versions(ctx context.Context, schemaName string) ([]int, error)
}

// Latest is the sentinel passed to Read for "latest" per §6.2's
// `read(schema_name, version|"latest")`.
const Latest = -1

// MemoryStore is an in-process Store, the default used by tests and by
// Engine when no persistent backend is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[int]*schema.Schema
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[int]*schema.Schema{}}
}

func (m *MemoryStore) Read(ctx context.Context, schemaName string, version int) (*schema.Schema, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "docsql.schemastore.read")
	defer span.Finish()

	m.mu.RLock()
	defer m.mu.RUnlock()

	versions, ok := m.data[schemaName]
	if !ok || len(versions) == 0 {
		return nil, coreerr.ErrSchemaMissing.New(schemaName, version)
	}
	if version < 0 {
		version = maxVersion(versions)
	}
	s, ok := versions[version]
	if !ok {
		return nil, coreerr.ErrSchemaMissing.New(schemaName, version)
	}
	return s, nil
}

func (m *MemoryStore) Write(ctx context.Context, s *schema.Schema) (int, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "docsql.schemastore.write")
	defer span.Finish()

	m.mu.Lock()
	defer m.mu.Unlock()

	versions, ok := m.data[s.Name]
	if !ok {
		versions = map[int]*schema.Schema{}
		m.data[s.Name] = versions
	}
	next := maxVersion(versions) + 1
	if len(versions) == 0 {
		next = 1
	}
	s.Version = next
	versions[next] = s
	return next, nil
}

func (m *MemoryStore) Versions(ctx context.Context, schemaName string) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions, ok := m.data[schemaName]
	if !ok {
		return nil, nil
	}
	out := make([]int, 0, len(versions))
	for v := range versions {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

func maxVersion(versions map[int]*schema.Schema) int {
	max := 0
	for v := range versions {
		if v > max {
			max = v
		}
	}
	return max
}
