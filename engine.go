// Package docsql is the top-level entry point (§6.2): wiring SchemaStore,
// DocumentClient, PlanCompiler, and Executor behind one Engine.
package docsql

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/docsql/engine/sql/compiler"
	"github.com/docsql/engine/sql/docclient"
	"github.com/docsql/engine/sql/expression"
	"github.com/docsql/engine/sql/plan"
	"github.com/docsql/engine/sql/rowexec"
	"github.com/docsql/engine/sql/schema"
	"github.com/docsql/engine/sql/schemastore"
)

// Config controls Engine defaults. The zero Config is valid; New fills in
// the documented defaults for any zero field.
type Config struct {
	// FetchSize bounds rows per Batch (§4.7). Zero uses rowexec.DefaultFetchSize.
	FetchSize int
	// SampleLimit bounds documents read by RefreshSchema's inference pass.
	// Zero samples the whole collection.
	SampleLimit int
	// SampleStrategy selects how RefreshSchema samples the collection.
	SampleStrategy docclient.SampleStrategy
	// Locale names days/months for DAYNAME/MONTHNAME translation (§4.4).
	// Zero value uses expression.EnglishLocale().
	Locale *expression.Locale
	// Timeout bounds wall-clock time between Run and a cursor's final row
	// (§5). Zero means no timeout.
	Timeout time.Duration
	// RetryReads retries a failed read once before surfacing it as a
	// Transport error (§7's "retry_reads" caller option, §6.1).
	RetryReads bool
}

// Engine is the docsql SQL-over-document-database core: a SchemaStore and
// a DocumentClient wired behind Compile/Run/RefreshSchema (§6.2).
type Engine struct {
	store  schemastore.Store
	client docclient.Client
	cfg    Config
	log    *logrus.Entry
}

// New creates an Engine with custom configuration. To create one with the
// default settings use NewDefault.
func New(store schemastore.Store, client docclient.Client, cfg *Config) *Engine {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	if c.FetchSize <= 0 {
		c.FetchSize = rowexec.DefaultFetchSize
	}
	if c.Locale == nil {
		loc := expression.EnglishLocale()
		c.Locale = &loc
	}
	return &Engine{
		store:  store,
		client: client,
		cfg:    c,
		log:    logrus.WithField("component", "engine"),
	}
}

// NewDefault creates an Engine backed by an in-memory SchemaStore.
func NewDefault(client docclient.Client) *Engine {
	return New(schemastore.NewMemoryStore(), client, nil)
}

// Compile runs PlanCompiler over tree, producing a QueryContext or a
// single structured compile error (§6.2: `PlanCompiler.compile`).
func (e *Engine) Compile(tree *plan.Operator) (*compiler.QueryContext, error) {
	return compiler.Compile(tree, *e.cfg.Locale)
}

// Run compiles tree and opens a Cursor over it in one call, the common
// path for callers that don't need the intermediate QueryContext (e.g.
// for an EXPLAIN). cancel may be nil, in which case a fresh, never-
// cancelled token is used.
func (e *Engine) Run(ctx context.Context, tree *plan.Operator, cancel *rowexec.CancelToken) (*rowexec.Cursor, error) {
	qctx, err := e.Compile(tree)
	if err != nil {
		return nil, err
	}
	if cancel == nil {
		cancel = rowexec.NewCancelToken()
	}
	opts := rowexec.Options{Timeout: e.cfg.Timeout, RetryReads: e.cfg.RetryReads}
	cur, err := rowexec.Open(ctx, e.client, qctx, e.cfg.FetchSize, cancel, opts)
	if err != nil {
		return nil, errors.Wrap(err, "open cursor")
	}
	return cur, nil
}

// RefreshSchema runs SchemaInference against collection and persists the
// result as a new version, the write-path counterpart of the connection
// URL's `refreshSchema` option (§6.1): since inference always produces a
// new version, refresh never mutates an existing one.
func (e *Engine) RefreshSchema(ctx context.Context, schemaName, collection string) (int, error) {
	e.log.WithField("schema", schemaName).WithField("collection", collection).Debug("refreshing schema")

	s, err := schema.Infer(ctx, e.client, schemaName, collection, e.cfg.SampleLimit, e.cfg.SampleStrategy, 0)
	if err != nil {
		return 0, errors.Wrap(err, "infer schema")
	}
	version, err := e.store.Write(ctx, s)
	if err != nil {
		return 0, errors.Wrap(err, "write schema")
	}
	return version, nil
}

// Schema reads a previously persisted schema. version < 0 reads the
// latest (§6.2: `read(schema_name, version|"latest")`).
func (e *Engine) Schema(ctx context.Context, schemaName string, version int) (*schema.Schema, error) {
	return e.store.Read(ctx, schemaName, version)
}
