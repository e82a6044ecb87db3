// Package rowexec implements the Executor/Cursor/Batch (§4.7): running a
// compiled pipeline through the document client and streaming rows back
// in fetch-size-bounded batches with server-side type coercion.
package rowexec

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash"
	"github.com/hashicorp/go-multierror"
	"github.com/opentracing/opentracing-go"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/docsql/engine/sql/coreerr"
	"github.com/docsql/engine/sql/compiler"
	"github.com/docsql/engine/sql/docclient"
	"github.com/docsql/engine/sql/docvalue"
)

// DefaultFetchSize is used when the caller passes 0 (§4.7: "0 means
// implementation-chosen").
const DefaultFetchSize = 2000

var log = logrus.WithField("component", "executor")

var batchesFetched = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "docsql", Subsystem: "executor", Name: "batches_fetched_total",
	Help: "Number of batches fetched from the document client.",
})

func init() {
	prometheus.MustRegister(batchesFetched)
}

// Options carries the per-query executor settings that sit outside the
// compiled QueryContext: the caller-configurable query timeout (§5) and
// the transport retry policy (§7's Transport kind). The zero Options
// disables both — no deadline, no retry.
type Options struct {
	// Timeout bounds wall-clock time between Open and the cursor's final
	// row (§5: "applied by the executor against wall-clock between
	// submission and final row; triggers cancellation"). Zero means no
	// timeout.
	Timeout time.Duration
	// RetryReads retries a failed read once before surfacing it as a
	// Transport error (§7: "Retried once for idempotent stages if
	// retry_reads is enabled; otherwise surfaced"). Aggregation reads have
	// no side effects, so every read this package issues is idempotent.
	RetryReads bool
}

// CancelToken is the cooperative cancellation handle the executor checks
// between batches and on every row yield (§5 "Cancellation").
type CancelToken struct {
	cancelled int32
}

func NewCancelToken() *CancelToken { return &CancelToken{} }

func (c *CancelToken) Cancel() { atomic.StoreInt32(&c.cancelled, 1) }

func (c *CancelToken) Cancelled() bool { return atomic.LoadInt32(&c.cancelled) == 1 }

// Row is one coerced output row, positionally aligned with the
// QueryContext's OutputColumns (§6.5: "column index... to a typed value").
type Row struct {
	Values []docvalue.Value
}

// Batch is one bounded slice of rows plus any row-level coercion warnings
// accumulated while filling it (§7's DataTypeConflict: "row-level... the
// error is recorded as a warning on the cursor").
type Batch struct {
	Rows     []Row
	Warnings []error
}

// Cursor is the result-stream handle Executor.Open returns (§6.2).
type Cursor struct {
	id         uuid.UUID
	qctx       *compiler.QueryContext
	doc        docclient.Cursor
	fetchSize  int
	cancel     *CancelToken
	deadline   time.Time
	retryReads bool

	mu     sync.Mutex
	closed bool
}

// Open runs qctx's pipeline against client and returns a Cursor positioned
// at the first row (§6.2: "Executor.open(query_context, fetch_size,
// cancel_token) -> Cursor"). opts.Timeout starts counting from this call,
// per §5's "wall-clock between submission and final row".
func Open(ctx context.Context, client docclient.Client, qctx *compiler.QueryContext, fetchSize int, cancel *CancelToken, opts Options) (*Cursor, error) {
	if fetchSize <= 0 {
		fetchSize = DefaultFetchSize
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "generate cursor id")
	}
	doc, err := client.RunAggregate(ctx, qctx.Collection, qctx.Stages)
	if err != nil && opts.RetryReads {
		doc, err = client.RunAggregate(ctx, qctx.Collection, qctx.Stages)
	}
	if err != nil {
		return nil, coreerr.ErrTransport.New(pkgerrors.Wrap(err, "run_aggregate").Error())
	}
	c := &Cursor{id: id, qctx: qctx, doc: doc, fetchSize: fetchSize, cancel: cancel, retryReads: opts.RetryReads}
	if opts.Timeout > 0 {
		c.deadline = time.Now().Add(opts.Timeout)
	}
	return c, nil
}

// NextBatch implements §6.2's "Cursor.next_batch() -> Option<Batch>":
// returns (nil, nil) at end of stream, mirroring the document-side
// Next-returns-(zero,false) convention rather than a sentinel error.
func (c *Cursor) NextBatch(ctx context.Context) (*Batch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, coreerr.ErrCancelled.New()
	}
	if c.cancel.Cancelled() {
		c.closeLocked(ctx)
		return nil, coreerr.ErrCancelled.New()
	}
	if c.timedOut() {
		c.closeLocked(ctx)
		return nil, coreerr.ErrTimeout.New()
	}

	span, spanCtx := opentracing.StartSpanFromContext(ctx, "docsql.cursor.next_batch")
	defer span.Finish()

	rows := make([]Row, 0, c.fetchSize)
	var merr *multierror.Error
	for i := 0; i < c.fetchSize; i++ {
		if c.cancel.Cancelled() {
			c.closeLocked(spanCtx)
			return nil, coreerr.ErrCancelled.New()
		}
		if c.timedOut() {
			c.closeLocked(spanCtx)
			return nil, coreerr.ErrTimeout.New()
		}
		doc, ok, err := c.doc.Next(spanCtx)
		if err != nil && c.retryReads {
			doc, ok, err = c.doc.Next(spanCtx)
		}
		if err != nil {
			return nil, coreerr.ErrTransport.New(pkgerrors.Wrap(err, "fetch row").Error())
		}
		if !ok {
			break
		}
		row, warns := coerceRow(doc, c.qctx.OutputColumns)
		for _, w := range warns {
			merr = multierror.Append(merr, w)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 && merr.ErrorOrNil() == nil {
		return nil, nil
	}

	batchesFetched.Inc()
	log.WithField("cursor", c.id.String()).WithField("checksum", checksum(rows)).Debug("fetched batch")

	var warnings []error
	if merr != nil {
		warnings = merr.Errors
	}
	return &Batch{Rows: rows, Warnings: warnings}, nil
}

// Close releases the underlying document-client cursor. Intermediate
// batches must not trigger it (§4.7); only cancellation or the caller
// finishing does.
func (c *Cursor) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked(ctx)
}

// timedOut reports whether opts.Timeout was set and has elapsed since Open.
func (c *Cursor) timedOut() bool {
	return !c.deadline.IsZero() && time.Now().After(c.deadline)
}

func (c *Cursor) closeLocked(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.doc.Close(ctx)
}

func checksum(rows []Row) uint64 {
	var buf []byte
	for _, r := range rows {
		for _, v := range r.Values {
			buf = append(buf, []byte(v.CanonicalJSON())...)
		}
	}
	return xxhash.Sum64(buf)
}
