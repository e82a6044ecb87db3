package rowexec

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsql/engine/sql/compiler"
	"github.com/docsql/engine/sql/coreerr"
	"github.com/docsql/engine/sql/docclient"
	"github.com/docsql/engine/sql/docvalue"
	"github.com/docsql/engine/sql/types"
)

func outputColumns() []compiler.OutputColumn {
	return []compiler.OutputColumn{
		{Name: "id", Type: types.VARCHAR, Nullable: false},
		{Name: "age", Type: types.INTEGER, Nullable: true},
	}
}

func doc(id string, age interface{}) docvalue.Value {
	fields := []docvalue.Field{{Name: "id", Value: docvalue.String(id)}}
	switch v := age.(type) {
	case nil:
		// omit the field entirely to exercise the missing-field path
	case int32:
		fields = append(fields, docvalue.Field{Name: "age", Value: docvalue.Int32(v)})
	}
	return docvalue.Object(fields...)
}

func newQueryContext(collection string) *compiler.QueryContext {
	return &compiler.QueryContext{Collection: collection, OutputColumns: outputColumns()}
}

func TestNextBatchBoundedByFetchSize(t *testing.T) {
	client := docclient.NewFakeClient()
	for i := 0; i < 5; i++ {
		client.Insert("people", doc("p"+string(rune('0'+i)), int32(20+i)))
	}

	cur, err := Open(context.Background(), client, newQueryContext("people"), 2, NewCancelToken(), Options{})
	require.NoError(t, err)
	defer cur.Close(context.Background())

	batch, err := cur.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Len(t, batch.Rows, 2)

	batch, err = cur.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Len(t, batch.Rows, 2)

	batch, err = cur.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Len(t, batch.Rows, 1)

	batch, err = cur.NextBatch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestNextBatchCoercesNumericToDeclaredType(t *testing.T) {
	client := docclient.NewFakeClient()
	client.Insert("people", doc("p0", int32(42)))

	cur, err := Open(context.Background(), client, newQueryContext("people"), DefaultFetchSize, NewCancelToken(), Options{})
	require.NoError(t, err)
	defer cur.Close(context.Background())

	batch, err := cur.NextBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, docvalue.KindInt32, batch.Rows[0].Values[1].Kind())
	assert.Equal(t, int64(42), batch.Rows[0].Values[1].AsInt())
}

func TestNextBatchMissingNonNullableColumnKeepsRowAsNullWithWarning(t *testing.T) {
	client := docclient.NewFakeClient()
	// id is declared non-nullable; omit it to trigger the data-integrity path.
	client.Insert("people", docvalue.Object(docvalue.Field{Name: "age", Value: docvalue.Int32(30)}))
	client.Insert("people", doc("p1", int32(31)))

	cur, err := Open(context.Background(), client, newQueryContext("people"), DefaultFetchSize, NewCancelToken(), Options{})
	require.NoError(t, err)
	defer cur.Close(context.Background())

	batch, err := cur.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.Len(t, batch.Rows, 2)
	assert.True(t, batch.Rows[0].Values[0].IsNullish())
	assert.Len(t, batch.Warnings, 1)
}

func TestNextBatchMissingNullableColumnYieldsNull(t *testing.T) {
	client := docclient.NewFakeClient()
	client.Insert("people", doc("p0", nil))

	cur, err := Open(context.Background(), client, newQueryContext("people"), DefaultFetchSize, NewCancelToken(), Options{})
	require.NoError(t, err)
	defer cur.Close(context.Background())

	batch, err := cur.NextBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	assert.True(t, batch.Rows[0].Values[1].IsNullish())
}

func TestCancelTokenStopsIteration(t *testing.T) {
	client := docclient.NewFakeClient()
	for i := 0; i < 10; i++ {
		client.Insert("people", doc("p"+string(rune('0'+i)), int32(i)))
	}

	token := NewCancelToken()
	cur, err := Open(context.Background(), client, newQueryContext("people"), DefaultFetchSize, token, Options{})
	require.NoError(t, err)

	token.Cancel()
	_, err = cur.NextBatch(context.Background())
	require.Error(t, err)
}

func TestNextBatchReturnsTimeoutAfterDeadlineElapses(t *testing.T) {
	client := docclient.NewFakeClient()
	client.Insert("people", doc("p0", int32(1)))

	cur, err := Open(context.Background(), client, newQueryContext("people"), DefaultFetchSize, NewCancelToken(), Options{Timeout: time.Nanosecond})
	require.NoError(t, err)

	_, err = cur.NextBatch(context.Background())
	require.Error(t, err)
	assert.True(t, coreerr.ErrTimeout.Is(err))
}

func TestNextBatchNoTimeoutWhenUnset(t *testing.T) {
	client := docclient.NewFakeClient()
	client.Insert("people", doc("p0", int32(1)))

	cur, err := Open(context.Background(), client, newQueryContext("people"), DefaultFetchSize, NewCancelToken(), Options{})
	require.NoError(t, err)
	defer cur.Close(context.Background())

	batch, err := cur.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Len(t, batch.Rows, 1)
}

// flakyClient wraps a FakeClient, failing the first call to RunAggregate
// and the first call to the returned cursor's Next, to exercise the
// retry_reads path without a real transport.
type flakyClient struct {
	*docclient.FakeClient
	aggregateFailures int
}

func (f *flakyClient) RunAggregate(ctx context.Context, collection string, pipeline []docclient.Stage) (docclient.Cursor, error) {
	if f.aggregateFailures > 0 {
		f.aggregateFailures--
		return nil, errors.New("simulated transport failure")
	}
	cur, err := f.FakeClient.RunAggregate(ctx, collection, pipeline)
	if err != nil {
		return nil, err
	}
	return &flakyCursor{Cursor: cur, nextFailures: 1}, nil
}

type flakyCursor struct {
	docclient.Cursor
	nextFailures int
}

func (f *flakyCursor) Next(ctx context.Context) (docvalue.Value, bool, error) {
	if f.nextFailures > 0 {
		f.nextFailures--
		return docvalue.Value{}, false, errors.New("simulated transport failure")
	}
	return f.Cursor.Next(ctx)
}

func TestOpenRetriesRunAggregateOnceWhenRetryReadsEnabled(t *testing.T) {
	client := &flakyClient{FakeClient: docclient.NewFakeClient(), aggregateFailures: 1}
	client.Insert("people", doc("p0", int32(1)))

	cur, err := Open(context.Background(), client, newQueryContext("people"), DefaultFetchSize, NewCancelToken(), Options{RetryReads: true})
	require.NoError(t, err)
	defer cur.Close(context.Background())
}

func TestOpenSurfacesRunAggregateFailureWhenRetryReadsDisabled(t *testing.T) {
	client := &flakyClient{FakeClient: docclient.NewFakeClient(), aggregateFailures: 1}
	client.Insert("people", doc("p0", int32(1)))

	_, err := Open(context.Background(), client, newQueryContext("people"), DefaultFetchSize, NewCancelToken(), Options{})
	require.Error(t, err)
	assert.True(t, coreerr.ErrTransport.Is(err))
}

func TestNextBatchRetriesDocNextOnceWhenRetryReadsEnabled(t *testing.T) {
	client := &flakyClient{FakeClient: docclient.NewFakeClient()}
	client.Insert("people", doc("p0", int32(1)))

	cur, err := Open(context.Background(), client, newQueryContext("people"), DefaultFetchSize, NewCancelToken(), Options{RetryReads: true})
	require.NoError(t, err)
	defer cur.Close(context.Background())

	batch, err := cur.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Len(t, batch.Rows, 1)
}

func TestNextBatchSurfacesDocNextFailureWhenRetryReadsDisabled(t *testing.T) {
	client := &flakyClient{FakeClient: docclient.NewFakeClient()}
	client.Insert("people", doc("p0", int32(1)))

	cur, err := Open(context.Background(), client, newQueryContext("people"), DefaultFetchSize, NewCancelToken(), Options{})
	require.NoError(t, err)
	defer cur.Close(context.Background())

	_, err = cur.NextBatch(context.Background())
	require.Error(t, err)
	assert.True(t, coreerr.ErrTransport.Is(err))
}
