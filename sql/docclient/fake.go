package docclient

import (
	"context"

	"github.com/docsql/engine/sql/docvalue"
)

// FakeClient is a small in-memory stand-in for a document database,
// following the teacher's enginetest/mysqlshim pattern of backing an
// external black-box system with an in-memory fake for tests only. It is
// not a wire client and never will be — it exists so sql/schema and
// sql/rowexec can be exercised without a real document-database
// collaborator.
type FakeClient struct {
	Collections map[string][]docvalue.Value
}

func NewFakeClient() *FakeClient {
	return &FakeClient{Collections: map[string][]docvalue.Value{}}
}

func (f *FakeClient) Insert(collection string, docs ...docvalue.Value) {
	f.Collections[collection] = append(f.Collections[collection], docs...)
}

func (f *FakeClient) Sample(ctx context.Context, collection string, n int, strategy SampleStrategy) (SampleIterator, error) {
	docs := f.Collections[collection]
	switch strategy {
	case SampleReverse:
		rev := make([]docvalue.Value, len(docs))
		for i, d := range docs {
			rev[len(docs)-1-i] = d
		}
		docs = rev
	}
	if strategy != SampleAll && n > 0 && n < len(docs) {
		docs = docs[:n]
	}
	return &sliceIter{docs: docs}, nil
}

// RunAggregate on FakeClient applies only naive $limit/$skip; every other
// stage, $match included, is ignored — enough to exercise
// sql/rowexec's batching/coercion/cancellation contract in tests without
// reimplementing a document-query engine. Full pipeline semantics are
// exercised against sql/plan's stage construction directly, not against
// this fake.
func (f *FakeClient) RunAggregate(ctx context.Context, collection string, pipeline []Stage) (Cursor, error) {
	docs := append([]docvalue.Value(nil), f.Collections[collection]...)
	for _, st := range pipeline {
		switch st.Op {
		case "$limit":
			if n, ok := st.Spec.(int); ok && n < len(docs) {
				docs = docs[:n]
			}
		case "$skip":
			if n, ok := st.Spec.(int); ok {
				if n > len(docs) {
					n = len(docs)
				}
				docs = docs[n:]
			}
		}
	}
	return &sliceCursor{docs: docs}, nil
}

type sliceIter struct {
	docs []docvalue.Value
	pos  int
}

func (s *sliceIter) Next(ctx context.Context) (docvalue.Value, bool, error) {
	if err := ctx.Err(); err != nil {
		return docvalue.Value{}, false, err
	}
	if s.pos >= len(s.docs) {
		return docvalue.Value{}, false, nil
	}
	v := s.docs[s.pos]
	s.pos++
	return v, true, nil
}

func (s *sliceIter) Close(ctx context.Context) error { return nil }

type sliceCursor struct {
	docs []docvalue.Value
	pos  int
}

func (s *sliceCursor) Next(ctx context.Context) (docvalue.Value, bool, error) {
	if err := ctx.Err(); err != nil {
		return docvalue.Value{}, false, err
	}
	if s.pos >= len(s.docs) {
		return docvalue.Value{}, false, nil
	}
	v := s.docs[s.pos]
	s.pos++
	return v, true, nil
}

func (s *sliceCursor) Close(ctx context.Context) error { return nil }
