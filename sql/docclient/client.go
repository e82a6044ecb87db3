// Package docclient declares the external document-database collaborator
// interfaces named in §1/§6.2: the core treats the wire-level client as a
// black box supporting aggregate execution and sampling. No implementation
// of the actual wire protocol lives here — that is explicitly out of
// scope.
package docclient

import (
	"context"

	"github.com/docsql/engine/sql/docvalue"
)

// SampleStrategy is the §4.2 sampling method.
type SampleStrategy int

const (
	SampleRandom SampleStrategy = iota
	SampleForward
	SampleReverse
	SampleAll
)

func (s SampleStrategy) String() string {
	switch s {
	case SampleRandom:
		return "random"
	case SampleForward:
		return "idForward"
	case SampleReverse:
		return "idReverse"
	case SampleAll:
		return "all"
	default:
		return "unknown"
	}
}

// Stage is one stage of an aggregation pipeline, opaque to the core except
// for the minimal shape translators need to construct it (§4.5's stage
// table). Concrete stage construction lives in sql/plan; this type is just
// the wire shape the client consumes.
type Stage struct {
	Op   string // "$match", "$project", "$addFields", "$unwind", "$group", "$sort", "$skip", "$limit"
	Spec interface{}
}

// Cursor is the result-stream handle a run-aggregate call returns. Mirrors
// the spec's "run_aggregate(collection, pipeline) -> cursor" (§1).
type Cursor interface {
	// Next advances to the next document, returning (doc, true) or
	// (zero, false) at end of stream.
	Next(ctx context.Context) (docvalue.Value, bool, error)
	Close(ctx context.Context) error
}

// SampleIterator yields sampled documents for SchemaInference.
type SampleIterator interface {
	Next(ctx context.Context) (docvalue.Value, bool, error)
	Close(ctx context.Context) error
}

// Client is the document-database collaborator the core depends on but
// does not implement (§1).
type Client interface {
	RunAggregate(ctx context.Context, collection string, pipeline []Stage) (Cursor, error)
	Sample(ctx context.Context, collection string, n int, strategy SampleStrategy) (SampleIterator, error)
}
