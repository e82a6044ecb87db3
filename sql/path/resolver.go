// Package path implements the PathResolver (§4.3): translating a virtual
// column's identity (table-path + column name) into the sequence of
// aggregation stages needed to make that column addressable as a
// top-level field in the current pipeline.
package path

import "strings"

// StageOp names an aggregation stage kind, mirroring docclient.Stage.Op so
// callers can build a docclient.Stage directly from one of these without a
// conversion layer.
type StageOp string

const (
	OpMatch  StageOp = "$match"
	OpUnwind StageOp = "$unwind"
)

// MatchExistsSpec is the Spec payload for an exists-check match stage.
type MatchExistsSpec struct {
	Field string
}

// UnwindSpec is the Spec payload for an unwind stage.
type UnwindSpec struct {
	Field                    string
	PreserveNullAndEmptyArray bool
	IncludeArrayIndex        string // e.g. "array_index_lvl_0"
}

// Stage is one resolved stage, kept independent of docclient.Stage so this
// package has no dependency on the client wire shape.
type Stage struct {
	Op   StageOp
	Spec interface{}
}

// segment is one dotted component of a path, optionally array-valued.
type segment struct {
	name    string
	isArray bool
}

// splitPath parses "a.b[].c[]" into [{a,false},{b,true},{c,true}].
func splitPath(p string) []segment {
	if p == "" {
		return nil
	}
	parts := strings.Split(p, ".")
	out := make([]segment, 0, len(parts))
	for _, part := range parts {
		isArray := strings.HasSuffix(part, "[]")
		name := strings.TrimSuffix(part, "[]")
		out = append(out, segment{name: name, isArray: isArray})
	}
	return out
}

// Resolver de-duplicates unwinds across an operator's multiple column
// references, emitting each unwind exactly once, in parent-first order
// (§4.3).
type Resolver struct {
	matchedExists map[string]bool
	unwoundPaths  map[string]bool
	stages        []Stage
	nextIndexVar  int
}

func NewResolver() *Resolver {
	return &Resolver{matchedExists: map[string]bool{}, unwoundPaths: map[string]bool{}}
}

// Resolve folds one column's full dotted path (e.g. "a.b[].c[]") into the
// resolver's accumulated stage list, returning the stages newly added by
// this call (already-emitted unwinds for a shared prefix are skipped).
func (r *Resolver) Resolve(fullPath string) []Stage {
	segs := splitPath(fullPath)
	before := len(r.stages)

	cumulative := ""
	firstArrayCumulative := ""
	for i, s := range segs {
		if cumulative == "" {
			cumulative = s.name
		} else {
			cumulative = cumulative + "." + s.name
		}
		if s.isArray {
			if firstArrayCumulative == "" {
				firstArrayCumulative = cumulative
				if !r.matchedExists[firstArrayCumulative] {
					r.matchedExists[firstArrayCumulative] = true
					r.stages = append(r.stages, Stage{Op: OpMatch, Spec: MatchExistsSpec{Field: firstArrayCumulative}})
				}
			}
			if !r.unwoundPaths[cumulative] {
				r.unwoundPaths[cumulative] = true
				indexVar := indexVarName(countArraysSoFar(segs, i))
				r.stages = append(r.stages, Stage{
					Op: OpUnwind,
					Spec: UnwindSpec{
						Field: cumulative, PreserveNullAndEmptyArray: true, IncludeArrayIndex: indexVar,
					},
				})
			}
		}
	}
	return r.stages[before:]
}

// Stages returns every stage accumulated across all Resolve calls so far,
// in emission order.
func (r *Resolver) Stages() []Stage {
	return append([]Stage(nil), r.stages...)
}

func indexVarName(level int) string {
	return "array_index_lvl_" + itoa(level)
}

// countArraysSoFar returns the 0-based array-nesting level of the segment
// at index idx: one less than the number of array segments up to and
// including it.
func countArraysSoFar(segs []segment, idx int) int {
	level := -1
	for i := 0; i <= idx; i++ {
		if segs[i].isArray {
			level++
		}
	}
	return level
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
