package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolveExampleFromSpec grounds §4.3's worked example exactly:
// match(exists a.b), unwind(a.b, lvl0), unwind(a.b.c, lvl1).
func TestResolveExampleFromSpec(t *testing.T) {
	r := NewResolver()
	stages := r.Resolve("a.b[].c[]")
	require.Len(t, stages, 3)

	assert.Equal(t, OpMatch, stages[0].Op)
	assert.Equal(t, MatchExistsSpec{Field: "a.b"}, stages[0].Spec)

	assert.Equal(t, OpUnwind, stages[1].Op)
	u1 := stages[1].Spec.(UnwindSpec)
	assert.Equal(t, "a.b", u1.Field)
	assert.True(t, u1.PreserveNullAndEmptyArray)
	assert.Equal(t, "array_index_lvl_0", u1.IncludeArrayIndex)

	assert.Equal(t, OpUnwind, stages[2].Op)
	u2 := stages[2].Spec.(UnwindSpec)
	assert.Equal(t, "a.b.c", u2.Field)
	assert.Equal(t, "array_index_lvl_1", u2.IncludeArrayIndex)
}

// TestUnwindDeduplication grounds §8 property 3: the emitted pipeline
// contains at most one $unwind per document path, across multiple column
// references sharing a prefix.
func TestUnwindDeduplication(t *testing.T) {
	r := NewResolver()
	r.Resolve("a.b[].c[]")
	r.Resolve("a.b[].d[]")
	r.Resolve("a.b[].c[]") // same column referenced twice more

	stages := r.Stages()
	unwindCount := map[string]int{}
	for _, s := range stages {
		if s.Op == OpUnwind {
			unwindCount[s.Spec.(UnwindSpec).Field]++
		}
	}
	assert.Equal(t, 1, unwindCount["a.b"])
	assert.Equal(t, 1, unwindCount["a.b.c"])
	assert.Equal(t, 1, unwindCount["a.b.d"])
}

func TestNoArraysProducesNoStages(t *testing.T) {
	r := NewResolver()
	stages := r.Resolve("a.b.c")
	assert.Empty(t, stages)
}
