package plan

import (
	"github.com/docsql/engine/sql/coreerr"
	"github.com/docsql/engine/sql/docclient"
	"github.com/docsql/engine/sql/expression"
	"github.com/docsql/engine/sql/path"
	"github.com/docsql/engine/sql/schema"
	"github.com/docsql/engine/sql/types"
)

// join implements §4.5's Join row: accepted only when both sides share a
// root collection and the condition equates foreign-key columns to their
// referenced primary-key columns. Because both sides already decompose the
// same collection's documents, the "join" reduces to merging their
// pipelines and unioning unwinds — there is no $lookup (§4.5: "the
// translator merges both sides' pipelines... the join reduces to shared
// data access").
func (t *Translator) join(op *Operator) (*Translation, error) {
	leftTable := scanTable(op.Left)
	rightTable := scanTable(op.Right)
	if leftTable == nil || rightTable == nil {
		// A Join beneath another Join has no single Scan to anchor
		// validation against — outer joins over more than two virtual
		// tables are rejected by construction (§9).
		return nil, coreerr.UnsupportedJoinType("joins over more than two virtual tables are not supported")
	}
	if leftTable.SourceCollection != rightTable.SourceCollection {
		return nil, coreerr.UnsupportedJoinType("cross-collection join")
	}
	if err := validateEquiJoinCondition(op.JoinCondition); err != nil {
		return nil, err
	}

	left, err := t.Translate(op.Left)
	if err != nil {
		return nil, err
	}
	right, err := t.Translate(op.Right)
	if err != nil {
		return nil, err
	}

	stages := append([]docclient.Stage(nil), left.Stages...)
	seen := unwindPaths(stages)
	for _, s := range right.Stages {
		if s.Op == "$unwind" {
			if u, ok := s.Spec.(path.UnwindSpec); ok && seen[u.Field] {
				continue
			}
		}
		stages = append(stages, s)
	}

	visible := append([]VisibleColumn(nil), left.Visible...)
	leftNames := map[string]bool{}
	for _, v := range left.Visible {
		leftNames[v.Name] = true
	}
	for _, v := range right.Visible {
		name := v.Name
		if leftNames[name] {
			name = rightTable.SQLName + "_" + name
		}
		visible = append(visible, VisibleColumn{Name: name, Column: v.Column})
	}

	return &Translation{Stages: stages, Visible: visible}, nil
}

// scanTable walks a simple linear operator chain down to its Scan,
// returning the table it reads.
func scanTable(op *Operator) *schema.Table {
	for op != nil {
		switch op.Kind {
		case KindScan:
			return op.Table
		case KindJoin:
			return nil
		default:
			op = op.Input
		}
	}
	return nil
}

// validateEquiJoinCondition requires cond to be a conjunction of `=`
// comparisons, each pairing a column with its foreign key's referenced
// column (including matching array_index_lvl_N columns level-by-level,
// since those are ordinary ForeignKey-bearing columns on array-child
// tables like any other).
func validateEquiJoinCondition(cond expression.Expr) error {
	for _, eq := range flattenAnd(cond) {
		if eq.Kind != expression.KindCall || eq.Op != expression.OpEq {
			return coreerr.UnsupportedJoinType("join condition must be a conjunction of equalities")
		}
		lhs, rhs := eq.Args[0], eq.Args[1]
		if lhs.Kind != expression.KindColumnRef || rhs.Kind != expression.KindColumnRef {
			return coreerr.UnsupportedJoinType("join condition must equate columns")
		}
		if !referencesEachOther(lhs.Column, rhs.Column) {
			return coreerr.UnsupportedJoinType("join condition must equate a foreign key to its referenced primary key")
		}
	}
	return nil
}

// referencesEachOther reports whether one of a, b declares the other as
// its foreign-key target. column_id is a stable hash of (table_id,
// field_name) (§4.2 step 4), so a RefColumn match already encodes both
// table and field identity — no separate table-id check is needed.
func referencesEachOther(a, b *types.Column) bool {
	if a.ForeignKey != nil && a.ForeignKey.RefColumn == b.ID {
		return true
	}
	if b.ForeignKey != nil && b.ForeignKey.RefColumn == a.ID {
		return true
	}
	return false
}

func flattenAnd(e expression.Expr) []expression.Expr {
	if e.Kind == expression.KindCall && e.Op == expression.OpAnd {
		var out []expression.Expr
		for _, a := range e.Args {
			out = append(out, flattenAnd(a)...)
		}
		return out
	}
	return []expression.Expr{e}
}

func unwindPaths(stages []docclient.Stage) map[string]bool {
	seen := map[string]bool{}
	for _, s := range stages {
		if s.Op == "$unwind" {
			if u, ok := s.Spec.(path.UnwindSpec); ok {
				seen[u.Field] = true
			}
		}
	}
	return seen
}
