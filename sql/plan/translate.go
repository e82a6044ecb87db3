package plan

import (
	"fmt"

	"github.com/docsql/engine/sql/coreerr"
	"github.com/docsql/engine/sql/docclient"
	"github.com/docsql/engine/sql/expression"
	"github.com/docsql/engine/sql/path"
	"github.com/docsql/engine/sql/types"
)

// Translation is one operator's emitted stages plus the visible-column
// set they leave behind (§4.5's `visible_columns'`).
type Translation struct {
	Stages  []docclient.Stage
	Visible []VisibleColumn
}

// Translator is the OperatorTranslator (§4.5). flagCounter backs the
// filter-flag state machine's fresh names (`__filter_flag_N`); it lives on
// the Translator instance, not a package var, so no global mutable state
// survives a compilation (§5).
type Translator struct {
	Expr        *expression.Translator
	flagCounter int
}

func New(expr *expression.Translator) *Translator {
	return &Translator{Expr: expr}
}

// Translate dispatches on op.Kind, recursing into inputs before emitting
// this operator's own stages — the bottom-up walk PlanCompiler drives.
func (t *Translator) Translate(op *Operator) (*Translation, error) {
	switch op.Kind {
	case KindScan:
		return t.scan(op)
	case KindFilter:
		return t.filter(op)
	case KindProject:
		return t.project(op)
	case KindAggregate:
		return t.aggregate(op)
	case KindSort:
		return t.sort(op)
	case KindLimit:
		return t.limit(op)
	case KindJoin:
		return t.join(op)
	default:
		return nil, coreerr.ErrUnsupported.New(fmt.Sprintf("operator kind %d", op.Kind))
	}
}

// scan implements §4.5's Scan row: required match(exists)+unwinds from
// PathResolver for every column's path, then an initial $project
// restricting to the table's own columns.
func (t *Translator) scan(op *Operator) (*Translation, error) {
	resolver := path.NewResolver()
	var stages []docclient.Stage
	for i := range op.Table.Columns {
		c := &op.Table.Columns[i]
		if c.SourceFieldPath == "" {
			continue
		}
		for _, s := range resolver.Resolve(c.SourceFieldPath) {
			stages = append(stages, docclient.Stage{Op: string(s.Op), Spec: s.Spec})
		}
	}

	projectSpec := map[string]interface{}{}
	visible := make([]VisibleColumn, 0, len(op.Table.Columns))
	for i := range op.Table.Columns {
		c := &op.Table.Columns[i]
		field := c.Name
		if c.SourceFieldPath != "" {
			field = "$" + c.SourceFieldPath
		} else {
			field = "$" + c.Name
		}
		projectSpec[c.Name] = field
		visible = append(visible, VisibleColumn{Name: c.Name, Column: c})
	}
	stages = append(stages, docclient.Stage{Op: "$project", Spec: projectSpec})

	return &Translation{Stages: stages, Visible: visible}, nil
}

func (t *Translator) nextFlagName() string {
	t.flagCounter++
	return fmt.Sprintf("__filter_flag_%d", t.flagCounter)
}

// filter implements §4.5's Filter row and the filter-flag state machine
// (no-flag -> flag-present -> no-flag, entirely local to this call): when
// the predicate has no match-stage form, a projection adds a boolean flag
// column, a $match selects flag=true, and a trailing $project drops it, so
// every row downstream again sees the no-flag visible-column set.
func (t *Translator) filter(op *Operator) (*Translation, error) {
	input, err := t.Translate(op.Input)
	if err != nil {
		return nil, err
	}
	agg, match, err := t.Expr.Translate(op.Predicate)
	if err != nil {
		return nil, err
	}
	stages := input.Stages
	if match != nil {
		stages = append(stages, docclient.Stage{Op: "$match", Spec: match})
		return &Translation{Stages: stages, Visible: input.Visible}, nil
	}

	flag := t.nextFlagName()
	addFlag := map[string]interface{}{flag: agg}
	stages = append(stages, docclient.Stage{Op: "$addFields", Spec: addFlag})
	stages = append(stages, docclient.Stage{Op: "$match", Spec: map[string]interface{}{flag: true}})
	dropFlag := map[string]interface{}{flag: 0}
	stages = append(stages, docclient.Stage{Op: "$project", Spec: dropFlag})
	return &Translation{Stages: stages, Visible: input.Visible}, nil
}

// project implements §4.5's Project row: a $project mapping each output
// column to its AggExpr, with rename book-keeping threaded into
// `visible_columns'`.
func (t *Translator) project(op *Operator) (*Translation, error) {
	input, err := t.Translate(op.Input)
	if err != nil {
		return nil, err
	}
	spec := map[string]interface{}{}
	visible := make([]VisibleColumn, 0, len(op.Projects))
	for _, p := range op.Projects {
		agg, _, err := t.Expr.Translate(p.Expr)
		if err != nil {
			return nil, err
		}
		spec[p.Name] = agg
		visible = append(visible, VisibleColumn{Name: p.Name, Column: &types.Column{
			Name: p.Name, Type: p.OutputType, Nullable: p.Nullable,
		}})
	}
	stages := append(input.Stages, docclient.Stage{Op: "$project", Spec: spec})
	return &Translation{Stages: stages, Visible: visible}, nil
}

var aggMongoOp = map[AggFunc]string{
	AggSum: "$sum", AggAvg: "$avg", AggMin: "$min", AggMax: "$max",
}

// aggregate implements §4.5's Aggregate row: `$group` keyed on group_keys
// plus one accumulator per agg, then a `$project` lifting the keys back to
// top-level columns. COUNT(col) omits rows where col is missing/null by
// summing a 0/1 indicator rather than using $count directly, so SUM(1) and
// COUNT(*) remain provably identical (§8 property 5).
func (t *Translator) aggregate(op *Operator) (*Translation, error) {
	input, err := t.Translate(op.Input)
	if err != nil {
		return nil, err
	}
	groupID := map[string]interface{}{}
	for _, k := range op.GroupKeys {
		groupID[k] = "$" + k
	}
	groupSpec := map[string]interface{}{"_id": groupID}
	liftSpec := map[string]interface{}{}
	for _, k := range op.GroupKeys {
		liftSpec[k] = "$_id." + k
	}

	inputByName := map[string]*types.Column{}
	for _, v := range input.Visible {
		inputByName[v.Name] = v.Column
	}

	visible := make([]VisibleColumn, 0, len(op.GroupKeys)+len(op.Aggs))
	for _, k := range op.GroupKeys {
		visible = append(visible, VisibleColumn{Name: k, Column: inputByName[k]})
	}

	for _, a := range op.Aggs {
		var outType *types.Column
		switch a.Func {
		case AggCountAll:
			groupSpec[a.Name] = map[string]interface{}{"$sum": 1}
			outType = &types.Column{Name: a.Name, Type: types.BIGINT}
		case AggCountCol:
			argAgg, _, err := t.Expr.Translate(*a.Arg)
			if err != nil {
				return nil, err
			}
			indicator := map[string]interface{}{"$cond": map[string]interface{}{
				"if": map[string]interface{}{"$eq": []interface{}{argAgg, nil}}, "then": 0, "else": 1,
			}}
			groupSpec[a.Name] = map[string]interface{}{"$sum": indicator}
			outType = &types.Column{Name: a.Name, Type: types.BIGINT}
		default:
			mop, ok := aggMongoOp[a.Func]
			if !ok {
				return nil, coreerr.ErrUnsupported.New(fmt.Sprintf("aggregate function %s", a.Func))
			}
			argAgg, _, err := t.Expr.Translate(*a.Arg)
			if err != nil {
				return nil, err
			}
			groupSpec[a.Name] = map[string]interface{}{mop: argAgg}
			outType = &types.Column{Name: a.Name, Type: aggOutputType(a.Func, argColumnOf(*a.Arg))}
		}
		liftSpec[a.Name] = "$" + a.Name
		visible = append(visible, VisibleColumn{Name: a.Name, Column: outType})
	}

	stages := append(input.Stages, docclient.Stage{Op: "$group", Spec: groupSpec})
	stages = append(stages, docclient.Stage{Op: "$project", Spec: liftSpec})
	return &Translation{Stages: stages, Visible: visible}, nil
}

// SortField is one entry of an ordered `$sort` document. Mongo's `$sort`
// stage is itself order-sensitive (compound sorts break ties left to
// right), so the spec's keys — and the null-rank flag field each one
// needs — cannot be carried in a plain map, which has no defined iteration
// order once it leaves this package.
type SortField struct {
	Name string
	Dir  int
}

// sort implements §4.5's Sort row. A plain `$sort` puts nulls first for
// ascending keys (Mongo's default collation), the opposite of SQL's
// default; a synthetic "is this key null" flag is sorted ahead of the real
// key, inverted for DESC, so SQL's nulls-last-ASC/nulls-first-DESC holds,
// then the flag fields are dropped. Field order matters here exactly as
// much as it does for the keys themselves: each flag must precede its own
// key, and earlier ORDER BY keys must precede later ones (§3: "ties break
// by primary key ascending" depends on this for multi-key sorts).
func (t *Translator) sort(op *Operator) (*Translation, error) {
	input, err := t.Translate(op.Input)
	if err != nil {
		return nil, err
	}
	addFields := map[string]interface{}{}
	var sortSpec []SortField
	dropFields := map[string]interface{}{}
	for i, k := range op.SortKeys {
		flag := fmt.Sprintf("__null_rank_%d", i)
		nullLast := map[string]interface{}{"$cond": map[string]interface{}{
			"if": map[string]interface{}{"$eq": []interface{}{"$" + k.Name, nil}}, "then": 1, "else": 0,
		}}
		addFields[flag] = nullLast
		dropFields[flag] = 0
		dir := 1
		flagDir := 1
		if k.Desc {
			dir = -1
			// DESC wants nulls first: invert the rank so non-null sorts
			// after null under the same dir as the real key.
			flagDir = -1
		}
		sortSpec = append(sortSpec, SortField{Name: flag, Dir: flagDir}, SortField{Name: k.Name, Dir: dir})
	}
	stages := append(input.Stages, docclient.Stage{Op: "$addFields", Spec: addFields})
	stages = append(stages, docclient.Stage{Op: "$sort", Spec: sortSpec})
	stages = append(stages, docclient.Stage{Op: "$project", Spec: dropFields})
	return &Translation{Stages: stages, Visible: input.Visible}, nil
}

// limit implements §4.5's Limit/Offset row: skip before limit; offset
// without limit emits only $skip.
func (t *Translator) limit(op *Operator) (*Translation, error) {
	input, err := t.Translate(op.Input)
	if err != nil {
		return nil, err
	}
	stages := input.Stages
	if op.Offset != nil && *op.Offset > 0 {
		stages = append(stages, docclient.Stage{Op: "$skip", Spec: *op.Offset})
	}
	if op.Limit != nil {
		stages = append(stages, docclient.Stage{Op: "$limit", Spec: *op.Limit})
	}
	return &Translation{Stages: stages, Visible: input.Visible}, nil
}

// argColumnOf returns the column type an aggregate's argument resolves to,
// when it is a bare column reference; INTEGER as a conservative default
// otherwise (SUM/AVG/MIN/MAX of a computed expression still need some
// declared output type, and PlanCompiler's caller — the out-of-scope
// logical optimizer, §1 — is expected to have already type-checked it).
func argColumnOf(e expression.Expr) types.ColumnType {
	if e.Kind == expression.KindColumnRef {
		return e.Column.Type
	}
	return types.INTEGER
}

// aggOutputType picks the declared SQL type for an aggregate result:
// SUM/AVG widen to DOUBLE, MIN/MAX keep the argument's own type.
func aggOutputType(fn AggFunc, argType types.ColumnType) types.ColumnType {
	switch fn {
	case AggSum, AggAvg:
		return types.DOUBLE
	default:
		return argType
	}
}
