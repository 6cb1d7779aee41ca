package tabular

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quarryhq/quarry/value"
)

// Execute runs the query synchronously to completion and materializes the
// container shape the selection descriptor declares.
//
// Evaluation order:
//  1. Scan source rows once, applying the Select-time constraints
//     (row-level, independent of chained Filter steps)
//  2. Project surviving rows onto the descriptor, preserving row order
//  3. Partition by group key for grouping shapes (first-seen key order)
//  4. Apply pending steps in declaration order
//  5. Materialize the declared container
//
// An empty result after constraint filtering yields an empty container of
// the declared shape, never an error. Data-dependent failures abort the
// whole evaluation; no partial container is returned.
func (q *Query) Execute(ctx context.Context) (Result, error) {
	start := time.Now()
	logger := q.logger.With().
		Str("component", "executor").
		Str("run", uuid.Must(uuid.NewV7()).String()).
		Logger()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := q.src.matchingRows(q.where)
	logger.Debug().
		Int("source_rows", q.src.Len()).
		Int("matched_rows", len(rows)).
		Int("steps", len(q.steps)).
		Msg("scanning source")

	res := q.evalSelection(q.sel, rows)

	for _, s := range q.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := applyStep(s, res)
		if err != nil {
			return nil, err
		}
		res = next
	}

	logger.Debug().
		Dur("elapsed", time.Since(start)).
		Msg("query complete")
	return res, nil
}

// project evaluates a leaf descriptor (Field or Cols) against one row.
func (q *Query) project(leaf Selection, row int) value.Value {
	switch s := leaf.(type) {
	case Field:
		return q.src.cell(row, q.src.index[s.Name])
	case Cols:
		t := make(value.Tuple, len(s.Names))
		for i, name := range s.Names {
			t[i] = q.src.cell(row, q.src.index[name])
		}
		return t
	default:
		// validateSelection guarantees leaves are Field or Cols.
		return value.Null{}
	}
}

// evalSelection materializes the projected container for the given rows.
// Selection is normalized, so the root is always List, Set, or Group.
func (q *Query) evalSelection(sel Selection, rows []int) Result {
	switch s := sel.(type) {
	case List:
		vals := make([]value.Value, len(rows))
		for i, row := range rows {
			vals[i] = q.project(s.Inner, row)
		}
		return &ListResult{Values: vals}

	case Set:
		set := NewSetResult()
		for _, row := range rows {
			set.add(q.project(s.Inner, row))
		}
		return set

	case Group:
		grouped := NewGroupedResult()
		partitions := make(map[string][]int)
		var order []value.Value
		for _, row := range rows {
			key := q.project(s.Key, row)
			k := value.Key(key)
			if _, seen := partitions[k]; !seen {
				order = append(order, key)
			}
			partitions[k] = append(partitions[k], row)
		}
		for _, key := range order {
			sub := partitions[value.Key(key)]
			grouped.Put(key, q.evalSelection(s.Over, sub))
		}
		return grouped

	default:
		// Unreachable after normalizeSelection.
		return &ListResult{}
	}
}

// applyStep applies one pending operation to a result.
//
// Grouped results recurse into every group, with one exception: a Filter
// over per-group aggregates (all-scalar groups) filters the groups
// themselves, dropping those whose aggregate fails the predicate.
func applyStep(s Step, res Result) (Result, error) {
	if grouped, ok := res.(*GroupedResult); ok {
		if filter, isFilter := s.(FilterStep); isFilter && allScalarGroups(grouped) {
			return filterGroups(filter, grouped)
		}
		next := NewGroupedResult()
		for _, e := range grouped.Entries() {
			sub, err := applyStep(s, e.Value)
			if err != nil {
				return nil, err
			}
			next.Put(e.Key, sub)
		}
		return next, nil
	}

	switch step := s.(type) {
	case MapStep:
		return applyMap(step, res)
	case FilterStep:
		return applyFilter(step, res)
	case DistinctStep:
		return applyDistinct(res)
	case SumStep:
		return aggregate("sum", res, sumValues)
	case CountStep:
		return aggregate("count", res, countValues)
	case AvgStep:
		return aggregate("avg", res, avgValues)
	case MinStep:
		return aggregate("min", res, func(vals []value.Value) (value.Value, error) {
			return extremum("min", vals, func(candidate, best float64) bool { return candidate < best })
		})
	case MaxStep:
		return aggregate("max", res, func(vals []value.Value) (value.Value, error) {
			return extremum("max", vals, func(candidate, best float64) bool { return candidate > best })
		})
	default:
		return nil, newStepError(stepName(s), "unknown step type: %T", s)
	}
}

func allScalarGroups(g *GroupedResult) bool {
	if g.Len() == 0 {
		return true
	}
	for _, e := range g.entries {
		if _, ok := e.Value.(*ScalarResult); !ok {
			return false
		}
	}
	return true
}

func filterGroups(step FilterStep, g *GroupedResult) (Result, error) {
	next := NewGroupedResult()
	for _, e := range g.Entries() {
		scalar := e.Value.(*ScalarResult)
		keep, err := step.Pred(scalar.Value)
		if err != nil {
			return nil, newValueError("filter", err)
		}
		if keep {
			next.Put(e.Key, e.Value)
		}
	}
	return next, nil
}

func applyMap(step MapStep, res Result) (Result, error) {
	mapOne := func(v value.Value) (value.Value, error) {
		out, err := step.Fn(v)
		if err != nil {
			return nil, newValueError("map", err)
		}
		return out, nil
	}

	switch r := res.(type) {
	case *ListResult:
		vals := make([]value.Value, len(r.Values))
		for i, v := range r.Values {
			out, err := mapOne(v)
			if err != nil {
				return nil, err
			}
			vals[i] = out
		}
		return &ListResult{Values: vals}, nil

	case *SetResult:
		// Mapping can collapse distinct inputs; re-deduplicate.
		next := NewSetResult()
		for _, v := range r.Values() {
			out, err := mapOne(v)
			if err != nil {
				return nil, err
			}
			next.add(out)
		}
		return next, nil

	case *ScalarResult:
		out, err := mapOne(r.Value)
		if err != nil {
			return nil, err
		}
		return &ScalarResult{Value: out}, nil

	default:
		return nil, newStepError("map", "cannot map over %T", res)
	}
}

func applyFilter(step FilterStep, res Result) (Result, error) {
	keepOne := func(v value.Value) (bool, error) {
		keep, err := step.Pred(v)
		if err != nil {
			return false, newValueError("filter", err)
		}
		return keep, nil
	}

	switch r := res.(type) {
	case *ListResult:
		var vals []value.Value
		for _, v := range r.Values {
			keep, err := keepOne(v)
			if err != nil {
				return nil, err
			}
			if keep {
				vals = append(vals, v)
			}
		}
		return &ListResult{Values: vals}, nil

	case *SetResult:
		next := NewSetResult()
		for _, v := range r.Values() {
			keep, err := keepOne(v)
			if err != nil {
				return nil, err
			}
			if keep {
				next.add(v)
			}
		}
		return next, nil

	case *ScalarResult:
		return nil, newStepError("filter", "cannot filter a scalar result")

	default:
		return nil, newStepError("filter", "cannot filter %T", res)
	}
}

func applyDistinct(res Result) (Result, error) {
	switch r := res.(type) {
	case *ListResult:
		seen := make(map[string]struct{}, len(r.Values))
		var vals []value.Value
		for _, v := range r.Values {
			k := value.Key(v)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			vals = append(vals, v)
		}
		return &ListResult{Values: vals}, nil

	case *SetResult, *ScalarResult:
		// Sets are already deduplicated; a scalar has nothing to collapse.
		return res, nil

	default:
		return nil, newStepError("distinct", "cannot apply distinct to %T", res)
	}
}

// aggregate reduces a collection-shaped result to a scalar.
func aggregate(name string, res Result, reduce func([]value.Value) (value.Value, error)) (Result, error) {
	var vals []value.Value
	switch r := res.(type) {
	case *ListResult:
		vals = r.Values
	case *SetResult:
		vals = r.Values()
	case *ScalarResult:
		return nil, newStepError(name, "aggregation after aggregation")
	default:
		return nil, newStepError(name, "cannot aggregate %T", res)
	}

	out, err := reduce(vals)
	if err != nil {
		return nil, err
	}
	return &ScalarResult{Value: out}, nil
}

// sumValues totals numeric-coerced values. The total stays Int until a
// float appears; an empty collection sums to Int(0).
func sumValues(vals []value.Value) (value.Value, error) {
	var ints int64
	var floats float64
	isFloat := false

	for _, v := range vals {
		n, err := value.Numeric(v)
		if err != nil {
			return nil, newValueError("sum", err)
		}
		switch num := n.(type) {
		case value.Int:
			if isFloat {
				floats += float64(num)
			} else {
				ints += int64(num)
			}
		case value.Float:
			if !isFloat {
				isFloat = true
				floats = float64(ints)
			}
			floats += float64(num)
		}
	}

	if isFloat {
		return value.Float(floats), nil
	}
	return value.Int(ints), nil
}

func countValues(vals []value.Value) (value.Value, error) {
	return value.Int(len(vals)), nil
}

// avgValues returns the arithmetic mean as a Float, or Null for an empty
// collection.
func avgValues(vals []value.Value) (value.Value, error) {
	if len(vals) == 0 {
		return value.Null{}, nil
	}
	var total float64
	for _, v := range vals {
		f, err := value.AsFloat(v)
		if err != nil {
			return nil, newValueError("avg", err)
		}
		total += f
	}
	return value.Float(total / float64(len(vals))), nil
}

// extremum returns the numeric-coerced value winning the comparison, or
// Null for an empty collection.
func extremum(name string, vals []value.Value, better func(candidate, best float64) bool) (value.Value, error) {
	if len(vals) == 0 {
		return value.Null{}, nil
	}

	var best value.Value
	var bestF float64
	for i, v := range vals {
		n, err := value.Numeric(v)
		if err != nil {
			return nil, newValueError(name, err)
		}
		f, err := value.AsFloat(n)
		if err != nil {
			return nil, newValueError(name, err)
		}
		if i == 0 || better(f, bestF) {
			best = n
			bestF = f
		}
	}
	return best, nil
}

func stepName(s Step) string {
	switch s.(type) {
	case MapStep:
		return "map"
	case FilterStep:
		return "filter"
	case SumStep:
		return "sum"
	case CountStep:
		return "count"
	case AvgStep:
		return "avg"
	case MinStep:
		return "min"
	case MaxStep:
		return "max"
	case DistinctStep:
		return "distinct"
	default:
		return "unknown"
	}
}
