package queryfile

import (
	"context"
	"fmt"

	"github.com/quarryhq/quarry/internal/store"
	"github.com/quarryhq/quarry/tabular"
	"github.com/quarryhq/quarry/value"
)

// ResolveSource materializes the document's declared source. The whole CSV
// file or table is loaded; the document's constraints are applied by the
// compiled query so both source kinds behave identically.
func ResolveSource(ctx context.Context, doc *Document) (*tabular.Source, error) {
	if doc.Source.CSV != "" {
		src, err := tabular.FromCSVFile(doc.Source.CSV)
		if err != nil {
			return nil, fmt.Errorf("load csv source: %w", err)
		}
		return src, nil
	}

	db, err := store.Open(doc.Source.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite source: %w", err)
	}
	defer db.Close()

	src, err := db.LoadTable(ctx, doc.Source.SQLite.Table)
	if err != nil {
		return nil, fmt.Errorf("load sqlite source: %w", err)
	}
	return src, nil
}

// Compile binds a parsed document to a source, producing an executable plan.
// All construction-time validation (descriptor shape, field names) happens
// here; data-dependent failures wait for Execute.
func Compile(doc *Document, src *tabular.Source) (*tabular.Query, error) {
	sel, err := toSelection(&doc.Select)
	if err != nil {
		return nil, err
	}

	where := make([]tabular.Constraint, 0, len(doc.Where))
	for i, w := range doc.Where {
		vals := make([]value.Value, len(w.Values.Values))
		for j, raw := range w.Values.Values {
			v, err := toValue(raw)
			if err != nil {
				return nil, fmt.Errorf("where[%d]: %w", i, err)
			}
			vals[j] = v
		}
		where = append(where, tabular.In(w.Field, vals...))
	}

	q, err := src.Select(sel, where...)
	if err != nil {
		return nil, err
	}

	return applySteps(q, doc.Steps)
}

func applySteps(q *tabular.Query, steps []StepSpec) (*tabular.Query, error) {
	for _, s := range steps {
		switch s.Name {
		case "map":
			fn, ok := mapOps[s.Op]
			if !ok {
				return nil, fmt.Errorf("unknown map op %q", s.Op)
			}
			q = q.MapNamed(s.Op, fn)
		case "filter":
			pred, ok := filterOps[s.Op]
			if !ok {
				return nil, fmt.Errorf("unknown filter op %q", s.Op)
			}
			q = q.FilterNamed(s.Op, pred)
		case "sum":
			q = q.Sum()
		case "count":
			q = q.Count()
		case "avg":
			q = q.Avg()
		case "min":
			q = q.Min()
		case "max":
			q = q.Max()
		case "distinct":
			q = q.Distinct()
		default:
			return nil, fmt.Errorf("unknown step verb %q", s.Name)
		}
	}
	return q, nil
}

func toSelection(sel *SelectSpec) (tabular.Selection, error) {
	switch {
	case sel.List != nil:
		return tabular.List{Inner: fieldsOf(sel.List.Names)}, nil
	case sel.Set != nil:
		return tabular.Set{Inner: fieldsOf(sel.Set.Names)}, nil
	case sel.Group != nil:
		over, err := toSelection(sel.Group.Over)
		if err != nil {
			return nil, err
		}
		return tabular.Group{Key: fieldsOf(sel.Group.By.Names), Over: over}, nil
	default:
		return nil, fmt.Errorf("select: exactly one of list, set, or group is required")
	}
}

func fieldsOf(names []string) tabular.Selection {
	if len(names) == 1 {
		return tabular.Field{Name: names[0]}
	}
	return tabular.Cols{Names: names}
}

// toValue converts a decoded YAML/CUE scalar to an engine value.
func toValue(raw any) (value.Value, error) {
	switch v := raw.(type) {
	case nil:
		return value.Null{}, nil
	case string:
		return value.String(v), nil
	case bool:
		return value.Bool(v), nil
	case int:
		return value.Int(v), nil
	case int64:
		return value.Int(v), nil
	case float64:
		return value.Float(v), nil
	default:
		return nil, fmt.Errorf("unsupported constraint value type %T", raw)
	}
}
