package queryfile

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// ParseCUE parses and validates a CUE query document. The document is
// unified with the embedded schema first, so malformed documents fail with
// positioned errors before any extraction runs.
func ParseCUE(data []byte) (*Document, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}

	val := ctx.CompileBytes(data, cue.Filename("query.cue"))
	if err := val.Err(); err != nil {
		return nil, cueError("compile query document", err)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError("validate query document", err)
	}

	doc, err := extractDocument(unified)
	if err != nil {
		return nil, err
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func extractDocument(v cue.Value) (*Document, error) {
	doc := &Document{}

	if csv := v.LookupPath(cue.ParsePath("source.csv")); csv.Exists() {
		path, err := csv.String()
		if err != nil {
			return nil, cueError("source.csv", err)
		}
		doc.Source.CSV = path
	}
	if sq := v.LookupPath(cue.ParsePath("source.sqlite")); sq.Exists() {
		path, err := sq.LookupPath(cue.ParsePath("path")).String()
		if err != nil {
			return nil, cueError("source.sqlite.path", err)
		}
		table, err := sq.LookupPath(cue.ParsePath("table")).String()
		if err != nil {
			return nil, cueError("source.sqlite.table", err)
		}
		doc.Source.SQLite = &SQLiteSpec{Path: path, Table: table}
	}

	sel, err := extractSelect(v.LookupPath(cue.ParsePath("select")))
	if err != nil {
		return nil, err
	}
	doc.Select = *sel

	if where := v.LookupPath(cue.ParsePath("where")); where.Exists() {
		iter, err := where.List()
		if err != nil {
			return nil, cueError("where", err)
		}
		for iter.Next() {
			spec, err := extractWhere(iter.Value())
			if err != nil {
				return nil, err
			}
			doc.Where = append(doc.Where, spec)
		}
	}

	if steps := v.LookupPath(cue.ParsePath("steps")); steps.Exists() {
		iter, err := steps.List()
		if err != nil {
			return nil, cueError("steps", err)
		}
		for iter.Next() {
			spec, err := extractStep(iter.Value())
			if err != nil {
				return nil, err
			}
			doc.Steps = append(doc.Steps, spec)
		}
	}

	return doc, nil
}

func extractSelect(v cue.Value) (*SelectSpec, error) {
	sel := &SelectSpec{}

	if list := v.LookupPath(cue.ParsePath("list")); list.Exists() {
		names, err := extractFields(list)
		if err != nil {
			return nil, err
		}
		sel.List = &FieldsSpec{Names: names}
	}
	if set := v.LookupPath(cue.ParsePath("set")); set.Exists() {
		names, err := extractFields(set)
		if err != nil {
			return nil, err
		}
		sel.Set = &FieldsSpec{Names: names}
	}
	if group := v.LookupPath(cue.ParsePath("group")); group.Exists() {
		by, err := extractFields(group.LookupPath(cue.ParsePath("by")))
		if err != nil {
			return nil, err
		}
		over, err := extractSelect(group.LookupPath(cue.ParsePath("over")))
		if err != nil {
			return nil, err
		}
		sel.Group = &GroupSpec{By: FieldsSpec{Names: by}, Over: over}
	}

	return sel, nil
}

// extractFields accepts a single field name or a list of names.
func extractFields(v cue.Value) ([]string, error) {
	if name, err := v.String(); err == nil {
		return []string{name}, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, cueError("field selection", err)
	}
	var names []string
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, cueError("field selection", err)
		}
		names = append(names, name)
	}
	return names, nil
}

func extractWhere(v cue.Value) (WhereSpec, error) {
	var spec WhereSpec

	field, err := v.LookupPath(cue.ParsePath("field")).String()
	if err != nil {
		return spec, cueError("where.field", err)
	}
	spec.Field = field

	values := v.LookupPath(cue.ParsePath("values"))
	if values.Kind() == cue.ListKind {
		iter, err := values.List()
		if err != nil {
			return spec, cueError("where.values", err)
		}
		for iter.Next() {
			raw, err := extractScalar(iter.Value())
			if err != nil {
				return spec, err
			}
			spec.Values.Values = append(spec.Values.Values, raw)
		}
		return spec, nil
	}

	raw, err := extractScalar(values)
	if err != nil {
		return spec, err
	}
	spec.Values.Values = []any{raw}
	return spec, nil
}

func extractScalar(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	case cue.BoolKind:
		return v.Bool()
	default:
		return nil, fmt.Errorf("unsupported scalar kind %v", v.Kind())
	}
}

func extractStep(v cue.Value) (StepSpec, error) {
	var spec StepSpec

	if name, err := v.String(); err == nil {
		spec.Name = name
		return spec, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return spec, cueError("step", err)
	}
	for iter.Next() {
		spec.Name = iter.Label()
		op, err := iter.Value().String()
		if err != nil {
			return spec, cueError("step", err)
		}
		spec.Op = op
	}
	if spec.Name == "" {
		return spec, fmt.Errorf("step must be a verb or a single-field struct")
	}
	return spec, nil
}

// cueError surfaces the first positioned error from a CUE error list.
func cueError(context string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", context, err)
	}
	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		pos := positions[0]
		return fmt.Errorf("%s: %s:%d:%d: %s", context, pos.Filename(), pos.Line(), pos.Column(), first.Error())
	}
	return fmt.Errorf("%s: %s", context, first.Error())
}
