package store

import (
	"fmt"
	"strings"

	"github.com/quarryhq/quarry/tabular"
	"github.com/quarryhq/quarry/value"
)

// compileConstraints converts row constraints to a parameterized WHERE
// clause fragment (including the leading " WHERE", empty when there are no
// constraints). Values are never interpolated - always ? placeholders.
//
// One value compiles to equality, several to IN, zero to a match-nothing
// predicate, mirroring the in-memory constraint semantics exactly.
func compileConstraints(where []tabular.Constraint) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	var parts []string
	var params []any
	for _, c := range where {
		switch len(c.Values) {
		case 0:
			// Empty membership matches no rows.
			parts = append(parts, "1 = 0")
		case 1:
			p, err := valueToParam(c.Values[0])
			if err != nil {
				return "", nil, fmt.Errorf("constraint on %s: %w", c.Field, err)
			}
			parts = append(parts, quoteIdent(c.Field)+" = ?")
			params = append(params, p)
		default:
			placeholders := make([]string, len(c.Values))
			for i, v := range c.Values {
				p, err := valueToParam(v)
				if err != nil {
					return "", nil, fmt.Errorf("constraint on %s: %w", c.Field, err)
				}
				placeholders[i] = "?"
				params = append(params, p)
			}
			parts = append(parts, quoteIdent(c.Field)+" IN ("+strings.Join(placeholders, ",")+")")
		}
	}

	return " WHERE " + strings.Join(parts, " AND "), params, nil
}

// valueToParam converts an engine value to a Go native type for a SQL
// parameter. Tuples cannot be SQL parameters.
func valueToParam(v value.Value) (any, error) {
	switch val := v.(type) {
	case value.String:
		return string(val), nil
	case value.Int:
		return int64(val), nil
	case value.Float:
		return float64(val), nil
	case value.Bool:
		return bool(val), nil
	case value.Null:
		return nil, nil
	case value.Tuple:
		return nil, fmt.Errorf("tuple cannot be used as SQL parameter")
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
