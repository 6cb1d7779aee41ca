package queryfile

import (
	"sort"
	"strings"

	"github.com/quarryhq/quarry/value"
)

// Named operations usable from query documents. Registered ops keep plans
// fingerprintable: the op name stands in for the function identity.

type mapOp func(value.Value) (value.Value, error)
type filterOp func(value.Value) (bool, error)

var mapOps = map[string]mapOp{
	"upper": stringOp(strings.ToUpper),
	"lower": stringOp(strings.ToLower),
	"trim":  stringOp(strings.TrimSpace),
}

var filterOps = map[string]filterOp{
	"nonempty": func(v value.Value) (bool, error) {
		switch val := v.(type) {
		case value.Null:
			return false, nil
		case value.String:
			return strings.TrimSpace(string(val)) != "", nil
		default:
			return true, nil
		}
	},
	"numeric": func(v value.Value) (bool, error) {
		_, err := value.Numeric(v)
		return err == nil, nil
	},
}

// stringOp lifts a string transform to a map op. Non-string values pass
// through unchanged.
func stringOp(fn func(string) string) mapOp {
	return func(v value.Value) (value.Value, error) {
		if s, ok := v.(value.String); ok {
			return value.String(fn(string(s))), nil
		}
		return v, nil
	}
}

func opNames[T any](ops map[string]T) []string {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
