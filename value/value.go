// Package value defines the constrained value types that flow through the
// query engine. Cells, projected elements, group keys, and aggregation
// results are all Values.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a sealed interface representing a single cell or element.
// Only String, Int, Float, Bool, Null, and Tuple implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the executor.
type Value interface {
	value() // Sealed - only types in this package implement it
}

// String represents a text value. CSV-backed sources produce String cells
// exclusively; numeric interpretation happens lazily at aggregation time.
type String string

func (String) value() {}

// Int represents an integer value. Always int64.
type Int int64

func (Int) value() {}

// Float represents a floating-point value.
type Float float64

func (Float) value() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) value() {}

// Null represents an absent value (e.g. SQL NULL).
// Using an explicit type keeps the sealed interface total.
type Null struct{}

func (Null) value() {}

// Tuple represents an ordered projection of several fields, used for
// multi-field selections and compound group keys.
type Tuple []Value

func (Tuple) value() {}

// NewTuple creates a Tuple from values.
func NewTuple(vals ...Value) Tuple {
	return Tuple(vals)
}

// Numeric coerces a value to Int or Float for aggregation.
//
// Coercion rules:
//   - Int and Float pass through unchanged
//   - String parses as int64 first, then float64
//   - Bool, Null, and Tuple are not numeric and return an error
//
// String parsing is strict: leading/trailing whitespace is tolerated but
// anything else (currency symbols, thousands separators) is an error.
func Numeric(v Value) (Value, error) {
	switch val := v.(type) {
	case Int:
		return val, nil
	case Float:
		return val, nil
	case String:
		s := strings.TrimSpace(string(val))
		if s == "" {
			return nil, fmt.Errorf("empty string is not numeric")
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("string %q is not numeric", string(val))
		}
		return Float(f), nil
	case Bool:
		return nil, fmt.Errorf("bool is not numeric")
	case Null:
		return nil, fmt.Errorf("null is not numeric")
	case Tuple:
		return nil, fmt.Errorf("tuple is not numeric")
	default:
		return nil, fmt.Errorf("unknown value type: %T", v)
	}
}

// AsFloat coerces a value to float64 using Numeric rules.
func AsFloat(v Value) (float64, error) {
	n, err := Numeric(v)
	if err != nil {
		return 0, err
	}
	switch num := n.(type) {
	case Int:
		return float64(num), nil
	case Float:
		return float64(num), nil
	default:
		return 0, fmt.Errorf("unexpected numeric type: %T", n)
	}
}

// Equal reports whether two values are identical.
// Values of different kinds are never equal: Int(1) != Float(1.0) != String("1").
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Null:
		_, ok := b.(Null)
		return ok
	case Tuple:
		bv, ok := b.(Tuple)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Format renders a value for display.
// Strings render bare (no quotes), tuples render as "(a, b)".
func Format(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Null:
		return ""
	case Tuple:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Format(elem)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("%v", v)
	}
}
