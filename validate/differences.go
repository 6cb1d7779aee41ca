// Package validate compares materialized query results against declared
// requirements, reporting typed differences instead of a bare pass/fail.
//
// A requirement describes what the data should look like (a required set of
// values, an ordered sequence, a per-element predicate or pattern, a single
// required value, or a per-group mapping). Check walks the data and yields
// one Difference per discrepancy; an empty report means the data satisfies
// the requirement.
package validate

import (
	"fmt"

	"github.com/quarryhq/quarry/value"
)

// Difference is a sealed interface describing one discrepancy between data
// and a requirement.
//
// Difference types:
//   - Missing: a required element absent from the data
//   - Extra: a data element the requirement does not allow
//   - Invalid: an element failing a predicate, pattern, or equality
//   - Deviation: a numeric element differing from a required number
type Difference interface {
	difference() // Marker method - seals interface to this package
}

// Missing reports a required element absent from the data.
type Missing struct {
	Value value.Value
}

func (Missing) difference() {}

func (d Missing) String() string {
	return fmt.Sprintf("Missing(%s)", value.Format(d.Value))
}

// Extra reports a data element the requirement does not allow.
type Extra struct {
	Value value.Value
}

func (Extra) difference() {}

func (d Extra) String() string {
	return fmt.Sprintf("Extra(%s)", value.Format(d.Value))
}

// Invalid reports an element that fails a predicate, pattern, or equality
// requirement. Expected is nil when the requirement has no single expected
// value (predicates, patterns).
type Invalid struct {
	Value    value.Value
	Expected value.Value
}

func (Invalid) difference() {}

func (d Invalid) String() string {
	if d.Expected != nil {
		return fmt.Sprintf("Invalid(%s, expected %s)", value.Format(d.Value), value.Format(d.Expected))
	}
	return fmt.Sprintf("Invalid(%s)", value.Format(d.Value))
}

// Deviation reports a numeric element differing from a required number by
// Diff (actual minus expected).
type Deviation struct {
	Diff     float64
	Expected value.Value
	Actual   value.Value
}

func (Deviation) difference() {}

func (d Deviation) String() string {
	return fmt.Sprintf("Deviation(%+g, expected %s)", d.Diff, value.Format(d.Expected))
}
