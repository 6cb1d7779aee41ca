package validate

import (
	"fmt"
	"regexp"

	"github.com/quarryhq/quarry/tabular"
	"github.com/quarryhq/quarry/value"
)

// Requirement is a sealed interface describing what data should look like.
//
// Requirement types:
//   - SetOf: required membership; yields Missing and Extra
//   - SequenceOf: required ordered elements; positional comparison
//   - Equals: required single value per element; Deviation for numerics
//   - Predicate: per-element boolean check; Invalid per failing element
//   - Pattern: per-element regular expression; Invalid on non-match
//   - Mapping: per-group requirements for grouped results
type Requirement interface {
	requirement() // Marker method - seals interface to this package
}

// SetOf requires the data's distinct elements to equal exactly this set.
// Required values absent from the data yield Missing; data values outside
// the set yield Extra. Order is not significant.
type SetOf struct {
	Values []value.Value
}

func (SetOf) requirement() {}

// SequenceOf requires the data's elements to equal these values in order.
// Positional mismatches yield Invalid; length mismatches yield Missing or
// Extra for the unmatched tail.
type SequenceOf struct {
	Values []value.Value
}

func (SequenceOf) requirement() {}

// Equals requires every element to equal a single value. When both sides
// coerce to numbers a mismatch is reported as a Deviation (actual minus
// expected), otherwise as Invalid.
type Equals struct {
	Value value.Value
}

func (Equals) requirement() {}

// Predicate requires every element to satisfy fn. Name appears in reports.
// A panicking predicate counts as failed, matching the engine's policy of
// treating requirement callbacks as untrusted.
type Predicate struct {
	Name string
	Fn   func(value.Value) bool
}

func (Predicate) requirement() {}

// Pattern requires every element to be a string matching the expression.
type Pattern struct {
	Regex *regexp.Regexp
}

func (Pattern) requirement() {}

// GroupRequirement pairs a group key with the requirement for its values.
type GroupRequirement struct {
	Key value.Value
	Req Requirement
}

// Mapping requires a grouped result to carry exactly these groups, each
// satisfying its own requirement. Required groups absent from the data
// yield per-key Missing differences; unexpected groups yield Extra keyed
// differences.
type Mapping struct {
	Groups []GroupRequirement
}

func (Mapping) requirement() {}

// KeyedDifference attributes a difference to a group key.
type KeyedDifference struct {
	Key value.Value
	Difference
}

// Check compares a materialized query result against a requirement and
// returns one Difference per discrepancy. An empty slice means the data is
// valid. A requirement that cannot apply to the result's shape (e.g. a
// SequenceOf against a grouped result) is an error, not a difference.
func Check(res tabular.Result, req Requirement) ([]Difference, error) {
	switch r := res.(type) {
	case *tabular.ScalarResult:
		return checkElements([]value.Value{r.Value}, req)
	case *tabular.ListResult:
		return checkElements(r.Values, req)
	case *tabular.SetResult:
		if _, ok := req.(SequenceOf); ok {
			return nil, fmt.Errorf("sequence requirement cannot apply to a set result")
		}
		return checkElements(r.Values(), req)
	case *tabular.GroupedResult:
		mapping, ok := req.(Mapping)
		if !ok {
			return nil, fmt.Errorf("grouped results require a mapping requirement, got %T", req)
		}
		return checkGrouped(r, mapping)
	default:
		return nil, fmt.Errorf("unknown result type: %T", res)
	}
}

// CheckValues compares a plain value slice against a requirement.
func CheckValues(vals []value.Value, req Requirement) ([]Difference, error) {
	return checkElements(vals, req)
}

func checkElements(vals []value.Value, req Requirement) ([]Difference, error) {
	switch r := req.(type) {
	case SetOf:
		return compareSet(vals, r.Values), nil
	case SequenceOf:
		return compareSequence(vals, r.Values), nil
	case Equals:
		return compareEquals(vals, r.Value), nil
	case Predicate:
		if r.Fn == nil {
			return nil, fmt.Errorf("predicate requirement has no function")
		}
		return comparePredicate(vals, r), nil
	case Pattern:
		if r.Regex == nil {
			return nil, fmt.Errorf("pattern requirement has no expression")
		}
		return comparePattern(vals, r.Regex), nil
	case Mapping:
		return nil, fmt.Errorf("mapping requirement cannot apply to a flat collection")
	case nil:
		return nil, fmt.Errorf("requirement is nil")
	default:
		return nil, fmt.Errorf("unknown requirement type: %T", req)
	}
}

// compareSet reports required values missing from the data and data values
// outside the required set. Duplicates in the data collapse, matching set
// semantics.
func compareSet(vals, required []value.Value) []Difference {
	requiredKeys := make(map[string]value.Value, len(required))
	for _, v := range required {
		requiredKeys[value.Key(v)] = v
	}

	var diffs []Difference
	matched := make(map[string]struct{})
	reportedExtra := make(map[string]struct{})
	for _, v := range vals {
		k := value.Key(v)
		if _, ok := requiredKeys[k]; ok {
			matched[k] = struct{}{}
			continue
		}
		if _, dup := reportedExtra[k]; dup {
			continue
		}
		reportedExtra[k] = struct{}{}
		diffs = append(diffs, Extra{Value: v})
	}

	for _, v := range required {
		if _, ok := matched[value.Key(v)]; !ok {
			diffs = append(diffs, Missing{Value: v})
		}
	}
	return diffs
}

// compareSequence compares element-by-element in order.
func compareSequence(vals, required []value.Value) []Difference {
	var diffs []Difference
	n := len(vals)
	if len(required) < n {
		n = len(required)
	}
	for i := 0; i < n; i++ {
		if !value.Equal(vals[i], required[i]) {
			diffs = append(diffs, Invalid{Value: vals[i], Expected: required[i]})
		}
	}
	for _, v := range required[n:] {
		diffs = append(diffs, Missing{Value: v})
	}
	for _, v := range vals[n:] {
		diffs = append(diffs, Extra{Value: v})
	}
	return diffs
}

// compareEquals reports per-element mismatches, as Deviation when both
// sides are numeric.
func compareEquals(vals []value.Value, required value.Value) []Difference {
	var diffs []Difference
	for _, v := range vals {
		if value.Equal(v, required) {
			continue
		}
		actualF, actualErr := value.AsFloat(v)
		expectedF, expectedErr := value.AsFloat(required)
		if actualErr == nil && expectedErr == nil {
			if actualF == expectedF {
				// Numerically equal across kinds (e.g. "100" vs 100).
				continue
			}
			diffs = append(diffs, Deviation{
				Diff:     actualF - expectedF,
				Expected: required,
				Actual:   v,
			})
			continue
		}
		diffs = append(diffs, Invalid{Value: v, Expected: required})
	}
	return diffs
}

func comparePredicate(vals []value.Value, req Predicate) []Difference {
	var diffs []Difference
	for _, v := range vals {
		if !safePredicate(req.Fn, v) {
			diffs = append(diffs, Invalid{Value: v})
		}
	}
	return diffs
}

// safePredicate treats a panicking predicate as failed.
func safePredicate(fn func(value.Value) bool, v value.Value) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return fn(v)
}

func comparePattern(vals []value.Value, re *regexp.Regexp) []Difference {
	var diffs []Difference
	for _, v := range vals {
		s, isString := v.(value.String)
		if !isString || !re.MatchString(string(s)) {
			diffs = append(diffs, Invalid{Value: v})
		}
	}
	return diffs
}

func checkGrouped(res *tabular.GroupedResult, mapping Mapping) ([]Difference, error) {
	var diffs []Difference

	required := make(map[string]GroupRequirement, len(mapping.Groups))
	for _, gr := range mapping.Groups {
		required[value.Key(gr.Key)] = gr
	}

	seen := make(map[string]struct{})
	for _, entry := range res.Entries() {
		k := value.Key(entry.Key)
		seen[k] = struct{}{}
		gr, ok := required[k]
		if !ok {
			diffs = append(diffs, KeyedDifference{Key: entry.Key, Difference: Extra{Value: entry.Key}})
			continue
		}
		sub, err := Check(entry.Value, gr.Req)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", value.Format(entry.Key), err)
		}
		for _, d := range sub {
			diffs = append(diffs, KeyedDifference{Key: entry.Key, Difference: d})
		}
	}

	for _, gr := range mapping.Groups {
		if _, ok := seen[value.Key(gr.Key)]; !ok {
			diffs = append(diffs, KeyedDifference{Key: gr.Key, Difference: Missing{Value: gr.Key}})
		}
	}
	return diffs, nil
}
