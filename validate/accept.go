package validate

import (
	"fmt"
	"math"

	"github.com/quarryhq/quarry/value"
)

// Acceptance is a sealed interface describing which differences a caller
// considers known and tolerable. The usual workflow is Check then Allow:
// validate the data, then strike out the differences that are already
// understood, leaving only the ones that need attention.
//
// Acceptance types:
//   - Allowed: an explicit list of known differences
//   - Tolerance: Deviations within an absolute numeric limit
//   - PercentTolerance: Deviations within a fraction of the expected value
type Acceptance interface {
	acceptance() // Marker method - seals interface to this package
}

// Allowed accepts differences equal to one of an explicit list.
// Keyed differences match on both the group key and the wrapped difference.
type Allowed struct {
	Differences []Difference
}

func (Allowed) acceptance() {}

// Tolerance accepts Deviations whose absolute delta is at most Limit.
// Other difference kinds are never accepted by a tolerance.
type Tolerance struct {
	Limit float64
}

func (Tolerance) acceptance() {}

// PercentTolerance accepts Deviations whose delta, as a fraction of the
// expected value, is at most Limit (between 0 and 1). Deviations with a
// non-numeric or zero expected value are never accepted.
type PercentTolerance struct {
	Limit float64
}

func (PercentTolerance) acceptance() {}

// Allow filters a difference report through one or more acceptances and
// returns the differences none of them accept. An empty result means every
// reported difference is a known one.
func Allow(diffs []Difference, acceptances ...Acceptance) ([]Difference, error) {
	for _, a := range acceptances {
		if err := validateAcceptance(a); err != nil {
			return nil, err
		}
	}

	var remaining []Difference
	for _, d := range diffs {
		if !anyAccepts(acceptances, d) {
			remaining = append(remaining, d)
		}
	}
	return remaining, nil
}

func validateAcceptance(a Acceptance) error {
	switch acc := a.(type) {
	case Allowed:
		return nil
	case Tolerance:
		if acc.Limit < 0 {
			return fmt.Errorf("tolerance cannot be negative: %v", acc.Limit)
		}
		return nil
	case PercentTolerance:
		if acc.Limit < 0 || acc.Limit > 1 {
			return fmt.Errorf("percent tolerance must be between 0 and 1: %v", acc.Limit)
		}
		return nil
	case nil:
		return fmt.Errorf("acceptance is nil")
	default:
		return fmt.Errorf("unknown acceptance type: %T", a)
	}
}

func anyAccepts(acceptances []Acceptance, d Difference) bool {
	for _, a := range acceptances {
		if accepts(a, d) {
			return true
		}
	}
	return false
}

// accepts reports whether one acceptance covers one difference. Tolerances
// reach through KeyedDifference so per-group deviations are judged by the
// same limits as flat ones.
func accepts(a Acceptance, d Difference) bool {
	if kd, ok := d.(KeyedDifference); ok {
		if allowed, isAllowed := a.(Allowed); isAllowed {
			return allowedMatch(allowed, d)
		}
		return accepts(a, kd.Difference)
	}

	switch acc := a.(type) {
	case Allowed:
		return allowedMatch(acc, d)
	case Tolerance:
		dev, ok := d.(Deviation)
		return ok && math.Abs(dev.Diff) <= acc.Limit
	case PercentTolerance:
		dev, ok := d.(Deviation)
		if !ok {
			return false
		}
		expected, err := value.AsFloat(dev.Expected)
		if err != nil || expected == 0 {
			return false
		}
		return math.Abs(dev.Diff/expected) <= acc.Limit
	default:
		return false
	}
}

func allowedMatch(acc Allowed, d Difference) bool {
	for _, allowed := range acc.Differences {
		if sameDifference(allowed, d) {
			return true
		}
	}
	return false
}

// sameDifference compares two differences structurally, using value
// equality for the embedded values (tuples are not comparable with ==).
func sameDifference(a, b Difference) bool {
	switch da := a.(type) {
	case Missing:
		db, ok := b.(Missing)
		return ok && value.Equal(da.Value, db.Value)
	case Extra:
		db, ok := b.(Extra)
		return ok && value.Equal(da.Value, db.Value)
	case Invalid:
		db, ok := b.(Invalid)
		return ok && value.Equal(da.Value, db.Value) && sameOptional(da.Expected, db.Expected)
	case Deviation:
		db, ok := b.(Deviation)
		return ok && da.Diff == db.Diff &&
			sameOptional(da.Expected, db.Expected) &&
			sameOptional(da.Actual, db.Actual)
	case KeyedDifference:
		db, ok := b.(KeyedDifference)
		return ok && value.Equal(da.Key, db.Key) && sameDifference(da.Difference, db.Difference)
	default:
		return false
	}
}

func sameOptional(a, b value.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return value.Equal(a, b)
}
