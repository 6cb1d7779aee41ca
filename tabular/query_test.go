package tabular

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/value"
)

func TestQuery_ChainingIsImmutable(t *testing.T) {
	src := smallSource(t)

	base, err := src.Select(Field{Name: "one"})
	require.NoError(t, err)

	withDistinct := base.Distinct()
	withSum := base.Sum()

	assert.NotSame(t, base, withDistinct)
	assert.NotSame(t, base, withSum)
	assert.Empty(t, base.steps)
	assert.Len(t, withDistinct.steps, 1)
	assert.Len(t, withSum.steps, 1)

	// Extending one variant never leaks into its siblings.
	extended := withDistinct.Count()
	assert.Len(t, withDistinct.steps, 1)
	assert.Len(t, extended.steps, 2)
}

func TestQuery_StepOrderPreserved(t *testing.T) {
	src := smallSource(t)

	q, err := src.Select(Field{Name: "one"})
	require.NoError(t, err)
	q = q.Filter(func(v value.Value) (bool, error) { return true, nil }).
		Map(func(v value.Value) (value.Value, error) { return v, nil }).
		Distinct().
		Sum()

	require.Len(t, q.steps, 4)
	assert.IsType(t, FilterStep{}, q.steps[0])
	assert.IsType(t, MapStep{}, q.steps[1])
	assert.IsType(t, DistinctStep{}, q.steps[2])
	assert.IsType(t, SumStep{}, q.steps[3])
}

func TestFingerprint_StableAndSensitive(t *testing.T) {
	src := smallSource(t)

	q1, err := src.Select(Field{Name: "one"}, Eq("two", value.String("x")))
	require.NoError(t, err)
	q2, err := src.Select(Field{Name: "one"}, Eq("two", value.String("x")))
	require.NoError(t, err)

	f1, err := q1.Sum().Fingerprint()
	require.NoError(t, err)
	f2, err := q2.Sum().Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, f1, f2)

	f3, err := q1.Distinct().Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, f1, f3)

	f4, err := q1.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, f1, f4)
}

func TestFingerprint_ConstraintOrderInsensitive(t *testing.T) {
	src := smallSource(t)

	q1, err := src.Select(Field{Name: "one"},
		Eq("two", value.String("x")), Eq("one", value.String("a")))
	require.NoError(t, err)
	q2, err := src.Select(Field{Name: "one"},
		Eq("one", value.String("a")), Eq("two", value.String("x")))
	require.NoError(t, err)

	f1, err := q1.Fingerprint()
	require.NoError(t, err)
	f2, err := q2.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
}

func TestFingerprint_MembershipValueOrderInsensitive(t *testing.T) {
	src := smallSource(t)

	q1, err := src.Select(Field{Name: "one"},
		In("two", value.String("x"), value.String("y")))
	require.NoError(t, err)
	q2, err := src.Select(Field{Name: "one"},
		In("two", value.String("y"), value.String("x")))
	require.NoError(t, err)

	// Membership is disjunctive, so In(x, y) and In(y, x) are the same
	// plan and must share a cache key.
	f1, err := q1.Fingerprint()
	require.NoError(t, err)
	f2, err := q2.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, f1, f2)

	q3, err := src.Select(Field{Name: "one"},
		In("two", value.String("x"), value.String("z")))
	require.NoError(t, err)
	f3, err := q3.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, f1, f3)
}

func TestFingerprint_AnonymousCallbacks(t *testing.T) {
	src := smallSource(t)

	q, err := src.Select(Field{Name: "one"})
	require.NoError(t, err)

	_, err = q.Map(func(v value.Value) (value.Value, error) { return v, nil }).Fingerprint()
	assert.ErrorIs(t, err, ErrNotFingerprintable)

	// Named registry operations keep the plan fingerprintable.
	upper := func(v value.Value) (value.Value, error) {
		s, _ := v.(value.String)
		return value.String(strings.ToUpper(string(s))), nil
	}
	f, err := q.MapNamed("upper", upper).Fingerprint()
	require.NoError(t, err)
	assert.NotEmpty(t, f)
}

func TestExecute_ContextCancelled(t *testing.T) {
	src := smallSource(t)

	q, err := src.Select(Field{Name: "one"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = q.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
