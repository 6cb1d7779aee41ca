package validate_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/internal/testutil"
	"github.com/quarryhq/quarry/tabular"
	"github.com/quarryhq/quarry/validate"
	"github.com/quarryhq/quarry/value"
)

func strs(ss ...string) []value.Value {
	out := make([]value.Value, len(ss))
	for i, s := range ss {
		out[i] = value.String(s)
	}
	return out
}

func execute(t *testing.T, src *tabular.Source, sel tabular.Selection) tabular.Result {
	t.Helper()
	q, err := src.Select(sel)
	require.NoError(t, err)
	res, err := q.Execute(context.Background())
	require.NoError(t, err)
	return res
}

func TestCheck_SetRequirement(t *testing.T) {
	src := testutil.SampleSource(t)
	res := execute(t, src, tabular.Set{Inner: tabular.Field{Name: "one"}})

	diffs, err := validate.Check(res, validate.SetOf{Values: strs("a", "b", "c")})
	require.NoError(t, err)
	assert.Empty(t, diffs)

	diffs, err = validate.Check(res, validate.SetOf{Values: strs("a", "b", "d")})
	require.NoError(t, err)
	assert.ElementsMatch(t, []validate.Difference{
		validate.Extra{Value: value.String("c")},
		validate.Missing{Value: value.String("d")},
	}, diffs)
}

func TestCheck_SetCollapsesDuplicateData(t *testing.T) {
	diffs, err := validate.CheckValues(strs("a", "a", "z", "z"),
		validate.SetOf{Values: strs("a")})
	require.NoError(t, err)
	// Duplicate extras report once.
	assert.Equal(t, []validate.Difference{
		validate.Extra{Value: value.String("z")},
	}, diffs)
}

func TestCheck_SequenceRequirement(t *testing.T) {
	diffs, err := validate.CheckValues(strs("a", "b", "c"),
		validate.SequenceOf{Values: strs("a", "x", "c", "d")})
	require.NoError(t, err)
	assert.Equal(t, []validate.Difference{
		validate.Invalid{Value: value.String("b"), Expected: value.String("x")},
		validate.Missing{Value: value.String("d")},
	}, diffs)

	diffs, err = validate.CheckValues(strs("a", "b"),
		validate.SequenceOf{Values: strs("a")})
	require.NoError(t, err)
	assert.Equal(t, []validate.Difference{
		validate.Extra{Value: value.String("b")},
	}, diffs)
}

func TestCheck_SequenceAgainstSetIsAnError(t *testing.T) {
	src := testutil.SampleSource(t)
	res := execute(t, src, tabular.Set{Inner: tabular.Field{Name: "one"}})

	_, err := validate.Check(res, validate.SequenceOf{Values: strs("a")})
	assert.Error(t, err)
}

func TestCheck_EqualsNumericDeviation(t *testing.T) {
	diffs, err := validate.CheckValues(
		[]value.Value{value.String("100"), value.String("90"), value.String("110")},
		validate.Equals{Value: value.Int(100)})
	require.NoError(t, err)
	assert.Equal(t, []validate.Difference{
		validate.Deviation{Diff: -10, Expected: value.Int(100), Actual: value.String("90")},
		validate.Deviation{Diff: 10, Expected: value.Int(100), Actual: value.String("110")},
	}, diffs)
}

func TestCheck_EqualsNonNumericInvalid(t *testing.T) {
	diffs, err := validate.CheckValues(strs("a", "b"),
		validate.Equals{Value: value.String("a")})
	require.NoError(t, err)
	assert.Equal(t, []validate.Difference{
		validate.Invalid{Value: value.String("b"), Expected: value.String("a")},
	}, diffs)
}

func TestCheck_Predicate(t *testing.T) {
	nonEmpty := validate.Predicate{
		Name: "nonempty",
		Fn: func(v value.Value) bool {
			s, ok := v.(value.String)
			return ok && s != ""
		},
	}
	diffs, err := validate.CheckValues(strs("a", "", "b"), nonEmpty)
	require.NoError(t, err)
	assert.Equal(t, []validate.Difference{
		validate.Invalid{Value: value.String("")},
	}, diffs)
}

func TestCheck_PredicatePanicCountsAsFailure(t *testing.T) {
	panicky := validate.Predicate{
		Name: "panicky",
		Fn:   func(value.Value) bool { panic("boom") },
	}
	diffs, err := validate.CheckValues(strs("a"), panicky)
	require.NoError(t, err)
	assert.Len(t, diffs, 1)
}

func TestCheck_Pattern(t *testing.T) {
	re := regexp.MustCompile(`^[a-z]$`)
	diffs, err := validate.CheckValues(
		[]value.Value{value.String("a"), value.String("ab"), value.Int(1)},
		validate.Pattern{Regex: re})
	require.NoError(t, err)
	assert.Equal(t, []validate.Difference{
		validate.Invalid{Value: value.String("ab")},
		validate.Invalid{Value: value.Int(1)},
	}, diffs)
}

func TestCheck_GroupedMapping(t *testing.T) {
	src := testutil.SampleSource(t)

	q, err := src.Select(tabular.Group{
		Key:  tabular.Field{Name: "one"},
		Over: tabular.List{Inner: tabular.Field{Name: "three"}},
	})
	require.NoError(t, err)
	res, err := q.Sum().Execute(context.Background())
	require.NoError(t, err)

	diffs, err := validate.Check(res, validate.Mapping{Groups: []validate.GroupRequirement{
		{Key: value.String("a"), Req: validate.Equals{Value: value.Int(200)}},
		{Key: value.String("b"), Req: validate.Equals{Value: value.Int(200)}},
		{Key: value.String("c"), Req: validate.Equals{Value: value.Int(200)}},
	}})
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestCheck_GroupedMappingMissingAndExtraKeys(t *testing.T) {
	src := testutil.SampleSource(t)

	q, err := src.Select(tabular.Group{
		Key:  tabular.Field{Name: "one"},
		Over: tabular.List{Inner: tabular.Field{Name: "three"}},
	})
	require.NoError(t, err)
	res, err := q.Sum().Execute(context.Background())
	require.NoError(t, err)

	diffs, err := validate.Check(res, validate.Mapping{Groups: []validate.GroupRequirement{
		{Key: value.String("a"), Req: validate.Equals{Value: value.Int(200)}},
		{Key: value.String("b"), Req: validate.Equals{Value: value.Int(999)}},
		{Key: value.String("d"), Req: validate.Equals{Value: value.Int(1)}},
	}})
	require.NoError(t, err)

	require.Len(t, diffs, 3)
	keyed := make(map[string]validate.Difference)
	for _, d := range diffs {
		kd, ok := d.(validate.KeyedDifference)
		require.True(t, ok)
		keyed[value.Format(kd.Key)] = kd.Difference
	}

	assert.IsType(t, validate.Deviation{}, keyed["b"])
	assert.IsType(t, validate.Extra{}, keyed["c"])
	assert.IsType(t, validate.Missing{}, keyed["d"])
}

func TestCheck_GroupedNeedsMapping(t *testing.T) {
	src := testutil.SampleSource(t)

	q, err := src.Select(tabular.Group{
		Key:  tabular.Field{Name: "one"},
		Over: tabular.List{Inner: tabular.Field{Name: "three"}},
	})
	require.NoError(t, err)
	res, err := q.Execute(context.Background())
	require.NoError(t, err)

	_, err = validate.Check(res, validate.SetOf{Values: strs("a")})
	assert.Error(t, err)
}

func TestDifferenceStrings(t *testing.T) {
	assert.Equal(t, "Missing(d)", validate.Missing{Value: value.String("d")}.String())
	assert.Equal(t, "Extra(c)", validate.Extra{Value: value.String("c")}.String())
	assert.Equal(t, "Invalid(b, expected x)",
		validate.Invalid{Value: value.String("b"), Expected: value.String("x")}.String())
	assert.Equal(t, "Deviation(+10, expected 100)",
		validate.Deviation{Diff: 10, Expected: value.Int(100)}.String())
}
