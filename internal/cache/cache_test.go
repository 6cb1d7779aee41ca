package cache

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/internal/testutil"
	"github.com/quarryhq/quarry/tabular"
	"github.com/quarryhq/quarry/value"
)

func newCache(t *testing.T) *ResultCache {
	t.Helper()
	c, err := New(16, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestExecute_SecondRunHits(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)
	src := testutil.SampleSource(t)

	q, err := src.Select(tabular.Field{Name: "three"})
	require.NoError(t, err)
	q = q.Sum()

	res, cached, err := c.Execute(ctx, q)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, value.Int(600), res.(*tabular.ScalarResult).Value)

	res, cached, err = c.Execute(ctx, q)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, value.Int(600), res.(*tabular.ScalarResult).Value)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Len)
}

func TestExecute_DistinctPlansDistinctEntries(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)
	src := testutil.SampleSource(t)

	sum, err := src.Select(tabular.Field{Name: "three"})
	require.NoError(t, err)
	count, err := src.Select(tabular.Field{Name: "three"})
	require.NoError(t, err)

	_, _, err = c.Execute(ctx, sum.Sum())
	require.NoError(t, err)
	_, _, err = c.Execute(ctx, count.Count())
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 2, stats.Len)
}

func TestExecute_SameDataDifferentSourceMisses(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)

	first := testutil.SampleSource(t)
	second := testutil.SampleSource(t)

	q1, err := first.Select(tabular.Field{Name: "three"})
	require.NoError(t, err)
	q2, err := second.Select(tabular.Field{Name: "three"})
	require.NoError(t, err)

	_, _, err = c.Execute(ctx, q1.Sum())
	require.NoError(t, err)
	_, cached, err := c.Execute(ctx, q2.Sum())
	require.NoError(t, err)

	// Equal plans over different source instances must not collide.
	assert.False(t, cached)
	assert.Equal(t, 2, c.Stats().Len)
}

func TestExecute_AnonymousCallbackBypasses(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)
	src := testutil.SampleSource(t)

	q, err := src.Select(tabular.Field{Name: "one"})
	require.NoError(t, err)
	q = q.Map(func(v value.Value) (value.Value, error) { return v, nil })

	_, cached, err := c.Execute(ctx, q)
	require.NoError(t, err)
	assert.False(t, cached)

	_, cached, err = c.Execute(ctx, q)
	require.NoError(t, err)
	assert.False(t, cached)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Bypassed)
	assert.Equal(t, 0, stats.Len)
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)
	src := testutil.SampleSource(t)

	q, err := src.Select(tabular.Field{Name: "three"})
	require.NoError(t, err)
	_, _, err = c.Execute(ctx, q.Sum())
	require.NoError(t, err)

	c.Purge()
	assert.Equal(t, 0, c.Stats().Len)
}
