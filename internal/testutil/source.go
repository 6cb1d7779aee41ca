// Package testutil provides shared fixtures for engine tests.
package testutil

import (
	"testing"

	"github.com/quarryhq/quarry/tabular"
	"github.com/quarryhq/quarry/value"
)

// SampleFields lists the field names of the sample dataset in column order.
var SampleFields = []string{"one", "two", "three"}

// SampleSource builds the six-row dataset used throughout the engine's
// tests and documentation:
//
//	one  two  three
//	a    x    100
//	a    x    100
//	b    x    100
//	b    y    100
//	c    y    100
//	c    y    100
//
// All cells are String values, matching a CSV-backed source.
func SampleSource(t *testing.T) *tabular.Source {
	t.Helper()

	rows := [][]value.Value{
		{value.String("a"), value.String("x"), value.String("100")},
		{value.String("a"), value.String("x"), value.String("100")},
		{value.String("b"), value.String("x"), value.String("100")},
		{value.String("b"), value.String("y"), value.String("100")},
		{value.String("c"), value.String("y"), value.String("100")},
		{value.String("c"), value.String("y"), value.String("100")},
	}
	src, err := tabular.NewSource(SampleFields, rows)
	if err != nil {
		t.Fatalf("build sample source: %v", err)
	}
	return src
}

// SampleCSV is the sample dataset as CSV text.
const SampleCSV = `one,two,three
a,x,100
a,x,100
b,x,100
b,y,100
c,y,100
c,y,100
`
