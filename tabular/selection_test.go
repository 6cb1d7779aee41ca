package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSelection_ValidShapes(t *testing.T) {
	cases := []Selection{
		Field{Name: "one"},
		Cols{Names: []string{"one", "two"}},
		List{Inner: Field{Name: "one"}},
		List{Inner: Cols{Names: []string{"one", "two"}}},
		Set{Inner: Field{Name: "one"}},
		Group{Key: Field{Name: "one"}, Over: List{Inner: Field{Name: "three"}}},
		Group{Key: Cols{Names: []string{"one", "two"}}, Over: Set{Inner: Field{Name: "three"}}},
		// Bare field inside a group carries list semantics.
		Group{Key: Field{Name: "one"}, Over: Field{Name: "three"}},
		// Groups nest.
		Group{
			Key:  Field{Name: "one"},
			Over: Group{Key: Field{Name: "two"}, Over: List{Inner: Field{Name: "three"}}},
		},
	}
	for _, sel := range cases {
		assert.NoError(t, validateSelection(sel, true), "selection %#v", sel)
	}
}

func TestValidateSelection_InvalidShapes(t *testing.T) {
	cases := []struct {
		name string
		sel  Selection
	}{
		{"nil descriptor", nil},
		{"empty field name", Field{Name: ""}},
		{"empty tuple", Cols{}},
		{"tuple with empty name", Cols{Names: []string{"one", ""}}},
		{"list of nothing", List{}},
		{"set of nothing", Set{}},
		{"list of list", List{Inner: List{Inner: Field{Name: "one"}}}},
		{"set of group", Set{Inner: Group{Key: Field{Name: "one"}, Over: Field{Name: "two"}}}},
		{"group without key", Group{Over: List{Inner: Field{Name: "one"}}}},
		{"group without value", Group{Key: Field{Name: "one"}}},
		{"group keyed by list", Group{Key: List{Inner: Field{Name: "one"}}, Over: Field{Name: "two"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateSelection(tc.sel, true)
			require.Error(t, err)
			assert.True(t, IsConstructionError(err), "want construction error, got %v", err)
		})
	}
}

func TestNormalizeSelection_BareLeavesBecomeLists(t *testing.T) {
	norm := normalizeSelection(Field{Name: "one"})
	assert.Equal(t, List{Inner: Field{Name: "one"}}, norm)

	norm = normalizeSelection(Cols{Names: []string{"one", "two"}})
	assert.Equal(t, List{Inner: Cols{Names: []string{"one", "two"}}}, norm)

	norm = normalizeSelection(Group{Key: Field{Name: "one"}, Over: Field{Name: "three"}})
	assert.Equal(t, Group{Key: Field{Name: "one"}, Over: List{Inner: Field{Name: "three"}}}, norm)

	// Already-normalized shapes pass through.
	sel := Set{Inner: Field{Name: "one"}}
	assert.Equal(t, sel, normalizeSelection(sel))
}

func TestSelectionFields(t *testing.T) {
	sel := Group{
		Key:  Cols{Names: []string{"one", "two"}},
		Over: List{Inner: Field{Name: "three"}},
	}
	assert.Equal(t, []string{"one", "two", "three"}, selectionFields(sel))
}
