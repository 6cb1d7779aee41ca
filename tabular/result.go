package tabular

import (
	"github.com/quarryhq/quarry/value"
)

// Result is the materialized output of a query, shaped by the selection
// descriptor.
//
// This is a sealed interface - only types in this package implement it.
//
// Result types:
//   - ScalarResult: single value (aggregation over an ungrouped selection)
//   - ListResult: ordered sequence, source row order preserved
//   - SetResult: deduplicated collection, first-seen iteration order
//   - GroupedResult: group key to nested Result, first-seen key order
type Result interface {
	result() // Marker method - seals interface to this package
}

// ScalarResult holds a single aggregated value.
type ScalarResult struct {
	Value value.Value
}

func (*ScalarResult) result() {}

// ListResult holds an ordered sequence of elements.
type ListResult struct {
	Values []value.Value
}

func (*ListResult) result() {}

// SetResult holds a deduplicated collection. Iteration preserves first-seen
// order so set-shaped results are still deterministic.
type SetResult struct {
	values []value.Value
	keys   map[string]struct{}
}

func (*SetResult) result() {}

// NewSetResult builds a SetResult, collapsing duplicates in first-seen order.
func NewSetResult(vals ...value.Value) *SetResult {
	s := &SetResult{keys: make(map[string]struct{})}
	for _, v := range vals {
		s.add(v)
	}
	return s
}

func (s *SetResult) add(v value.Value) {
	key := value.Key(v)
	if _, dup := s.keys[key]; dup {
		return
	}
	s.keys[key] = struct{}{}
	s.values = append(s.values, v)
}

// Values returns the distinct elements in first-seen order.
func (s *SetResult) Values() []value.Value {
	return append([]value.Value(nil), s.values...)
}

// Contains reports set membership.
func (s *SetResult) Contains(v value.Value) bool {
	_, ok := s.keys[value.Key(v)]
	return ok
}

// Len returns the number of distinct elements.
func (s *SetResult) Len() int {
	return len(s.values)
}

// GroupEntry is one key/value pair of a GroupedResult.
type GroupEntry struct {
	Key   value.Value
	Value Result
}

// GroupedResult maps group keys to nested results, preserving the order in
// which keys were first seen in the source.
type GroupedResult struct {
	entries []GroupEntry
	index   map[string]int
}

func (*GroupedResult) result() {}

// NewGroupedResult builds an empty GroupedResult.
func NewGroupedResult() *GroupedResult {
	return &GroupedResult{index: make(map[string]int)}
}

// Put sets the result for a key, appending new keys in call order.
func (g *GroupedResult) Put(key value.Value, res Result) {
	k := value.Key(key)
	if i, ok := g.index[k]; ok {
		g.entries[i].Value = res
		return
	}
	g.index[k] = len(g.entries)
	g.entries = append(g.entries, GroupEntry{Key: key, Value: res})
}

// Get returns the result for a key.
func (g *GroupedResult) Get(key value.Value) (Result, bool) {
	i, ok := g.index[value.Key(key)]
	if !ok {
		return nil, false
	}
	return g.entries[i].Value, true
}

// Keys returns group keys in first-seen order.
func (g *GroupedResult) Keys() []value.Value {
	keys := make([]value.Value, len(g.entries))
	for i, e := range g.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns key/value pairs in first-seen key order.
func (g *GroupedResult) Entries() []GroupEntry {
	return append([]GroupEntry(nil), g.entries...)
}

// Len returns the number of groups.
func (g *GroupedResult) Len() int {
	return len(g.entries)
}

// Encode converts a Result into plain Go values for serialization:
// scalars become native values, lists and sets become []any, grouped
// results become ordered []map[string]any entries with "key" and "values".
//
// Grouped results deliberately encode as an entry list rather than a map,
// preserving first-seen key order through JSON round-trips.
func Encode(r Result) any {
	switch res := r.(type) {
	case *ScalarResult:
		return value.Native(res.Value)
	case *ListResult:
		out := make([]any, len(res.Values))
		for i, v := range res.Values {
			out[i] = value.Native(v)
		}
		return out
	case *SetResult:
		vals := res.Values()
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = value.Native(v)
		}
		return out
	case *GroupedResult:
		out := make([]map[string]any, 0, res.Len())
		for _, e := range res.Entries() {
			out = append(out, map[string]any{
				"key":    value.Native(e.Key),
				"values": Encode(e.Value),
			})
		}
		return out
	default:
		return nil
	}
}
