package tabular

import (
	"bytes"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/value"
)

// Step represents one pending operation in a query plan.
//
// This is a sealed interface - only types in this package implement it.
// Steps apply in declaration order, left to right, over the (possibly
// grouped) projected collection.
type Step interface {
	step() // Marker method - seals interface to this package
}

// MapStep applies a function to every leaf element.
// Name is non-empty for registry operations (stable plan identity);
// anonymous callbacks leave it empty and make the plan unfingerprintable.
type MapStep struct {
	Name string
	Fn   func(value.Value) (value.Value, error)
}

func (MapStep) step() {}

// FilterStep retains only elements for which the predicate holds.
type FilterStep struct {
	Name string
	Pred func(value.Value) (bool, error)
}

func (FilterStep) step() {}

// SumStep reduces a numeric collection to its total.
type SumStep struct{}

func (SumStep) step() {}

// CountStep reduces a collection to its element count.
type CountStep struct{}

func (CountStep) step() {}

// AvgStep reduces a numeric collection to its arithmetic mean.
type AvgStep struct{}

func (AvgStep) step() {}

// MinStep reduces a numeric collection to its smallest value.
type MinStep struct{}

func (MinStep) step() {}

// MaxStep reduces a numeric collection to its largest value.
type MaxStep struct{}

func (MaxStep) step() {}

// DistinctStep removes duplicate elements, preserving first-seen order.
type DistinctStep struct{}

func (DistinctStep) step() {}

// Query is a deferred, composable query plan bound to a Source.
//
// A Query is immutable: every chaining call returns a new Query wrapping the
// prior plan plus one additional pending operation, so variants built from a
// shared prefix never interfere. Nothing reads data until Execute.
type Query struct {
	src    *Source
	sel    Selection
	where  []Constraint
	steps  []Step
	logger zerolog.Logger
}

func newQuery(src *Source, sel Selection, where []Constraint) *Query {
	return &Query{
		src:    src,
		sel:    sel,
		where:  where,
		logger: zerolog.Nop(),
	}
}

// clone copies the query with room for one more step.
func (q *Query) clone() *Query {
	steps := make([]Step, len(q.steps), len(q.steps)+1)
	copy(steps, q.steps)
	return &Query{
		src:    q.src,
		sel:    q.sel,
		where:  q.where,
		steps:  steps,
		logger: q.logger,
	}
}

func (q *Query) appendStep(s Step) *Query {
	next := q.clone()
	next.steps = append(next.steps, s)
	return next
}

// Map appends a transformation of every leaf element.
// fn runs at execute time only.
func (q *Query) Map(fn func(value.Value) (value.Value, error)) *Query {
	return q.appendStep(MapStep{Fn: fn})
}

// MapNamed is Map with a stable operation name, keeping the plan
// fingerprintable. Used by declarative query documents.
func (q *Query) MapNamed(name string, fn func(value.Value) (value.Value, error)) *Query {
	return q.appendStep(MapStep{Name: name, Fn: fn})
}

// Filter appends a predicate; failing elements are dropped.
// Chained after a per-group aggregation, it filters the group aggregates
// and drops groups whose aggregate fails.
func (q *Query) Filter(pred func(value.Value) (bool, error)) *Query {
	return q.appendStep(FilterStep{Pred: pred})
}

// FilterNamed is Filter with a stable operation name.
func (q *Query) FilterNamed(name string, pred func(value.Value) (bool, error)) *Query {
	return q.appendStep(FilterStep{Name: name, Pred: pred})
}

// Sum appends a numeric reduction to the total. Over a grouped selection
// each group reduces independently, preserving group keys; over an
// ungrouped selection the result is a single scalar.
func (q *Query) Sum() *Query {
	return q.appendStep(SumStep{})
}

// Count appends a reduction to the element count.
func (q *Query) Count() *Query {
	return q.appendStep(CountStep{})
}

// Avg appends a numeric reduction to the arithmetic mean.
func (q *Query) Avg() *Query {
	return q.appendStep(AvgStep{})
}

// Min appends a numeric reduction to the smallest value.
func (q *Query) Min() *Query {
	return q.appendStep(MinStep{})
}

// Max appends a numeric reduction to the largest value.
func (q *Query) Max() *Query {
	return q.appendStep(MaxStep{})
}

// Distinct appends duplicate removal. On ordered results first-seen order
// is preserved; on set results it is a no-op.
func (q *Query) Distinct() *Query {
	return q.appendStep(DistinctStep{})
}

// WithLogger returns a copy of the query that logs execution diagnostics
// through the given logger. The default is a no-op logger.
func (q *Query) WithLogger(logger zerolog.Logger) *Query {
	next := q.clone()
	next.logger = logger
	return next
}

// Source returns the source this query is bound to.
func (q *Query) Source() *Source {
	return q.src
}

// ErrNotFingerprintable is returned by Fingerprint when a plan contains
// anonymous callbacks, whose identity cannot be encoded.
var ErrNotFingerprintable = errors.New("query plan contains anonymous callbacks")

// Fingerprint returns a content-addressed identity for the plan: a
// domain-separated hash of the canonical encoding of the selection,
// constraints, and steps. Two queries with equal fingerprints over the same
// source produce identical results, which makes the fingerprint a safe
// cache key.
//
// Plans containing anonymous Map/Filter callbacks have no stable identity
// and return ErrNotFingerprintable.
func (q *Query) Fingerprint() (string, error) {
	var buf bytes.Buffer

	if err := encodeSelection(&buf, q.sel); err != nil {
		return "", err
	}

	// Constraints are conjunctive and membership values are disjunctive,
	// so neither field order nor value order is significant; sort both for
	// a stable encoding.
	where := append([]Constraint(nil), q.where...)
	sort.Slice(where, func(i, j int) bool { return where[i].Field < where[j].Field })
	for _, c := range where {
		buf.WriteString("|w:")
		buf.Write(mustCanonicalString(c.Field))
		encoded := make([]string, len(c.Values))
		for i, v := range c.Values {
			b, err := value.MarshalCanonical(v)
			if err != nil {
				return "", err
			}
			encoded[i] = string(b)
		}
		sort.Strings(encoded)
		for _, e := range encoded {
			buf.WriteByte(',')
			buf.WriteString(e)
		}
	}

	for _, s := range q.steps {
		buf.WriteString("|s:")
		switch st := s.(type) {
		case MapStep:
			if st.Name == "" {
				return "", ErrNotFingerprintable
			}
			buf.WriteString("map=")
			buf.WriteString(st.Name)
		case FilterStep:
			if st.Name == "" {
				return "", ErrNotFingerprintable
			}
			buf.WriteString("filter=")
			buf.WriteString(st.Name)
		case SumStep:
			buf.WriteString("sum")
		case CountStep:
			buf.WriteString("count")
		case AvgStep:
			buf.WriteString("avg")
		case MinStep:
			buf.WriteString("min")
		case MaxStep:
			buf.WriteString("max")
		case DistinctStep:
			buf.WriteString("distinct")
		}
	}

	return value.Fingerprint(value.DomainPlan, buf.Bytes()), nil
}

func encodeSelection(buf *bytes.Buffer, sel Selection) error {
	switch s := sel.(type) {
	case Field:
		buf.WriteString("f(")
		buf.Write(mustCanonicalString(s.Name))
		buf.WriteByte(')')
	case Cols:
		buf.WriteString("t(")
		for i, name := range s.Names {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(mustCanonicalString(name))
		}
		buf.WriteByte(')')
	case List:
		buf.WriteString("l(")
		if err := encodeSelection(buf, s.Inner); err != nil {
			return err
		}
		buf.WriteByte(')')
	case Set:
		buf.WriteString("s(")
		if err := encodeSelection(buf, s.Inner); err != nil {
			return err
		}
		buf.WriteByte(')')
	case Group:
		buf.WriteString("g(")
		if err := encodeSelection(buf, s.Key); err != nil {
			return err
		}
		buf.WriteByte(',')
		if err := encodeSelection(buf, s.Over); err != nil {
			return err
		}
		buf.WriteByte(')')
	}
	return nil
}

func mustCanonicalString(s string) []byte {
	b, err := value.MarshalCanonical(value.String(s))
	if err != nil {
		panic(err)
	}
	return b
}
