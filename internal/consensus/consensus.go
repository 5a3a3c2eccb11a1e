// Package consensus runs the same fetch on several independent nodes and
// only accepts the result when the nodes agree.
//
// Two aggregation strategies are provided: Identical, which requires every
// run to return exactly the same value, and ByFields, which compares a set of
// named fields with per-field equality. Neither strategy ever returns an
// error; disagreement is reported as the absence of a value.
package consensus

// Aggregator reduces the results of redundant runs to a single value.
// The boolean is false when the runs do not agree.
type Aggregator[T any] interface {
	Aggregate(results []T) (T, bool)
}

// Identical returns an aggregator that accepts a result only when every run
// produced the same value.
func Identical[T comparable]() Aggregator[T] {
	return identical[T]{}
}

type identical[T comparable] struct{}

func (identical[T]) Aggregate(results []T) (T, bool) {
	var zero T
	if len(results) == 0 {
		return zero, false
	}
	for _, r := range results[1:] {
		if r != results[0] {
			return zero, false
		}
	}
	return results[0], true
}

// Field is one named component of T compared during field-wise aggregation.
type Field[T any] struct {
	Name  string
	Equal func(a, b T) bool
}

// FieldOf builds a Field from a getter returning a comparable value.
func FieldOf[T any, V comparable](name string, get func(T) V) Field[T] {
	return Field[T]{
		Name:  name,
		Equal: func(a, b T) bool { return get(a) == get(b) },
	}
}

// FieldwiseAggregator compares results field by field. Any field that
// differs across runs rejects the whole result.
type FieldwiseAggregator[T any] struct {
	fields []Field[T]
}

// ByFields returns a field-wise aggregator over the given fields.
func ByFields[T any](fields ...Field[T]) *FieldwiseAggregator[T] {
	return &FieldwiseAggregator[T]{fields: fields}
}

// Aggregate implements Aggregator.
func (a *FieldwiseAggregator[T]) Aggregate(results []T) (T, bool) {
	var zero T
	if len(results) == 0 {
		return zero, false
	}
	if len(a.Disagreements(results)) > 0 {
		return zero, false
	}
	return results[0], true
}

// Disagreements names the fields on which at least one run differs from the
// first.
func (a *FieldwiseAggregator[T]) Disagreements(results []T) []string {
	if len(results) < 2 {
		return nil
	}
	var out []string
	for _, f := range a.fields {
		for _, r := range results[1:] {
			if !f.Equal(results[0], r) {
				out = append(out, f.Name)
				break
			}
		}
	}
	return out
}
