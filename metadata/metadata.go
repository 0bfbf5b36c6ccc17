// Package metadata provides metadata storage and filtering for hybrid vector search.
package metadata

import "strings"

// Metadata is an arbitrary key/value mapping attached to a vector.
type Metadata map[string]any

// Clone returns a shallow copy of the metadata.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	c := make(Metadata, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Operator identifies a filter comparison.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterEqual
	OpLessThan
	OpLessEqual
	OpIn
	OpContains
)

// Filter is a single metadata condition.
type Filter struct {
	Key      string
	Operator Operator
	Value    any
}

// FilterSet is a conjunction of filters (AND logic).
type FilterSet struct {
	Filters []Filter
}

// NewFilterSet creates a FilterSet from the given filters.
func NewFilterSet(filters ...Filter) *FilterSet {
	return &FilterSet{Filters: filters}
}

// Eq matches documents whose key equals value.
func Eq(key string, value any) Filter {
	return Filter{Key: key, Operator: OpEqual, Value: value}
}

// Ne matches documents whose key does not equal value.
func Ne(key string, value any) Filter {
	return Filter{Key: key, Operator: OpNotEqual, Value: value}
}

// Gt matches documents whose numeric key is greater than value.
func Gt(key string, value any) Filter {
	return Filter{Key: key, Operator: OpGreaterThan, Value: value}
}

// Gte matches documents whose numeric key is greater than or equal to value.
func Gte(key string, value any) Filter {
	return Filter{Key: key, Operator: OpGreaterEqual, Value: value}
}

// Lt matches documents whose numeric key is less than value.
func Lt(key string, value any) Filter {
	return Filter{Key: key, Operator: OpLessThan, Value: value}
}

// Lte matches documents whose numeric key is less than or equal to value.
func Lte(key string, value any) Filter {
	return Filter{Key: key, Operator: OpLessEqual, Value: value}
}

// In matches documents whose key equals any element of values.
func In(key string, values ...any) Filter {
	return Filter{Key: key, Operator: OpIn, Value: values}
}

// Contains matches documents whose string key contains value as a substring.
func Contains(key, value string) Filter {
	return Filter{Key: key, Operator: OpContains, Value: value}
}

// Matches checks if the provided metadata matches this filter.
func (f *Filter) Matches(md Metadata) bool {
	value, exists := md[f.Key]
	if !exists {
		return false
	}

	switch f.Operator {
	case OpEqual:
		return compareEqual(value, f.Value)
	case OpNotEqual:
		return !compareEqual(value, f.Value)
	case OpGreaterThan:
		return compareGreater(value, f.Value)
	case OpGreaterEqual:
		return compareGreater(value, f.Value) || compareEqual(value, f.Value)
	case OpLessThan:
		return compareLess(value, f.Value)
	case OpLessEqual:
		return compareLess(value, f.Value) || compareEqual(value, f.Value)
	case OpIn:
		return compareIn(value, f.Value)
	case OpContains:
		return compareContains(value, f.Value)
	default:
		return false
	}
}

// Matches checks if the provided metadata matches all filters in the set.
func (fs *FilterSet) Matches(md Metadata) bool {
	for i := range fs.Filters {
		if !fs.Filters[i].Matches(md) {
			return false
		}
	}
	return true
}

func compareEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	af, aNum := asFloat64(a)
	bf, bNum := asFloat64(b)
	if aNum && bNum {
		return af == bf
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func compareGreater(a, b any) bool {
	af, aNum := asFloat64(a)
	bf, bNum := asFloat64(b)
	return aNum && bNum && af > bf
}

func compareLess(a, b any) bool {
	af, aNum := asFloat64(a)
	bf, bNum := asFloat64(b)
	return aNum && bNum && af < bf
}

func compareIn(a, b any) bool {
	items, ok := b.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if compareEqual(a, item) {
			return true
		}
	}
	return false
}

func compareContains(a, b any) bool {
	as, ok := a.(string)
	if !ok {
		return false
	}
	bs, ok := b.(string)
	if !ok {
		return false
	}
	return strings.Contains(as, bs)
}

// asFloat64 normalizes numeric values across the types JSON decoding and Go
// literals produce.
func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
