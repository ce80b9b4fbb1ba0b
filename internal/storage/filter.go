package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

// TimeRange bounds a timestamp field. Both ends are inclusive; a zero bound
// is open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Condition constrains one payload field. Exactly one of Equal, AnyOf or
// Range must be set. Key may be a dotted path into nested payload maps.
type Condition struct {
	Key   string
	Equal any
	AnyOf []any
	Range *TimeRange
}

// Eq builds an equality condition.
func Eq(key string, value any) Condition { return Condition{Key: key, Equal: value} }

// In builds a condition matching any of values.
func In(key string, values ...any) Condition { return Condition{Key: key, AnyOf: values} }

// Between builds an inclusive time range condition.
func Between(key string, from, to time.Time) Condition {
	return Condition{Key: key, Range: &TimeRange{From: from, To: to}}
}

// Filter selects records whose payload satisfies every Must condition and,
// when Should is non-empty, at least one Should condition.
type Filter struct {
	Must   []Condition
	Should []Condition
}

// Where builds a filter from Must conditions.
func Where(conds ...Condition) Filter { return Filter{Must: conds} }

// Empty reports whether the filter has no conditions.
func (f Filter) Empty() bool { return len(f.Must) == 0 && len(f.Should) == 0 }

// Validate checks that every condition is well formed.
func (f Filter) Validate() error {
	for _, group := range [][]Condition{f.Must, f.Should} {
		for _, c := range group {
			if err := c.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c Condition) validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("%w: condition without key", ErrInvalidFilter)
	}
	set := 0
	if c.Equal != nil {
		set++
	}
	if len(c.AnyOf) > 0 {
		set++
	}
	if c.Range != nil {
		set++
		if c.Range.From.IsZero() && c.Range.To.IsZero() {
			return fmt.Errorf("%w: %s: range without bounds", ErrInvalidFilter, c.Key)
		}
		if !c.Range.From.IsZero() && !c.Range.To.IsZero() && c.Range.To.Before(c.Range.From) {
			return fmt.Errorf("%w: %s: range ends before it starts", ErrInvalidFilter, c.Key)
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: %s: exactly one of equal, any-of or range is required", ErrInvalidFilter, c.Key)
	}
	return nil
}

// Matches reports whether payload satisfies the filter.
func (f Filter) Matches(payload map[string]any) bool {
	for _, c := range f.Must {
		if !c.matches(payload) {
			return false
		}
	}
	if len(f.Should) == 0 {
		return true
	}
	for _, c := range f.Should {
		if c.matches(payload) {
			return true
		}
	}
	return false
}

func (c Condition) matches(payload map[string]any) bool {
	v, ok := lookup(payload, c.Key)
	if !ok || v == nil {
		return false
	}
	// A list-valued field matches when any element does.
	if list, ok := v.([]any); ok {
		for _, item := range list {
			if c.matchValue(item) {
				return true
			}
		}
		return false
	}
	if list, ok := v.([]string); ok {
		for _, item := range list {
			if c.matchValue(item) {
				return true
			}
		}
		return false
	}
	return c.matchValue(v)
}

func (c Condition) matchValue(v any) bool {
	switch {
	case c.Equal != nil:
		return equalValues(v, c.Equal)
	case len(c.AnyOf) > 0:
		for _, want := range c.AnyOf {
			if equalValues(v, want) {
				return true
			}
		}
		return false
	case c.Range != nil:
		t, ok := asTime(v)
		if !ok {
			return false
		}
		if !c.Range.From.IsZero() && t.Before(c.Range.From) {
			return false
		}
		if !c.Range.To.IsZero() && t.After(c.Range.To) {
			return false
		}
		return true
	}
	return false
}

// lookup resolves key in payload, trying the literal key before treating
// it as a dotted path.
func lookup(payload map[string]any, key string) (any, bool) {
	if v, ok := payload[key]; ok {
		return v, true
	}
	parts := strings.Split(key, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var cur any = payload
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func equalValues(a, b any) bool {
	fa, aNum := asFloat(a)
	fb, bNum := asFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	if aNum != bNum {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
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
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := models.ParseTimestamp(t)
		return parsed, err == nil
	}
	return time.Time{}, false
}
