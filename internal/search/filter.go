package search

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
)

// Filter operators.
const (
	FilterEq          = "="
	FilterNe          = "!="
	FilterLt          = "<"
	FilterGt          = ">"
	FilterLe          = "<="
	FilterGe          = ">="
	FilterContains    = "contains"
	FilterStartsWith  = "starts_with"
	FilterEndsWith    = "ends_with"
	FilterIn          = "in"
	FilterContainsAny = "contains_any"
)

var filterOps = map[string]bool{
	FilterEq: true, FilterNe: true, FilterLt: true, FilterGt: true, FilterLe: true, FilterGe: true,
	FilterContains: true, FilterStartsWith: true, FilterEndsWith: true,
	FilterIn: true, FilterContainsAny: true,
}

// Filter restricts results on one field of the result data. Value is a
// string for scalar operators and a []string for in and contains_any.
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// ParseFilter reads "field:op:value". List operators take a comma-separated
// value.
func ParseFilter(s string) (Filter, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" {
		return Filter{}, fmt.Errorf("%w: filter %q is not field:op:value", apperrors.ErrInvalidInput, s)
	}
	op := strings.ToLower(parts[1])
	if !filterOps[op] {
		return Filter{}, fmt.Errorf("%w: unknown filter operator %q", apperrors.ErrInvalidInput, parts[1])
	}
	f := Filter{Field: parts[0], Operator: op, Value: parts[2]}
	if op == FilterIn || op == FilterContainsAny {
		var vals []string
		for _, v := range strings.Split(parts[2], ",") {
			if v = strings.TrimSpace(v); v != "" {
				vals = append(vals, v)
			}
		}
		f.Value = vals
	}
	return f, nil
}

// Matches reports whether a field value satisfies the filter. A missing
// value, a type mismatch or an unparseable operand never matches.
func (f Filter) Matches(fieldValue any) bool {
	if fieldValue == nil {
		return false
	}
	switch f.Operator {
	case FilterIn:
		return slices.Contains(stringList(f.Value), stringify(fieldValue))
	case FilterContainsAny:
		var have []string
		switch fieldValue.(type) {
		case []string, []any:
			have = stringList(fieldValue)
		default:
			return false
		}
		for _, want := range stringList(f.Value) {
			for _, h := range have {
				if strings.EqualFold(h, want) {
					return true
				}
			}
		}
		return false
	}

	field := strings.ToLower(stringify(fieldValue))
	value := strings.ToLower(stringify(f.Value))
	switch f.Operator {
	case FilterEq:
		return field == value
	case FilterNe:
		return field != value
	case FilterContains:
		return strings.Contains(field, value)
	case FilterStartsWith:
		return strings.HasPrefix(field, value)
	case FilterEndsWith:
		return strings.HasSuffix(field, value)
	case FilterLt, FilterGt, FilterLe, FilterGe:
		cmp, ok := compare(field, value)
		if !ok {
			return false
		}
		switch f.Operator {
		case FilterLt:
			return cmp < 0
		case FilterGt:
			return cmp > 0
		case FilterLe:
			return cmp <= 0
		default:
			return cmp >= 0
		}
	}
	return false
}

// compare orders a and b numerically, falling back to calendar dates.
func compare(a, b string) (int, bool) {
	if x, err := strconv.ParseFloat(a, 64); err == nil {
		if y, err := strconv.ParseFloat(b, 64); err == nil {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	}
	x, okA := parseDate(a)
	y, okB := parseDate(b)
	if !okA || !okB {
		return 0, false
	}
	return x.Compare(y), true
}

// parseDate accepts a date or a datetime by its date prefix.
func parseDate(s string) (time.Time, bool) {
	if len(s) > len(records.DateLayout) {
		if _, err := time.Parse(records.DateTimeLayout, s); err != nil {
			return time.Time{}, false
		}
		s = s[:len(records.DateLayout)]
	}
	t, err := time.Parse(records.DateLayout, s)
	return t, err == nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []string:
		return strings.Join(x, ", ")
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func stringList(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, stringify(e))
		}
		return out
	case string:
		return []string{x}
	}
	return nil
}

// applyFilters keeps results satisfying every filter.
func applyFilters(results []indexer.SearchResult, filters []Filter) []indexer.SearchResult {
	if len(filters) == 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		keep := true
		for _, f := range filters {
			if !f.Matches(r.Data[f.Field]) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}
