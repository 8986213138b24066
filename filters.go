package pptxtemplate

import (
	"fmt"
	"math"
	"reflect"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// builtinFilters returns the filters every Environment starts with.
// upper, lower, trim, join, len and friends come from the expression
// language itself.
func builtinFilters() map[string]Filter {
	return map[string]Filter{
		"title":         titleFilter,
		"capitalize":    capitalizeFilter,
		"format_number": formatNumberFilter,
		"default":       defaultFilter,
	}
}

// titleFilter upper-cases the first letter of every word.
func titleFilter(params ...any) (any, error) {
	s, err := stringParam("title", params, 0)
	if err != nil {
		return nil, err
	}
	return cases.Title(language.Und).String(s), nil
}

// capitalizeFilter upper-cases the first letter and lower-cases the rest.
func capitalizeFilter(params ...any) (any, error) {
	s, err := stringParam("capitalize", params, 0)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return s, nil
	}
	_, size := utf8.DecodeRuneInString(s)
	return cases.Upper(language.Und).String(s[:size]) + cases.Lower(language.Und).String(s[size:]), nil
}

// formatNumberFilter groups digits for a locale: format_number(1234.5)
// gives "1,234.5", format_number(1234.5, "de") gives "1.234,5".
func formatNumberFilter(params ...any) (any, error) {
	if len(params) == 0 || len(params) > 2 {
		return nil, fmt.Errorf("format_number: expected 1 or 2 arguments, got %d", len(params))
	}
	n, ok := toFloat(params[0])
	if !ok {
		return nil, fmt.Errorf("format_number: expected a number, got %T", params[0])
	}
	tag := language.English
	if len(params) == 2 {
		s, err := stringParam("format_number", params, 1)
		if err != nil {
			return nil, err
		}
		parsed, err := language.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("format_number: %w", err)
		}
		tag = parsed
	}
	p := message.NewPrinter(tag)
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return p.Sprintf("%d", int64(n)), nil
	}
	return p.Sprintf("%v", n), nil
}

// defaultFilter returns the fallback when the value is empty.
func defaultFilter(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("default: expected 2 arguments, got %d", len(params))
	}
	if isEmpty(params[0]) {
		return params[1], nil
	}
	return params[0], nil
}

func stringParam(name string, params []any, i int) (string, error) {
	if i >= len(params) {
		return "", fmt.Errorf("%s: missing argument %d", name, i+1)
	}
	s, ok := params[i].(string)
	if !ok {
		return "", fmt.Errorf("%s: argument %d must be a string, got %T", name, i+1, params[i])
	}
	return s, nil
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	}
	return false
}
