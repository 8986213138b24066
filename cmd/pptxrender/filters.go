package main

import (
	"fmt"

	pptxtemplate "github.com/VantageDataChat/GoPPTTemplate"
)

// cliFilters are the filters available to templates rendered from the
// command line, on top of the library built-ins.
func cliFilters() map[string]pptxtemplate.Filter {
	return map[string]pptxtemplate.Filter{
		"plural": plural,
	}
}

// plural returns the ending when the count is positive: {{ n|plural('s') }}.
func plural(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("plural: expected 2 arguments, got %d", len(params))
	}
	n, ok := params[0].(float64)
	if !ok {
		i, isInt := params[0].(int)
		if !isInt {
			return nil, fmt.Errorf("plural: expected a number, got %T", params[0])
		}
		n = float64(i)
	}
	ending, ok := params[1].(string)
	if !ok {
		return nil, fmt.Errorf("plural: ending must be a string, got %T", params[1])
	}
	if n > 0 {
		return ending, nil
	}
	return "", nil
}
