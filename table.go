package pptxtemplate

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// tableDirective matches {{ table:key }} with optional whitespace.
var tableDirective = regexp.MustCompile(`\{\{\s*table\s*:\s*([^}\s]+)\s*\}\}`)

// Expansion describes what ExpandTable did to a table.
type Expansion struct {
	// Key is the data key named by the directive, empty when the first row
	// held no directive.
	Key string
	// Rows is the number of data rows synthesized.
	Rows int
}

// Expanded reports whether a directive was found.
func (e Expansion) Expanded() bool { return e.Key != "" }

// FindTableDirective returns the key of the first {{ table:key }}
// directive in the first row of t. Other rows are never scanned.
func FindTableDirective(t *Table) (string, bool) {
	rows := t.Rows()
	if len(rows) == 0 {
		return "", false
	}
	for _, cell := range rows[0].Cells() {
		if m := tableDirective.FindStringSubmatch(cell.Text()); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// ExpandTable rewrites a table bound by a {{ table:key }} directive in
// its first row. The directive row is removed; for each element i of the
// sequence data[key] the last row is cloned and every run of cell j set to
// {{ key[i][j] }}; finally the row at index 1 is removed. With the usual
// directive, header and spare row layout that leaves the header followed
// by one row per element. A missing key, a non-sequence or an empty
// sequence leaves the table with only the directive row removed: the spare
// row is dropped only when the bound data is non-empty, so an unbound table
// keeps its header and spare rows.
//
// Synthesized placeholders are not evaluated here; the normal cell pass
// renders them.
func ExpandTable(t *Table, data map[string]any) (Expansion, error) {
	key, ok := FindTableDirective(t)
	if !ok {
		return Expansion{}, nil
	}
	if err := t.RemoveRow(0); err != nil {
		return Expansion{}, fmt.Errorf("failed to remove directive row: %w", err)
	}

	n := sequenceLen(data[key])
	if n == 0 {
		return Expansion{Key: key}, nil
	}

	for i := 0; i < n; i++ {
		rows := t.Rows()
		if len(rows) == 0 {
			return Expansion{Key: key}, fmt.Errorf("table bound to %q has no template row", key)
		}
		row := rows[len(rows)-1].Clone()
		for j, cell := range row.Cells() {
			setCellPlaceholder(cell, fmt.Sprintf("{{ %s[%d][%d] }}", key, i, j))
		}
		t.AppendRow(row)
	}

	// Cloning always leaves the row that followed the directive row behind
	// at index 1.
	if err := t.RemoveRow(1); err != nil {
		return Expansion{Key: key, Rows: n}, fmt.Errorf("failed to remove spare row: %w", err)
	}
	return Expansion{Key: key, Rows: n}, nil
}

// setCellPlaceholder writes text into every run of the cell, the way the
// template row's formatting is carried over.
func setCellPlaceholder(cell *Cell, text string) {
	tf := cell.TextFrame()
	if tf == nil {
		return
	}
	for _, p := range tf.Paragraphs() {
		for _, r := range p.Runs() {
			r.SetText(text)
		}
	}
}

// sequenceLen returns the length of a slice or array value, or 0.
func sequenceLen(v any) int {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len()
	}
	return 0
}
