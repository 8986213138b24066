package pptxtemplate

import (
	"fmt"
	"strings"
)

// Validate checks the document for structural issues and returns an error
// describing all problems found, or nil if the document is valid.
func (d *Document) Validate() error {
	var errs []string

	if len(d.slides) == 0 {
		errs = append(errs, "presentation must have at least one slide")
	}

	for _, slide := range d.slides {
		prefix := fmt.Sprintf("slide %d", slide.GetIndex()+1)
		for _, e := range validateShapes(slide.Shapes()) {
			errs = append(errs, prefix+": "+e)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("validation failed:\n  %s", strings.Join(errs, "\n  "))
}

func validateShapes(shapes []*Shape) []string {
	var errs []string
	for j, sh := range shapes {
		prefix := fmt.Sprintf("shape %d", j+1)
		if name := sh.GetName(); name != "" {
			prefix = fmt.Sprintf("shape %d (%s)", j+1, name)
		}

		if t := sh.Table(); t != nil {
			errs = append(errs, validateTable(t, prefix)...)
		}
		if pic := sh.Picture(); pic != nil {
			if _, err := pic.Blob(); err != nil {
				errs = append(errs, prefix+": "+err.Error())
			}
			if box, err := pic.Box(); err != nil {
				errs = append(errs, prefix+": "+err.Error())
			} else if box.CX < 0 || box.CY < 0 {
				errs = append(errs, prefix+": picture size is negative")
			}
		}
		if sh.IsGroup() {
			for _, e := range validateShapes(sh.Shapes()) {
				errs = append(errs, prefix+": "+e)
			}
		}
	}
	return errs
}

// validateTable checks that every row has as many cells as the first. A
// table left without rows by an unbound directive is valid.
func validateTable(t *Table, prefix string) []string {
	rows := t.Rows()
	if len(rows) == 0 {
		return nil
	}
	var errs []string
	cols := len(rows[0].Cells())
	for i, row := range rows[1:] {
		if n := len(row.Cells()); n != cols {
			errs = append(errs, fmt.Sprintf("%s: table row %d has %d cells, expected %d", prefix, i+2, n, cols))
		}
	}
	return errs
}
