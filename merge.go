package pptxtemplate

import "strings"

// Placeholder delimiters.
const (
	openMarker  = "{{"
	closeMarker = "}}"
)

// TextCell is a mutable piece of text, typically a run.
type TextCell interface {
	Text() string
	SetText(text string)
}

// MergeRuns joins placeholders that were split across consecutive cells so
// that every complete {{ ... }} lives in a single cell. The cell that opens
// the placeholder receives the joined text and the consumed cells are
// emptied. A placeholder that is never closed stops the scan and leaves the
// remaining cells untouched. Running MergeRuns twice is the same as
// running it once.
func MergeRuns(cells []TextCell) {
	i := 0
	for i < len(cells) {
		text := cells[i].Text()
		if !strings.Contains(text, openMarker) {
			i++
			continue
		}

		merged := text
		j := i + 1
		for j < len(cells) && !strings.Contains(merged, closeMarker) {
			merged += cells[j].Text()
			j++
		}
		if !strings.Contains(merged, closeMarker) {
			return
		}

		if j > i+1 {
			cells[i].SetText(merged)
			for k := i + 1; k < j; k++ {
				cells[k].SetText("")
			}
		}
		i = j
	}
}
