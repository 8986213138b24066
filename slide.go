package pptxtemplate

import (
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
)

// Slide is a single slide of the document backed by its parsed XML tree.
type Slide struct {
	doc      *Document
	partName string
	tree     *etree.Document
	rels     []xmlRel
	index    int
}

// GetIndex returns the zero-based position of the slide in the presentation.
func (s *Slide) GetIndex() int { return s.index }

// PartName returns the package part the slide was read from.
func (s *Slide) PartName() string { return s.partName }

// Shapes returns the top-level shapes of the slide in document order.
func (s *Slide) Shapes() []*Shape {
	return shapesOf(s, descend(s.tree.Root(), "cSld", "spTree"))
}

// ExtractText returns the text of every shape on the slide.
func (s *Slide) ExtractText() string {
	var parts []string
	var walk func(shapes []*Shape)
	walk = func(shapes []*Shape) {
		for _, sh := range shapes {
			if tf := sh.TextFrame(); tf != nil {
				parts = append(parts, tf.Text())
			}
			if t := sh.Table(); t != nil {
				for _, row := range t.Rows() {
					for _, cell := range row.Cells() {
						parts = append(parts, cell.Text())
					}
				}
			}
			walk(sh.Shapes())
		}
	}
	walk(s.Shapes())
	return joinNonEmpty(parts, "\n")
}

// relTarget resolves a slide relationship to a package part name.
func (s *Slide) relTarget(relID string) (string, error) {
	rel, ok := findRel(s.rels, relID)
	if !ok {
		return "", fmt.Errorf("relationship %s not found in %s", relID, s.partName)
	}
	if rel.TargetMode == targetModeExternal {
		return "", fmt.Errorf("relationship %s in %s targets an external resource", relID, s.partName)
	}
	return resolveRelativePath(path.Dir(s.partName), rel.Target)
}

// shapeTags lists the spTree children that are shapes.
var shapeTags = map[string]bool{
	"sp":           true,
	"pic":          true,
	"graphicFrame": true,
	"grpSp":        true,
	"cxnSp":        true,
	"contentPart":  true,
}

func shapesOf(slide *Slide, tree *etree.Element) []*Shape {
	if tree == nil {
		return nil
	}
	var shapes []*Shape
	for _, c := range tree.ChildElements() {
		if shapeTags[c.Tag] {
			shapes = append(shapes, &Shape{slide: slide, el: c})
		}
	}
	return shapes
}

// Shape is an element of a slide's shape tree. A shape may have a text
// frame, a table, be a picture, or group other shapes.
type Shape struct {
	slide *Slide
	el    *etree.Element
}

// GetName returns the shape name from its non-visual properties.
func (sh *Shape) GetName() string {
	for _, c := range sh.el.ChildElements() {
		if strings.HasPrefix(c.Tag, "nv") {
			return attrValue(firstChild(c, "cNvPr"), "name")
		}
	}
	return ""
}

// Slide returns the slide that owns the shape.
func (sh *Shape) Slide() *Slide { return sh.slide }

// HasTextFrame reports whether the shape is an autoshape with a text body.
func (sh *Shape) HasTextFrame() bool {
	return sh.el.Tag == "sp" && firstChild(sh.el, "txBody") != nil
}

// TextFrame returns the shape's text frame, or nil.
func (sh *Shape) TextFrame() *TextFrame {
	if !sh.HasTextFrame() {
		return nil
	}
	return &TextFrame{el: firstChild(sh.el, "txBody")}
}

// HasTable reports whether the shape is a graphic frame holding a table.
func (sh *Shape) HasTable() bool {
	return sh.tableElement() != nil
}

// Table returns the shape's table, or nil.
func (sh *Shape) Table() *Table {
	el := sh.tableElement()
	if el == nil {
		return nil
	}
	return &Table{el: el}
}

func (sh *Shape) tableElement() *etree.Element {
	if sh.el.Tag != "graphicFrame" {
		return nil
	}
	data := descend(sh.el, "graphic", "graphicData")
	if data == nil || attrValue(data, "uri") != uriTable {
		return nil
	}
	return firstChild(data, "tbl")
}

// IsPicture reports whether the shape is a picture with embedded image data.
func (sh *Shape) IsPicture() bool {
	return sh.el.Tag == "pic" && relAttr(descend(sh.el, "blipFill", "blip"), "embed") != ""
}

// Picture returns the shape as a picture, or nil.
func (sh *Shape) Picture() *Picture {
	if !sh.IsPicture() {
		return nil
	}
	return &Picture{shape: sh}
}

// IsGroup reports whether the shape groups other shapes.
func (sh *Shape) IsGroup() bool {
	return sh.el.Tag == "grpSp"
}

// Shapes returns the child shapes of a group, or nil for other shapes.
func (sh *Shape) Shapes() []*Shape {
	if !sh.IsGroup() {
		return nil
	}
	return shapesOf(sh.slide, sh.el)
}

// TextFrame is a text body (p:txBody or a:txBody).
type TextFrame struct {
	el *etree.Element
}

// Paragraphs returns the paragraphs of the frame in order.
func (tf *TextFrame) Paragraphs() []*Paragraph {
	var out []*Paragraph
	for _, p := range childrenByTag(tf.el, "p") {
		out = append(out, &Paragraph{el: p})
	}
	return out
}

// Text returns the frame text with paragraphs separated by newlines.
func (tf *TextFrame) Text() string {
	var lines []string
	for _, p := range tf.Paragraphs() {
		lines = append(lines, p.Text())
	}
	return strings.Join(lines, "\n")
}

// Paragraph is an a:p element.
type Paragraph struct {
	el *etree.Element
}

// Runs returns the text runs of the paragraph in order.
func (p *Paragraph) Runs() []*Run {
	var out []*Run
	for _, r := range childrenByTag(p.el, "r") {
		out = append(out, &Run{el: r})
	}
	return out
}

// TextCells returns the runs as mutable text cells for the run merger.
func (p *Paragraph) TextCells() []TextCell {
	runs := p.Runs()
	cells := make([]TextCell, len(runs))
	for i, r := range runs {
		cells[i] = r
	}
	return cells
}

// Text returns the concatenated run text.
func (p *Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs() {
		sb.WriteString(r.Text())
	}
	return sb.String()
}

// Run is an a:r element, the smallest unit of styled text.
type Run struct {
	el *etree.Element
}

// Text returns the run text; a run without a:t reads as empty.
func (r *Run) Text() string {
	t := firstChild(r.el, "t")
	if t == nil {
		return ""
	}
	return t.Text()
}

// SetText replaces the run text, creating the a:t element if needed.
func (r *Run) SetText(text string) {
	t := firstChild(r.el, "t")
	if t == nil {
		t = r.el.CreateElement(qualified(r.el.Space, "t"))
	}
	t.SetText(text)
}

// Table is an a:tbl element.
type Table struct {
	el *etree.Element
}

// Rows returns the rows of the table in order.
func (t *Table) Rows() []*Row {
	var out []*Row
	for _, tr := range childrenByTag(t.el, "tr") {
		out = append(out, &Row{el: tr})
	}
	return out
}

// GetRowCount returns the number of rows.
func (t *Table) GetRowCount() int {
	return len(childrenByTag(t.el, "tr"))
}

// GetRow returns the row at index.
func (t *Table) GetRow(index int) (*Row, error) {
	rows := t.Rows()
	if index < 0 || index >= len(rows) {
		return nil, fmt.Errorf("row index %d out of range (0-%d)", index, len(rows)-1)
	}
	return rows[index], nil
}

// RemoveRow detaches the row at index from the table.
func (t *Table) RemoveRow(index int) error {
	row, err := t.GetRow(index)
	if err != nil {
		return err
	}
	t.el.RemoveChild(row.el)
	return nil
}

// AppendRow inserts row after the current last row.
func (t *Table) AppendRow(row *Row) {
	rows := childrenByTag(t.el, "tr")
	if len(rows) == 0 {
		t.el.AddChild(row.el)
		return
	}
	last := rows[len(rows)-1]
	t.el.InsertChildAt(last.Index()+1, row.el)
}

// Cells returns every cell of the table, row by row.
func (t *Table) Cells() []*Cell {
	var out []*Cell
	for _, row := range t.Rows() {
		out = append(out, row.Cells()...)
	}
	return out
}

// Row is an a:tr element.
type Row struct {
	el *etree.Element
}

// Cells returns the cells of the row in order.
func (r *Row) Cells() []*Cell {
	var out []*Cell
	for _, tc := range childrenByTag(r.el, "tc") {
		out = append(out, &Cell{el: tc})
	}
	return out
}

// Clone returns a detached deep copy of the row.
func (r *Row) Clone() *Row {
	return &Row{el: r.el.Copy()}
}

// Cell is an a:tc element.
type Cell struct {
	el *etree.Element
}

// TextFrame returns the cell's text body, or nil if the cell has none.
func (c *Cell) TextFrame() *TextFrame {
	body := firstChild(c.el, "txBody")
	if body == nil {
		return nil
	}
	return &TextFrame{el: body}
}

// Text returns the cell text with paragraphs separated by newlines.
func (c *Cell) Text() string {
	tf := c.TextFrame()
	if tf == nil {
		return ""
	}
	return tf.Text()
}

func joinNonEmpty(parts []string, sep string) string {
	var result []string
	for _, p := range parts {
		if p != "" {
			result = append(result, p)
		}
	}
	return strings.Join(result, sep)
}
