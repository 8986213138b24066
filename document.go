// Package pptxtemplate fills {{ expression }} placeholders in PowerPoint
// presentation files (.pptx) from a data context.
//
// A template is opened as a Document: every package part is kept as read,
// and slides are parsed into mutable XML trees. The Renderer walks the
// slides, merges placeholders that the authoring tool split across runs,
// evaluates expressions, expands {{ table:key }} rows and swaps pictures by
// content digest, then saves the package back with untouched parts
// byte-for-byte identical.
package pptxtemplate

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
)

// Document is an opened presentation package. It is owned by a single
// render pass and mutated in place.
type Document struct {
	order  []*part
	parts  map[string]*part
	slides []*Slide
}

// part is one zip entry of the package. Slides carry a parsed tree that
// replaces data on write.
type part struct {
	name     string
	data     []byte
	modified time.Time
	tree     *etree.Document
}

func newDocument() *Document {
	return &Document{parts: make(map[string]*part)}
}

func (d *Document) addPart(p *part) {
	if _, exists := d.parts[p.name]; !exists {
		d.order = append(d.order, p)
	}
	d.parts[p.name] = p
}

// Slides returns the slides in presentation order.
func (d *Document) Slides() []*Slide {
	return d.slides
}

// GetSlideCount returns the number of slides.
func (d *Document) GetSlideCount() int {
	return len(d.slides)
}

// GetSlide returns a slide by index.
func (d *Document) GetSlide(index int) (*Slide, error) {
	if index < 0 || index >= len(d.slides) {
		return nil, fmt.Errorf("slide index %d out of range (0-%d)", index, len(d.slides)-1)
	}
	return d.slides[index], nil
}

// PartNames returns the names of all package parts in archive order.
func (d *Document) PartNames() []string {
	names := make([]string, 0, len(d.order))
	for _, p := range d.order {
		names = append(names, p.name)
	}
	return names
}

// Part returns the raw bytes of a package part. Slide parts are
// serialized from their current tree.
func (d *Document) Part(name string) ([]byte, error) {
	p, ok := d.parts[name]
	if !ok {
		return nil, fmt.Errorf("part not found: %s", name)
	}
	return p.bytes()
}

func (d *Document) setPartData(name string, data []byte) error {
	p, ok := d.parts[name]
	if !ok {
		return fmt.Errorf("part not found: %s", name)
	}
	p.data = data
	return nil
}

// ExtractText returns the text of every run on every slide, one paragraph
// per line.
func (d *Document) ExtractText() string {
	var parts []string
	for _, slide := range d.slides {
		if text := slide.ExtractText(); text != "" {
			parts = append(parts, text)
		}
	}
	return joinNonEmpty(parts, "\n")
}

// Close releases the parsed trees and part data.
func (d *Document) Close() error {
	d.order = nil
	d.parts = nil
	d.slides = nil
	return nil
}

func (p *part) bytes() ([]byte, error) {
	if p.tree == nil {
		return p.data, nil
	}
	data, err := p.tree.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", p.name, err)
	}
	return data, nil
}
