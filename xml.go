package pptxtemplate

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
)

// Relationship and content type identifiers used while resolving parts.
const (
	relTypeOfficeDoc = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relTypeSlide     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relTypeImage     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	uriTable = "http://schemas.openxmlformats.org/drawingml/2006/table"

	rootRelsPart        = "_rels/.rels"
	defaultPresentation = "ppt/presentation.xml"
	targetModeExternal  = "External"
)

// --- Relationship reading ---

type xmlRel struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type xmlRels struct {
	XMLName       xml.Name `xml:"Relationships"`
	Relationships []xmlRel `xml:"Relationship"`
}

func parseRelationships(data []byte, name string) ([]xmlRel, error) {
	var rels xmlRels
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("failed to parse relationships %s: %w", name, err)
	}
	return rels.Relationships, nil
}

// relsPathFor returns the relationships part that belongs to partName,
// e.g. ppt/slides/slide1.xml -> ppt/slides/_rels/slide1.xml.rels.
func relsPathFor(partName string) string {
	dir, file := path.Split(partName)
	return dir + "_rels/" + file + ".rels"
}

// resolveRelativePath resolves a relationship target against the directory
// of the part that owns the relationship. Targets that would escape the
// package root are rejected.
func resolveRelativePath(base, rel string) (string, error) {
	if strings.HasPrefix(rel, "/") {
		return strings.TrimPrefix(rel, "/"), nil
	}

	result := make([]string, 0, 8)
	if base != "" && base != "." {
		result = append(result, strings.Split(base, "/")...)
	}

	for _, part := range strings.Split(rel, "/") {
		switch part {
		case "..":
			if len(result) == 0 {
				return "", fmt.Errorf("relationship target %q escapes the package", rel)
			}
			result = result[:len(result)-1]
		case ".", "":
		default:
			result = append(result, part)
		}
	}
	return strings.Join(result, "/"), nil
}

// --- etree helpers ---

// childrenByTag returns the direct child elements of el whose local name is tag.
func childrenByTag(el *etree.Element, tag string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// firstChild returns the first direct child of el with the given local name.
func firstChild(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// descend follows a chain of local names from el, one level at a time.
func descend(el *etree.Element, tags ...string) *etree.Element {
	for _, tag := range tags {
		el = firstChild(el, tag)
		if el == nil {
			return nil
		}
	}
	return el
}

// findDescendant does a depth-first search for the first element named tag.
func findDescendant(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
		if found := findDescendant(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// attrValue returns the value of the attribute whose local name is key,
// ignoring the namespace prefix (r:embed and embed both match "embed").
func attrValue(el *etree.Element, key string) string {
	if el == nil {
		return ""
	}
	for _, a := range el.Attr {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// relAttr returns the value of a namespace-prefixed attribute such as
// r:id or r:embed, whatever prefix the producer bound to the
// relationships namespace.
func relAttr(el *etree.Element, key string) string {
	if el == nil {
		return ""
	}
	for _, a := range el.Attr {
		if a.Key == key && a.Space != "" && a.Space != "xmlns" {
			return a.Value
		}
	}
	return ""
}

func qualified(space, tag string) string {
	if space == "" {
		return tag
	}
	return space + ":" + tag
}
