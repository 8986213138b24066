package pptxtemplate

import (
	"fmt"
	"os"
	"strconv"
)

// Picture is a p:pic shape whose image is embedded in the package.
type Picture struct {
	shape *Shape
}

// Shape returns the underlying shape.
func (p *Picture) Shape() *Shape { return p.shape }

// PartName returns the package part holding the image bytes.
func (p *Picture) PartName() (string, error) {
	relID := relAttr(descend(p.shape.el, "blipFill", "blip"), "embed")
	if relID == "" {
		return "", fmt.Errorf("picture %q has no embedded image", p.shape.GetName())
	}
	slide := p.shape.slide
	if rel, ok := findRel(slide.rels, relID); ok && rel.Type != relTypeImage {
		return "", fmt.Errorf("picture %q: relationship %s is not an image", p.shape.GetName(), relID)
	}
	return slide.relTarget(relID)
}

// Blob returns the raw image bytes.
func (p *Picture) Blob() ([]byte, error) {
	name, err := p.PartName()
	if err != nil {
		return nil, err
	}
	return p.shape.slide.doc.Part(name)
}

// Digest returns the content digest of the current image bytes.
func (p *Picture) Digest() (Digest, error) {
	blob, err := p.Blob()
	if err != nil {
		return "", err
	}
	return HashBytes(blob), nil
}

// SetBlob replaces the image bytes in place. The part name and content
// type are left as they are.
func (p *Picture) SetBlob(data []byte) error {
	name, err := p.PartName()
	if err != nil {
		return err
	}
	return p.shape.slide.doc.setPartData(name, data)
}

// Box returns the picture's position and size from spPr/xfrm.
func (p *Picture) Box() (Box, error) {
	xfrm := descend(p.shape.el, "spPr", "xfrm")
	off, ext := firstChild(xfrm, "off"), firstChild(xfrm, "ext")
	if off == nil || ext == nil {
		return Box{}, fmt.Errorf("picture %q has no position or size", p.shape.GetName())
	}

	var box Box
	fields := []struct {
		el  string
		key string
		dst *int64
	}{
		{"off", "x", &box.X},
		{"off", "y", &box.Y},
		{"ext", "cx", &box.CX},
		{"ext", "cy", &box.CY},
	}
	for _, f := range fields {
		el := off
		if f.el == "ext" {
			el = ext
		}
		v, err := strconv.ParseInt(attrValue(el, f.key), 10, 64)
		if err != nil {
			return Box{}, fmt.Errorf("picture %q: invalid %s/@%s: %w", p.shape.GetName(), f.el, f.key, err)
		}
		*f.dst = v
	}
	return box, nil
}

// SetBox writes a new position and size into spPr/xfrm.
func (p *Picture) SetBox(box Box) error {
	xfrm := descend(p.shape.el, "spPr", "xfrm")
	off, ext := firstChild(xfrm, "off"), firstChild(xfrm, "ext")
	if off == nil || ext == nil {
		return fmt.Errorf("picture %q has no position or size", p.shape.GetName())
	}
	off.CreateAttr("x", strconv.FormatInt(box.X, 10))
	off.CreateAttr("y", strconv.FormatInt(box.Y, 10))
	ext.CreateAttr("cx", strconv.FormatInt(box.CX, 10))
	ext.CreateAttr("cy", strconv.FormatInt(box.CY, 10))
	return nil
}

// PictureReplacement pairs a reference image with the image that should
// take its place. Pictures are matched by the digest of Original's bytes.
type PictureReplacement struct {
	Original    string
	Replacement string
}

// PictureReplacer swaps picture bytes by content digest and refits the
// picture geometry to the new image.
type PictureReplacer struct {
	entries []PictureReplacement
	dpi     float64
	digests digestCache
	images  map[string][]byte
}

// NewPictureReplacer returns a replacer for the given entries. dpi is
// assumed for images without resolution metadata.
func NewPictureReplacer(entries []PictureReplacement, dpi float64) *PictureReplacer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &PictureReplacer{
		entries: entries,
		dpi:     dpi,
		digests: make(digestCache),
		images:  make(map[string][]byte),
	}
}

// Replace applies, in order, every entry whose original has the same
// digest as the picture's image. The digest is taken once, before any
// entry is applied, so when several entries match the last one wins. It
// returns the number of entries applied.
func (r *PictureReplacer) Replace(pic *Picture) (int, error) {
	if len(r.entries) == 0 {
		return 0, nil
	}
	got, err := pic.Digest()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, e := range r.entries {
		want, err := r.digests.hash(e.Original)
		if err != nil {
			return applied, err
		}
		if got != want {
			continue
		}
		if err := r.apply(pic, e.Replacement); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (r *PictureReplacer) apply(pic *Picture, replacement string) error {
	data, err := r.load(replacement)
	if err != nil {
		return err
	}
	info, err := DecodeImageInfo(data)
	if err != nil {
		return fmt.Errorf("failed to read replacement %s: %w", replacement, err)
	}
	box, err := pic.Box()
	if err != nil {
		return err
	}
	if err := pic.SetBlob(data); err != nil {
		return err
	}
	return pic.SetBox(Fit(box, info, r.dpi).Box)
}

func (r *PictureReplacer) load(path string) ([]byte, error) {
	if data, ok := r.images[path]; ok {
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	r.images[path] = data
	return data, nil
}
