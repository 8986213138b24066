package pptxtemplate

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/beevik/etree"
)

// maxZipEntrySize is the maximum allowed size for a single file extracted from a ZIP.
// This prevents zip bomb attacks. 50 MB is generous for any legitimate PPTX part.
const maxZipEntrySize = 50 << 20 // 50 MB

// maxZipTotalSize is the cumulative limit for all extracted content from a single ZIP.
const maxZipTotalSize = 200 << 20 // 200 MB

// maxZipEntries is the maximum number of files allowed in a ZIP archive.
const maxZipEntries = 10000

// Open reads a PPTX file from disk and returns a Document ready for rendering.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return ReadFrom(f, info.Size())
}

// ReadFrom reads a PPTX package from an io.ReaderAt with the given size.
func ReadFrom(r io.ReaderAt, size int64) (*Document, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid reader size: %d", size)
	}
	if size > int64(maxZipTotalSize) {
		return nil, fmt.Errorf("file size %d exceeds maximum allowed (%d bytes)", size, maxZipTotalSize)
	}

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	if len(zr.File) > maxZipEntries {
		return nil, fmt.Errorf("zip archive contains too many entries (%d > %d)", len(zr.File), maxZipEntries)
	}

	doc := newDocument()
	var total int64
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readZipEntry(f)
		if err != nil {
			return nil, err
		}
		total += int64(len(data))
		if total > int64(maxZipTotalSize) {
			return nil, fmt.Errorf("extracted content exceeds maximum allowed (%d bytes)", maxZipTotalSize)
		}
		doc.addPart(&part{name: f.Name, data: data, modified: f.Modified})
	}

	if err := doc.loadSlides(); err != nil {
		return nil, err
	}
	return doc, nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxZipEntrySize {
		return nil, fmt.Errorf("file %s exceeds maximum allowed size (%d bytes)", f.Name, maxZipEntrySize)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s in zip: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, int64(maxZipEntrySize)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from zip: %w", f.Name, err)
	}
	if int64(len(data)) > int64(maxZipEntrySize) {
		return nil, fmt.Errorf("file %s actual size exceeds maximum allowed size", f.Name)
	}
	return data, nil
}

// loadSlides locates the presentation part and parses every slide in
// sldIdLst order.
func (d *Document) loadSlides() error {
	presPath, err := d.presentationPartName()
	if err != nil {
		return err
	}
	presPart, ok := d.parts[presPath]
	if !ok {
		return fmt.Errorf("presentation part not found: %s", presPath)
	}

	presTree := etree.NewDocument()
	if err := presTree.ReadFromBytes(presPart.data); err != nil {
		return fmt.Errorf("failed to parse %s: %w", presPath, err)
	}
	presRels, err := d.readRelationships(presPath)
	if err != nil {
		return err
	}

	sldIDs := childrenByTag(descend(presTree.Root(), "sldIdLst"), "sldId")
	for _, sldID := range sldIDs {
		// sldId carries both a numeric id and r:id; only the prefixed one is a relationship.
		rel, ok := findRel(presRels, relAttr(sldID, "id"))
		if !ok || rel.Type != relTypeSlide {
			continue
		}
		target, err := resolveRelativePath(path.Dir(presPath), rel.Target)
		if err != nil {
			return err
		}
		slide, err := d.readSlide(target)
		if err != nil {
			return fmt.Errorf("failed to read slide %s: %w", target, err)
		}
		slide.index = len(d.slides)
		d.slides = append(d.slides, slide)
	}
	return nil
}

func (d *Document) presentationPartName() (string, error) {
	rels, err := d.readRelationships("")
	if err != nil {
		return "", err
	}
	for _, rel := range rels {
		if rel.Type == relTypeOfficeDoc {
			return resolveRelativePath("", rel.Target)
		}
	}
	return defaultPresentation, nil
}

// readRelationships reads the rels part belonging to partName; the empty
// name selects the package-level _rels/.rels. A missing rels part is not
// an error.
func (d *Document) readRelationships(partName string) ([]xmlRel, error) {
	name := rootRelsPart
	if partName != "" {
		name = relsPathFor(partName)
	}
	p, ok := d.parts[name]
	if !ok {
		return nil, nil
	}
	return parseRelationships(p.data, name)
}

func (d *Document) readSlide(name string) (*Slide, error) {
	p, ok := d.parts[name]
	if !ok {
		return nil, fmt.Errorf("file not found in zip: %s", name)
	}
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(p.data); err != nil {
		return nil, fmt.Errorf("failed to parse slide XML: %w", err)
	}
	rels, err := d.readRelationships(name)
	if err != nil {
		return nil, err
	}
	p.tree = tree
	return &Slide{doc: d, partName: name, tree: tree, rels: rels}, nil
}

func findRel(rels []xmlRel, id string) (xmlRel, bool) {
	for _, rel := range rels {
		if rel.ID == id {
			return rel, true
		}
	}
	return xmlRel{}, false
}
