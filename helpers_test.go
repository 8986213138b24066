package pptxtemplate

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Minimal package builder used by the tests. It writes just enough of a
// presentation for Open to find slides, shapes and image parts.

const (
	nsP = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsA = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

type fixtureSlide struct {
	shapes []string
	// images maps relationship ids to media part names, e.g. "rId2" ->
	// "ppt/media/image1.png".
	images map[string]string
}

type fixture struct {
	slides []fixtureSlide
	media  map[string][]byte
}

var xmlText = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func runXML(text string) string {
	return `<a:r><a:rPr lang="en-US" dirty="0"/><a:t>` + xmlText.Replace(text) + `</a:t></a:r>`
}

func paragraphXML(runs ...string) string {
	var sb strings.Builder
	sb.WriteString("<a:p>")
	for _, r := range runs {
		sb.WriteString(runXML(r))
	}
	sb.WriteString("</a:p>")
	return sb.String()
}

// textShape returns a p:sp with one paragraph per element of paras.
func textShape(name string, paras ...[]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<p:sp><p:nvSpPr><p:cNvPr id="2" name="%s"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`, name)
	sb.WriteString(`<p:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="914400" cy="914400"/></a:xfrm></p:spPr>`)
	sb.WriteString(`<p:txBody><a:bodyPr/><a:lstStyle/>`)
	for _, p := range paras {
		sb.WriteString(paragraphXML(p...))
	}
	sb.WriteString(`</p:txBody></p:sp>`)
	return sb.String()
}

// tableShape returns a graphic frame holding a table with one run per cell.
func tableShape(name string, rows [][]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="3" name="%s"/><p:cNvGraphicFramePr/><p:nvPr/></p:nvGraphicFramePr>`, name)
	sb.WriteString(`<p:xfrm><a:off x="0" y="0"/><a:ext cx="6096000" cy="741680"/></p:xfrm>`)
	sb.WriteString(`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table"><a:tbl><a:tblPr/><a:tblGrid>`)
	if len(rows) > 0 {
		for range rows[0] {
			sb.WriteString(`<a:gridCol w="3048000"/>`)
		}
	}
	sb.WriteString(`</a:tblGrid>`)
	for _, row := range rows {
		sb.WriteString(`<a:tr h="370840">`)
		for _, cell := range row {
			sb.WriteString(`<a:tc><a:txBody><a:bodyPr/><a:lstStyle/>`)
			sb.WriteString(paragraphXML(cell))
			sb.WriteString(`</a:txBody><a:tcPr/></a:tc>`)
		}
		sb.WriteString(`</a:tr>`)
	}
	sb.WriteString(`</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`)
	return sb.String()
}

// pictureShape returns a p:pic embedding relID at the given box.
func pictureShape(name, relID string, box Box) string {
	return fmt.Sprintf(`<p:pic><p:nvPicPr><p:cNvPr id="4" name="%s"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>`+
		`<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`+
		`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`,
		name, relID, box.X, box.Y, box.CX, box.CY)
}

// groupShape wraps children in a p:grpSp.
func groupShape(name string, children ...string) string {
	return fmt.Sprintf(`<p:grpSp><p:nvGrpSpPr><p:cNvPr id="5" name="%s"/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>%s</p:grpSp>`,
		name, strings.Join(children, ""))
}

func slideXML(shapes []string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<p:sld xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `">` +
		`<p:cSld><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>` +
		strings.Join(shapes, "") +
		`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`
}

func relationshipsXML(rels [][3]string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, r := range rels {
		fmt.Fprintf(&sb, `<Relationship Id="%s" Type="%s" Target="%s"/>`, r[0], r[1], r[2])
	}
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

// build writes the fixture as a .pptx archive.
func (f fixture) build(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	var overrides strings.Builder
	for i := range f.slides {
		fmt.Fprintf(&overrides, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i+1)
	}
	write("[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+"\n"+
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`+
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`+
		`<Default Extension="xml" ContentType="application/xml"/>`+
		`<Default Extension="png" ContentType="image/png"/>`+
		`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`+
		overrides.String()+`</Types>`)
	write("_rels/.rels", relationshipsXML([][3]string{{"rId1", relTypeOfficeDoc, "ppt/presentation.xml"}}))

	var sldIDs strings.Builder
	var presRels [][3]string
	for i := range f.slides {
		relID := fmt.Sprintf("rId%d", i+2)
		fmt.Fprintf(&sldIDs, `<p:sldId id="%d" r:id="%s"/>`, 256+i, relID)
		presRels = append(presRels, [3]string{relID, relTypeSlide, fmt.Sprintf("slides/slide%d.xml", i+1)})
	}
	write("ppt/presentation.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+"\n"+
		`<p:presentation xmlns:a="`+nsA+`" xmlns:r="`+nsR+`" xmlns:p="`+nsP+`">`+
		`<p:sldIdLst>`+sldIDs.String()+`</p:sldIdLst>`+
		`<p:sldSz cx="9144000" cy="6858000"/><p:notesSz cx="6858000" cy="9144000"/></p:presentation>`)
	write("ppt/_rels/presentation.xml.rels", relationshipsXML(presRels))

	for i, s := range f.slides {
		write(fmt.Sprintf("ppt/slides/slide%d.xml", i+1), slideXML(s.shapes))
		if len(s.images) > 0 {
			var rels [][3]string
			for id, target := range s.images {
				rels = append(rels, [3]string{id, relTypeImage, "../" + strings.TrimPrefix(target, "ppt/")})
			}
			write(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), relationshipsXML(rels))
		}
	}
	for name, data := range f.media {
		write(name, string(data))
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// open builds the fixture and reads it back as a Document.
func (f fixture) open(t *testing.T) *Document {
	t.Helper()
	data := f.build(t)
	doc, err := ReadFrom(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	return doc
}

// save writes the fixture into dir and returns its path.
func (f fixture) save(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, f.build(t), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// singleSlide is a one-slide fixture without media.
func singleSlide(shapes ...string) fixture {
	return fixture{slides: []fixtureSlide{{shapes: shapes}}}
}

// testPNG returns a minimal 1x1 PNG image.
func testPNG() []byte {
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53,
		0xDE, 0x00, 0x00, 0x00, 0x0C, 0x49, 0x44, 0x41,
		0x54, 0x08, 0xD7, 0x63, 0xF8, 0xCF, 0xC0, 0x00,
		0x00, 0x00, 0x02, 0x00, 0x01, 0xE2, 0x21, 0xBC,
		0x33, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E,
		0x44, 0xAE, 0x42, 0x60, 0x82,
	}
}

// makePNG encodes a w x h PNG filled with c. A positive dpi adds a pHYs
// chunk.
func makePNG(t *testing.T, w, h int, c color.Color, dpi float64) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	data := buf.Bytes()
	if dpi <= 0 {
		return data
	}

	ppm := uint32(dpi/0.0254 + 0.5)
	chunk := make([]byte, 4+4+9+4)
	binary.BigEndian.PutUint32(chunk[0:], 9)
	copy(chunk[4:], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:], ppm)
	binary.BigEndian.PutUint32(chunk[12:], ppm)
	chunk[16] = 1
	binary.BigEndian.PutUint32(chunk[17:], crc32.ChecksumIEEE(chunk[4:17]))

	// Signature (8) + IHDR chunk (4 length + 4 type + 13 data + 4 crc).
	const afterIHDR = 8 + 25
	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:afterIHDR]...)
	out = append(out, chunk...)
	out = append(out, data[afterIHDR:]...)
	return out
}

// writeFile writes data under dir and returns the path.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// runTexts returns the text of every run of the first text frame on the
// slide, paragraph by paragraph.
func runTexts(t *testing.T, sh *Shape) [][]string {
	t.Helper()
	tf := sh.TextFrame()
	if tf == nil {
		t.Fatalf("shape %q has no text frame", sh.GetName())
	}
	var out [][]string
	for _, p := range tf.Paragraphs() {
		var runs []string
		for _, r := range p.Runs() {
			runs = append(runs, r.Text())
		}
		out = append(out, runs)
	}
	return out
}

// tableTexts returns the cell texts of a table row by row.
func tableTexts(tbl *Table) [][]string {
	var out [][]string
	for _, row := range tbl.Rows() {
		var cells []string
		for _, c := range row.Cells() {
			cells = append(cells, c.Text())
		}
		out = append(out, cells)
	}
	return out
}
