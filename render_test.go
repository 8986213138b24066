package pptxtemplate

import (
	"bytes"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func renderFixture(t *testing.T, f fixture, data map[string]any, opts *Options) (*Document, Diagnostics) {
	t.Helper()
	doc := f.open(t)
	diags, err := NewRenderer(data, nil, opts).RenderDocument(doc)
	if err != nil {
		t.Fatalf("RenderDocument: %v", err)
	}
	return doc, diags
}

func TestRenderText(t *testing.T) {
	f := singleSlide(textShape("Title",
		[]string{"Hi {{ name }}"},
		[]string{"Hello {{", "name", "}}", ", you have {{ number }} item{{ number|plural('s') }}"},
	))
	opts := DefaultOptions()
	opts.Filters = map[string]Filter{"plural": func(params ...any) (any, error) {
		if n, _ := toFloat(params[0]); n > 0 {
			return params[1], nil
		}
		return "", nil
	}}

	doc, diags := renderFixture(t, f, map[string]any{"name": "John", "number": 3}, opts)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics:\n%s", diags)
	}
	want := [][]string{
		{"Hi John"},
		{"Hello John", "", "", ", you have 3 items"},
	}
	if diff := cmp.Diff(want, runTexts(t, doc.Slides()[0].Shapes()[0])); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderDiagnosticsAreLocal(t *testing.T) {
	f := fixture{slides: []fixtureSlide{
		{shapes: []string{textShape("A", []string{"{{ missing }}", " {{ name }}"})}},
		{shapes: []string{textShape("B", []string{"{{ name + }}"}, []string{"{{ name }}!"})}},
	}}
	doc, diags := renderFixture(t, f, map[string]any{"name": "John"}, nil)

	if len(diags) != 2 {
		t.Fatalf("got %d diagnostics, want 2:\n%s", len(diags), diags)
	}
	if diags[0].Kind != UndefinedError || diags[0].Slide != 1 {
		t.Errorf("first diagnostic = %+v, want UndefinedError on slide 1", diags[0])
	}
	if diags[1].Kind != TemplateSyntaxError || diags[1].Slide != 2 {
		t.Errorf("second diagnostic = %+v, want TemplateSyntaxError on slide 2", diags[1])
	}

	slide1 := runTexts(t, doc.Slides()[0].Shapes()[0])
	if diff := cmp.Diff([][]string{{"{{ missing }}", " John"}}, slide1); diff != "" {
		t.Errorf("slide 1 runs (-want +got):\n%s", diff)
	}
	slide2 := runTexts(t, doc.Slides()[1].Shapes()[0])
	if diff := cmp.Diff([][]string{{"{{ name + }}"}, {"John!"}}, slide2); diff != "" {
		t.Errorf("slide 2 runs (-want +got):\n%s", diff)
	}
}

func TestRenderTable(t *testing.T) {
	f := singleSlide(
		textShape("Caption", []string{"{{ my_table_name }}"}),
		directiveTable("{{ table:rows }}"),
	)
	data := map[string]any{
		"my_table_name": "Filling table",
		"rows":          [][]string{{"a", "b"}, {"c", "d"}},
	}
	doc, diags := renderFixture(t, f, data, nil)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics:\n%s", diags)
	}

	want := [][]string{{"Col A", "Col B"}, {"a", "b"}, {"c", "d"}}
	if diff := cmp.Diff(want, tableTexts(firstTable(t, doc))); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderTableMissingBinding(t *testing.T) {
	doc, diags := renderFixture(t, singleSlide(directiveTable("{{ table:absent }}")), map[string]any{}, nil)
	if len(diags) != 0 {
		t.Fatalf("a missing binding must not produce diagnostics:\n%s", diags)
	}
	want := [][]string{{"Col A", "Col B"}, {"", ""}}
	if diff := cmp.Diff(want, tableTexts(firstTable(t, doc))); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderTableShortRows(t *testing.T) {
	f := singleSlide(directiveTable("{{ table:rows }}"))
	doc, diags := renderFixture(t, f, map[string]any{"rows": [][]string{{"a"}}}, nil)

	if len(diags) != 1 || diags[0].Kind != UndefinedError {
		t.Fatalf("want one UndefinedError for the missing column, got:\n%s", diags)
	}
	want := [][]string{{"Col A", "Col B"}, {"a", "{{ rows[0][1] }}"}}
	if diff := cmp.Diff(want, tableTexts(firstTable(t, doc))); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderGroupShapes(t *testing.T) {
	f := singleSlide(groupShape("Group",
		textShape("Inner", []string{"{{ name }}"}),
		groupShape("Nested", textShape("Deep", []string{"{{ name|upper }}"})),
	))
	doc, diags := renderFixture(t, f, map[string]any{"name": "John"}, nil)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics:\n%s", diags)
	}

	group := doc.Slides()[0].Shapes()[0]
	children := group.Shapes()
	if len(children) != 2 {
		t.Fatalf("group has %d children, want 2", len(children))
	}
	if got := runTexts(t, children[0]); got[0][0] != "John" {
		t.Errorf("inner text = %q, want John", got[0][0])
	}
	if got := runTexts(t, children[1].Shapes()[0]); got[0][0] != "JOHN" {
		t.Errorf("nested text = %q, want JOHN", got[0][0])
	}
}

func TestRenderLogsDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	renderFixture(t, singleSlide(textShape("T", []string{"{{ missing }}"})), nil, opts)

	out := buf.String()
	if !strings.Contains(out, "rendering slide") {
		t.Errorf("missing slide debug event in log:\n%s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "UndefinedError") {
		t.Errorf("missing diagnostic warning in log:\n%s", out)
	}
}

func TestRenderEndToEnd(t *testing.T) {
	dir := t.TempDir()
	original := makePNG(t, 20, 20, color.White, 0)
	replacement := makePNG(t, 384, 192, color.Black, 0)

	f := fixture{
		slides: []fixtureSlide{{
			shapes: []string{
				textShape("Title", []string{"Hi {{ name }}"}, []string{"{{ missing }}"}),
				directiveTable("{{ table:rows }}"),
				pictureShape("Logo", "rId2", pictureBox),
			},
			images: map[string]string{"rId2": "ppt/media/image1.png"},
		}},
		media: map[string][]byte{"ppt/media/image1.png": original},
	}
	input := f.save(t, dir, "template.pptx")
	output := filepath.Join(dir, "out", "result.pptx")
	pictures := []PictureReplacement{{
		Original:    writeFile(t, dir, "model.png", original),
		Replacement: writeFile(t, dir, "image.png", replacement),
	}}

	msg, err := Render(input, output, map[string]any{
		"name": "John",
		"rows": []any{[]any{"a", "b"}},
	}, pictures, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if msg != "UndefinedError: 'missing' is undefined" {
		t.Errorf("Render message = %q", msg)
	}

	doc, err := Open(output)
	if err != nil {
		t.Fatalf("Open(output): %v", err)
	}
	defer doc.Close()

	shapes := doc.Slides()[0].Shapes()
	if got := runTexts(t, shapes[0]); got[0][0] != "Hi John" || got[1][0] != "{{ missing }}" {
		t.Errorf("title runs = %q", got)
	}
	if diff := cmp.Diff([][]string{{"Col A", "Col B"}, {"a", "b"}}, tableTexts(shapes[1].Table())); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
	blob, err := shapes[2].Picture().Blob()
	if err != nil {
		t.Fatalf("Blob: %v", err)
	}
	if !bytes.Equal(blob, replacement) {
		t.Error("picture was not replaced in the saved document")
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestRenderMissingInput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.pptx")
	if _, err := Render(filepath.Join(dir, "nope.pptx"), output, nil, nil, nil); err == nil {
		t.Fatal("expected an error for a missing input")
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("output exists after a failed render: %v", err)
	}
}

func TestRenderUnreadableReplacementIsFatal(t *testing.T) {
	dir := t.TempDir()
	original := makePNG(t, 20, 20, color.White, 0)
	input := pictureFixture(original).save(t, dir, "template.pptx")
	output := filepath.Join(dir, "out.pptx")

	_, err := Render(input, output, nil, []PictureReplacement{{
		Original:    writeFile(t, dir, "orig.png", original),
		Replacement: filepath.Join(dir, "gone.png"),
	}}, nil)
	if err == nil {
		t.Fatal("expected an error for an unreadable replacement")
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Errorf("output exists after a failed render: %v", statErr)
	}
}

func TestRendererReuse(t *testing.T) {
	r := NewRenderer(map[string]any{"name": "John"}, nil, nil)
	for i := 0; i < 2; i++ {
		doc := singleSlide(textShape("T", []string{"{{ name }}"})).open(t)
		diags, err := r.RenderDocument(doc)
		if err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		if len(diags) != 0 {
			t.Fatalf("pass %d: unexpected diagnostics %s", i, diags)
		}
		if got := runTexts(t, doc.Slides()[0].Shapes()[0]); got[0][0] != "John" {
			t.Errorf("pass %d: text = %q", i, got[0][0])
		}
	}
}
