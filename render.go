package pptxtemplate

import (
	"fmt"
	"io"
	"log/slog"
)

// Options configures a render pass.
type Options struct {
	// Logger receives debug events per slide, table and picture and a
	// warning per diagnostic. Nil discards everything.
	Logger *slog.Logger
	// Filters are added to the built-in filters, replacing any of the same
	// name.
	Filters map[string]Filter
	// DefaultDPI is assumed for replacement images without resolution
	// metadata. Default: 96.
	DefaultDPI float64
}

// DefaultOptions returns default render options.
func DefaultOptions() *Options {
	return &Options{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		DefaultDPI: DefaultDPI,
	}
}

// Renderer fills a template with one data context and picture map. A
// Renderer may be reused for sequential passes; concurrent passes need
// separate Renderers.
type Renderer struct {
	env      *Environment
	data     map[string]any
	pictures []PictureReplacement
	dpi      float64
	log      *slog.Logger
}

// NewRenderer returns a renderer for data and pictures. A nil opts uses
// DefaultOptions.
func NewRenderer(data map[string]any, pictures []PictureReplacement, opts *Options) *Renderer {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = DefaultOptions().Logger
	}
	dpi := opts.DefaultDPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if data == nil {
		data = map[string]any{}
	}
	return &Renderer{
		env:      NewEnvironment(opts.Filters),
		data:     data,
		pictures: pictures,
		dpi:      dpi,
		log:      logger,
	}
}

// Render opens the template at input, renders it and writes the result to
// output. It returns the diagnostics of the pass joined by newlines, empty
// when every placeholder rendered.
func Render(input, output string, data map[string]any, pictures []PictureReplacement, opts *Options) (string, error) {
	diags, err := NewRenderer(data, pictures, opts).Process(input, output)
	if err != nil {
		return "", err
	}
	return diags.String(), nil
}

// Process renders the template at input into output.
func (r *Renderer) Process(input, output string) (Diagnostics, error) {
	doc, err := Open(input)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	diags, err := r.RenderDocument(doc)
	if err != nil {
		return nil, err
	}
	if err := doc.Save(output); err != nil {
		return nil, err
	}
	r.log.Debug("rendered presentation", "input", input, "output", output, "diagnostics", len(diags))
	return diags, nil
}

// pass holds the state of one RenderDocument call.
type pass struct {
	*Renderer
	replacer *PictureReplacer
	slideNo  int
	diags    Diagnostics
}

// RenderDocument renders every slide of doc in place.
func (r *Renderer) RenderDocument(doc *Document) (Diagnostics, error) {
	p := &pass{Renderer: r, replacer: NewPictureReplacer(r.pictures, r.dpi)}
	for _, slide := range doc.Slides() {
		p.slideNo = slide.GetIndex() + 1
		r.log.Debug("rendering slide", "slide", p.slideNo, "part", slide.PartName())
		if err := p.renderShapes(slide.Shapes()); err != nil {
			return nil, fmt.Errorf("slide %d: %w", p.slideNo, err)
		}
	}
	return p.diags, nil
}

func (p *pass) renderShapes(shapes []*Shape) error {
	for _, sh := range shapes {
		if sh.IsGroup() {
			if err := p.renderShapes(sh.Shapes()); err != nil {
				return err
			}
			continue
		}
		if err := p.renderShape(sh); err != nil {
			return fmt.Errorf("shape %q: %w", sh.GetName(), err)
		}
	}
	return nil
}

// renderShape handles text, then table, then picture; a shape may have
// more than one.
func (p *pass) renderShape(sh *Shape) error {
	if tf := sh.TextFrame(); tf != nil {
		if err := p.renderTextFrame(tf); err != nil {
			return err
		}
	}
	if t := sh.Table(); t != nil {
		if err := p.renderTable(t); err != nil {
			return err
		}
	}
	if pic := sh.Picture(); pic != nil {
		n, err := p.replacer.Replace(pic)
		if err != nil {
			return err
		}
		if n > 0 {
			p.log.Debug("replaced picture", "slide", p.slideNo, "shape", sh.GetName(), "matches", n)
		}
	}
	return nil
}

func (p *pass) renderTable(t *Table) error {
	exp, err := ExpandTable(t, p.data)
	if err != nil {
		return err
	}
	if exp.Expanded() {
		p.log.Debug("expanded table", "slide", p.slideNo, "key", exp.Key, "rows", exp.Rows)
	}
	for _, cell := range t.Cells() {
		if tf := cell.TextFrame(); tf != nil {
			if err := p.renderTextFrame(tf); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *pass) renderTextFrame(tf *TextFrame) error {
	for _, para := range tf.Paragraphs() {
		MergeRuns(para.TextCells())
		for _, run := range para.Runs() {
			text := run.Text()
			res, err := p.env.Evaluate(text, p.data)
			if err != nil {
				return err
			}
			if !res.Rendered() {
				d := *res.Diagnostic
				d.Slide = p.slideNo
				p.diags = append(p.diags, d)
				p.log.Warn("placeholder not rendered", "slide", p.slideNo, "kind", string(d.Kind), "message", d.Message)
				continue
			}
			if res.Text != text {
				run.SetText(res.Text)
			}
		}
	}
	return nil
}
