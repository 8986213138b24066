package pptxtemplate

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Save writes the document to a PPTX file. A partially written file is
// removed on failure.
func (d *Document) Save(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	writeErr := d.WriteTo(f)
	closeErr := f.Close()

	if writeErr != nil {
		// Attempt cleanup on write failure
		os.Remove(path)
		return writeErr
	}
	return closeErr
}

// WriteTo writes the document to a writer in PPTX format. Parts are
// written in their original archive order.
func (d *Document) WriteTo(w io.Writer) error {
	if d == nil || d.parts == nil {
		return fmt.Errorf("document is nil")
	}

	zw := zip.NewWriter(w)
	for _, p := range d.order {
		data, err := p.bytes()
		if err != nil {
			return err
		}
		header := &zip.FileHeader{
			Name:     p.name,
			Method:   zip.Deflate,
			Modified: p.modified,
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create %s in zip: %w", p.name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	return zw.Close()
}
