package assemble

import (
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/dgallion1/pagewash/internal/page"
)

// Dir writes each page image as <n>.jpg into the output directory.
// OCR fragments cannot be written as images; that combination is
// rejected at configuration time.
type Dir struct {
	path      string
	artifacts []page.Artifact
}

func (d *Dir) Append(a page.Artifact) error {
	if a.HasFragment() {
		return fmt.Errorf("assemble: page %d: cannot write an OCR fragment to a directory", a.Ordinal+1)
	}
	d.artifacts = append(d.artifacts, a)
	return nil
}

func (d *Dir) Save() error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("assemble: create output dir: %w", err)
	}
	for i, a := range d.artifacts {
		f, err := os.Create(filepath.Join(d.path, fmt.Sprintf("%d.jpg", i)))
		if err != nil {
			return fmt.Errorf("assemble: write page %d: %w", i+1, err)
		}
		err = jpeg.Encode(f, a.Image, nil)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("assemble: encode page %d: %w", i+1, err)
		}
	}
	return nil
}
