package assemble

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/dgallion1/pagewash/internal/page"
)

// PDF merges page artifacts into one output document. OCR fragments are
// concatenated; plain images each become a full page sized to the
// image's pixel dimensions. Image pages are re-encoded as JPEG, a known
// lossy step.
type PDF struct {
	path     string
	textPath string

	artifacts []page.Artifact
	fragments int
	images    int
}

func (p *PDF) Append(a page.Artifact) error {
	if a.HasFragment() {
		p.fragments++
	} else {
		p.images++
	}
	if p.fragments > 0 && p.images > 0 {
		return ErrMixedArtifacts
	}
	p.artifacts = append(p.artifacts, a)
	return nil
}

func (p *PDF) Save() error {
	if len(p.artifacts) == 0 {
		return fmt.Errorf("assemble: no pages to save")
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".pagewash-*.pdf")
	if err != nil {
		return fmt.Errorf("assemble: create output: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if p.fragments > 0 {
		err = p.mergeFragments(tmp)
	} else {
		err = p.importImages(tmp)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("assemble: write %s: %w", p.path, err)
	}

	if err := os.Rename(tmpPath, p.path); err != nil {
		return fmt.Errorf("assemble: finalize %s: %w", p.path, err)
	}

	if p.textPath != "" {
		if err := p.saveText(); err != nil {
			return err
		}
	}
	return nil
}

func (p *PDF) mergeFragments(w io.Writer) error {
	readers := make([]io.ReadSeeker, len(p.artifacts))
	for i, a := range p.artifacts {
		readers[i] = bytes.NewReader(a.Fragment)
	}
	return api.MergeRaw(readers, w, false, nil)
}

func (p *PDF) importImages(w io.Writer) error {
	// A nil import config sizes each page to the image dimensions.
	imgs := make([]io.Reader, len(p.artifacts))
	for i, a := range p.artifacts {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, a.Image, nil); err != nil {
			return fmt.Errorf("encode page %d: %w", i+1, err)
		}
		imgs[i] = &buf
	}
	return api.ImportImages(nil, w, imgs, nil, nil)
}

// saveText writes the concatenated per-page text layers next to the
// document, pages separated by form feeds.
func (p *PDF) saveText() error {
	var sb strings.Builder
	for i, a := range p.artifacts {
		if i > 0 {
			sb.WriteByte('\f')
		}
		sb.WriteString(a.Text)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(p.textPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("assemble: write text sidecar: %w", err)
	}
	return nil
}
