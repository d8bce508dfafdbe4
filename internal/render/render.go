// Package render rasterizes PDF pages into page images.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/dgallion1/pagewash/internal/page"
)

// ErrOutOfRange is returned when the requested page index does not exist
// in the source document.
var ErrOutOfRange = errors.New("render: page index out of range")

// Renderer produces a raw page image for one request.
type Renderer interface {
	Render(ctx context.Context, req page.Request) (page.RawImage, error)
}

// Poppler renders PDF pages by shelling out to pdftoppm. Standalone
// image requests are read verbatim.
type Poppler struct {
	// Binary overrides the pdftoppm executable name.
	Binary string
}

func (p *Poppler) binary() string {
	if p.Binary != "" {
		return p.Binary
	}
	return "pdftoppm"
}

func (p *Poppler) Render(ctx context.Context, req page.Request) (page.RawImage, error) {
	if req.Standalone() {
		data, err := os.ReadFile(req.Path)
		if err != nil {
			return page.RawImage{}, fmt.Errorf("read image %s: %w", req.Path, err)
		}
		return page.RawImage{Data: data, Format: page.FormatForPath(req.Path)}, nil
	}

	dir, err := os.MkdirTemp("", "pagewash-render-*")
	if err != nil {
		return page.RawImage{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, p.binary(), renderArgs(req, prefix)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return page.RawImage{}, fmt.Errorf("pdftoppm page %d of %s: %w: %s", req.Index+1, req.Path, err, out)
	}

	// pdftoppm zero-pads the page number depending on the page count, so
	// glob instead of guessing the width.
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return page.RawImage{}, err
	}
	if len(matches) == 0 {
		// pdftoppm exits zero but writes nothing for an out-of-bounds -f/-l.
		return page.RawImage{}, fmt.Errorf("%w: page %d of %s", ErrOutOfRange, req.Index+1, req.Path)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return page.RawImage{}, fmt.Errorf("read rendered page: %w", err)
	}
	return page.RawImage{Data: data, Format: "png"}, nil
}

// renderArgs builds the pdftoppm invocation for a single page at the
// requested density. pdftoppm numbers pages from 1.
func renderArgs(req page.Request, prefix string) []string {
	nr := strconv.Itoa(req.Index + 1)
	return []string{
		"-png",
		"-r", strconv.Itoa(req.Density),
		"-f", nr,
		"-l", nr,
		req.Path,
		prefix,
	}
}
