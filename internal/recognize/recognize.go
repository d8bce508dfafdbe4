// Package recognize adds a searchable text layer to cleaned page
// images.
package recognize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"
)

// ErrRecognition flags a failed OCR run.
var ErrRecognition = errors.New("recognize: ocr failed")

// Recognizer turns a page image into a searchable single-page PDF
// fragment.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]byte, error)
}

// Tesseract produces PDF fragments through the tesseract CLI's pdf
// renderer, reading the image from stdin.
type Tesseract struct {
	// Binary overrides the tesseract executable name.
	Binary string

	// Languages passed via -l, joined with "+". Empty means the
	// engine default.
	Languages []string
}

func (t *Tesseract) binary() string {
	if t.Binary != "" {
		return t.Binary
	}
	return "tesseract"
}

func (t *Tesseract) Recognize(ctx context.Context, img image.Image) ([]byte, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return nil, fmt.Errorf("encode page for ocr: %w", err)
	}

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary(), pdfArgs(t.Languages)...)
	cmd.Stdin = &in
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: tesseract: %v: %s", ErrRecognition, err, stderr.String())
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("%w: tesseract produced no output", ErrRecognition)
	}
	return out.Bytes(), nil
}

// pdfArgs builds the tesseract invocation for stdin-to-stdout PDF
// output.
func pdfArgs(langs []string) []string {
	args := []string{"stdin", "stdout"}
	if len(langs) > 0 {
		args = append(args, "-l", strings.Join(langs, "+"))
	}
	return append(args, "pdf")
}
