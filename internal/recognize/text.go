package recognize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TextEngine extracts a plain text layer from a page image. It backs
// the optional text sidecar written next to the merged document.
type TextEngine interface {
	Text(ctx context.Context, img image.Image) (string, error)
}

// Gosseract recognizes text in-process through the Tesseract C API.
type Gosseract struct {
	Languages []string
}

func (g *Gosseract) Text(ctx context.Context, img image.Image) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode page for ocr: %w", err)
	}

	c := gosseract.NewClient()
	defer c.Close()
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("%w: set image: %v", ErrRecognition, err)
	}
	if len(g.Languages) > 0 {
		if err := c.SetLanguage(g.Languages...); err != nil {
			return "", fmt.Errorf("%w: set languages: %v", ErrRecognition, err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognition, err)
	}
	return strings.TrimSpace(text), nil
}
