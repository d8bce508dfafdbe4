package page

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	// Scanners commonly produce TIFF and BMP; register those decoders too.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Decode turns a RawImage into a pixel image ready for OCR or
// compositing.
func Decode(raw RawImage) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", raw.Format, err)
	}
	return img, nil
}

// FormatForPath derives a format tag from a file extension, defaulting
// to "png".
func FormatForPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "":
		return "png"
	case "jpeg":
		return "jpg"
	default:
		return ext
	}
}
