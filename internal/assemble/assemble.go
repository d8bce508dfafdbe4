// Package assemble composites page artifacts into the final output: a
// merged PDF or a directory of page images. Output is materialized only
// once every page has arrived, so an aborted run leaves nothing behind.
package assemble

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/dgallion1/pagewash/internal/page"
)

// ErrMixedArtifacts is returned when a run hands both OCR fragments and
// plain images to the same assembler.
var ErrMixedArtifacts = errors.New("assemble: mixed fragment and image artifacts")

// Assembler collects page artifacts in order and writes the output on
// Save.
type Assembler interface {
	Append(a page.Artifact) error
	Save() error
}

// ForOutput picks the assembler matching the output path: ".pdf" means
// a merged document, anything else a directory of images.
func ForOutput(path, textPath string) Assembler {
	if IsPDF(path) {
		return &PDF{path: path, textPath: textPath}
	}
	return &Dir{path: path}
}

// IsPDF reports whether the output path names a merged document rather
// than a directory.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
