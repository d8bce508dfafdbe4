// Package page defines the unit of work flowing through the cleaning
// pipeline and the artifacts it produces.
package page

import "image"

// Request identifies one page to process. It is immutable once created;
// requests are produced by range expansion in original page order.
type Request struct {
	// Path is the source document (PDF) or a standalone image file.
	Path string

	// Index is the 0-based page index within a PDF. Ignored for
	// standalone images.
	Index int

	// Density is the rasterization DPI. Zero or negative means Path is
	// a standalone image read verbatim.
	Density int

	Clean     bool
	Recognize bool
}

// Standalone reports whether the request refers to an image file rather
// than a page of a PDF.
func (r Request) Standalone() bool { return r.Density <= 0 }

// RawImage is an encoded image plus its declared format tag.
type RawImage struct {
	Data   []byte
	Format string // "png", "jpg", ...
}

// Artifact is the result of processing one page: either a decoded image
// (no OCR) or a searchable single-page PDF fragment. Text carries the
// optional plain-text layer for the sidecar output.
type Artifact struct {
	// Ordinal is the artifact's position in the output, 0-based.
	Ordinal int

	Image    image.Image
	Fragment []byte
	Text     string
}

// HasFragment reports whether the artifact is an OCR'd PDF fragment.
func (a Artifact) HasFragment() bool { return len(a.Fragment) > 0 }
