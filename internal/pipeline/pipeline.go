// Package pipeline orchestrates the page-processing pipeline: render,
// optional remote cleaning, optional OCR, ordered delivery to the
// assembler. Two drivers exist: Parallel (worker pool, stateless HTTP
// cleaner) and Pipelined (single persistent interactive session).
package pipeline

import "github.com/dgallion1/pagewash/internal/page"

// Sink receives artifacts in strict page order. A sink error aborts the
// run.
type Sink func(a page.Artifact) error

// Progress is invoked once per completed page; done increases by one
// per call regardless of which page finished.
type Progress func(done, total int)
