// Package source expands a caller's input reference and page range into
// an ordered list of page requests.
package source

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/dgallion1/pagewash/internal/page"
)

// ErrBadRange flags a first/last page combination that does not select a
// non-empty range within the document.
var ErrBadRange = errors.New("source: invalid page range")

// Range holds the caller-supplied 1-based inclusive page bounds. Zero
// means unset (first page / last page respectively).
type Range struct {
	First int
	Last  int
}

// Options carries the per-page processing settings applied to every
// expanded request.
type Options struct {
	Density   int
	Clean     bool
	Recognize bool
}

// Expand builds one request per selected page, in page order. A ".pdf"
// input is treated as a paged document; anything else is a glob pattern
// over standalone image files.
func Expand(input string, rng Range, opts Options) ([]page.Request, error) {
	if strings.EqualFold(filepath.Ext(input), ".pdf") {
		return expandPDF(input, rng, opts)
	}
	return expandGlob(input, rng, opts)
}

func expandPDF(input string, rng Range, opts Options) ([]page.Request, error) {
	count, err := api.PageCountFile(input)
	if err != nil {
		return nil, fmt.Errorf("count pages of %s: %w", input, err)
	}
	first, last, err := normalize(rng, count)
	if err != nil {
		return nil, err
	}
	reqs := make([]page.Request, 0, last-first)
	for i := first; i < last; i++ {
		reqs = append(reqs, page.Request{
			Path:      input,
			Index:     i,
			Density:   opts.Density,
			Clean:     opts.Clean,
			Recognize: opts.Recognize,
		})
	}
	return reqs, nil
}

func expandGlob(pattern string, rng Range, opts Options) ([]page.Request, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("glob %s: no files matched", pattern)
	}
	sort.Strings(files)
	first, last, err := normalize(rng, len(files))
	if err != nil {
		return nil, err
	}
	reqs := make([]page.Request, 0, last-first)
	for _, f := range files[first:last] {
		reqs = append(reqs, page.Request{
			Path:      f,
			Clean:     opts.Clean,
			Recognize: opts.Recognize,
		})
	}
	return reqs, nil
}

// normalize converts 1-based inclusive bounds to a 0-based half-open
// range, validated against the page count. An out-of-bounds or inverted
// selection is an error rather than a silent truncation.
func normalize(rng Range, count int) (first, last int, err error) {
	first = 0
	if rng.First != 0 {
		first = rng.First - 1
	}
	last = count
	if rng.Last != 0 {
		last = rng.Last
	}
	if first < 0 || first >= last || last > count {
		return 0, 0, fmt.Errorf("%w: pages %d-%d of %d", ErrBadRange, first+1, last, count)
	}
	return first, last, nil
}
