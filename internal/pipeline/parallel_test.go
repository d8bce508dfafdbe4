package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/pagewash/internal/cleaner"
	"github.com/dgallion1/pagewash/internal/page"
)

// pngBytes encodes a tiny image so pipeline stages can decode it.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func testRequests(n int, clean bool) []page.Request {
	reqs := make([]page.Request, n)
	for i := range reqs {
		reqs[i] = page.Request{Path: "doc.pdf", Index: i, Density: 150, Clean: clean}
	}
	return reqs
}

// fakeRenderer returns a decodable image for every request.
type fakeRenderer struct {
	mu    sync.Mutex
	data  []byte
	calls []int
	fail  map[int]error
}

func (f *fakeRenderer) Render(ctx context.Context, req page.Request) (page.RawImage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Index)
	f.mu.Unlock()
	if err := f.fail[req.Index]; err != nil {
		return page.RawImage{}, err
	}
	return page.RawImage{Data: f.data, Format: "png"}, nil
}

// fakeCleaner echoes the image back unchanged.
type fakeCleaner struct{}

func (f *fakeCleaner) Clean(ctx context.Context, img page.RawImage) (page.RawImage, error) {
	return img, nil
}

// delayCleaner keys the delay on submission order; used to scramble
// completion order deterministically.
type delayCleaner struct {
	mu    sync.Mutex
	seen  int
	delay []time.Duration
	fail  map[int]error
}

func (d *delayCleaner) Clean(ctx context.Context, img page.RawImage) (page.RawImage, error) {
	d.mu.Lock()
	idx := d.seen
	d.seen++
	d.mu.Unlock()
	if idx < len(d.delay) {
		select {
		case <-time.After(d.delay[idx]):
		case <-ctx.Done():
			return page.RawImage{}, ctx.Err()
		}
	}
	if err := d.fail[idx]; err != nil {
		return page.RawImage{}, err
	}
	return img, nil
}

func TestParallel_OrderedDeliveryUnderScrambledCompletion(t *testing.T) {
	data := pngBytes(t, 4, 6)
	reqs := testRequests(6, true)

	// Earlier pages take longer, so completion order is roughly the
	// reverse of request order.
	delays := []time.Duration{60, 50, 40, 30, 20, 10}
	d := &delayCleaner{delay: make([]time.Duration, len(delays))}
	for i, ms := range delays {
		d.delay[i] = time.Duration(ms) * time.Millisecond
	}

	var got []int
	driver := &Parallel{
		Renderer: &fakeRenderer{data: data},
		Cleaner:  d,
		Workers:  6,
	}
	err := driver.Run(context.Background(), reqs, func(a page.Artifact) error {
		got = append(got, a.Ordinal)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != len(reqs) {
		t.Fatalf("expected %d artifacts, got %d", len(reqs), len(got))
	}
	for i, ord := range got {
		if ord != i {
			t.Fatalf("artifact %d delivered out of order: got ordinal %d (full order %v)", i, ord, got)
		}
	}
}

func TestParallel_ProgressIsMonotonic(t *testing.T) {
	data := pngBytes(t, 2, 2)
	reqs := testRequests(5, false)

	var mu sync.Mutex
	var progress []int
	driver := &Parallel{
		Renderer: &fakeRenderer{data: data},
		Cleaner:  &fakeCleaner{},
		Workers:  3,
		OnProgress: func(done, total int) {
			mu.Lock()
			progress = append(progress, done)
			mu.Unlock()
			if total != 5 {
				t.Errorf("expected total 5, got %d", total)
			}
		},
	}
	err := driver.Run(context.Background(), reqs, func(page.Artifact) error { return nil })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(progress) != 5 {
		t.Fatalf("expected 5 progress signals, got %d", len(progress))
	}
	for i, done := range progress {
		if done != i+1 {
			t.Fatalf("progress not monotonic: %v", progress)
		}
	}
}

func TestParallel_ArtifactCountMatchesRange(t *testing.T) {
	data := pngBytes(t, 2, 2)
	for _, n := range []int{1, 2, 7} {
		var count int
		driver := &Parallel{
			Renderer: &fakeRenderer{data: data},
			Cleaner:  &fakeCleaner{},
			Workers:  4,
		}
		err := driver.Run(context.Background(), testRequests(n, true), func(page.Artifact) error {
			count++
			return nil
		})
		if err != nil {
			t.Fatalf("n=%d: Run: %v", n, err)
		}
		if count != n {
			t.Errorf("n=%d: expected %d artifacts, got %d", n, n, count)
		}
	}
}

func TestParallel_SinglePageFailureAbortsRun(t *testing.T) {
	data := pngBytes(t, 2, 2)
	wantErr := errors.New("boom")
	driver := &Parallel{
		Renderer: &fakeRenderer{data: data, fail: map[int]error{2: wantErr}},
		Cleaner:  &fakeCleaner{},
		Workers:  2,
	}
	err := driver.Run(context.Background(), testRequests(4, false), func(page.Artifact) error { return nil })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected render failure to propagate, got %v", err)
	}
}

func TestParallel_SinkErrorAbortsRun(t *testing.T) {
	data := pngBytes(t, 2, 2)
	sinkErr := errors.New("disk full")
	driver := &Parallel{
		Renderer: &fakeRenderer{data: data},
		Cleaner:  &fakeCleaner{},
		Workers:  2,
	}
	err := driver.Run(context.Background(), testRequests(4, false), func(a page.Artifact) error {
		if a.Ordinal == 1 {
			return sinkErr
		}
		return nil
	})
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink failure to propagate, got %v", err)
	}
}

func TestParallel_EmptyRequestList(t *testing.T) {
	driver := &Parallel{Renderer: &fakeRenderer{}, Cleaner: &fakeCleaner{}}
	err := driver.Run(context.Background(), nil, func(page.Artifact) error {
		t.Fatal("sink called for empty run")
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// failNCleaner fails a fixed number of calls, then succeeds.
type failNCleaner struct {
	mu       sync.Mutex
	failures int
	err      error
}

func (f *failNCleaner) Clean(ctx context.Context, img page.RawImage) (page.RawImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return page.RawImage{}, f.err
	}
	return img, nil
}

func TestParallel_FailFastByDefault(t *testing.T) {
	data := pngBytes(t, 2, 2)
	svcErr := fmt.Errorf("%w: status 500", cleaner.ErrService)
	driver := &Parallel{
		Renderer: &fakeRenderer{data: data},
		Cleaner:  &failNCleaner{failures: 1, err: svcErr},
		Workers:  1,
	}
	err := driver.Run(context.Background(), testRequests(2, true), func(page.Artifact) error { return nil })
	if err == nil {
		t.Fatal("expected the first service error to abort the run")
	}
}

func TestParallel_RetryRecoversServiceError(t *testing.T) {
	data := pngBytes(t, 2, 2)
	svcErr := fmt.Errorf("%w: status 500", cleaner.ErrService)
	driver := &Parallel{
		Renderer: &fakeRenderer{data: data},
		Cleaner:  &failNCleaner{failures: 1, err: svcErr},
		Workers:  1,
		Retry:    true,
	}
	var count int
	err := driver.Run(context.Background(), testRequests(2, true), func(page.Artifact) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 artifacts after retry, got %d", count)
	}
}
