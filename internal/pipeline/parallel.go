package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/dgallion1/pagewash/internal/cleaner"
	"github.com/dgallion1/pagewash/internal/page"
	"github.com/dgallion1/pagewash/internal/recognize"
	"github.com/dgallion1/pagewash/internal/render"
)

// Parallel processes independent page requests with a fixed worker
// pool. Workers complete in arbitrary order; artifacts are delivered to
// the sink in request order through an index-keyed reorder buffer. The
// first failure cancels the whole run.
//
// The cleaner must be stateless per call (the HTTP variant). The
// interactive session cleaner allows only one in-flight page and must
// be driven by Pipelined instead.
type Parallel struct {
	Renderer   render.Renderer
	Cleaner    cleaner.Cleaner
	Recognizer recognize.Recognizer
	Text       recognize.TextEngine

	// Workers is the pool size. Non-positive means GOMAXPROCS.
	Workers int

	// Retry enables bounded retry of failed HTTP cleaning calls. Off by
	// default: the remote dependency is treated as fail-fast.
	Retry bool

	// OnProgress, when set, is invoked once per completed page in
	// completion order.
	OnProgress Progress

	Log *slog.Logger
}

func (d *Parallel) workers() int {
	if d.Workers > 0 {
		return d.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (d *Parallel) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// Run processes reqs and hands artifacts to sink in request order.
func (d *Parallel) Run(ctx context.Context, reqs []page.Request, sink Sink) error {
	if len(reqs) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	jobs := make(chan int)
	results := make(chan page.Artifact)

	var wg sync.WaitGroup
	for range d.workers() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				a, err := d.processOne(runCtx, idx, reqs[idx])
				if err != nil {
					fail(err)
					return
				}
				select {
				case results <- a:
				case <-runCtx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range reqs {
			select {
			case jobs <- i:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Reorder buffer: workers finish in arbitrary order, the sink sees
	// strict request order.
	pending := make(map[int]page.Artifact, d.workers())
	next := 0
	done := 0
	for a := range results {
		done++
		if d.OnProgress != nil {
			d.OnProgress(done, len(reqs))
		}
		pending[a.Ordinal] = a
		for {
			buffered, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := sink(buffered); err != nil {
				fail(fmt.Errorf("deliver page %d: %w", next+1, err))
				break
			}
			next++
		}
	}

	if firstErr != nil {
		return firstErr
	}
	if next != len(reqs) {
		return fmt.Errorf("pipeline: delivered %d of %d pages", next, len(reqs))
	}
	return nil
}

// clean submits one page to the stateless cleaner, optionally retrying
// service errors with backoff.
func (d *Parallel) clean(ctx context.Context, idx int, raw page.RawImage) (page.RawImage, error) {
	var cleaned page.RawImage
	var lastErr error
	for attempt := range MaxRetries {
		cleaned, lastErr = d.Cleaner.Clean(ctx, raw)
		if lastErr == nil || !d.Retry || !IsRetryable(lastErr) {
			break
		}
		d.logger().Warn("retryable cleaning error", "page", idx+1, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return page.RawImage{}, ctx.Err()
		}
	}
	if lastErr != nil {
		return page.RawImage{}, lastErr
	}
	return cleaned, nil
}

// processOne runs the full render → clean → recognize chain for a
// single page. No cross-page state.
func (d *Parallel) processOne(ctx context.Context, idx int, req page.Request) (page.Artifact, error) {
	raw, err := d.Renderer.Render(ctx, req)
	if err != nil {
		return page.Artifact{}, fmt.Errorf("render page %d: %w", idx+1, err)
	}

	if req.Clean {
		raw, err = d.clean(ctx, idx, raw)
		if err != nil {
			return page.Artifact{}, fmt.Errorf("clean page %d: %w", idx+1, err)
		}
	}

	img, err := page.Decode(raw)
	if err != nil {
		return page.Artifact{}, fmt.Errorf("page %d: %w", idx+1, err)
	}

	a := page.Artifact{Ordinal: idx}
	if req.Recognize {
		frag, err := d.Recognizer.Recognize(ctx, img)
		if err != nil {
			return page.Artifact{}, fmt.Errorf("recognize page %d: %w", idx+1, err)
		}
		a.Fragment = frag
	} else {
		a.Image = img
	}

	if d.Text != nil {
		text, err := d.Text.Text(ctx, img)
		if err != nil {
			return page.Artifact{}, fmt.Errorf("extract text of page %d: %w", idx+1, err)
		}
		a.Text = text
	}

	d.logger().Debug("page processed", "page", idx+1, "cleaned", req.Clean, "recognized", req.Recognize)
	return a, nil
}
