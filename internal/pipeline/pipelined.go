package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/pagewash/internal/cleaner"
	"github.com/dgallion1/pagewash/internal/page"
	"github.com/dgallion1/pagewash/internal/recognize"
	"github.com/dgallion1/pagewash/internal/render"
)

// sessionState tracks the interactive session through a run.
type sessionState int

const (
	// stateIdle: no page submitted yet.
	stateIdle sessionState = iota
	// stateSubmitted: exactly one page in flight.
	stateSubmitted
	// stateDraining: all pages submitted, last result not yet retrieved.
	stateDraining
	// stateClosed: session released.
	stateClosed
)

// Pipelined processes pages in strict order through one persistent
// interactive session, overlapping the rendering of page k+1 with the
// remote service's work on page k. Single logical thread of control: at
// no point are two unretrieved submissions outstanding, so submission
// order, retrieval order and output order all coincide.
type Pipelined struct {
	Renderer   render.Renderer
	Session    cleaner.Session
	Recognizer recognize.Recognizer
	Text       recognize.TextEngine

	OnProgress Progress
	Log        *slog.Logger
}

func (d *Pipelined) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// Run drives the session state machine over reqs. The session is closed
// on every exit path; an already-submitted page's result is always
// retrieved before the run ends, even when preparing the next page
// fails.
func (d *Pipelined) Run(ctx context.Context, reqs []page.Request, sink Sink) (err error) {
	if len(reqs) == 0 {
		return nil
	}

	state := stateIdle
	defer func() {
		if state == stateClosed {
			return
		}
		state = stateClosed
		if cerr := d.Session.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	raw, err := d.Renderer.Render(ctx, reqs[0])
	if err != nil {
		return fmt.Errorf("render page 1: %w", err)
	}
	if err := d.Session.Submit(ctx, raw); err != nil {
		return fmt.Errorf("submit page 1: %w", err)
	}
	state = stateSubmitted

	for k := range reqs {
		// Render the next page now: the remote side is still working on
		// page k, so the two latencies overlap. The result below is
		// retrieved before any render failure is acted on, so a
		// submitted page is never left stranded.
		var next page.RawImage
		var nextErr error
		if k+1 < len(reqs) {
			next, nextErr = d.Renderer.Render(ctx, reqs[k+1])
		}

		cleaned, err := d.Session.AwaitResult(ctx)
		if err != nil {
			return fmt.Errorf("page %d: %w", k+1, err)
		}

		if k+1 < len(reqs) {
			if nextErr != nil {
				return fmt.Errorf("render page %d: %w", k+2, nextErr)
			}
			if err := d.Session.Submit(ctx, next); err != nil {
				return fmt.Errorf("submit page %d: %w", k+2, err)
			}
		} else {
			state = stateDraining
		}

		a, err := d.finish(ctx, k, reqs[k], cleaned)
		if err != nil {
			return err
		}
		if err := sink(a); err != nil {
			return fmt.Errorf("deliver page %d: %w", k+1, err)
		}
		if d.OnProgress != nil {
			d.OnProgress(k+1, len(reqs))
		}
	}

	state = stateClosed
	if err := d.Session.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// finish decodes the cleaned page and applies the optional recognition
// steps.
func (d *Pipelined) finish(ctx context.Context, k int, req page.Request, cleaned page.RawImage) (page.Artifact, error) {
	img, err := page.Decode(cleaned)
	if err != nil {
		return page.Artifact{}, fmt.Errorf("page %d: %w", k+1, err)
	}

	a := page.Artifact{Ordinal: k}
	if req.Recognize {
		frag, err := d.Recognizer.Recognize(ctx, img)
		if err != nil {
			return page.Artifact{}, fmt.Errorf("recognize page %d: %w", k+1, err)
		}
		a.Fragment = frag
	} else {
		a.Image = img
	}

	if d.Text != nil {
		text, err := d.Text.Text(ctx, img)
		if err != nil {
			return page.Artifact{}, fmt.Errorf("extract text of page %d: %w", k+1, err)
		}
		a.Text = text
	}

	d.logger().Debug("page cleaned", "page", k+1, "recognized", req.Recognize)
	return a, nil
}
