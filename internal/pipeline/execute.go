package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/pagewash/internal/assemble"
	"github.com/dgallion1/pagewash/internal/cleaner"
	"github.com/dgallion1/pagewash/internal/config"
	"github.com/dgallion1/pagewash/internal/page"
	"github.com/dgallion1/pagewash/internal/recognize"
	"github.com/dgallion1/pagewash/internal/render"
	"github.com/dgallion1/pagewash/internal/source"
)

// ExpandRequests expands cfg's input and page range into ordered page
// requests. Callers that need the page count up front (the daemon's
// job progress) expand once and hand the result to ExecuteRequests.
func ExpandRequests(cfg config.Config) ([]page.Request, error) {
	return source.Expand(cfg.Input, source.Range{First: cfg.FirstPage, Last: cfg.LastPage}, source.Options{
		Density:   cfg.Density,
		Clean:     cfg.Clean,
		Recognize: cfg.Recognize,
	})
}

// Execute runs one full conversion: expand the page range, process
// every page under the configured strategy, and assemble the output.
// The output file only appears after every page artifact has arrived.
func Execute(ctx context.Context, cfg config.Config, log *slog.Logger, onProgress Progress) error {
	reqs, err := ExpandRequests(cfg)
	if err != nil {
		return err
	}
	return ExecuteRequests(ctx, cfg, log, reqs, onProgress)
}

// ExecuteRequests processes an already-expanded request list under the
// configured strategy and assembles the output.
func ExecuteRequests(ctx context.Context, cfg config.Config, log *slog.Logger, reqs []page.Request, onProgress Progress) error {
	log.Info("processing pages", "input", cfg.Input, "pages", len(reqs), "clean", cfg.Clean, "ocr", cfg.Recognize, "interactive", cfg.Interactive)

	renderer := &render.Poppler{}
	var rec recognize.Recognizer
	if cfg.Recognize {
		rec = &recognize.Tesseract{Languages: cfg.Languages}
	}
	var text recognize.TextEngine
	if cfg.TextSidecar != "" {
		text = &recognize.Gosseract{Languages: cfg.Languages}
	}

	asm := assemble.ForOutput(cfg.Output, cfg.TextSidecar)

	if cfg.Interactive {
		// The interactive cleaner holds exactly one in-flight page, so
		// the pipelined single-session driver is the only valid choice.
		sess, err := cleaner.OpenSession(ctx, cleaner.SessionConfig{
			URL:           cfg.SessionURL,
			Browser:       cfg.Browser,
			ImageFormat:   cfg.ImageFormat,
			ResultTimeout: cfg.ResultTimeout,
			Headless:      true,
			Logger:        log,
		})
		if err != nil {
			return err
		}
		d := &Pipelined{
			Renderer:   renderer,
			Session:    sess,
			Recognizer: rec,
			Text:       text,
			OnProgress: onProgress,
			Log:        log,
		}
		if err := d.Run(ctx, reqs, asm.Append); err != nil {
			return err
		}
	} else {
		d := &Parallel{
			Renderer:   renderer,
			Cleaner:    cleaner.NewClient(cfg.ServiceURL),
			Recognizer: rec,
			Text:       text,
			Workers:    cfg.Workers,
			Retry:      cfg.RetryService,
			OnProgress: onProgress,
			Log:        log,
		}
		if err := d.Run(ctx, reqs, asm.Append); err != nil {
			return err
		}
	}

	if err := asm.Save(); err != nil {
		return fmt.Errorf("save output: %w", err)
	}
	log.Info("output written", "output", cfg.Output, "pages", len(reqs))
	return nil
}
