// Command pagewash converts a scanned document (PDF or a glob of page
// images) into a cleaned, optionally text-searchable PDF, or a
// directory of cleaned page images.
//
// Usage:
//
//	pagewash [flags] <input> <output>
//
// Input is a PDF path or a glob pattern over standalone page images.
// Output is a ".pdf" path for a merged document, anything else is
// treated as a directory of page images.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgallion1/pagewash/internal/config"
	"github.com/dgallion1/pagewash/internal/pipeline"
)

func main() {
	cfg := config.Load()

	configFile := flag.String("config", "", "optional YAML config file")
	density := flag.Int("dpi", cfg.Density, "rasterization density for PDF input")
	firstPage := flag.Int("first-page", 0, "first page to process (1-based)")
	lastPage := flag.Int("last-page", 0, "last page to process (1-based, inclusive)")
	ocr := flag.Bool("ocr", cfg.Recognize, "run OCR and embed a searchable text layer")
	clean := flag.Bool("clean", cfg.Clean, "clean pages through the remote service")
	retry := flag.Bool("retry", cfg.RetryService, "retry failed HTTP cleaning calls")
	interactive := flag.Bool("interactive", false, "drive the service's web UI through a browser session")
	browser := flag.String("browser", cfg.Browser, "browser for interactive mode: chromium, chrome, edge, or a path")
	format := flag.String("format", cfg.ImageFormat, "intermediate image format for interactive mode: png or jpg")
	workers := flag.Int("workers", cfg.Workers, "worker count for the parallel strategy (0 = all CPUs)")
	service := flag.String("service", cfg.ServiceURL, "HTTP cleaning service URL")
	sessionURL := flag.String("session-url", cfg.SessionURL, "web UI URL for interactive mode")
	timeout := flag.Duration("timeout", cfg.ResultTimeout, "bound on each wait for a cleaned page")
	langs := flag.String("lang", strings.Join(cfg.Languages, ","), "OCR languages, comma separated")
	textOut := flag.String("txt", cfg.TextSidecar, "also write the plain-text layer to this file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *configFile != "" {
		if err := cfg.ApplyFile(*configFile); err != nil {
			log.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
	}

	cfg.Density = *density
	cfg.FirstPage = *firstPage
	cfg.LastPage = *lastPage
	cfg.Recognize = *ocr
	cfg.Clean = *clean
	cfg.RetryService = *retry
	cfg.Interactive = *interactive
	cfg.Browser = *browser
	cfg.ImageFormat = *format
	cfg.Workers = *workers
	cfg.ServiceURL = *service
	cfg.SessionURL = *sessionURL
	cfg.ResultTimeout = *timeout
	cfg.TextSidecar = *textOut
	if *langs != "" {
		cfg.Languages = strings.Split(*langs, ",")
	}

	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <input> <output>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	cfg.Input = flag.Arg(0)
	cfg.Output = flag.Arg(1)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	err := pipeline.Execute(ctx, cfg, log, func(done, total int) {
		fmt.Fprintf(os.Stderr, "\rpage %d/%d", done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr)
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
	log.Info("done", "output", cfg.Output, "elapsed", time.Since(start).Round(time.Millisecond))
}
