package cleaner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/dgallion1/pagewash/internal/page"
)

// Selectors into the docleaner web app. The result image is rendered
// into the preview pane once the service finishes a page.
const (
	fileInputSelector   = `input[type="file"]`
	cleanButtonSelector = `.clean-operate .start-btn`
	resultImageSelector = `.result-preview img[src]`
)

// SessionConfig configures one browser-driven cleaning session.
type SessionConfig struct {
	// URL of the service's web UI.
	URL string

	// Browser is a binary name or path ("chromium", "chrome", "edge",
	// or an absolute path). Empty lets rod pick its managed browser.
	Browser string

	// ImageFormat is the intermediate format for submitted pages, "png"
	// or "jpg".
	ImageFormat string

	// ResultTimeout bounds each wait for a cleaned page. Expiry fails
	// the session.
	ResultTimeout time.Duration

	Headless bool
	Logger   *slog.Logger
}

func (c *SessionConfig) defaults() {
	if c.URL == "" {
		c.URL = "https://docleaner.cn/cleanOnline.html"
	}
	if c.ImageFormat == "" {
		c.ImageFormat = "png"
	}
	if c.ResultTimeout <= 0 {
		c.ResultTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// BrowserSession holds one open browser tab on the cleaning service and
// the identity of the page currently in flight. It implements Session.
type BrowserSession struct {
	cfg      SessionConfig
	lnch     *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	staged   string
	inFlight bool
	closed   bool
}

// OpenSession launches a browser, navigates to the cleaning service and
// waits for the UI to load. The caller owns the session and must Close
// it on every exit path.
func OpenSession(ctx context.Context, cfg SessionConfig) (*BrowserSession, error) {
	cfg.defaults()

	l := launcher.New().Headless(cfg.Headless)
	if cfg.Browser != "" {
		bin, err := resolveBrowser(cfg.Browser)
		if err != nil {
			return nil, err
		}
		l = l.Bin(bin)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch browser: %v", ErrSession, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("%w: connect browser: %v", ErrSession, err)
	}

	pg, err := stealth.Page(browser)
	if err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("%w: open tab: %v", ErrSession, err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := pg.Context(navCtx).Navigate(cfg.URL); err != nil {
		pg.Close()
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("%w: navigate %s: %v", ErrSession, cfg.URL, err)
	}
	if err := pg.Context(navCtx).WaitLoad(); err != nil {
		cfg.Logger.Warn("cleaner: wait load timeout", "url", cfg.URL, "error", err)
	}

	return &BrowserSession{cfg: cfg, lnch: l, browser: browser, page: pg}, nil
}

// Submit hands one page image to the remote session. The session's
// submission slot must be free.
func (s *BrowserSession) Submit(ctx context.Context, img page.RawImage) error {
	if s.closed {
		return fmt.Errorf("%w: submit on closed session", ErrSession)
	}
	if s.inFlight {
		return fmt.Errorf("%w: submit while a page is in flight", ErrSession)
	}

	// The file input only accepts paths, so stage the image on disk in
	// the configured intermediate format. The staged file must outlive
	// this call: SetFiles only records the path, and the page's upload
	// script reads the blob lazily, after the click handler has
	// returned. Removal happens once the result is retrieved.
	if err := s.stageImage(img); err != nil {
		return err
	}

	input, err := s.page.Context(ctx).Timeout(s.cfg.ResultTimeout).Element(fileInputSelector)
	if err != nil {
		s.removeStaged()
		return fmt.Errorf("%w: file input not found: %v", ErrSession, err)
	}
	if err := input.SetFiles([]string{s.staged}); err != nil {
		s.removeStaged()
		return fmt.Errorf("%w: set file: %v", ErrSession, err)
	}

	btn, err := s.page.Context(ctx).Timeout(s.cfg.ResultTimeout).Element(cleanButtonSelector)
	if err != nil {
		s.removeStaged()
		return fmt.Errorf("%w: clean button not found: %v", ErrSession, err)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		s.removeStaged()
		return fmt.Errorf("%w: start cleaning: %v", ErrSession, err)
	}

	s.inFlight = true
	return nil
}

// AwaitResult blocks until the in-flight page's cleaned image is
// available, bounded by the configured timeout, and frees the
// submission slot.
func (s *BrowserSession) AwaitResult(ctx context.Context) (page.RawImage, error) {
	if s.closed {
		return page.RawImage{}, fmt.Errorf("%w: await on closed session", ErrSession)
	}
	if !s.inFlight {
		return page.RawImage{}, fmt.Errorf("%w: no page in flight", ErrSession)
	}

	el, err := s.page.Context(ctx).Timeout(s.cfg.ResultTimeout).Element(resultImageSelector)
	if err != nil {
		return page.RawImage{}, fmt.Errorf("%w: timed out after %s waiting for cleaned page: %v", ErrSession, s.cfg.ResultTimeout, err)
	}
	src, err := el.Attribute("src")
	if err != nil || src == nil || *src == "" {
		return page.RawImage{}, fmt.Errorf("%w: result image has no source: %v", ErrSession, err)
	}
	data, err := s.page.Context(ctx).GetResource(*src)
	if err != nil {
		return page.RawImage{}, fmt.Errorf("%w: fetch cleaned page: %v", ErrSession, err)
	}

	// Clear the preview pane so the next retrieval cannot observe this
	// page's result.
	if _, err := s.page.Context(ctx).Eval(clearResultJS); err != nil {
		s.cfg.Logger.Warn("cleaner: clear result pane", "error", err)
	}

	// The upload finished; the staged submission file is no longer
	// needed.
	s.removeStaged()
	s.inFlight = false
	return page.RawImage{Data: data, Format: s.cfg.ImageFormat}, nil
}

const clearResultJS = `() => {
	for (const img of document.querySelectorAll('.result-preview img')) img.remove();
}`

// Close tears down the tab, the browser and its launcher. Safe to call
// more than once.
func (s *BrowserSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.inFlight = false
	s.removeStaged()

	var firstErr error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			firstErr = err
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
	if firstErr != nil {
		return fmt.Errorf("close session: %w", firstErr)
	}
	return nil
}

// stageImage writes one page image to a temp file and records its path
// on the session. The caller removes it with removeStaged once the
// remote upload is known to have read it.
func (s *BrowserSession) stageImage(img page.RawImage) error {
	tmp, err := os.CreateTemp("", "pagewash-submit-*."+s.cfg.ImageFormat)
	if err != nil {
		return fmt.Errorf("stage page image: %w", err)
	}
	if _, err := tmp.Write(img.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("stage page image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("stage page image: %w", err)
	}
	s.staged = tmp.Name()
	return nil
}

// removeStaged deletes the staged submission file, if any.
func (s *BrowserSession) removeStaged() {
	if s.staged == "" {
		return
	}
	os.Remove(s.staged)
	s.staged = ""
}

// resolveBrowser maps a browser choice to an executable path.
func resolveBrowser(name string) (string, error) {
	var candidates []string
	switch name {
	case "chromium":
		candidates = []string{"chromium", "chromium-browser"}
	case "chrome":
		candidates = []string{"google-chrome", "google-chrome-stable", "chrome"}
	case "edge":
		candidates = []string{"microsoft-edge", "msedge"}
	default:
		candidates = []string{name}
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("browser %q not found in PATH", name)
}
