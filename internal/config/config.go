package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every knob of the CLI and the daemon. Values come from
// environment defaults, then an optional YAML file, then flags.
type Config struct {
	// Input is a PDF path or a glob over standalone page images.
	Input string `yaml:"input"`

	// Output is a merged ".pdf" path or a directory for page images.
	Output string `yaml:"output"`

	Density   int  `yaml:"density"`
	FirstPage int  `yaml:"first_page"` // 1-based inclusive, 0 = first
	LastPage  int  `yaml:"last_page"`  // 1-based inclusive, 0 = last
	Clean     bool `yaml:"clean"`
	Recognize bool `yaml:"recognize"`

	// Languages are the OCR language hints.
	Languages []string `yaml:"languages"`

	// TextSidecar, when set, writes the concatenated plain-text layer
	// to this path (merged-PDF output only).
	TextSidecar string `yaml:"text_sidecar"`

	// Workers is the parallel strategy's pool size. 0 = GOMAXPROCS.
	Workers int `yaml:"workers"`

	// ServiceURL is the HTTP cleaning endpoint.
	ServiceURL string `yaml:"service_url"`

	// RetryService enables bounded retry of failed HTTP cleaning calls.
	RetryService bool `yaml:"retry_service"`

	// Interactive switches to the browser-driven cleaner session.
	Interactive   bool          `yaml:"interactive"`
	SessionURL    string        `yaml:"session_url"`
	Browser       string        `yaml:"browser"`
	ImageFormat   string        `yaml:"image_format"`
	ResultTimeout time.Duration `yaml:"result_timeout"`

	// Daemon settings.
	Port           string        `yaml:"port"`
	APIKey         string        `yaml:"-"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	WorkerCount    int           `yaml:"worker_count"`
	MaxQueueSize   int           `yaml:"max_queue_size"`
	JobTTL         time.Duration `yaml:"job_ttl"`
}

// Load builds a Config from environment variables with defaults.
func Load() Config {
	cfg := Config{
		Density:   envInt("PAGEWASH_DENSITY", 300),
		Clean:     envBool("PAGEWASH_CLEAN", true),
		Recognize: envBool("PAGEWASH_OCR", true),

		Languages: splitList(os.Getenv("PAGEWASH_LANGS")),

		Workers:      envInt("PAGEWASH_WORKERS", 0),
		ServiceURL:   envOr("PAGEWASH_SERVICE_URL", "http://service.docleaner.cn"),
		RetryService: envBool("PAGEWASH_RETRY_SERVICE", false),

		SessionURL:    os.Getenv("PAGEWASH_SESSION_URL"),
		Browser:       os.Getenv("PAGEWASH_BROWSER"),
		ImageFormat:   envOr("PAGEWASH_IMAGE_FORMAT", "png"),
		ResultTimeout: envDuration("PAGEWASH_RESULT_TIMEOUT", 10*time.Second),

		Port:           envOr("PORT", "8091"),
		APIKey:         os.Getenv("PAGEWASH_API_KEY"),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB
		WorkerCount:    envInt("WORKER_COUNT", 2),
		MaxQueueSize:   envInt("MAX_QUEUE_SIZE", 50),
		JobTTL:         envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.Density <= 0 {
		cfg.Density = 300
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = 10 * time.Second
	}

	return cfg
}

// ApplyFile overlays values from a YAML config file.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// OutputIsDir reports whether Output names a directory of page images
// rather than a merged document. Inferred from the extension.
func (c Config) OutputIsDir() bool {
	return !strings.EqualFold(filepath.Ext(c.Output), ".pdf")
}

// Validate rejects invalid combinations before any I/O starts.
func (c Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input is required")
	}
	if c.Output == "" {
		return fmt.Errorf("output is required")
	}
	if c.Density <= 0 {
		return fmt.Errorf("density must be positive, got %d", c.Density)
	}
	if c.FirstPage < 0 || c.LastPage < 0 {
		return fmt.Errorf("page bounds must be positive")
	}
	if c.FirstPage != 0 && c.LastPage != 0 && c.FirstPage > c.LastPage {
		return fmt.Errorf("first page %d is after last page %d", c.FirstPage, c.LastPage)
	}
	if c.OutputIsDir() {
		if c.Recognize {
			return fmt.Errorf("OCR output cannot be written to a directory of images")
		}
		if c.TextSidecar != "" {
			return fmt.Errorf("text sidecar requires a merged document output")
		}
	}
	if c.Interactive && !c.Clean {
		return fmt.Errorf("interactive mode requires cleaning to be enabled")
	}
	switch c.ImageFormat {
	case "", "png", "jpg":
	default:
		return fmt.Errorf("unsupported intermediate image format %q", c.ImageFormat)
	}
	return nil
}

// ValidateServe checks the daemon-only requirements.
func (c Config) ValidateServe() error {
	if c.APIKey == "" {
		return fmt.Errorf("PAGEWASH_API_KEY is required")
	}
	return nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
