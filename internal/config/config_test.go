package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Input:   "scan.pdf",
		Output:  "clean.pdf",
		Density: 300,
		Clean:   true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing input", mutate: func(c *Config) { c.Input = "" }, wantErr: "input"},
		{name: "missing output", mutate: func(c *Config) { c.Output = "" }, wantErr: "output"},
		{name: "zero density", mutate: func(c *Config) { c.Density = 0 }, wantErr: "density"},
		{name: "negative bound", mutate: func(c *Config) { c.FirstPage = -1 }, wantErr: "page bounds"},
		{
			name:    "inverted bounds",
			mutate:  func(c *Config) { c.FirstPage = 5; c.LastPage = 2 },
			wantErr: "after last page",
		},
		{
			name:   "directory output without ocr",
			mutate: func(c *Config) { c.Output = "pages/"; c.Recognize = false },
		},
		{
			name:    "ocr into directory",
			mutate:  func(c *Config) { c.Output = "pages/"; c.Recognize = true },
			wantErr: "directory",
		},
		{
			name:    "text sidecar into directory",
			mutate:  func(c *Config) { c.Output = "pages/"; c.TextSidecar = "out.txt" },
			wantErr: "sidecar",
		},
		{
			name:   "text sidecar with merged output",
			mutate: func(c *Config) { c.TextSidecar = "out.txt" },
		},
		{
			name:    "interactive without cleaning",
			mutate:  func(c *Config) { c.Interactive = true; c.Clean = false },
			wantErr: "interactive",
		},
		{name: "interactive with cleaning", mutate: func(c *Config) { c.Interactive = true }},
		{name: "jpg format", mutate: func(c *Config) { c.ImageFormat = "jpg" }},
		{
			name:    "unsupported format",
			mutate:  func(c *Config) { c.ImageFormat = "webp" },
			wantErr: "format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestOutputIsDir(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"clean.pdf", false},
		{"CLEAN.PDF", false},
		{"pages", true},
		{"pages/", true},
		{"clean.zip", true},
	}
	for _, tt := range tests {
		cfg := Config{Output: tt.output}
		if got := cfg.OutputIsDir(); got != tt.want {
			t.Errorf("OutputIsDir(%q) = %v, want %v", tt.output, got, tt.want)
		}
	}
}

func TestApplyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagewash.yaml")
	body := `
input: scan.pdf
output: clean.pdf
density: 150
first_page: 2
last_page: 9
recognize: true
languages: [eng, deu]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Config{Density: 300}
	if err := cfg.ApplyFile(path); err != nil {
		t.Fatalf("ApplyFile: %v", err)
	}
	if cfg.Input != "scan.pdf" || cfg.Output != "clean.pdf" {
		t.Fatalf("paths not applied: %+v", cfg)
	}
	if cfg.Density != 150 {
		t.Fatalf("density = %d, want 150", cfg.Density)
	}
	if cfg.FirstPage != 2 || cfg.LastPage != 9 {
		t.Fatalf("page bounds = %d..%d", cfg.FirstPage, cfg.LastPage)
	}
	if len(cfg.Languages) != 2 || cfg.Languages[0] != "eng" || cfg.Languages[1] != "deu" {
		t.Fatalf("languages = %v", cfg.Languages)
	}
}

func TestApplyFile_Missing(t *testing.T) {
	var cfg Config
	if err := cfg.ApplyFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestValidateServe(t *testing.T) {
	cfg := Config{}
	if err := cfg.ValidateServe(); err == nil {
		t.Fatal("expected an error without an API key")
	}
	cfg.APIKey = "secret"
	if err := cfg.ValidateServe(); err != nil {
		t.Fatalf("ValidateServe: %v", err)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"eng", []string{"eng"}},
		{"eng, deu ,fra", []string{"eng", "deu", "fra"}},
		{",,", []string{}},
	}
	for _, tt := range tests {
		got := splitList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}
