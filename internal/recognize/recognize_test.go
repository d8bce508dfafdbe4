package recognize

import (
	"context"
	"errors"
	"image"
	"os/exec"
	"reflect"
	"testing"
)

func TestPdfArgs(t *testing.T) {
	tests := []struct {
		name  string
		langs []string
		want  []string
	}{
		{name: "default language", langs: nil, want: []string{"stdin", "stdout", "pdf"}},
		{name: "one language", langs: []string{"eng"}, want: []string{"stdin", "stdout", "-l", "eng", "pdf"}},
		{name: "joined languages", langs: []string{"eng", "deu"}, want: []string{"stdin", "stdout", "-l", "eng+deu", "pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pdfArgs(tt.langs); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("pdfArgs(%v) = %v, want %v", tt.langs, got, tt.want)
			}
		})
	}
}

func TestRecognize_BinaryFailure(t *testing.T) {
	r := &Tesseract{Binary: "false"}
	_, err := r.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	if !errors.Is(err, ErrRecognition) {
		t.Fatalf("expected ErrRecognition, got %v", err)
	}
}

func TestRecognize_EmptyOutput(t *testing.T) {
	// "true" exits zero but writes nothing to stdout.
	r := &Tesseract{Binary: "true"}
	_, err := r.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	if !errors.Is(err, ErrRecognition) {
		t.Fatalf("expected ErrRecognition, got %v", err)
	}
}

func TestRecognize_ProducesFragment(t *testing.T) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed")
	}
	r := &Tesseract{}
	frag, err := r.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 80, 40)))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(frag) < 4 || string(frag[:4]) != "%PDF" {
		t.Fatalf("output is not a PDF fragment: %q...", frag[:min(len(frag), 8)])
	}
}
