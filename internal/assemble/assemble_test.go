package assemble

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/dgallion1/pagewash/internal/page"
)

func grayImage(w, h int) image.Image {
	return image.NewGray(image.Rect(0, 0, w, h))
}

func TestForOutput(t *testing.T) {
	if _, ok := ForOutput("out.pdf", "").(*PDF); !ok {
		t.Error("expected a PDF assembler for out.pdf")
	}
	if _, ok := ForOutput("OUT.PDF", "").(*PDF); !ok {
		t.Error("expected extension matching to be case insensitive")
	}
	if _, ok := ForOutput("pages", "").(*Dir); !ok {
		t.Error("expected a Dir assembler for a non-pdf path")
	}
}

func TestPDF_ImagesRoundTrip(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clean.pdf")
	asm := ForOutput(out, "")

	const pages = 3
	for i := 0; i < pages; i++ {
		if err := asm.Append(page.Artifact{Ordinal: i, Image: grayImage(40, 60)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := asm.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	n, err := api.PageCountFile(out)
	if err != nil {
		t.Fatalf("PageCountFile: %v", err)
	}
	if n != pages {
		t.Fatalf("output has %d pages, want %d", n, pages)
	}
}

func TestPDF_MixedArtifactsRejected(t *testing.T) {
	asm := &PDF{path: "clean.pdf"}
	if err := asm.Append(page.Artifact{Ordinal: 0, Image: grayImage(2, 2)}); err != nil {
		t.Fatalf("Append image: %v", err)
	}
	err := asm.Append(page.Artifact{Ordinal: 1, Fragment: []byte("%PDF-1.4")})
	if !errors.Is(err, ErrMixedArtifacts) {
		t.Fatalf("expected ErrMixedArtifacts, got %v", err)
	}
}

func TestPDF_EmptySaveFails(t *testing.T) {
	asm := &PDF{path: filepath.Join(t.TempDir(), "clean.pdf")}
	if err := asm.Save(); err == nil {
		t.Fatal("expected an error saving zero pages")
	}
}

func TestPDF_FailedSaveLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "clean.pdf")
	asm := &PDF{path: out}
	// A truncated fragment makes the merge fail.
	if err := asm.Append(page.Artifact{Ordinal: 0, Fragment: []byte("not a pdf")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := asm.Save(); err == nil {
		t.Fatal("expected the merge to fail")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("failed save left output behind: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed save left temp files behind: %v", entries)
	}
}

func TestPDF_TextSidecar(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "clean.pdf")
	txt := filepath.Join(dir, "clean.txt")
	asm := ForOutput(out, txt)

	for i, text := range []string{"first page", "second page"} {
		if err := asm.Append(page.Artifact{Ordinal: i, Image: grayImage(4, 4), Text: text}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := asm.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(txt)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "first page") || !strings.Contains(got, "second page") {
		t.Fatalf("sidecar missing page text: %q", got)
	}
	if !strings.Contains(got, "\f") {
		t.Fatalf("pages not separated by form feed: %q", got)
	}
}

func TestDir_WritesNumberedImages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages")
	asm := ForOutput(dir, "")

	const pages = 4
	for i := 0; i < pages; i++ {
		if err := asm.Append(page.Artifact{Ordinal: i, Image: grayImage(8, 8)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := asm.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	for i := 0; i < pages; i++ {
		name := filepath.Join(dir, fmt.Sprintf("%d.jpg", i))
		if _, err := os.Stat(name); err != nil {
			t.Errorf("missing page file %s: %v", name, err)
		}
	}
}

func TestDir_RejectsFragments(t *testing.T) {
	asm := &Dir{path: "pages"}
	if err := asm.Append(page.Artifact{Ordinal: 0, Fragment: []byte("%PDF-1.4")}); err == nil {
		t.Fatal("expected an error appending a fragment to a directory assembler")
	}
}
