// Package ocr wraps ticket-image text extraction. The output is raw,
// possibly garbage text; callers decide what to make of it.
package ocr

import (
	"context"
	"fmt"
	"os/exec"
)

type Extractor interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// Tesseract shells out to the tesseract binary and reads the extracted
// text from stdout.
type Tesseract struct {
	bin string
}

func NewTesseract(bin string) *Tesseract {
	if bin == "" {
		bin = "tesseract"
	}
	return &Tesseract{bin: bin}
}

func (t *Tesseract) ExtractText(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.bin, imagePath, "stdout")

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ocr: %s: %w", t.bin, err)
	}

	return string(out), nil
}
