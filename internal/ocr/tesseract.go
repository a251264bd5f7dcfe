// Package ocr adapts the external tesseract binary as the pipeline's
// optical-character-recognition collaborator. Every validation or
// extraction failure degrades to empty text plus an error the caller may
// log; nothing here ever panics on a bad image.
package ocr

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strings"

	"github.com/samber/oops"
)

const (
	maxPixelWidth    = 4000
	maxPixelHeight   = 4000
	truncationMarker = "... [OCR TRUNCATED]"
)

// Extractor shells out to tesseract to pull text out of an image file.
type Extractor struct {
	languages  string
	maxBytes   int64
	maxTextLen int
	binary     string
}

// New creates an extractor. languages is tesseract's language spec, for
// example "eng+por".
func New(languages string, maxImageSizeMB, maxTextLen int) *Extractor {
	return &Extractor{
		languages:  languages,
		maxBytes:   int64(maxImageSizeMB) * 1024 * 1024,
		maxTextLen: maxTextLen,
		binary:     "tesseract",
	}
}

// ExtractText validates imagePath and runs OCR on it under the caller's
// context. The result is trimmed and truncated to the configured bound.
func (e *Extractor) ExtractText(ctx context.Context, imagePath string) (string, error) {
	if err := e.validate(imagePath); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, e.binary, imagePath, "stdout", "-l", e.languages, "--oem", "3", "--psm", "6")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", oops.With("image_path", imagePath, "stderr", strings.TrimSpace(stderr.String()), "context", "tesseract failed").Wrap(err)
	}

	text := strings.TrimSpace(stdout.String())
	if runes := []rune(text); len(runes) > e.maxTextLen {
		text = string(runes[:e.maxTextLen]) + truncationMarker
	}
	return text, nil
}

func (e *Extractor) validate(imagePath string) error {
	info, err := os.Stat(imagePath)
	if err != nil {
		return oops.With("image_path", imagePath, "context", "image file not found").Wrap(err)
	}
	if info.Size() > e.maxBytes {
		return oops.With("image_path", imagePath, "size_bytes", info.Size()).Errorf("image exceeds %d bytes", e.maxBytes)
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return oops.With("image_path", imagePath, "context", "failed to open image").Wrap(err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return oops.With("image_path", imagePath, "context", "unsupported image format").Wrap(err)
	}
	if cfg.Width > maxPixelWidth || cfg.Height > maxPixelHeight {
		return oops.With("image_path", imagePath, "format", format, "width", cfg.Width, "height", cfg.Height).
			Errorf("image dimensions exceed %dx%d", maxPixelWidth, maxPixelHeight)
	}
	return nil
}
