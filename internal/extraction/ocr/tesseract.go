package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/metrics"
)

// TesseractEngine rasterizes the page with pdftoppm at the requested DPI and runs the
// tesseract CLI over the image.
type TesseractEngine struct {
	pdftoppm  string
	tesseract string
	run       func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewTesseractEngine(pdftoppmBin string, tesseractBin string) *TesseractEngine {
	return &TesseractEngine{pdftoppm: pdftoppmBin, tesseract: tesseractBin, run: runCommand}
}

func (e *TesseractEngine) Name() string { return config.OCREngineTesseract }

func (e *TesseractEngine) Recognize(ctx context.Context, pagePDF []byte, opts Options) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("ocr_tesseract", time.Since(start)) }()

	workDir, err := os.MkdirTemp("", "findoc-ocr-*")
	if err != nil {
		return "", fmt.Errorf("ocr temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	pagePath := filepath.Join(workDir, "page.pdf")
	if err := os.WriteFile(pagePath, pagePDF, 0o600); err != nil {
		return "", fmt.Errorf("ocr write page: %w", err)
	}

	dpi := opts.DPI
	if dpi <= 0 {
		dpi = config.DefaultDPI
	}
	imageBase := filepath.Join(workDir, "page")
	if _, err := e.run(ctx, e.pdftoppm, "-r", strconv.Itoa(dpi), "-png", "-singlefile", pagePath, imageBase); err != nil {
		return "", fmt.Errorf("rasterize page: %w", err)
	}

	args := []string{imageBase + ".png", "stdout"}
	if opts.Language != "" {
		args = append(args, "-l", opts.Language)
	}
	out, err := e.run(ctx, e.tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
