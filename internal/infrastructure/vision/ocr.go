package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
	"snapsense-bot/internal/infrastructure/workspace"
)

// TextExtractor распознаёт текст бинарником tesseract
type TextExtractor struct {
	binary    string
	languages string
}

// NewTextExtractor создаёт OCR. Наличие бинарника проверяется при каждом вызове:
// его могут доустановить без рестарта бота.
func NewTextExtractor(opts OCROptions) *TextExtractor {
	if opts.Binary == "" {
		opts.Binary = "tesseract"
	}
	if opts.Languages == "" {
		opts.Languages = "eng"
	}
	return &TextExtractor{binary: opts.Binary, languages: opts.Languages}
}

// Process распознаёт текст и сохраняет его в text_extraction/extracted_<id>.txt
func (e *TextExtractor) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
	if err := CheckImage(req.ImagePath); err != nil {
		return nil, err
	}

	bin, err := exec.LookPath(e.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: Tesseract OCR (%s)", entity.ErrMissingDependency, e.binary)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, req.ImagePath, "stdout", "-l", e.languages)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("tesseract exited with %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("run tesseract: %w", err)
	}
	text := strings.TrimSpace(stdout.String())

	dir, err := workspace.TaskDir(req.WorkDir, string(entity.TaskTextExtraction))
	if err != nil {
		return nil, err
	}
	txtPath := filepath.Join(dir, "extracted_"+req.ImageID+".txt")
	content := text
	if content == "" {
		content = "No text could be extracted."
	}
	if err := os.WriteFile(txtPath, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write extracted text: %w", err)
	}

	return &entity.Envelope{
		Text:     text,
		TextPath: txtPath,
	}, nil
}

var _ port.Capability = (*TextExtractor)(nil)
