//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"gocv.io/x/gocv"

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
	"snapsense-bot/internal/infrastructure/workspace"
)

// BackgroundRemover вырезает передний план GrabCut-ом и сохраняет PNG с альфа-каналом
type BackgroundRemover struct {
	iterations int
	margin     float64
}

func NewBackgroundRemover(opts BackgroundOptions) (*BackgroundRemover, error) {
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("grabcut iterations must be positive, got %d", opts.Iterations)
	}
	if opts.Margin < 0 || opts.Margin >= 0.5 {
		return nil, fmt.Errorf("grabcut margin must be in [0, 0.5), got %.2f", opts.Margin)
	}
	return &BackgroundRemover{iterations: opts.Iterations, margin: opts.Margin}, nil
}

// Process сохраняет background_removal/nobg_<id>.png
func (b *BackgroundRemover) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
	img, err := readImage(req.ImagePath)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	mx := int(float64(img.Cols()) * b.margin)
	my := int(float64(img.Rows()) * b.margin)
	rect := image.Rect(mx, my, img.Cols()-mx, img.Rows()-my)

	mask := gocv.NewMat()
	defer mask.Close()
	bgd := gocv.NewMat()
	defer bgd.Close()
	fgd := gocv.NewMat()
	defer fgd.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gocv.GrabCut(img, &mask, rect, &bgd, &fgd, b.iterations, gocv.GCInitWithRect)

	bgr := img.ToBytes()
	labels := mask.ToBytes()
	if len(labels)*3 != len(bgr) {
		return nil, fmt.Errorf("grabcut mask size mismatch: %d vs %d", len(labels), len(bgr)/3)
	}

	// 1: передний план, 3: вероятный передний план
	bgra := make([]byte, len(labels)*4)
	for i, l := range labels {
		copy(bgra[i*4:i*4+3], bgr[i*3:i*3+3])
		if l == 1 || l == 3 {
			bgra[i*4+3] = 255
		}
	}
	cutout, err := gocv.NewMatFromBytes(img.Rows(), img.Cols(), gocv.MatTypeCV8UC4, bgra)
	if err != nil {
		return nil, fmt.Errorf("build cutout: %w", err)
	}
	defer cutout.Close()

	dir, err := workspace.TaskDir(req.WorkDir, string(entity.TaskBackgroundRemoval))
	if err != nil {
		return nil, err
	}
	out := filepath.Join(dir, "nobg_"+req.ImageID+".png")
	if err := writeImage(out, cutout); err != nil {
		return nil, fmt.Errorf("save cutout: %w", err)
	}

	return &entity.Envelope{ImagePath: out}, nil
}

func (b *BackgroundRemover) Close() error { return nil }

var _ port.Capability = (*BackgroundRemover)(nil)
