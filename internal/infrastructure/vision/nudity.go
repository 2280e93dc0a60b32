//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
	"snapsense-bot/internal/infrastructure/workspace"
)

// NudityDetector детектор NudeNet. В ответе перечисляются все найденные классы,
// размываются только области из censor.
type NudityDetector struct {
	mu     sync.Mutex
	net    gocv.Net
	params yoloParams
	censor map[string]struct{}
}

func NewNudityDetector(opts NudityOptions) (*NudityDetector, error) {
	net, err := loadNet(opts.ModelPath, opts.Device)
	if err != nil {
		return nil, err
	}
	classes := opts.CensorClasses
	if len(classes) == 0 {
		classes = DefaultCensorClasses
	}
	censor := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		censor[c] = struct{}{}
	}
	return &NudityDetector{
		net: net,
		params: yoloParams{
			labels:     NudeNetLabels,
			confidence: opts.Confidence,
			iou:        opts.IoU,
			inputSize:  opts.InputSize,
		},
		censor: censor,
	}, nil
}

// Process сохраняет nudity_detection/censored_<id>.jpg
func (d *NudityDetector) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
	img, err := readImage(req.ImagePath)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	dets, speed, err := yoloDetect(&d.net, img, d.params)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	for _, det := range dets {
		if _, ok := d.censor[det.Label]; !ok {
			continue
		}
		blurRegion(&img, toRect(det.Box))
	}

	dir, err := workspace.TaskDir(req.WorkDir, string(entity.TaskNudityDetection))
	if err != nil {
		return nil, err
	}
	out := filepath.Join(dir, "censored_"+req.ImageID+".jpg")
	if err := writeImage(out, img); err != nil {
		return nil, fmt.Errorf("save censored image: %w", err)
	}

	return &entity.Envelope{
		ImagePath: out,
		Classes:   UniqueLabels(dets),
		Speed:     &speed,
	}, nil
}

// blurRegion сильно размывает прямоугольник на месте
func blurRegion(img *gocv.Mat, rect image.Rectangle) {
	rect = rect.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if rect.Empty() {
		return
	}
	roi := img.Region(rect)
	defer roi.Close()

	k := maxInt(rect.Dx(), rect.Dy())/3 | 1
	gocv.GaussianBlur(roi, &roi, image.Pt(k, k), 0, 0, gocv.BorderDefault)
}

func (d *NudityDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

var _ port.Capability = (*NudityDetector)(nil)
