//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
	"snapsense-bot/internal/infrastructure/workspace"
)

// ObjectDetector детектор объектов YOLO. gocv.Net не потокобезопасен,
// поэтому прогоны сериализуются мьютексом.
type ObjectDetector struct {
	mu     sync.Mutex
	net    gocv.Net
	params yoloParams
}

// NewObjectDetector загружает модель один раз на старте
func NewObjectDetector(opts DetectorOptions) (*ObjectDetector, error) {
	labels, err := LoadLabels(opts.LabelsPath)
	if err != nil {
		return nil, err
	}
	net, err := loadNet(opts.ModelPath, opts.Device)
	if err != nil {
		return nil, err
	}
	return &ObjectDetector{
		net: net,
		params: yoloParams{
			labels:     labels,
			confidence: opts.Confidence,
			iou:        opts.IoU,
			inputSize:  opts.InputSize,
		},
	}, nil
}

// Process находит объекты, рисует рамки и сохраняет object_detection/<id>.jpg
func (d *ObjectDetector) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
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

	drawDetections(&img, dets)

	dir, err := workspace.TaskDir(req.WorkDir, string(entity.TaskObjectDetection))
	if err != nil {
		return nil, err
	}
	out := filepath.Join(dir, req.ImageID+".jpg")
	if err := writeImage(out, img); err != nil {
		return nil, fmt.Errorf("save detections: %w", err)
	}

	return &entity.Envelope{
		ImagePath: out,
		Objects:   entity.CountLabels(dets),
		Speed:     &speed,
	}, nil
}

func (d *ObjectDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

var _ port.Capability = (*ObjectDetector)(nil)
