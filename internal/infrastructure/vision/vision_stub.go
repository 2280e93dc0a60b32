//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"snapsense-bot/internal/domain/entity"
)

// errNoGoCV возвращают конструкторы, если сборка без тега gocv
var errNoGoCV = errors.New("gocv build tag is not enabled")

type ObjectDetector struct{}

// NewObjectDetector заглушка без OpenCV
func NewObjectDetector(opts DetectorOptions) (*ObjectDetector, error) {
	return nil, errNoGoCV
}

func (d *ObjectDetector) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
	return nil, errNoGoCV
}

func (d *ObjectDetector) Close() error { return nil }

type NudityDetector struct{}

func NewNudityDetector(opts NudityOptions) (*NudityDetector, error) {
	return nil, errNoGoCV
}

func (d *NudityDetector) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
	return nil, errNoGoCV
}

func (d *NudityDetector) Close() error { return nil }

type EmotionRecognizer struct{}

func NewEmotionRecognizer(opts EmotionOptions) (*EmotionRecognizer, error) {
	return nil, errNoGoCV
}

func (r *EmotionRecognizer) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
	return nil, errNoGoCV
}

func (r *EmotionRecognizer) Close() error { return nil }

type BackgroundRemover struct{}

func NewBackgroundRemover(opts BackgroundOptions) (*BackgroundRemover, error) {
	return nil, errNoGoCV
}

func (b *BackgroundRemover) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
	return nil, errNoGoCV
}

func (b *BackgroundRemover) Close() error { return nil }

type Segmenter struct{}

func NewSegmenter(opts SegmentationOptions) (*Segmenter, error) {
	return nil, errNoGoCV
}

func (s *Segmenter) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
	return nil, errNoGoCV
}

func (s *Segmenter) Close() error { return nil }
