//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
)

const ferInputSide = 64

// EmotionRecognizer находит лица каскадом Хаара и классифицирует эмоции FER+
type EmotionRecognizer struct {
	mu      sync.Mutex
	cascade gocv.CascadeClassifier
	net     gocv.Net
}

func NewEmotionRecognizer(opts EmotionOptions) (*EmotionRecognizer, error) {
	if _, err := os.Stat(opts.CascadePath); err != nil {
		return nil, fmt.Errorf("cascade file: %w", err)
	}
	net, err := loadNet(opts.ModelPath, opts.Device)
	if err != nil {
		return nil, err
	}
	cascade := gocv.NewCascadeClassifier()
	if !cascade.Load(opts.CascadePath) {
		cascade.Close()
		net.Close()
		return nil, errors.New("failed to load face cascade")
	}
	return &EmotionRecognizer{cascade: cascade, net: net}, nil
}

// Process возвращает эмоции по каждому лицу; без лиц: пустой список
func (r *EmotionRecognizer) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
	img, err := readImage(req.ImagePath)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	r.mu.Lock()
	defer r.mu.Unlock()

	rects := r.cascade.DetectMultiScale(gray)
	faces := make([]entity.FaceEmotion, 0, len(rects))
	for _, rect := range rects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores, err := r.classify(gray, rect)
		if err != nil {
			return nil, err
		}
		faces = append(faces, entity.FaceEmotion{
			Dominant: scores[0].Emotion,
			Scores:   scores,
			Region:   entity.Box{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()},
		})
	}

	return &entity.Envelope{Faces: faces}, nil
}

func (r *EmotionRecognizer) classify(gray gocv.Mat, rect image.Rectangle) ([]entity.EmotionScore, error) {
	face := gray.Region(rect)
	defer face.Close()

	blob := gocv.BlobFromImage(face, 1.0, image.Pt(ferInputSide, ferInputSide), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	r.net.SetInput(blob, "")
	out := r.net.Forward("")
	defer out.Close()

	logits, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read emotion output: %w", err)
	}
	if len(logits) < len(FERPlusLabels) {
		return nil, fmt.Errorf("unexpected emotion output size %d", len(logits))
	}
	return Softmax(FERPlusLabels, logits[:len(FERPlusLabels)]), nil
}

func (r *EmotionRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.cascade.Close(); err != nil {
		return err
	}
	return r.net.Close()
}

var _ port.Capability = (*EmotionRecognizer)(nil)
