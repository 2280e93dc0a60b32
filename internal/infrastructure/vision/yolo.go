//go:build gocv
// +build gocv

package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"snapsense-bot/internal/domain/entity"
)

// loadNet читает ONNX-модель и выбирает бэкенд по device
func loadNet(path, device string) (gocv.Net, error) {
	if path == "" {
		return gocv.Net{}, errors.New("model path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		return gocv.Net{}, fmt.Errorf("model file: %w", err)
	}
	net := gocv.ReadNet(path, "")
	if net.Empty() {
		return gocv.Net{}, fmt.Errorf("failed to read net from %s", path)
	}
	if strings.EqualFold(device, "cuda") {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}
	return net, nil
}

// readImage открывает изображение с диска в BGR
func readImage(path string) (gocv.Mat, error) {
	if err := CheckImage(path); err != nil {
		return gocv.Mat{}, err
	}
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("%w: failed to decode %s", entity.ErrInvalidImage, path)
	}
	return mat, nil
}

type yoloParams struct {
	labels     []string
	confidence float32
	iou        float32
	inputSize  int
}

// yoloDetect прогоняет изображение через YOLOv8/11 и декодирует выход [1, 4+classes, anchors]
func yoloDetect(net *gocv.Net, img gocv.Mat, p yoloParams) ([]entity.Detection, entity.SpeedStats, error) {
	var speed entity.SpeedStats

	start := time.Now()
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(p.inputSize, p.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	speed.Preprocess = time.Since(start)

	start = time.Now()
	net.SetInput(blob, "")
	out := net.Forward("")
	defer out.Close()
	speed.Inference = time.Since(start)

	start = time.Now()
	dims := out.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, speed, fmt.Errorf("unexpected yolo output shape %v", dims)
	}
	channels, anchors := dims[1], dims[2]
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, speed, fmt.Errorf("read yolo output: %w", err)
	}

	sx := float32(img.Cols()) / float32(p.inputSize)
	sy := float32(img.Rows()) / float32(p.inputSize)

	var (
		boxes  []image.Rectangle
		scores []float32
		ids    []int
	)
	for a := 0; a < anchors; a++ {
		bestID, best := -1, float32(0)
		for c := 4; c < channels; c++ {
			if v := data[c*anchors+a]; v > best {
				bestID, best = c-4, v
			}
		}
		if best < p.confidence {
			continue
		}
		cx, cy := data[a], data[anchors+a]
		w, h := data[2*anchors+a], data[3*anchors+a]
		x0 := int((cx - w/2) * sx)
		y0 := int((cy - h/2) * sy)
		x1 := int((cx + w/2) * sx)
		y1 := int((cy + h/2) * sy)
		boxes = append(boxes, image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, img.Cols(), img.Rows())))
		scores = append(scores, best)
		ids = append(ids, bestID)
	}

	var dets []entity.Detection
	if len(boxes) > 0 {
		for _, i := range gocv.NMSBoxes(boxes, scores, p.confidence, p.iou) {
			r := boxes[i]
			box := entity.Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
			// рамка целиком за краем кадра после обрезки
			if box.Area() == 0 {
				continue
			}
			dets = append(dets, entity.Detection{
				Label:      labelFor(p.labels, ids[i]),
				Confidence: scores[i],
				Box:        box,
			})
		}
	}
	speed.Postprocess = time.Since(start)
	return dets, speed, nil
}

func toRect(b entity.Box) image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// drawDetections рисует рамки с подписями классов
func drawDetections(img *gocv.Mat, dets []entity.Detection) {
	green := color.RGBA{G: 255, A: 255}
	for _, d := range dets {
		rect := toRect(d.Box)
		gocv.Rectangle(img, rect, green, 2)
		label := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
		org := image.Pt(rect.Min.X, maxInt(rect.Min.Y-6, 12))
		gocv.PutText(img, label, org, gocv.FontHersheySimplex, 0.5, green, 1)
	}
}

// writeImage сохраняет результат, IMWrite выбирает кодек по расширению
func writeImage(path string, img gocv.Mat) error {
	if ok := gocv.IMWrite(path, img); !ok {
		return fmt.Errorf("failed to write %s", path)
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
