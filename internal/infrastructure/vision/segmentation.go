//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
	"snapsense-bot/internal/infrastructure/workspace"
)

// palette цвета кластеров в BGR
var palette = [][3]byte{
	{56, 56, 255}, {151, 157, 255}, {31, 112, 255}, {29, 178, 255},
	{49, 210, 207}, {10, 249, 72}, {23, 204, 146}, {134, 219, 61},
	{52, 147, 26}, {187, 212, 0}, {168, 153, 44}, {255, 194, 0},
}

// Segmenter раскрашивает изображение по кластерам k-means
// и считает связные области достаточной площади
type Segmenter struct {
	mu   sync.Mutex // SetRNGSeed глобален для OpenCV
	opts SegmentationOptions
}

func NewSegmenter(opts SegmentationOptions) (*Segmenter, error) {
	if opts.Clusters < 2 || opts.Clusters > len(palette) {
		return nil, fmt.Errorf("segmentation clusters must be in [2, %d], got %d", len(palette), opts.Clusters)
	}
	if opts.MaxSide <= 0 {
		return nil, fmt.Errorf("segmentation max side must be positive, got %d", opts.MaxSide)
	}
	return &Segmenter{opts: opts}, nil
}

// Process сохраняет image_segmentation/segmentation_<id>.png
func (s *Segmenter) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
	var speed entity.SpeedStats
	start := time.Now()

	img, err := readImage(req.ImagePath)
	if err != nil {
		return nil, err
	}
	defer func() { img.Close() }()

	if side := maxInt(img.Cols(), img.Rows()); side > s.opts.MaxSide {
		scale := float64(s.opts.MaxSide) / float64(side)
		resized := gocv.NewMat()
		gocv.Resize(img, &resized, image.Pt(int(float64(img.Cols())*scale), int(float64(img.Rows())*scale)), 0, 0, gocv.InterpolationArea)
		img.Close()
		img = resized
	}
	rows, cols := img.Rows(), img.Cols()

	samples := img.Reshape(1, rows*cols)
	defer samples.Close()
	data := gocv.NewMat()
	defer data.Close()
	samples.ConvertTo(&data, gocv.MatTypeCV32F)
	speed.Preprocess = time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	labels := gocv.NewMat()
	defer labels.Close()
	centers := gocv.NewMat()
	defer centers.Close()
	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, 10, 1.0)

	s.mu.Lock()
	gocv.SetRNGSeed(int(s.opts.Seed))
	gocv.KMeans(data, s.opts.Clusters, &labels, criteria, 3, gocv.KMeansPPCenters, &centers)
	s.mu.Unlock()
	speed.Inference = time.Since(start)

	start = time.Now()
	assign := make([]int, rows*cols)
	vis := make([]byte, rows*cols*3)
	for i := range assign {
		k := int(labels.GetIntAt(i, 0)) % len(palette)
		assign[i] = k
		copy(vis[i*3:i*3+3], palette[k][:])
	}

	segments, err := s.countSegments(assign, rows, cols)
	if err != nil {
		return nil, err
	}

	out, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, vis)
	if err != nil {
		return nil, fmt.Errorf("build segmentation image: %w", err)
	}
	defer out.Close()

	dir, err := workspace.TaskDir(req.WorkDir, string(entity.TaskImageSegmentation))
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "segmentation_"+req.ImageID+".png")
	if err := writeImage(path, out); err != nil {
		return nil, fmt.Errorf("save segmentation: %w", err)
	}
	speed.Postprocess = time.Since(start)

	return &entity.Envelope{
		ImagePath: path,
		Segments:  segments,
		Speed:     &speed,
	}, nil
}

// countSegments считает связные компоненты каждого кластера не меньше MinArea
func (s *Segmenter) countSegments(assign []int, rows, cols int) (int, error) {
	minArea := minInt(maxInt(s.opts.MinArea, 1), rows*cols)
	total := 0
	mask := make([]byte, rows*cols)
	for k := 0; k < s.opts.Clusters; k++ {
		for i, a := range assign {
			mask[i] = 0
			if a == k {
				mask[i] = 255
			}
		}
		m, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8U, mask)
		if err != nil {
			return 0, fmt.Errorf("build cluster mask: %w", err)
		}
		cc, stats, centroids := gocv.NewMat(), gocv.NewMat(), gocv.NewMat()
		n := gocv.ConnectedComponentsWithStats(m, &cc, &stats, &centroids)
		for i := 1; i < n; i++ {
			if int(stats.GetIntAt(i, int(gocv.CCStatArea))) >= minArea {
				total++
			}
		}
		m.Close()
		cc.Close()
		stats.Close()
		centroids.Close()
	}
	return total, nil
}

func (s *Segmenter) Close() error { return nil }

var _ port.Capability = (*Segmenter)(nil)
