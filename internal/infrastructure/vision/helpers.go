package vision

import (
	"bufio"
	"context"
	"fmt"
	"image"
	_ "image/gif" // форматы для DecodeConfig
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
)

// CheckImage проверяет, что файл существует и декодируется как изображение
func CheckImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("%w: empty image", entity.ErrInvalidImage)
	}
	return nil
}

// LoadLabels читает классы по одному на строку
func LoadLabels(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			labels = append(labels, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return labels, nil
}

func labelFor(labels []string, id int) string {
	if id >= 0 && id < len(labels) {
		return labels[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// Softmax переводит логиты в проценты и сортирует по убыванию
func Softmax(labels []string, logits []float32) []entity.EmotionScore {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	var sum float64
	exps := make([]float64, len(logits))
	for i, v := range logits {
		exps[i] = math.Exp(float64(v - maxLogit))
		sum += exps[i]
	}

	scores := make([]entity.EmotionScore, 0, len(logits))
	for i, e := range exps {
		scores = append(scores, entity.EmotionScore{Emotion: labelFor(labels, i), Percent: e / sum * 100})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Percent > scores[j].Percent })
	return scores
}

// UniqueLabels возвращает классы детекций без повторов в порядке появления
func UniqueLabels(dets []entity.Detection) []string {
	counts := entity.CountLabels(dets)
	out := make([]string, 0, len(counts))
	for _, c := range counts {
		out = append(out, c.Label)
	}
	return out
}

// Unavailable модель, которую не удалось инициализировать на старте.
// Каждый вызов возвращает исходную ошибку, обёрнутую в entity.ErrModelInit.
type Unavailable struct {
	Task entity.TaskID
	Err  error
}

func (u Unavailable) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
	return nil, fmt.Errorf("%s: %w: %v", u.Task, entity.ErrModelInit, u.Err)
}

var _ port.Capability = Unavailable{}
