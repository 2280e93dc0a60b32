package entity

import "time"

// ProcessRequest входные данные одного прогона модели
type ProcessRequest struct {
	ImagePath string // Путь к исходному изображению
	WorkDir   string // Рабочая папка изображения
	ImageID   string // Идентификатор изображения
}

// Box прямоугольная область на изображении
type Box struct {
	X      int // координата X левого верхнего угла
	Y      int // координата Y левого верхнего угла
	Width  int // ширина области в пикселях
	Height int // высота области в пикселях
}

// Area площадь области в пикселях
func (b Box) Area() int {
	return b.Width * b.Height
}

// Detection одна найденная моделью область
type Detection struct {
	Label      string
	Confidence float32
	Box        Box
}

// ObjectCount сколько раз встретился класс
type ObjectCount struct {
	Label string
	Count int
}

// FaceEmotion результат распознавания эмоций для одного лица
type FaceEmotion struct {
	Dominant string
	Scores   []EmotionScore // по убыванию
	Region   Box
}

// EmotionScore вероятность эмоции в процентах
type EmotionScore struct {
	Emotion string
	Percent float64
}

// SpeedStats длительность этапов обработки
type SpeedStats struct {
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
}

// Envelope единый результат прогона любой модели.
// Заполняются только поля, относящиеся к задаче.
type Envelope struct {
	Task      TaskID
	ModelName string
	ImagePath string // Отрисованный результат, если задача возвращает картинку

	Objects  []ObjectCount // object_detection
	Classes  []string      // nudity_detection: все найденные классы
	Segments int           // image_segmentation
	Speed    *SpeedStats

	Text     string // text_extraction
	TextPath string

	Faces []FaceEmotion // emotion_recognition
}

// CountLabels сворачивает детекции в счётчики, сохраняя порядок первого появления.
func CountLabels(dets []Detection) []ObjectCount {
	idx := make(map[string]int, len(dets))
	out := make([]ObjectCount, 0, len(dets))
	for _, d := range dets {
		if i, ok := idx[d.Label]; ok {
			out[i].Count++
			continue
		}
		idx[d.Label] = len(out)
		out = append(out, ObjectCount{Label: d.Label, Count: 1})
	}
	return out
}

// WorkDir рабочая папка одного входящего фото
type WorkDir struct {
	ImageID   string
	Path      string
	ImagePath string // куда сохраняется оригинал
}
