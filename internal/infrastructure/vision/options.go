package vision

// DetectorOptions параметры YOLO-детектора (ONNX, выход [1, 4+classes, anchors])
type DetectorOptions struct {
	ModelPath  string
	LabelsPath string // по одному классу на строку; пусто: class_N
	Confidence float32
	IoU        float32
	InputSize  int
	Device     string // cpu | cuda
}

// NudityOptions параметры детектора NudeNet
type NudityOptions struct {
	ModelPath     string
	Confidence    float32
	IoU           float32
	InputSize     int
	Device        string
	CensorClasses []string
}

// EmotionOptions каскад для лиц и ONNX-классификатор FER+
type EmotionOptions struct {
	CascadePath string
	ModelPath   string
	Device      string
}

// SegmentationOptions параметры сегментации k-means
type SegmentationOptions struct {
	Clusters int
	MaxSide  int
	MinArea  int // компоненты меньше этой площади не считаются сегментами
	Seed     int64
}

// BackgroundOptions параметры GrabCut
type BackgroundOptions struct {
	Iterations int
	Margin     float64 // отступ прямоугольника переднего плана от краёв, доля стороны
}

// OCROptions параметры вызова tesseract
type OCROptions struct {
	Binary    string
	Languages string
}

// NudeNetLabels классы модели NudeNet 320n в порядке выхода сети
var NudeNetLabels = []string{
	"FEMALE_GENITALIA_COVERED",
	"FACE_FEMALE",
	"BUTTOCKS_EXPOSED",
	"FEMALE_BREAST_EXPOSED",
	"FEMALE_GENITALIA_EXPOSED",
	"MALE_BREAST_EXPOSED",
	"ANUS_EXPOSED",
	"FEET_EXPOSED",
	"BELLY_COVERED",
	"FEET_COVERED",
	"ARMPITS_COVERED",
	"ARMPITS_EXPOSED",
	"FACE_MALE",
	"BELLY_EXPOSED",
	"MALE_GENITALIA_EXPOSED",
	"ANUS_COVERED",
	"FEMALE_BREAST_COVERED",
	"BUTTOCKS_COVERED",
}

// DefaultCensorClasses открытые части тела, которые закрашиваются по умолчанию
var DefaultCensorClasses = []string{
	"BUTTOCKS_EXPOSED",
	"FEMALE_BREAST_EXPOSED",
	"FEMALE_GENITALIA_EXPOSED",
	"ANUS_EXPOSED",
	"MALE_GENITALIA_EXPOSED",
}

// FERPlusLabels эмоции модели emotion-ferplus-8 в порядке выхода сети
var FERPlusLabels = []string{
	"neutral",
	"happiness",
	"surprise",
	"sadness",
	"anger",
	"disgust",
	"fear",
	"contempt",
}
