package entity

// TaskID идентификатор задачи анализа, совпадает с callback data кнопки меню
type TaskID string

const (
	TaskObjectDetection    TaskID = "object_detection"
	TaskEmotionRecognition TaskID = "emotion_recognition"
	TaskNudityDetection    TaskID = "nudity_detection"
	TaskTextExtraction     TaskID = "text_extraction"
	TaskBackgroundRemoval  TaskID = "background_removal"
	TaskImageSegmentation  TaskID = "image_segmentation"
)

// OutputKind определяет, чем бот отвечает на результат задачи
type OutputKind int

const (
	OutputPhoto OutputKind = iota // Аннотированное изображение с подписью
	OutputText                    // Текстовое сообщение
)

func (k OutputKind) String() string {
	if k == OutputText {
		return "text"
	}
	return "photo"
}

// Descriptor описывает задачу для меню и для вывода результата
type Descriptor struct {
	ID        TaskID
	Button    string // Подпись кнопки
	Name      string // Человекочитаемое имя задачи
	ModelName string // Имя модели в подписи к результату
	Output    OutputKind
}

// Registry неизменяемый упорядоченный список задач
type Registry struct {
	tasks []Descriptor
	index map[TaskID]int
}

// NewRegistry строит реестр из списка задач; порядок сохраняется для меню.
func NewRegistry(tasks ...Descriptor) *Registry {
	r := &Registry{
		tasks: make([]Descriptor, 0, len(tasks)),
		index: make(map[TaskID]int, len(tasks)),
	}
	for _, t := range tasks {
		if _, dup := r.index[t.ID]; dup {
			continue
		}
		r.index[t.ID] = len(r.tasks)
		r.tasks = append(r.tasks, t)
	}
	return r
}

// DefaultRegistry возвращает все поддерживаемые задачи в порядке меню
func DefaultRegistry() *Registry {
	return NewRegistry(
		Descriptor{ID: TaskObjectDetection, Button: "🔎 Detect Objects", Name: "Object Detection", ModelName: "YOLO", Output: OutputPhoto},
		Descriptor{ID: TaskEmotionRecognition, Button: "😊 Analyze Emotions", Name: "Emotion Recognition", ModelName: "FER+ Emotion", Output: OutputText},
		Descriptor{ID: TaskNudityDetection, Button: "🔞 Check for Sensitive Content", Name: "Nudity Detection", ModelName: "NudeNet", Output: OutputPhoto},
		Descriptor{ID: TaskTextExtraction, Button: "📝 Extract Text (OCR)", Name: "Text Extraction", ModelName: "Tesseract OCR", Output: OutputText},
		Descriptor{ID: TaskBackgroundRemoval, Button: "✂️ Remove Background", Name: "Background Removal", ModelName: "GrabCut", Output: OutputPhoto},
		Descriptor{ID: TaskImageSegmentation, Button: "🧩 Segment Image", Name: "Image Segmentation", ModelName: "K-Means Segmentation", Output: OutputPhoto},
	)
}

// Lookup ищет задачу по идентификатору
func (r *Registry) Lookup(id TaskID) (Descriptor, bool) {
	i, ok := r.index[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.tasks[i], true
}

// All возвращает копию списка задач
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Len количество задач в реестре
func (r *Registry) Len() int {
	return len(r.tasks)
}
