package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "SNAPSENSE"

type Config struct {
	Telegram Telegram `mapstructure:"telegram"`
	Storage  Storage  `mapstructure:"storage"`
	Workers  int      `mapstructure:"workers"`
	HTTP     HTTP     `mapstructure:"http"`
	Logging  Logging  `mapstructure:"logging"`
	Models   Models   `mapstructure:"models"`
}

type Telegram struct {
	Token       string `mapstructure:"token"`
	PollTimeout int    `mapstructure:"poll_timeout"` // секунды long polling
	Debug       bool   `mapstructure:"debug"`
}

type Storage struct {
	WorkDir    string `mapstructure:"work_dir"` // очищается при каждом старте
	Sessions   string `mapstructure:"sessions"` // memory | sqlite
	SQLitePath string `mapstructure:"sqlite_path"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"` // пусто: /healthz и /metrics не поднимаются
}

type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Models struct {
	ObjectDetection    ObjectDetection    `mapstructure:"object_detection"`
	NudityDetection    NudityDetection    `mapstructure:"nudity_detection"`
	EmotionRecognition EmotionRecognition `mapstructure:"emotion_recognition"`
	ImageSegmentation  ImageSegmentation  `mapstructure:"image_segmentation"`
	BackgroundRemoval  BackgroundRemoval  `mapstructure:"background_removal"`
	TextExtraction     TextExtraction     `mapstructure:"text_extraction"`
}

type ObjectDetection struct {
	ModelPath  string  `mapstructure:"model_path"`
	LabelsPath string  `mapstructure:"labels_path"`
	Confidence float32 `mapstructure:"confidence"`
	IoU        float32 `mapstructure:"iou"`
	InputSize  int     `mapstructure:"input_size"`
	Device     string  `mapstructure:"device"`
}

type NudityDetection struct {
	ModelPath     string   `mapstructure:"model_path"`
	Confidence    float32  `mapstructure:"confidence"`
	IoU           float32  `mapstructure:"iou"`
	InputSize     int      `mapstructure:"input_size"`
	Device        string   `mapstructure:"device"`
	CensorClasses []string `mapstructure:"censor_classes"`
}

type EmotionRecognition struct {
	CascadePath string `mapstructure:"cascade_path"`
	ModelPath   string `mapstructure:"model_path"`
	Device      string `mapstructure:"device"`
}

type ImageSegmentation struct {
	Clusters int   `mapstructure:"clusters"`
	MaxSide  int   `mapstructure:"max_side"`
	MinArea  int   `mapstructure:"min_area"`
	Seed     int64 `mapstructure:"seed"`
}

type BackgroundRemoval struct {
	Iterations int     `mapstructure:"iterations"`
	Margin     float64 `mapstructure:"margin"`
}

type TextExtraction struct {
	Binary    string `mapstructure:"binary"`
	Languages string `mapstructure:"languages"`
}

// ErrMissingToken токен бота не задан ни в конфиге, ни в окружении
var ErrMissingToken = errors.New("telegram token is required")

// Load читает .env, необязательный YAML-файл и переменные окружения SNAPSENSE_*.
// Переменные окружения важнее файла.
func Load(path string) (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = firstEnv("TELEGRAM_BOT_TOKEN", "TELEGRAM_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("telegram.debug", false)

	v.SetDefault("storage.work_dir", "database")
	v.SetDefault("storage.sessions", "memory")
	v.SetDefault("storage.sqlite_path", "snapsense.db")

	v.SetDefault("workers", 2)
	v.SetDefault("http.addr", ":9090")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("models.object_detection.model_path", "models/yolo11x.onnx")
	v.SetDefault("models.object_detection.labels_path", "models/coco.names")
	v.SetDefault("models.object_detection.confidence", 0.3)
	v.SetDefault("models.object_detection.iou", 0.4)
	v.SetDefault("models.object_detection.input_size", 640)
	v.SetDefault("models.object_detection.device", "cpu")

	v.SetDefault("models.nudity_detection.model_path", "models/320n.onnx")
	v.SetDefault("models.nudity_detection.confidence", 0.2)
	v.SetDefault("models.nudity_detection.iou", 0.45)
	v.SetDefault("models.nudity_detection.input_size", 320)
	v.SetDefault("models.nudity_detection.device", "cpu")
	v.SetDefault("models.nudity_detection.censor_classes", []string{
		"BUTTOCKS_EXPOSED",
		"FEMALE_BREAST_EXPOSED",
		"FEMALE_GENITALIA_EXPOSED",
		"ANUS_EXPOSED",
		"MALE_GENITALIA_EXPOSED",
	})

	v.SetDefault("models.emotion_recognition.cascade_path", "models/haarcascade_frontalface_default.xml")
	v.SetDefault("models.emotion_recognition.model_path", "models/emotion-ferplus-8.onnx")
	v.SetDefault("models.emotion_recognition.device", "cpu")

	v.SetDefault("models.image_segmentation.clusters", 6)
	v.SetDefault("models.image_segmentation.max_side", 512)
	v.SetDefault("models.image_segmentation.min_area", 200)
	v.SetDefault("models.image_segmentation.seed", 42)

	v.SetDefault("models.background_removal.iterations", 5)
	v.SetDefault("models.background_removal.margin", 0.05)

	v.SetDefault("models.text_extraction.binary", "tesseract")
	v.SetDefault("models.text_extraction.languages", "eng")
}

// Validate проверяет значения, которые нельзя исправить на лету
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	if c.Telegram.PollTimeout <= 0 {
		return fmt.Errorf("telegram.poll_timeout must be positive, got %d", c.Telegram.PollTimeout)
	}
	if strings.TrimSpace(c.Storage.WorkDir) == "" {
		return errors.New("storage.work_dir is required")
	}
	switch c.Storage.Sessions {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for sqlite sessions")
		}
	default:
		return fmt.Errorf("unknown storage.sessions: %s", c.Storage.Sessions)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}

	od, nd := c.Models.ObjectDetection, c.Models.NudityDetection
	if err := checkThreshold("models.object_detection.confidence", od.Confidence); err != nil {
		return err
	}
	if err := checkThreshold("models.object_detection.iou", od.IoU); err != nil {
		return err
	}
	if err := checkThreshold("models.nudity_detection.confidence", nd.Confidence); err != nil {
		return err
	}
	if err := checkThreshold("models.nudity_detection.iou", nd.IoU); err != nil {
		return err
	}
	if od.InputSize <= 0 || nd.InputSize <= 0 {
		return errors.New("models input_size must be positive")
	}
	return nil
}

func checkThreshold(key string, v float32) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("%s must be in (0, 1], got %.2f", key, v)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
