package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"snapsense-bot/config"
	app "snapsense-bot/internal/application"
	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
	"snapsense-bot/internal/infrastructure/metrics"
	"snapsense-bot/internal/infrastructure/storage"
	"snapsense-bot/internal/infrastructure/vision"
	"snapsense-bot/internal/infrastructure/workspace"
	"snapsense-bot/internal/worker"
)

type Container struct {
	Registry     *entity.Registry
	Sessions     *app.SessionService
	Dispatcher   *app.Dispatcher
	Conversation *app.Conversation
	Workspace    *workspace.Manager
	Metrics      *prometheus.Registry

	pool    *worker.Pool
	closers []io.Closer
}

// New собирает сервисы приложения. Модели, которые не удалось загрузить,
// регистрируются как недоступные: бот стартует, а задача сообщает об ошибке.
func New(ctx context.Context, cfg *config.Config, messenger port.Messenger, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{Registry: entity.DefaultRegistry()}

	c.Metrics = prometheus.NewRegistry()
	c.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(c.Metrics)

	repo, err := c.sessionRepository(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	c.Sessions = app.NewSessionService(repo)

	// Рабочие папки не переживают рестарт
	c.Workspace = workspace.New(cfg.Storage.WorkDir)
	if err := c.Workspace.Reset(); err != nil {
		c.Close()
		return nil, fmt.Errorf("reset work dir: %w", err)
	}
	logger.Info("work_dir_reset", "path", c.Workspace.Root())

	c.pool = worker.NewPool(cfg.Workers)
	caps := c.capabilities(cfg.Models, logger)

	c.Dispatcher, err = app.NewDispatcher(c.Registry, caps, c.pool, recorder, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	c.Conversation = app.NewConversation(
		c.Sessions,
		c.Registry,
		c.Dispatcher,
		app.NewPresenter(),
		messenger,
		c.Workspace,
		recorder,
		logger,
	)
	return c, nil
}

func (c *Container) sessionRepository(ctx context.Context, cfg config.Storage) (port.SessionRepository, error) {
	if cfg.Sessions != "sqlite" {
		return storage.NewMemorySessionRepository(), nil
	}
	repo, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sessions db: %w", err)
	}
	c.closers = append(c.closers, repo)
	return repo, nil
}

func (c *Container) capabilities(cfg config.Models, logger *slog.Logger) map[entity.TaskID]port.Capability {
	caps := make(map[entity.TaskID]port.Capability, c.Registry.Len())

	add := func(task entity.TaskID, capability port.Capability, closer io.Closer, err error) {
		if err != nil {
			logger.Warn("model_unavailable", "task", task, "error", err.Error())
			caps[task] = vision.Unavailable{Task: task, Err: err}
			return
		}
		if closer != nil {
			c.closers = append(c.closers, closer)
		}
		caps[task] = capability
		logger.Info("model_ready", "task", task)
	}

	od := cfg.ObjectDetection
	if d, err := vision.NewObjectDetector(vision.DetectorOptions{
		ModelPath:  od.ModelPath,
		LabelsPath: od.LabelsPath,
		Confidence: od.Confidence,
		IoU:        od.IoU,
		InputSize:  od.InputSize,
		Device:     od.Device,
	}); err != nil {
		add(entity.TaskObjectDetection, nil, nil, err)
	} else {
		add(entity.TaskObjectDetection, d, d, nil)
	}

	er := cfg.EmotionRecognition
	if r, err := vision.NewEmotionRecognizer(vision.EmotionOptions{
		CascadePath: er.CascadePath,
		ModelPath:   er.ModelPath,
		Device:      er.Device,
	}); err != nil {
		add(entity.TaskEmotionRecognition, nil, nil, err)
	} else {
		add(entity.TaskEmotionRecognition, r, r, nil)
	}

	nd := cfg.NudityDetection
	if d, err := vision.NewNudityDetector(vision.NudityOptions{
		ModelPath:     nd.ModelPath,
		Confidence:    nd.Confidence,
		IoU:           nd.IoU,
		InputSize:     nd.InputSize,
		Device:        nd.Device,
		CensorClasses: nd.CensorClasses,
	}); err != nil {
		add(entity.TaskNudityDetection, nil, nil, err)
	} else {
		add(entity.TaskNudityDetection, d, d, nil)
	}

	te := cfg.TextExtraction
	add(entity.TaskTextExtraction, vision.NewTextExtractor(vision.OCROptions{
		Binary:    te.Binary,
		Languages: te.Languages,
	}), nil, nil)

	br := cfg.BackgroundRemoval
	if b, err := vision.NewBackgroundRemover(vision.BackgroundOptions{
		Iterations: br.Iterations,
		Margin:     br.Margin,
	}); err != nil {
		add(entity.TaskBackgroundRemoval, nil, nil, err)
	} else {
		add(entity.TaskBackgroundRemoval, b, b, nil)
	}

	is := cfg.ImageSegmentation
	if s, err := vision.NewSegmenter(vision.SegmentationOptions{
		Clusters: is.Clusters,
		MaxSide:  is.MaxSide,
		MinArea:  is.MinArea,
		Seed:     is.Seed,
	}); err != nil {
		add(entity.TaskImageSegmentation, nil, nil, err)
	} else {
		add(entity.TaskImageSegmentation, s, s, nil)
	}

	return caps
}

// Close останавливает пул и освобождает модели и базу
func (c *Container) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
