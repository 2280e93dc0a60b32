package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
	"snapsense-bot/internal/worker"
)

// Metrics то, что диспетчер и диалог пишут в метрики
type Metrics interface {
	ObserveRun(task, status string, duration time.Duration)
	IncEvent(event string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRun(string, string, time.Duration) {}
func (nopMetrics) IncEvent(string)                          {}

// Dispatcher выбирает модель по задаче и запускает её на пуле воркеров
type Dispatcher struct {
	registry     *entity.Registry
	capabilities map[entity.TaskID]port.Capability
	pool         *worker.Pool
	metrics      Metrics
	logger       *slog.Logger
}

// NewDispatcher проверяет, что у каждой задачи реестра ровно одна модель
// и нет моделей для неизвестных задач.
func NewDispatcher(registry *entity.Registry, capabilities map[entity.TaskID]port.Capability, pool *worker.Pool, metrics Metrics, logger *slog.Logger) (*Dispatcher, error) {
	if pool == nil {
		return nil, errors.New("worker pool is not configured")
	}
	for _, d := range registry.All() {
		if capabilities[d.ID] == nil {
			return nil, fmt.Errorf("no capability registered for task %q", d.ID)
		}
	}
	for id := range capabilities {
		if _, ok := registry.Lookup(id); !ok {
			return nil, fmt.Errorf("capability registered for %w %q", entity.ErrUnknownTask, id)
		}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		registry:     registry,
		capabilities: capabilities,
		pool:         pool,
		metrics:      metrics,
		logger:       logger,
	}, nil
}

// Dispatch запускает модель задачи и возвращает результат.
// Любой сбой модели возвращается как *entity.ProcessingError; повторов нет.
func (d *Dispatcher) Dispatch(ctx context.Context, task entity.TaskID, req entity.ProcessRequest) (*entity.Envelope, error) {
	desc, ok := d.registry.Lookup(task)
	if !ok {
		return nil, &entity.ProcessingError{Task: task, Kind: entity.FailureRuntime, Err: entity.ErrUnknownTask}
	}
	capability := d.capabilities[task]

	started := time.Now()
	env, err := worker.Run(ctx, d.pool, func(ctx context.Context) (*entity.Envelope, error) {
		return capability.Process(ctx, req)
	})
	if err == nil && env == nil {
		err = errors.New("capability returned no result")
	}
	elapsed := time.Since(started)

	if err != nil {
		perr := &entity.ProcessingError{
			Task:     task,
			TaskName: desc.Name,
			Kind:     entity.ClassifyFailure(err),
			Err:      err,
		}
		d.metrics.ObserveRun(string(task), string(perr.Kind), elapsed)
		d.logger.Warn("processing_failed",
			"task", task,
			"image_id", req.ImageID,
			"kind", perr.Kind,
			"duration", elapsed.String(),
			"error", err.Error(),
		)
		return nil, perr
	}

	env.Task = task
	if env.ModelName == "" {
		env.ModelName = desc.ModelName
	}
	d.metrics.ObserveRun(string(task), "success", elapsed)
	d.logger.Info("processing_done", "task", task, "image_id", req.ImageID, "duration", elapsed.String())

	return env, nil
}
