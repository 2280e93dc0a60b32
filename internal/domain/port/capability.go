package port

import (
	"context"

	"snapsense-bot/internal/domain/entity"
)

// Capability интерфейс модели, выполняющей одну задачу анализа
type Capability interface {
	// Process обрабатывает изображение; артефакты пишутся в req.WorkDir
	Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error)
}

// CapabilityFunc адаптер функции к Capability
type CapabilityFunc func(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error)

func (f CapabilityFunc) Process(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
	return f(ctx, req)
}
