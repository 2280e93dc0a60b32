package port

import "snapsense-bot/internal/domain/entity"

// Workspace интерфейс рабочих папок изображений
type Workspace interface {
	// Create создаёт папку со свежим идентификатором изображения
	Create() (*entity.WorkDir, error)

	// Remove удаляет папку изображения вместе с артефактами
	Remove(imageID string) error
}
