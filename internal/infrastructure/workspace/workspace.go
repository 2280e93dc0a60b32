// Package workspace управляет рабочими папками изображений:
// <root>/<image_id>/<image_id>.jpg плюс по подпапке на задачу.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
)

// Manager создаёт и удаляет рабочие папки внутри корня
type Manager struct {
	root string
}

// New создаёт менеджер для корня root
func New(root string) *Manager {
	return &Manager{root: root}
}

// Root корневая папка
func (m *Manager) Root() string {
	return m.root
}

// Reset удаляет корень со всем содержимым и создаёт его заново.
// Вызывается на старте: после рестарта в корне не может быть живых прогонов.
func (m *Manager) Reset() error {
	if err := os.RemoveAll(m.root); err != nil {
		return fmt.Errorf("clean work dir: %w", err)
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	return nil
}

// Create создаёт папку со свежим идентификатором изображения
func (m *Manager) Create() (*entity.WorkDir, error) {
	id := uuid.NewString()
	path := filepath.Join(m.root, id)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &entity.WorkDir{
		ImageID:   id,
		Path:      path,
		ImagePath: filepath.Join(path, id+".jpg"),
	}, nil
}

// Remove удаляет папку изображения; отсутствие папки не ошибка
func (m *Manager) Remove(imageID string) error {
	path, err := m.pathFor(imageID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove image dir %s: %w", imageID, err)
	}
	return nil
}

// TaskDir создаёт подпапку задачи внутри рабочей папки
func TaskDir(workDir, task string) (string, error) {
	dir := filepath.Join(workDir, task)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create task dir: %w", err)
	}
	return dir, nil
}

func (m *Manager) pathFor(imageID string) (string, error) {
	if imageID == "" || strings.ContainsAny(imageID, `/\`) || imageID == "." || imageID == ".." {
		return "", errors.New("invalid image id")
	}
	return filepath.Join(m.root, imageID), nil
}

var _ port.Workspace = (*Manager)(nil)
