package port

import (
	"context"

	"snapsense-bot/internal/domain/entity"
)

// MenuButton кнопка главного меню
type MenuButton struct {
	Label string
	Data  string
}

// OutMessage исходящее сообщение, не зависящее от транспорта
type OutMessage struct {
	Text      string
	PhotoPath string // если задан, отправляется фото с подписью Text
	Markdown  bool   // Text размечен MarkdownV2
	Menu      []MenuButton
}

// Messenger интерфейс чат-транспорта
type Messenger interface {
	// Send отправляет сообщение и возвращает его ID
	Send(ctx context.Context, chatID int64, msg OutMessage) (int, error)

	// Edit заменяет текст (и клавиатуру) уже отправленного сообщения
	Edit(ctx context.Context, chatID int64, messageID int, msg OutMessage) (int, error)

	// Delete удаляет сообщение
	Delete(ctx context.Context, chatID int64, messageID int) error

	// Download сохраняет файл из чата по пути dst
	Download(ctx context.Context, fileID, dst string) error
}

// MenuFromRegistry строит кнопки меню из реестра задач
func MenuFromRegistry(r *entity.Registry) []MenuButton {
	tasks := r.All()
	out := make([]MenuButton, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, MenuButton{Label: t.Button, Data: string(t.ID)})
	}
	return out
}
