package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
)

// TaskDispatcher запускает модель выбранной задачи
type TaskDispatcher interface {
	Dispatch(ctx context.Context, task entity.TaskID, req entity.ProcessRequest) (*entity.Envelope, error)
}

// Conversation конечный автомат диалога: Idle -> TaskSelected -> Processing -> Idle.
// События одного чата должны приходить последовательно.
type Conversation struct {
	sessions   *SessionService
	registry   *entity.Registry
	dispatcher TaskDispatcher
	presenter  *Presenter
	messenger  port.Messenger
	workspace  port.Workspace
	metrics    Metrics
	logger     *slog.Logger
	menu       []port.MenuButton
}

// NewConversation собирает автомат диалога
func NewConversation(
	sessions *SessionService,
	registry *entity.Registry,
	dispatcher TaskDispatcher,
	presenter *Presenter,
	messenger port.Messenger,
	workspace port.Workspace,
	metrics Metrics,
	logger *slog.Logger,
) *Conversation {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversation{
		sessions:   sessions,
		registry:   registry,
		dispatcher: dispatcher,
		presenter:  presenter,
		messenger:  messenger,
		workspace:  workspace,
		metrics:    metrics,
		logger:     logger,
		menu:       port.MenuFromRegistry(registry),
	}
}

// Start сбрасывает сессию и показывает главное меню
func (c *Conversation) Start(ctx context.Context, chatID int64) error {
	c.metrics.IncEvent("start")
	s, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		return err
	}

	c.cleanup(ctx, s)
	c.replacePending(ctx, s, port.OutMessage{Text: msgStart, Menu: c.menu})

	return c.sessions.Save(ctx, s)
}

// Cancel прерывает текущую задачу из любого состояния и показывает меню
func (c *Conversation) Cancel(ctx context.Context, chatID int64) error {
	c.metrics.IncEvent("cancel")
	s, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		return err
	}

	c.cleanup(ctx, s)
	c.replacePending(ctx, s, port.OutMessage{Text: msgCancelled, Menu: c.menu})

	return c.sessions.Save(ctx, s)
}

// SelectTask обрабатывает нажатие кнопки меню. messageID: сообщение с нажатой кнопкой.
// Неизвестная задача возвращает entity.ErrUnknownTask без изменения состояния.
func (c *Conversation) SelectTask(ctx context.Context, chatID int64, messageID int, data string) error {
	desc, ok := c.registry.Lookup(entity.TaskID(strings.TrimSpace(data)))
	if !ok {
		c.metrics.IncEvent("unknown_task")
		return fmt.Errorf("%w: %q", entity.ErrUnknownTask, data)
	}
	c.metrics.IncEvent("select")

	s, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if s.State == entity.StateProcessing {
		c.logger.Warn("select_ignored_while_processing", "chat_id", chatID, "task", desc.ID)
		return nil
	}

	s.SelectTask(desc)
	prompt := port.OutMessage{Text: fmt.Sprintf(msgTaskSelected, desc.Name)}

	// Меню, на котором нажали кнопку, становится подсказкой; любое другое промежуточное удаляем.
	if s.PendingMessageID != 0 && s.PendingMessageID != messageID {
		c.deletePending(ctx, s)
	}
	if messageID != 0 {
		id, err := c.messenger.Edit(ctx, chatID, messageID, prompt)
		if err == nil {
			s.PendingMessageID = id
			return c.sessions.Save(ctx, s)
		}
		c.logger.Debug("edit_menu_failed", "chat_id", chatID, "message_id", messageID, "error", err.Error())
	}
	c.replacePending(ctx, s, prompt)

	return c.sessions.Save(ctx, s)
}

// ReceivePhoto принимает фото и, если задача выбрана, проводит полный цикл обработки.
// Фото без выбранной задачи: подсказка пользователю и entity.ErrNoTaskSelected, состояние не меняется.
func (c *Conversation) ReceivePhoto(ctx context.Context, chatID int64, fileID string) error {
	s, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		return err
	}

	switch {
	case s.State == entity.StateProcessing:
		c.logger.Warn("photo_dropped_while_processing", "chat_id", chatID, "image_id", s.ActiveImageID)
		c.send(ctx, chatID, port.OutMessage{Text: msgBusy})
		return nil
	case !s.HasTask():
		c.metrics.IncEvent("photo_without_task")
		c.send(ctx, chatID, port.OutMessage{Text: msgInvalidState})
		return entity.ErrNoTaskSelected
	}
	c.metrics.IncEvent("photo")

	desc, ok := c.registry.Lookup(s.SelectedTask)
	if !ok {
		c.cleanup(ctx, s)
		_ = c.sessions.Save(ctx, s)
		return fmt.Errorf("session task %q: %w", s.SelectedTask, entity.ErrUnknownTask)
	}

	c.replacePending(ctx, s, port.OutMessage{Text: msgProcessing})

	dir, err := c.workspace.Create()
	if err != nil {
		return c.finish(ctx, s, desc, nil, err)
	}
	s.BeginProcessing(dir.ImageID)
	if err := c.sessions.Save(ctx, s); err != nil {
		c.removeWorkDir(s)
		return err
	}

	c.logger.Info("photo_received", "chat_id", chatID, "task", desc.ID, "image_id", dir.ImageID)
	if err := c.messenger.Download(ctx, fileID, dir.ImagePath); err != nil {
		return c.finish(ctx, s, desc, nil, fmt.Errorf("download photo: %w", err))
	}

	env, err := c.dispatcher.Dispatch(ctx, desc.ID, entity.ProcessRequest{
		ImagePath: dir.ImagePath,
		WorkDir:   dir.Path,
		ImageID:   dir.ImageID,
	})
	return c.finish(ctx, s, desc, env, err)
}

// ReceiveText отвечает подсказкой на обычный текст; состояние не меняется
func (c *Conversation) ReceiveText(ctx context.Context, chatID int64) error {
	s, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		return err
	}
	text := msgUseMenu
	if s.State == entity.StateTaskSelected {
		text = msgSendPhoto
	}
	c.send(ctx, chatID, port.OutMessage{Text: text})
	return nil
}

// Recover страховочный переход в Idle после непредвиденной ошибки
func (c *Conversation) Recover(ctx context.Context, chatID int64, cause any) {
	c.metrics.IncEvent("recover")
	c.logger.Error("conversation_recover", "chat_id", chatID, "error", fmt.Sprint(cause))

	s, err := c.sessions.Get(ctx, chatID)
	if err != nil {
		c.logger.Error("recover_get_session", "chat_id", chatID, "error", err.Error())
		c.send(ctx, chatID, port.OutMessage{Text: msgGenericError})
		return
	}

	c.cleanup(ctx, s)
	c.send(ctx, chatID, port.OutMessage{Text: msgGenericError})
	if err := c.sessions.Save(ctx, s); err != nil {
		c.logger.Error("recover_save_session", "chat_id", chatID, "error", err.Error())
	}
}

// finish завершает цикл обработки: результат или ошибка, уборка, меню.
func (c *Conversation) finish(ctx context.Context, s *entity.Session, desc entity.Descriptor, env *entity.Envelope, runErr error) error {
	c.deletePending(ctx, s)

	if runErr != nil {
		var perr *entity.ProcessingError
		if errors.As(runErr, &perr) {
			c.send(ctx, s.ChatID, port.OutMessage{Text: fmt.Sprintf(msgProcessingError, strings.ToLower(desc.Name))})
		} else {
			c.logger.Error("processing_cycle_failed", "chat_id", s.ChatID, "task", desc.ID, "error", runErr.Error())
			c.send(ctx, s.ChatID, port.OutMessage{Text: msgGenericError})
		}
	} else {
		c.deliver(ctx, s.ChatID, desc, env)
	}

	c.removeWorkDir(s)
	s.Reset()
	c.replacePending(ctx, s, port.OutMessage{Text: msgMenu, Markdown: true, Menu: c.menu})

	return c.sessions.Save(ctx, s)
}

// deliver отправляет результат; при сбое оформления шлёт простое уведомление
func (c *Conversation) deliver(ctx context.Context, chatID int64, desc entity.Descriptor, env *entity.Envelope) {
	msg, err := c.presenter.Render(desc, env)
	if err != nil {
		c.logger.Warn("render_failed", "chat_id", chatID, "task", desc.ID, "error", err.Error())
		c.send(ctx, chatID, c.presenter.Fallback(desc))
		return
	}
	if _, err := c.messenger.Send(ctx, chatID, msg); err != nil {
		c.logger.Warn("send_result_failed", "chat_id", chatID, "task", desc.ID, "error", err.Error())
		c.send(ctx, chatID, c.presenter.Fallback(desc))
	}
}

// cleanup удаляет промежуточное сообщение и рабочую папку, сбрасывает сессию
func (c *Conversation) cleanup(ctx context.Context, s *entity.Session) {
	c.deletePending(ctx, s)
	c.removeWorkDir(s)
	s.Reset()
}

// replacePending удаляет прежнее промежуточное сообщение и запоминает новое
func (c *Conversation) replacePending(ctx context.Context, s *entity.Session, msg port.OutMessage) {
	c.deletePending(ctx, s)
	id, err := c.messenger.Send(ctx, s.ChatID, msg)
	if err != nil {
		c.logger.Warn("send_failed", "chat_id", s.ChatID, "error", err.Error())
		return
	}
	s.PendingMessageID = id
}

func (c *Conversation) deletePending(ctx context.Context, s *entity.Session) {
	if s.PendingMessageID == 0 {
		return
	}
	if err := c.messenger.Delete(ctx, s.ChatID, s.PendingMessageID); err != nil {
		c.logger.Debug("delete_pending_failed", "chat_id", s.ChatID, "message_id", s.PendingMessageID, "error", err.Error())
	}
	s.PendingMessageID = 0
}

func (c *Conversation) removeWorkDir(s *entity.Session) {
	if s.ActiveImageID == "" {
		return
	}
	if err := c.workspace.Remove(s.ActiveImageID); err != nil {
		c.logger.Warn("remove_work_dir_failed", "image_id", s.ActiveImageID, "error", err.Error())
	}
}

func (c *Conversation) send(ctx context.Context, chatID int64, msg port.OutMessage) {
	if _, err := c.messenger.Send(ctx, chatID, msg); err != nil {
		c.logger.Warn("send_failed", "chat_id", chatID, "error", err.Error())
	}
}
