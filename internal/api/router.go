package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"snapsense-bot/internal/domain/entity"
)

// Handler события диалога, которые понимает бот
type Handler interface {
	Start(ctx context.Context, chatID int64) error
	Cancel(ctx context.Context, chatID int64) error
	SelectTask(ctx context.Context, chatID int64, messageID int, data string) error
	ReceivePhoto(ctx context.Context, chatID int64, fileID string) error
	ReceiveText(ctx context.Context, chatID int64) error
	Recover(ctx context.Context, chatID int64, cause any)
}

type eventKind int

const (
	eventStart eventKind = iota + 1
	eventCancel
	eventSelect
	eventPhoto
	eventText
)

// event входящее обновление, сведённое к событию автомата
type event struct {
	kind      eventKind
	chatID    int64
	messageID int
	data      string
	fileID    string
}

// imageMIMETypes форматы документов, которые принимаются как фото
var imageMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// parseUpdate разбирает обновление; ok=false: обновление не для нас
func parseUpdate(upd tgbotapi.Update) (event, bool) {
	if cb := upd.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.Message.Chat == nil {
			return event{}, false
		}
		return event{kind: eventSelect, chatID: cb.Message.Chat.ID, messageID: cb.Message.MessageID, data: cb.Data}, true
	}

	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return event{}, false
	}
	ev := event{chatID: msg.Chat.ID, messageID: msg.MessageID}

	switch {
	case msg.IsCommand():
		switch msg.Command() {
		case "start":
			ev.kind = eventStart
		case "cancel":
			ev.kind = eventCancel
		default:
			ev.kind = eventText
		}
	case len(msg.Photo) > 0:
		// Последний размер: максимальное разрешение
		ev.kind = eventPhoto
		ev.fileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Document != nil && imageMIMETypes[strings.ToLower(msg.Document.MimeType)]:
		ev.kind = eventPhoto
		ev.fileID = msg.Document.FileID
	default:
		ev.kind = eventText
	}
	return ev, true
}

// router раскладывает события по очередям чатов: один чат, одна горутина.
// Горутина чата завершается после chatIdleTimeout без событий.
type router struct {
	handler Handler
	ack     func(callbackID string)
	logger  *slog.Logger
	idle    time.Duration

	mu     sync.Mutex
	queues map[int64]chan event
	wg     sync.WaitGroup
}

const (
	chatQueueSize   = 16
	chatIdleTimeout = 10 * time.Minute
)

func newRouter(h Handler, ack func(string), logger *slog.Logger) *router {
	if ack == nil {
		ack = func(string) {}
	}
	return &router{
		handler: h,
		ack:     ack,
		logger:  logger,
		idle:    chatIdleTimeout,
		queues:  make(map[int64]chan event),
	}
}

// route подтверждает callback сразу и ставит событие в очередь чата.
// Не блокируется: если очередь чата заполнена, событие отбрасывается.
func (r *router) route(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.ack(upd.CallbackQuery.ID)
	}
	ev, ok := parseUpdate(upd)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.queueLocked(ctx, ev.chatID)
	select {
	case q <- ev:
	default:
		r.logger.Warn("chat_queue_full", "chat_id", ev.chatID, "kind", int(ev.kind))
	}
}

func (r *router) queueLocked(ctx context.Context, chatID int64) chan event {
	if q, ok := r.queues[chatID]; ok {
		return q
	}
	q := make(chan event, chatQueueSize)
	r.queues[chatID] = q

	r.wg.Add(1)
	go r.serve(ctx, chatID, q)
	return q
}

// serve обрабатывает очередь чата и снимает её с учёта после простоя
func (r *router) serve(ctx context.Context, chatID int64, q chan event) {
	defer r.wg.Done()

	timer := time.NewTimer(r.idle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-q:
			r.handle(ctx, ev)
			timer.Reset(r.idle)
		case <-timer.C:
			// route кладёт в очередь под mu, поэтому пустая очередь здесь останется пустой
			r.mu.Lock()
			if len(q) == 0 {
				delete(r.queues, chatID)
				r.mu.Unlock()
				return
			}
			r.mu.Unlock()
			timer.Reset(r.idle)
		}
	}
}

// handle вызывает автомат; паника и ошибки переводят чат в Idle через Recover
func (r *router) handle(ctx context.Context, ev event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("handler_panic", "chat_id", ev.chatID, "panic", fmt.Sprint(p))
			r.handler.Recover(ctx, ev.chatID, p)
		}
	}()

	var err error
	switch ev.kind {
	case eventStart:
		err = r.handler.Start(ctx, ev.chatID)
	case eventCancel:
		err = r.handler.Cancel(ctx, ev.chatID)
	case eventSelect:
		err = r.handler.SelectTask(ctx, ev.chatID, ev.messageID, ev.data)
	case eventPhoto:
		err = r.handler.ReceivePhoto(ctx, ev.chatID, ev.fileID)
	case eventText:
		err = r.handler.ReceiveText(ctx, ev.chatID)
	}

	switch {
	case err == nil:
	case errors.Is(err, entity.ErrUnknownTask):
		r.logger.Warn("unknown_task", "chat_id", ev.chatID, "data", ev.data)
	case errors.Is(err, entity.ErrNoTaskSelected):
		r.logger.Info("photo_without_task", "chat_id", ev.chatID)
	case ctx.Err() != nil:
		r.logger.Debug("handler_cancelled", "chat_id", ev.chatID, "error", err.Error())
	default:
		r.logger.Error("handler_failed", "chat_id", ev.chatID, "error", err.Error())
		r.handler.Recover(ctx, ev.chatID, err)
	}
}

// wait дожидается горутин чатов; вызывать после отмены ctx
func (r *router) wait() {
	r.wg.Wait()
}
