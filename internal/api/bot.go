package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "snapsense-bot/internal/application"
	"snapsense-bot/internal/domain/port"
)

// Bot представляет Telegram-бота: транспорт для Conversation и цикл обновлений
type Bot struct {
	api         *tgbotapi.BotAPI
	httpClient  *http.Client
	pollTimeout int
	logger      *slog.Logger
}

// NewBot создаёт нового бота
func NewBot(token string, pollTimeout int, debug bool, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = debug
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("telegram_authorized", "bot_username", api.Self.UserName, "bot_id", api.Self.ID)

	return &Bot{
		api:         api,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
		pollTimeout: pollTimeout,
		logger:      logger,
	}, nil
}

// Run запускает основной цикл обработки обновлений до отмены ctx
func (b *Bot) Run(ctx context.Context, h Handler) error {
	if err := b.registerCommands(); err != nil {
		b.logger.Warn("set_commands_failed", "error", err.Error())
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	r := newRouter(h, b.answerCallback, b.logger)
	defer r.wait()

	b.logger.Info("telegram_start", "poll_timeout", b.pollTimeout)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram_stop")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, upd)
		}
	}
}

func (b *Bot) registerCommands() error {
	cmds := make([]tgbotapi.BotCommand, 0, len(app.Commands))
	for _, c := range app.Commands {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	_, err := b.api.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}

func (b *Bot) answerCallback(id string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.logger.Debug("callback_ack_failed", "error", err.Error())
	}
}

// Send отправляет текст или фото с подписью
func (b *Bot) Send(ctx context.Context, chatID int64, msg port.OutMessage) (int, error) {
	var c tgbotapi.Chattable
	if msg.PhotoPath != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(msg.PhotoPath))
		photo.Caption = msg.Text
		if msg.Markdown {
			photo.ParseMode = tgbotapi.ModeMarkdownV2
		}
		if len(msg.Menu) > 0 {
			photo.ReplyMarkup = keyboard(msg.Menu)
		}
		c = photo
	} else {
		m := tgbotapi.NewMessage(chatID, msg.Text)
		if msg.Markdown {
			m.ParseMode = tgbotapi.ModeMarkdownV2
		}
		if len(msg.Menu) > 0 {
			m.ReplyMarkup = keyboard(msg.Menu)
		}
		c = m
	}

	sent, err := b.api.Send(c)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

// Edit заменяет текст сообщения; клавиатура убирается, если Menu пустое
func (b *Bot) Edit(ctx context.Context, chatID int64, messageID int, msg port.OutMessage) (int, error) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, msg.Text)
	if msg.Markdown {
		edit.ParseMode = tgbotapi.ModeMarkdownV2
	}
	if len(msg.Menu) > 0 {
		kb := keyboard(msg.Menu)
		edit.ReplyMarkup = &kb
	}
	if _, err := b.api.Send(edit); err != nil {
		return 0, fmt.Errorf("edit message: %w", err)
	}
	return messageID, nil
}

// Delete удаляет сообщение
func (b *Bot) Delete(ctx context.Context, chatID int64, messageID int) error {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// Download скачивает файл из Telegram в dst
func (b *Bot) Download(ctx context.Context, fileID, dst string) error {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return fmt.Errorf("get file: %w", err)
	}
	return fetch(ctx, b.httpClient, file.Link(b.api.Token), dst)
}

// fetch сохраняет тело ответа по пути dst
func fetch(ctx context.Context, client *http.Client, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file: unexpected status %s", resp.Status)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write file: %w", err)
	}
	return f.Close()
}

// keyboard одна кнопка в строке, в порядке реестра
func keyboard(menu []port.MenuButton) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(menu))
	for _, btn := range menu {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

var _ port.Messenger = (*Bot)(nil)
