package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // sqlite driver

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
)

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	chat_id            INTEGER PRIMARY KEY,
	state              TEXT    NOT NULL DEFAULT 'idle',
	selected_task      TEXT    NOT NULL DEFAULT '',
	task_display_name  TEXT    NOT NULL DEFAULT '',
	pending_message_id INTEGER NOT NULL DEFAULT 0,
	active_image_id    TEXT    NOT NULL DEFAULT '',
	updated_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteSessionRepository хранит сессии в SQLite, чтобы id меню переживали рестарт
type SQLiteSessionRepository struct {
	db *sql.DB
}

// OpenSQLite открывает базу по пути и создаёт схему
func OpenSQLite(ctx context.Context, path string) (*SQLiteSessionRepository, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite поддерживает только одного писателя
	db.SetMaxOpenConns(1)

	repo, err := NewSQLiteSessionRepository(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// resetUnfinished возвращает в idle сессии, прерванные рестартом.
// Рабочие папки к этому моменту уже не существуют, pending_message_id сохраняется.
const resetUnfinished = `
UPDATE sessions
SET state = 'idle', selected_task = '', task_display_name = '', active_image_id = '', updated_at = CURRENT_TIMESTAMP
WHERE state <> 'idle' OR selected_task <> '' OR active_image_id <> ''`

// NewSQLiteSessionRepository оборачивает открытое соединение, создаёт схему
// и сбрасывает сессии, оставшиеся от прошлого запуска
func NewSQLiteSessionRepository(ctx context.Context, db *sql.DB) (*SQLiteSessionRepository, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sessionsSchema); err != nil {
		return nil, fmt.Errorf("create sessions schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, resetUnfinished); err != nil {
		return nil, fmt.Errorf("reset unfinished sessions: %w", err)
	}
	return &SQLiteSessionRepository{db: db}, nil
}

// Get возвращает сессию чата, создаёт новую если не найдена
func (r *SQLiteSessionRepository) Get(ctx context.Context, chatID int64) (*entity.Session, error) {
	s := entity.NewSession(chatID)
	var state, task string
	err := r.db.QueryRowContext(ctx, `
		SELECT state, selected_task, task_display_name, pending_message_id, active_image_id
		FROM sessions WHERE chat_id = ?`, chatID).
		Scan(&state, &task, &s.TaskDisplayName, &s.PendingMessageID, &s.ActiveImageID)
	if errors.Is(err, sql.ErrNoRows) {
		if err := r.Save(ctx, s); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select session %d: %w", chatID, err)
	}

	s.State = entity.SessionState(state)
	s.SelectedTask = entity.TaskID(task)
	return s, nil
}

// Save сохраняет состояние сессии
func (r *SQLiteSessionRepository) Save(ctx context.Context, s *entity.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (chat_id, state, selected_task, task_display_name, pending_message_id, active_image_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(chat_id) DO UPDATE SET
			state = excluded.state,
			selected_task = excluded.selected_task,
			task_display_name = excluded.task_display_name,
			pending_message_id = excluded.pending_message_id,
			active_image_id = excluded.active_image_id,
			updated_at = CURRENT_TIMESTAMP`,
		s.ChatID, string(s.State), string(s.SelectedTask), s.TaskDisplayName, s.PendingMessageID, s.ActiveImageID)
	if err != nil {
		return fmt.Errorf("upsert session %d: %w", s.ChatID, err)
	}
	return nil
}

// Close закрывает соединение с базой
func (r *SQLiteSessionRepository) Close() error {
	return r.db.Close()
}

var _ port.SessionRepository = (*SQLiteSessionRepository)(nil)
