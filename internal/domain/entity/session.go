package entity

// SessionState состояние диалога с пользователем
type SessionState string

const (
	StateIdle         SessionState = "idle"          // Главное меню, задача не выбрана
	StateTaskSelected SessionState = "task_selected" // Задача выбрана, ждём фото
	StateProcessing   SessionState = "processing"    // Фото получено, модель работает
)

// Session хранит состояние одного чата
type Session struct {
	ChatID           int64        // Telegram Chat ID
	State            SessionState // Текущее состояние диалога
	SelectedTask     TaskID       // Выбранная задача (пусто в Idle)
	TaskDisplayName  string       // Человекочитаемое имя выбранной задачи
	PendingMessageID int          // Последнее промежуточное сообщение бота (0: нет)
	ActiveImageID    string       // Идентификатор обрабатываемого изображения
}

// NewSession создаёт сессию в начальном состоянии
func NewSession(chatID int64) *Session {
	return &Session{
		ChatID: chatID,
		State:  StateIdle,
	}
}

// SelectTask запоминает выбранную задачу и переводит сессию в ожидание фото.
func (s *Session) SelectTask(d Descriptor) {
	s.SelectedTask = d.ID
	s.TaskDisplayName = d.Name
	s.ActiveImageID = ""
	s.State = StateTaskSelected
}

// BeginProcessing фиксирует изображение, которое сейчас обрабатывается.
func (s *Session) BeginProcessing(imageID string) {
	s.ActiveImageID = imageID
	s.State = StateProcessing
}

// Reset возвращает сессию в Idle. PendingMessageID не трогаем:
// сообщение живёт в чате, пока его явно не удалят.
func (s *Session) Reset() {
	s.SelectedTask = ""
	s.TaskDisplayName = ""
	s.ActiveImageID = ""
	s.State = StateIdle
}

// HasTask сообщает, выбрана ли задача
func (s *Session) HasTask() bool {
	return s.SelectedTask != ""
}

// Clone возвращает независимую копию сессии
func (s *Session) Clone() *Session {
	c := *s
	return &c
}
