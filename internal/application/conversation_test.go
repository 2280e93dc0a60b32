package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
	"snapsense-bot/internal/infrastructure/storage"
	"snapsense-bot/internal/infrastructure/workspace"
)

const chatID int64 = 100

type sentMessage struct {
	ID  int
	Msg port.OutMessage
}

// fakeMessenger имитирует Telegram: хранит живые сообщения чата
type fakeMessenger struct {
	nextID  int
	live    map[int]port.OutMessage
	sent    []sentMessage
	edits   []sentMessage
	deleted []int

	failEdit     bool
	failPhoto    bool
	failDownload bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{nextID: 1, live: make(map[int]port.OutMessage)}
}

func (m *fakeMessenger) Send(_ context.Context, _ int64, msg port.OutMessage) (int, error) {
	if m.failPhoto && msg.PhotoPath != "" {
		return 0, errors.New("Bad Request: can't parse entities")
	}
	id := m.nextID
	m.nextID++
	m.live[id] = msg
	m.sent = append(m.sent, sentMessage{ID: id, Msg: msg})
	return id, nil
}

func (m *fakeMessenger) Edit(_ context.Context, _ int64, messageID int, msg port.OutMessage) (int, error) {
	if _, ok := m.live[messageID]; !ok || m.failEdit {
		return 0, errors.New("Bad Request: message to edit not found")
	}
	m.live[messageID] = msg
	m.edits = append(m.edits, sentMessage{ID: messageID, Msg: msg})
	return messageID, nil
}

func (m *fakeMessenger) Delete(_ context.Context, _ int64, messageID int) error {
	if _, ok := m.live[messageID]; !ok {
		return errors.New("Bad Request: message to delete not found")
	}
	delete(m.live, messageID)
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *fakeMessenger) Download(_ context.Context, _ string, dst string) error {
	if m.failDownload {
		return errors.New("file is too big")
	}
	return os.WriteFile(dst, []byte("jpeg"), 0o644)
}

func (m *fakeMessenger) last() port.OutMessage {
	return m.sent[len(m.sent)-1].Msg
}

func (m *fakeMessenger) texts() []string {
	out := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.Msg.Text)
	}
	return out
}

// intermediary сколько живых промежуточных сообщений в чате
func (m *fakeMessenger) intermediary() []int {
	var ids []int
	for id, msg := range m.live {
		if isIntermediary(msg) {
			ids = append(ids, id)
		}
	}
	return ids
}

func isIntermediary(msg port.OutMessage) bool {
	return len(msg.Menu) > 0 ||
		msg.Text == msgProcessing ||
		strings.HasPrefix(msg.Text, "✅ Task selected:")
}

type harness struct {
	conv      *Conversation
	messenger *fakeMessenger
	sessions  *SessionService
	root      string
	calls     *int32
}

func newHarness(t *testing.T, capability port.CapabilityFunc) *harness {
	t.Helper()
	var calls int32
	counted := port.CapabilityFunc(func(ctx context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
		atomic.AddInt32(&calls, 1)
		return capability(ctx, req)
	})

	registry := entity.DefaultRegistry()
	dispatcher, err := NewDispatcher(registry, allCapabilities(counted), newTestPool(t), nil, nil)
	require.NoError(t, err)

	root := filepath.Join(t.TempDir(), "database")
	ws := workspace.New(root)
	require.NoError(t, ws.Reset())

	sessions := NewSessionService(storage.NewMemorySessionRepository())
	messenger := newFakeMessenger()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &harness{
		conv:      NewConversation(sessions, registry, dispatcher, NewPresenter(), messenger, ws, nil, logger),
		messenger: messenger,
		sessions:  sessions,
		root:      root,
		calls:     &calls,
	}
}

func (h *harness) session(t *testing.T) *entity.Session {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), chatID)
	require.NoError(t, err)
	return s
}

// update правит сохранённую сессию в обход автомата
func (h *harness) update(t *testing.T, fn func(*entity.Session)) {
	t.Helper()
	s := h.session(t)
	fn(s)
	require.NoError(t, h.sessions.Save(context.Background(), s))
}

// checkInvariants проверяет: задача выбрана iff TaskSelected/Processing,
// живо не больше одного промежуточного сообщения и это именно pending.
func (h *harness) checkInvariants(t *testing.T) {
	t.Helper()
	s := h.session(t)
	inTask := s.State == entity.StateTaskSelected || s.State == entity.StateProcessing
	require.Equal(t, inTask, s.HasTask(), "selected_task must be set iff a task is in progress")

	live := h.messenger.intermediary()
	require.LessOrEqual(t, len(live), 1, "leaked intermediary messages: %v", live)
	if len(live) == 1 {
		require.Equal(t, live[0], s.PendingMessageID)
	}
}

func (h *harness) workDirs(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(h.root)
	require.NoError(t, err)
	return entries
}

func annotated(objects ...entity.ObjectCount) port.CapabilityFunc {
	return func(_ context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
		dir, err := workspace.TaskDir(req.WorkDir, "object_detection")
		if err != nil {
			return nil, err
		}
		out := filepath.Join(dir, req.ImageID+".jpg")
		if err := os.WriteFile(out, []byte("annotated"), 0o644); err != nil {
			return nil, err
		}
		return &entity.Envelope{ImagePath: out, Objects: objects, Speed: &entity.SpeedStats{}}, nil
	}
}

func (h *harness) startAndSelect(t *testing.T, task entity.TaskID) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.conv.Start(ctx, chatID))
	h.checkInvariants(t)
	menuID := h.session(t).PendingMessageID
	require.NotZero(t, menuID)

	require.NoError(t, h.conv.SelectTask(ctx, chatID, menuID, string(task)))
	h.checkInvariants(t)
}

func TestConversation_ObjectDetectionScenario(t *testing.T) {
	h := newHarness(t, annotated(entity.ObjectCount{Label: "person", Count: 2}, entity.ObjectCount{Label: "dog", Count: 1}))
	ctx := context.Background()

	h.startAndSelect(t, entity.TaskObjectDetection)
	s := h.session(t)
	require.Equal(t, entity.StateTaskSelected, s.State)
	require.Equal(t, entity.TaskObjectDetection, s.SelectedTask)
	require.Equal(t, "Object Detection", s.TaskDisplayName)
	require.Len(t, h.messenger.edits, 1)
	require.Equal(t, "✅ Task selected: Object Detection.\n\n👇 Now, please send me the photo you want to analyze.", h.messenger.edits[0].Msg.Text)

	require.NoError(t, h.conv.ReceivePhoto(ctx, chatID, "file-1"))
	h.checkInvariants(t)

	texts := h.messenger.texts()
	require.Equal(t, []string{msgStart, msgProcessing}, texts[:2])

	result := h.messenger.sent[2].Msg
	require.NotEmpty(t, result.PhotoPath)
	require.True(t, result.Markdown)
	require.Contains(t, result.Text, "Object Detection")
	require.Contains(t, result.Text, "🔹 person: 2")

	require.Equal(t, msgMenu, h.messenger.last().Text)
	require.NotEmpty(t, h.messenger.last().Menu)

	s = h.session(t)
	require.Equal(t, entity.StateIdle, s.State)
	require.Empty(t, s.ActiveImageID)
	require.Equal(t, h.messenger.sent[len(h.messenger.sent)-1].ID, s.PendingMessageID)
	require.Empty(t, h.workDirs(t))
	require.Equal(t, int32(1), atomic.LoadInt32(h.calls))

	// подсказка выбора и «обрабатываю» удалены, результат остался
	_, ackAlive := h.messenger.live[h.messenger.sent[1].ID]
	require.False(t, ackAlive)
	_, resultAlive := h.messenger.live[h.messenger.sent[2].ID]
	require.True(t, resultAlive)
}

func TestConversation_TextExtractionBlankPage(t *testing.T) {
	h := newHarness(t, func(context.Context, entity.ProcessRequest) (*entity.Envelope, error) {
		return &entity.Envelope{Text: ""}, nil
	})
	ctx := context.Background()

	h.startAndSelect(t, entity.TaskTextExtraction)
	require.NoError(t, h.conv.ReceivePhoto(ctx, chatID, "file-1"))
	h.checkInvariants(t)

	result := h.messenger.sent[2].Msg
	require.Empty(t, result.PhotoPath)
	require.True(t, strings.HasSuffix(result.Text, msgNoText))
	require.Equal(t, entity.StateIdle, h.session(t).State)
	require.Empty(t, h.workDirs(t))
}

func TestConversation_PhotoWithoutTask(t *testing.T) {
	h := newHarness(t, annotated())
	ctx := context.Background()

	require.NoError(t, h.conv.Start(ctx, chatID))
	before := h.session(t)

	require.ErrorIs(t, h.conv.ReceivePhoto(ctx, chatID, "file-1"), entity.ErrNoTaskSelected)
	h.checkInvariants(t)

	require.Equal(t, []string{msgStart, msgInvalidState}, h.messenger.texts())
	require.Zero(t, atomic.LoadInt32(h.calls))
	require.Equal(t, before, h.session(t))
	require.Empty(t, h.workDirs(t))
}

func TestConversation_PhotoBeforeAnyInteraction(t *testing.T) {
	h := newHarness(t, annotated())

	require.ErrorIs(t, h.conv.ReceivePhoto(context.Background(), chatID, "file-1"), entity.ErrNoTaskSelected)
	require.Equal(t, []string{msgInvalidState}, h.messenger.texts())
	require.Equal(t, entity.StateIdle, h.session(t).State)
	require.Zero(t, atomic.LoadInt32(h.calls))
}

func TestConversation_CapabilityFailure(t *testing.T) {
	h := newHarness(t, func(context.Context, entity.ProcessRequest) (*entity.Envelope, error) {
		return nil, errors.New("CUDA error: out of memory")
	})
	ctx := context.Background()

	h.startAndSelect(t, entity.TaskImageSegmentation)
	require.NoError(t, h.conv.ReceivePhoto(ctx, chatID, "file-1"))
	h.checkInvariants(t)

	texts := h.messenger.texts()
	require.Contains(t, texts, "❌ Error processing image segmentation 😥\n\nPlease try again with another photo.")
	require.Equal(t, msgMenu, h.messenger.last().Text)

	s := h.session(t)
	require.Equal(t, entity.StateIdle, s.State)
	require.Empty(t, s.ActiveImageID)
	require.Empty(t, h.workDirs(t))
}

func TestConversation_DownloadFailure(t *testing.T) {
	h := newHarness(t, annotated())
	h.messenger.failDownload = true
	ctx := context.Background()

	h.startAndSelect(t, entity.TaskObjectDetection)
	require.NoError(t, h.conv.ReceivePhoto(ctx, chatID, "file-1"))
	h.checkInvariants(t)

	require.Contains(t, h.messenger.texts(), msgGenericError)
	require.Zero(t, atomic.LoadInt32(h.calls))
	require.Equal(t, entity.StateIdle, h.session(t).State)
	require.Empty(t, h.workDirs(t))
}

func TestConversation_UnknownCallback(t *testing.T) {
	h := newHarness(t, annotated())
	ctx := context.Background()

	require.NoError(t, h.conv.Start(ctx, chatID))
	before := h.session(t)
	sent := len(h.messenger.sent)

	err := h.conv.SelectTask(ctx, chatID, before.PendingMessageID, "face_swap")
	require.ErrorIs(t, err, entity.ErrUnknownTask)
	require.Equal(t, before, h.session(t))
	require.Len(t, h.messenger.sent, sent)
	require.Empty(t, h.messenger.edits)
	h.checkInvariants(t)
}

func TestConversation_CancelInIdleOnlyShowsMenu(t *testing.T) {
	h := newHarness(t, annotated())
	ctx := context.Background()

	require.NoError(t, h.conv.Cancel(ctx, chatID))
	h.checkInvariants(t)
	require.NoError(t, h.conv.Cancel(ctx, chatID))
	h.checkInvariants(t)

	require.Equal(t, []string{msgCancelled, msgCancelled}, h.messenger.texts())
	require.Len(t, h.messenger.live, 1)
	require.Equal(t, entity.StateIdle, h.session(t).State)
	require.Empty(t, h.workDirs(t))
}

func TestConversation_CancelAfterSelection(t *testing.T) {
	h := newHarness(t, annotated())
	ctx := context.Background()

	h.startAndSelect(t, entity.TaskNudityDetection)
	promptID := h.session(t).PendingMessageID

	require.NoError(t, h.conv.Cancel(ctx, chatID))
	h.checkInvariants(t)

	require.Contains(t, h.messenger.deleted, promptID)
	s := h.session(t)
	require.Equal(t, entity.StateIdle, s.State)
	require.False(t, s.HasTask())
	require.Equal(t, msgCancelled, h.messenger.last().Text)

	// после отмены фото снова требует выбора задачи
	require.ErrorIs(t, h.conv.ReceivePhoto(ctx, chatID, "file-1"), entity.ErrNoTaskSelected)
	require.Equal(t, msgInvalidState, h.messenger.last().Text)
	require.Zero(t, atomic.LoadInt32(h.calls))
}

func TestConversation_CancelRemovesActiveWorkDir(t *testing.T) {
	h := newHarness(t, annotated())
	ctx := context.Background()

	h.startAndSelect(t, entity.TaskObjectDetection)

	// прерванный цикл: сессия осталась в Processing с папкой на диске
	dir, err := workspace.New(h.root).Create()
	require.NoError(t, err)
	h.update(t, func(s *entity.Session) { s.BeginProcessing(dir.ImageID) })

	require.NoError(t, h.conv.Cancel(ctx, chatID))
	h.checkInvariants(t)
	require.Empty(t, h.workDirs(t))
	require.Empty(t, h.session(t).ActiveImageID)
}

func TestConversation_StartResetsSelection(t *testing.T) {
	h := newHarness(t, annotated())
	ctx := context.Background()

	h.startAndSelect(t, entity.TaskBackgroundRemoval)
	require.NoError(t, h.conv.Start(ctx, chatID))
	h.checkInvariants(t)

	s := h.session(t)
	require.Equal(t, entity.StateIdle, s.State)
	require.False(t, s.HasTask())
	require.Equal(t, msgStart, h.messenger.last().Text)
}

func TestConversation_ReselectTask(t *testing.T) {
	h := newHarness(t, annotated())
	ctx := context.Background()

	h.startAndSelect(t, entity.TaskObjectDetection)
	promptID := h.session(t).PendingMessageID

	// кнопка на устаревшем меню: прежняя подсказка удаляется
	stale, err := h.messenger.Send(ctx, chatID, port.OutMessage{Text: "old menu"})
	require.NoError(t, err)
	require.NoError(t, h.conv.SelectTask(ctx, chatID, stale, string(entity.TaskEmotionRecognition)))
	h.checkInvariants(t)

	require.Contains(t, h.messenger.deleted, promptID)
	s := h.session(t)
	require.Equal(t, entity.TaskEmotionRecognition, s.SelectedTask)
	require.Equal(t, stale, s.PendingMessageID)
}

func TestConversation_EditFailureSendsPrompt(t *testing.T) {
	h := newHarness(t, annotated())
	h.messenger.failEdit = true
	ctx := context.Background()

	require.NoError(t, h.conv.Start(ctx, chatID))
	menuID := h.session(t).PendingMessageID
	require.NoError(t, h.conv.SelectTask(ctx, chatID, menuID, string(entity.TaskTextExtraction)))
	h.checkInvariants(t)

	s := h.session(t)
	require.Equal(t, entity.StateTaskSelected, s.State)
	require.NotEqual(t, menuID, s.PendingMessageID)
	require.Contains(t, h.messenger.deleted, menuID)
	require.True(t, strings.HasPrefix(h.messenger.last().Text, "✅ Task selected: Text Extraction."))
}

func TestConversation_RenderFailureFallsBack(t *testing.T) {
	h := newHarness(t, func(_ context.Context, req entity.ProcessRequest) (*entity.Envelope, error) {
		return &entity.Envelope{ImagePath: filepath.Join(req.WorkDir, "missing.png")}, nil
	})
	ctx := context.Background()

	h.startAndSelect(t, entity.TaskBackgroundRemoval)
	require.NoError(t, h.conv.ReceivePhoto(ctx, chatID, "file-1"))
	h.checkInvariants(t)

	require.Contains(t, h.messenger.texts(), "✅ Background Removal is complete, but the result could not be formatted.")
	require.Equal(t, entity.StateIdle, h.session(t).State)
	require.Empty(t, h.workDirs(t))
}

func TestConversation_SendResultFailureFallsBack(t *testing.T) {
	h := newHarness(t, annotated(entity.ObjectCount{Label: "cat", Count: 1}))
	h.messenger.failPhoto = true
	ctx := context.Background()

	h.startAndSelect(t, entity.TaskObjectDetection)
	require.NoError(t, h.conv.ReceivePhoto(ctx, chatID, "file-1"))
	h.checkInvariants(t)

	require.Contains(t, h.messenger.texts(), "✅ Object Detection is complete, but the result could not be formatted.")
	require.Equal(t, msgMenu, h.messenger.last().Text)
}

func TestConversation_Recover(t *testing.T) {
	h := newHarness(t, annotated())
	ctx := context.Background()

	h.startAndSelect(t, entity.TaskObjectDetection)
	dir, err := workspace.New(h.root).Create()
	require.NoError(t, err)
	h.update(t, func(s *entity.Session) { s.BeginProcessing(dir.ImageID) })

	h.conv.Recover(ctx, chatID, errors.New("nil pointer dereference"))
	h.checkInvariants(t)

	s := h.session(t)
	require.Equal(t, entity.StateIdle, s.State)
	require.Zero(t, s.PendingMessageID)
	require.Empty(t, h.workDirs(t))
	require.Equal(t, msgGenericError, h.messenger.last().Text)
}

func TestConversation_PhotoWhileProcessingIsDropped(t *testing.T) {
	h := newHarness(t, annotated())
	ctx := context.Background()

	h.startAndSelect(t, entity.TaskObjectDetection)
	h.update(t, func(s *entity.Session) { s.BeginProcessing("in-flight") })

	require.NoError(t, h.conv.ReceivePhoto(ctx, chatID, "file-2"))
	require.Equal(t, msgBusy, h.messenger.last().Text)
	require.Zero(t, atomic.LoadInt32(h.calls))
	require.Equal(t, entity.StateProcessing, h.session(t).State)
}

func TestConversation_ReceiveText(t *testing.T) {
	h := newHarness(t, annotated())
	ctx := context.Background()

	require.NoError(t, h.conv.ReceiveText(ctx, chatID))
	require.Equal(t, msgUseMenu, h.messenger.last().Text)

	h.startAndSelect(t, entity.TaskObjectDetection)
	require.NoError(t, h.conv.ReceiveText(ctx, chatID))
	require.Equal(t, msgSendPhoto, h.messenger.last().Text)
	require.Equal(t, entity.StateTaskSelected, h.session(t).State)
}

func TestConversation_RepeatedCycles(t *testing.T) {
	h := newHarness(t, annotated(entity.ObjectCount{Label: "car", Count: 3}))
	ctx := context.Background()

	require.NoError(t, h.conv.Start(ctx, chatID))
	for i := 0; i < 3; i++ {
		menuID := h.session(t).PendingMessageID
		require.NoError(t, h.conv.SelectTask(ctx, chatID, menuID, string(entity.TaskObjectDetection)))
		h.checkInvariants(t)
		require.NoError(t, h.conv.ReceivePhoto(ctx, chatID, "file"))
		h.checkInvariants(t)
		require.Empty(t, h.workDirs(t))
	}
	require.Equal(t, int32(3), atomic.LoadInt32(h.calls))
}
