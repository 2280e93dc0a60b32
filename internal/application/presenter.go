package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/domain/port"
)

const (
	// Лимиты Telegram (4096 и 1024) с запасом на подсчёт в UTF-16
	textLimit    = 4000
	captionLimit = 1000
	ellipsis     = "…"
)

// Presenter превращает результат модели в сообщение для пользователя
type Presenter struct{}

func NewPresenter() *Presenter {
	return &Presenter{}
}

// Render выбирает форматтер по задаче
func (p *Presenter) Render(desc entity.Descriptor, env *entity.Envelope) (port.OutMessage, error) {
	if env == nil {
		return port.OutMessage{}, errors.New("empty result")
	}

	switch desc.ID {
	case entity.TaskObjectDetection:
		return p.photo(desc, env, objectSummary(env.Objects))
	case entity.TaskNudityDetection:
		return p.photo(desc, env, nuditySummary(env.Classes))
	case entity.TaskImageSegmentation:
		return p.photo(desc, env, fmt.Sprintf(tplSegments, env.Segments))
	case entity.TaskBackgroundRemoval:
		return p.photo(desc, env, "")
	case entity.TaskTextExtraction:
		return p.text(desc, env), nil
	case entity.TaskEmotionRecognition:
		return p.emotions(desc, env), nil
	default:
		return port.OutMessage{}, fmt.Errorf("%w: no formatter for %q", entity.ErrUnknownTask, desc.ID)
	}
}

// Fallback простое уведомление, когда результат не удалось оформить
func (p *Presenter) Fallback(desc entity.Descriptor) port.OutMessage {
	return port.OutMessage{Text: fmt.Sprintf(msgFormatFallback, desc.Name)}
}

func (p *Presenter) photo(desc entity.Descriptor, env *entity.Envelope, summary string) (port.OutMessage, error) {
	if env.ImagePath == "" {
		return port.OutMessage{}, errors.New("result image is missing")
	}
	if _, err := os.Stat(env.ImagePath); err != nil {
		return port.OutMessage{}, fmt.Errorf("result image: %w", err)
	}

	head := fmt.Sprintf(tplResultHeader, EscapeMarkdownV2(desc.Name)) +
		fmt.Sprintf(tplModelInfo, EscapeMarkdownV2(env.ModelName))
	tail := ""
	if env.Speed != nil {
		tail = "\n\n" + speedStats(env.Speed)
	}

	caption := head
	if summary != "" {
		budget := captionLimit - utf16Len(head) - utf16Len(tail) - 2
		caption += "\n\n" + fit(summary, budget)
	}
	caption += tail

	return port.OutMessage{Text: caption, PhotoPath: env.ImagePath, Markdown: true}, nil
}

func (p *Presenter) text(desc entity.Descriptor, env *entity.Envelope) port.OutMessage {
	head := fmt.Sprintf(tplTextHeader, EscapeMarkdownV2(desc.Name)) +
		fmt.Sprintf(tplModelInfo, EscapeMarkdownV2(env.ModelName)) + "\n\n"

	text := strings.TrimSpace(env.Text)
	if text == "" {
		return port.OutMessage{Text: head + msgNoText, Markdown: true}
	}

	// 8 символов уходит на ``` и переводы строк
	budget := textLimit - utf16Len(head) - 8
	body := fit(EscapeMarkdownV2Code(text), budget)
	return port.OutMessage{Text: head + fmt.Sprintf(tplCodeBlock, body), Markdown: true}
}

func (p *Presenter) emotions(desc entity.Descriptor, env *entity.Envelope) port.OutMessage {
	head := fmt.Sprintf(tplEmotionHeader, EscapeMarkdownV2(desc.Name)) +
		fmt.Sprintf(tplModelInfo, EscapeMarkdownV2(env.ModelName)) + "\n\n"

	if len(env.Faces) == 0 {
		return port.OutMessage{Text: head + msgNoFaces, Markdown: true}
	}

	var b strings.Builder
	b.WriteString(head)
	b.WriteString(fmt.Sprintf(tplFacesDetected, len(env.Faces), plural(len(env.Faces))))
	for i, face := range env.Faces {
		block := fmt.Sprintf(tplFace, i+1, EscapeMarkdownV2(face.Dominant), EscapeMarkdownV2Code(emotionTable(face.Scores)))
		if utf16Len(b.String())+utf16Len(block) > textLimit-1 {
			b.WriteString(ellipsis)
			break
		}
		b.WriteString(block)
	}

	return port.OutMessage{Text: strings.TrimRight(b.String(), "\n"), Markdown: true}
}

func objectSummary(objects []entity.ObjectCount) string {
	if len(objects) == 0 {
		return msgNoObjects
	}
	lines := make([]string, 0, len(objects))
	for _, o := range objects {
		lines = append(lines, fmt.Sprintf(tplObjectLine, EscapeMarkdownV2(o.Label), o.Count))
	}
	return strings.Join(lines, "\n")
}

func nuditySummary(classes []string) string {
	if len(classes) == 0 {
		return msgNoNudity
	}
	escaped := make([]string, 0, len(classes))
	for _, c := range classes {
		escaped = append(escaped, EscapeMarkdownV2(c))
	}
	return fmt.Sprintf(tplNudityDetected, strings.Join(escaped, "\n• "))
}

func speedStats(s *entity.SpeedStats) string {
	return fmt.Sprintf(tplSpeedStats, ms(s.Preprocess.Seconds()), ms(s.Inference.Seconds()), ms(s.Postprocess.Seconds()))
}

func ms(seconds float64) float64 {
	return seconds * 1000
}

func emotionTable(scores []entity.EmotionScore) string {
	lines := make([]string, 0, len(scores))
	for _, s := range scores {
		lines = append(lines, fmt.Sprintf("%-10s %6.2f%%", s.Emotion, s.Percent))
	}
	return strings.Join(lines, "\n")
}

// fit обрезает экранированный текст до budget рун с многоточием
func fit(s string, budget int) string {
	if utf16Len(s) <= budget {
		return s
	}
	return truncateEscaped(s, budget-1) + ellipsis
}
