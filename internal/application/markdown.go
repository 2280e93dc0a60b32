package app

import (
	"strings"
	"unicode/utf16"
)

var markdownV2Escapes = map[byte]bool{
	'\\': true,
	'_':  true,
	'*':  true,
	'[':  true,
	']':  true,
	'(':  true,
	')':  true,
	'~':  true,
	'`':  true,
	'>':  true,
	'#':  true,
	'+':  true,
	'-':  true,
	'=':  true,
	'|':  true,
	'{':  true,
	'}':  true,
	'.':  true,
	'!':  true,
}

// EscapeMarkdownV2 экранирует текст для вставки в сообщение MarkdownV2
func EscapeMarkdownV2(text string) string {
	if text == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + 8)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if markdownV2Escapes[ch] {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// EscapeMarkdownV2Code экранирует текст внутри ``` блока: там значимы только ` и \
func EscapeMarkdownV2Code(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	return strings.ReplaceAll(text, "`", "\\`")
}

// truncateEscaped обрезает уже экранированный текст до limit единиц UTF-16.
// Висящий одиночный обратный слэш отрезается, чтобы не сломать разметку.
func truncateEscaped(s string, limit int) string {
	if utf16Len(s) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	r := make([]rune, 0, limit)
	used := 0
	for _, c := range s {
		n := utf16.RuneLen(c)
		if n < 0 {
			n = 1
		}
		if used+n > limit {
			break
		}
		used += n
		r = append(r, c)
	}
	trailing := 0
	for i := len(r) - 1; i >= 0 && r[i] == '\\'; i-- {
		trailing++
	}
	if trailing%2 == 1 {
		r = r[:len(r)-1]
	}
	return string(r)
}

// utf16Len длина строки в единицах UTF-16, так считает лимиты Telegram
func utf16Len(s string) int {
	n := 0
	for _, c := range s {
		if l := utf16.RuneLen(c); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
