package telegram

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf16"

	"github.com/gotd/td/tg"
)

// span wraps a UTF-16 range of the message text in markdown.
type span struct {
	start, end int
	open       string
	close      string
}

type mark struct {
	pos  int
	text string
	open bool
	span int
}

// Markdown renders message text with its formatting entities as markdown.
// Entity offsets count UTF-16 code units.
func Markdown(text string, entities []tg.MessageEntityClass) string {
	if len(entities) == 0 {
		return text
	}

	units := utf16.Encode([]rune(text))
	spans := make([]span, 0, len(entities))
	for _, e := range entities {
		if s, ok := spanOf(units, e); ok {
			spans = append(spans, s)
		}
	}
	if len(spans) == 0 {
		return text
	}

	// Outer spans open first so that nested ones close inside them.
	slices.SortStableFunc(spans, func(a, b span) int {
		if c := cmp.Compare(a.start, b.start); c != 0 {
			return c
		}
		return cmp.Compare(b.end, a.end)
	})

	marks := make([]mark, 0, 2*len(spans))
	for i, s := range spans {
		marks = append(marks,
			mark{pos: s.start, text: s.open, open: true, span: i},
			mark{pos: s.end, text: s.close, span: i},
		)
	}
	slices.SortStableFunc(marks, func(a, b mark) int {
		if c := cmp.Compare(a.pos, b.pos); c != 0 {
			return c
		}
		switch {
		case a.open != b.open:
			// Close before open at the same position.
			if a.open {
				return 1
			}
			return -1
		case a.open:
			return cmp.Compare(a.span, b.span)
		default:
			return cmp.Compare(b.span, a.span)
		}
	})

	var sb strings.Builder
	next := 0
	for i := 0; i <= len(units); i++ {
		for next < len(marks) && marks[next].pos == i {
			sb.WriteString(marks[next].text)
			next++
		}
		if i == len(units) {
			break
		}
		if utf16.IsSurrogate(rune(units[i])) && i+1 < len(units) {
			sb.WriteRune(utf16.DecodeRune(rune(units[i]), rune(units[i+1])))
			i++
			continue
		}
		sb.WriteRune(rune(units[i]))
	}
	return sb.String()
}

func spanOf(units []uint16, entity tg.MessageEntityClass) (span, bool) {
	start := entity.GetOffset()
	if start < 0 || start > len(units) {
		return span{}, false
	}
	end := min(start+entity.GetLength(), len(units))
	s := span{start: start, end: end}

	switch e := entity.(type) {
	case *tg.MessageEntityBold, *tg.MessageEntityMention, *tg.MessageEntityHashtag, *tg.MessageEntityMentionName:
		s.open, s.close = "**", "**"
	case *tg.MessageEntityItalic, *tg.MessageEntityUnderline:
		s.open, s.close = "*", "*"
	case *tg.MessageEntityCode, *tg.MessageEntityBotCommand:
		s.open, s.close = "`", "`"
	case *tg.MessageEntityPre:
		s.open, s.close = "```"+e.Language+"\n", "\n```"
	case *tg.MessageEntityStrike:
		s.open, s.close = "~~", "~~"
	case *tg.MessageEntitySpoiler:
		s.open, s.close = "||", "||"
	case *tg.MessageEntityBlockquote:
		s.open = "> "
	case *tg.MessageEntityTextURL:
		s.open, s.close = "[", "]("+e.URL+")"
	case *tg.MessageEntityURL:
		s.open, s.close = "[", "]("+utf16Slice(units, start, end)+")"
	case *tg.MessageEntityEmail:
		s.open, s.close = "[", "](mailto:"+utf16Slice(units, start, end)+")"
	default:
		return span{}, false
	}
	return s, true
}

func utf16Slice(units []uint16, start, end int) string {
	if start >= end {
		return ""
	}
	return string(utf16.Decode(units[start:end]))
}
