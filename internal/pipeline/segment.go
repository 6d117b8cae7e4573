package pipeline

import (
	"strings"

	"github.com/samber/lo"
)

// Paragraph is one speakable unit of the assistant reply.
type Paragraph struct {
	Index int
	Text  string
}

// Segment splits text on newlines into trimmed paragraphs, dropping blank
// lines and lines without any ASCII letter or digit. Index is the position in
// the surviving sequence.
func Segment(text string) []Paragraph {
	kept := lo.FilterMap(strings.Split(text, "\n"), func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != "" && hasASCIIAlnum(line)
	})
	return lo.Map(kept, func(line string, i int) Paragraph {
		return Paragraph{Index: i, Text: line}
	})
}

func hasASCIIAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			return true
		}
	}
	return false
}
