package pipeline

import (
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "One.\nTwo.", []string{"One.", "Two."}},
		{"blank lines", "One.\n\n\nTwo.\n", []string{"One.", "Two."}},
		{"whitespace only", "\n\n   \n", nil},
		{"empty", "", nil},
		{"trims", "  One.  \r\n\tTwo.\t", []string{"One.", "Two."}},
		{"no alphanumerics", "One.\n***\n---\n...\nTwo.", []string{"One.", "Two."}},
		{"digits count", "3, 2, 1...\nGo!", []string{"3, 2, 1...", "Go!"}},
		{"non-ascii only", "¡¿…!\nYes.", []string{"Yes."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Segment(tt.in)
			texts := lo.Map(got, func(p Paragraph, _ int) string { return p.Text })
			if tt.want == nil {
				assert.Empty(t, texts)
				return
			}
			assert.Equal(t, tt.want, texts)
			for i, p := range got {
				assert.Equal(t, i, p.Index)
			}
		})
	}
}

func TestSegmentIsStableUnderRejoin(t *testing.T) {
	inputs := []string{
		"The fox ran.\n\n  The owl watched.  \n***\nThe end.",
		"a\nb\nc",
		"\n\n",
		"One long line without breaks",
	}
	for _, in := range inputs {
		first := Segment(in)
		joined := strings.Join(lo.Map(first, func(p Paragraph, _ int) string { return p.Text }), "\n")
		assert.Equal(t, first, Segment(joined), "input %q", in)
	}
}
