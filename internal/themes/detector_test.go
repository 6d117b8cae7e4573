package themes

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() *Detector {
	return NewDetectorWithRand(rand.New(rand.NewPCG(1, 2)))
}

func TestDetectMatchesKeywords(t *testing.T) {
	d := seeded()

	tests := []struct {
		text string
		want []Tag
	}{
		{"Tell me a story about a dragon", []Tag{Adventure}},
		{"TELL ME ABOUT DRAGONS!", []Tag{Adventure}},
		{"My grandma has a magic wand", []Tag{Family, Magic}},
		{"a robot and a wizard went on a quest", []Tag{Adventure, Magic, SciFi}},
		{"something funny about my brother", []Tag{Family, Comedy}},
		{"I am scared of the dark", []Tag{Growth}},
		{"the first day at school", []Tag{Friendship, Growth}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.text))
		})
	}
}

func TestDetectKeywordMustStartWord(t *testing.T) {
	// "cave" inside "excavate" is not a word start.
	got := seeded().Detect("excavate")
	require.Len(t, got, 1)
}

func TestDetectNeverEmpty(t *testing.T) {
	d := seeded()
	for _, text := range []string{"", "   ", "qwzx", "12345", "🙂🙂"} {
		got := d.Detect(text)
		require.Len(t, got, 1, "text %q", text)
		_, ok := Lookup(got[0])
		assert.True(t, ok)
	}
}

func TestDetectFallbackCoversRegistry(t *testing.T) {
	d := seeded()
	seen := map[Tag]bool{}
	for range 500 {
		seen[d.Detect("")[0]] = true
	}
	assert.Len(t, seen, len(All()))
}

func TestDetectFallbackIsDeterministicWithSeed(t *testing.T) {
	a, b := seeded(), seeded()
	for range 20 {
		assert.Equal(t, a.Detect("nothing here"), b.Detect("nothing here"))
	}
}

func TestRegistryOrder(t *testing.T) {
	assert.Equal(t, []Tag{Adventure, Family, Friendship, Magic, SciFi, Comedy, Growth}, Tags())
	for _, th := range All() {
		assert.NotEmpty(t, th.StoryGuidance, th.Tag)
		assert.NotEmpty(t, th.QnAGuidance, th.Tag)
		assert.NotEmpty(t, th.Keywords, th.Tag)
	}
}
