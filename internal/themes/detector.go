package themes

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
)

// Detector maps text to theme tags. Safe for concurrent use.
type Detector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewDetector returns a detector seeded from the clock.
func NewDetector() *Detector {
	now := uint64(time.Now().UnixNano())
	return NewDetectorWithRand(rand.New(rand.NewPCG(now, now>>1|1)))
}

// NewDetectorWithRand returns a detector using r for the no-match fallback.
func NewDetectorWithRand(r *rand.Rand) *Detector {
	return &Detector{rnd: r}
}

// Detect returns the tags whose keywords appear in text, in registry order.
// When nothing matches it returns exactly one tag chosen uniformly at random.
// A keyword matches at the start of a word, so "dragons" matches "dragon".
func (d *Detector) Detect(text string) []Tag {
	norm := normalize(text)
	matched := lo.FilterMap(registry, func(th Theme, _ int) (Tag, bool) {
		return th.Tag, lo.SomeBy(th.Keywords, func(kw string) bool {
			return strings.Contains(norm, " "+kw)
		})
	})
	if len(matched) > 0 {
		return matched
	}

	d.mu.Lock()
	i := d.rnd.IntN(len(registry))
	d.mu.Unlock()
	return []Tag{registry[i].Tag}
}

// normalize case-folds text and collapses every non-alphanumeric run into a
// single space, with a leading and trailing space so word starts are " w".
func normalize(text string) string {
	folded := cases.Fold().String(text)
	var b strings.Builder
	b.Grow(len(folded) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}
