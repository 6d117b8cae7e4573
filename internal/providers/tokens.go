package providers

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

// Per-message framing overhead used by OpenAI chat models.
const tokensPerMessage = 3

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		// Encoding files are fetched lazily; when unavailable we estimate.
		if e, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			enc = e
		}
	})
	return enc
}

// CountTokens estimates the prompt size of msgs. Image parts are not counted.
func CountTokens(msgs []protocol.DialogMessage) int {
	e := encoding()
	total := 0
	for _, m := range msgs {
		total += tokensPerMessage
		text := m.Text()
		if e != nil {
			total += len(e.Encode(text, nil, nil))
		} else {
			total += (utf8.RuneCountInString(text) + 3) / 4
		}
	}
	return total
}
