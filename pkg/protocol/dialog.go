package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a dialog message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleAssistant, RoleUser:
		return true
	}
	return false
}

// ContentPartType tags a ContentPart variant.
type ContentPartType string

const (
	PartTypeText     ContentPartType = "text"
	PartTypeImageURL ContentPartType = "image_url"
)

// ContentPart is one segment of a structured user message: either text or an image reference.
type ContentPart struct {
	Type     ContentPartType `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *ImageURL       `json:"image_url,omitempty"`
}

// ImageURL references an image by URL (http(s) or data URI).
type ImageURL struct {
	URL string `json:"url"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartTypeText, Text: text}
}

// ImagePart builds an image content part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartTypeImageURL, ImageURL: &ImageURL{URL: url}}
}

// Content is either plain text or an ordered sequence of parts.
// On the wire it is a JSON string or a JSON array.
type Content struct {
	Text  string
	Parts []ContentPart
}

// IsMultipart reports whether the content was given as a part sequence.
func (c Content) IsMultipart() bool { return c.Parts != nil }

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("content is empty")
	}
	switch data[0] {
	case '"':
		c.Parts = nil
		return json.Unmarshal(data, &c.Text)
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		if parts == nil {
			parts = []ContentPart{}
		}
		c.Text = ""
		c.Parts = parts
		return nil
	default:
		return fmt.Errorf("content must be a string or an array of parts")
	}
}

// DialogMessage is one turn of a conversation.
type DialogMessage struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// TextMessage builds a plain-text message.
func TextMessage(role Role, text string) DialogMessage {
	return DialogMessage{Role: role, Content: Content{Text: text}}
}

// PartsMessage builds a structured message from parts.
func PartsMessage(role Role, parts ...ContentPart) DialogMessage {
	if parts == nil {
		parts = []ContentPart{}
	}
	return DialogMessage{Role: role, Content: Content{Parts: parts}}
}

// Text flattens the message to text. Image parts are ignored.
func (m DialogMessage) Text() string {
	if !m.Content.IsMultipart() {
		return m.Content.Text
	}
	var texts []string
	for _, p := range m.Content.Parts {
		if p.Type == PartTypeText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// ImageURLs returns the image references of a structured message, in order.
func (m DialogMessage) ImageURLs() []string {
	var urls []string
	for _, p := range m.Content.Parts {
		if p.Type == PartTypeImageURL && p.ImageURL != nil {
			urls = append(urls, p.ImageURL.URL)
		}
	}
	return urls
}

// Validate checks the role and the role/content shape rules.
func (m DialogMessage) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("unknown role %q", m.Role)
	}
	if !m.Content.IsMultipart() {
		return nil
	}
	if m.Role != RoleUser {
		return fmt.Errorf("%s content must be plain text", m.Role)
	}
	if len(m.Content.Parts) == 0 {
		return fmt.Errorf("content parts are empty")
	}
	for i, p := range m.Content.Parts {
		switch p.Type {
		case PartTypeText:
		case PartTypeImageURL:
			if p.ImageURL == nil || strings.TrimSpace(p.ImageURL.URL) == "" {
				return fmt.Errorf("part %d: image_url.url is required", i)
			}
		default:
			return fmt.Errorf("part %d: unknown part type %q", i, p.Type)
		}
	}
	return nil
}

// DialogHistory is the ordered transcript of one conversation.
type DialogHistory []DialogMessage

// Validate enforces the entry invariants: non-empty, every message well-formed,
// and the last message authored by the user.
func (h DialogHistory) Validate() error {
	if len(h) == 0 {
		return &ValidationError{Field: "dialogHistory", Message: "must not be empty"}
	}
	for i, m := range h {
		if err := m.Validate(); err != nil {
			return &ValidationError{Field: fmt.Sprintf("dialogHistory[%d]", i), Message: err.Error()}
		}
	}
	if last := h[len(h)-1]; last.Role != RoleUser {
		return &ValidationError{Field: "dialogHistory", Message: fmt.Sprintf("last message must be from user, got %q", last.Role)}
	}
	return nil
}

// LatestUser returns the most recent user message, or a zero message if there is none.
func (h DialogHistory) LatestUser() DialogMessage {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Role == RoleUser {
			return h[i]
		}
	}
	return DialogMessage{}
}

// IsVisual reports whether the latest user message references an image.
func (h DialogHistory) IsVisual() bool {
	return len(h.LatestUser().ImageURLs()) > 0
}

// Clone returns a copy whose backing array is not shared with h.
func (h DialogHistory) Clone() DialogHistory {
	out := make(DialogHistory, len(h), len(h)+1)
	copy(out, h)
	return out
}
