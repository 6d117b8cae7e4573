package prompt

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/storycast/internal/themes"
	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

// Day hours are [dayStart, dayEnd); everything else is night.
const (
	dayStart = 6
	dayEnd   = 18
)

// Compose builds the system instruction. The output depends only on in.
func Compose(in Input) string {
	var sb strings.Builder

	sb.WriteString(framing(in.Age, in.Mode))

	for _, tag := range in.Themes {
		th, ok := themes.Lookup(tag)
		if !ok {
			continue
		}
		sb.WriteString("\n\n")
		if in.Mode == ModeStory {
			sb.WriteString(th.StoryGuidance)
		} else {
			sb.WriteString(th.QnAGuidance)
		}
	}

	sb.WriteString("\n\n")
	sb.WriteString("Write plain text only. Do not use markdown, lists, headings, emoji, code or any other markup. " +
		"Separate paragraphs with a single line break; every paragraph will be read aloud on its own.")

	if in.Modality == Visual {
		sb.WriteString("\n\n")
		focus := "what is shown in the attached image"
		if f, ok := taskFocus[in.Task]; ok {
			focus = f
		}
		fmt.Fprintf(&sb, "The child has shared an image. Focus on %s.", focus)
		if in.Task != "" {
			fmt.Fprintf(&sb, " Task: %s.", in.Task)
		}
	}

	if in.Mode == ModeStory {
		sb.WriteString("\n\n")
		sb.WriteString(`Open the story in a fresh way. Never begin with "Once upon a time" or any other stock phrase.`)

		if in.LocalTime != nil {
			sb.WriteString("\n\n")
			if h := in.LocalTime.Hour(); h >= dayStart && h < dayEnd {
				sb.WriteString("It is daytime for the child. End the story on an energetic, curious note that invites play.")
			} else {
				sb.WriteString("It is night for the child. End the story calmly and softly so it helps them fall asleep.")
			}
		}
	}

	return sb.String()
}

func framing(age int, mode Mode) string {
	listener := "a young child"
	if age > 0 {
		listener = fmt.Sprintf("a %d-year-old child", age)
	}
	if mode == ModeStory {
		return fmt.Sprintf("You are a warm, imaginative storyteller telling an original story to %s. "+
			"Use vocabulary and sentence length suited to that age, and keep everything gentle and safe.", listener)
	}
	return fmt.Sprintf("You are a patient, friendly guide answering questions from %s. "+
		"Give accurate answers in short, simple sentences suited to that age.", listener)
}

// Messages builds the full sequence sent to the model: the system message,
// the optional welcome assistant turn, then history verbatim.
func Messages(system, welcome string, history protocol.DialogHistory) []protocol.DialogMessage {
	msgs := make([]protocol.DialogMessage, 0, len(history)+2)
	msgs = append(msgs, protocol.TextMessage(protocol.RoleSystem, system))
	if welcome != "" {
		msgs = append(msgs, protocol.TextMessage(protocol.RoleAssistant, welcome))
	}
	return append(msgs, history...)
}
