// Package prompt builds the system instruction and message sequence for one
// story or qna completion.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/storycast/internal/themes"
)

// Mode selects the kind of reply.
type Mode string

const (
	ModeStory Mode = "story"
	ModeQnA   Mode = "qna"
)

// ParseMode validates a query_type value. Empty means qna.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeQnA:
		return ModeQnA, nil
	case ModeStory:
		return ModeStory, nil
	}
	return "", fmt.Errorf("query_type must be %q or %q", ModeStory, ModeQnA)
}

// Modality says whether the latest user turn references an image.
type Modality int

const (
	Textual Modality = iota
	Visual
)

func (m Modality) String() string {
	if m == Visual {
		return "visual"
	}
	return "textual"
}

// VisualTask is an optional label describing what the child wants from an image.
type VisualTask string

const (
	TaskMicro       VisualTask = "Micro"
	TaskPlants      VisualTask = "Plants"
	TaskAnimals     VisualTask = "Animals"
	TaskInsects     VisualTask = "Insects"
	TaskDaily       VisualTask = "Daily"
	TaskTranslation VisualTask = "Translation"
)

var taskFocus = map[VisualTask]string{
	TaskMicro:       "the tiny details visible in the image, as if seen through a magnifying glass",
	TaskPlants:      "the plants in the image: their names, parts and how they grow",
	TaskAnimals:     "the animals in the image: what they are, where they live and what they eat",
	TaskInsects:     "the insects in the image: their names, bodies and what they do",
	TaskDaily:       "the everyday objects in the image and how people use them",
	TaskTranslation: "the written words in the image, read aloud and explained in simple language",
}

// ParseVisualTask validates a visual_task value. Empty means no task.
func ParseVisualTask(s string) (VisualTask, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	t := VisualTask(s)
	if _, ok := taskFocus[t]; !ok {
		return "", fmt.Errorf("visual_task %q is not one of Micro, Plants, Animals, Insects, Daily, Translation", s)
	}
	return t, nil
}

// ParseLocalTime validates a current_time value (ISO 8601). Empty means absent.
func ParseLocalTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("current_time %q is not an ISO 8601 timestamp", s)
}

// GenerationParams are the sampling settings sent with a completion.
type GenerationParams struct {
	Temperature float64
	MaxTokens   int
}

var presets = map[Mode]GenerationParams{
	ModeStory: {Temperature: 0.9, MaxTokens: 1200},
	ModeQnA:   {Temperature: 0.5, MaxTokens: 600},
}

// Params returns the preset for mode.
func Params(mode Mode) GenerationParams {
	if p, ok := presets[mode]; ok {
		return p
	}
	return presets[ModeQnA]
}

// Input is everything Compose needs.
type Input struct {
	Mode      Mode
	Modality  Modality
	Task      VisualTask
	LocalTime *time.Time
	Age       int
	Themes    []themes.Tag
}

// AgeFromYearOfBirth returns the child's age in whole years at now.
// Zero or future years give 0.
func AgeFromYearOfBirth(year int, now time.Time) int {
	if year <= 0 || year > now.Year() {
		return 0
	}
	return now.Year() - year
}
